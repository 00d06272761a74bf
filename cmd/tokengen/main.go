// Package main provides a CLI tool for generating operator tokens and local
// guardian sessions for consentd. Sessions are written straight into Redis
// and are only meant for local development and testing.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"consentd/internal/consent/identity"
	"consentd/internal/platform/redis"
	id "consentd/pkg/domain"
	"consentd/pkg/platform/middleware/admin"
	"consentd/pkg/platform/middleware/auth"
	"consentd/pkg/secrets"
)

const defaultSessionTTL = 24 * time.Hour

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	Hash      string            `json:"hash,omitempty"`
	ExpiresIn string            `json:"expires_in,omitempty"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	adminCmd := flag.NewFlagSet("admin", flag.ExitOnError)
	sessionCmd := flag.NewFlagSet("session", flag.ExitOnError)

	adminToken := adminCmd.String("token", "", "Token to hash. Generated if empty.")
	adminJSON := adminCmd.Bool("json", false, "Output as JSON")

	sessionGuardian := sessionCmd.String("guardian", "", "Guardian ID the session authenticates (required)")
	sessionTTL := sessionCmd.Duration("ttl", defaultSessionTTL, "Session time-to-live")
	sessionRedis := sessionCmd.String("redis", os.Getenv("REDIS_URL"), "Redis URL the server reads sessions from")
	sessionJSON := sessionCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "admin":
		_ = adminCmd.Parse(os.Args[2:])
		err = generateAdminToken(*adminToken, *adminJSON)
	case "session":
		_ = sessionCmd.Parse(os.Args[2:])
		err = generateSession(*sessionGuardian, *sessionRedis, *sessionTTL, *sessionJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Generate operator tokens and dev sessions for consentd

Usage:
  tokengen admin   [-token T] [-json]
  tokengen session -guardian ID [-ttl 24h] [-redis URL] [-json]

Commands:
  admin     Generate an operator token and its bcrypt hash.
            Set ADMIN_TOKEN_HASH on the server, keep the token for X-Admin-Token.
  session   Write an active guardian session to Redis and print its reference.`)
}

func generateAdminToken(token string, jsonOutput bool) error {
	if token == "" {
		var err error
		token, err = secrets.Generate()
		if err != nil {
			return err
		}
	}
	hash, err := secrets.Hash(token)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(tokenOutput{
			Token: token,
			Type:  "admin_token",
			Hash:  hash,
			Usage: map[string]string{
				"header": admin.TokenHeader + ": " + token,
				"env":    "ADMIN_TOKEN_HASH=" + hash,
			},
		})
	}
	fmt.Println("Admin API Token")
	fmt.Println("===============")
	fmt.Printf("Token: %s\n", token)
	fmt.Printf("Hash:  %s\n", hash)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  export ADMIN_TOKEN_HASH='%s'\n", hash)
	fmt.Printf("  curl -H \"%s: %s\" http://localhost:8080/admin/consents?student_id=...\n", admin.TokenHeader, token)
	return nil
}

func generateSession(guardian, redisURL string, ttl time.Duration, jsonOutput bool) error {
	if guardian == "" {
		return fmt.Errorf("-guardian is required")
	}
	if redisURL == "" {
		return fmt.Errorf("-redis or REDIS_URL is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("-ttl must be positive")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := redis.New(ctx, redisURL, nil)
	if err != nil {
		return err
	}
	defer client.Close()

	now := time.Now().UTC()
	sess := identity.Session{
		Ref:             "dev_" + uuid.NewString(),
		GuardianID:      id.GuardianID(guardian),
		AuthenticatedAt: now,
		ExpiresAt:       now.Add(ttl),
		AuthMethod:      "tokengen",
	}
	if err := identity.NewRedisSessions(client.Client).Put(ctx, sess); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(tokenOutput{
			Token:     sess.Ref,
			Type:      "guardian_session",
			ExpiresIn: ttl.String(),
			Usage: map[string]string{
				"header":        auth.SessionHeader + ": " + sess.Ref,
				"authorization": "Bearer " + sess.Ref,
				"guardian_id":   guardian,
			},
		})
	}
	fmt.Println("Guardian Session")
	fmt.Println("================")
	fmt.Printf("Session:  %s\n", sess.Ref)
	fmt.Printf("Guardian: %s\n", guardian)
	fmt.Printf("Expires:  %s\n", sess.ExpiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  curl -H \"Authorization: Bearer %s\" http://localhost:8080/consents\n", sess.Ref)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
