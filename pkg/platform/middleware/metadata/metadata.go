// Package metadata records where a request came from (client IP and User-Agent)
// for the non-repudiation fields of consent records and audit entries.
package metadata

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"consentd/pkg/requestcontext"
)

// MaxXFFHeaderLength bounds X-Forwarded-For before it is parsed.
const MaxXFFHeaderLength = 500

// MaxUserAgentLength truncates User-Agent values stored on records.
const MaxUserAgentLength = 512

// Middleware extracts client metadata, trusting forwarding headers only from
// configured proxies.
type Middleware struct {
	trusted []netip.Prefix
}

// ParseTrustedProxies parses CIDR prefixes or bare addresses.
func ParseTrustedProxies(values []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !strings.Contains(v, "/") {
			addr, err := netip.ParseAddr(v)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", v, err)
			}
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(v)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", v, err)
		}
		prefixes = append(prefixes, p.Masked())
	}
	return prefixes, nil
}

// NewMiddleware creates the middleware. With no prefixes, forwarding headers
// are never trusted.
func NewMiddleware(trusted []netip.Prefix) *Middleware {
	return &Middleware{trusted: trusted}
}

// Handler adds client IP and User-Agent to the request context.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")
		if len(ua) > MaxUserAgentLength {
			ua = ua[:MaxUserAgentLength]
		}
		ctx := requestcontext.WithClientMetadata(r.Context(), m.clientIP(r), ua)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) clientIP(r *http.Request) string {
	remote := remoteIP(r.RemoteAddr)
	if remote == "" {
		return "unknown"
	}
	if !m.isTrusted(remote) {
		return remote
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		xff = r.Header.Get("X-Real-IP")
	}
	if xff == "" || len(xff) > MaxXFFHeaderLength {
		return remote
	}
	first, _, _ := strings.Cut(xff, ",")
	addr, err := netip.ParseAddr(strings.TrimSpace(first))
	if err != nil {
		return remote
	}
	return addr.String()
}

func (m *Middleware) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range m.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteIP(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return strings.Trim(remoteAddr, "[]")
	}
	return host
}
