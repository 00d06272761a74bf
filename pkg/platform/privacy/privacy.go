// Package privacy masks personal data before it reaches logs, audit details
// or guardian-facing responses.
package privacy

import (
	"fmt"
	"net"
	"strings"
)

// Redacted replaces values removed by retention redaction.
const Redacted = "[redacted]"

// AnonymizeIP truncates an IP address to its network prefix: /24 for IPv4,
// /48 for IPv6. Returns "unknown" for empty input and "invalid" for
// unparseable input.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "invalid"
	}

	if v4 := parsed.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.%d.0", v4[0], v4[1], v4[2])
	}

	return fmt.Sprintf("%02x%02x:%02x%02x:%02x%02x::",
		parsed[0], parsed[1],
		parsed[2], parsed[3],
		parsed[4], parsed[5])
}

// MaskEmail keeps the first character of the local part and the domain:
// "priya.sharma@example.in" -> "p***@example.in".
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || local == "" || domain == "" {
		return MaskTail("", 0)
	}
	return local[:1] + "***@" + domain
}

// MaskPhone keeps the last four digits: "+919812345678" -> "********5678".
func MaskPhone(phone string) string {
	return MaskTail(strings.TrimSpace(phone), 4)
}

// MaskTail replaces all but the last keep characters with '*'. Values no
// longer than keep are fully masked.
func MaskTail(v string, keep int) string {
	if v == "" {
		return "***"
	}
	if len(v) <= keep {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", len(v)-keep) + v[len(v)-keep:]
}
