// Package device summarizes a User-Agent into a short label safe to keep in
// the audit trail after the raw header has been redacted.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const Unknown = "Unknown Device"

// Describe returns "Browser on OS" (e.g. "Chrome on macOS", "Safari on iPhone").
// Version numbers are dropped so the label does not fingerprint the client.
func Describe(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return Unknown
	}

	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	os := ua.OS()

	if ua.Mobile() {
		if platform := ua.Platform(); platform != "" {
			return strings.TrimSpace(browser + " on " + platform)
		}
	}

	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}

// IsMobile reports whether the client identifies as a mobile device.
func IsMobile(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	return useragent.New(userAgent).Mobile()
}
