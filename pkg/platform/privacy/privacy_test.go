package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "ipv4 address", input: "203.0.113.47", expected: "203.0.113.0"},
		{name: "ipv4 localhost", input: "127.0.0.1", expected: "127.0.0.0"},
		{name: "ipv6 compressed", input: "2001:db8:85a3::8a2e:370:7334", expected: "2001:0db8:85a3::"},
		{name: "empty", input: "", expected: "unknown"},
		{name: "garbage", input: "not-an-ip", expected: "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AnonymizeIP(tt.input))
		})
	}
}

func TestMasking(t *testing.T) {
	t.Run("email keeps first letter and domain", func(t *testing.T) {
		assert.Equal(t, "p***@example.in", MaskEmail("priya.sharma@example.in"))
	})

	t.Run("malformed email is fully masked", func(t *testing.T) {
		assert.Equal(t, "***", MaskEmail("no-at-sign"))
	})

	t.Run("phone keeps last four digits", func(t *testing.T) {
		assert.Equal(t, "*********5678", MaskPhone("+919812345678"))
	})

	t.Run("short values are fully masked", func(t *testing.T) {
		assert.Equal(t, "***", MaskTail("abc", 4))
	})
}
