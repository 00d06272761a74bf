package validation

import (
	"fmt"

	dErrors "consentd/pkg/domain-errors"
)

// MaxBodySize is the maximum allowed request body size (16 KB). Consent
// requests carry identifiers and a short proof only.
const MaxBodySize = 16 * 1024

// String length limits at the HTTP boundary.
const (
	MaxExternalIDLength     = 64
	MaxPurposeCodeLength    = 64
	MaxProofLength          = 512
	MaxWithdrawReasonLength = 500
)

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}
