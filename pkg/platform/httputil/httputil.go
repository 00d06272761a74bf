package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	id "consentd/pkg/domain"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/requestcontext"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError centralizes domain error translation to HTTP responses.
func WriteError(w http.ResponseWriter, err error) {
	status, body := ErrorBody(err)
	WriteJSON(w, status, body)
}

// ErrorBody builds the status and JSON body for err without writing it, so
// handlers can add fields (such as the consent ID of a kept request).
func ErrorBody(err error) (int, map[string]string) {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError, map[string]string{
			"error": DomainCodeToHTTPCode(dErrors.CodeInternal),
		}
	}
	body := map[string]string{
		"error": DomainCodeToHTTPCode(domainErr.Code),
	}
	// Internal messages may carry storage detail.
	if domainErr.Message != "" && domainErr.Code != dErrors.CodeInternal {
		body["error_description"] = domainErr.Message
	}
	return DomainCodeToHTTPStatus(domainErr.Code), body
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound, dErrors.CodeRecordNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeInvariantViolation:
		return http.StatusBadRequest
	case dErrors.CodeConflict, dErrors.CodeAlreadyWithdrawn, dErrors.CodeInvalidState:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeChallengeExpired:
		return http.StatusGone
	case dErrors.CodeVerificationFailed, dErrors.CodeConsentDeclined:
		return http.StatusUnprocessableEntity
	case dErrors.CodeMaxAttemptsExceeded:
		return http.StatusTooManyRequests
	case dErrors.CodeDeliveryFailed:
		return http.StatusBadGateway
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// DomainCodeToHTTPCode translates domain error codes to the "error" field of
// the JSON body.
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeNotFound, dErrors.CodeRecordNotFound:
		return "not_found"
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return "bad_request"
	case dErrors.CodeValidation, dErrors.CodeInvariantViolation:
		return "validation_error"
	case dErrors.CodeConflict,
		dErrors.CodeUnauthorized,
		dErrors.CodeForbidden,
		dErrors.CodeInvalidState,
		dErrors.CodeChallengeExpired,
		dErrors.CodeVerificationFailed,
		dErrors.CodeMaxAttemptsExceeded,
		dErrors.CodeAlreadyWithdrawn,
		dErrors.CodeDeliveryFailed,
		dErrors.CodeConsentDeclined,
		dErrors.CodeTimeout:
		return string(code)
	default:
		return "internal_error"
	}
}

// RequireGuardianID extracts the authenticated guardian from context.
// Returns a domain error suitable for an HTTP response on failure.
func RequireGuardianID(ctx context.Context, logger *slog.Logger, requestID string) (id.GuardianID, error) {
	guardianID := requestcontext.GuardianID(ctx)
	if guardianID.IsNil() {
		if logger != nil {
			logger.ErrorContext(ctx, "guardian missing from context despite auth middleware",
				"request_id", requestID)
		}
		return "", dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return guardianID, nil
}
