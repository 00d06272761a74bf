package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"

	id "consentd/pkg/domain"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Background steps
	ctx.Step(`^guardian "([^"]*)" is linked to student "([^"]*)" with email "([^"]*)"$`, tc.guardianIsLinked)

	// Consent steps
	ctx.Step(`^the guardian requests "([^"]*)" consent for student "([^"]*)" via "([^"]*)"$`, tc.requestConsent)
	ctx.Step(`^the guardian submits the delivered code$`, tc.submitDeliveredCode)
	ctx.Step(`^the guardian submits a wrong code$`, tc.submitWrongCode)
	ctx.Step(`^the guardian submits their session as proof$`, tc.submitSession)
	ctx.Step(`^the guardian declines the consent$`, tc.decline)
	ctx.Step(`^the guardian holds a granted "([^"]*)" consent for student "([^"]*)"$`, tc.holdsGrantedConsent)
	ctx.Step(`^the guardian withdraws the consent with reason "([^"]*)"$`, tc.withdraw)
	ctx.Step(`^the guardian fetches the consent$`, tc.fetchConsent)
	ctx.Step(`^an anonymous caller lists consents$`, tc.anonymousList)

	// Assertion steps
	ctx.Step(`^the response status should be (\d+)$`, tc.responseStatusShouldBe)
	ctx.Step(`^the response should not contain "([^"]*)"$`, tc.responseShouldNotContain)
	ctx.Step(`^the consent state should be "([^"]*)"$`, tc.consentStateShouldBe)
	ctx.Step(`^the consent should be valid$`, tc.consentShouldBeValid)
	ctx.Step(`^the audit trail should end with "([^"]*)"$`, tc.auditTrailShouldEndWith)
}

func (tc *TestContext) guardianIsLinked(_ context.Context, guardian, student, email string) error {
	tc.SessionRef = "sess-" + guardian
	tc.Harness.AddGuardian(id.GuardianID(guardian), id.StudentID(student), email, tc.SessionRef)
	return nil
}

func (tc *TestContext) requestConsent(_ context.Context, purpose, student, method string) error {
	err := tc.Do(http.MethodPost, "/consents", map[string]string{
		"student_id":   student,
		"purpose_code": purpose,
		"method":       method,
	}, tc.guardianHeaders())
	if err != nil {
		return err
	}
	if tc.GetLastResponseStatus() == http.StatusCreated {
		consentID, err := tc.GetResponseField("consent_id")
		if err != nil {
			return err
		}
		tc.ConsentID = fmt.Sprint(consentID)
	}
	return nil
}

func (tc *TestContext) grant(proof string, agreed bool) error {
	return tc.Do(http.MethodPost, "/consents/"+tc.ConsentID+"/grant", map[string]any{
		"proof":  proof,
		"agreed": agreed,
	}, tc.guardianHeaders())
}

func (tc *TestContext) deliveredCode() (string, error) {
	code, ok := tc.Harness.Code(tc.ConsentID)
	if !ok {
		return "", fmt.Errorf("no code delivered for consent %s", tc.ConsentID)
	}
	return code, nil
}

func (tc *TestContext) submitDeliveredCode(context.Context) error {
	code, err := tc.deliveredCode()
	if err != nil {
		return err
	}
	return tc.grant(code, true)
}

func (tc *TestContext) submitWrongCode(context.Context) error {
	code, err := tc.deliveredCode()
	if err != nil {
		return err
	}
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	return tc.grant(wrong, true)
}

func (tc *TestContext) submitSession(context.Context) error {
	return tc.grant(tc.SessionRef, true)
}

func (tc *TestContext) decline(context.Context) error {
	return tc.grant("", false)
}

func (tc *TestContext) holdsGrantedConsent(ctx context.Context, purpose, student string) error {
	if err := tc.requestConsent(ctx, purpose, student, "EMAIL_OTP"); err != nil {
		return err
	}
	if err := tc.submitDeliveredCode(ctx); err != nil {
		return err
	}
	return tc.consentStateShouldBe(ctx, "GRANTED")
}

func (tc *TestContext) withdraw(_ context.Context, reason string) error {
	return tc.Do(http.MethodPost, "/consents/"+tc.ConsentID+"/withdraw",
		map[string]string{"reason": reason}, tc.guardianHeaders())
}

func (tc *TestContext) fetchConsent(context.Context) error {
	return tc.Do(http.MethodGet, "/consents/"+tc.ConsentID, nil, tc.guardianHeaders())
}

func (tc *TestContext) anonymousList(context.Context) error {
	return tc.Do(http.MethodGet, "/consents", nil, nil)
}

func (tc *TestContext) responseStatusShouldBe(_ context.Context, expected int) error {
	if actual := tc.GetLastResponseStatus(); actual != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, actual, tc.LastResponseBody)
	}
	return nil
}

func (tc *TestContext) responseShouldNotContain(_ context.Context, text string) error {
	if strings.Contains(string(tc.LastResponseBody), text) {
		return fmt.Errorf("response contains %q: %s", text, tc.LastResponseBody)
	}
	return nil
}

func (tc *TestContext) consentStateShouldBe(_ context.Context, expected string) error {
	state, err := tc.GetResponseField("state")
	if err != nil {
		return err
	}
	if state != expected {
		return fmt.Errorf("expected state %s, got %v", expected, state)
	}
	return nil
}

func (tc *TestContext) consentShouldBeValid(context.Context) error {
	valid, err := tc.GetResponseField("is_valid")
	if err != nil {
		return err
	}
	if valid != true {
		return fmt.Errorf("expected consent to be valid, got %v", valid)
	}
	return nil
}

func (tc *TestContext) auditTrailShouldEndWith(_ context.Context, action string) error {
	if err := tc.Do(http.MethodGet, "/consents/"+tc.ConsentID+"/audit", nil, tc.guardianHeaders()); err != nil {
		return err
	}
	var log struct {
		Entries []struct {
			Action string `json:"action"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(tc.LastResponseBody, &log); err != nil {
		return fmt.Errorf("failed to unmarshal audit log: %w", err)
	}
	if len(log.Entries) == 0 {
		return fmt.Errorf("audit trail is empty")
	}
	if last := log.Entries[len(log.Entries)-1].Action; last != action {
		return fmt.Errorf("expected last audit action %s, got %s", action, last)
	}
	return nil
}
