package testutil

import (
	"time"

	"consentd/internal/consent/models"
	id "consentd/pkg/domain"
)

// TestIDs provides fixed identifiers for deterministic test data.
var TestIDs = struct {
	Guardian1 id.GuardianID
	Guardian2 id.GuardianID
	Student1  id.StudentID
	Student2  id.StudentID
}{
	Guardian1: "guardian-001",
	Guardian2: "guardian-002",
	Student1:  "student-001",
	Student2:  "student-002",
}

// FixedTime is the reference instant used by fixtures.
var FixedTime = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

// RecordBuilder provides a fluent interface for building consent records in
// any lifecycle state without going through the engine.
type RecordBuilder struct {
	record *models.Record
}

// NewRecordBuilder starts from a pending EMAIL_OTP request for DATA_SHARING.
func NewRecordBuilder() *RecordBuilder {
	return &RecordBuilder{
		record: &models.Record{
			ID:               id.NewConsentID(),
			StudentID:        TestIDs.Student1,
			GuardianID:       TestIDs.Guardian1,
			PurposeCode:      "DATA_SHARING",
			State:            models.StatePendingVerification,
			Method:           models.MethodEmailOTP,
			RequestedAt:      FixedTime,
			RequestIP:        "198.51.100.7",
			RequestUserAgent: "Mozilla/5.0",
		},
	}
}

func (b *RecordBuilder) WithID(consentID id.ConsentID) *RecordBuilder {
	b.record.ID = consentID
	return b
}

func (b *RecordBuilder) ForStudent(studentID id.StudentID) *RecordBuilder {
	b.record.StudentID = studentID
	return b
}

func (b *RecordBuilder) ByGuardian(guardianID id.GuardianID) *RecordBuilder {
	b.record.GuardianID = guardianID
	return b
}

func (b *RecordBuilder) WithPurpose(code string) *RecordBuilder {
	b.record.PurposeCode = code
	return b
}

func (b *RecordBuilder) WithMethod(m models.Method) *RecordBuilder {
	b.record.Method = m
	return b
}

func (b *RecordBuilder) RequestedAt(t time.Time) *RecordBuilder {
	b.record.RequestedAt = t
	return b
}

func (b *RecordBuilder) Granted(at time.Time) *RecordBuilder {
	b.record.State = models.StateGranted
	b.record.GrantedAt = &at
	b.record.ConsentText = "I consent to DATA_SHARING for " + string(b.record.StudentID)
	b.record.VerificationMetadata = map[string]string{"channel": "email"}
	return b
}

func (b *RecordBuilder) Withdrawn(at time.Time, reason string) *RecordBuilder {
	if b.record.GrantedAt == nil {
		b.Granted(at)
	}
	b.record.State = models.StateWithdrawn
	b.record.WithdrawnAt = &at
	b.record.WithdrawReason = reason
	return b
}

func (b *RecordBuilder) Discarded(at time.Time, reason models.DiscardReason) *RecordBuilder {
	b.record.DiscardedAt = &at
	b.record.DiscardReason = reason
	return b
}

func (b *RecordBuilder) Build() *models.Record {
	return b.record.Clone()
}

// NewTestPurpose returns an active nationwide purpose with the given retention.
func NewTestPurpose(code string, retentionDays int) models.Purpose {
	return models.Purpose{
		Code:          code,
		Name:          code,
		LegalBasis:    "DPDP Act 2023 s.9",
		RetentionDays: retentionDays,
		Active:        true,
		ConsentText:   "I, {{.GuardianID}}, consent for {{.StudentID}} for {{.RetentionDays}} days from {{.GrantedOn}}.",
	}
}
