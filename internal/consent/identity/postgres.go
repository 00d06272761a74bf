package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "consentd/pkg/domain"
	"consentd/pkg/platform/sentinel"
)

// PostgresDirectory reads guardianships synced from the school's identity
// system into the guardianships table. A revoked row is unauthorized.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Guardianship(ctx context.Context, guardianID id.GuardianID, studentID id.StudentID) (Guardianship, error) {
	var (
		g       Guardianship
		revoked sql.NullTime
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT jurisdiction, email, phone, aadhaar_vid, revoked_at
		FROM guardianships
		WHERE guardian_id = $1 AND student_id = $2
	`, string(guardianID), string(studentID)).Scan(&g.Jurisdiction, &g.Email, &g.Phone, &g.AadhaarVID, &revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Guardianship{}, nil
		}
		return Guardianship{}, fmt.Errorf("find guardianship: %w", err)
	}
	g.Authorized = !revoked.Valid
	return g, nil
}

// Link upserts a guardianship and clears any revocation.
func (d *PostgresDirectory) Link(ctx context.Context, guardianID id.GuardianID, studentID id.StudentID, g Guardianship) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO guardianships (guardian_id, student_id, jurisdiction, email, phone, aadhaar_vid)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (guardian_id, student_id) DO UPDATE SET
			jurisdiction = EXCLUDED.jurisdiction,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			aadhaar_vid = EXCLUDED.aadhaar_vid,
			revoked_at = NULL
	`, string(guardianID), string(studentID), g.Jurisdiction, g.Email, g.Phone, g.AadhaarVID)
	if err != nil {
		return fmt.Errorf("link guardianship: %w", err)
	}
	return nil
}

// Revoke marks a guardianship revoked. Unknown pairs return sentinel.ErrNotFound.
func (d *PostgresDirectory) Revoke(ctx context.Context, guardianID id.GuardianID, studentID id.StudentID) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE guardianships SET revoked_at = now()
		WHERE guardian_id = $1 AND student_id = $2 AND revoked_at IS NULL
	`, string(guardianID), string(studentID))
	if err != nil {
		return fmt.Errorf("revoke guardianship: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// PostgresAttestations resolves administrator attestations recorded by the
// back office.
type PostgresAttestations struct {
	db *sql.DB
}

func NewPostgresAttestations(db *sql.DB) *PostgresAttestations {
	return &PostgresAttestations{db: db}
}

func (a *PostgresAttestations) VerifyAttestation(ctx context.Context, ref string) (Attestation, error) {
	att := Attestation{Ref: ref}
	var consentID string
	err := a.db.QueryRowContext(ctx, `
		SELECT consent_id, attestor_id, attested_at, note
		FROM consent_attestations
		WHERE ref = $1
	`, ref).Scan(&consentID, &att.AttestorID, &att.AttestedAt, &att.Note)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attestation{}, sentinel.ErrNotFound
		}
		return Attestation{}, fmt.Errorf("find attestation: %w", err)
	}
	att.ConsentID = id.ConsentID(consentID)
	return att, nil
}

// Record stores an attestation. A reused ref returns sentinel.ErrConflict.
func (a *PostgresAttestations) Record(ctx context.Context, att Attestation) error {
	res, err := a.db.ExecContext(ctx, `
		INSERT INTO consent_attestations (ref, consent_id, attestor_id, attested_at, note)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (ref) DO NOTHING
	`, att.Ref, string(att.ConsentID), att.AttestorID, att.AttestedAt, att.Note)
	if err != nil {
		return fmt.Errorf("record attestation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}
