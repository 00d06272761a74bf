package purpose

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"consentd/internal/consent/models"
	id "consentd/pkg/domain"
)

// TextData is what a purpose's consent text template may reference.
type TextData struct {
	StudentID     id.StudentID
	GuardianID    id.GuardianID
	PurposeName   string
	LegalBasis    string
	RetentionDays int
	GrantedOn     string
}

// Render produces the exact legal text frozen into a record at grant. A
// template referencing an unknown field fails instead of rendering "<no value>".
func Render(p models.Purpose, studentID id.StudentID, guardianID id.GuardianID, grantedAt time.Time) (string, error) {
	tmpl, err := template.New(p.Code).Option("missingkey=error").Parse(p.ConsentText)
	if err != nil {
		return "", fmt.Errorf("parse consent text for %s: %w", p.Code, err)
	}
	var b strings.Builder
	err = tmpl.Execute(&b, TextData{
		StudentID:     studentID,
		GuardianID:    guardianID,
		PurposeName:   p.Name,
		LegalBasis:    p.LegalBasis,
		RetentionDays: p.RetentionDays,
		GrantedOn:     grantedAt.UTC().Format("2006-01-02"),
	})
	if err != nil {
		return "", fmt.Errorf("render consent text for %s: %w", p.Code, err)
	}
	return b.String(), nil
}
