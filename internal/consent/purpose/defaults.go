package purpose

import "consentd/internal/consent/models"

const legalBasisDPDP = "DPDP Act 2023 s.9(1): verifiable consent of parent or lawful guardian"

// Defaults is the catalog a school deployment starts with.
func Defaults() []models.Purpose {
	return []models.Purpose{
		{
			Code:          "DATA_SHARING",
			Name:          "Sharing with board and affiliated bodies",
			Description:   "Share enrolment and assessment data with the examination board.",
			Mandatory:     true,
			Category:      "academic",
			LegalBasis:    legalBasisDPDP,
			RetentionDays: 365,
			Active:        true,
			Jurisdictions: []string{models.JurisdictionNationwide},
			ConsentText: "I, guardian {{.GuardianID}}, consent to the school sharing the enrolment and " +
				"assessment records of student {{.StudentID}} with its examination board for {{.RetentionDays}} days from {{.GrantedOn}}.",
		},
		{
			Code:          "PHOTO_PUBLICATION",
			Name:          "Publication of photographs",
			Description:   "Publish event photographs on the school website and newsletter.",
			Category:      "media",
			LegalBasis:    legalBasisDPDP,
			RetentionDays: 180,
			Active:        true,
			ConsentText: "I, guardian {{.GuardianID}}, allow photographs of student {{.StudentID}} to be published " +
				"in school media for {{.RetentionDays}} days from {{.GrantedOn}}.",
		},
		{
			Code:          "HEALTH_RECORDS",
			Name:          "Health and medical records",
			Description:   "Record health screening results and allergies for the school nurse.",
			Mandatory:     true,
			Category:      "health",
			LegalBasis:    legalBasisDPDP,
			RetentionDays: 730,
			Active:        true,
			ConsentText: "I, guardian {{.GuardianID}}, consent to the school nurse keeping health records of " +
				"student {{.StudentID}} for {{.RetentionDays}} days from {{.GrantedOn}}.",
		},
		{
			Code:          "TRANSPORT_TRACKING",
			Name:          "School bus location tracking",
			Description:   "Share live bus location and boarding events with the guardian app.",
			Category:      "transport",
			LegalBasis:    legalBasisDPDP,
			RetentionDays: 90,
			Active:        true,
			Jurisdictions: []string{"IN-KA", "IN-MH", "IN-DL"},
			ConsentText: "I, guardian {{.GuardianID}}, consent to boarding events of student {{.StudentID}} " +
				"being recorded for {{.RetentionDays}} days from {{.GrantedOn}}.",
		},
		{
			Code:          "MARKETING_NEWSLETTER",
			Name:          "Third-party enrichment offers",
			Description:   "Retired purpose kept for records that reference it.",
			Category:      "marketing",
			LegalBasis:    legalBasisDPDP,
			RetentionDays: 30,
			Active:        false,
			ConsentText:   "I, guardian {{.GuardianID}}, agree to receive offers concerning student {{.StudentID}}.",
		},
	}
}
