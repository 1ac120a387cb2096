package ingest

import "strings"

// Fields carries the raw values of one form post before validation.
type Fields struct {
	Nom      string
	Whatsapp string
	IDNexus  string
	Cohorte  string
}

// Validate trims every field and checks required-field presence. Cohorte is
// required only when requireCohort is set; the legacy form predates cohort
// tracking and submits without one. Validate is side-effect free.
func Validate(f Fields, requireCohort bool) (Fields, error) {
	f.Nom = strings.TrimSpace(f.Nom)
	f.Whatsapp = strings.TrimSpace(f.Whatsapp)
	f.IDNexus = strings.TrimSpace(f.IDNexus)
	f.Cohorte = strings.TrimSpace(f.Cohorte)

	var missing []string
	if f.Nom == "" {
		missing = append(missing, "nom")
	}
	if f.Whatsapp == "" {
		missing = append(missing, "whatsapp")
	}
	if requireCohort && f.Cohorte == "" {
		missing = append(missing, "cohorte")
	}
	if len(missing) > 0 {
		return Fields{}, invalidInput(missing...)
	}
	return f, nil
}
