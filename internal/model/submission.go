// Package model contains simple struct definitions shared across packages.
package model

import (
	"time"
)

// PaymentStatus tracks whether a submission's payment proof has been reviewed.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusConfirmed PaymentStatus = "confirmed"
	StatusRejected  PaymentStatus = "rejected"
)

// Submission is one row of the inscriptions table. Rows are written exactly
// once by the ingestion pipeline and never updated or deleted afterwards.
type Submission struct {
	ID       string  `json:"id"`
	Nom      string  `json:"nom"`
	Whatsapp string  `json:"whatsapp"`
	IDNexus  *string `json:"id_nexus,omitempty"`
	// Cohorte is empty only for rows created through the legacy form, which
	// predates cohort tracking.
	Cohorte  string        `json:"cohorte"`
	ProofKey *string       `json:"filename_preuve,omitempty"`
	Status   PaymentStatus `json:"status"`
	// ProofURL is resolved from ProofKey when listings are served; it is not
	// persisted.
	ProofURL  string    `json:"preuve_url,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}
