package ingest

import (
	"fmt"
	"strings"
)

// Kind classifies an ingestion failure so the HTTP layer can map it to a
// status code without inspecting error strings.
type Kind string

const (
	// KindInvalidInput is a client error: required fields were missing.
	KindInvalidInput Kind = "invalid_input"
	// KindMissingProof is a client error: policy mandates a proof file and
	// none was attached.
	KindMissingProof Kind = "missing_proof"
	// KindStorageUnavailable means the object store write failed; no record
	// was created.
	KindStorageUnavailable Kind = "storage_unavailable"
	// KindPersistenceFailed means the record insert failed; an uploaded proof
	// file may be orphaned in the object store.
	KindPersistenceFailed Kind = "persistence_failed"
)

// Error is the ingestion failure taxonomy. Missing is populated only for
// KindInvalidInput.
type Error struct {
	Kind    Kind
	Missing []string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidInput:
		return fmt.Sprintf("invalid input: missing %s", strings.Join(e.Missing, ", "))
	case KindMissingProof:
		return "proof of payment is required"
	case KindStorageUnavailable:
		return fmt.Sprintf("object store unavailable: %v", e.Err)
	case KindPersistenceFailed:
		return fmt.Sprintf("record store insert failed: %v", e.Err)
	default:
		return fmt.Sprintf("ingest error: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func invalidInput(missing ...string) *Error {
	return &Error{Kind: KindInvalidInput, Missing: missing}
}
