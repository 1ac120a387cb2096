// Package ingest implements the submission ingestion pipeline: validate the
// form fields, store the proof file, then persist the record. The object
// store write always happens before the insert so a row never references a
// blob that was not actually written; the reverse gap (blob written, insert
// failed) is an accepted orphan swept out of band.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nexusacademy/inscriptio/internal/model"
)

// ObjectStore is the blob side of the pipeline.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Recorder is the record side of the pipeline.
type Recorder interface {
	Insert(ctx context.Context, sub *model.Submission) error
}

// Policy selects the variant behavior of a deployment. The pipeline is shared;
// only these knobs differ between the strict and lenient deployments.
type Policy struct {
	// RequireProof rejects submissions without a proof file instead of
	// storing them with a null proof reference.
	RequireProof bool
	// RequireCohort makes the cohort label a required field.
	RequireCohort bool
	// TrackStatus assigns the "pending" payment status on creation; when
	// unset the status column is left blank.
	TrackStatus bool
}

// FilePayload is an uploaded proof file already read into memory.
type FilePayload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Pipeline orchestrates one submission from raw fields to a persisted row.
type Pipeline struct {
	store   ObjectStore
	records Recorder
	policy  Policy
	now     func() time.Time
}

// New constructs a Pipeline. store may be nil when the object store is not
// configured; that is only legal while policy.RequireProof is false, in which
// case the upload step is skipped and the proof reference stays null.
func New(store ObjectStore, records Recorder, policy Policy) *Pipeline {
	return &Pipeline{
		store:   store,
		records: records,
		policy:  policy,
		now:     time.Now,
	}
}

// Submit runs the pipeline: validate, store the proof file, insert the record.
// Failures are reported as *Error; on KindInvalidInput and KindMissingProof
// neither store has been touched, on KindStorageUnavailable no record was
// created, and on KindPersistenceFailed the uploaded file may be orphaned.
// Nothing is retried; each attempt derives a fresh proof key from the current
// instant, so a client resubmit cannot collide with an earlier attempt.
func (p *Pipeline) Submit(ctx context.Context, fields Fields, file *FilePayload) (*model.Submission, error) {
	fields, err := Validate(fields, p.policy.RequireCohort)
	if err != nil {
		return nil, err
	}
	if file != nil && len(file.Data) == 0 {
		file = nil
	}
	if p.policy.RequireProof && file == nil {
		return nil, &Error{Kind: KindMissingProof}
	}

	now := p.now().UTC()
	var proofKey *string
	if file != nil && p.store != nil {
		key := ProofKey(fields.Nom, now, file.Name)
		if err := p.store.Put(ctx, key, file.Data, file.ContentType); err != nil {
			return nil, &Error{Kind: KindStorageUnavailable, Err: err}
		}
		proofKey = &key
	}

	sub := &model.Submission{
		ID:        uuid.NewString(),
		Nom:       fields.Nom,
		Whatsapp:  fields.Whatsapp,
		Cohorte:   fields.Cohorte,
		ProofKey:  proofKey,
		CreatedAt: now,
	}
	if fields.IDNexus != "" {
		id := fields.IDNexus
		sub.IDNexus = &id
	}
	if p.policy.TrackStatus {
		sub.Status = model.StatusPending
	}
	if err := p.records.Insert(ctx, sub); err != nil {
		return nil, &Error{Kind: KindPersistenceFailed, Err: err}
	}
	return sub, nil
}
