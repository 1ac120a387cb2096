// Package worker runs the background maintenance jobs: the orphan sweep that
// reconciles the proof bucket against the record store, and the readability
// scan for stored proofs. Neither job mutates submission rows.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nexusacademy/inscriptio/internal/blobstore"
	"github.com/nexusacademy/inscriptio/internal/proofcheck"
	"github.com/nexusacademy/inscriptio/internal/queue"
)

// ProofIndex is the record-store view the sweep needs.
type ProofIndex interface {
	AllProofKeys(ctx context.Context) (map[string]struct{}, error)
}

// ProofBucket is the object-store surface the jobs need.
type ProofBucket interface {
	ListObjects(ctx context.Context) ([]blobstore.Object, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	index  ProofIndex
	bucket ProofBucket
	grace  time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewProcessor constructs a worker processor. Orphans younger than grace are
// reported but kept: an ingestion may be between its upload and insert steps.
func NewProcessor(index ProofIndex, bucket ProofBucket, grace time.Duration, logger *slog.Logger) *Processor {
	return &Processor{
		index:  index,
		bucket: bucket,
		grace:  grace,
		logger: logger,
		now:    time.Now,
	}
}

// Handler registers the job handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.SweepOrphansTask, p.handleSweep)
	mux.HandleFunc(queue.ScanProofTask, p.handleScan)
	return mux
}

func (p *Processor) handleSweep(ctx context.Context, task *asynq.Task) error {
	removed, kept, err := p.Sweep(ctx)
	if err != nil {
		return err
	}
	p.logger.Info("orphan sweep finished", "removed", removed, "pending", kept)
	return nil
}

// Sweep reconciles the bucket against the record store. It returns how many
// orphans were removed and how many were found but still inside the grace
// window.
func (p *Processor) Sweep(ctx context.Context) (removed, kept int, err error) {
	objects, err := p.bucket.ListObjects(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list proof bucket: %w", err)
	}
	referenced, err := p.index.AllProofKeys(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("load referenced keys: %w", err)
	}
	cutoff := p.now().Add(-p.grace)
	for _, orphan := range Orphans(objects, referenced) {
		if orphan.LastModified.After(cutoff) {
			kept++
			p.logger.Warn("orphan proof inside grace window", "key", orphan.Key, "modified", orphan.LastModified)
			continue
		}
		if err := p.bucket.Remove(ctx, orphan.Key); err != nil {
			return removed, kept, fmt.Errorf("remove orphan %s: %w", orphan.Key, err)
		}
		removed++
		p.logger.Info("removed orphan proof", "key", orphan.Key)
	}
	return removed, kept, nil
}

func (p *Processor) handleScan(ctx context.Context, task *asynq.Task) error {
	var payload queue.ScanPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	data, err := p.bucket.Get(ctx, payload.ProofKey)
	if err != nil {
		return fmt.Errorf("download proof %s: %w", payload.ProofKey, err)
	}
	report, err := proofcheck.Inspect(data)
	if err != nil {
		// Unreadable content is permanent; retrying will not fix the bytes.
		p.logger.Warn("proof failed readability check",
			"submission", payload.SubmissionID, "key", payload.ProofKey, "error", err)
		return nil
	}
	p.logger.Info("proof verified",
		"submission", payload.SubmissionID, "key", payload.ProofKey,
		"content_type", report.ContentType, "pages", report.Pages)
	return nil
}

// Orphans returns the objects present in the bucket but referenced by no row.
func Orphans(objects []blobstore.Object, referenced map[string]struct{}) []blobstore.Object {
	var out []blobstore.Object
	for _, obj := range objects {
		if _, ok := referenced[obj.Key]; !ok {
			out = append(out, obj)
		}
	}
	return out
}
