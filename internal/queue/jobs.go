package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// SweepOrphansTask lists the proof bucket and reconciles it against the
	// record store; it runs on a schedule and from the ops CLI.
	SweepOrphansTask = "proofs:sweep"
	// ScanProofTask verifies a stored proof file is readable.
	ScanProofTask = "proofs:scan"
)

// ScanPayload identifies the proof to verify.
type ScanPayload struct {
	SubmissionID string `json:"submission_id"`
	ProofKey     string `json:"proof_key"`
}

// EnqueueScan schedules a proof readability scan.
func EnqueueScan(ctx context.Context, client *asynq.Client, payload ScanPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(ScanProofTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(3)); err != nil {
		return fmt.Errorf("enqueue scan task: %w", err)
	}
	return nil
}

// EnqueueSweep schedules an immediate orphan sweep.
func EnqueueSweep(ctx context.Context, client *asynq.Client) error {
	task := asynq.NewTask(SweepOrphansTask, nil)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(1)); err != nil {
		return fmt.Errorf("enqueue sweep task: %w", err)
	}
	return nil
}
