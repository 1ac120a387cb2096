package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexusacademy/inscriptio/internal/model"
)

// SubmissionRepository wraps all SQL used throughout the API, worker, and CLI.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository constructs a repository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Insert writes one submission row. Rows are insert-only; there is no update
// or delete path.
func (r *SubmissionRepository) Insert(ctx context.Context, sub *model.Submission) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inscriptions (id, nom, whatsapp, id_nexus, cohorte, proof_key, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, sub.ID, sub.Nom, sub.Whatsapp, sub.IDNexus, sub.Cohorte, sub.ProofKey, string(sub.Status), sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// List returns submissions, newest first by default, oldest first when
// ascending is set (exports want a chronological report). An empty cohorte
// returns every row.
func (r *SubmissionRepository) List(ctx context.Context, cohorte string, ascending bool) ([]model.Submission, error) {
	direction := "DESC"
	if ascending {
		direction = "ASC"
	}
	query := `
		SELECT id, nom, whatsapp, id_nexus, cohorte, proof_key, status, created_at
		FROM inscriptions`
	var (
		rows pgx.Rows
		err  error
	)
	if cohorte != "" {
		rows, err = r.pool.Query(ctx, query+` WHERE cohorte=$1 ORDER BY created_at `+direction, cohorte)
	} else {
		rows, err = r.pool.Query(ctx, query+` ORDER BY created_at `+direction)
	}
	if err != nil {
		return nil, fmt.Errorf("select submissions: %w", err)
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		var (
			sub      model.Submission
			idNexus  sql.NullString
			proofKey sql.NullString
			status   string
		)
		if err := rows.Scan(&sub.ID, &sub.Nom, &sub.Whatsapp, &idNexus, &sub.Cohorte, &proofKey, &status, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if idNexus.Valid {
			v := idNexus.String
			sub.IDNexus = &v
		}
		if proofKey.Valid {
			v := proofKey.String
			sub.ProofKey = &v
		}
		sub.Status = model.PaymentStatus(status)
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

// DistinctCohortes enumerates the cohort labels present across all rows,
// descending so the most recent intake (labels sort by date) comes first.
// Rows from the legacy form carry an empty label and are excluded.
func (r *SubmissionRepository) DistinctCohortes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT cohorte FROM inscriptions WHERE cohorte <> '' ORDER BY cohorte DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("select cohortes: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("scan cohorte: %w", err)
		}
		out = append(out, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cohortes: %w", err)
	}
	return out, nil
}

// AllProofKeys returns the set of object keys referenced by any row; the
// orphan sweep subtracts it from the bucket listing.
func (r *SubmissionRepository) AllProofKeys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT proof_key FROM inscriptions WHERE proof_key IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("select proof keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan proof key: %w", err)
		}
		keys[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proof keys: %w", err)
	}
	return keys, nil
}
