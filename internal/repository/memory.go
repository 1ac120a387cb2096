package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/nexusacademy/inscriptio/internal/model"
)

// Memory is an in-memory submission store guarded by an RWMutex. It satisfies
// the same call surface as SubmissionRepository and backs tests and local
// development without a database.
type Memory struct {
	mu   sync.RWMutex
	subs []model.Submission
}

// NewMemory constructs a Memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Insert appends a copy of the submission.
func (m *Memory) Insert(ctx context.Context, sub *model.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, *sub)
	return nil
}

// List filters by cohort and sorts by creation time, newest first unless
// ascending is set.
func (m *Memory) List(ctx context.Context, cohorte string, ascending bool) ([]model.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Submission
	for _, sub := range m.subs {
		if cohorte != "" && sub.Cohorte != cohorte {
			continue
		}
		out = append(out, sub)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if ascending {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// DistinctCohortes returns the non-empty labels present, descending.
func (m *Memory) DistinctCohortes(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, sub := range m.subs {
		if sub.Cohorte != "" {
			seen[sub.Cohorte] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for label := range seen {
		out = append(out, label)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

// AllProofKeys returns the set of referenced object keys.
func (m *Memory) AllProofKeys(ctx context.Context) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make(map[string]struct{})
	for _, sub := range m.subs {
		if sub.ProofKey != nil {
			keys[*sub.ProofKey] = struct{}{}
		}
	}
	return keys, nil
}
