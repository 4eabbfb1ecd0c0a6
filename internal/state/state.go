package state

import (
	"sync"

	"chartbuilder-go/internal/models"
)

// dataset is the in-memory working copy of one dataset's chart
// configuration. The saved-condition snapshot backs the revert operation on
// pending condition edits.
type dataset struct {
	Config models.DatasetConfig

	// ConditionSnapshot is the condition list as of the last explicit save,
	// used to revert pending edits.
	ConditionSnapshot []models.Condition

	// Loaded marks that at least one response has been run, after which the
	// auto-field selector stays out of the way.
	Loaded bool

	// issuedSeq and committedSeq order pipeline runs: results carry the
	// sequence issued at request time and only the newest issued result may
	// commit. Last-write-wins by issuance order, not completion order.
	issuedSeq    uint64
	committedSeq uint64

	lastResult *models.RunResult
}

// AppState holds the mutable application state shared by the HTTP handlers.
// The transformation pipeline itself is pure; all shared mutation lives
// here behind one lock. Datasets never escape as pointers: every read goes
// through a locked accessor so concurrent runs and reads cannot race.
type AppState struct {
	mu       sync.RWMutex
	datasets map[string]*dataset
}

// New creates an empty AppState.
func New() *AppState {
	return &AppState{datasets: make(map[string]*dataset)}
}

// ensure returns the dataset for id, creating it on first use. Callers must
// hold the write lock.
func (s *AppState) ensure(id string) *dataset {
	d, ok := s.datasets[id]
	if !ok {
		d = &dataset{}
		s.datasets[id] = d
	}
	return d
}

// Exists reports whether a dataset has been created.
func (s *AppState) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.datasets[id]
	return ok
}

// IssueSeq reserves the next request sequence for a dataset. Every pipeline
// run gets its sequence at issuance time, before any fetch happens.
func (s *AppState) IssueSeq(id string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.ensure(id)
	d.issuedSeq++
	return d.issuedSeq
}

// CommitResult stores a completed run unless a run with the same or a newer
// issued sequence already committed; it reports whether the result was
// accepted. Stale and duplicate results are discarded so they can never
// overwrite state out of order.
func (s *AppState) CommitResult(id string, result *models.RunResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.datasets[id]
	if !ok {
		return false
	}
	if result.Seq <= d.committedSeq {
		return false
	}
	d.committedSeq = result.Seq
	d.lastResult = result
	d.Loaded = true
	return true
}

// LastResult returns the newest committed run and whether the dataset
// exists. The result pointer is treated as immutable once committed.
func (s *AppState) LastResult(id string) (*models.RunResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.datasets[id]
	if !ok {
		return nil, false
	}
	return d.lastResult, true
}

// UpdateConfig replaces a dataset's config, creating the dataset on first
// use. The caller passes a fresh value; nothing aliases the stored config.
func (s *AppState) UpdateConfig(id string, cfg models.DatasetConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensure(id).Config = cfg
}

// GetConfig returns a copy of a dataset's config.
func (s *AppState) GetConfig(id string) (models.DatasetConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.datasets[id]
	if !ok {
		return models.DatasetConfig{}, false
	}
	return d.Config, true
}

// GetConditionSnapshot returns the revert point for pending condition edits.
func (s *AppState) GetConditionSnapshot(id string) []models.Condition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d, ok := s.datasets[id]; ok {
		return d.ConditionSnapshot
	}
	return nil
}

// IsLoaded reports whether a dataset has committed at least one run.
func (s *AppState) IsLoaded(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.datasets[id]
	return ok && d.Loaded
}

// SnapshotConditions records the current saved condition list as the revert
// point for subsequent pending edits.
func (s *AppState) SnapshotConditions(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.datasets[id]; ok {
		d.ConditionSnapshot = models.SavedConditions(d.Config.Conditions)
	}
}
