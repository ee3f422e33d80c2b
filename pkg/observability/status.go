package observability

import (
	"errors"
	"maps"
	"sync"
	"time"
)

// PhaseDone is reported by a rank that has returned from its run.
const PhaseDone = "done"

var (
	// ErrNotAnnounced is returned by Ready before the root announces a job.
	ErrNotAnnounced = errors.New("job not announced")
	// ErrJobFailed is returned by Ready once any rank has failed.
	ErrJobFailed = errors.New("job failed")
)

// StatusSnapshot is the JSON body served on /status.
type StatusSnapshot struct {
	RunID     string         `json:"run_id,omitempty"`
	Started   time.Time      `json:"started"`
	Uptime    string         `json:"uptime"`
	Documents int64          `json:"documents"`
	Phases    map[int]string `json:"phases"`
	Error     string         `json:"error,omitempty"`
}

// JobStatus tracks the live phase of every rank hosted by this process.
// A nil *JobStatus accepts every update and reports nothing.
type JobStatus struct {
	mu      sync.RWMutex
	runID   string
	started time.Time
	docs    int64
	phases  map[int]string
	err     error
}

// NewJobStatus returns an empty status started now.
func NewJobStatus() *JobStatus {
	return &JobStatus{started: time.Now(), phases: make(map[int]string)}
}

// Announce records the run id the ranks agreed on.
func (s *JobStatus) Announce(runID string) {
	if s == nil {
		return
	}

	s.mu.Lock()
	s.runID = runID
	s.mu.Unlock()
}

// Enter moves rank into phase.
func (s *JobStatus) Enter(rank int, phase string) {
	if s == nil {
		return
	}

	s.mu.Lock()
	s.phases[rank] = phase
	s.mu.Unlock()
}

// AddDocuments counts n more signed documents.
func (s *JobStatus) AddDocuments(n int64) {
	if s == nil {
		return
	}

	s.mu.Lock()
	s.docs += n
	s.mu.Unlock()
}

// Fail keeps the first error reported by any rank.
func (s *JobStatus) Fail(err error) {
	if s == nil || err == nil {
		return
	}

	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

// Ready reports whether the job is announced and no rank has failed.
func (s *JobStatus) Ready() error {
	if s == nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.err != nil:
		return errors.Join(ErrJobFailed, s.err)
	case s.runID == "":
		return ErrNotAnnounced
	}

	return nil
}

// Snapshot copies the current state.
func (s *JobStatus) Snapshot() StatusSnapshot {
	if s == nil {
		return StatusSnapshot{Phases: map[int]string{}}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatusSnapshot{
		RunID:     s.runID,
		Started:   s.started,
		Uptime:    time.Since(s.started).Round(time.Millisecond).String(),
		Documents: s.docs,
		Phases:    maps.Clone(s.phases),
	}

	if s.err != nil {
		snap.Error = s.err.Error()
	}

	return snap
}
