package scan

import (
	"context"
	"sync"
	"time"

	"bookmark-cataloger/internal/crawler"
	"bookmark-cataloger/internal/models"
)

// Job is the live state of one scan. The caller creates it before the scan
// starts so pause and resume requests can reach it at any time.
type Job struct {
	gate crawler.Gate

	mu      sync.Mutex
	running bool
	state   models.ScanState
}

func NewJob() *Job { return &Job{} }

func (j *Job) start(opts models.ScanOptions, queue []string, at time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.running = true
	j.state = models.ScanState{
		InProgress:     true,
		Options:        opts,
		RemainingQueue: append([]string(nil), queue...),
		TotalPlanned:   len(queue),
		StartedAt:      at,
	}
}

// complete drops url from the remaining queue.
func (j *Job) complete(url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	q := j.state.RemainingQueue
	for i, u := range q {
		if u == url {
			j.state.RemainingQueue = append(q[:i], q[i+1:]...)
			return
		}
	}
}

func (j *Job) finish() {
	j.mu.Lock()
	j.running = false
	j.state = models.ScanState{}
	j.mu.Unlock()
	j.gate.Resume()
}

// Pause stops workers from taking new URLs. It reports false when the scan
// is not running or already paused.
func (j *Job) Pause() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running || !j.gate.Pause() {
		return false
	}
	j.state.Paused = true
	return true
}

// Resume releases paused workers. It reports false when nothing was paused.
func (j *Job) Resume() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running || !j.gate.Resume() {
		return false
	}
	j.state.Paused = false
	return true
}

// State returns a copy of the scan state; ok is false outside a running scan.
func (j *Job) State() (state models.ScanState, ok bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return models.ScanState{}, false
	}
	s := j.state
	s.RemainingQueue = append([]string(nil), j.state.RemainingQueue...)
	return s, true
}

func (j *Job) wait(ctx context.Context) error { return j.gate.Wait(ctx) }
