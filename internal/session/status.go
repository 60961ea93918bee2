// Package session holds the frontend's per-browser state: the derived file
// list, the progress listener's patch, and the refresh event bus. Every
// user's file list is derived from the filesystem on demand; sessions never
// share state with each other or with the worker.
package session

import (
	"fmt"
	"time"
)

// State is the derived lifecycle state of a job. It is never persisted; the
// filename conventions on disk are the schema it is derived from.
type State string

const (
	// StateQueued: inbox entry exists, no processing marker, no editor artifact.
	StateQueued State = "queued"
	// StateAcquiring: the worker wrote a processing marker but no heartbeat yet.
	StateAcquiring State = "acquiring"
	// StateProcessing: a heartbeat for the file exists.
	StateProcessing State = "processing"
	// StatePostProcessing: heartbeat progress passed the finalization threshold.
	StatePostProcessing State = "post-processing"
	// StateDone: the editor artifact exists in the outbox.
	StateDone State = "done"
	// StateErrored: the input was moved to the error directory.
	StateErrored State = "errored"
)

// JobStatus describes one job for the queue and result views.
type JobStatus struct {
	FileName string    `json:"file_name"`
	State    State     `json:"state"`
	Message  string    `json:"message"`
	Progress float64   `json:"progress"` // 0..1
	Estimate float64   `json:"estimate"` // remaining processing seconds
	MTime    time.Time `json:"mtime"`
}

// Pending reports whether the job still occupies a queue slot.
func (j JobStatus) Pending() bool {
	switch j.State {
	case StateDone, StateErrored:
		return false
	}
	return true
}

// FormatWait renders a second count as HH:MM:SS.
func FormatWait(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(seconds + 0.5)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}
