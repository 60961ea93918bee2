package session

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"verbatim/internal/queue"
	"verbatim/internal/store"
)

const (
	// progressCap keeps the bar short of 100% until the artifacts land.
	progressCap = 0.975
	// finalizeThreshold is where the view switches to the finalization note.
	finalizeThreshold = 0.95
)

// Listener polls the user's heartbeat directory and patches the session with
// live progress. One listener tick is cheap (a single ReadDir plus stats), so
// every websocket connection runs its own.
type Listener struct {
	store    *store.Store
	Interval time.Duration
}

func NewListener(s *store.Store) *Listener {
	return &Listener{store: s, Interval: time.Second}
}

// Run ticks until the context is cancelled.
func (l *Listener) Run(ctx context.Context, sess *Session) {
	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.Tick(now, sess)
		}
	}
}

// Tick reads the user's heartbeat, updates the session patch and publishes
// refresh events. Malformed heartbeats and heartbeats whose input vanished
// are deleted on sight.
func (l *Listener) Tick(now time.Time, sess *Session) {
	dir := l.store.WorkerDir(sess.UserID)
	var patch *JobStatus
	current := ""

	entries, err := os.ReadDir(dir)
	if err == nil {
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || strings.HasPrefix(name, ".") {
				continue
			}
			hb, err := queue.ParseHeartbeat(name)
			if err != nil {
				os.Remove(filepath.Join(dir, name))
				continue
			}
			if _, err := os.Stat(l.store.InputPath(sess.UserID, hb.File)); err != nil {
				// Input gone; the job finished or was deleted.
				os.Remove(filepath.Join(dir, name))
				continue
			}
			patch = l.describe(now, hb)
			current = hb.File
			break
		}
	}

	sess.SetUpdate(patch)
	sess.Bus.Publish(EventQueue)

	resultsDirty := sess.FileInProgress() != current
	if resultsDirty {
		sess.SetFileInProgress(current)
	}
	if errs, err := l.store.ListErrors(sess.UserID); err == nil {
		if sess.ObserveErrors(len(errs)) {
			resultsDirty = true
		}
	}
	if resultsDirty {
		sess.Bus.Publish(EventResults)
	}
}

func (l *Listener) describe(now time.Time, hb queue.Heartbeat) *JobStatus {
	elapsed := float64(now.Unix() - hb.Start)
	progress := elapsed / math.Max(1, hb.Estimate)
	if progress < 0 {
		progress = 0
	}
	if progress > progressCap {
		progress = progressCap
	}
	remaining := math.Round(math.Max(1, hb.Estimate-elapsed))

	status := &JobStatus{
		FileName: hb.File,
		State:    StateProcessing,
		Message:  fmt.Sprintf("Transcribing. Estimated time remaining: %s", FormatWait(remaining)),
		Progress: progress,
		Estimate: remaining,
	}
	if progress > finalizeThreshold {
		status.State = StatePostProcessing
		status.Message = "file is being finalized"
	}
	return status
}
