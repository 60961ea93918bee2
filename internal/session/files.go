package session

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"verbatim/internal/media"
	"verbatim/internal/store"
)

// probeConcurrency bounds the media-probe batch; probes are I/O bound.
const probeConcurrency = 8

// QueueView derives the per-user file list and global queue positions from
// the filesystem. Nothing is cached between calls: the directory tree is the
// source of truth, so a worker pickup between two calls is always reflected.
type QueueView struct {
	store     *store.Store
	estimator *media.Estimator
}

func NewQueueView(s *store.Store, estimator *media.Estimator) *QueueView {
	return &QueueView{store: s, estimator: estimator}
}

type queueEntry struct {
	user     string
	file     string
	path     string
	mtime    time.Time
	estimate float64
}

// globalQueue enumerates every pending inbox entry across all users with its
// processing-time estimate, sorted by mtime then path. Estimates run
// concurrently; the whole batch is awaited before returning so callers render
// a consistent view.
func (q *QueueView) globalQueue(ctx context.Context) ([]queueEntry, error) {
	var entries []queueEntry
	users, err := os.ReadDir(q.store.InRoot())
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, u := range users {
		if !u.IsDir() {
			continue
		}
		files, err := q.store.ListInbox(u.Name())
		if err != nil {
			continue
		}
		for _, f := range files {
			path := q.store.InputPath(u.Name(), f)
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			if _, err := os.Stat(q.store.ViewerPath(u.Name(), f)); err == nil {
				continue
			}
			entries = append(entries, queueEntry{
				user:  u.Name(),
				file:  f,
				path:  path,
				mtime: info.ModTime(),
			})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeConcurrency)
	for i := range entries {
		g.Go(func() error {
			// Each goroutine owns its slice slot; no locking needed.
			entries[i].estimate, _ = q.estimator.Estimate(gctx, entries[i].path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].mtime.Equal(entries[j].mtime) {
			return entries[i].mtime.Before(entries[j].mtime)
		}
		return entries[i].path < entries[j].path
	})
	return entries, nil
}

// Describe builds the user's job list: pending inbox entries with global
// queue positions and ETAs, completed outbox artifacts, and failed jobs with
// their diagnostic. The session's listener patch, when present, overrides
// the matching pending entry.
func (q *QueueView) Describe(ctx context.Context, sess *Session) ([]JobStatus, error) {
	global, err := q.globalQueue(ctx)
	if err != nil {
		return nil, err
	}
	patch := sess.Update()

	var statuses []JobStatus

	inbox, err := q.store.ListInbox(sess.UserID)
	if err != nil {
		return nil, err
	}
	for _, f := range inbox {
		if _, err := os.Stat(q.store.ViewerPath(sess.UserID, f)); err == nil {
			// Completion committed, inbox removal pending.
			continue
		}
		if patch != nil && patch.FileName == f {
			statuses = append(statuses, *patch)
			continue
		}
		statuses = append(statuses, q.describePending(sess.UserID, f, global))
	}

	done, err := q.store.ListCompleted(sess.UserID)
	if err != nil {
		return nil, err
	}
	for _, f := range done {
		info, _ := os.Stat(q.store.ViewerPath(sess.UserID, f))
		status := JobStatus{
			FileName: f,
			State:    StateDone,
			Message:  "transcription complete",
			Progress: 1,
		}
		if info != nil {
			status.MTime = info.ModTime()
		}
		statuses = append(statuses, status)
	}

	failed, err := q.store.ListErrors(sess.UserID)
	if err != nil {
		return nil, err
	}
	for _, f := range failed {
		info, _ := os.Stat(q.store.ErrorPath(sess.UserID, f))
		status := JobStatus{
			FileName: f,
			State:    StateErrored,
			Message:  q.store.ErrorText(sess.UserID, f),
		}
		if info != nil {
			status.MTime = info.ModTime()
		}
		statuses = append(statuses, status)
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].FileName < statuses[j].FileName
	})
	return statuses, nil
}

// describePending computes position and ETA for a queued inbox entry. ETA is
// the sum of estimates of files strictly earlier by mtime plus the file's own
// estimate.
func (q *QueueView) describePending(user, file string, global []queueEntry) JobStatus {
	status := JobStatus{FileName: file, State: StateQueued}
	if _, err := os.Stat(q.store.MarkerPath(user, file)); err == nil {
		status.State = StateAcquiring
	}

	position := 0
	var own *queueEntry
	for i := range global {
		if global[i].user == user && global[i].file == file {
			position = i + 1
			own = &global[i]
			break
		}
	}
	if own == nil {
		return status
	}

	status.MTime = own.mtime
	status.Estimate = own.estimate
	wait := own.estimate
	for i := range global {
		if global[i].mtime.Before(own.mtime) {
			wait += global[i].estimate
		}
	}
	status.Message = formatPosition(position, len(global), wait)
	return status
}

func formatPosition(position, total int, waitSeconds float64) string {
	return fmt.Sprintf("Position %d/%d. Estimated wait: %s",
		position, total, FormatWait(waitSeconds))
}
