// Package janitor reclaims per-user trees that have been idle long enough
// that the owning browser id is almost certainly gone.
package janitor

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"verbatim/internal/queue"
	"verbatim/internal/store"
)

const (
	// DefaultInterval is how often the sweep runs.
	DefaultInterval = 24 * time.Hour
	// DefaultIdle is how long a user tree must sit untouched before removal.
	DefaultIdle = 7 * 24 * time.Hour

	lockName = ".janitor.lock"
)

// Janitor sweeps idle user trees. The local user is never swept; offline
// deployments keep their data until the user deletes it.
type Janitor struct {
	store *store.Store
	idle  time.Duration
}

func New(s *store.Store) *Janitor {
	return &Janitor{store: s, idle: DefaultIdle}
}

func NewWithIdle(s *store.Store, idle time.Duration) *Janitor {
	return &Janitor{store: s, idle: idle}
}

// Run sweeps on a fixed interval until the context is cancelled. One sweep
// runs immediately so restarts do not postpone cleanup by a full interval.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	j.Sweep(time.Now())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			j.Sweep(now)
		}
	}
}

// Sweep removes every user tree idle beyond the threshold. Idleness is
// re-checked under a per-user advisory lock so a sweep racing an upload or a
// worker pickup backs off.
func (j *Janitor) Sweep(now time.Time) {
	for _, user := range j.store.Users(false) {
		if !j.idleSince(user, now) {
			continue
		}

		lock, err := queue.Acquire(filepath.Join(j.store.WorkerDir(user), lockName))
		if err != nil {
			if !errors.Is(err, queue.ErrLocked) {
				slog.Warn("Janitor failed to lock user tree", "user_id", user, "error", err)
			}
			continue
		}
		// The tree may have become active while we were deciding.
		if j.idleSince(user, now) {
			j.remove(user)
		}
		lock.Release()
	}
}

func (j *Janitor) remove(user string) {
	slog.Info("Removing idle user tree", "user_id", user)
	for _, dir := range j.userDirs(user) {
		if err := os.RemoveAll(dir); err != nil {
			slog.Error("Failed to remove user directory", "dir", dir, "error", err)
		}
	}
}

// idleSince reports whether no file under the user's four directories was
// modified within the idle window. Directory mtimes are ignored: taking the
// advisory lock touches the worker directory and must not count as activity.
func (j *Janitor) idleSince(user string, now time.Time) bool {
	cutoff := now.Add(-j.idle)
	for _, dir := range j.userDirs(user) {
		active := false
		filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() || d.Name() == lockName {
				return nil
			}
			info, err := d.Info()
			if err == nil && info.ModTime().After(cutoff) {
				active = true
				return filepath.SkipAll
			}
			return nil
		})
		if active {
			return false
		}
	}
	return true
}

func (j *Janitor) userDirs(user string) []string {
	return []string{
		j.store.InDir(user),
		j.store.OutDir(user),
		j.store.ErrorDir(user),
		j.store.WorkerDir(user),
	}
}
