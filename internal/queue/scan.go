// Package queue implements the filesystem-backed job queue shared by the
// frontend and the worker: processing markers as single-acquirer locks,
// heartbeat files as the progress channel, and a global FIFO scan ordered by
// inbox modification time.
package queue

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"verbatim/internal/store"
)

// Candidate is an inbox entry the worker may pick up.
type Candidate struct {
	User  string
	File  string
	Path  string
	MTime time.Time
}

// Scanner enumerates inbox jobs across all users.
type Scanner struct {
	store        *store.Store
	stuckTimeout time.Duration
}

func NewScanner(s *store.Store, stuckTimeout time.Duration) *Scanner {
	return &Scanner{store: s, stuckTimeout: stuckTimeout}
}

// Scan walks the global inbox and splits entries into eligible candidates,
// sorted by mtime ascending with path as tiebreak, and stuck jobs whose
// processing marker outlived the timeout. Entries with a live marker or a
// finished outbox artifact are skipped.
func (sc *Scanner) Scan(now time.Time) (eligible, stuck []Candidate, err error) {
	users, err := os.ReadDir(sc.store.InRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	for _, u := range users {
		if !u.IsDir() {
			continue
		}
		user := u.Name()
		entries, err := os.ReadDir(sc.store.InDir(user))
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.Type().IsRegular() || store.IsReserved(e.Name()) {
				continue
			}
			c := Candidate{
				User: user,
				File: e.Name(),
				Path: sc.store.InputPath(user, e.Name()),
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			c.MTime = info.ModTime()

			// Completed jobs keep their inbox entry only until the worker
			// removes it; never pick them up again.
			if _, err := os.Stat(sc.store.ViewerPath(user, c.File)); err == nil {
				continue
			}

			if _, err := os.Stat(sc.store.MarkerPath(user, c.File)); err == nil {
				age, aerr := MarkerAge(sc.store, user, c.File, now)
				if aerr != nil {
					// Unreadable marker: discard it and let the job run again.
					ReleaseMarker(sc.store, user, c.File)
				} else if age >= sc.stuckTimeout {
					stuck = append(stuck, c)
					continue
				} else {
					continue
				}
			}

			eligible = append(eligible, c)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].MTime.Equal(eligible[j].MTime) {
			return eligible[i].MTime.Before(eligible[j].MTime)
		}
		return eligible[i].Path < eligible[j].Path
	})
	return eligible, stuck, nil
}

// UserOf extracts the user id from an inbox path (in/<user>/<file>).
func UserOf(path string) string {
	return filepath.Base(filepath.Dir(path))
}
