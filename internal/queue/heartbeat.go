package queue

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"verbatim/internal/store"
)

// Heartbeat is the zero-byte progress file the worker keeps under
// worker/<user>/ while a job runs. The filename is the payload:
// <estimate_seconds>_<start_unix_seconds>_<original_filename>.
type Heartbeat struct {
	Estimate float64 // processing-time estimate in seconds
	Start    int64   // acquisition time, unix seconds
	File     string  // original inbox filename, underscores preserved
}

// ErrMalformedHeartbeat marks filenames that do not decompose into at least
// estimate, start and filename fields.
var ErrMalformedHeartbeat = fmt.Errorf("malformed heartbeat filename")

// Name renders the heartbeat filename. The estimate is written as whole
// seconds; Parse accepts fractional values for compatibility.
func (h Heartbeat) Name() string {
	return fmt.Sprintf("%d_%d_%s", int64(math.Round(h.Estimate)), h.Start, h.File)
}

// ParseHeartbeat decodes a heartbeat filename. Fields from index 2 onward are
// rejoined so underscores inside the original filename survive.
func ParseHeartbeat(name string) (Heartbeat, error) {
	parts := strings.Split(name, "_")
	if len(parts) < 3 {
		return Heartbeat{}, ErrMalformedHeartbeat
	}
	estimate, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return Heartbeat{}, ErrMalformedHeartbeat
	}
	start, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Heartbeat{}, ErrMalformedHeartbeat
	}
	return Heartbeat{
		Estimate: estimate,
		Start:    int64(start),
		File:     strings.Join(parts[2:], "_"),
	}, nil
}

// WriteHeartbeat resets the user's worker directory and creates the heartbeat
// file, keeping at most one heartbeat per user.
func WriteHeartbeat(s *store.Store, user string, h Heartbeat) (string, error) {
	dir := s.WorkerDir(user)
	if err := ResetWorkerDir(s, user); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create worker dir: %w", err)
	}
	path := filepath.Join(dir, h.Name())
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create heartbeat: %w", err)
	}
	return path, f.Close()
}

// ResetWorkerDir removes any stale heartbeats for the user. Lock files are
// left alone.
func ResetWorkerDir(s *store.Store, user string) error {
	entries, err := os.ReadDir(s.WorkerDir(user))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if err := os.Remove(filepath.Join(s.WorkerDir(user), e.Name())); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
