package queue

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"verbatim/internal/store"
)

// ErrAlreadyAcquired is returned when another pickup created the processing
// marker first.
var ErrAlreadyAcquired = errors.New("job already acquired")

// AcquireMarker creates the .processing sibling of an inbox file with
// open-exclusive semantics, so exactly one worker pickup can win. The marker
// body is the acquisition unix timestamp.
func AcquireMarker(s *store.Store, user, file string) error {
	f, err := os.OpenFile(s.MarkerPath(user, file), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return ErrAlreadyAcquired
		}
		return fmt.Errorf("create processing marker: %w", err)
	}
	_, werr := fmt.Fprintf(f, "%d", time.Now().Unix())
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}

// ReleaseMarker removes the processing marker. Missing markers are not an
// error; the frontend may have deleted the job.
func ReleaseMarker(s *store.Store, user, file string) error {
	if err := os.Remove(s.MarkerPath(user, file)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MarkerAge reads the acquisition timestamp and returns how long the marker
// has existed. A marker with unreadable content yields an error so the caller
// can discard it.
func MarkerAge(s *store.Store, user, file string, now time.Time) (time.Duration, error) {
	b, err := os.ReadFile(s.MarkerPath(user, file))
	if err != nil {
		return 0, err
	}
	start, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid processing marker: %w", err)
	}
	return now.Sub(time.Unix(start, 0)), nil
}
