package session

import (
	"context"
	"os"
	"testing"
	"time"

	"verbatim/internal/media"
	"verbatim/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueueRig(t *testing.T) (*store.Store, *QueueView) {
	t.Helper()
	s := store.New(t.TempDir())
	require.NoError(t, s.EnsureLayout())
	estimator := media.NewEstimatorWithProbe(true, "cuda",
		func(context.Context, string) (float64, error) { return 600, nil })
	return s, NewQueueView(s, estimator)
}

func seedUpload(t *testing.T, s *store.Store, user, file string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(s.InDir(user), 0o755))
	require.NoError(t, os.WriteFile(s.InputPath(user, file), []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(s.InputPath(user, file), mtime, mtime))
}

func statusFor(t *testing.T, statuses []JobStatus, file string) JobStatus {
	t.Helper()
	for _, st := range statuses {
		if st.FileName == file {
			return st
		}
	}
	t.Fatalf("no status for %s", file)
	return JobStatus{}
}

func TestDescribePositionsAndWait(t *testing.T) {
	s, q := newQueueRig(t)
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	// 600 s of media at the online cuda ratio is a 60 s estimate each.
	seedUpload(t, s, "other", "ahead.mp3", base)
	seedUpload(t, s, "u1", "mine.mp3", base.Add(time.Second))

	statuses, err := q.Describe(context.Background(), NewSession("u1"))
	require.NoError(t, err)
	require.Len(t, statuses, 1)

	mine := statuses[0]
	assert.Equal(t, StateQueued, mine.State)
	assert.Equal(t, 60.0, mine.Estimate)
	// One 60 s job ahead plus our own estimate.
	assert.Equal(t, "Position 2/2. Estimated wait: 00:02:00", mine.Message)
}

func TestDescribeStates(t *testing.T) {
	s, q := newQueueRig(t)
	now := time.Now().Truncate(time.Second)
	sess := NewSession("u1")

	seedUpload(t, s, "u1", "queued.mp3", now.Add(-3*time.Second))

	seedUpload(t, s, "u1", "acquired.mp3", now.Add(-2*time.Second))
	require.NoError(t, os.WriteFile(s.MarkerPath("u1", "acquired.mp3"), []byte("1"), 0o644))

	require.NoError(t, os.MkdirAll(s.OutDir("u1"), 0o755))
	require.NoError(t, os.WriteFile(s.ViewerPath("u1", "done.mp3"), []byte("<html>"), 0o644))

	require.NoError(t, os.MkdirAll(s.ErrorDir("u1"), 0o755))
	require.NoError(t, os.WriteFile(s.ErrorPath("u1", "failed.mp3"), nil, 0o644))
	require.NoError(t, os.WriteFile(s.ErrorTextPath("u1", "failed.mp3"), []byte("the file could not be read"), 0o644))

	statuses, err := q.Describe(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, statuses, 4)

	assert.Equal(t, StateQueued, statusFor(t, statuses, "queued.mp3").State)
	assert.Equal(t, StateAcquiring, statusFor(t, statuses, "acquired.mp3").State)

	done := statusFor(t, statuses, "done.mp3")
	assert.Equal(t, StateDone, done.State)
	assert.Equal(t, 1.0, done.Progress)

	failed := statusFor(t, statuses, "failed.mp3")
	assert.Equal(t, StateErrored, failed.State)
	assert.Equal(t, "the file could not be read", failed.Message)
}

func TestDescribeAppliesListenerPatch(t *testing.T) {
	s, q := newQueueRig(t)
	sess := NewSession("u1")
	seedUpload(t, s, "u1", "running.mp3", time.Now().Add(-time.Minute))

	patch := &JobStatus{
		FileName: "running.mp3",
		State:    StateProcessing,
		Progress: 0.4,
		Estimate: 36,
	}
	sess.SetUpdate(patch)

	statuses, err := q.Describe(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, *patch, statuses[0])
}

func TestDescribeSkipsCommittedInboxEntries(t *testing.T) {
	s, q := newQueueRig(t)
	sess := NewSession("u1")

	// Inbox entry still present but the editor page is already committed:
	// report it once, as done.
	seedUpload(t, s, "u1", "late.mp3", time.Now().Add(-time.Minute))
	require.NoError(t, os.MkdirAll(s.OutDir("u1"), 0o755))
	require.NoError(t, os.WriteFile(s.ViewerPath("u1", "late.mp3"), []byte("<html>"), 0o644))

	statuses, err := q.Describe(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, StateDone, statuses[0].State)
}

func TestDescribeOtherUsersInvisible(t *testing.T) {
	s, q := newQueueRig(t)
	seedUpload(t, s, "stranger", "private.mp3", time.Now().Add(-time.Minute))

	statuses, err := q.Describe(context.Background(), NewSession("u1"))
	require.NoError(t, err)
	assert.Empty(t, statuses)
}
