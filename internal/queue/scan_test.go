package queue

import (
	"os"
	"testing"
	"time"

	"verbatim/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touchInbox(t *testing.T, s *store.Store, user, file string, mtime time.Time) {
	t.Helper()
	newInbox(t, s, user, file)
	require.NoError(t, os.Chtimes(s.InputPath(user, file), mtime, mtime))
}

func TestScanOrdersGloballyByMTime(t *testing.T) {
	s := store.New(t.TempDir())
	sc := NewScanner(s, 10*time.Minute)
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	touchInbox(t, s, "u2", "late.mp3", base.Add(2*time.Second))
	touchInbox(t, s, "u1", "early.mp3", base)
	touchInbox(t, s, "u3", "middle.mp3", base.Add(time.Second))

	eligible, stuck, err := sc.Scan(time.Now())
	require.NoError(t, err)
	assert.Empty(t, stuck)
	require.Len(t, eligible, 3)
	assert.Equal(t, "early.mp3", eligible[0].File)
	assert.Equal(t, "middle.mp3", eligible[1].File)
	assert.Equal(t, "late.mp3", eligible[2].File)
}

func TestScanTiebreaksByPath(t *testing.T) {
	s := store.New(t.TempDir())
	sc := NewScanner(s, 10*time.Minute)
	mtime := time.Now().Add(-time.Hour).Truncate(time.Second)

	// Identical mtimes; the lexicographically smaller path wins.
	touchInbox(t, s, "ub", "t.wav", mtime)
	touchInbox(t, s, "ua", "t.wav", mtime)

	eligible, _, err := sc.Scan(time.Now())
	require.NoError(t, err)
	require.Len(t, eligible, 2)
	assert.Equal(t, "ua", eligible[0].User)
	assert.Equal(t, "ub", eligible[1].User)
}

func TestScanSkipsReservedAndCompleted(t *testing.T) {
	s := store.New(t.TempDir())
	sc := NewScanner(s, 10*time.Minute)

	newInbox(t, s, "u1", "a.mp3")
	newInbox(t, s, "u1", store.HotwordsFile)
	newInbox(t, s, "u1", store.LanguageFile)
	newInbox(t, s, "u1", "done.mp3")
	require.NoError(t, os.MkdirAll(s.OutDir("u1"), 0o755))
	require.NoError(t, os.WriteFile(s.ViewerPath("u1", "done.mp3"), nil, 0o644))

	eligible, stuck, err := sc.Scan(time.Now())
	require.NoError(t, err)
	assert.Empty(t, stuck)
	require.Len(t, eligible, 1)
	assert.Equal(t, "a.mp3", eligible[0].File)
}

func TestScanMarkerHandling(t *testing.T) {
	s := store.New(t.TempDir())
	sc := NewScanner(s, 10*time.Minute)

	t.Run("Live marker hides the job", func(t *testing.T) {
		newInbox(t, s, "u1", "running.mp3")
		require.NoError(t, AcquireMarker(s, "u1", "running.mp3"))

		eligible, stuck, err := sc.Scan(time.Now())
		require.NoError(t, err)
		assert.Empty(t, eligible)
		assert.Empty(t, stuck)
	})

	t.Run("Expired marker reports the job stuck", func(t *testing.T) {
		eligible, stuck, err := sc.Scan(time.Now().Add(11 * time.Minute))
		require.NoError(t, err)
		assert.Empty(t, eligible)
		require.Len(t, stuck, 1)
		assert.Equal(t, "running.mp3", stuck[0].File)
	})

	t.Run("Unreadable marker is discarded", func(t *testing.T) {
		require.NoError(t, os.WriteFile(s.MarkerPath("u1", "running.mp3"), []byte("junk"), 0o644))

		eligible, stuck, err := sc.Scan(time.Now())
		require.NoError(t, err)
		assert.Empty(t, stuck)
		require.Len(t, eligible, 1)
		assert.Equal(t, "running.mp3", eligible[0].File)
		_, serr := os.Stat(s.MarkerPath("u1", "running.mp3"))
		assert.True(t, os.IsNotExist(serr))
	})
}

func TestUserOf(t *testing.T) {
	s := store.New("/srv/verbatim")
	assert.Equal(t, "u1", UserOf(s.InputPath("u1", "a.mp3")))
}
