package queue

import (
	"os"
	"path/filepath"
	"testing"

	"verbatim/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatName(t *testing.T) {
	h := Heartbeat{Estimate: 42.6, Start: 1700000000, File: "my_long_file name.mp3"}
	assert.Equal(t, "43_1700000000_my_long_file name.mp3", h.Name())
}

func TestParseHeartbeat(t *testing.T) {
	t.Run("Underscores in filename survive", func(t *testing.T) {
		h, err := ParseHeartbeat("60_1700000000_a_b_c.mp3")
		require.NoError(t, err)
		assert.Equal(t, 60.0, h.Estimate)
		assert.Equal(t, int64(1700000000), h.Start)
		assert.Equal(t, "a_b_c.mp3", h.File)
	})

	t.Run("Fractional estimate accepted", func(t *testing.T) {
		h, err := ParseHeartbeat("12.5_1700000000_a.mp3")
		require.NoError(t, err)
		assert.Equal(t, 12.5, h.Estimate)
	})

	t.Run("Round trip", func(t *testing.T) {
		in := Heartbeat{Estimate: 90, Start: 1700000001, File: "clip_final_v2.wav"}
		out, err := ParseHeartbeat(in.Name())
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("Malformed names rejected", func(t *testing.T) {
		for _, name := range []string{"", "a.mp3", "60_a.mp3", "x_y_a.mp3", "60_y_a.mp3"} {
			_, err := ParseHeartbeat(name)
			assert.ErrorIs(t, err, ErrMalformedHeartbeat, name)
		}
	})
}

func TestWriteHeartbeatKeepsOnePerUser(t *testing.T) {
	s := store.New(t.TempDir())

	first, err := WriteHeartbeat(s, "u1", Heartbeat{Estimate: 60, Start: 1700000000, File: "a.mp3"})
	require.NoError(t, err)
	// A lock file in the worker directory must survive the reset.
	lock := filepath.Join(s.WorkerDir("u1"), ".janitor.lock")
	require.NoError(t, os.WriteFile(lock, nil, 0o644))

	second, err := WriteHeartbeat(s, "u1", Heartbeat{Estimate: 30, Start: 1700000100, File: "b.mp3"})
	require.NoError(t, err)

	_, err = os.Stat(first)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(second)
	assert.NoError(t, err)
	_, err = os.Stat(lock)
	assert.NoError(t, err)

	entries, err := os.ReadDir(s.WorkerDir("u1"))
	require.NoError(t, err)
	var heartbeats int
	for _, e := range entries {
		if e.Name()[0] != '.' {
			heartbeats++
		}
	}
	assert.Equal(t, 1, heartbeats)
}
