package artifacts

import (
	"os"
	"strings"
	"testing"

	"verbatim/internal/store"
	"verbatim/internal/transcribe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedViewer(t *testing.T, s *store.Store, user, file string) string {
	t.Helper()
	content, err := CreateViewer([]transcribe.Segment{
		{Start: 0, End: 1, Text: "original"},
	}, file, "de")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(s.OutDir(user), 0o755))
	require.NoError(t, os.WriteFile(s.ViewerPath(user, file), []byte(content), 0o644))
	require.NoError(t, os.WriteFile(s.MediaPath(user, file), []byte("mp4 bytes"), 0o644))
	return content
}

func TestApplyUpdate(t *testing.T) {
	content := "head</nav>OLD BODYvar fileName = \"x\";tail"

	merged, err := ApplyUpdate(content, "NEW BODY")
	require.NoError(t, err)
	assert.Equal(t, "head</nav>NEW BODYvar fileName = \"x\";tail", merged)

	t.Run("Missing markers rejected", func(t *testing.T) {
		_, err := ApplyUpdate("no markers here", "x")
		assert.Error(t, err)
	})
}

func TestPrepareDownload(t *testing.T) {
	s := store.New(t.TempDir())
	user, file := "u1", "talk.mp3"
	seedViewer(t, s, user, file)
	require.NoError(t, SaveUpdate(s, user, file, "<p>edited transcript</p>"))

	require.NoError(t, PrepareDownload(s, user, file))

	final, err := os.ReadFile(s.FinalPath(user, file))
	require.NoError(t, err)

	t.Run("Edit is merged", func(t *testing.T) {
		assert.Contains(t, string(final), "<p>edited transcript</p>")
		assert.NotContains(t, string(final), "original")
	})

	t.Run("Media is embedded once", func(t *testing.T) {
		assert.Equal(t, 1, strings.Count(string(final), base64Marker))
	})

	t.Run("Update file is consumed", func(t *testing.T) {
		_, err := os.Stat(s.UpdatePath(user, file))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("Second prep is byte-identical", func(t *testing.T) {
		require.NoError(t, PrepareDownload(s, user, file))
		again, err := os.ReadFile(s.FinalPath(user, file))
		require.NoError(t, err)
		assert.Equal(t, final, again)
	})

	t.Run("Fresh save after download creates a new update", func(t *testing.T) {
		require.NoError(t, SaveUpdate(s, user, file, "<p>second edit</p>"))
		require.NoError(t, PrepareDownload(s, user, file))
		final, err := os.ReadFile(s.FinalPath(user, file))
		require.NoError(t, err)
		assert.Contains(t, string(final), "<p>second edit</p>")
		assert.Equal(t, 1, strings.Count(string(final), base64Marker))
	})
}
