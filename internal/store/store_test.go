package store

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFileName(t *testing.T) {
	t.Run("Strips path components", func(t *testing.T) {
		assert.Equal(t, "evil.mp3", SanitizeFileName("../../etc/evil.mp3"))
		assert.Equal(t, "evil.mp3", SanitizeFileName(`C:\Users\x\evil.mp3`))
	})

	t.Run("Replaces unsafe characters", func(t *testing.T) {
		assert.Equal(t, "a_b_c_.mp3", SanitizeFileName("a b\tc?.mp3"))
		assert.Equal(t, "s_ance.wav", SanitizeFileName("séance.wav"))
	})

	t.Run("Shields leading dot", func(t *testing.T) {
		assert.Equal(t, "f.hidden", SanitizeFileName(".hidden"))
	})

	t.Run("Keeps safe names unchanged", func(t *testing.T) {
		assert.Equal(t, "recording_2024-01.mp3", SanitizeFileName("recording_2024-01.mp3"))
	})
}

func TestSaveUpload(t *testing.T) {
	s := New(t.TempDir())

	name, err := s.SaveUpload("u1", "a.mp3", strings.NewReader("payload"))
	require.NoError(t, err)
	assert.Equal(t, "a.mp3", name)

	data, err := os.ReadFile(s.InputPath("u1", "a.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// No temp file left behind.
	_, err = os.Stat(s.InputPath("u1", "a.mp3") + ".part")
	assert.True(t, os.IsNotExist(err))
}

func TestSaveUploadDisambiguation(t *testing.T) {
	s := New(t.TempDir())

	for i, want := range []string{"a.mp3", "a_1.mp3", "a_2.mp3"} {
		name, err := s.SaveUpload("u1", "a.mp3", strings.NewReader(strconv.Itoa(i)))
		require.NoError(t, err)
		assert.Equal(t, want, name)
	}

	// Each upload kept its own payload.
	data, err := os.ReadFile(s.InputPath("u1", "a_2.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "2", string(data))
}

func TestSaveUploadConcurrentSameName(t *testing.T) {
	s := New(t.TempDir())

	const uploads = 8
	names := make([]string, uploads)
	errs := make([]error, uploads)
	var wg sync.WaitGroup
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			names[i], errs[i] = s.SaveUpload("u1", "a.mp3", strings.NewReader(strconv.Itoa(i)))
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < uploads; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[names[i]], "name %s assigned twice", names[i])
		seen[names[i]] = true

		data, err := os.ReadFile(s.InputPath("u1", names[i]))
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(i), string(data))
	}

	files, err := s.ListInbox("u1")
	require.NoError(t, err)
	assert.Len(t, files, uploads)
}

func TestSaveUploadCollisionLimit(t *testing.T) {
	s := New(t.TempDir())
	s.CollisionLimit = 2

	for i := 0; i < 3; i++ {
		_, err := s.SaveUpload("u1", "a.mp3", strings.NewReader("x"))
		require.NoError(t, err)
	}

	_, err := s.SaveUpload("u1", "a.mp3", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrTooManyCollisions)
}

func TestLanguageAndHotwords(t *testing.T) {
	s := New(t.TempDir())

	t.Run("Language defaults", func(t *testing.T) {
		assert.Equal(t, DefaultLanguage, s.ReadLanguage("u1"))
		require.NoError(t, s.WriteLanguage("u1", "en"))
		assert.Equal(t, "en", s.ReadLanguage("u1"))
		require.NoError(t, s.WriteLanguage("u1", "  "))
		assert.Equal(t, DefaultLanguage, s.ReadLanguage("u1"))
	})

	t.Run("Empty hotwords removes the file", func(t *testing.T) {
		require.NoError(t, s.WriteHotwords("u1", "alpha\n\nbeta\n"))
		assert.Equal(t, []string{"alpha", "beta"}, s.ReadHotwords("u1"))

		require.NoError(t, s.WriteHotwords("u1", ""))
		assert.Nil(t, s.ReadHotwords("u1"))
		_, err := os.Stat(filepath.Join(s.InDir("u1"), HotwordsFile))
		assert.True(t, os.IsNotExist(err))
	})
}

func TestListInboxSkipsReserved(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, os.MkdirAll(s.InDir("u1"), 0o755))
	for _, name := range []string{"a.mp3", HotwordsFile, LanguageFile, "a.mp3.processing", "b.wav.part", "b.wav"} {
		require.NoError(t, os.WriteFile(s.InputPath("u1", name), nil, 0o644))
	}

	files, err := s.ListInbox("u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.mp3", "b.wav"}, files)
}

func TestErrorText(t *testing.T) {
	s := New(t.TempDir())
	assert.Equal(t, "transcription failed", s.ErrorText("u1", "a.mp3"))

	require.NoError(t, os.MkdirAll(s.ErrorDir("u1"), 0o755))
	require.NoError(t, os.WriteFile(s.ErrorTextPath("u1", "a.mp3"), []byte("the file could not be read"), 0o644))
	assert.Equal(t, "the file could not be read", s.ErrorText("u1", "a.mp3"))
}

func TestDeleteJob(t *testing.T) {
	s := New(t.TempDir())
	user := "u1"
	require.NoError(t, os.MkdirAll(s.InDir(user), 0o755))
	require.NoError(t, os.MkdirAll(s.OutDir(user), 0o755))
	require.NoError(t, os.MkdirAll(s.ErrorDir(user), 0o755))
	require.NoError(t, os.MkdirAll(s.WorkerDir(user), 0o755))

	require.NoError(t, os.WriteFile(s.InputPath(user, "a.mp3"), nil, 0o644))
	require.NoError(t, os.WriteFile(s.MarkerPath(user, "a.mp3"), nil, 0o644))
	require.NoError(t, os.WriteFile(s.ViewerPath(user, "a.mp3"), nil, 0o644))
	require.NoError(t, os.WriteFile(s.SRTPath(user, "a.mp3"), nil, 0o644))
	require.NoError(t, os.WriteFile(s.ErrorPath(user, "a.mp3"), nil, 0o644))
	require.NoError(t, os.WriteFile(s.ErrorTextPath(user, "a.mp3"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.WorkerDir(user), "60_1700000000_a.mp3"), nil, 0o644))
	// A heartbeat for another job survives.
	require.NoError(t, os.WriteFile(filepath.Join(s.WorkerDir(user), "60_1700000000_b.mp3"), nil, 0o644))

	require.NoError(t, s.DeleteJob(user, "a.mp3"))

	for _, path := range []string{
		s.InputPath(user, "a.mp3"),
		s.MarkerPath(user, "a.mp3"),
		s.ViewerPath(user, "a.mp3"),
		s.SRTPath(user, "a.mp3"),
		s.ErrorPath(user, "a.mp3"),
		s.ErrorTextPath(user, "a.mp3"),
		filepath.Join(s.WorkerDir(user), "60_1700000000_a.mp3"),
	} {
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), path)
	}
	_, err := os.Stat(filepath.Join(s.WorkerDir(user), "60_1700000000_b.mp3"))
	assert.NoError(t, err)
}

func TestListCompleted(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, os.MkdirAll(s.OutDir("u1"), 0o755))
	for _, name := range []string{"a.mp3.html", "a.mp3.srt", "a.mp3.mp4", "b.wav.htmlfinal", "c.ogg.html"} {
		require.NoError(t, os.WriteFile(filepath.Join(s.OutDir("u1"), name), nil, 0o644))
	}

	done, err := s.ListCompleted("u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.mp3", "c.ogg"}, done)
}

func TestUsers(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, os.MkdirAll(s.InDir("u1"), 0o755))
	require.NoError(t, os.MkdirAll(s.ErrorDir("u2"), 0o755))
	require.NoError(t, os.MkdirAll(s.OutDir(LocalUser), 0o755))

	assert.Equal(t, []string{"u1", "u2"}, s.Users(false))
	assert.Equal(t, []string{LocalUser, "u1", "u2"}, s.Users(true))
}
