// Package store models the on-disk layout shared by the frontend and the
// worker. The directory tree is the schema: per-user inbox, outbox, error and
// worker directories under <root>/data, with filename conventions carrying all
// job state. No state exists anywhere else.
package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const (
	// HotwordsFile holds the per-user bias vocabulary, one term per line.
	HotwordsFile = "hotwords.txt"
	// LanguageFile holds the per-user ISO language code.
	LanguageFile = "language.txt"
	// ProcessingSuffix marks an inbox file as acquired by the worker.
	ProcessingSuffix = ".processing"
	// DefaultLanguage applies when no language.txt exists.
	DefaultLanguage = "de"
	// LocalUser is the reserved user id for offline deployments.
	LocalUser = "local"

	maxNameCollisions = 10000
)

// ErrTooManyCollisions is returned when a filename cannot be disambiguated
// within the collision limit.
var ErrTooManyCollisions = errors.New("too many files with the same name")

// OutSuffixes enumerates every artifact extension the outbox may hold for a
// job stem.
var OutSuffixes = []string{".html", ".mp4", ".srt", ".htmlupdate", ".htmlfinal"}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Store resolves paths inside the shared data tree.
type Store struct {
	root string

	// CollisionLimit bounds filename disambiguation; uploads beyond it are
	// rejected with ErrTooManyCollisions.
	CollisionLimit int
}

func New(root string) *Store {
	return &Store{root: root, CollisionLimit: maxNameCollisions}
}

func (s *Store) Root() string { return s.root }

func (s *Store) dataDir() string { return filepath.Join(s.root, "data") }

func (s *Store) InDir(user string) string     { return filepath.Join(s.dataDir(), "in", user) }
func (s *Store) OutDir(user string) string    { return filepath.Join(s.dataDir(), "out", user) }
func (s *Store) ErrorDir(user string) string  { return filepath.Join(s.dataDir(), "error", user) }
func (s *Store) WorkerDir(user string) string { return filepath.Join(s.dataDir(), "worker", user) }

// InRoot is the global inbox the worker scans across all users.
func (s *Store) InRoot() string     { return filepath.Join(s.dataDir(), "in") }
func (s *Store) OutRoot() string    { return filepath.Join(s.dataDir(), "out") }
func (s *Store) ErrorRoot() string  { return filepath.Join(s.dataDir(), "error") }
func (s *Store) WorkerRoot() string { return filepath.Join(s.dataDir(), "worker") }

// InputPath is the inbox entry for a job.
func (s *Store) InputPath(user, file string) string { return filepath.Join(s.InDir(user), file) }

// MarkerPath is the processing lock sibling of an inbox entry.
func (s *Store) MarkerPath(user, file string) string {
	return s.InputPath(user, file) + ProcessingSuffix
}

func (s *Store) ViewerPath(user, file string) string {
	return filepath.Join(s.OutDir(user), file+".html")
}

func (s *Store) MediaPath(user, file string) string {
	return filepath.Join(s.OutDir(user), file+".mp4")
}

func (s *Store) SRTPath(user, file string) string {
	return filepath.Join(s.OutDir(user), file+".srt")
}

func (s *Store) UpdatePath(user, file string) string {
	return filepath.Join(s.OutDir(user), file+".htmlupdate")
}

func (s *Store) FinalPath(user, file string) string {
	return filepath.Join(s.OutDir(user), file+".htmlfinal")
}

func (s *Store) ErrorPath(user, file string) string {
	return filepath.Join(s.ErrorDir(user), file)
}

func (s *Store) ErrorTextPath(user, file string) string {
	return filepath.Join(s.ErrorDir(user), file+".txt")
}

// EnsureLayout creates the four shared roots.
func (s *Store) EnsureLayout() error {
	for _, dir := range []string{s.InRoot(), s.OutRoot(), s.ErrorRoot(), s.WorkerRoot()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// SanitizeFileName strips path components, replaces characters outside
// [A-Za-z0-9._-] and shields leading dots.
func SanitizeFileName(name string) string {
	base := filepath.Base(filepath.ToSlash(name))
	// Windows browsers send backslash paths that Base leaves intact.
	if i := strings.LastIndexByte(base, '\\'); i >= 0 {
		base = base[i+1:]
	}
	sanitized := unsafeChars.ReplaceAllString(base, "_")
	if strings.HasPrefix(sanitized, ".") {
		sanitized = "f" + sanitized
	}
	return sanitized
}

// SaveUpload streams the upload into the user's inbox under a collision-free
// name derived from name (appending _1.._10000 before the extension) and
// returns the committed name. Each candidate is claimed by creating its
// temporary sibling with O_EXCL, so concurrent uploads of the same filename
// commit as distinct entries; the final name only ever appears by renaming
// its own temp file. The rename happens after a flush, so the worker never
// observes a partial inbox entry.
func (s *Store) SaveUpload(user, name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.InDir(user), 0o755); err != nil {
		return "", fmt.Errorf("create inbox: %w", err)
	}
	if err := os.MkdirAll(s.OutDir(user), 0o755); err != nil {
		return "", fmt.Errorf("create outbox: %w", err)
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; i <= s.CollisionLimit; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		target := s.InputPath(user, candidate)
		tmp := target + ".part"

		f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if os.IsExist(err) {
				// Another upload holds this candidate.
				continue
			}
			return "", fmt.Errorf("create upload: %w", err)
		}
		// Only the temp holder can commit the target, so this check is
		// stable for as long as the temp file is ours.
		if _, err := os.Stat(target); err == nil {
			f.Close()
			os.Remove(tmp)
			continue
		}

		if _, err := io.Copy(f, r); err != nil {
			f.Close()
			os.Remove(tmp)
			return "", fmt.Errorf("write upload: %w", err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			os.Remove(tmp)
			return "", fmt.Errorf("flush upload: %w", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(tmp)
			return "", err
		}
		if err := os.Rename(tmp, target); err != nil {
			os.Remove(tmp)
			return "", fmt.Errorf("commit upload: %w", err)
		}
		return candidate, nil
	}
	return "", ErrTooManyCollisions
}

// WriteLanguage persists the user's language code, defaulting to de.
func (s *Store) WriteLanguage(user, language string) error {
	language = strings.TrimSpace(language)
	if language == "" {
		language = DefaultLanguage
	}
	if err := os.MkdirAll(s.InDir(user), 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.InDir(user), LanguageFile), []byte(language), 0o644)
}

// ReadLanguage returns the user's language code or the default.
func (s *Store) ReadLanguage(user string) string {
	b, err := os.ReadFile(filepath.Join(s.InDir(user), LanguageFile))
	if err != nil {
		return DefaultLanguage
	}
	language := strings.TrimSpace(string(b))
	if language == "" {
		return DefaultLanguage
	}
	return language
}

// WriteHotwords persists the bias vocabulary; an empty block removes the file.
func (s *Store) WriteHotwords(user, content string) error {
	path := filepath.Join(s.InDir(user), HotwordsFile)
	content = strings.TrimSpace(content)
	if content == "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	if err := os.MkdirAll(s.InDir(user), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// ReadHotwords returns the bias vocabulary, one term per entry.
func (s *Store) ReadHotwords(user string) []string {
	b, err := os.ReadFile(filepath.Join(s.InDir(user), HotwordsFile))
	if err != nil {
		return nil
	}
	var words []string
	for _, line := range strings.Split(string(b), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			words = append(words, line)
		}
	}
	return words
}

// ClearError removes a previous failure for the same filename so a re-upload
// starts clean.
func (s *Store) ClearError(user, file string) {
	os.Remove(s.ErrorPath(user, file))
	os.Remove(s.ErrorTextPath(user, file))
}

// ErrorText returns the diagnostic for a failed job, or the generic message.
func (s *Store) ErrorText(user, file string) string {
	b, err := os.ReadFile(s.ErrorTextPath(user, file))
	if err == nil {
		if text := strings.TrimSpace(string(b)); text != "" {
			return text
		}
	}
	return "transcription failed"
}

// ListInbox returns the user's pending job filenames, excluding the
// configuration files and processing markers.
func (s *Store) ListInbox(user string) ([]string, error) {
	entries, err := os.ReadDir(s.InDir(user))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || IsReserved(e.Name()) {
			continue
		}
		files = append(files, e.Name())
	}
	return files, nil
}

// ListErrors returns the user's failed job filenames.
func (s *Store) ListErrors(user string) ([]string, error) {
	entries, err := os.ReadDir(s.ErrorDir(user))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		files = append(files, e.Name())
	}
	return files, nil
}

// ListCompleted returns the job stems with a committed editor page in the
// user's outbox.
func (s *Store) ListCompleted(user string) ([]string, error) {
	entries, err := os.ReadDir(s.OutDir(user))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), ".html") {
			continue
		}
		files = append(files, strings.TrimSuffix(e.Name(), ".html"))
	}
	return files, nil
}

// IsReserved reports whether an inbox filename is configuration rather than a
// job, or a worker-owned marker.
func IsReserved(name string) bool {
	return name == HotwordsFile || name == LanguageFile ||
		strings.HasSuffix(name, ProcessingSuffix) || strings.HasSuffix(name, ".part")
}

// DeleteJob removes every trace of a job: the inbox entry, error entries, all
// outbox artifacts with the job's stem, the processing marker and any
// heartbeat matching the stem.
func (s *Store) DeleteJob(user, file string) error {
	paths := []string{
		s.InputPath(user, file),
		s.MarkerPath(user, file),
		s.ErrorPath(user, file),
		s.ErrorTextPath(user, file),
	}
	for _, suffix := range OutSuffixes {
		paths = append(paths, filepath.Join(s.OutDir(user), file+suffix))
	}

	var firstErr error
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}

	// Heartbeats encode the filename as the suffix after the second underscore.
	if entries, err := os.ReadDir(s.WorkerDir(user)); err == nil {
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), "_"+file) {
				if err := os.Remove(filepath.Join(s.WorkerDir(user), e.Name())); err != nil && firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	return firstErr
}

// Users returns every user id appearing under any of the four roots,
// excluding the reserved local user when requested.
func (s *Store) Users(includeLocal bool) []string {
	seen := map[string]struct{}{}
	for _, root := range []string{s.InRoot(), s.OutRoot(), s.ErrorRoot(), s.WorkerRoot()} {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if !includeLocal && e.Name() == LocalUser {
				continue
			}
			seen[e.Name()] = struct{}{}
		}
	}
	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}
