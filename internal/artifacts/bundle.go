package artifacts

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"verbatim/internal/store"
)

// BundleName is the fixed archive filename in the user's outbox.
const BundleName = "transcribed_files.zip"

// BundleAll preps every given job for download and zips the resulting
// .htmlfinal files, renamed back to .html inside the archive. archive/zip
// switches to ZIP64 on its own once entries or the archive pass 4 GiB.
// Returns the archive path.
func BundleAll(s *store.Store, user string, files []string) (string, error) {
	if err := os.MkdirAll(s.OutDir(user), 0o755); err != nil {
		return "", err
	}
	zipPath := filepath.Join(s.OutDir(user), BundleName)
	f, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, file := range files {
		if err := PrepareDownload(s, user, file); err != nil {
			return "", fmt.Errorf("prepare %s: %w", file, err)
		}
		if err := addBundleEntry(zw, s.FinalPath(user, file), file+".html"); err != nil {
			return "", err
		}
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalize archive: %w", err)
	}
	return zipPath, f.Sync()
}

func addBundleEntry(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	dst, err := zw.Create(name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("archive %s: %w", name, err)
	}
	return nil
}
