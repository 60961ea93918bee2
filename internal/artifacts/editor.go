package artifacts

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"verbatim/internal/store"
)

const (
	navMarker      = "</nav>"
	fileNameMarker = "var fileName = "
	base64Marker   = "var base64str = "
)

// ApplyUpdate splices a saved edit into the editor page, replacing everything
// between the end of the nav bar and the fileName assignment.
func ApplyUpdate(content, update string) (string, error) {
	start := strings.Index(content, navMarker)
	end := strings.Index(content, fileNameMarker)
	if start < 0 || end < 0 || end < start {
		return "", fmt.Errorf("editor content is missing splice markers")
	}
	start += len(navMarker)
	return content[:start] + update + content[end:], nil
}

// SaveUpdate stores an edited transcript body as the job's pending update.
// The next download-prep consumes it.
func SaveUpdate(s *store.Store, user, file, body string) error {
	if err := os.MkdirAll(s.OutDir(user), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.UpdatePath(user, file), []byte(strings.TrimSpace(body)), 0o644)
}

// embedMedia appends a script block that rebuilds the media from a base64
// data URL and swaps it into the player, making the page self-contained.
func embedMedia(content string, media []byte) string {
	encoded := base64.StdEncoding.EncodeToString(media)
	block := fmt.Sprintf(`
var base64str = "%s";
var binary = atob(base64str);
var len = binary.length;
var buffer = new ArrayBuffer(len);
var view = new Uint8Array(buffer);
for (var i = 0; i < len; i++) {
    view[i] = binary.charCodeAt(i);
}

var blob = new Blob([view], { type: "video/MP4" });
var url = URL.createObjectURL(blob);

var video = document.getElementById("player");

setTimeout(function() {
  video.pause();
  video.setAttribute('src', url);
}, 100);
</script>
`, encoded)

	// The embed goes at the end of the last script block.
	idx := strings.LastIndex(content, "</script>")
	if idx < 0 {
		return content + "<script>" + block
	}
	return content[:idx] + block + content[idx+len("</script>"):]
}

// PrepareDownload builds the self-contained editor file. A pending
// .htmlupdate is merged into the stored editor first and consumed; the media
// is embedded as base64 unless a previous prep already did so, which makes
// the operation idempotent.
func PrepareDownload(s *store.Store, user, file string) error {
	viewerPath := s.ViewerPath(user, file)
	raw, err := os.ReadFile(viewerPath)
	if err != nil {
		return fmt.Errorf("read editor: %w", err)
	}
	content := string(raw)

	updatePath := s.UpdatePath(user, file)
	if update, err := os.ReadFile(updatePath); err == nil {
		content, err = ApplyUpdate(content, string(update))
		if err != nil {
			return err
		}
		if err := os.WriteFile(viewerPath, []byte(content), 0o644); err != nil {
			return fmt.Errorf("persist merged editor: %w", err)
		}
		if err := os.Remove(updatePath); err != nil {
			return fmt.Errorf("consume update: %w", err)
		}
	}

	if !strings.Contains(content, base64Marker) {
		media, err := os.ReadFile(s.MediaPath(user, file))
		if err != nil {
			return fmt.Errorf("read media for embedding: %w", err)
		}
		content = embedMedia(content, media)
	}

	if err := os.WriteFile(s.FinalPath(user, file), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write download editor: %w", err)
	}
	return nil
}
