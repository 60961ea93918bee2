package endpoints

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"verbatim/internal/artifacts"
	"verbatim/internal/store"

	"github.com/gin-gonic/gin"
)

// HandleDownloadEditor serves the self-contained editor page, running
// download-prep first so pending edits and the embedded media land in the
// served copy.
func HandleDownloadEditor(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := GetUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		file := store.SanitizeFileName(c.Param("file"))
		if _, err := os.Stat(deps.Store.ViewerPath(userID, file)); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Transcript not found"})
			return
		}
		if err := artifacts.PrepareDownload(deps.Store, userID, file); err != nil {
			slog.Error("Failed to prepare download", "user_id", userID, "file", file, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare download"})
			return
		}
		c.FileAttachment(deps.Store.FinalPath(userID, file), file+".html")
	}
}

// HandleDownloadSRT serves the subtitle artifact.
func HandleDownloadSRT(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := GetUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		file := store.SanitizeFileName(c.Param("file"))
		path := deps.Store.SRTPath(userID, file)
		if _, err := os.Stat(path); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subtitles not found"})
			return
		}
		c.FileAttachment(path, file+".srt")
	}
}

// HandleDownloadAll bundles every completed job into one zip archive.
func HandleDownloadAll(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := GetUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		files, err := deps.Store.ListCompleted(userID)
		if err != nil || len(files) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "No completed transcripts"})
			return
		}

		path, err := artifacts.BundleAll(deps.Store, userID, files)
		if err != nil {
			slog.Error("Failed to build archive", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build archive"})
			return
		}
		c.FileAttachment(path, artifacts.BundleName)
	}
}

// HandleMedia serves outbox media for the editor's video tag. Users only ever
// reach their own tree.
func HandleMedia(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := GetUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if c.Param("user") != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}

		file := store.SanitizeFileName(c.Param("file"))
		path := filepath.Join(deps.Store.OutDir(userID), file)
		if _, err := os.Stat(path); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Media not found"})
			return
		}
		c.File(path)
	}
}
