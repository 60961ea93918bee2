package endpoints

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"verbatim/internal/config"
	"verbatim/internal/session"
	"verbatim/internal/store"

	"github.com/gin-gonic/gin"
)

// UploadResponse reports the inbox name assigned to an accepted upload.
type UploadResponse struct {
	FileName string `json:"file_name"`
}

// HandleUpload accepts a multipart upload and persists it into the user's
// inbox. The language and hotwords fields are written before the media so the
// worker never picks up a job whose configuration is still in flight.
func HandleUpload(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := GetUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.MaxUploadBytes)

		header, err := c.FormFile("file")
		if err != nil {
			if isTooLarge(err) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File exceeds the upload limit"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file in request"})
			return
		}
		if !allowedMediaType(header) {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "Only audio, video and zip uploads are accepted"})
			return
		}

		name := store.SanitizeFileName(header.Filename)
		if name == "" || store.IsReserved(name) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file name"})
			return
		}

		// A re-upload under the same name retries the failed job.
		deps.Store.ClearError(userID, name)

		if err := deps.Store.WriteLanguage(userID, c.PostForm("language")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store language"})
			return
		}
		if err := deps.Store.WriteHotwords(userID, c.PostForm("hotwords")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store hotwords"})
			return
		}

		src, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload"})
			return
		}
		defer src.Close()

		unique, err := deps.Store.SaveUpload(userID, name, src)
		if err != nil {
			if isTooLarge(err) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File exceeds the upload limit"})
				return
			}
			if errors.Is(err, store.ErrTooManyCollisions) {
				c.JSON(http.StatusConflict, gin.H{"error": "Too many files with this name"})
				return
			}
			slog.Error("Failed to persist upload", "user_id", userID, "file", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload"})
			return
		}

		slog.Info("Upload accepted", "user_id", userID, "file", unique, "size", header.Size)
		deps.Sessions.Get(userID).Bus.Publish(session.EventQueue)
		c.JSON(http.StatusOK, UploadResponse{FileName: unique})
	}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// allowedMediaType admits audio, video and zip uploads. Browsers that send a
// generic type are judged by extension instead.
func allowedMediaType(header *multipart.FileHeader) bool {
	ct := header.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "audio/") || strings.HasPrefix(ct, "video/") {
		return true
	}
	switch ct {
	case "application/zip", "application/x-zip-compressed":
		return true
	case "", "application/octet-stream":
		switch strings.ToLower(filepath.Ext(header.Filename)) {
		case ".zip", ".mp3", ".mp4", ".wav", ".m4a", ".ogg", ".opus", ".flac", ".mkv", ".webm", ".mov":
			return true
		}
	}
	return false
}
