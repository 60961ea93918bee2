package endpoints

import (
	"log/slog"
	"net/http"

	"verbatim/internal/session"
	"verbatim/internal/store"

	"github.com/gin-gonic/gin"
)

// ListFilesResponse carries the user's derived job list.
type ListFilesResponse struct {
	Files []session.JobStatus `json:"files"`
}

// HandleListFiles returns the user's jobs with queue positions, progress and
// error diagnostics, all derived from the directory tree at request time.
func HandleListFiles(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := GetUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		sess := deps.Sessions.Get(userID)
		statuses, err := deps.Queue.Describe(c.Request.Context(), sess)
		if err != nil {
			slog.Error("Failed to describe queue", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list files"})
			return
		}
		c.JSON(http.StatusOK, ListFilesResponse{Files: statuses})
	}
}

// HandleDeleteFile removes a job and every artifact belonging to it. A job
// the worker currently runs is cancelled: the worker notices the missing
// input on its next stage boundary and discards its output.
func HandleDeleteFile(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := GetUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		file := store.SanitizeFileName(c.Param("file"))
		if file == "" || store.IsReserved(file) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file name"})
			return
		}

		if err := deps.Store.DeleteJob(userID, file); err != nil {
			slog.Error("Failed to delete job", "user_id", userID, "file", file, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete file"})
			return
		}

		slog.Info("Job deleted", "user_id", userID, "file", file)
		sess := deps.Sessions.Get(userID)
		sess.Bus.Publish(session.EventQueue)
		sess.Bus.Publish(session.EventResults)
		c.JSON(http.StatusOK, gin.H{"deleted": file})
	}
}
