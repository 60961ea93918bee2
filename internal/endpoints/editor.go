package endpoints

import (
	"fmt"
	"net/http"
	"os"

	"verbatim/internal/artifacts"
	"verbatim/internal/store"

	"github.com/gin-gonic/gin"
)

const sessionExpiredPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Session expired</title></head>
<body><p>Session expired. Return to the main page and open the editor again.</p></body>
</html>
`

// HandleOpenEditor stages the editor page for a completed job in the user's
// session. Pending edits are merged into the staged copy so the editor always
// shows the latest saved state; the stored artifact itself is untouched until
// download-prep.
func HandleOpenEditor(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := GetUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		file := store.SanitizeFileName(c.Param("file"))
		raw, err := os.ReadFile(deps.Store.ViewerPath(userID, file))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Transcript not found"})
			return
		}
		content := string(raw)

		if update, err := os.ReadFile(deps.Store.UpdatePath(userID, file)); err == nil {
			content, err = artifacts.ApplyUpdate(content, string(update))
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Stored transcript is damaged"})
				return
			}
		}

		mediaURL := fmt.Sprintf("/data/%s/%s.mp4", userID, file)
		content = artifacts.InjectMediaSource(content, mediaURL)

		deps.Sessions.Get(userID).OpenEditor(file, content)
		c.JSON(http.StatusOK, gin.H{"file_name": file})
	}
}

// HandleEditorPage serves the staged editor. Without a prior open call the
// session holds nothing to show and the page reports an expired session.
func HandleEditorPage(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := GetUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		_, content, ok := deps.Sessions.Get(userID).Editor()
		if !ok {
			c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(sessionExpiredPage))
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(content))
	}
}

// HandleSaveEdit persists the edited transcript body as the job's pending
// update. The next download consumes it.
func HandleSaveEdit(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := GetUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		file, _, ok := deps.Sessions.Get(userID).Editor()
		if !ok {
			c.JSON(http.StatusConflict, gin.H{"error": "Session expired"})
			return
		}

		if err := artifacts.SaveUpdate(deps.Store, userID, file, c.PostForm("content")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save edit"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"file_name": file})
	}
}
