package endpoints

import (
	"verbatim/internal/session"
	"verbatim/internal/store"

	"github.com/gin-gonic/gin"
)

// Deps bundles the shared frontend state handed to every handler factory.
type Deps struct {
	Store    *store.Store
	Sessions *session.Manager
	Queue    *session.QueueView
	Listener *session.Listener
}

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, deps Deps) {
	r.Use(IdentityMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "verbatim",
		})
	})

	r.GET("/", HandleIndex())
	r.POST("/upload", HandleUpload(deps))

	r.GET("/files", HandleListFiles(deps))
	r.DELETE("/files/:file", HandleDeleteFile(deps))

	r.POST("/editor/open/:file", HandleOpenEditor(deps))
	r.GET("/editor", HandleEditorPage(deps))
	r.POST("/editor/save", HandleSaveEdit(deps))

	download := r.Group("/download")
	{
		download.GET("/editor/:file", HandleDownloadEditor(deps))
		download.GET("/srt/:file", HandleDownloadSRT(deps))
		download.GET("/all", HandleDownloadAll(deps))
	}

	r.GET("/data/:user/:file", HandleMedia(deps))
	r.GET("/ws", HandleSocket(deps))
}
