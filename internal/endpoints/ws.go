package endpoints

import (
	"context"
	"log/slog"
	"net/http"

	"verbatim/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The identity cookie is the access control; origin checks add nothing
	// for a self-hosted deployment.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SocketMessage is one refresh pushed to the browser. The progress patch
// rides along on queue events so the client never needs a follow-up request
// to render the bar.
type SocketMessage struct {
	Event  session.Event      `json:"event"`
	Update *session.JobStatus `json:"update,omitempty"`
}

// HandleSocket upgrades to a websocket and streams refresh events. Each
// connection runs its own progress listener tick; the bus fans events out to
// every open tab of the same browser.
func HandleSocket(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := GetUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Warn("Websocket upgrade failed", "user_id", userID, "error", err)
			return
		}
		defer conn.Close()

		sess := deps.Sessions.Get(userID)
		events, unsubscribe := sess.Bus.Subscribe()
		defer unsubscribe()

		ctx, stop := context.WithCancel(c.Request.Context())
		defer stop()

		// Reader goroutine only detects the close handshake.
		go func() {
			defer stop()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		go deps.Listener.Run(ctx, sess)

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				msg := SocketMessage{Event: event}
				if event == session.EventQueue {
					msg.Update = sess.Update()
				}
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			}
		}
	}
}
