package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const logTickInterval = time.Second

var upgrader = websocket.Upgrader{
	// Loopback-only binding makes the origin check a formality; allow
	// same-origin and direct loopback tool connections alike.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type logFrame struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// handleLogsWebSocket streams captured pane snapshots for a service
// every ~1s until the client disconnects.
func (s *Server) handleLogsWebSocket(c *gin.Context) {
	name := c.Param("name")
	lines := 200
	if v := c.Query("lines"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			lines = n
		}
	}
	ansi := c.Query("ansi") == "1"

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Log.Error("api: websocket upgrade failed", "service", name, "error", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(logTickInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload := s.Supervisor.CapturePane(ctx, name, lines, ansi)
			if err := conn.WriteJSON(logFrame{Type: "logs", Payload: payload}); err != nil {
				return
			}
		}
	}
}
