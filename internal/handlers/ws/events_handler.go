package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"beamcast/internal/core/ports"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// EventsHandler pushes session snapshots to websocket clients. Each
// client gets its own subscription; a client that cannot keep up simply
// misses intermediate snapshots.
type EventsHandler struct {
	session ports.SessionControl

	pingInterval time.Duration
	writeTimeout time.Duration

	logger *zap.SugaredLogger
}

func NewEventsHandler(session ports.SessionControl, logger *zap.SugaredLogger) *EventsHandler {
	return &EventsHandler{
		session:      session,
		pingInterval: 30 * time.Second,
		writeTimeout: 10 * time.Second,
		logger:       logger,
	}
}

func (h *EventsHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/ws/events", func(c *gin.Context) {
		h.HandleEvents(c.Writer, c.Request)
	})
}

func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	snapshots, cancel := h.session.Subscribe()
	defer cancel()

	// Drain client frames so close and pong handling keep working.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Initial snapshot so clients render state before the first change.
	if err := h.write(conn, h.session.Snapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if err := h.write(conn, snap); err != nil {
				h.logger.Debugw("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *EventsHandler) write(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	return conn.WriteJSON(v)
}
