package ws

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/events"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/journal"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/infrastructure/monitoring"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	feedBuffer   = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced by middleware
	},
}

// clientMessage is anything a client sends
type clientMessage struct {
	Type string `json:"type"`
}

// message is anything the server sends
type message struct {
	Type      string          `json:"type"`
	Event     *journal.Record `json:"event,omitempty"`
	Alert     *journal.Alert  `json:"alert,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// filter narrows the feed for one connection
type filter struct {
	contextID string
	kind      string
}

func (f filter) keep(n events.Notice) bool {
	if f.kind != "" && f.kind != n.Kind {
		return false
	}
	if f.contextID == "" {
		return true
	}
	switch {
	case n.Event != nil:
		return n.Event.ContextID == f.contextID
	case n.Alert != nil:
		return n.Alert.ContextID == f.contextID
	}
	return false
}

// Handler manages WebSocket connections
type Handler struct {
	hub     *events.Hub
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *events.Hub, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{hub: hub, metrics: metrics, logger: logger}
}

// HandleConnection handles WebSocket upgrade and streams the feed until the
// client goes away or the hub closes
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	f := filter{contextID: c.Query("contextId"), kind: c.Query("kind")}
	feed, cancel := h.hub.Watch(feedBuffer)
	defer cancel()

	h.logger.Debug("Feed client connected",
		zap.String("client_ip", c.ClientIP()),
		zap.String("context_id", f.contextID),
	)

	replies := make(chan message, 8)
	closed := make(chan struct{})
	go h.read(conn, replies, closed)

	if err := h.send(conn, message{Type: "system", Message: "connected"}); err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case n, ok := <-feed:
			if !ok {
				h.close(conn, websocket.CloseGoingAway, "server shutting down")
				return
			}
			if !f.keep(n) {
				continue
			}
			if err := h.send(conn, message{Type: n.Kind, Event: n.Event, Alert: n.Alert}); err != nil {
				return
			}
		case reply := <-replies:
			if err := h.send(conn, reply); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			h.logger.Debug("Feed client disconnected", zap.String("client_ip", c.ClientIP()))
			return
		}
	}
}

// read is the only reader of conn. It answers client pings through replies
// and closes closed when the connection ends.
func (h *Handler) read(conn *websocket.Conn, replies chan<- message, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg clientMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			msg.Type = "invalid"
		}
		h.metrics.RecordWSMessage("in", msg.Type)

		reply := message{Type: "pong"}
		if msg.Type != "ping" {
			reply = message{Type: "error", Message: "unknown message type"}
		}
		select {
		case replies <- reply:
		default:
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, msg message) error {
	msg.Timestamp = time.Now().Unix()
	data, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	h.metrics.RecordWSMessage("out", msg.Type)
	return nil
}

func (h *Handler) close(conn *websocket.Conn, code int, reason string) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}
