package simulation

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	simulationService "github.com/zhouzirui/persona-studio/backend/internal/service/simulation"
	"github.com/zhouzirui/persona-studio/backend/pkg/utils"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// WebSocketHandler 模拟对话的实时通道
type WebSocketHandler struct {
	simulations *simulationService.Service
	logger      *zap.Logger
	upgrader    websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(simulations *simulationService.Service, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		simulations: simulations,
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// RespondMessage 用户发言
type RespondMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type typingFrame struct {
	Typing bool   `json:"typing"`
	Text   string `json:"text,omitempty"`
}

// conn serializes writes; gorilla connections allow one concurrent writer.
type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) write(msg outgoingMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(msg)
}

// closeNormal sends a close frame; the caller still closes the socket.
func (c *conn) closeNormal(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	return c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleWebSocket 处理WebSocket连接：推送 turn/typing，接收 respond
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	session, err := h.simulations.Get(r.Context(), chi.URLParam(r, "simulationID"))
	if err != nil {
		utils.RespondErr(w, err)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	logger := h.logger.With(zap.String("simulation", session.ID()))
	logger.Info("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &conn{ws: ws}
	ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.pingLoop(ctx, c)
	}()
	go func() {
		defer wg.Done()
		// Unblocks readLoop once nothing more can be pushed.
		defer ws.Close()
		defer cancel()
		if err := h.pushLoop(ctx, c, session); err != nil {
			logger.Debug("push loop stopped", zap.Error(err))
		}
	}()

	h.readLoop(ctx, c, session, logger)
	cancel()
	wg.Wait()
	logger.Info("websocket disconnected")
}

func (h *WebSocketHandler) readLoop(ctx context.Context, c *conn, session *simulationService.Session, logger *zap.Logger) {
	for {
		var msg inboundMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(readTimeout))

		switch msg.Type {
		case "respond":
			var payload RespondMessage
			if err := json.Unmarshal(msg.Data, &payload); err != nil {
				h.sendError(c, session.ID(), "invalid respond payload")
				continue
			}
			if _, err := session.Respond(ctx, payload.Text); err != nil {
				h.sendError(c, session.ID(), err.Error())
			}
		default:
			h.sendError(c, session.ID(), "unsupported message type: "+msg.Type)
		}
	}
}

// pushLoop sends every new turn once and a typing frame whenever the
// indicator flips. The first pass replays the transcript so far. A
// closed session gets a final "closed" frame and a close handshake.
func (h *WebSocketHandler) pushLoop(ctx context.Context, c *conn, session *simulationService.Session) error {
	sent := 0
	typing := false
	first := true

	for {
		changed := session.Changed()
		snap := session.Snapshot()

		for _, turn := range snap.Turns[sent:] {
			if err := c.write(outgoingMessage{Type: "turn", SessionID: snap.SessionID, Data: turn, Timestamp: turn.At.Unix()}); err != nil {
				return err
			}
		}
		sent = len(snap.Turns)

		if first || snap.Typing != typing {
			typing = snap.Typing
			if err := c.write(outgoingMessage{
				Type:      "typing",
				SessionID: snap.SessionID,
				Data:      typingFrame{Typing: typing, Text: snap.TypingText},
				Timestamp: time.Now().Unix(),
			}); err != nil {
				return err
			}
		}
		first = false

		if snap.Closed {
			if err := c.write(outgoingMessage{Type: "closed", SessionID: snap.SessionID, Timestamp: time.Now().Unix()}); err != nil {
				return err
			}
			return c.closeNormal("simulation ended")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}
	}
}

func (h *WebSocketHandler) sendError(c *conn, sessionID, message string) {
	msg := outgoingMessage{
		Type:      "error",
		SessionID: sessionID,
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	if err := c.write(msg); err != nil {
		h.logger.Debug("write error frame failed", zap.Error(err))
	}
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, c *conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
