package stream

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/persona-studio/backend/internal/logging"
	messageService "github.com/zhouzirui/persona-studio/backend/internal/service/message"
	"github.com/zhouzirui/persona-studio/backend/pkg/utils"
)

const heartbeatInterval = 8 * time.Second

// Handler streams message session snapshots via Server-Sent Events.
type Handler struct {
	messages *messageService.Service
	logger   *zap.Logger
}

// New creates a new stream handler
func New(messages *messageService.Service, logger *zap.Logger) *Handler {
	return &Handler{
		messages: messages,
		logger:   logging.Or(logger).Named("stream"),
	}
}

// RegisterRoutes registers the SSE endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/messages/{sessionID}", h.handleMessageStream)
}

// handleMessageStream pushes a "snapshot" event on every state change,
// starting with the current state, until the client disconnects or the
// session closes. A closed session ends the stream with a "closed" event.
func (h *Handler) handleMessageStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	session, err := h.messages.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondErr(w, err)
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	h.logger.Debug("opening message stream", zap.String("session", session.ID()))
	h.stream(r.Context(), w, flusher, session)
	h.logger.Debug("closing message stream", zap.String("session", session.ID()))
}

func (h *Handler) stream(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, session *messageService.Session) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		// Subscribe before reading so no change slips between the two.
		changed := session.Changed()
		snap := session.Snapshot()
		utils.SendSSEEvent(w, flusher, "snapshot", snap)
		if snap.Closed {
			utils.SendSSEEvent(w, flusher, "closed", map[string]string{"sessionId": snap.SessionID})
			return
		}

	wait:
		for {
			select {
			case <-ctx.Done():
				return
			case <-changed:
				break wait
			case t := <-ticker.C:
				utils.SendSSEEvent(w, flusher, "heartbeat", map[string]string{
					"time": t.UTC().Format(time.RFC3339),
				})
			}
		}
	}
}
