package simulation

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/persona-studio/backend/internal/logging"
	model "github.com/zhouzirui/persona-studio/backend/internal/model/simulation"
	simulationService "github.com/zhouzirui/persona-studio/backend/internal/service/simulation"
	"github.com/zhouzirui/persona-studio/backend/pkg/utils"
)

// Handler 模拟对话的HTTP处理器
type Handler struct {
	simulations *simulationService.Service
	ws          *WebSocketHandler
}

// New 创建模拟对话处理器
func New(simulations *simulationService.Service, logger *zap.Logger) *Handler {
	logger = logging.Or(logger).Named("simulation.http")
	return &Handler{
		simulations: simulations,
		ws:          NewWebSocketHandler(simulations, logger),
	}
}

// RegisterRoutes 注册模拟对话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/simulations", h.handleStart)
	r.Route("/simulations/{simulationID}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Delete("/", h.handleEnd)
		r.Post("/respond", h.handleRespond)
		r.Get("/ws", h.ws.handleWebSocket)
	})
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var handoff model.Handoff
	if err := json.NewDecoder(r.Body).Decode(&handoff); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.simulations.Start(r.Context(), handoff)
	if err != nil {
		utils.RespondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session.Snapshot())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	session, err := h.simulations.Get(r.Context(), chi.URLParam(r, "simulationID"))
	if err != nil {
		utils.RespondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Snapshot())
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	if err := h.simulations.End(r.Context(), chi.URLParam(r, "simulationID")); err != nil {
		utils.RespondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRespond 追加用户发言，客户回复异步排队
func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	session, err := h.simulations.Get(r.Context(), chi.URLParam(r, "simulationID"))
	if err != nil {
		utils.RespondErr(w, err)
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := session.Respond(r.Context(), payload.Text); err != nil {
		utils.RespondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, session.Snapshot())
}
