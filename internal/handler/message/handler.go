package message

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	model "github.com/zhouzirui/persona-studio/backend/internal/model/message"
	messageService "github.com/zhouzirui/persona-studio/backend/internal/service/message"
	simulationService "github.com/zhouzirui/persona-studio/backend/internal/service/simulation"
	"github.com/zhouzirui/persona-studio/backend/pkg/utils"
)

// Handler 消息生成会话的HTTP处理器
type Handler struct {
	messages    *messageService.Service
	simulations *simulationService.Service
}

// New 创建消息处理器
func New(messages *messageService.Service, simulations *simulationService.Service) *Handler {
	return &Handler{
		messages:    messages,
		simulations: simulations,
	}
}

// RegisterRoutes 注册消息相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/messages", h.handleCreateSession)
	r.Route("/messages/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGetSession)
		r.Delete("/", h.handleDeleteSession)
		r.Post("/generate", h.handleGenerate)
		r.Post("/refine", h.handleRefine)
		r.Post("/cancel", h.handleCancel)
		r.Get("/history", h.handleHistory)
		r.Post("/handoff", h.handleHandoff)
	})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*messageService.Session, bool) {
	session, err := h.messages.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondErr(w, err)
		return nil, false
	}
	return session, true
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.messages.Create(r.Context())
	if err != nil {
		utils.RespondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session.Snapshot())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Snapshot())
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.messages.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		utils.RespondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGenerate 开始生成；wait=true 时阻塞直到完成
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req model.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	completion, err := session.Generate(r.Context(), req)
	if err != nil {
		utils.RespondErr(w, err)
		return
	}
	h.respondCompletion(w, r, session, completion)
}

// handleRefine 对当前消息应用修改指令
func (h *Handler) handleRefine(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var payload struct {
		Instruction string `json:"instruction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	completion, err := session.Refine(r.Context(), payload.Instruction)
	if err != nil {
		utils.RespondErr(w, err)
		return
	}
	h.respondCompletion(w, r, session, completion)
}

func (h *Handler) respondCompletion(w http.ResponseWriter, r *http.Request, session *messageService.Session, completion *messageService.Completion) {
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); !wait {
		utils.RespondJSON(w, http.StatusAccepted, session.Snapshot())
		return
	}

	msg, err := completion.Wait(r.Context())
	switch {
	case errors.Is(err, messageService.ErrCancelled):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case err != nil:
		utils.RespondErr(w, err)
	default:
		utils.RespondJSON(w, http.StatusOK, msg)
	}
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	cancelled := session.Cancel()
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"cancelled": cancelled,
		"session":   session.Snapshot(),
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.History())
}

// handleHandoff 以当前消息开启一次模拟对话
func (h *Handler) handleHandoff(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	handoff, err := session.Handoff()
	if err != nil {
		utils.RespondErr(w, err)
		return
	}

	simulation, err := h.simulations.Start(r.Context(), handoff)
	if err != nil {
		utils.RespondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, simulation.Snapshot())
}
