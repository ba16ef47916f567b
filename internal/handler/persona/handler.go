package persona

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/persona-studio/backend/internal/analysis/profile"
	"github.com/zhouzirui/persona-studio/backend/internal/apperr"
	"github.com/zhouzirui/persona-studio/backend/internal/logging"
	"github.com/zhouzirui/persona-studio/backend/internal/model/persona"
	"github.com/zhouzirui/persona-studio/backend/pkg/utils"
)

// Handler persona服务的HTTP处理器
type Handler struct {
	personas persona.Store
	logger   *zap.Logger
}

// New 创建persona处理器
func New(personas persona.Store, logger *zap.Logger) *Handler {
	return &Handler{
		personas: personas,
		logger:   logging.Or(logger).Named("persona"),
	}
}

// RegisterRoutes 注册persona相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleListPersonas)
	r.Post("/personas", h.handleCreatePersona)
	r.Get("/personas/{personaID}", h.handleGetPersona)
	r.Put("/personas/{personaID}", h.handleReplacePersona)
	r.Delete("/personas/{personaID}", h.handleDeletePersona)
	r.Get("/personas/{personaID}/analysis", h.handleAnalyzePersona)
}

type personaPayload struct {
	Name       string             `json:"name"`
	Attributes persona.Attributes `json:"attributes"`
}

// handleListPersonas 列出所有persona
func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.personas.List())
}

func (h *Handler) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "personaID")
	p, ok := h.personas.FindByID(id)
	if !ok {
		utils.RespondErr(w, apperr.NotFound("persona", id))
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}

// handleAnalyzePersona 返回persona的推荐类别、检索画像和文案指引，并记录分析历史
func (h *Handler) handleAnalyzePersona(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "personaID")
	p, ok := h.personas.FindByID(id)
	if !ok {
		utils.RespondErr(w, apperr.NotFound("persona", id))
		return
	}

	analysis := profile.Analyze(p)
	h.logger.Info("persona analyzed",
		zap.String("persona", p.ID),
		zap.String("name", p.Name),
		zap.String("skinType", p.Attributes.Text(persona.KeySkinType)),
		zap.Strings("concerns", p.Attributes.List(persona.KeyConcerns)),
		zap.String("category", string(analysis.PrimaryCategory)),
		zap.Float64("confidence", analysis.Confidence),
		zap.String("reasoning", analysis.Reasoning),
	)
	utils.RespondJSON(w, http.StatusOK, analysis)
}

func (h *Handler) handleCreatePersona(w http.ResponseWriter, r *http.Request) {
	var payload personaPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.personas.Create(r.Context(), payload.Name, payload.Attributes)
	if err != nil {
		utils.RespondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleReplacePersona(w http.ResponseWriter, r *http.Request) {
	var payload personaPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.personas.Replace(r.Context(), chi.URLParam(r, "personaID"), payload.Name, payload.Attributes)
	if err != nil {
		utils.RespondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}

// handleDeletePersona 删除persona，不存在时同样返回 204
func (h *Handler) handleDeletePersona(w http.ResponseWriter, r *http.Request) {
	if err := h.personas.Delete(r.Context(), chi.URLParam(r, "personaID")); err != nil {
		utils.RespondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
