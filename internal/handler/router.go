package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/persona-studio/backend/internal/handler/message"
	"github.com/zhouzirui/persona-studio/backend/internal/handler/persona"
	"github.com/zhouzirui/persona-studio/backend/internal/handler/simulation"
	"github.com/zhouzirui/persona-studio/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/persona-studio/backend/internal/middleware"
	personaModel "github.com/zhouzirui/persona-studio/backend/internal/model/persona"
	messageService "github.com/zhouzirui/persona-studio/backend/internal/service/message"
	simulationService "github.com/zhouzirui/persona-studio/backend/internal/service/simulation"
	"github.com/zhouzirui/persona-studio/backend/pkg/utils"
)

// Services bundles what the HTTP layer talks to.
type Services struct {
	Personas    personaModel.Store
	Messages    *messageService.Service
	Simulations *simulationService.Service
}

// NewRouter wires HTTP routes to core services.
func NewRouter(svc Services, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	personaHandler := persona.New(svc.Personas, logger)
	messageHandler := message.New(svc.Messages, svc.Simulations)
	streamHandler := stream.New(svc.Messages, logger)
	simulationHandler := simulation.New(svc.Simulations, logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		messageHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		simulationHandler.RegisterRoutes(api)
	})

	return r
}
