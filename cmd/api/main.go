package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/persona-studio/backend/internal/config"
	"github.com/zhouzirui/persona-studio/backend/internal/handler"
	"github.com/zhouzirui/persona-studio/backend/internal/logging"
	"github.com/zhouzirui/persona-studio/backend/internal/model/persona"
	"github.com/zhouzirui/persona-studio/backend/internal/service/ai"
	"github.com/zhouzirui/persona-studio/backend/internal/service/message"
	"github.com/zhouzirui/persona-studio/backend/internal/service/simulation"
	"github.com/zhouzirui/persona-studio/backend/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "persona-studio: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Info("no .env file loaded, using system environment only", zap.Error(envErr))
	}

	kv, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer kv.Close()

	personaStore := persona.Open(ctx, kv, cfg.Storage.CollectionKey, logger)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := personaStore.Close(flushCtx); err != nil {
			logger.Error("failed to flush personas", zap.Error(err))
		}
	}()

	generator, replier, err := newBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}

	messages := message.NewService(personaStore, generator, logger)
	defer messages.Close()
	simulations := simulation.NewService(replier, logger)
	defer simulations.Close()

	router := handler.NewRouter(handler.Services{
		Personas:    personaStore,
		Messages:    messages,
		Simulations: simulations,
	}, logger)

	// Closing the services on shutdown ends open SSE and websocket
	// streams, which would otherwise hold Shutdown until its timeout.
	return startServer(ctx, cfg.Server, router, logger, messages.Close, simulations.Close)
}

// newBackends picks the LLM chain when Ark is configured and the canned
// template/script backends otherwise.
func newBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger) (message.Generator, simulation.Replier, error) {
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI, logger)
		if err == nil {
			logger.Info("AI service initialized", zap.String("model", cfg.AI.Model))
			return aiService, aiService, nil
		}
		logger.Warn("failed to initialize AI service, using canned backends - 请检查 Ark 模型相关环境变量", zap.Error(err))
	} else {
		logger.Info("Ark 凭证未配置，使用离线模板生成")
	}

	script := ai.DefaultScript()
	if cfg.Session.ScriptPath != "" {
		loaded, err := ai.LoadScript(cfg.Session.ScriptPath)
		if err != nil {
			return nil, nil, err
		}
		script = loaded
		logger.Info("loaded reply script", zap.String("path", cfg.Session.ScriptPath))
	}

	generator := ai.NewTemplateGenerator(cfg.Session.GenerationDelay, cfg.Session.RefineDelay)
	replier := ai.NewScriptedReplier(script, cfg.Session.OpeningReplyDelay, cfg.Session.ReplyDelay)
	return generator, replier, nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger, onShutdown ...func()) error {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	for _, f := range onShutdown {
		srv.RegisterOnShutdown(f)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Persona Studio backend listening", zap.String("addr", serverCfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
