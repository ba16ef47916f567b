package message

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/persona-studio/backend/internal/apperr"
	"github.com/zhouzirui/persona-studio/backend/internal/logging"
	model "github.com/zhouzirui/persona-studio/backend/internal/model/message"
	"github.com/zhouzirui/persona-studio/backend/internal/model/persona"
)

// Service owns the message sessions of the process.
type Service struct {
	personas  persona.Store
	generator Generator
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService returns a Service generating through generator.
func NewService(personas persona.Store, generator Generator, logger *zap.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		personas:  personas,
		generator: generator,
		logger:    logging.Or(logger).Named("message"),
		ctx:       ctx,
		cancel:    cancel,
		sessions:  make(map[string]*Session),
	}
}

// Create starts an idle session.
func (s *Service) Create(_ context.Context) (*Session, error) {
	id := uuid.NewString()
	session := &Session{
		id:        id,
		createdAt: time.Now().UTC(),
		personas:  s.personas,
		generator: s.generator,
		logger:    s.logger.With(zap.String("session", id)),
		baseCtx:   s.ctx,
		wg:        &s.wg,
		now:       func() time.Time { return time.Now().UTC() },
		state:     model.StateIdle,
		changed:   make(chan struct{}),
	}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return nil, apperr.Conflict("message service is closed")
	}
	s.sessions[id] = session
	s.mu.Unlock()

	s.logger.Info("session created", zap.String("session", id))
	return session, nil
}

// Get retrieves a session by identifier.
func (s *Service) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, apperr.NotFound("message session", id)
	}
	return session, nil
}

// Delete cancels any in-flight work, closes the session and forgets it.
func (s *Service) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return apperr.NotFound("message session", id)
	}
	session.close()
	return nil
}

// Close cancels all in-flight operations and waits for them to unwind.
// Every session is closed under its own lock first, so no operation can
// join the wait group once Wait has started.
func (s *Service) Close() {
	s.mu.Lock()
	s.cancel()
	for _, session := range s.sessions {
		session.close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}
