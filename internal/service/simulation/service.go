package simulation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/persona-studio/backend/internal/apperr"
	"github.com/zhouzirui/persona-studio/backend/internal/logging"
	model "github.com/zhouzirui/persona-studio/backend/internal/model/simulation"
)

const defaultTypingText = "입력 중..."

// Service owns the simulation sessions of the process.
type Service struct {
	replier    Replier
	typingText string
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService returns a Service answering through replier.
func NewService(replier Replier, logger *zap.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	typingText := defaultTypingText
	if t, ok := replier.(TypingTexter); ok && strings.TrimSpace(t.TypingText()) != "" {
		typingText = strings.TrimSpace(t.TypingText())
	}
	return &Service{
		replier:    replier,
		typingText: typingText,
		logger:     logging.Or(logger).Named("simulation"),
		ctx:        ctx,
		cancel:     cancel,
		sessions:   make(map[string]*Session),
	}
}

// Start opens a simulation seeded with the handed-off message and queues
// the customer's opening reply.
func (s *Service) Start(_ context.Context, handoff model.Handoff) (*Session, error) {
	text := strings.TrimSpace(handoff.Text)
	if text == "" {
		return nil, apperr.Validation("text", "is required")
	}
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(s.ctx)
	session := &Session{
		id:           id,
		personaLabel: strings.TrimSpace(handoff.PersonaLabel),
		personaName:  strings.TrimSpace(handoff.PersonaName),
		typingText:   s.typingText,
		createdAt:    time.Now().UTC(),
		replier:      s.replier,
		logger:       s.logger.With(zap.String("simulation", id)),
		now:          func() time.Time { return time.Now().UTC() },
		ctx:          ctx,
		cancel:       cancel,
		wake:         make(chan struct{}, 1),
		changed:      make(chan struct{}),
	}

	session.mu.Lock()
	session.appendLocked(model.Turn{Speaker: model.SpeakerUser, Text: text})
	session.enqueueLocked(pendingReply{opening: true})
	session.mu.Unlock()

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		cancel()
		return nil, apperr.Conflict("simulation service is closed")
	}
	s.sessions[id] = session
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		session.work()
	}()

	s.logger.Info("simulation started", zap.String("simulation", id), zap.String("persona", session.personaLabel))
	return session, nil
}

// Get retrieves a simulation by identifier.
func (s *Service) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, apperr.NotFound("simulation", id)
	}
	return session, nil
}

// End closes the simulation and forgets it.
func (s *Service) End(_ context.Context, id string) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return apperr.NotFound("simulation", id)
	}
	session.Close()
	return nil
}

// Close stops every reply worker and waits for them to exit.
func (s *Service) Close() {
	s.mu.Lock()
	s.cancel()
	for _, session := range s.sessions {
		session.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}
