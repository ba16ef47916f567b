package message

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/persona-studio/backend/internal/apperr"
	model "github.com/zhouzirui/persona-studio/backend/internal/model/message"
	"github.com/zhouzirui/persona-studio/backend/internal/model/persona"
	"github.com/zhouzirui/persona-studio/backend/internal/model/simulation"
)

// Generator produces message text. Implementations honour ctx
// cancellation; a cancelled call's result is discarded.
type Generator interface {
	Generate(ctx context.Context, p persona.Persona, req model.Request) (string, error)
	Refine(ctx context.Context, p persona.Persona, prior model.Generated, instruction string) (string, error)
}

type operation struct {
	ctx        context.Context
	cancel     context.CancelFunc
	prev       model.State
	completion *Completion
}

// Session is the generate → refine workflow for one conversation. At most
// one operation is in flight; the state guards serialize callers.
type Session struct {
	id        string
	createdAt time.Time
	personas  persona.Store
	generator Generator
	logger    *zap.Logger
	baseCtx   context.Context
	wg        *sync.WaitGroup
	now       func() time.Time

	mu       sync.Mutex
	state    model.State
	persona  persona.Persona
	history  []model.Generated
	inflight *operation
	closed   bool
	changed  chan struct{}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Generate starts a new message for req. Valid from idle or ready.
func (s *Session) Generate(_ context.Context, req model.Request) (*Completion, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, apperr.Conflict("session %s is closed", s.id)
	}
	if s.state.Busy() {
		return nil, apperr.Conflict("session %s is %s", s.id, s.state)
	}

	p, ok := s.personas.FindByID(req.PersonaID)
	if !ok {
		return nil, apperr.Validation("personaId", "unknown persona %q", req.PersonaID)
	}

	op := s.begin(model.StateGenerating)
	s.persona = p
	s.logger.Info("generating message",
		zap.String("persona", p.ID), zap.String("goal", string(req.Goal)), zap.String("subject", req.Subject()))

	s.run(op, func(ctx context.Context) (model.Generated, error) {
		text, err := s.generator.Generate(ctx, p, req)
		if err != nil {
			return model.Generated{}, err
		}
		return model.Generated{Text: text, Request: req}, nil
	})
	return op.completion, nil
}

// Refine applies instruction to the latest message. Valid only from ready.
func (s *Session) Refine(_ context.Context, instruction string) (*Completion, error) {
	instruction = strings.TrimSpace(instruction)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, apperr.Conflict("session %s is closed", s.id)
	}
	if s.state.Busy() {
		return nil, apperr.Conflict("session %s is %s", s.id, s.state)
	}
	if s.state != model.StateReady || len(s.history) == 0 {
		return nil, apperr.Validation("instruction", "no generated message to refine yet")
	}
	if instruction == "" {
		return nil, apperr.Validation("instruction", "is required")
	}

	prior := s.history[len(s.history)-1]
	p := s.persona
	op := s.begin(model.StateRefining)
	s.logger.Info("refining message", zap.Int("version", prior.Version), zap.String("instruction", instruction))

	s.run(op, func(ctx context.Context) (model.Generated, error) {
		text, err := s.generator.Refine(ctx, p, prior, instruction)
		if err != nil {
			return model.Generated{}, err
		}
		return model.Generated{Text: text, Request: prior.Request, Instruction: instruction}, nil
	})
	return op.completion, nil
}

// Cancel abandons the in-flight operation and restores the state held
// before it started. It reports whether anything was cancelled.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked()
}

// close cancels in-flight work and rejects further operations.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.cancelLocked()
	s.closed = true
	s.notifyLocked()
	s.logger.Info("session closed", zap.Int("versions", len(s.history)))
}

func (s *Session) cancelLocked() bool {
	op := s.inflight
	if op == nil {
		return false
	}
	op.cancel()
	s.inflight = nil
	s.state = op.prev
	op.completion.resolve(model.Generated{}, ErrCancelled)
	s.notifyLocked()

	s.logger.Info("operation cancelled", zap.String("state", string(s.state)))
	return true
}

// CurrentText returns the latest message body, empty before the first
// generation.
func (s *Session) CurrentText() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) == 0 {
		return ""
	}
	return s.history[len(s.history)-1].Text
}

// History returns every version, oldest first.
func (s *Session) History() []model.Generated {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Generated(nil), s.history...)
}

// State returns the current workflow state.
func (s *Session) State() model.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Handoff returns the simulation payload. Only a ready session hands off.
func (s *Session) Handoff() (simulation.Handoff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != model.StateReady {
		return simulation.Handoff{}, apperr.Conflict("session %s is %s, not ready", s.id, s.state)
	}
	return simulation.Handoff{
		Text:         s.history[len(s.history)-1].Text,
		PersonaLabel: s.persona.Label(),
		PersonaName:  s.persona.Name,
	}, nil
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := model.Snapshot{
		SessionID: s.id,
		State:     s.state,
		Versions:  len(s.history),
		Closed:    s.closed,
		CreatedAt: s.createdAt,
	}
	if s.persona.ID != "" {
		snap.PersonaID = s.persona.ID
		snap.PersonaLabel = s.persona.Label()
	}
	if n := len(s.history); n > 0 {
		current := s.history[n-1]
		snap.Current = &current
	}
	return snap
}

// Changed returns a channel closed at the next state change.
func (s *Session) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// begin must be called with mu held.
func (s *Session) begin(state model.State) *operation {
	ctx, cancel := context.WithCancel(s.baseCtx)
	op := &operation{ctx: ctx, cancel: cancel, prev: s.state, completion: newCompletion()}
	s.inflight = op
	s.state = state
	s.notifyLocked()
	return op
}

func (s *Session) run(op *operation, work func(ctx context.Context) (model.Generated, error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer op.cancel()

		msg, err := work(op.ctx)
		s.finish(op, msg, err)
	}()
}

func (s *Session) finish(op *operation, msg model.Generated, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight != op {
		// Cancelled; Cancel already resolved the completion.
		return
	}
	s.inflight = nil

	if err != nil {
		s.state = op.prev
		op.completion.resolve(model.Generated{}, err)
		s.notifyLocked()
		s.logger.Warn("operation failed", zap.Error(err))
		return
	}

	msg.ID = uuid.NewString()
	msg.Version = len(s.history) + 1
	msg.CreatedAt = s.now()
	s.history = append(s.history, msg)
	s.state = model.StateReady
	op.completion.resolve(msg, nil)
	s.notifyLocked()

	s.logger.Info("message ready", zap.Int("version", msg.Version), zap.Int("length", len(msg.Text)))
}

func (s *Session) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}
