package simulation

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/persona-studio/backend/internal/analysis/reaction"
	"github.com/zhouzirui/persona-studio/backend/internal/apperr"
	model "github.com/zhouzirui/persona-studio/backend/internal/model/simulation"
)

// Replier produces the virtual customer's answers.
type Replier interface {
	Reply(ctx context.Context, in model.ReplyInput) (string, error)
}

// TypingTexter is implemented by repliers that provide the placeholder
// shown while the customer is typing.
type TypingTexter interface {
	TypingText() string
}

type pendingReply struct {
	opening bool
}

// Session is one simulated conversation with a virtual customer. Replies
// are produced by a single worker goroutine in request order.
type Session struct {
	id           string
	personaLabel string
	personaName  string
	typingText   string
	createdAt    time.Time
	replier      Replier
	logger       *zap.Logger
	now          func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}

	mu      sync.Mutex
	turns   []model.Turn
	queue   []pendingReply
	working bool
	closed  bool
	changed chan struct{}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// PersonaLabel returns the label shown in the simulation header.
func (s *Session) PersonaLabel() string { return s.personaLabel }

// Respond appends a user turn and queues one customer reply.
func (s *Session) Respond(_ context.Context, text string) (model.Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Turn{}, apperr.Validation("text", "is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.Turn{}, apperr.Conflict("simulation %s is closed", s.id)
	}
	turn := s.appendLocked(model.Turn{Speaker: model.SpeakerUser, Text: text})
	s.enqueueLocked(pendingReply{})
	return turn, nil
}

// History returns the transcript, oldest first.
func (s *Session) History() []model.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Turn(nil), s.turns...)
}

// Typing reports whether a customer reply is pending.
func (s *Session) Typing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typingLocked()
}

// Await blocks until every queued reply has landed, the session closes,
// or ctx ends.
func (s *Session) Await(ctx context.Context) error {
	for {
		s.mu.Lock()
		if !s.typingLocked() || s.closed {
			s.mu.Unlock()
			return nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := model.Snapshot{
		SessionID:    s.id,
		PersonaLabel: s.personaLabel,
		Typing:       s.typingLocked(),
		Closed:       s.closed,
		Turns:        append([]model.Turn(nil), s.turns...),
		CreatedAt:    s.createdAt,
	}
	if snap.Typing {
		snap.TypingText = s.typingText
	}
	return snap
}

// Changed returns a channel closed at the next transcript or typing
// change.
func (s *Session) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Close stops the reply worker. Pending replies are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.queue = nil
	s.cancel()
	s.notifyLocked()
	s.logger.Info("simulation closed", zap.Int("turns", len(s.turns)))
}

func (s *Session) typingLocked() bool {
	return !s.closed && (s.working || len(s.queue) > 0)
}

func (s *Session) appendLocked(turn model.Turn) model.Turn {
	turn.At = s.now()
	s.turns = append(s.turns, turn)
	s.notifyLocked()
	return turn
}

func (s *Session) enqueueLocked(r pendingReply) {
	s.queue = append(s.queue, r)
	s.notifyLocked()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// work drains the reply queue until the session context ends.
func (s *Session) work() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.ctx.Done():
				return
			}
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.working = true
		in := model.ReplyInput{
			PersonaLabel: s.personaLabel,
			PersonaName:  s.personaName,
			Transcript:   append([]model.Turn(nil), s.turns...),
			Opening:      next.opening,
		}
		s.mu.Unlock()

		text, err := s.replier.Reply(s.ctx, in)

		s.mu.Lock()
		s.working = false
		switch {
		case s.closed:
		case err != nil:
			s.logger.Warn("customer reply failed", zap.Error(err))
			s.notifyLocked()
		case strings.TrimSpace(text) == "":
			s.logger.Warn("customer reply was empty")
			s.notifyLocked()
		default:
			text = strings.TrimSpace(text)
			s.appendLocked(model.Turn{
				Speaker:  model.SpeakerVirtualCustomer,
				Text:     text,
				Reaction: string(reaction.Analyze(text).Reaction),
			})
		}
		s.mu.Unlock()
	}
}
