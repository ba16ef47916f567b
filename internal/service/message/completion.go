package message

import (
	"context"
	"errors"

	model "github.com/zhouzirui/persona-studio/backend/internal/model/message"
)

// ErrCancelled completes an operation abandoned by Session.Cancel.
var ErrCancelled = errors.New("operation cancelled")

// Completion resolves once a generate or refine operation finishes.
type Completion struct {
	done chan struct{}
	msg  model.Generated
	err  error
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Done is closed when the result is available.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the operation finishes or ctx ends.
func (c *Completion) Wait(ctx context.Context) (model.Generated, error) {
	select {
	case <-c.done:
		return c.msg, c.err
	case <-ctx.Done():
		return model.Generated{}, ctx.Err()
	}
}

func (c *Completion) resolve(msg model.Generated, err error) {
	c.msg, c.err = msg, err
	close(c.done)
}
