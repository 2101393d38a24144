package lifecycle

import (
	"context"

	"github.com/Da-Coder-Jr/Vidiment/internal/request"
)

// Ticket tracks one dispatched submission.
type Ticket struct {
	// Seq is the submission's sequence number.
	Seq uint64
	// Pipeline is the pipeline that was submitted.
	Pipeline request.Pipeline

	done  chan struct{}
	final State
	stale bool
}

func newTicket(seq uint64, p request.Pipeline) *Ticket {
	return &Ticket{Seq: seq, Pipeline: p, done: make(chan struct{})}
}

// finish records the state after completion. Called once, with the controller lock held.
func (t *Ticket) finish(s State) {
	t.final = s
	close(t.done)
}

// Done is closed once the outcome has been applied or discarded.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the submission completes and returns the controller
// state right after its outcome was applied. Stale reports whether the
// outcome was discarded because a newer submission owned the state.
func (t *Ticket) Wait(ctx context.Context) (s State, stale bool, err error) {
	select {
	case <-ctx.Done():
		return State{}, false, ctx.Err()
	case <-t.done:
		return t.final, t.stale, nil
	}
}
