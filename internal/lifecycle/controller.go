package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Da-Coder-Jr/Vidiment/internal/generator"
	"github.com/Da-Coder-Jr/Vidiment/internal/request"
)

// Dispatcher runs a submission off the caller's goroutine.
// *ants.Pool satisfies it.
type Dispatcher interface {
	Submit(task func()) error
}

// goDispatcher starts one goroutine per task.
type goDispatcher struct{}

func (goDispatcher) Submit(task func()) error {
	go task()
	return nil
}

// Controller owns both pipelines' form state and the single lifecycle State.
// It is safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	client     generator.Client
	dispatcher Dispatcher
	logger     *slog.Logger

	state     State
	seq       uint64
	story     request.StoryForm
	community request.CommunityForm
}

// Option configures a Controller.
type Option func(*Controller)

// WithDispatcher sets where submissions run. Defaults to a new goroutine per submission.
func WithDispatcher(d Dispatcher) Option {
	return func(c *Controller) {
		if d != nil {
			c.dispatcher = d
		}
	}
}

// WithLogger sets the controller's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController creates an idle controller submitting through client.
func NewController(client generator.Client, opts ...Option) *Controller {
	c := &Controller{
		client:     client,
		dispatcher: goDispatcher{},
		logger:     slog.Default(),
		state:      State{Phase: PhaseIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StoryForm returns a copy of the story pipeline's form.
func (c *Controller) StoryForm() request.StoryForm {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.story.Clone()
}

// CommunityForm returns a copy of the community pipeline's form.
func (c *Controller) CommunityForm() request.CommunityForm {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.community.Clone()
}

// UpdateStoryForm applies fn to the story form.
// Inputs are locked while a submission is in flight; ErrBusy is returned then.
func (c *Controller) UpdateStoryForm(fn func(*request.StoryForm)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase == PhaseSubmitting {
		return ErrBusy
	}
	fn(&c.story)
	return nil
}

// UpdateCommunityForm applies fn to the community form.
// Inputs are locked while a submission is in flight; ErrBusy is returned then.
func (c *Controller) UpdateCommunityForm(fn func(*request.CommunityForm)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase == PhaseSubmitting {
		return ErrBusy
	}
	fn(&c.community)
	return nil
}

// SubmitStory builds a request from the story form and starts submitting it.
func (c *Controller) SubmitStory(ctx context.Context) (*Ticket, error) {
	return c.submit(ctx, request.PipelineStory, func() (request.GenerationRequest, error) {
		return request.BuildStory(c.story)
	})
}

// SubmitCommunity builds a request from the community form and starts submitting it.
func (c *Controller) SubmitCommunity(ctx context.Context) (*Ticket, error) {
	return c.submit(ctx, request.PipelineCommunity, func() (request.GenerationRequest, error) {
		return request.BuildCommunity(c.community)
	})
}

// Submit dispatches to SubmitStory or SubmitCommunity.
func (c *Controller) Submit(ctx context.Context, p request.Pipeline) (*Ticket, error) {
	if p == request.PipelineCommunity {
		return c.SubmitCommunity(ctx)
	}
	return c.SubmitStory(ctx)
}

// Dismiss returns a terminal state to IDLE.
func (c *Controller) Dismiss() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase == PhaseSubmitting {
		return ErrBusy
	}
	return c.state.transitionTo(PhaseIdle, "")
}

// submit runs the guard, build and transition under the lock, then dispatches.
// build is called with c.mu held.
func (c *Controller) submit(ctx context.Context, p request.Pipeline, build func() (request.GenerationRequest, error)) (*Ticket, error) {
	c.mu.Lock()
	if c.state.Phase == PhaseSubmitting {
		c.mu.Unlock()
		c.logger.Debug("submission rejected: busy", slog.String("pipeline", string(p)))
		return nil, ErrBusy
	}

	req, err := build()
	if err != nil {
		// The stored outcome stays visible; the caller reports the error.
		c.mu.Unlock()
		c.logger.Info("submission not started",
			slog.String("pipeline", string(p)),
			slog.String("reason", err.Error()),
		)
		return nil, err
	}

	if err := c.state.transitionTo(PhaseSubmitting, p); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.seq++
	c.state.Seq = c.seq
	ticket := newTicket(c.seq, p)
	c.mu.Unlock()

	c.logger.Info("submission started",
		slog.String("pipeline", string(p)),
		slog.Uint64("seq", ticket.Seq),
		slog.String("background", string(req.BackgroundSource().Kind())),
	)

	// The call runs to completion even if the caller goes away.
	runCtx := context.WithoutCancel(ctx)
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				c.complete(ticket, generator.Result{}, &generator.TransportError{
					Op:  "submit request",
					Err: fmt.Errorf("panic: %v", r),
				})
			}
		}()
		result, err := c.client.Submit(runCtx, req)
		c.complete(ticket, result, err)
	}
	if err := c.dispatcher.Submit(task); err != nil {
		c.complete(ticket, generator.Result{}, &generator.TransportError{Op: "dispatch submission", Err: err})
	}
	return ticket, nil
}

// complete applies a submission outcome if it still belongs to the current submission.
func (c *Controller) complete(t *Ticket, result generator.Result, err error) {
	c.mu.Lock()
	defer func() {
		t.finish(c.state)
		c.mu.Unlock()
	}()

	if t.Seq != c.seq || c.state.Phase != PhaseSubmitting {
		c.logger.Warn("discarding stale submission outcome",
			slog.Uint64("seq", t.Seq),
			slog.Uint64("current_seq", c.seq),
		)
		t.stale = true
		return
	}

	if err == nil {
		_ = c.state.transitionTo(PhaseSucceeded, t.Pipeline)
		c.state.ArtifactPath = result.ArtifactPath
		c.state.Caption = result.Text
		c.state.Title = result.Title

		// Background inputs reset on success in both pipelines; text and narration stay.
		c.story.ClearBackground()
		c.community.ClearBackground()

		c.logger.Info("submission succeeded",
			slog.String("pipeline", string(t.Pipeline)),
			slog.Uint64("seq", t.Seq),
			slog.String("artifact_path", result.ArtifactPath),
		)
		return
	}

	_ = c.state.transitionTo(PhaseFailed, t.Pipeline)
	c.state.Message, c.state.Failure = classify(err)

	c.logger.Error("submission failed",
		slog.String("pipeline", string(t.Pipeline)),
		slog.Uint64("seq", t.Seq),
		slog.String("failure", string(c.state.Failure)),
		slog.String("error", err.Error()),
	)
}

// classify maps a channel error to a user-visible message.
func classify(err error) (string, FailureKind) {
	var rejected *generator.RejectedError
	if errors.As(err, &rejected) {
		return rejected.Detail, FailureRejected
	}
	return err.Error(), FailureTransport
}
