// Package lifecycle provides the controller that owns the submission state
// machine shared by the story and community pipelines.
//
// States: IDLE -> SUBMITTING -> (SUCCEEDED | FAILED) -> IDLE. At most one
// submission is in flight across both pipelines.
package lifecycle

import (
	"errors"
	"slices"
	"time"

	"github.com/Da-Coder-Jr/Vidiment/internal/request"
)

// Phase is the current position in the state machine.
type Phase string

const (
	// PhaseIdle means nothing has been submitted or the last result was dismissed.
	PhaseIdle Phase = "IDLE"
	// PhaseSubmitting means one request is in flight.
	PhaseSubmitting Phase = "SUBMITTING"
	// PhaseSucceeded means the last submission produced an artifact.
	PhaseSucceeded Phase = "SUCCEEDED"
	// PhaseFailed means the last submission failed.
	PhaseFailed Phase = "FAILED"
)

// FailureKind classifies the message held by a FAILED state.
type FailureKind string

const (
	// FailureRejected is a non-2xx answer from the generation service.
	FailureRejected FailureKind = "rejected"
	// FailureTransport is a network or response decoding failure.
	FailureTransport FailureKind = "transport"
)

// Errors returned by the controller.
var (
	// ErrBusy is returned when a submission is already in flight.
	ErrBusy = errors.New("lifecycle: a submission is already in progress")
	// ErrInvalidTransition is returned when a transition is not allowed from the current phase.
	ErrInvalidTransition = errors.New("lifecycle: invalid state transition")
)

// validTransitions defines which phase changes are allowed.
var validTransitions = map[Phase][]Phase{
	PhaseIdle:       {PhaseSubmitting, PhaseIdle},
	PhaseSubmitting: {PhaseSucceeded, PhaseFailed},
	PhaseSucceeded:  {PhaseSubmitting, PhaseIdle},
	PhaseFailed:     {PhaseSubmitting, PhaseIdle},
}

// canTransition checks if a transition from one phase to another is valid.
func canTransition(from, to Phase) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// State is a snapshot of the display-facing lifecycle record.
type State struct {
	// Phase is the current state machine position.
	Phase Phase
	// Seq is the sequence number of the submission this state belongs to.
	Seq uint64
	// Pipeline is the pipeline of the latest submission.
	Pipeline request.Pipeline
	// ArtifactPath is the server path of the generated video (SUCCEEDED only).
	ArtifactPath string
	// Caption is the story text or video script (SUCCEEDED only).
	Caption string
	// Title is the original post title (SUCCEEDED, community only).
	Title string
	// Message is the user-visible error (FAILED only).
	Message string
	// Failure classifies Message (FAILED only).
	Failure FailureKind
	// UpdatedAt is when the state last changed.
	UpdatedAt time.Time
}

// IsTerminal returns true if the state holds an outcome.
func (s State) IsTerminal() bool {
	return s.Phase == PhaseSucceeded || s.Phase == PhaseFailed
}

// transitionTo moves s to the given phase, clearing any previous outcome.
func (s *State) transitionTo(to Phase, pipeline request.Pipeline) error {
	if !canTransition(s.Phase, to) {
		return ErrInvalidTransition
	}
	*s = State{
		Phase:     to,
		Seq:       s.Seq,
		Pipeline:  pipeline,
		UpdatedAt: time.Now(),
	}
	return nil
}
