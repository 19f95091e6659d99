package automation

import (
	"context"

	"github.com/dandantas/tasyrunner/internal/model"
)

// Step names a stage of a flow. It is embedded in failure details so
// operators can tell where an item stopped.
type Step string

const (
	StepInit                Step = "INIT"
	StepOpenSession         Step = "OPEN_SESSION"
	StepSwitchEstablishment Step = "SWITCH_ESTABLISHMENT"
	StepOpenFunction        Step = "OPEN_FUNCTION"
	StepFilter              Step = "FILTER"
	StepOpenContextMenu     Step = "OPEN_CONTEXT_MENU"
	StepValidateDestination Step = "VALIDATE_DESTINATION"
	StepAwaitConfirmation   Step = "AWAIT_CONFIRMATION"
	StepSendFixedCommand    Step = "SEND_FIXED_COMMAND"
	StepDone                Step = "DONE"
)

// Tracker remembers the last step a runner entered
type Tracker struct {
	current Step
}

// NewTracker returns a tracker positioned at StepInit
func NewTracker() *Tracker {
	return &Tracker{current: StepInit}
}

// Enter records step as current
func (t *Tracker) Enter(step Step) {
	t.current = step
}

// Current returns the last step entered
func (t *Tracker) Current() Step {
	return t.current
}

// Do enters step and runs fn, tagging any failure with the step
func (t *Tracker) Do(step Step, fn func() error) error {
	t.Enter(step)
	if err := fn(); err != nil {
		return &StepError{Step: step, Err: err}
	}
	return nil
}

// Flow is one automation variant. Implementations are stateless and shared
// between runners; per-session state lives on the Session.
type Flow interface {
	Type() model.JobType

	// Attempts is the per-item attempt budget
	Attempts() int

	// Setup runs once per session before any item. An error is fatal to the
	// whole chunk.
	Setup(ctx context.Context, s *Session, tr *Tracker) error

	// Process drives one item through the step sequence and returns the
	// success detail
	Process(ctx context.Context, s *Session, item model.WorkItem, tr *Tracker) (string, error)

	// Recover is the best-effort gesture run after a failed attempt
	Recover(ctx context.Context, s *Session)
}
