package automation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dandantas/tasyrunner/internal/model"
)

// ErrSessionLost is returned when the browser behind a session is gone
var ErrSessionLost = errors.New("browser session lost")

// SessionInitError means a session could not be launched or authenticated
type SessionInitError struct {
	Phase string // "launch" or "login"
	Err   error
}

func (e *SessionInitError) Error() string {
	return fmt.Sprintf("session init failed during %s: %v", e.Phase, e.Err)
}

func (e *SessionInitError) Unwrap() error { return e.Err }

// ElementTimeoutError means a UI wait expired
type ElementTimeoutError struct {
	Locator string
	Wait    string // "visible", "clickable", "absent"
}

func (e *ElementTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for %s to be %s", e.Locator, e.Wait)
}

// ValidationError is a permanent per-item failure that must never be retried
type ValidationError struct {
	Reason  model.FailureReason
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// StepError ties a failure to the flow step that produced it
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Step, firstLine(e.Err))
}

func (e *StepError) Unwrap() error { return e.Err }

// CrashError is a failure that escaped the per-item loop
type CrashError struct {
	Step Step
	Err  error
}

func (e *CrashError) Error() string {
	return fmt.Sprintf("crash at step '%s': %s", e.Step, firstLine(e.Err))
}

func (e *CrashError) Unwrap() error { return e.Err }

// IsNonRetryable reports whether err must terminate the attempt loop
func IsNonRetryable(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// ReasonFor maps an attempt error to the reason recorded on the result
func ReasonFor(err error) model.FailureReason {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	var terr *ElementTimeoutError
	if errors.As(err, &terr) {
		return model.ReasonTimeout
	}
	return model.ReasonError
}

// firstLine trims driver errors, which often carry multi-line stack dumps
func firstLine(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = strings.TrimSpace(msg[:i])
	}
	if msg == "" {
		msg = fmt.Sprintf("unknown error (%T)", err)
	}
	return msg
}
