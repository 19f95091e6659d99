package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dandantas/tasyrunner/internal/model"
)

// BoletosFlow emails the boleto of each title to the payer registered in the
// ERP
type BoletosFlow struct {
	maxRetries int
}

// NewBoletosFlow creates the boletos flow with the given attempt budget
func NewBoletosFlow(maxRetries int) *BoletosFlow {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &BoletosFlow{maxRetries: maxRetries}
}

func (f *BoletosFlow) Type() model.JobType { return model.JobTypeBoletos }

func (f *BoletosFlow) Attempts() int { return f.maxRetries }

func (f *BoletosFlow) Setup(ctx context.Context, s *Session, tr *Tracker) error {
	loc := s.Locators()
	return tr.Do(StepOpenFunction, func() error {
		return s.OpenFunction(ctx, loc.BoletosFunctionName, loc.BoletosFunction, loc.FilterToggle)
	})
}

func (f *BoletosFlow) Process(ctx context.Context, s *Session, item model.WorkItem, tr *Tracker) (string, error) {
	loc := s.Locators()
	t := s.Timings()

	err := tr.Do(StepFilter, func() error {
		return s.ApplyFilter(ctx, Filter{
			Input:  loc.TitleInput,
			Toggle: loc.FilterToggle,
			Button: loc.FilterButton,
			Alert:  loc.CloseAlert,
		}, item.ID)
	})
	if err != nil {
		return "", err
	}

	err = tr.Do(StepOpenContextMenu, func() error {
		if err := s.ContextClick(ctx, loc.GridRow, t.GridWait); err != nil {
			return err
		}
		if err := s.Hover(ctx, loc.MenuBoletos, t.DefaultWait); err != nil {
			return err
		}
		// The send action is rendered either as a tooltip item or as plain text
		return s.ClickFirst(ctx, t.FieldProbe, t.DefaultWait, loc.MenuSendEmail, loc.MenuSendEmailText)
	})
	if err != nil {
		return "", err
	}

	var email string
	err = tr.Do(StepValidateDestination, func() error {
		v, err := s.Value(ctx, loc.RecipientInput, t.DefaultWait)
		if err != nil {
			return err
		}
		email = strings.TrimSpace(v)
		if email == "" {
			return &ValidationError{
				Reason:  model.ReasonEmptyEmail,
				Message: "payer has no e-mail address on file",
			}
		}
		return s.Click(ctx, loc.ConfirmBlue, t.DefaultWait)
	})
	if err != nil {
		return "", err
	}

	err = tr.Do(StepAwaitConfirmation, func() error {
		if err := s.AwaitVisible(ctx, loc.SentMarker, t.Confirmation); err != nil {
			if errors.Is(err, ErrSessionLost) {
				return err
			}
			slog.Warn("Send confirmation not shown, continuing",
				"session_id", s.ID,
				"item_id", item.ID,
			)
		}
		if err := s.Click(ctx, loc.DialogOK, t.DefaultWait); err != nil {
			return err
		}
		_ = s.AwaitAbsent(ctx, loc.DialogOK, t.DialogClose)
		_ = s.WaitOverlayClear(ctx, t.OverlayWait)
		return nil
	})
	if err != nil {
		return "", err
	}

	tr.Enter(StepDone)
	return fmt.Sprintf("Sent to: %s", email), nil
}

func (f *BoletosFlow) Recover(ctx context.Context, s *Session) {
	_ = s.Escape(ctx)
	s.pause(ctx, s.Timings().RecoverSettle)
}
