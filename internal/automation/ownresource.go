package automation

import (
	"context"

	"github.com/dandantas/tasyrunner/internal/model"
)

// DefaultEstablishment is the establishment own-resource authorizations are
// filed under
const DefaultEstablishment = "Hospital Unimed Rio Verde"

// OwnResourceFlow advances own-resource authorizations by sending the
// ERP's Ctrl+F10 shortcut on each filtered record
type OwnResourceFlow struct {
	establishment string
}

// NewOwnResourceFlow creates the flow for the given establishment
func NewOwnResourceFlow(establishment string) *OwnResourceFlow {
	if establishment == "" {
		establishment = DefaultEstablishment
	}
	return &OwnResourceFlow{establishment: establishment}
}

func (f *OwnResourceFlow) Type() model.JobType { return model.JobTypeRecursoProprio }

// Attempts is one: a retry after a partial run could send the shortcut twice
func (f *OwnResourceFlow) Attempts() int { return 1 }

func (f *OwnResourceFlow) Setup(ctx context.Context, s *Session, tr *Tracker) error {
	if err := tr.Do(StepSwitchEstablishment, func() error {
		return f.switchEstablishment(ctx, s)
	}); err != nil {
		return err
	}
	return tr.Do(StepOpenFunction, func() error {
		return f.openFunction(ctx, s)
	})
}

func (f *OwnResourceFlow) switchEstablishment(ctx context.Context, s *Session) error {
	loc := s.Locators()
	t := s.Timings()

	_ = s.WaitOverlayClear(ctx, t.OverlayWait)

	if err := s.Click(ctx, loc.AvatarButton, t.DefaultWait); err != nil {
		return err
	}
	s.pause(ctx, t.MenuSettle)

	if err := s.Click(ctx, loc.CurrentEstablishment, t.DefaultWait); err != nil {
		return err
	}
	s.pause(ctx, t.MenuSettle)

	if err := s.AwaitVisible(ctx, loc.EstablishmentModal, t.OverlayWait); err != nil {
		return err
	}
	if err := s.Click(ctx, loc.EstablishmentDropdown, t.DefaultWait); err != nil {
		return err
	}
	s.pause(ctx, t.MenuSettle)

	if err := s.Click(ctx, loc.establishmentOption(f.establishment), t.DefaultWait); err != nil {
		return err
	}
	s.pause(ctx, t.MenuSettle)

	if err := s.Click(ctx, loc.EstablishmentOK, t.DefaultWait); err != nil {
		return err
	}
	s.pause(ctx, t.CommandSettle)
	_ = s.WaitOverlayClear(ctx, t.OverlayWait)
	return nil
}

func (f *OwnResourceFlow) openFunction(ctx context.Context, s *Session) error {
	loc := s.Locators()
	return s.OpenFunction(ctx, loc.AuthFunctionName, loc.AuthFunction, loc.AuthFilterToggle)
}

func (f *OwnResourceFlow) Process(ctx context.Context, s *Session, item model.WorkItem, tr *Tracker) (string, error) {
	loc := s.Locators()
	t := s.Timings()

	err := tr.Do(StepFilter, func() error {
		// A reload after a failed item drops the open function
		if err := f.openFunction(ctx, s); err != nil {
			return err
		}
		if err := s.ApplyFilter(ctx, Filter{
			Input:  loc.SequenceInput,
			Toggle: loc.AuthFilterToggle,
			Button: loc.AuthFilterButton,
		}, item.ID); err != nil {
			return err
		}
		_ = s.WaitOverlayClear(ctx, t.OverlayWait)
		s.pause(ctx, t.MenuSettle)
		return nil
	})
	if err != nil {
		return "", err
	}

	err = tr.Do(StepSendFixedCommand, func() error {
		if err := s.SendCtrlKey(ctx, KeyF10); err != nil {
			return err
		}
		s.pause(ctx, t.CommandSettle)
		return nil
	})
	if err != nil {
		return "", err
	}

	tr.Enter(StepDone)
	return "Ctrl+F10 sent", nil
}

// Recover reloads the page to clear any dialog the failed item left open
func (f *OwnResourceFlow) Recover(ctx context.Context, s *Session) {
	_ = s.Escape(ctx)
	_ = s.Reload(ctx)
	_ = s.WaitOverlayClear(ctx, s.Timings().OverlayWait)
	s.pause(ctx, s.Timings().RecoverSettle)
}
