package notify

import (
	"context"
	"errors"

	"github.com/dandantas/tasyrunner/internal/model"
)

// Notifier delivers the summary of a finished job
type Notifier interface {
	Notify(ctx context.Context, job *model.Job) error
}

// Multi notifies every channel and joins their errors. One failing channel
// does not stop the others.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, job *model.Job) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, job); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
