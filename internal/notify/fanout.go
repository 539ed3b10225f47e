package notify

import (
	"context"
	"errors"

	"github.com/playperu/manhunt/internal/manhunt"
)

// Sender is the delivery contract shared by every notifier in this package.
type Sender interface {
	SendText(ctx context.Context, to manhunt.PersonID, text string) error
	SendLocation(ctx context.Context, to manhunt.PersonID, lat, lon float64) error
}

// Fanout delivers every message through all of its senders. A message counts
// as delivered when at least one sender accepted it.
type Fanout []Sender

func (f Fanout) SendText(ctx context.Context, to manhunt.PersonID, text string) error {
	return f.each(func(s Sender) error { return s.SendText(ctx, to, text) })
}

func (f Fanout) SendLocation(ctx context.Context, to manhunt.PersonID, lat, lon float64) error {
	return f.each(func(s Sender) error { return s.SendLocation(ctx, to, lat, lon) })
}

func (f Fanout) each(send func(Sender) error) error {
	var errs []error
	for _, s := range f {
		if err := send(s); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) < len(f) {
		return nil
	}
	return errors.Join(errs...)
}
