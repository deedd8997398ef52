package notify

import (
	"context"

	"go.uber.org/multierr"
)

// Notifier posts a short message to an operator channel.
type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Multi fans out to every notifier and returns all failures combined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, text string) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, title, text))
	}
	return err
}

// Mailer delivers one plain-text email.
type Mailer interface {
	SendMail(ctx context.Context, to, subject, body string) error
}
