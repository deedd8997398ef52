package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/resend/resend-go/v2"
)

// Resend sends mail through the Resend HTTP API.
type Resend struct {
	client *resend.Client
	from   string
}

func NewResend(apiKey, from string) *Resend {
	if apiKey == "" {
		return nil
	}
	hc := &http.Client{Timeout: 15 * time.Second}
	return &Resend{client: resend.NewCustomClient(hc, apiKey), from: from}
}

func (r *Resend) SendMail(ctx context.Context, to, subject, body string) error {
	if r == nil {
		return errors.New("resend disabled")
	}
	_, err := r.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return fmt.Errorf("resend send to %s: %w", to, err)
	}
	return nil
}
