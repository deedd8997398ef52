package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// Alerts emails the owner of a down website and mirrors the message to the
// operator channel when one is configured.
type Alerts struct {
	log    *zap.Logger
	mailer Mailer
	ops    Notifier
	now    func() time.Time
}

func NewAlerts(log *zap.Logger, mailer Mailer, ops Notifier) *Alerts {
	return &Alerts{log: log, mailer: mailer, ops: ops, now: time.Now}
}

// Notify tells ownerEmail that url is down. A returned error wraps
// domain.ErrNotify and has already been logged.
func (a *Alerts) Notify(ctx context.Context, ownerEmail, url string) error {
	subject, body := a.format(url)

	var err error
	if a.mailer == nil {
		err = errors.New("no mailer configured")
	} else {
		err = a.mailer.SendMail(ctx, ownerEmail, subject, body)
	}
	if err != nil {
		a.log.Warn("alert_email_failed", zap.String("url", url), zap.String("to", ownerEmail), zap.Error(err))
	} else {
		a.log.Info("alert_email_sent", zap.String("url", url), zap.String("to", ownerEmail))
	}

	if a.ops != nil {
		if opsErr := a.ops.Send(ctx, subject, ownerEmail+": "+body); opsErr != nil {
			a.log.Warn("alert_ops_notify_failed", zap.String("url", url), zap.Error(opsErr))
		}
	}

	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNotify, err)
	}
	return nil
}

func (a *Alerts) format(url string) (string, string) {
	subject := fmt.Sprintf("Website DOWN: %s", url)
	body := fmt.Sprintf(
		"Your website %s is down.\nDetected: %s\n\nYou will not get another alert for this website for a while, even if it stays down.",
		url, a.now().UTC().Format(time.RFC3339),
	)
	return subject, body
}
