package alert

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/queue"
)

// Publisher enqueues one AlertMessage per DOWN observation. The connection
// is dialed on first use and dropped after any failure, so the next DOWN
// observation redials.
type Publisher struct {
	log  *zap.Logger
	dial queue.Dialer

	mu   sync.Mutex
	conn queue.Conn
}

func NewPublisher(log *zap.Logger, dial queue.Dialer) *Publisher {
	return &Publisher{log: log, dial: dial}
}

func (p *Publisher) PublishIfDown(ctx context.Context, ep domain.Endpoint, status domain.Status) error {
	if status != domain.StatusDown {
		return nil
	}
	body, err := domain.NewAlertMessage(ep).Encode()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		c, err := p.dial(ctx)
		if err != nil {
			p.log.Warn("alert_publish_failed", zap.String("endpoint_id", string(ep.ID)), zap.String("stage", "dial"), zap.Error(err))
			return err
		}
		p.conn = c
	}
	if err := p.conn.Publish(ctx, body); err != nil {
		_ = p.conn.Close()
		p.conn = nil
		p.log.Warn("alert_publish_failed", zap.String("endpoint_id", string(ep.ID)), zap.String("stage", "publish"), zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
	}
	p.log.Debug("alert_published", zap.String("endpoint_id", string(ep.ID)), zap.String("url", ep.URL))
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
