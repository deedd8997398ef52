// Package alert turns DOWN observations into owner emails: the publisher
// enqueues a trigger per DOWN probe and the engine decides, from stored
// history and receipts, whether an email is due.
package alert

import (
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// Policy holds the two knobs of the decision.
type Policy struct {
	Threshold int           // most recent records that must all be DOWN
	Cooldown  time.Duration // minimum gap between two emails for one endpoint
}

type Reason string

const (
	ReasonInsufficientHistory Reason = "insufficient_history"
	ReasonNotPersistent       Reason = "not_persistent"
	ReasonCooldown            Reason = "cooldown"
)

// Decision is either Send or a suppression with its Reason.
type Decision struct {
	Send   bool
	Reason Reason
}

func suppress(r Reason) Decision { return Decision{Reason: r} }

// Decide applies the persistence and cooldown rules. history must be ordered
// newest first; last is the most recent receipt or nil.
func Decide(history []domain.CheckRecord, last *domain.AlertReceipt, now time.Time, p Policy) Decision {
	n := p.Threshold
	if n < 1 {
		n = 1
	}
	if len(history) < n {
		return suppress(ReasonInsufficientHistory)
	}
	for _, r := range history[:n] {
		if r.Status != domain.StatusDown {
			return suppress(ReasonNotPersistent)
		}
	}
	if last != nil && now.Sub(last.SentAt) < p.Cooldown {
		return suppress(ReasonCooldown)
	}
	return Decision{Send: true}
}
