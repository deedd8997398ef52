package domain

import "time"

type EndpointID string

// Status is the classification of a single probe.
type Status string

const (
	StatusUp   Status = "UP"
	StatusDown Status = "DOWN"
)

func (s Status) Valid() bool { return s == StatusUp || s == StatusDown }

// Endpoint is a monitored URL together with the contact of its owner.
type Endpoint struct {
	ID         EndpointID `json:"id"`
	URL        string     `json:"url"`
	Name       string     `json:"name,omitempty"`
	OwnerEmail string     `json:"owner_email"`
}

// CheckRecord is one immutable history row, written once per probe.
type CheckRecord struct {
	EndpointID EndpointID `json:"endpoint_id"`
	Status     Status     `json:"status"`
	CheckedAt  time.Time  `json:"checked_at"`
}

// AlertReceipt marks that an alert email was decided for an endpoint.
// Used only to enforce the cooldown window.
type AlertReceipt struct {
	EndpointID EndpointID `json:"endpoint_id"`
	OwnerEmail string     `json:"owner_email"`
	Status     Status     `json:"status"`
	SentAt     time.Time  `json:"sent_at"`
}
