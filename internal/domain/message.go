package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// AlertMessage is the queue payload produced for every DOWN observation.
// It carries no identity; consumers must tolerate duplicates.
type AlertMessage struct {
	EndpointID EndpointID `json:"endpointId"`
	URL        string     `json:"url"`
	OwnerEmail string     `json:"ownerEmail"`
}

func NewAlertMessage(ep Endpoint) AlertMessage {
	return AlertMessage{EndpointID: ep.ID, URL: ep.URL, OwnerEmail: ep.OwnerEmail}
}

func (m AlertMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

func DecodeAlertMessage(b []byte) (AlertMessage, error) {
	var m AlertMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return AlertMessage{}, fmt.Errorf("decode alert message: %w", err)
	}
	if m.EndpointID == "" {
		return AlertMessage{}, errors.New("decode alert message: missing endpointId")
	}
	return m, nil
}
