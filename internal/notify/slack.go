package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Slack mirrors alerts to an incoming webhook for operators. Owners are
// always reached by email; Slack is never the only channel.
type Slack struct {
	webhook  string
	username string
	client   *http.Client
}

// NewSlack returns nil when webhook is empty.
func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		webhook:  webhook,
		username: "sitewatch",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type slackMessage struct {
	Username string `json:"username,omitempty"`
	Text     string `json:"text"`
	Mrkdwn   bool   `json:"mrkdwn"`
}

func (s *Slack) Send(ctx context.Context, title, text string) error {
	if s == nil {
		return errors.New("slack disabled")
	}
	payload, err := json.Marshal(slackMessage{
		Username: s.username,
		Text:     "*" + title + "*\n" + text,
		Mrkdwn:   true,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhook, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		return nil
	}
	// Slack explains rejections in a short plain-text body
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}
