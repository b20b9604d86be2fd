package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultPushAPIBase = "https://api.pushover.net"

// PushoverChannel sends through the Pushover message API.
type PushoverChannel struct {
	token   string
	user    string
	apiBase string
	client  *http.Client
}

func NewPushoverChannel(token, user, apiBase string) *PushoverChannel {
	if apiBase == "" {
		apiBase = defaultPushAPIBase
	}
	return &PushoverChannel{
		token:   token,
		user:    user,
		apiBase: apiBase,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *PushoverChannel) Name() string { return "pushover" }

func (p *PushoverChannel) Send(ctx context.Context, n Notification) error {
	payload := map[string]string{
		"token":     p.token,
		"user":      p.user,
		"title":     n.Title,
		"message":   n.Message,
		"url":       n.URL,
		"url_title": n.URLTitle,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	target := strings.TrimRight(p.apiBase, "/") + "/1/messages.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("push api: unexpected status %d", res.StatusCode)
	}
	return nil
}
