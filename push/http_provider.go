package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"directory-chat/errors"
)

// HTTPProvider posts payloads to an FCM-style HTTP endpoint. The
// endpoint and server key come from configuration; credential
// management is out of scope here.
type HTTPProvider struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

func NewHTTPProvider(endpoint, apiKey string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		apiKey:   apiKey,
	}
}

type providerRequest struct {
	To           string            `json:"to"`
	Notification notificationBody  `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type notificationBody struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Send posts the payload for one token. HTTP 404 and 410 classify as a
// permanent token fault; everything else non-2xx is transient.
func (p *HTTPProvider) Send(ctx context.Context, token string, payload Payload) error {
	body, err := json.Marshal(providerRequest{
		To: token,
		Notification: notificationBody{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data: payload.Data,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "key="+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("push provider request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: status %d", errors.ErrTokenUnregistered, resp.StatusCode)
	default:
		return fmt.Errorf("push provider status %d", resp.StatusCode)
	}
}
