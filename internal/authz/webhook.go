package authz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ctyano/athenz-auth-core/internal/core"
)

// WebhookAuthorizer delegates access decisions to an external policy
// service over HTTP. The service receives the action, resource, and
// principal and answers with {"allowed": bool}.
type WebhookAuthorizer struct {
	url    string
	client *http.Client
}

type WebhookConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

func NewWebhookAuthorizer(cfg WebhookConfig) (*WebhookAuthorizer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook authorizer requires 'url'")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookAuthorizer{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
	}, nil
}

var _ core.Authorizer = (*WebhookAuthorizer)(nil)

type webhookRequest struct {
	Action    string `json:"action"`
	Resource  string `json:"resource"`
	Principal string `json:"principal"`
}

type webhookResponse struct {
	Allowed bool `json:"allowed"`
}

func (w *WebhookAuthorizer) Access(ctx context.Context, action, resource string, principal core.Principal) (bool, error) {
	payload, err := json.Marshal(webhookRequest{
		Action:    action,
		Resource:  resource,
		Principal: principal.FullName(),
	})
	if err != nil {
		return false, fmt.Errorf("encoding webhook request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("calling authorization webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("authorization webhook returned status %d", resp.StatusCode)
	}

	var decision webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		return false, fmt.Errorf("decoding webhook response: %w", err)
	}

	return decision.Allowed, nil
}
