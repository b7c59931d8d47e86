package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonwraymond/tylolens/auth"
	"github.com/jonwraymond/tylolens/lens"
)

// DefaultWebhookTimeout bounds a webhook request when no Client is given.
const DefaultWebhookTimeout = 10 * time.Second

// WebhookOptions configures Webhook.
type WebhookOptions struct {
	// URL receives a POST per trace. Required.
	URL string

	// Headers are added to every request after Content-Type.
	Headers map[string]string

	// Transform replaces the trace with another JSON payload.
	Transform func(*lens.Trace) any

	// Client sends the request.
	// Default: an http.Client with DefaultWebhookTimeout.
	Client *http.Client

	// SigningKey enables an HS256 bearer token on every request, verified
	// by the ingestion server configured with the same key.
	SigningKey []byte

	// Issuer is the iss claim of signed tokens. The subject is the app name.
	Issuer string
}

type webhookExporter struct {
	opts   WebhookOptions
	client *http.Client
	signer func(subject string) (string, error)
}

// Webhook posts each trace as JSON to opts.URL. A non-2xx answer is
// reported as *StatusError.
func Webhook(opts WebhookOptions) (lens.Exporter, error) {
	if opts.URL == "" {
		return nil, ErrMissingURL
	}
	e := &webhookExporter{opts: opts, client: opts.Client}
	if e.client == nil {
		e.client = &http.Client{Timeout: DefaultWebhookTimeout}
	}
	if len(opts.SigningKey) > 0 {
		e.signer = func(subject string) (string, error) {
			s, err := auth.NewSigner(auth.SignerConfig{
				Secret:  opts.SigningKey,
				Issuer:  opts.Issuer,
				Subject: subject,
			})
			if err != nil {
				return "", err
			}
			return s.Sign()
		}
	}
	return e, nil
}

func (e *webhookExporter) Name() string { return "webhook" }

func (e *webhookExporter) Export(ctx context.Context, t *lens.Trace) error {
	var payload any = t
	if e.opts.Transform != nil {
		payload = e.opts.Transform(t)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("export: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.opts.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("export: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range e.opts.Headers {
		req.Header.Set(k, v)
	}
	if e.signer != nil {
		token, err := e.signer(t.App.Name)
		if err != nil {
			return fmt.Errorf("export: sign request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("export: post trace: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}
