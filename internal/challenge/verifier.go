// Package challenge verifies interactive bot-challenge tokens against their
// issuing providers.
package challenge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"boardgate/internal/config"
)

// Result reports a single provider's verdict on a token
type Result struct {
	Provider string
	Success  bool
	// ErrorCodes carries the provider's failure codes verbatim for logging.
	ErrorCodes []string
}

// Provider verifies tokens against one siteverify-style endpoint. Both
// supported providers speak the same form-POST protocol.
type Provider struct {
	name      string
	verifyURL string
	secret    string
	client    *http.Client
}

// NewProvider creates a provider from its configuration sharing the given client
func NewProvider(cfg config.ChallengeProviderConfig, client *http.Client) *Provider {
	return &Provider{
		name:      cfg.Name,
		verifyURL: cfg.VerifyURL,
		secret:    cfg.Secret,
		client:    client,
	}
}

// Name returns the provider identifier used in logs and rejection reasons
func (p *Provider) Name() string {
	return p.name
}

// Verify checks one token. A transport or decode error is returned as an
// error, distinct from a clean "token rejected" result; callers fail closed
// on both.
func (p *Provider) Verify(ctx context.Context, token, remoteIP string) (Result, error) {
	form := url.Values{}
	form.Set("secret", p.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("%s: build request: %w", p.name, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%s: verify request: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("%s: verify returned status %d", p.name, resp.StatusCode)
	}

	var body struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("%s: decode verify response: %w", p.name, err)
	}

	return Result{Provider: p.name, Success: body.Success, ErrorCodes: body.ErrorCodes}, nil
}

// Verifier holds the two independent providers a preflight must satisfy
type Verifier struct {
	Primary   *Provider
	Secondary *Provider
}

// NewVerifier builds both providers from configuration with a shared
// timeout-bounded client.
func NewVerifier(cfg config.ChallengeConfig) *Verifier {
	client := &http.Client{Timeout: cfg.Timeout}
	return &Verifier{
		Primary:   NewProvider(cfg.Primary, client),
		Secondary: NewProvider(cfg.Secondary, client),
	}
}
