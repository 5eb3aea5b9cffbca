// Package oauth implements the client side of the OAuth 2.0 Device
// Authorization Grant (RFC 8628) shared by the GitHub and GitLab adapters.
package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// GrantTypeDeviceCode is the RFC 8628 grant type sent on every token poll.
const GrantTypeDeviceCode = "urn:ietf:params:oauth:grant-type:device_code"

// Token endpoint error codes that keep the poll loop alive (RFC 8628 §3.5).
const (
	errAuthorizationPending = "authorization_pending"
	errSlowDown             = "slow_down"
)

// slowDownIncrement is the mandatory interval increase after a slow_down
// response (RFC 8628 §3.5).
const slowDownIncrement = 5 * time.Second

// ErrTimeout is returned when the device code expires before the user
// completes authorization.
var ErrTimeout = errors.New("device authorization timed out before the user approved the request")

// DenialError carries the token endpoint's error_description for a grant
// that was rejected (terminal, not transient).
type DenialError struct {
	Code        string
	Description string
}

func (e *DenialError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization denied: %s", e.Description)
	}
	return fmt.Sprintf("authorization denied: %s", e.Code)
}

// DeviceCodeResponse mirrors the JSON body of a device authorization request.
type DeviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// DevicePoller drives the RFC 8628 polling state machine against one token
// endpoint. States: pending -> (pending | slow_down)* -> authorized | denied |
// expired; transitions come solely from the endpoint's response. Now and
// Sleep exist so tests can compress time.
type DevicePoller struct {
	Client   *http.Client
	TokenURL string

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// RequestDeviceCode posts a device authorization request and decodes the
// response. Scope formatting (comma vs. space separated) is the caller's
// concern.
func RequestDeviceCode(ctx context.Context, client *http.Client, endpoint, clientID, scope string) (*DeviceCodeResponse, error) {
	if client == nil {
		client = http.DefaultClient
	}

	payload, _ := json.Marshal(map[string]string{"client_id": clientID, "scope": scope})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("device authorization request failed: %d: %s", resp.StatusCode, string(body))
	}

	var dc DeviceCodeResponse
	if err := json.Unmarshal(body, &dc); err != nil {
		return nil, fmt.Errorf("parse device code response: %w", err)
	}
	return &dc, nil
}

// Poll blocks until the user authorizes the device code, the grant is
// denied, the code expires, or ctx is canceled. It sleeps interval seconds
// before every attempt and grows the interval by 5s on each slow_down.
func (p *DevicePoller) Poll(ctx context.Context, clientID, deviceCode string, expiresIn, intervalSecs int) (string, error) {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	deadline := now().Add(time.Duration(expiresIn) * time.Second)
	interval := time.Duration(intervalSecs) * time.Second

	for now().Before(deadline) {
		if err := sleep(ctx, interval); err != nil {
			return "", err
		}

		tok, err := p.requestToken(ctx, clientID, deviceCode)
		if err != nil {
			return "", err
		}

		switch {
		case tok.AccessToken != "":
			return tok.AccessToken, nil
		case tok.Error == errSlowDown:
			interval += slowDownIncrement
		case tok.Error == errAuthorizationPending:
			// keep polling
		default:
			return "", &DenialError{Code: tok.Error, Description: tok.ErrorDescription}
		}
	}

	return "", ErrTimeout
}

// requestToken posts one token poll. Providers signal transient states in the
// JSON body, sometimes with a 4xx status, so the body is decoded regardless
// of the status code.
func (p *DevicePoller) requestToken(ctx context.Context, clientID, deviceCode string) (*tokenResponse, error) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	payload, _ := json.Marshal(map[string]string{
		"client_id":   clientID,
		"device_code": deviceCode,
		"grant_type":  GrantTypeDeviceCode,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token poll: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("parse token response (%d): %w", resp.StatusCode, err)
	}
	return &tok, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
