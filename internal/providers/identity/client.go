package identity

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

var ErrNotConfigured = errors.New("identity provider is not configured")

type Config struct {
	APIURL      string
	APIKey      string
	RedirectURL string
	Timeout     time.Duration
}

// Client creates invitations in the external identity provider, which mails
// the sign-up link itself.
type Client struct {
	cfg  Config
	http *http.Client
}

type invitationRequest struct {
	EmailAddress   string         `json:"email_address"`
	PublicMetadata map[string]any `json:"public_metadata,omitempty"`
	RedirectURL    string         `json:"redirect_url,omitempty"`
}

type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity api returned %d: %s", e.StatusCode, e.Body)
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	return &Client{cfg: cfg, http: httpClient}
}

func (c *Client) Name() string { return "identity" }

func (c *Client) SendPartnerInvitation(ctx context.Context, email string, metadata map[string]any) error {
	if c.cfg.APIURL == "" || c.cfg.APIKey == "" {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(invitationRequest{
		EmailAddress:   email,
		PublicMetadata: metadata,
		RedirectURL:    c.cfg.RedirectURL,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+"/v1/invitations", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
