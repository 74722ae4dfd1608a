package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultSessionsURL mints ephemeral realtime client secrets.
const DefaultSessionsURL = "https://api.openai.com/v1/realtime/sessions"

// Minted is an ephemeral client secret.
type Minted struct {
	ClientSecret string
	Model        string
	ExpiresAt    time.Time
}

// MintError carries the provider's status for a refused mint.
type MintError struct {
	Status int
	Body   string
}

func (e *MintError) Error() string {
	return fmt.Sprintf("mint realtime session: status %d: %s", e.Status, e.Body)
}

// Minter holds the server-side API key and mints client secrets from it.
type Minter struct {
	APIKey string
	URL    string
	Model  string
	Voice  string
	HTTP   *http.Client
}

func NewMinter(apiKey, model, voice, url string) *Minter {
	if url == "" {
		url = DefaultSessionsURL
	}
	return &Minter{
		APIKey: apiKey,
		URL:    url,
		Model:  model,
		Voice:  voice,
		HTTP:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (m *Minter) Configured() bool { return m != nil && m.APIKey != "" }

func (m *Minter) Mint(ctx context.Context) (Minted, error) {
	body, err := json.Marshal(map[string]string{"model": m.Model, "voice": m.Voice})
	if err != nil {
		return Minted{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.URL, bytes.NewReader(body))
	if err != nil {
		return Minted{}, err
	}
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.HTTP.Do(req)
	if err != nil {
		return Minted{}, fmt.Errorf("mint realtime session: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Minted{}, fmt.Errorf("mint realtime session: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Minted{}, &MintError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out struct {
		Model        string `json:"model"`
		ClientSecret struct {
			Value     string `json:"value"`
			ExpiresAt int64  `json:"expires_at"`
		} `json:"client_secret"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return Minted{}, fmt.Errorf("mint realtime session: decode: %w", err)
	}
	if out.ClientSecret.Value == "" {
		return Minted{}, fmt.Errorf("mint realtime session: no client secret in response")
	}
	model := out.Model
	if model == "" {
		model = m.Model
	}
	return Minted{
		ClientSecret: out.ClientSecret.Value,
		Model:        model,
		ExpiresAt:    time.Unix(out.ClientSecret.ExpiresAt, 0),
	}, nil
}
