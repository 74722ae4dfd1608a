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

	"github.com/steveyiyo/tutor-voice/pkg/types"
)

// CredentialSource exchanges nothing for a short-lived realtime credential.
type CredentialSource interface {
	FetchCredential(ctx context.Context) (types.SessionResp, error)
}

// RelayClient fetches credentials from the relay server's POST /session.
type RelayClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewRelayClient(baseURL string) *RelayClient {
	return &RelayClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (r *RelayClient) FetchCredential(ctx context.Context) (types.SessionResp, error) {
	var out types.SessionResp
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/session", nil)
	if err != nil {
		return out, err
	}
	resp, err := r.HTTP.Do(req)
	if err != nil {
		return out, fmt.Errorf("relay: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return out, fmt.Errorf("relay: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var e types.ErrorResp
		_ = json.Unmarshal(body, &e)
		if e.Error == "" {
			e.Error = strings.TrimSpace(string(body))
		}
		return out, fmt.Errorf("relay: status %d: %s", resp.StatusCode, e.Error)
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("relay: decode: %w", err)
	}
	if out.ClientSecret == "" || out.Model == "" {
		return out, fmt.Errorf("relay: response missing credential or model")
	}
	return out, nil
}

// Answer asks the relay's POST /answer for the final answer to question.
func (r *RelayClient) Answer(ctx context.Context, question string) (string, error) {
	payload, err := json.Marshal(types.AnswerReq{Question: question})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/answer", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("relay: %w", err)
	}
	defer resp.Body.Close()
	var out struct {
		types.AnswerResp
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil {
		return "", fmt.Errorf("relay: decode answer: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("relay: status %d: %s", resp.StatusCode, out.Error)
	}
	return out.Answer, nil
}
