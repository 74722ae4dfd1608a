package gemini

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const solverInstruction = "You are a careful math solver. Solve the problem and reply only with JSON " +
	`{"answer":"string"}` + ". The answer is the final result only, without working."

// Solver answers math questions with a single GenerateContent call.
type Solver struct {
	c     *genai.Client
	model string
	sleep func(time.Duration)
}

func NewSolver(apiKey, model string) (*Solver, error) {
	tr := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		TLSClientConfig:   &tls.Config{MinVersion: tls.VersionTLS12},
		ForceAttemptHTTP2: false,
		MaxIdleConns:      100,
		IdleConnTimeout:   90 * time.Second,
	}
	hc := &http.Client{Transport: tr, Timeout: 30 * time.Second}
	reqTimeout := 15 * time.Second
	cl, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: hc,
		HTTPOptions: genai.HTTPOptions{
			APIVersion: "v1beta",
			Timeout:    &reqTimeout,
		},
	})
	if err != nil {
		return nil, err
	}
	return &Solver{c: cl, model: model, sleep: time.Sleep}, nil
}

func (s *Solver) Name() string { return "gemini" }

// Solve returns the final answer to question. Structured output is tried
// first; a plain-text call is the fallback.
func (s *Solver) Solve(ctx context.Context, question string) (string, error) {
	parts := []*genai.Part{
		{Text: solverInstruction},
		{Text: "Problem: " + question},
	}

	temp := float32(0)
	maxTok := int32(1024)
	cfgJSON := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"answer": {Type: genai.TypeString},
			},
			Required: []string{"answer"},
		},
		Temperature:     &temp,
		MaxOutputTokens: maxTok,
	}
	cfgText := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: maxTok,
	}

	if answer, err := s.callOnce(ctx, parts, cfgJSON); err == nil {
		return answer, nil
	}
	return s.callOnce(ctx, parts, cfgText)
}

func (s *Solver) callOnce(ctx context.Context, parts []*genai.Part, cfg *genai.GenerateContentConfig) (string, error) {
	var lastErr error
	for i := 0; i < 3; i++ {
		resp, err := s.c.Models.GenerateContent(ctx, s.model, []*genai.Content{{Parts: parts}}, cfg)
		if err != nil {
			lastErr = err
			if retriable(err) {
				s.sleep(time.Duration(300*(i+1)) * time.Millisecond)
				continue
			}
			return "", err
		}
		if answer, ok := parseAnswer(resp); ok {
			return answer, nil
		}
		lastErr = errors.New("empty response")
		s.sleep(time.Duration(300*(i+1)) * time.Millisecond)
	}
	return "", lastErr
}

func parseAnswer(resp *genai.GenerateContentResponse) (string, bool) {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p.Text == "" {
				continue
			}
			if a, ok := answerFromJSON(p.Text); ok {
				return a, true
			}
		}
	}
	if t := strings.TrimSpace(resp.Text()); t != "" {
		if a, ok := answerFromJSON(t); ok {
			return a, true
		}
		return t, true
	}
	return "", false
}

func answerFromJSON(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	var out struct {
		Answer string `json:"answer"`
	}
	if json.Unmarshal([]byte(strings.TrimSpace(s)), &out) != nil {
		return "", false
	}
	out.Answer = strings.TrimSpace(out.Answer)
	return out.Answer, out.Answer != ""
}

func retriable(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "unexpected EOF") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "RST_STREAM") ||
		strings.Contains(s, "connection reset")
}
