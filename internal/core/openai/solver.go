package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

const solverInstruction = "You are a careful math solver. Solve the problem and reply only with a JSON object " +
	`{"answer":"string"}` + " holding the final result, without working."

// Solver answers math questions with one JSON-mode chat completion.
type Solver struct {
	client *goopenai.Client
	model  string
}

// NewSolver builds a solver. baseURL overrides the API endpoint when set.
func NewSolver(apiKey, model, baseURL string) *Solver {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = goopenai.GPT4oMini
	}
	return &Solver{client: goopenai.NewClientWithConfig(cfg), model: model}
}

func (s *Solver) Name() string { return "openai" }

func (s *Solver) Solve(ctx context.Context, question string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: s.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: solverInstruction},
			{Role: goopenai.ChatMessageRoleUser, Content: "Problem: " + question},
		},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no chat completion choices returned")
	}
	var out struct {
		Answer json.RawMessage `json:"answer"`
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return "", fmt.Errorf("decode answer: %w", err)
	}
	answer := answerText(out.Answer)
	if answer == "" {
		return "", fmt.Errorf("empty answer")
	}
	return answer, nil
}

// answerText accepts a JSON string or a bare number.
func answerText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}
