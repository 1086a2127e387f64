package agent

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

	"go.uber.org/zap"

	"craftbot.io/craftbot/internal/config"
	"craftbot.io/craftbot/internal/domain"
	"craftbot.io/craftbot/internal/pkg/logger"
)

const systemPrompt = `You are the rules engine of an element crafting game. ` +
	`Given two elements, answer with the single element they make together. ` +
	`Reply with JSON: {"reason": string, "result": {"name": string, "emoji": string}}.`

// HTTPAgent calls an OpenAI-compatible chat-completions endpoint.
type HTTPAgent struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewHTTPAgent creates an HTTPAgent. BaseURL and Model are required.
func NewHTTPAgent(cfg config.AgentConfig) (*HTTPAgent, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("agent.base_url is required for the http provider")
	}
	if cfg.Model == "" {
		return nil, errors.New("agent.model is required for the http provider")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPAgent{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (h *HTTPAgent) Combine(ctx context.Context, a, b domain.Element) (*Result, error) {
	body, err := json.Marshal(chatRequest{
		Model: h.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("%s %s + %s %s", a.Emoji, a.Name, b.Emoji, b.Name)},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call chat completions: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("chat completions returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrInvalidResult)
	}

	var out Result
	if err := json.Unmarshal([]byte(cr.Choices[0].Message.Content), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Debug("Agent combined elements",
		zap.String("a", a.Name),
		zap.String("b", b.Name),
		zap.String("result", out.Result.Name),
		zap.Duration("duration", time.Since(start)),
	)
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
