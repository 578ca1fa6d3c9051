package nl2sql

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAIClient speaks the OpenAI-compatible chat completions API and
// normalises its top-level choices into Response.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	return &OpenAIClient{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		client:  httpClientOrDefault(cfg.HTTPClient, cfg.Timeout),
	}, nil
}

func (c *OpenAIClient) Chat(ctx context.Context, req ChatRequest) (Response, error) {
	payload := map[string]any{
		"model":       req.Model,
		"messages":    req.Messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	rawRespBody, err := postJSON(ctx, c.client, c.baseURL+"/v1/chat/completions", c.apiKey, body)
	if err != nil {
		return Response{}, err
	}

	var parsed struct {
		ID      string   `json:"id"`
		Choices []Choice `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return Response{}, fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Response{}, ErrEmptyChoices
	}
	return Response{Output: Output{Choices: parsed.Choices}, RequestID: parsed.ID}, nil
}
