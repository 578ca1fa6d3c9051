package nl2sql

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

const dashScopeGenerationPath = "/api/v1/services/aigc/text-generation/generation"

type DashScopeConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// DashScopeClient talks to the native DashScope text-generation API with
// result_format=message, which already answers in the shared Response shape.
type DashScopeClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewDashScopeClient(cfg DashScopeConfig) (*DashScopeClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	return &DashScopeClient{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		client:  httpClientOrDefault(cfg.HTTPClient, cfg.Timeout),
	}, nil
}

type dashScopePayload struct {
	Model      string              `json:"model"`
	Input      dashScopeInput      `json:"input"`
	Parameters dashScopeParameters `json:"parameters"`
}

type dashScopeInput struct {
	Messages []Message `json:"messages"`
}

type dashScopeParameters struct {
	ResultFormat string  `json:"result_format"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
}

func (c *DashScopeClient) Chat(ctx context.Context, req ChatRequest) (Response, error) {
	body, err := json.Marshal(dashScopePayload{
		Model: req.Model,
		Input: dashScopeInput{Messages: req.Messages},
		Parameters: dashScopeParameters{
			ResultFormat: "message",
			Temperature:  req.Temperature,
			MaxTokens:    req.MaxTokens,
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal generation payload: %w", err)
	}

	rawRespBody, err := postJSON(ctx, c.client, c.baseURL+dashScopeGenerationPath, c.apiKey, body)
	if err != nil {
		return Response{}, err
	}

	var parsed Response
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return Response{}, fmt.Errorf("decode generation response: %w", err)
	}
	if len(parsed.Output.Choices) == 0 {
		return Response{}, ErrEmptyChoices
	}
	return parsed, nil
}

// postJSON sends an authenticated JSON POST and returns the body of a
// non-error response.
func postJSON(ctx context.Context, client *http.Client, url, apiKey string, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("chat completion failed status=%d body=%s", resp.StatusCode, string(rawRespBody))
	}
	return rawRespBody, nil
}

// httpClientOrDefault keeps a zero timeout unbounded.
func httpClientOrDefault(client *http.Client, timeout time.Duration) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: timeout}
}
