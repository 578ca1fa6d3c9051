package nl2sql

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

type GeminiConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// GeminiClient serves hosted variants through the Google GenAI SDK. System
// messages become the system instruction; the rest are user turns.
type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	clientCfg := &genai.ClientConfig{
		APIKey:     strings.TrimSpace(cfg.APIKey),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(baseURL, "/") + "/"}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) Chat(ctx context.Context, req ChatRequest) (Response, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	var system []string
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		genCfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n"), genai.RoleUser)
	}

	result, err := c.client.Models.GenerateContent(ctx, req.Model, contents, genCfg)
	if err != nil {
		return Response{}, fmt.Errorf("genai generate content: %w", err)
	}
	if len(result.Candidates) == 0 {
		return Response{}, ErrEmptyChoices
	}
	resp := NewResponse(result.Text())
	resp.RequestID = result.ResponseID
	if reason := result.Candidates[0].FinishReason; reason != "" {
		resp.Output.Choices[0].FinishReason = strings.ToLower(string(reason))
	}
	return resp, nil
}
