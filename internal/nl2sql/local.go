package nl2sql

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	chatMLStart = "<|im_start|>"
	chatMLEnd   = "<|im_end|>"
	endOfText   = "<|endoftext|>"
)

type LocalConfig struct {
	ModelPath    string
	ModelName    string
	RuntimeURL   string
	MaxNewTokens int
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// LocalClient runs a locally hosted model through an Ollama-compatible
// runtime. The chat template is applied here and the runtime is asked for a
// raw completion, so only the continuation past the prompt is returned.
type LocalClient struct {
	runtimeURL   string
	model        string
	maxNewTokens int
	client       *http.Client
}

// NewLocalClient checks the model artifact and asks the runtime to load the
// model. Either failure is returned to the caller.
func NewLocalClient(ctx context.Context, cfg LocalConfig) (*LocalClient, error) {
	modelPath := strings.TrimSpace(cfg.ModelPath)
	if modelPath == "" {
		return nil, fmt.Errorf("local model path is required")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("local model artifact %q: %w", modelPath, err)
	}
	if strings.TrimSpace(cfg.RuntimeURL) == "" {
		return nil, fmt.Errorf("local runtime URL is required")
	}
	model := strings.TrimSpace(cfg.ModelName)
	if model == "" {
		model = filepath.Base(filepath.Clean(modelPath))
	}
	maxNewTokens := cfg.MaxNewTokens
	if maxNewTokens <= 0 {
		maxNewTokens = 512
	}

	c := &LocalClient{
		runtimeURL:   strings.TrimRight(strings.TrimSpace(cfg.RuntimeURL), "/"),
		model:        model,
		maxNewTokens: maxNewTokens,
		client:       httpClientOrDefault(cfg.HTTPClient, cfg.Timeout),
	}
	if err := c.load(ctx); err != nil {
		return nil, fmt.Errorf("load local model %q: %w", model, err)
	}
	return c, nil
}

func (c *LocalClient) Model() string {
	return c.model
}

type localGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt,omitempty"`
	Raw     bool           `json:"raw,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type localGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// load sends an empty prompt, which makes the runtime load the model.
func (c *LocalClient) load(ctx context.Context) error {
	body, err := json.Marshal(localGenerateRequest{Model: c.model})
	if err != nil {
		return fmt.Errorf("marshal load request: %w", err)
	}
	_, err = postJSON(ctx, c.client, c.runtimeURL+"/api/generate", "", body)
	return err
}

func (c *LocalClient) Chat(ctx context.Context, req ChatRequest) (Response, error) {
	prompt := ApplyChatTemplate(req.Messages)
	maxNewTokens := c.maxNewTokens
	if req.MaxTokens > 0 {
		maxNewTokens = req.MaxTokens
	}
	body, err := json.Marshal(localGenerateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Raw:     true,
		Stream:  false,
		Options: map[string]any{"num_predict": maxNewTokens},
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal generate request: %w", err)
	}

	rawRespBody, err := postJSON(ctx, c.client, c.runtimeURL+"/api/generate", "", body)
	if err != nil {
		return Response{}, err
	}
	var parsed localGenerateResponse
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return Response{}, fmt.Errorf("decode generate response: %w", err)
	}
	return NewResponse(continuation(prompt, parsed.Response)), nil
}

// ApplyChatTemplate renders messages in the ChatML layout used by Qwen
// models, ending with an open assistant turn.
func ApplyChatTemplate(messages []Message) string {
	var b strings.Builder
	for _, msg := range messages {
		b.WriteString(chatMLStart)
		b.WriteString(msg.Role)
		b.WriteString("\n")
		b.WriteString(msg.Content)
		b.WriteString(chatMLEnd)
		b.WriteString("\n")
	}
	b.WriteString(chatMLStart)
	b.WriteString(RoleAssistant)
	b.WriteString("\n")
	return b.String()
}

// continuation drops an echoed prompt and special tokens from the output.
func continuation(prompt, output string) string {
	output = strings.TrimPrefix(output, prompt)
	output = strings.ReplaceAll(output, chatMLEnd, "")
	output = strings.ReplaceAll(output, endOfText, "")
	return output
}
