package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sqlcopilot/sqlcopilot/internal/config"
	"github.com/sqlcopilot/sqlcopilot/internal/observability"
)

var ErrUnknownProvider = errors.New("unknown ai provider")

const (
	ProviderDashScope = "dashscope"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

type Options struct {
	Config     config.Config
	Logger     *slog.Logger
	HTTPClient *http.Client
	// Client replaces the backend chosen from Config.
	Client ChatClient
}

// ModelGenerator is the Generator behind every variant. Variants differ in
// prompt framing, model identifier and backend only.
type ModelGenerator struct {
	variant     Variant
	model       string
	client      ChatClient
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// NewGenerator builds the generator for variant. Unknown variants and
// backend construction failures are returned immediately.
func NewGenerator(ctx context.Context, variant Variant, opts Options) (*ModelGenerator, error) {
	if !variant.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	cfg := opts.Config

	g := &ModelGenerator{
		variant:     variant,
		temperature: cfg.AI.Temperature,
		maxTokens:   cfg.AI.MaxTokens,
		logger:      logger.With(slog.String("variant", string(variant))),
	}
	switch variant {
	case VariantTurbo:
		g.model = cfg.AI.TurboModel
	case VariantCoder:
		g.model = cfg.AI.CoderModel
	case VariantLocal:
		g.maxTokens = cfg.Local.MaxNewTokens
	}

	client := opts.Client
	if client == nil {
		var err error
		client, err = newChatClient(ctx, variant, cfg, opts.HTTPClient)
		if err != nil {
			return nil, fmt.Errorf("create %s generator: %w", variant, err)
		}
	}
	if local, ok := client.(*LocalClient); ok {
		g.model = local.Model()
	}
	g.client = client
	g.logger.Debug("generator ready", slog.String("model", g.model))
	return g, nil
}

func newChatClient(ctx context.Context, variant Variant, cfg config.Config, httpClient *http.Client) (ChatClient, error) {
	if variant == VariantLocal {
		return NewLocalClient(ctx, LocalConfig{
			ModelPath:    cfg.Local.ModelPath,
			ModelName:    cfg.Local.ModelName,
			RuntimeURL:   cfg.Local.RuntimeURL,
			MaxNewTokens: cfg.Local.MaxNewTokens,
			Timeout:      cfg.Local.Timeout,
			HTTPClient:   httpClient,
		})
	}
	switch strings.ToLower(strings.TrimSpace(cfg.AI.Provider)) {
	case ProviderDashScope, "":
		return NewDashScopeClient(DashScopeConfig{
			BaseURL:    cfg.AI.BaseURL,
			APIKey:     cfg.AI.APIKey,
			Timeout:    cfg.AI.Timeout,
			HTTPClient: httpClient,
		})
	case ProviderOpenAI:
		return NewOpenAIClient(OpenAIConfig{
			BaseURL:    cfg.AI.BaseURL,
			APIKey:     cfg.AI.APIKey,
			Timeout:    cfg.AI.Timeout,
			HTTPClient: httpClient,
		})
	case ProviderGemini:
		return NewGeminiClient(ctx, GeminiConfig{
			BaseURL:    cfg.AI.BaseURL,
			APIKey:     cfg.AI.APIKey,
			HTTPClient: httpClient,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.AI.Provider)
	}
}

func (g *ModelGenerator) Variant() Variant {
	return g.variant
}

func (g *ModelGenerator) Model() string {
	return g.model
}

// Generate never fails: backend errors are logged and reported as empty SQL
// together with the time spent so far.
func (g *ModelGenerator) Generate(ctx context.Context, question, tableDescription string) (string, time.Duration) {
	start := time.Now()
	sql, err := g.generate(ctx, question, tableDescription)
	elapsed := time.Since(start)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		g.logger.ErrorContext(ctx, "sql generation failed",
			slog.String("model", g.model),
			slog.String("duration", elapsed.String()),
			slog.Any("error", err),
		)
	case strings.TrimSpace(sql) == "":
		outcome = "empty"
	}
	observability.ObserveGeneration(string(g.variant), outcome, elapsed)
	return sql, elapsed
}

func (g *ModelGenerator) generate(ctx context.Context, question, tableDescription string) (string, error) {
	messages, err := BuildMessages(g.variant, question, tableDescription)
	if err != nil {
		return "", err
	}
	resp, err := g.client.Chat(ctx, ChatRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", err
	}
	content, err := resp.Content()
	if err != nil {
		return "", err
	}
	return ExtractSQL(content), nil
}
