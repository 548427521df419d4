package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kiranshivaraju/resumatch/pkg/models"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	// Temperature is the fixed sampling temperature for every analysis.
	Temperature = 0.7
)

var defaultModels = map[string]string{
	ProviderOpenAI: "gpt-4o",
	ProviderGemini: "gemini-1.5-pro",
}

// NormalizeProvider returns the canonical lower-case provider name.
func NormalizeProvider(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DefaultModel returns the model used when a request leaves it blank.
func DefaultModel(provider string) (string, bool) {
	m, ok := defaultModels[NormalizeProvider(provider)]
	return m, ok
}

// GenerateParams is one generation request routed through the Gateway.
type GenerateParams struct {
	Provider   string
	Model      string
	Credential string
	Prompt     string
}

// Gateway dispatches prompts to the configured providers. It never retries;
// retrying is a new job.
type Gateway struct {
	providers map[string]models.AIProvider
	timeout   time.Duration
	logger    *slog.Logger
}

// NewGateway registers providers under their Name().
func NewGateway(timeout time.Duration, logger *slog.Logger, providers ...models.AIProvider) *Gateway {
	g := &Gateway{
		providers: make(map[string]models.AIProvider, len(providers)),
		timeout:   timeout,
		logger:    logger,
	}
	for _, p := range providers {
		g.providers[NormalizeProvider(p.Name())] = p
	}
	return g
}

// Generate sends a prompt to the selected provider once and returns its raw output.
func (g *Gateway) Generate(ctx context.Context, p GenerateParams) (string, error) {
	if strings.TrimSpace(p.Credential) == "" {
		return "", fmt.Errorf("%w: API key is required", ErrInvalidConfig)
	}

	name := NormalizeProvider(p.Provider)
	provider, ok := g.providers[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, p.Provider)
	}

	model := strings.TrimSpace(p.Model)
	if model == "" {
		model = defaultModels[name]
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	out, err := provider.Generate(callCtx, models.GenerateRequest{
		Credential:  p.Credential,
		Model:       model,
		Prompt:      p.Prompt,
		Temperature: Temperature,
	})
	if err != nil {
		classified := classifyError(err)
		g.logger.Warn("AI generation failed",
			"provider", name, "model", model,
			"duration_ms", time.Since(start).Milliseconds(), "error", classified)
		return "", classified
	}

	g.logger.Debug("AI generation succeeded",
		"provider", name, "model", model,
		"duration_ms", time.Since(start).Milliseconds(), "output_len", len(out))
	return out, nil
}
