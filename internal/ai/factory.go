package ai

import (
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/resumatch/internal/ai/gemini"
	"github.com/kiranshivaraju/resumatch/internal/ai/openai"
	"github.com/kiranshivaraju/resumatch/internal/config"
)

// NewGatewayFromConfig builds a Gateway with the OpenAI and Gemini providers.
// Called once at server startup.
func NewGatewayFromConfig(cfg config.AIConfig, logger *slog.Logger) *Gateway {
	// The per-call deadline comes from the Gateway; the client carries no timeout of its own.
	httpClient := &http.Client{}
	return NewGateway(cfg.InferenceTimeout, logger,
		openai.NewProvider(cfg.OpenAIBaseURL, httpClient),
		gemini.NewProvider(cfg.GeminiBaseURL, httpClient),
	)
}
