package batch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stellarlinkco/batch-eval/internal/config"
)

// New builds the batch adapter for a configured model, selecting the provider
// implementation by the model's provider key.
func New(cfg *config.Config, modelName string) (Adapter, error) {
	if cfg == nil {
		return nil, errors.New("batch: nil config")
	}

	mcfg, ok := cfg.Model(modelName)
	if !ok {
		return nil, fmt.Errorf("batch: unknown model %q", modelName)
	}

	key := strings.ToLower(strings.TrimSpace(mcfg.Provider))
	pcfg := cfg.Providers[key]

	switch key {
	case "openai":
		return NewOpenAIAdapter(pcfg, mcfg), nil
	case "anthropic", "claude":
		return NewAnthropicAdapter(pcfg, mcfg), nil
	case "google", "gemini":
		return NewGoogleAdapter(pcfg, mcfg), nil
	case "test":
		return NewTestAdapter(mcfg), nil
	default:
		return nil, fmt.Errorf("batch: unknown provider %q for model %q", mcfg.Provider, modelName)
	}
}
