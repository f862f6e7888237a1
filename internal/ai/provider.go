package ai

import (
	"fmt"

	"github.com/cory-johannsen/parley/internal/config"
)

// NewProvider builds the completer selected by cfg.Provider.
//
// Postcondition: Returns a non-nil Completer or a non-nil error.
func NewProvider(cfg config.AIConfig) (Completer, error) {
	defaults := Defaults{
		Model:          cfg.Model,
		MaxTokens:      cfg.MaxTokens,
		Temperature:    cfg.Temperature,
		ThinkingBudget: cfg.ThinkingBudget,
	}
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Timeout, defaults), nil
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey, cfg.BaseURL, cfg.Timeout, defaults), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}
