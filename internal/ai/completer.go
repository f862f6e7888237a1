// Package ai provides completion clients for the supported model providers and
// the assistant flows built on them.
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cory-johannsen/parley/internal/dialog"
)

// ErrUnsupportedMedia is returned when a transcript carries media the provider cannot accept.
var ErrUnsupportedMedia = errors.New("unsupported media")

// Options tunes a single completion. Zero values fall back to the provider defaults.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	// DeepReasoning asks the provider for extended reasoning before answering.
	DeepReasoning bool
	// SkipCache bypasses any caching layer for this call.
	SkipCache bool
}

// Completer turns an ordered transcript into generated text.
type Completer interface {
	Complete(ctx context.Context, transcript []dialog.Turn, opts Options) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, transcript []dialog.Turn, opts Options) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, transcript []dialog.Turn, opts Options) (string, error) {
	return f(ctx, transcript, opts)
}

// ServiceError reports a failed call to a provider.
type ServiceError struct {
	Provider   string
	StatusCode int
	Err        error
}

// Error implements error.
func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s completion failed (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s completion failed: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error { return e.Err }

// Defaults holds the provider-wide completion settings.
type Defaults struct {
	Model          string
	MaxTokens      int
	Temperature    float64
	ThinkingBudget int
}

func (d Defaults) resolve(opts Options) Options {
	if opts.Model == "" {
		opts.Model = d.Model
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = d.MaxTokens
	}
	if opts.Temperature <= 0 {
		opts.Temperature = d.Temperature
	}
	return opts
}

// splitSystem separates leading and interleaved system turns from the
// conversational turns. System contents are joined in order.
func splitSystem(transcript []dialog.Turn) (string, []dialog.Turn) {
	var system string
	rest := make([]dialog.Turn, 0, len(transcript))
	for _, t := range transcript {
		if t.Role == dialog.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += t.Content
			continue
		}
		rest = append(rest, t)
	}
	return system, rest
}
