package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/cory-johannsen/parley/internal/dialog"
)

// minThinkingBudget is the smallest extended-thinking budget the Messages API accepts.
const minThinkingBudget = 1024

// AnthropicProvider completes transcripts with the Anthropic Messages API.
// Deep reasoning maps to extended thinking.
type AnthropicProvider struct {
	client   anthropic.Client
	defaults Defaults
}

// NewAnthropicProvider creates a provider. An empty baseURL uses the SDK default.
func NewAnthropicProvider(apiKey, baseURL string, timeout time.Duration, defaults Defaults) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(1),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	if defaults.ThinkingBudget < minThinkingBudget {
		defaults.ThinkingBudget = minThinkingBudget
	}
	return &AnthropicProvider{
		client:   anthropic.NewClient(opts...),
		defaults: defaults,
	}
}

// Complete implements Completer.
func (p *AnthropicProvider) Complete(ctx context.Context, transcript []dialog.Turn, opts Options) (string, error) {
	opts = p.defaults.resolve(opts)

	system, turns := splitSystem(transcript)
	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		msg, err := anthropicMessage(t)
		if err != nil {
			return "", err
		}
		messages = append(messages, msg)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(opts.Model),
		MaxTokens: int64(opts.MaxTokens),
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if opts.DeepReasoning {
		// Extended thinking requires max_tokens above the budget and no temperature.
		budget := int64(p.defaults.ThinkingBudget)
		if params.MaxTokens <= budget {
			params.MaxTokens = budget + int64(opts.MaxTokens)
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	} else {
		params.Temperature = anthropic.Float(min(opts.Temperature, 1))
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", anthropicError(err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	content := strings.TrimSpace(b.String())
	if content == "" {
		return "", &ServiceError{Provider: "anthropic", Err: errors.New("empty completion")}
	}
	return content, nil
}

func anthropicMessage(t dialog.Turn) (anthropic.MessageParam, error) {
	if t.Role == dialog.RoleAssistant {
		return anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Content)), nil
	}
	if t.Media == nil {
		return anthropic.NewUserMessage(anthropic.NewTextBlock(t.Content)), nil
	}
	if t.Media.Kind != dialog.MediaImage {
		return anthropic.MessageParam{}, fmt.Errorf("anthropic: %s attachment: %w", t.Media.Kind, ErrUnsupportedMedia)
	}
	return anthropic.NewUserMessage(
		anthropic.NewImageBlockBase64(t.Media.MIMEType, base64.StdEncoding.EncodeToString(t.Media.Data)),
		anthropic.NewTextBlock(t.Content),
	), nil
}

func anthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &ServiceError{Provider: "anthropic", StatusCode: apiErr.StatusCode, Err: err}
	}
	return &ServiceError{Provider: "anthropic", Err: err}
}
