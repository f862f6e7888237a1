package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/cory-johannsen/parley/internal/dialog"
)

// OpenAIProvider completes transcripts against any OpenAI-compatible chat
// completions endpoint. Deep reasoning adds the "thinking" body field
// understood by reasoning-capable compatible endpoints; plain requests carry
// only standard fields.
type OpenAIProvider struct {
	client   openai.Client
	defaults Defaults
}

// NewOpenAIProvider creates a provider for baseURL. An empty baseURL uses the
// SDK default.
func NewOpenAIProvider(apiKey, baseURL string, timeout time.Duration, defaults Defaults) *OpenAIProvider {
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
	return &OpenAIProvider{
		client:   openai.NewClient(opts...),
		defaults: defaults,
	}
}

// Complete implements Completer.
func (p *OpenAIProvider) Complete(ctx context.Context, transcript []dialog.Turn, opts Options) (string, error) {
	opts = p.defaults.resolve(opts)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(transcript))
	for _, t := range transcript {
		msg, err := openAIMessage(t)
		if err != nil {
			return "", err
		}
		messages = append(messages, msg)
	}

	// Endpoints without reasoning support reject unknown fields, so
	// "thinking" is only sent when asked for.
	var reqOpts []option.RequestOption
	if opts.DeepReasoning {
		reqOpts = append(reqOpts, option.WithJSONSet("thinking", map[string]any{"type": "enabled"}))
	}

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(opts.Model),
		Messages:    messages,
		MaxTokens:   openai.Int(int64(opts.MaxTokens)),
		Temperature: openai.Float(opts.Temperature),
	}, reqOpts...)
	if err != nil {
		return "", openAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &ServiceError{Provider: "openai", Err: errors.New("response has no choices")}
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", &ServiceError{Provider: "openai", Err: errors.New("empty completion")}
	}
	return content, nil
}

func openAIMessage(t dialog.Turn) (openai.ChatCompletionMessageParamUnion, error) {
	switch t.Role {
	case dialog.RoleSystem:
		return openai.SystemMessage(t.Content), nil
	case dialog.RoleAssistant:
		return openai.AssistantMessage(t.Content), nil
	}
	if t.Media == nil {
		return openai.UserMessage(t.Content), nil
	}
	if t.Media.Kind != dialog.MediaImage {
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("openai: %s attachment: %w", t.Media.Kind, ErrUnsupportedMedia)
	}
	dataURL := "data:" + t.Media.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(t.Media.Data)
	return openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
		openai.TextContentPart(t.Content),
	}), nil
}

func openAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &ServiceError{Provider: "openai", StatusCode: apiErr.StatusCode, Err: err}
	}
	return &ServiceError{Provider: "openai", Err: err}
}
