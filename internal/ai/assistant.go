package ai

import (
	"context"
	"fmt"

	"github.com/cory-johannsen/parley/internal/dialog"
)

const (
	chatPersona      = "你是一个友善、有趣、博学的聊天助手。请用简洁、自然的语言回复，保持对话连贯。"
	knowledgePersona = "你是一个知识渊博的助手。请准确地回答问题；不确定时请如实说明。"
	visionPersona    = "你是一个图像理解助手。请仔细观察图片，给出准确的描述和分析。"
	// DefaultMediaQuestion is asked about media sent without a caption.
	DefaultMediaQuestion = "请描述这张图片的内容"
)

// CreativeKind selects a creative generation prompt.
type CreativeKind string

const (
	CreativeStory CreativeKind = "story"
	CreativePoem  CreativeKind = "poem"
	CreativeJoke  CreativeKind = "joke"
	CreativeQuote CreativeKind = "quote"
)

var creativePrompts = map[CreativeKind]string{
	CreativeStory: "请创作一个有趣的短故事",
	CreativePoem:  "请创作一首短诗",
	CreativeJoke:  "请讲一个幽默的笑话",
	CreativeQuote: "请给出一句名言",
}

// Assistant runs the prompt flows used by the bot's features.
type Assistant struct {
	completer   Completer
	visionModel string
}

// NewAssistant creates an Assistant. An empty visionModel uses the completer's default model.
//
// Precondition: completer must be non-nil.
func NewAssistant(completer Completer, visionModel string) *Assistant {
	return &Assistant{completer: completer, visionModel: visionModel}
}

// Chat answers text in the context of history. The caller owns history
// persistence; Chat never mutates it.
func (a *Assistant) Chat(ctx context.Context, text string, history []dialog.Turn) (string, error) {
	transcript := make([]dialog.Turn, 0, len(history)+2)
	transcript = append(transcript, dialog.System(chatPersona))
	transcript = append(transcript, history...)
	transcript = append(transcript, dialog.User(text))
	return a.completer.Complete(ctx, transcript, Options{DeepReasoning: NeedsDeepReasoning(text)})
}

// AskKnowledge answers question, grounding it on background when non-empty.
func (a *Assistant) AskKnowledge(ctx context.Context, question, background string) (string, error) {
	prompt := question
	if background != "" {
		prompt = fmt.Sprintf("背景信息：%s\n\n问题：%s", background, question)
	}
	return a.completer.Complete(ctx, []dialog.Turn{
		dialog.System(knowledgePersona),
		dialog.User(prompt),
	}, Options{DeepReasoning: NeedsDeepReasoning(question)})
}

// Creative produces a piece of kind for prompt. Results are never served from
// the completion cache; callers cache on their own schedule.
func (a *Assistant) Creative(ctx context.Context, kind CreativeKind, prompt string) (string, error) {
	system, ok := creativePrompts[kind]
	if !ok {
		system = "请根据要求进行创作"
	}
	return a.completer.Complete(ctx, []dialog.Turn{
		dialog.System(system + "。要求简洁有趣，适合聊天场景。"),
		dialog.User(prompt),
	}, Options{SkipCache: true})
}

// Translate renders text in target language.
func (a *Assistant) Translate(ctx context.Context, text, target string) (string, error) {
	return a.completer.Complete(ctx, []dialog.Turn{
		dialog.System(fmt.Sprintf("请将以下内容翻译为%s，保持原意和语气，只输出译文。", target)),
		dialog.User(text),
	}, Options{})
}

// Describe answers question about media using the vision model with deep reasoning.
func (a *Assistant) Describe(ctx context.Context, media dialog.Media, question string) (string, error) {
	if question == "" {
		question = DefaultMediaQuestion
	}
	return a.completer.Complete(ctx, []dialog.Turn{
		dialog.System(visionPersona),
		{Role: dialog.RoleUser, Content: question, Media: &media},
	}, Options{Model: a.visionModel, DeepReasoning: true})
}

// Generate runs a one-shot uncached prompt. It is used for content that must
// vary between calls, such as game questions.
func (a *Assistant) Generate(ctx context.Context, system, prompt string) (string, error) {
	return a.completer.Complete(ctx, []dialog.Turn{
		dialog.System(system),
		dialog.User(prompt),
	}, Options{SkipCache: true, Temperature: 0.9})
}

// Complete exposes the underlying completer for flows that build their own transcript.
func (a *Assistant) Complete(ctx context.Context, transcript []dialog.Turn, opts Options) (string, error) {
	return a.completer.Complete(ctx, transcript, opts)
}
