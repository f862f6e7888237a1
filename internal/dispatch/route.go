package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/parley/internal/admin"
	"github.com/cory-johannsen/parley/internal/ai"
	"github.com/cory-johannsen/parley/internal/command"
	"github.com/cory-johannsen/parley/internal/dialog"
	"github.com/cory-johannsen/parley/internal/transport"
)

const (
	genericApology   = "抱歉，处理消息时出现了错误，请稍后重试。"
	knowledgeApology = "抱歉，知识查询暂时不可用，请稍后重试。"
	imageApology     = "抱歉，图片识别功能暂时不可用，请稍后重试。"
	videoApology     = "抱歉，视频识别功能暂时不可用，请稍后重试。"
	unsupportedMedia = "抱歉，暂不支持识别这种内容。"

	imageQuestion = "请详细描述这张图片的内容，包括主要物体、场景、颜色、情感等信息。"
	videoQuestion = "请详细描述这个视频的内容，包括主要场景、动作、人物、情感等信息。"
)

// outcome is a reply to send. Addressed replies mention the sender in rooms.
type outcome struct {
	text      string
	addressed bool
}

func addressed(text string) outcome { return outcome{text: text, addressed: true} }

func broadcast(text string) outcome { return outcome{text: text} }

// apologyError carries the user-facing apology for a failure.
type apologyError struct {
	apology string
	err     error
}

func (e *apologyError) Error() string { return e.err.Error() }

func (e *apologyError) Unwrap() error { return e.err }

func apologize(apology string, err error) error {
	return &apologyError{apology: apology, err: err}
}

func (d *Dispatcher) routeText(ctx context.Context, logger *zap.Logger, msg transport.Message) (outcome, error) {
	parsed := command.Parse(msg.Text, d.opts.Prefix, d.opts.BotName)
	if parsed.IsCommand {
		kind := d.deps.Commands.Resolve(parsed.Command)
		if parsed.Command == "" {
			kind = command.KindHelp
		}
		logger.Debug("command", zap.Stringer("kind", kind), zap.String("token", parsed.Command))
		return d.runCommand(ctx, logger, msg, kind, parsed)
	}
	return d.freeText(ctx, logger, msg, parsed.Text)
}

func (d *Dispatcher) runCommand(ctx context.Context, logger *zap.Logger, msg transport.Message, kind command.Kind, parsed command.ParseResult) (outcome, error) {
	f := d.opts.Features
	switch {
	case kind == command.KindHelp:
		return addressed(d.help), nil
	case kind == command.KindClear:
		d.deps.Sessions.Clear(msg.SenderID)
		logger.Info("dialog context cleared")
		return addressed("✅ 对话上下文已清除，我们可以开始全新的对话了！"), nil
	case kind == command.KindStartShared && f.GroupChat:
		return d.startShared(logger, msg), nil
	case kind == command.KindStopShared && f.GroupChat:
		return d.stopShared(logger, msg), nil
	case kind == command.KindKnowledge && f.Knowledge:
		return d.knowledge(ctx, parsed)
	case kind == command.KindGame && f.Entertainment:
		reply, err := d.deps.Games.Handle(ctx, msg.SenderID, parsed.RawArgs)
		if err != nil {
			return outcome{}, fmt.Errorf("game command: %w", err)
		}
		return addressed(reply), nil
	case kind == command.KindTool && f.Tools:
		return addressed(d.deps.Tools.Handle(ctx, parsed.RawArgs)), nil
	case kind == command.KindAdmin && f.Admin:
		reply, err := d.deps.Admin.Handle(ctx, admin.Request{
			SenderID:   msg.SenderID,
			SenderName: msg.SenderName,
			Room:       msg.Room,
			Args:       parsed.RawArgs,
		})
		if err != nil {
			return outcome{}, fmt.Errorf("admin command: %w", err)
		}
		return addressed(reply), nil
	default:
		return addressed(d.unknown(parsed.Command)), nil
	}
}

func (d *Dispatcher) unknown(token string) string {
	helpAlias := "help"
	if cmd, ok := d.deps.Commands.Lookup(command.KindHelp); ok && len(cmd.Aliases) > 0 {
		helpAlias = cmd.Aliases[0]
	}
	return fmt.Sprintf("未知命令：%s\n发送 \"%s%s\" 查看可用命令", token, d.opts.Prefix, helpAlias)
}

func (d *Dispatcher) firstAlias(kind command.Kind) string {
	if cmd, ok := d.deps.Commands.Lookup(kind); ok && len(cmd.Aliases) > 0 {
		return d.opts.Prefix + cmd.Aliases[0]
	}
	return d.opts.Prefix + kind.String()
}

func (d *Dispatcher) startShared(logger *zap.Logger, msg transport.Message) outcome {
	if !msg.InRoom() {
		return addressed("❌ 一起聊功能只能在群聊中使用！")
	}
	d.deps.Shared.Enable(msg.Room)
	logger.Info("shared mode enabled")
	return broadcast(fmt.Sprintf("🎉 一起聊功能已开启！\n\n现在所有用户的聊天都会作为共享上下文，我会每隔%d条消息主动参与讨论。\n\n发送 \"%s\" 可以关闭此功能。",
		d.deps.Shared.Interval(), d.firstAlias(command.KindStopShared)))
}

func (d *Dispatcher) stopShared(logger *zap.Logger, msg transport.Message) outcome {
	if !msg.InRoom() {
		return addressed("❌ 一起聊功能只能在群聊中使用！")
	}
	if !d.deps.Shared.Disable(msg.Room) {
		return addressed("一起聊功能当前未开启。")
	}
	logger.Info("shared mode disabled")
	return broadcast("✅ 一起聊功能已关闭，恢复正常模式。")
}

func (d *Dispatcher) knowledge(ctx context.Context, parsed command.ParseResult) (outcome, error) {
	if parsed.RawArgs == "" {
		return addressed(fmt.Sprintf("❓ 请输入要查询的问题\n例如：%s 光遇是什么", d.firstAlias(command.KindKnowledge))), nil
	}
	answer, err := d.deps.Knowledge.Answer(ctx, parsed.RawArgs)
	if err != nil {
		return outcome{}, apologize(knowledgeApology, fmt.Errorf("knowledge answer: %w", err))
	}
	return addressed(answer), nil
}

// freeText routes non-command text to the room's shared mode when active,
// otherwise to the sender's private dialog.
func (d *Dispatcher) freeText(ctx context.Context, logger *zap.Logger, msg transport.Message, text string) (outcome, error) {
	if text == "" {
		return addressed(fmt.Sprintf("有什么可以帮你的吗？发送 \"%s\" 查看可用命令", d.firstAlias(command.KindHelp))), nil
	}
	if msg.InRoom() && d.opts.Features.GroupChat && d.deps.Shared.Active(msg.Room) {
		name := msg.SenderName
		if name == "" {
			name = msg.SenderID
		}
		reply, spoke, err := d.deps.Shared.OnMessage(ctx, msg.Room, name, text)
		if err != nil {
			// The shared turn retries on the next message; nobody asked a question.
			logger.Warn("shared-mode turn failed", zap.Error(err))
			return outcome{}, nil
		}
		if !spoke {
			return outcome{}, nil
		}
		return broadcast(reply), nil
	}

	history := d.deps.Sessions.Get(msg.SenderID)
	reply, err := d.deps.Chat.Chat(ctx, text, history)
	if err != nil {
		return outcome{}, fmt.Errorf("chat: %w", err)
	}
	d.deps.Sessions.Append(msg.SenderID, dialog.User(text), dialog.Assistant(reply))
	return addressed(reply), nil
}

func (d *Dispatcher) describe(ctx context.Context, msg transport.Message) (outcome, error) {
	question, header, apology := imageQuestion, "🖼️ 图片识别结果：\n\n", imageApology
	if msg.Kind == transport.KindVideo {
		question, header, apology = videoQuestion, "🎬 视频识别结果：\n\n", videoApology
	}
	if msg.Media == nil {
		return outcome{}, apologize(apology, fmt.Errorf("%s message without media", msg.Kind))
	}
	if caption := strings.TrimSpace(msg.Text); caption != "" {
		question = caption
	}
	reply, err := d.deps.Chat.Describe(ctx, *msg.Media, question)
	switch {
	case errors.Is(err, ai.ErrUnsupportedMedia):
		return outcome{}, apologize(unsupportedMedia, err)
	case err != nil:
		return outcome{}, apologize(apology, fmt.Errorf("describing %s: %w", msg.Kind, err))
	}
	return addressed(header + reply), nil
}
