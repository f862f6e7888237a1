// Package admin implements the privileged bot commands: elevation, runtime
// statistics, room warnings, knowledge teaching and cache purging.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/parley/internal/command"
	"github.com/cory-johannsen/parley/internal/knowledge"
)

// DefaultWarningLimit is the warning count at which a member is flagged for removal.
const DefaultWarningLimit = 3

// ErrNotAuthorized is returned when a non-admin sender requests a privileged action.
var ErrNotAuthorized = errors.New("not authorized")

// Request is one admin command invocation.
type Request struct {
	SenderID   string
	SenderName string
	// Room is empty for private messages.
	Room string
	// Args is everything after the admin command token.
	Args string
}

// Options wires the Service to the rest of the process. Nil funcs disable
// the matching subcommand.
type Options struct {
	IDs            []string
	PassphraseHash string
	WarningLimit   int
	// CommandHint is how users invoke the admin command, e.g. "/管理".
	CommandHint string

	Warnings  WarningStore
	Knowledge knowledge.CustomStore
	// Stats returns report lines for the stats subcommand.
	Stats func(ctx context.Context) []string
	// RoomInfo returns report lines describing a room.
	RoomInfo func(room string) []string
	// PurgeCache empties the shared cache and returns the number of entries removed.
	PurgeCache func() int
	Now        func() time.Time
}

// Service runs admin commands.
type Service struct {
	opts   Options
	ids    map[string]bool
	logger *zap.Logger

	mu       sync.RWMutex
	elevated map[string]time.Time
}

// NewService creates a Service.
//
// Precondition: opts.Warnings and logger must be non-nil.
func NewService(opts Options, logger *zap.Logger) *Service {
	if opts.WarningLimit < 1 {
		opts.WarningLimit = DefaultWarningLimit
	}
	if opts.CommandHint == "" {
		opts.CommandHint = "/admin"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ids := make(map[string]bool, len(opts.IDs))
	for _, id := range opts.IDs {
		ids[id] = true
	}
	return &Service{opts: opts, ids: ids, logger: logger, elevated: make(map[string]time.Time)}
}

// IsAdmin reports whether senderID is configured as an admin or has elevated
// with the passphrase.
func (s *Service) IsAdmin(senderID string) bool {
	if s.ids[senderID] {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.elevated[senderID]
	return ok
}

// Authorize returns ErrNotAuthorized unless senderID is an admin.
func (s *Service) Authorize(senderID string) error {
	if !s.IsAdmin(senderID) {
		return ErrNotAuthorized
	}
	return nil
}

// Handle runs the admin subcommand named by the first word of req.Args.
func (s *Service) Handle(ctx context.Context, req Request) (string, error) {
	sub, rest := command.SplitFirst(req.Args)
	sub = command.Normalize(sub)

	if sub == "auth" || sub == "认证" {
		return s.auth(req, rest), nil
	}
	if err := s.Authorize(req.SenderID); err != nil {
		s.logger.Info("admin command refused", zap.String("user", req.SenderID), zap.String("subcommand", sub))
		return "❌ 只有管理员可以执行此操作", nil
	}

	switch sub {
	case "stats", "统计":
		return s.stats(ctx), nil
	case "info", "信息":
		return s.roomOnly(req, func() (string, error) { return s.info(req.Room), nil })
	case "warn", "警告":
		return s.roomOnly(req, func() (string, error) { return s.warn(ctx, req, rest) })
	case "warnings", "警告记录":
		return s.roomOnly(req, func() (string, error) { return s.warnings(ctx, req, rest) })
	case "pardon", "赦免":
		return s.roomOnly(req, func() (string, error) { return s.pardon(ctx, req, rest) })
	case "learn", "学习":
		return s.learn(ctx, req, rest)
	case "forget", "忘记":
		return s.forget(ctx, rest)
	case "cache", "缓存":
		return s.cache(rest), nil
	default:
		return s.Menu(), nil
	}
}

// Menu lists the admin subcommands.
func (s *Service) Menu() string {
	h := s.opts.CommandHint
	return "🔐 管理命令\n\n" +
		h + " auth <口令> - 获取管理员权限\n" +
		h + " stats - 运行统计\n" +
		h + " info - 群信息（仅群聊）\n" +
		h + " warn <成员> [原因] - 警告成员（仅群聊）\n" +
		h + " warnings <成员> - 查看警告（仅群聊）\n" +
		h + " pardon <成员> - 清除警告（仅群聊）\n" +
		h + " learn <关键词> <内容> - 添加知识\n" +
		h + " forget <关键词> - 删除知识\n" +
		h + " cache purge - 清空缓存"
}

func (s *Service) auth(req Request, passphrase string) string {
	if s.opts.PassphraseHash == "" {
		return "❌ 未配置管理口令"
	}
	if !CheckPassphrase(passphrase, s.opts.PassphraseHash) {
		s.logger.Warn("admin elevation failed", zap.String("user", req.SenderID))
		return "❌ 口令错误"
	}
	s.mu.Lock()
	s.elevated[req.SenderID] = s.opts.Now()
	s.mu.Unlock()
	s.logger.Info("admin elevated", zap.String("user", req.SenderID))
	return "✅ 已获得管理员权限"
}

func (s *Service) roomOnly(req Request, fn func() (string, error)) (string, error) {
	if req.Room == "" {
		return "❌ 该命令只能在群聊中使用", nil
	}
	return fn()
}

func (s *Service) stats(ctx context.Context) string {
	lines := []string{"📈 运行统计", ""}
	if s.opts.Stats != nil {
		lines = append(lines, s.opts.Stats(ctx)...)
	}
	lines = append(lines, "", "📅 统计时间："+s.opts.Now().Format("2006-01-02 15:04"))
	return strings.Join(lines, "\n")
}

func (s *Service) info(room string) string {
	lines := []string{"ℹ️ 群信息", "", "群ID：" + room}
	if s.opts.RoomInfo != nil {
		lines = append(lines, s.opts.RoomInfo(room)...)
	}
	return strings.Join(lines, "\n")
}

func (s *Service) warn(ctx context.Context, req Request, args string) (string, error) {
	name, reason := command.SplitFirst(args)
	name = NormalizeName(name)
	if name == "" {
		return "❓ 请指定要警告的成员\n例如：" + s.opts.CommandHint + " warn 张三 刷屏", nil
	}
	if reason == "" {
		reason = "违反群规"
	}
	n, err := s.opts.Warnings.Add(ctx, Warning{
		Room:     req.Room,
		User:     name,
		Reason:   reason,
		IssuedBy: req.SenderID,
		IssuedAt: s.opts.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("recording warning: %w", err)
	}
	limit := s.opts.WarningLimit
	if n >= limit {
		return fmt.Sprintf("⚠️ @%s 警告次数已达上限（%d/%d），请管理员将其移出群聊", name, n, limit), nil
	}
	return fmt.Sprintf("⚠️ @%s 警告：%s\n当前警告次数：%d/%d\n剩余机会：%d次", name, reason, n, limit, limit-n), nil
}

func (s *Service) warnings(ctx context.Context, req Request, args string) (string, error) {
	name, _ := command.SplitFirst(args)
	name = NormalizeName(name)
	if name == "" {
		return "❓ 请指定成员", nil
	}
	n, err := s.opts.Warnings.Count(ctx, req.Room, name)
	if err != nil {
		return "", fmt.Errorf("counting warnings: %w", err)
	}
	return fmt.Sprintf("📋 @%s 当前警告次数：%d/%d", name, n, s.opts.WarningLimit), nil
}

func (s *Service) pardon(ctx context.Context, req Request, args string) (string, error) {
	name, _ := command.SplitFirst(args)
	name = NormalizeName(name)
	if name == "" {
		return "❓ 请指定成员", nil
	}
	n, err := s.opts.Warnings.Pardon(ctx, req.Room, name)
	if err != nil {
		return "", fmt.Errorf("pardoning: %w", err)
	}
	if n == 0 {
		return fmt.Sprintf("@%s 没有警告记录", name), nil
	}
	return fmt.Sprintf("✅ 已清除 @%s 的 %d 次警告", name, n), nil
}

func (s *Service) learn(ctx context.Context, req Request, args string) (string, error) {
	if s.opts.Knowledge == nil {
		return "❌ 知识库未启用", nil
	}
	keyword, content := command.SplitFirst(args)
	if keyword == "" || content == "" {
		return "❓ 用法：" + s.opts.CommandHint + " learn <关键词> <内容>", nil
	}
	err := s.opts.Knowledge.Learn(ctx, knowledge.CustomEntry{
		Keyword:   keyword,
		Content:   content,
		Author:    req.SenderID,
		CreatedAt: s.opts.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("learning %q: %w", keyword, err)
	}
	return "✅ 已学习：" + keyword, nil
}

func (s *Service) forget(ctx context.Context, args string) (string, error) {
	if s.opts.Knowledge == nil {
		return "❌ 知识库未启用", nil
	}
	keyword, _ := command.SplitFirst(args)
	if keyword == "" {
		return "❓ 用法：" + s.opts.CommandHint + " forget <关键词>", nil
	}
	err := s.opts.Knowledge.Forget(ctx, keyword)
	switch {
	case errors.Is(err, knowledge.ErrEntryNotFound):
		return "❓ 没有找到关于 " + keyword + " 的知识", nil
	case err != nil:
		return "", fmt.Errorf("forgetting %q: %w", keyword, err)
	}
	return "✅ 已删除：" + keyword, nil
}

func (s *Service) cache(args string) string {
	sub, _ := command.SplitFirst(args)
	if command.Normalize(sub) != "purge" || s.opts.PurgeCache == nil {
		return "❓ 用法：" + s.opts.CommandHint + " cache purge"
	}
	n := s.opts.PurgeCache()
	s.logger.Info("cache purged", zap.Int("entries", n))
	return fmt.Sprintf("🧹 已清空缓存（%d 条）", n)
}
