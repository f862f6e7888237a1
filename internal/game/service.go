package game

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/parley/internal/ai"
	"github.com/cory-johannsen/parley/internal/command"
	"github.com/cory-johannsen/parley/internal/keylock"
)

// DefaultQuestions is the quiz length used when none is configured.
const DefaultQuestions = 5

// Generator produces the generated content the games need.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	Creative(ctx context.Context, kind ai.CreativeKind, prompt string) (string, error)
}

// CreativeCache stores finished creative replies.
type CreativeCache interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration)
}

// Options configures a Service. Zero fields take defaults.
type Options struct {
	// Questions is the quiz length.
	Questions int
	// SeedWords overrides the content's word-chain seeds when non-empty.
	SeedWords []string
	// Content is the built-in fallback material. Defaults to DefaultContent().
	Content *Content
	// CommandHint is how users invoke the game command, e.g. "/游戏".
	CommandHint string
	Source      Source
	Now         func() time.Time
}

// Service runs game commands. Calls for one user are serialized; calls for
// different users run concurrently.
type Service struct {
	registry *Registry
	gen      Generator
	cache    CreativeCache
	logger   *zap.Logger

	content   Content
	questions int
	hint      string
	src       Source
	now       func() time.Time

	locks keylock.Locker
}

// NewService creates a Service.
//
// Precondition: registry, gen, cache and logger must be non-nil.
func NewService(registry *Registry, gen Generator, cache CreativeCache, opts Options, logger *zap.Logger) *Service {
	s := &Service{
		registry:  registry,
		gen:       gen,
		cache:     cache,
		logger:    logger,
		questions: opts.Questions,
		hint:      opts.CommandHint,
		src:       opts.Source,
		now:       opts.Now,
	}
	if opts.Content != nil {
		s.content = *opts.Content
	} else {
		s.content = DefaultContent()
	}
	if len(opts.SeedWords) > 0 {
		s.content.SeedWords = append([]string(nil), opts.SeedWords...)
	}
	if s.questions < 1 {
		s.questions = DefaultQuestions
	}
	if s.hint == "" {
		s.hint = "/game"
	}
	if s.src == nil {
		s.src = NewCryptoSource()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Registry returns the session registry.
func (s *Service) Registry() *Registry { return s.registry }

// Handle dispatches a game command. args is everything after the game command
// token; its first word selects the game.
func (s *Service) Handle(ctx context.Context, user, args string) (string, error) {
	action, rest := command.SplitFirst(args)
	switch command.Normalize(action) {
	case "quiz", "知识竞赛":
		return s.Quiz(ctx, user, rest)
	case "riddle", "谜语":
		return s.Riddle(ctx, user, rest)
	case "chain", "接龙":
		return s.Chain(ctx, user, rest)
	case "story", "故事":
		return s.Story(ctx, rest)
	case "joke", "笑话":
		return s.Joke(ctx)
	case "poem", "诗词":
		return s.Poem(ctx, rest)
	case "quote", "名言":
		return s.Quote(ctx, rest)
	default:
		return s.Menu(), nil
	}
}

// Menu lists the available games.
func (s *Service) Menu() string {
	h := s.hint
	return "🎮 娱乐功能菜单\n\n" +
		h + " quiz - 知识竞赛\n" +
		h + " riddle - 猜谜游戏\n" +
		h + " chain [词语] - 文字接龙\n" +
		h + " story [主题] - 创作故事\n" +
		h + " joke - 随机笑话\n" +
		h + " poem [主题] - 创作诗词\n" +
		h + " quote [类型] - 名言警句\n\n" +
		"进行中的游戏再次发送同一命令即可继续，加上 new 重新开始。\n" +
		"示例：" + h + " story 科幻"
}

var freshKeywords = map[string]bool{"new": true, "restart": true, "新": true}

// cutFresh reports whether input starts with a fresh-start keyword and returns
// the remaining input.
func cutFresh(input string) (bool, string) {
	first, rest := command.SplitFirst(input)
	if freshKeywords[command.Normalize(first)] {
		return true, rest
	}
	return false, strings.TrimSpace(input)
}

func (s *Service) elapsed(since time.Time) time.Duration {
	return s.now().Sub(since).Round(time.Second)
}

func (s *Service) logFallback(what string, err error) {
	s.logger.Debug(fmt.Sprintf("generated %s unusable, using built-in", what), zap.Error(err))
}
