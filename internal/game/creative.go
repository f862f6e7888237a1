package game

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cory-johannsen/parley/internal/ai"
	"github.com/cory-johannsen/parley/internal/cache"
)

const (
	creativeTTL = 30 * time.Minute
	jokeTTL     = 10 * time.Minute
	// jokeBucket groups joke requests so that repeats within it share a joke.
	jokeBucket = 10 * time.Second
)

// Story writes a short story on theme.
func (s *Service) Story(ctx context.Context, theme string) (string, error) {
	theme = orDefault(theme, "随机")
	return s.creative(ctx, cache.Key("story", theme), creativeTTL, ai.CreativeStory,
		fmt.Sprintf("请创作一个%s主题的有趣故事，长度适中，情节完整。", theme),
		"📖 "+theme+"故事\n\n")
}

// Poem writes a short poem on theme.
func (s *Service) Poem(ctx context.Context, theme string) (string, error) {
	theme = orDefault(theme, "自然")
	return s.creative(ctx, cache.Key("poem", theme), creativeTTL, ai.CreativePoem,
		fmt.Sprintf("请创作一首关于%s的诗，要求意境优美，朗朗上口。", theme),
		"🎭 "+theme+"诗词\n\n")
}

// Quote returns a quotation of the given kind.
func (s *Service) Quote(ctx context.Context, kind string) (string, error) {
	kind = orDefault(kind, "励志")
	return s.creative(ctx, cache.Key("quote", kind), creativeTTL, ai.CreativeQuote,
		fmt.Sprintf("请提供一句%s类型的名言警句，包含作者信息。", kind),
		"💭 "+kind+"名言\n\n")
}

// Joke tells a joke. Requests within the same short time bucket share one joke.
func (s *Service) Joke(ctx context.Context) (string, error) {
	bucket := s.now().Unix() / int64(jokeBucket/time.Second)
	return s.creative(ctx, cache.Key("joke", strconv.FormatInt(bucket, 10)), jokeTTL, ai.CreativeJoke,
		"请讲一个健康有趣的笑话", "😄 ")
}

func (s *Service) creative(ctx context.Context, key string, ttl time.Duration, kind ai.CreativeKind, prompt, header string) (string, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}
	text, err := s.gen.Creative(ctx, kind, prompt)
	if err != nil {
		return "", fmt.Errorf("generating %s: %w", kind, err)
	}
	reply := header + text
	s.cache.Set(key, reply, ttl)
	return reply, nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}
