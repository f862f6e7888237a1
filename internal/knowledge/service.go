// Package knowledge answers factual questions by grounding an AI answer on
// matching entries from static and admin-taught knowledge sources.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/parley/internal/cache"
)

// AnswerTTL is how long a finished answer is cached.
const AnswerTTL = time.Hour

var (
	// ErrEmptyQuestion is returned by Answer for a blank question.
	ErrEmptyQuestion = errors.New("empty question")
	// ErrEntryNotFound is returned when forgetting an unknown keyword.
	ErrEntryNotFound = errors.New("knowledge entry not found")
	// ErrEmptyKeyword is returned when learning an entry with no keyword.
	ErrEmptyKeyword = errors.New("empty keyword")
)

// Entry is one search result.
type Entry struct {
	Source  string
	Title   string
	Content string
	URL     string
}

// Searcher is a knowledge source.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Entry, error)
}

// Asker produces the final answer.
type Asker interface {
	AskKnowledge(ctx context.Context, question, background string) (string, error)
}

// AnswerCache stores finished answers.
type AnswerCache interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration)
}

// Service answers knowledge questions.
type Service struct {
	asker      Asker
	cache      AnswerCache
	sources    []Searcher
	maxResults int
	logger     *zap.Logger
}

// NewService creates a Service that consults sources in order.
//
// Precondition: asker, answers and logger must be non-nil; maxResults >= 1.
func NewService(asker Asker, answers AnswerCache, maxResults int, logger *zap.Logger, sources ...Searcher) *Service {
	return &Service{asker: asker, cache: answers, sources: sources, maxResults: maxResults, logger: logger}
}

// Answer returns a cached answer for question, or searches the sources and
// asks the AI with whatever matched as background. A failing source is
// logged and skipped.
func (s *Service) Answer(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	key := cache.Key("knowledge", question)
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}

	results := s.Search(ctx, question)
	var (
		answer string
		err    error
	)
	if len(results) == 0 {
		answer, err = s.asker.AskKnowledge(ctx, question, "")
	} else {
		answer, err = s.asker.AskKnowledge(ctx, question, background(results))
	}
	if err != nil {
		return "", fmt.Errorf("answering knowledge question: %w", err)
	}
	if len(results) > 0 {
		answer += references(results)
	}
	s.cache.Set(key, answer, AnswerTTL)
	return answer, nil
}

// Search collects up to maxResults entries across all sources.
func (s *Service) Search(ctx context.Context, query string) []Entry {
	var out []Entry
	for _, src := range s.sources {
		remaining := s.maxResults - len(out)
		if remaining <= 0 {
			break
		}
		found, err := src.Search(ctx, query, remaining)
		if err != nil {
			s.logger.Warn("knowledge source failed", zap.String("source", src.Name()), zap.Error(err))
			continue
		}
		out = append(out, found...)
	}
	if len(out) > s.maxResults {
		out = out[:s.maxResults]
	}
	return out
}

func background(results []Entry) string {
	var b strings.Builder
	b.WriteString("参考信息：\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s - %s\n%s\n\n", i+1, r.Source, r.Title, r.Content)
	}
	return b.String()
}

func references(results []Entry) string {
	var b strings.Builder
	b.WriteString("\n\n📚 参考来源：\n")
	seen := make(map[string]bool)
	for _, r := range results {
		if seen[r.Source] {
			continue
		}
		seen[r.Source] = true
		b.WriteString("• " + r.Source)
		if r.URL != "" {
			b.WriteString(" " + r.URL)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
