package knowledge

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed builtin.yaml
var defaultBase []byte

// Topic is one keyword entry in a Base.
type Topic struct {
	Keyword string `yaml:"keyword"`
	Content string `yaml:"content"`
}

// Base is a static keyword knowledge base loaded from YAML.
type Base struct {
	Source           string   `yaml:"source"`
	URL              string   `yaml:"url"`
	Topics           []Topic  `yaml:"topics"`
	FallbackKeywords []string `yaml:"fallback_keywords"`
}

// DefaultBase returns the embedded knowledge base.
func DefaultBase() *Base {
	b, err := ParseBase(defaultBase)
	if err != nil {
		panic(fmt.Sprintf("parsing embedded knowledge base: %v", err))
	}
	return b
}

// LoadBase reads a knowledge base from path. An empty path returns DefaultBase.
func LoadBase(path string) (*Base, error) {
	if path == "" {
		return DefaultBase(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading knowledge base %q: %w", path, err)
	}
	return ParseBase(data)
}

// ParseBase decodes and validates a YAML knowledge base.
func ParseBase(data []byte) (*Base, error) {
	var b Base
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decoding knowledge base: %w", err)
	}
	if b.Source == "" {
		return nil, errors.New("knowledge base needs a source name")
	}
	if len(b.Topics) == 0 {
		return nil, errors.New("knowledge base has no topics")
	}
	for i, t := range b.Topics {
		if strings.TrimSpace(t.Keyword) == "" || strings.TrimSpace(t.Content) == "" {
			return nil, fmt.Errorf("topics[%d]: keyword and content are required", i)
		}
	}
	return &b, nil
}

// Name implements Searcher.
func (b *Base) Name() string { return b.Source }

// Search returns the topics whose keyword is contained in query or contains
// query, case-insensitively, in file order. When none match but query mentions
// a fallback keyword, the first topic is returned.
func (b *Base) Search(_ context.Context, query string, limit int) ([]Entry, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit < 1 {
		return nil, nil
	}
	var out []Entry
	for _, t := range b.Topics {
		kw := strings.ToLower(t.Keyword)
		if strings.Contains(q, kw) || strings.Contains(kw, q) {
			out = append(out, b.entry(t))
			if len(out) == limit {
				break
			}
		}
	}
	if len(out) > 0 {
		return out, nil
	}
	for _, kw := range b.FallbackKeywords {
		if strings.Contains(q, strings.ToLower(kw)) {
			return []Entry{b.entry(b.Topics[0])}, nil
		}
	}
	return nil, nil
}

func (b *Base) entry(t Topic) Entry {
	return Entry{Source: b.Source, Title: t.Keyword, Content: t.Content, URL: b.URL}
}
