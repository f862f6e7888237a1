package game

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed fallbacks.yaml
var defaultContent []byte

// Question is one multiple-choice quiz question.
type Question struct {
	Question    string   `yaml:"question" json:"question"`
	Options     []string `yaml:"options" json:"options"`
	Answer      string   `yaml:"answer" json:"answer"`
	Explanation string   `yaml:"explanation" json:"explanation"`
}

// Riddle is one riddle with its answer and hint.
type Riddle struct {
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer"`
	Hint     string `yaml:"hint" json:"hint"`
}

// Content is the built-in game material.
type Content struct {
	Quiz      []Question `yaml:"quiz"`
	Riddles   []Riddle   `yaml:"riddles"`
	SeedWords []string   `yaml:"seed_words"`
}

// DefaultContent returns the embedded game material.
func DefaultContent() Content {
	c, err := ParseContent(defaultContent)
	if err != nil {
		panic(fmt.Sprintf("parsing embedded game content: %v", err))
	}
	return c
}

// ParseContent decodes and validates YAML game material.
//
// Postcondition: a nil error means every list is non-empty and every entry is valid.
func ParseContent(data []byte) (Content, error) {
	var c Content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Content{}, fmt.Errorf("decoding game content: %w", err)
	}
	if len(c.Quiz) == 0 || len(c.Riddles) == 0 || len(c.SeedWords) == 0 {
		return Content{}, errors.New("game content needs quiz, riddles and seed_words")
	}
	for i := range c.Quiz {
		q, err := validQuestion(c.Quiz[i])
		if err != nil {
			return Content{}, fmt.Errorf("quiz[%d]: %w", i, err)
		}
		c.Quiz[i] = q
	}
	for i, r := range c.Riddles {
		if _, err := validRiddle(r); err != nil {
			return Content{}, fmt.Errorf("riddles[%d]: %w", i, err)
		}
	}
	return c, nil
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// ParseQuestion extracts a Question from generated text.
func ParseQuestion(text string) (Question, error) {
	var q Question
	if err := decodeObject(text, &q); err != nil {
		return Question{}, err
	}
	return validQuestion(q)
}

// ParseRiddle extracts a Riddle from generated text.
func ParseRiddle(text string) (Riddle, error) {
	var r Riddle
	if err := decodeObject(text, &r); err != nil {
		return Riddle{}, err
	}
	return validRiddle(r)
}

func decodeObject(text string, v any) error {
	raw := jsonObject.FindString(text)
	if raw == "" {
		return errors.New("no JSON object in text")
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decoding JSON object: %w", err)
	}
	return nil
}

func validQuestion(q Question) (Question, error) {
	q.Question = strings.TrimSpace(q.Question)
	q.Answer = strings.ToUpper(strings.TrimSpace(q.Answer))
	if q.Question == "" {
		return Question{}, errors.New("question is empty")
	}
	if len(q.Options) != 4 {
		return Question{}, fmt.Errorf("want 4 options, got %d", len(q.Options))
	}
	if len(q.Answer) != 1 || q.Answer[0] < 'A' || q.Answer[0] > 'D' {
		return Question{}, fmt.Errorf("answer %q is not one of A-D", q.Answer)
	}
	return q, nil
}

func validRiddle(r Riddle) (Riddle, error) {
	r.Question = strings.TrimSpace(r.Question)
	r.Answer = strings.TrimSpace(r.Answer)
	r.Hint = strings.TrimSpace(r.Hint)
	if r.Question == "" || r.Answer == "" {
		return Riddle{}, errors.New("riddle needs a question and an answer")
	}
	return r, nil
}
