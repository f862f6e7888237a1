package game

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const chainSystem = "你在玩文字接龙。只输出一个词语，不要输出其他内容。"

// MinChainWordLen is the minimum rune length of a word-chain move.
const MinChainWordLen = 2

// ValidMove reports whether candidate may follow current: it must begin with
// the last rune of current and be at least MinChainWordLen runes long.
func ValidMove(current, candidate string) bool {
	last, _ := utf8.DecodeLastRuneInString(current)
	first, _ := utf8.DecodeRuneInString(candidate)
	return last != utf8.RuneError &&
		first == last &&
		utf8.RuneCountInString(candidate) >= MinChainWordLen
}

// Chain starts, continues or restarts user's word chain. Starting takes an
// optional seed word; while active, input is the next word.
func (s *Service) Chain(ctx context.Context, user, input string) (string, error) {
	unlock := s.locks.Lock(user)
	defer unlock()

	fresh, input := cutFresh(input)
	word, _ := command.SplitFirst(input)
	state, ok := s.registry.Chain(user)
	if !ok || fresh {
		return s.startChain(user, word), nil
	}
	if word == "" {
		return fmt.Sprintf("请提供接龙词语，当前词语：%s", state.Current), nil
	}
	if !ValidMove(state.Current, word) {
		last, _ := utf8.DecodeLastRuneInString(state.Current)
		return fmt.Sprintf("❌ 接龙失败！请用“%c”开头、至少 %d 个字的词语。", last, MinChainWordLen), nil
	}

	reply := s.nextWord(ctx, word)
	next := state
	next.History = append(next.History, word, reply)
	next.Current = reply
	next.Score++
	s.registry.PutChain(user, next)
	return fmt.Sprintf("✅ 接龙成功！\n\n你：%s\n我：%s\n\n当前得分：%d\n请继续接龙！", word, reply, next.Score), nil
}

func (s *Service) startChain(user, seed string) string {
	if seed == "" {
		seed = pick(s.src, s.content.SeedWords)
	}
	s.registry.PutChain(user, ChainState{Current: seed, History: []string{seed}, StartedAt: s.now()})
	last, _ := utf8.DecodeLastRuneInString(seed)
	return fmt.Sprintf("🔗 文字接龙开始！\n\n起始词：%s\n\n请用“%c”开头的词语接龙：%s chain <词语>", seed, last, s.hint)
}

// nextWord produces the engine's follow-up to word. Generated output that does
// not follow the chain rule, or a generator error, yields the fixed fallback.
func (s *Service) nextWord(ctx context.Context, word string) string {
	last, _ := utf8.DecodeLastRuneInString(word)
	fallback := string(last) + "好"

	text, err := s.gen.Generate(ctx, chainSystem, fmt.Sprintf("请给出一个以“%c”开头的常用词语，只返回词语本身。", last))
	if err != nil {
		s.logFallback("chain word", err)
		return fallback
	}
	candidate := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return r
		}
		return -1
	}, text)
	if !ValidMove(word, candidate) {
		s.logFallback("chain word", fmt.Errorf("%q does not follow %q", candidate, word))
		return fallback
	}
	return candidate
}
