package game

import (
	"context"
	"fmt"
	"strings"

	"github.com/cory-johannsen/parley/internal/command"
)

const riddleSystem = "你是谜语出题人。只输出 JSON，不要输出其他内容。"

const riddlePrompt = `请出一个有趣的谜语，谜底是常见事物，并附一个简单提示。
按以下 JSON 格式返回：
{"question": "谜面", "answer": "谜底", "hint": "提示"}`

var riddleHintKeywords = map[string]bool{"提示": true, "hint": true}

// Riddle starts, continues or restarts user's riddle. While a riddle is active
// input is a guess or a hint keyword; empty input repeats the riddle.
func (s *Service) Riddle(ctx context.Context, user, input string) (string, error) {
	unlock := s.locks.Lock(user)
	defer unlock()

	fresh, input := cutFresh(input)
	state, ok := s.registry.Riddle(user)
	if !ok || fresh {
		return s.startRiddle(ctx, user)
	}

	guess := strings.TrimSpace(input)
	switch {
	case guess == "":
		return fmt.Sprintf("🤔 %s\n\n回复 %s riddle <答案> 作答", state.Riddle.Question, s.hint), nil
	case riddleHintKeywords[command.Normalize(guess)]:
		return "💡 提示：" + state.Riddle.Hint, nil
	case strings.Contains(strings.ToLower(guess), strings.ToLower(state.Riddle.Answer)):
		s.registry.Delete(user, KindRiddle)
		return fmt.Sprintf("🎉 恭喜答对了！答案就是：%s（用时 %s）\n\n发送 %s riddle 挑战新谜语！",
			state.Riddle.Answer, s.elapsed(state.StartedAt), s.hint), nil
	default:
		return fmt.Sprintf("❌ 不对哦，再想想吧！\n发送 %s riddle 提示 获取提示，或 %s riddle new 换一个谜语。", s.hint, s.hint), nil
	}
}

func (s *Service) startRiddle(ctx context.Context, user string) (string, error) {
	text, err := s.gen.Generate(ctx, riddleSystem, riddlePrompt)
	if err != nil {
		return "", fmt.Errorf("generating riddle: %w", err)
	}
	r, err := ParseRiddle(text)
	if err != nil {
		s.logFallback("riddle", err)
		r = pick(s.src, s.content.Riddles)
	}
	s.registry.PutRiddle(user, RiddleState{Riddle: r, StartedAt: s.now()})
	return fmt.Sprintf("🤔 猜谜时间！\n\n%s\n\n回复 %s riddle <答案> 作答，或 %s riddle 提示 获取提示", r.Question, s.hint, s.hint), nil
}
