package game

import (
	"context"
	"fmt"
	"strings"

	"github.com/cory-johannsen/parley/internal/command"
)

// PointsPerAnswer is added to the score for each correct quiz answer.
const PointsPerAnswer = 10

const quizSystem = "你是知识竞赛出题人。只输出 JSON，不要输出其他内容。"

const quizPrompt = `请生成一道中等难度的知识竞赛题目，包含题目、4 个选项、正确答案字母和答案解释。
按以下 JSON 格式返回：
{"question": "题目内容", "options": ["选项A", "选项B", "选项C", "选项D"], "answer": "A", "explanation": "答案解释"}`

var quizExitKeywords = map[string]bool{"退出": true, "exit": true, "quit": true}

// Rank returns the tier title for a final quiz score.
func Rank(score int) string {
	switch {
	case score >= 40:
		return "🥇 知识大师"
	case score >= 30:
		return "🥈 博学之士"
	case score >= 20:
		return "🥉 学识渊博"
	case score >= 10:
		return "📚 好学青年"
	default:
		return "🌱 继续努力"
	}
}

// Quiz starts, continues or restarts user's quiz. While a quiz is in progress
// input is the answer letter or an exit keyword; empty input repeats the
// current question.
func (s *Service) Quiz(ctx context.Context, user, input string) (string, error) {
	unlock := s.locks.Lock(user)
	defer unlock()

	fresh, input := cutFresh(input)
	state, ok := s.registry.Quiz(user)
	if !ok || fresh {
		return s.startQuiz(ctx, user)
	}
	return s.answerQuiz(ctx, user, state, input)
}

func (s *Service) startQuiz(ctx context.Context, user string) (string, error) {
	q, err := s.newQuestion(ctx)
	if err != nil {
		return "", err
	}
	s.registry.PutQuiz(user, QuizState{Question: q, Asked: 1, StartedAt: s.now()})
	return fmt.Sprintf("🧠 知识竞赛开始！共 %d 题\n\n%s\n\n回复 %s quiz <A/B/C/D> 作答，或 %s quiz 退出 结束游戏",
		s.questions, formatQuestion(1, q), s.hint, s.hint), nil
}

func (s *Service) answerQuiz(ctx context.Context, user string, state QuizState, input string) (string, error) {
	answer := command.Normalize(input)
	if answer == "" {
		return fmt.Sprintf("%s\n\n当前得分：%d", formatQuestion(state.Asked, state.Question), state.Score), nil
	}
	if quizExitKeywords[answer] {
		s.registry.Delete(user, KindQuiz)
		return s.quizReport(state.Score, state.Asked-1, state), nil
	}

	next := state
	var b strings.Builder
	if strings.ToUpper(answer) == state.Question.Answer {
		next.Score += PointsPerAnswer
		b.WriteString("✅ 回答正确！")
	} else {
		fmt.Fprintf(&b, "❌ 回答错误，正确答案是 %s", state.Question.Answer)
	}
	if state.Question.Explanation != "" {
		b.WriteString("\n" + state.Question.Explanation)
	}
	b.WriteString("\n\n")

	if state.Asked >= s.questions {
		s.registry.Delete(user, KindQuiz)
		b.WriteString(s.quizReport(next.Score, state.Asked, state))
		return b.String(), nil
	}

	q, err := s.newQuestion(ctx)
	if err != nil {
		return "", err
	}
	next.Question = q
	next.Asked++
	s.registry.PutQuiz(user, next)
	fmt.Fprintf(&b, "%s\n\n当前得分：%d", formatQuestion(next.Asked, q), next.Score)
	return b.String(), nil
}

func (s *Service) quizReport(score, answered int, state QuizState) string {
	return fmt.Sprintf("🎯 知识竞赛结束！\n\n📊 最终得分：%d/%d\n⏱️ 用时：%s\n🏆 %s\n\n发送 %s quiz 开始新一轮挑战！",
		score, answered*PointsPerAnswer, s.elapsed(state.StartedAt), Rank(score), s.hint)
}

// newQuestion asks the generator for a question. Unparseable output yields a
// built-in question; a generator error is returned.
func (s *Service) newQuestion(ctx context.Context) (Question, error) {
	text, err := s.gen.Generate(ctx, quizSystem, quizPrompt)
	if err != nil {
		return Question{}, fmt.Errorf("generating quiz question: %w", err)
	}
	q, err := ParseQuestion(text)
	if err != nil {
		s.logFallback("quiz question", err)
		return pick(s.src, s.content.Quiz), nil
	}
	return q, nil
}

func formatQuestion(n int, q Question) string {
	var b strings.Builder
	fmt.Fprintf(&b, "第%d题：%s\n", n, q.Question)
	for i, opt := range q.Options {
		fmt.Fprintf(&b, "\n%c. %s", 'A'+i, opt)
	}
	return b.String()
}
