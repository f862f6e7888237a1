package game_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/parley/internal/ai"
	"github.com/cory-johannsen/parley/internal/game"
)

const (
	quizJSON   = `好的：{"question": "光速约为多少？", "options": ["30万公里/秒", "3万公里/秒", "300公里/秒", "3公里/秒"], "answer": "a", "explanation": "真空中光速约 30 万公里每秒。"}`
	riddleJSON = `{"question": "千条线，万条线，掉到水里看不见。", "answer": "雨", "hint": "天气"}`
)

// scriptedGenerator returns queued outputs in order, then repeats the last one.
type scriptedGenerator struct {
	mu       sync.Mutex
	outputs  []string
	err      error
	generate int
	creative map[ai.CreativeKind]int
}

func newScripted(outputs ...string) *scriptedGenerator {
	return &scriptedGenerator{outputs: outputs, creative: make(map[ai.CreativeKind]int)}
}

func (g *scriptedGenerator) Generate(_ context.Context, _, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.generate++
	if g.err != nil {
		return "", g.err
	}
	if len(g.outputs) == 0 {
		return "", nil
	}
	out := g.outputs[0]
	if len(g.outputs) > 1 {
		g.outputs = g.outputs[1:]
	}
	return out, nil
}

func (g *scriptedGenerator) Creative(_ context.Context, kind ai.CreativeKind, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creative[kind]++
	if g.err != nil {
		return "", g.err
	}
	return string(kind) + " text", nil
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (c *mapCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *mapCache) Set(key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttl
}

type zeroSource struct{}

func (zeroSource) Intn(int) int { return 0 }

type fixture struct {
	svc   *game.Service
	gen   *scriptedGenerator
	cache *mapCache
	reg   *game.Registry
	now   time.Time
}

func newFixture(t *testing.T, gen *scriptedGenerator, questions int) *fixture {
	return newFixtureWithLogger(gen, questions, zaptest.NewLogger(t))
}

func newFixtureWithLogger(gen *scriptedGenerator, questions int, logger *zap.Logger) *fixture {
	f := &fixture{gen: gen, cache: newMapCache(), reg: game.NewRegistry(), now: time.Unix(1_700_000_000, 0)}
	f.svc = game.NewService(f.reg, gen, f.cache, game.Options{
		Questions:   questions,
		CommandHint: "/游戏",
		Source:      zeroSource{},
		Now:         func() time.Time { return f.now },
	}, logger)
	return f
}

func TestHandle_UnknownActionShowsMenu(t *testing.T) {
	f := newFixture(t, newScripted(), 5)
	for _, args := range []string{"", "dance", "  "} {
		out, err := f.svc.Handle(context.Background(), "u1", args)
		require.NoError(t, err)
		assert.Contains(t, out, "娱乐功能菜单")
		assert.Contains(t, out, "/游戏 quiz")
	}
}

func TestQuiz_StartUsesGeneratedQuestion(t *testing.T) {
	f := newFixture(t, newScripted(quizJSON), 5)
	out, err := f.svc.Handle(context.Background(), "u1", "quiz")
	require.NoError(t, err)
	assert.Contains(t, out, "第1题：光速约为多少？")
	assert.Contains(t, out, "A. 30万公里/秒")

	st, ok := f.reg.Quiz("u1")
	require.True(t, ok)
	assert.Equal(t, 1, st.Asked)
	assert.Equal(t, "A", st.Question.Answer)
}

func TestQuiz_MalformedOutputFallsBackToBuiltIn(t *testing.T) {
	f := newFixture(t, newScripted("not json at all"), 5)
	out, err := f.svc.Quiz(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Contains(t, out, "中国的首都是哪里？")
}

func TestQuiz_GeneratorErrorLeavesNoState(t *testing.T) {
	gen := newScripted()
	gen.err = errors.New("upstream down")
	f := newFixture(t, gen, 5)
	_, err := f.svc.Quiz(context.Background(), "u1", "")
	require.Error(t, err)
	_, ok := f.reg.Quiz("u1")
	assert.False(t, ok)
}

func TestQuiz_CorrectAnswerScoresAndAdvances(t *testing.T) {
	f := newFixture(t, newScripted(quizJSON), 5)
	ctx := context.Background()
	_, err := f.svc.Quiz(ctx, "u1", "")
	require.NoError(t, err)

	out, err := f.svc.Quiz(ctx, "u1", "ａ")
	require.NoError(t, err)
	assert.Contains(t, out, "回答正确")
	assert.Contains(t, out, "第2题")

	st, ok := f.reg.Quiz("u1")
	require.True(t, ok)
	assert.Equal(t, 2, st.Asked)
	assert.Equal(t, game.PointsPerAnswer, st.Score)
}

func TestQuiz_WrongAnswerRevealsCorrectOne(t *testing.T) {
	f := newFixture(t, newScripted(quizJSON), 5)
	ctx := context.Background()
	_, _ = f.svc.Quiz(ctx, "u1", "")
	out, err := f.svc.Quiz(ctx, "u1", "C")
	require.NoError(t, err)
	assert.Contains(t, out, "正确答案是 A")
	st, _ := f.reg.Quiz("u1")
	assert.Equal(t, 0, st.Score)
}

func TestQuiz_EmptyAnswerRepeatsQuestion(t *testing.T) {
	f := newFixture(t, newScripted(quizJSON), 5)
	ctx := context.Background()
	_, _ = f.svc.Quiz(ctx, "u1", "")
	calls := f.gen.generate
	out, err := f.svc.Quiz(ctx, "u1", "   ")
	require.NoError(t, err)
	assert.Contains(t, out, "第1题")
	assert.Equal(t, calls, f.gen.generate)
}

func TestQuiz_FinishesAfterConfiguredQuestions(t *testing.T) {
	f := newFixture(t, newScripted(quizJSON), 2)
	ctx := context.Background()
	_, _ = f.svc.Quiz(ctx, "u1", "")
	_, err := f.svc.Quiz(ctx, "u1", "A")
	require.NoError(t, err)
	f.now = f.now.Add(42 * time.Second)

	out, err := f.svc.Quiz(ctx, "u1", "A")
	require.NoError(t, err)
	assert.Contains(t, out, "知识竞赛结束")
	assert.Contains(t, out, "20/20")
	assert.Contains(t, out, "42s")
	assert.Contains(t, out, "学识渊博")
	_, ok := f.reg.Quiz("u1")
	assert.False(t, ok)
}

func TestQuiz_ExitReportsAnsweredOnly(t *testing.T) {
	f := newFixture(t, newScripted(quizJSON), 5)
	ctx := context.Background()
	_, _ = f.svc.Quiz(ctx, "u1", "")
	_, _ = f.svc.Quiz(ctx, "u1", "A")
	out, err := f.svc.Quiz(ctx, "u1", "退出")
	require.NoError(t, err)
	assert.Contains(t, out, "10/10")
	_, ok := f.reg.Quiz("u1")
	assert.False(t, ok)
}

func TestQuiz_NextQuestionErrorKeepsState(t *testing.T) {
	gen := newScripted(quizJSON)
	f := newFixture(t, gen, 5)
	ctx := context.Background()
	_, _ = f.svc.Quiz(ctx, "u1", "")
	before, _ := f.reg.Quiz("u1")

	gen.err = errors.New("timeout")
	_, err := f.svc.Quiz(ctx, "u1", "A")
	require.Error(t, err)
	after, ok := f.reg.Quiz("u1")
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestQuiz_RestartKeyword(t *testing.T) {
	f := newFixture(t, newScripted(quizJSON), 5)
	ctx := context.Background()
	_, _ = f.svc.Quiz(ctx, "u1", "")
	_, _ = f.svc.Quiz(ctx, "u1", "A")
	out, err := f.svc.Handle(ctx, "u1", "quiz new")
	require.NoError(t, err)
	assert.Contains(t, out, "知识竞赛开始")
	st, _ := f.reg.Quiz("u1")
	assert.Equal(t, 1, st.Asked)
	assert.Equal(t, 0, st.Score)
}

func TestRank(t *testing.T) {
	cases := map[int]string{50: "知识大师", 40: "知识大师", 30: "博学之士", 20: "学识渊博", 10: "好学青年", 0: "继续努力"}
	for score, want := range cases {
		assert.Contains(t, game.Rank(score), want, "score %d", score)
	}
}

func TestRiddle_HintAndWin(t *testing.T) {
	f := newFixture(t, newScripted(riddleJSON), 5)
	ctx := context.Background()
	out, err := f.svc.Handle(ctx, "u1", "riddle")
	require.NoError(t, err)
	assert.Contains(t, out, "千条线")

	out, err = f.svc.Riddle(ctx, "u1", "提示")
	require.NoError(t, err)
	assert.Contains(t, out, "天气")

	out, err = f.svc.Riddle(ctx, "u1", "太阳")
	require.NoError(t, err)
	assert.Contains(t, out, "不对哦")
	_, ok := f.reg.Riddle("u1")
	assert.True(t, ok)

	out, err = f.svc.Riddle(ctx, "u1", "是下雨吧")
	require.NoError(t, err)
	assert.Contains(t, out, "恭喜答对")
	_, ok = f.reg.Riddle("u1")
	assert.False(t, ok)
}

func TestRiddle_FallbackOnMalformedOutput(t *testing.T) {
	f := newFixture(t, newScripted(`{"question": ""}`), 5)
	out, err := f.svc.Riddle(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Contains(t, out, "身穿绿衣裳")
	st, ok := f.reg.Riddle("u1")
	require.True(t, ok)
	assert.Equal(t, "西瓜", st.Riddle.Answer)
}

func TestChain_StartWithSeed(t *testing.T) {
	f := newFixture(t, newScripted(), 5)
	out, err := f.svc.Handle(context.Background(), "u1", "chain 天空")
	require.NoError(t, err)
	assert.Contains(t, out, "起始词：天空")
	assert.Contains(t, out, "“空”")
	st, ok := f.reg.Chain("u1")
	require.True(t, ok)
	assert.Equal(t, "天空", st.Current)
	assert.Equal(t, []string{"天空"}, st.History)
}

func TestChain_StartWithoutSeedPicksFromPool(t *testing.T) {
	f := newFixture(t, newScripted(), 5)
	_, err := f.svc.Chain(context.Background(), "u1", "")
	require.NoError(t, err)
	st, ok := f.reg.Chain("u1")
	require.True(t, ok)
	assert.Equal(t, game.DefaultContent().SeedWords[0], st.Current)
}

func TestChain_ValidMoveUsesGeneratedWord(t *testing.T) {
	f := newFixture(t, newScripted("「气球」"), 5)
	ctx := context.Background()
	_, _ = f.svc.Chain(ctx, "u1", "天空")
	out, err := f.svc.Chain(ctx, "u1", "空气")
	require.NoError(t, err)
	assert.Contains(t, out, "我：气球")

	st, _ := f.reg.Chain("u1")
	assert.Equal(t, "气球", st.Current)
	assert.Equal(t, []string{"天空", "空气", "气球"}, st.History)
	assert.Equal(t, 1, st.Score)
}

func TestChain_InvalidGeneratedWordUsesFallback(t *testing.T) {
	f := newFixture(t, newScripted("苹果"), 5)
	ctx := context.Background()
	_, _ = f.svc.Chain(ctx, "u1", "天空")
	_, err := f.svc.Chain(ctx, "u1", "空气")
	require.NoError(t, err)
	st, _ := f.reg.Chain("u1")
	assert.Equal(t, "气好", st.Current)
}

func TestChain_GeneratorErrorUsesFallback(t *testing.T) {
	gen := newScripted()
	f := newFixture(t, gen, 5)
	ctx := context.Background()
	_, _ = f.svc.Chain(ctx, "u1", "天空")
	gen.err = errors.New("down")
	_, err := f.svc.Chain(ctx, "u1", "空气")
	require.NoError(t, err)
	st, _ := f.reg.Chain("u1")
	assert.Equal(t, "气好", st.Current)
}

func TestChain_InvalidMoveChangesNothing(t *testing.T) {
	f := newFixture(t, newScripted(), 5)
	ctx := context.Background()
	_, _ = f.svc.Chain(ctx, "u1", "天空")
	before, _ := f.reg.Chain("u1")

	for _, word := range []string{"大地", "空"} {
		out, err := f.svc.Chain(ctx, "u1", word)
		require.NoError(t, err)
		assert.Contains(t, out, "接龙失败")
		assert.Contains(t, out, "“空”")
	}
	after, _ := f.reg.Chain("u1")
	assert.Equal(t, before, after)
	assert.Equal(t, 0, f.gen.generate)
}

func TestValidMove(t *testing.T) {
	assert.True(t, game.ValidMove("天空", "空气"))
	assert.True(t, game.ValidMove("cat", "tiger"))
	assert.False(t, game.ValidMove("天空", "空"))
	assert.False(t, game.ValidMove("天空", "大地"))
	assert.False(t, game.ValidMove("", "空气"))
}

func TestPropertyChainStateFollowsRule(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newFixtureWithLogger(newScripted(rapid.SampledFrom([]string{"气球", "苹果", "", "球场"}).Draw(t, "gen")), 5, zap.NewNop())
		ctx := context.Background()
		_, err := f.svc.Chain(ctx, "u", "天空")
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		moves := rapid.SliceOfN(rapid.SampledFrom([]string{"空气", "气球", "球场", "场地", "地", "大地", "好人", "好"}), 0, 10).Draw(t, "moves")
		for _, m := range moves {
			before, _ := f.reg.Chain("u")
			if _, err := f.svc.Chain(ctx, "u", m); err != nil {
				t.Fatalf("move: %v", err)
			}
			after, _ := f.reg.Chain("u")
			if game.ValidMove(before.Current, m) {
				if after.Score != before.Score+1 || len(after.History) != len(before.History)+2 {
					t.Fatalf("valid move %q did not advance: %+v -> %+v", m, before, after)
				}
				if !game.ValidMove(m, after.Current) {
					t.Fatalf("engine word %q does not follow %q", after.Current, m)
				}
			} else if after.Score != before.Score || after.Current != before.Current {
				t.Fatalf("invalid move %q changed state", m)
			}
			if utf8.RuneCountInString(after.Current) < game.MinChainWordLen {
				t.Fatalf("current word %q too short", after.Current)
			}
		}
	})
}

func TestCreative_CachedPerTheme(t *testing.T) {
	f := newFixture(t, newScripted(), 5)
	ctx := context.Background()
	a, err := f.svc.Handle(ctx, "u1", "story 科幻")
	require.NoError(t, err)
	b, err := f.svc.Handle(ctx, "u2", "故事 科幻")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "📖 科幻故事"))
	assert.Equal(t, 1, f.gen.creative[ai.CreativeStory])

	_, err = f.svc.Handle(ctx, "u1", "story 童话")
	require.NoError(t, err)
	assert.Equal(t, 2, f.gen.creative[ai.CreativeStory])
}

func TestCreative_DefaultThemes(t *testing.T) {
	f := newFixture(t, newScripted(), 5)
	ctx := context.Background()
	out, err := f.svc.Handle(ctx, "u1", "poem")
	require.NoError(t, err)
	assert.Contains(t, out, "自然诗词")
	out, err = f.svc.Handle(ctx, "u1", "quote")
	require.NoError(t, err)
	assert.Contains(t, out, "励志名言")
	out, err = f.svc.Handle(ctx, "u1", "story")
	require.NoError(t, err)
	assert.Contains(t, out, "随机故事")
}

func TestCreative_JokeBucketedByTime(t *testing.T) {
	f := newFixture(t, newScripted(), 5)
	ctx := context.Background()
	_, err := f.svc.Joke(ctx)
	require.NoError(t, err)
	_, err = f.svc.Joke(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.gen.creative[ai.CreativeJoke])

	f.now = f.now.Add(20 * time.Second)
	_, err = f.svc.Joke(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.gen.creative[ai.CreativeJoke])
}

func TestCreative_ErrorNotCached(t *testing.T) {
	gen := newScripted()
	gen.err = errors.New("down")
	f := newFixture(t, gen, 5)
	_, err := f.svc.Story(context.Background(), "海洋")
	require.Error(t, err)
	assert.Empty(t, f.cache.data)
}

func TestSessionsIsolatedPerUserAndKind(t *testing.T) {
	f := newFixture(t, newScripted(quizJSON), 5)
	ctx := context.Background()
	_, _ = f.svc.Quiz(ctx, "u1", "")
	_, _ = f.svc.Chain(ctx, "u1", "天空")
	_, _ = f.svc.Chain(ctx, "u2", "月亮")

	assert.Equal(t, []game.Kind{game.KindChain, game.KindQuiz}, f.reg.Active("u1"))
	assert.Equal(t, []game.Kind{game.KindChain}, f.reg.Active("u2"))
	c1, _ := f.reg.Chain("u1")
	c2, _ := f.reg.Chain("u2")
	assert.Equal(t, "天空", c1.Current)
	assert.Equal(t, "月亮", c2.Current)
}
