package tools_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/parley/internal/scripting"
	"github.com/cory-johannsen/parley/internal/tools"
)

type fakeAI struct {
	generated  int
	translated int
	target     string
	err        error
}

func (f *fakeAI) Generate(_ context.Context, _, prompt string) (string, error) {
	f.generated++
	if f.err != nil {
		return "", f.err
	}
	return "生成：" + prompt, nil
}

func (f *fakeAI) Translate(_ context.Context, text, target string) (string, error) {
	f.translated++
	f.target = target
	if f.err != nil {
		return "", f.err
	}
	return "translated " + text, nil
}

type mapCache map[string]string

func (m mapCache) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapCache) Set(key, value string, _ time.Duration) { m[key] = value }

var fixedNow = time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)

func newService(t *testing.T, ai *fakeAI) *tools.Service {
	return tools.NewService(ai, mapCache{}, scripting.NewCalculator(0), "/工具",
		func() time.Time { return fixedNow }, zaptest.NewLogger(t))
}

func TestHandle_UnknownShowsMenu(t *testing.T) {
	svc := newService(t, &fakeAI{})
	for _, args := range []string{"", "fly", "   "} {
		out := svc.Handle(context.Background(), args)
		assert.Contains(t, out, "工具菜单")
		assert.Contains(t, out, "/工具 calc")
	}
}

func TestWeather_DefaultCityAndCache(t *testing.T) {
	ai := &fakeAI{}
	svc := newService(t, ai)
	ctx := context.Background()
	out := svc.Handle(ctx, "weather")
	assert.Contains(t, out, "北京天气")
	assert.Contains(t, out, "2024-03-01 08:30")

	again := svc.Handle(ctx, "天气 北京")
	assert.Equal(t, out, again)
	assert.Equal(t, 1, ai.generated)

	counts, total := svc.Stats()
	assert.Equal(t, int64(2), counts[tools.Weather])
	assert.Equal(t, int64(2), total)
}

func TestWeather_FailureApologizesAndIsNotCounted(t *testing.T) {
	svc := newService(t, &fakeAI{err: errors.New("down")})
	out := svc.Handle(context.Background(), "weather 上海")
	assert.Equal(t, "❌ 天气查询失败，请稍后重试", out)
	_, total := svc.Stats()
	assert.Zero(t, total)
}

func TestTranslate(t *testing.T) {
	ai := &fakeAI{}
	svc := newService(t, ai)
	ctx := context.Background()

	assert.Contains(t, svc.Handle(ctx, "translate"), "请提供要翻译的文本")

	out := svc.Handle(ctx, "翻译 Hello World")
	assert.Contains(t, out, "原文：Hello World")
	assert.Contains(t, out, "译文：translated Hello World")
	assert.Equal(t, "中文", ai.target)

	svc.Handle(ctx, "translate 你好")
	assert.Equal(t, "英文", ai.target)
}

func TestTargetLanguage(t *testing.T) {
	assert.Equal(t, "英文", tools.TargetLanguage("早上好 world"))
	assert.Equal(t, "中文", tools.TargetLanguage("good morning"))
}

func TestCalc(t *testing.T) {
	svc := newService(t, &fakeAI{})
	ctx := context.Background()
	assert.Contains(t, svc.Handle(ctx, "calc 2+3*4"), "2+3*4 = 14")
	assert.Contains(t, svc.Handle(ctx, "计算 (1 + 2) / 4"), "= 0.75")
	assert.Equal(t, "❌ 无效的数学表达式", svc.Handle(ctx, "calc os.exit()"))
	assert.Contains(t, svc.Handle(ctx, "calc 1/0"), "除以了零")
	assert.Contains(t, svc.Handle(ctx, "calc"), "请提供要计算的表达式")

	counts, _ := svc.Stats()
	assert.Equal(t, int64(2), counts[tools.Calc])
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "14", tools.FormatNumber(14))
	assert.Equal(t, "0.3", tools.FormatNumber(0.1+0.2))
}

func TestTime(t *testing.T) {
	svc := newService(t, &fakeAI{})
	out := svc.Handle(context.Background(), "time")
	assert.Contains(t, out, "2024年03月01日")
	assert.Contains(t, out, "16:30:00")
	assert.Contains(t, out, "星期五")
	assert.Contains(t, out, "今年第61天")

	out = svc.Handle(context.Background(), "time UTC")
	assert.Contains(t, out, "08:30:00")

	assert.Contains(t, svc.Handle(context.Background(), "time Mars/Olympus"), "未知时区")
}

func TestRate_DefaultsAndUpperCase(t *testing.T) {
	svc := newService(t, &fakeAI{})
	assert.Contains(t, svc.Handle(context.Background(), "rate"), "USD → CNY")
	assert.Contains(t, svc.Handle(context.Background(), "汇率 eur jpy"), "EUR → JPY")
}

func TestShort(t *testing.T) {
	svc := newService(t, &fakeAI{})
	ctx := context.Background()
	out := svc.Handle(ctx, "short https://example.com/a?b=c")
	assert.Contains(t, out, "原链接：https://example.com/a?b=c")
	i := strings.Index(out, "https://short.ly/")
	require.GreaterOrEqual(t, i, 0)
	id := strings.SplitN(out[i+len("https://short.ly/"):], "\n", 2)[0]
	assert.Len(t, id, 8)

	assert.Contains(t, svc.Handle(ctx, "short example.com"), "请提供有效的URL")
	assert.Contains(t, svc.Handle(ctx, "short"), "请提供要缩短的URL")
}

func TestQRCode(t *testing.T) {
	svc := newService(t, &fakeAI{})
	out := svc.Handle(context.Background(), "二维码 hello world")
	assert.Contains(t, out, "内容：hello world")
	assert.Contains(t, out, "https://api.qrserver.com/v1/create-qr-code/?data=hello+world&size=200x200")
}

func TestStatsLines(t *testing.T) {
	svc := newService(t, &fakeAI{})
	ctx := context.Background()
	svc.Handle(ctx, "time")
	svc.Handle(ctx, "calc 1+1")
	svc.Handle(ctx, "calc 2+2")
	assert.Equal(t, []string{"calc: 2", "time: 1"}, svc.StatsLines())
}
