// Package tools implements the utility commands: weather, translation,
// arithmetic, time, exchange rates, short links and QR codes.
package tools

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/parley/internal/cache"
	"github.com/cory-johannsen/parley/internal/command"
	"github.com/cory-johannsen/parley/internal/scripting"
)

// Tool names used for dispatch and statistics.
const (
	Weather   = "weather"
	Translate = "translate"
	Calc      = "calc"
	Time      = "time"
	Rate      = "rate"
	Short     = "short"
	QRCode    = "qrcode"
)

var aliases = map[string]string{
	"weather": Weather, "天气": Weather,
	"translate": Translate, "翻译": Translate,
	"calc": Calc, "计算": Calc,
	"time": Time, "时间": Time,
	"rate": Rate, "汇率": Rate,
	"short": Short, "短链": Short,
	"qrcode": QRCode, "二维码": QRCode,
}

const (
	weatherTTL   = 30 * time.Minute
	rateTTL      = 30 * time.Minute
	translateTTL = time.Hour

	defaultCity     = "北京"
	defaultTimezone = "Asia/Shanghai"
	shortLinkHost   = "https://short.ly/"
	qrEndpoint      = "https://api.qrserver.com/v1/create-qr-code/"
	stampLayout     = "2006-01-02 15:04"
)

// AI is the subset of the assistant the tools use.
type AI interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	Translate(ctx context.Context, text, target string) (string, error)
}

// ResultCache stores finished tool replies.
type ResultCache interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration)
}

// Service runs tool commands and counts successful uses per tool.
type Service struct {
	ai     AI
	cache  ResultCache
	calc   *scripting.Calculator
	hint   string
	now    func() time.Time
	logger *zap.Logger

	mu     sync.Mutex
	counts map[string]int64
}

// NewService creates a Service. hint is how users invoke the tool command,
// e.g. "/工具"; now may be nil for time.Now.
//
// Precondition: ai, results, calc and logger must be non-nil.
func NewService(ai AI, results ResultCache, calc *scripting.Calculator, hint string, now func() time.Time, logger *zap.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		ai:     ai,
		cache:  results,
		calc:   calc,
		hint:   hint,
		now:    now,
		logger: logger,
		counts: make(map[string]int64),
	}
}

// Handle runs the tool named by the first word of args. Tool failures are
// logged and answered with a short apology rather than returned.
func (s *Service) Handle(ctx context.Context, args string) string {
	name, rest := command.SplitFirst(args)
	tool, ok := aliases[command.Normalize(name)]
	if !ok {
		return s.Menu()
	}

	var (
		reply string
		err   error
	)
	switch tool {
	case Weather:
		reply, err = s.weather(ctx, rest)
	case Translate:
		reply, err = s.translate(ctx, rest)
	case Calc:
		reply, err = s.calculate(ctx, rest)
	case Time:
		reply, err = s.clock(rest)
	case Rate:
		reply, err = s.rate(ctx, rest)
	case Short:
		reply, err = s.shorten(rest)
	case QRCode:
		reply, err = s.qrcode(rest)
	}

	var usage usageError
	switch {
	case errors.As(err, &usage):
		return string(usage)
	case err != nil:
		s.logger.Warn("tool failed", zap.String("tool", tool), zap.Error(err))
		return failureReplies[tool]
	}
	s.count(tool)
	return reply
}

// Menu lists the available tools.
func (s *Service) Menu() string {
	h := s.hint
	return "🛠️ 工具菜单\n\n" +
		h + " weather [城市] - 天气查询\n" +
		h + " translate <文本> - 中英互译\n" +
		h + " calc <表达式> - 计算器\n" +
		h + " time [时区] - 当前时间\n" +
		h + " rate [源币种] [目标币种] - 汇率查询\n" +
		h + " short <网址> - 短链生成\n" +
		h + " qrcode <内容> - 二维码生成"
}

// Stats returns the per-tool success counts and their total.
func (s *Service) Stats() (map[string]int64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.counts))
	var total int64
	for k, v := range s.counts {
		out[k] = v
		total += v
	}
	return out, total
}

// StatsLines renders Stats as sorted "name: n" lines.
func (s *Service) StatsLines() []string {
	counts, _ := s.Stats()
	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	sort.Strings(names)
	lines := make([]string, len(names))
	for i, n := range names {
		lines[i] = fmt.Sprintf("%s: %d", n, counts[n])
	}
	return lines
}

func (s *Service) count(tool string) {
	s.mu.Lock()
	s.counts[tool]++
	s.mu.Unlock()
}

// usageError is a reply for malformed input. It is shown verbatim and not logged.
type usageError string

func (e usageError) Error() string { return string(e) }

var failureReplies = map[string]string{
	Weather:   "❌ 天气查询失败，请稍后重试",
	Translate: "❌ 翻译失败，请稍后重试",
	Calc:      "❌ 计算失败，请检查表达式格式",
	Time:      "❌ 时间查询失败",
	Rate:      "❌ 汇率查询失败，请稍后重试",
	Short:     "❌ 短链生成失败",
	QRCode:    "❌ 二维码生成失败",
}

func (s *Service) cached(key string, ttl time.Duration, produce func() (string, error)) (string, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}
	v, err := produce()
	if err != nil {
		return "", err
	}
	s.cache.Set(key, v, ttl)
	return v, nil
}

func (s *Service) weather(ctx context.Context, city string) (string, error) {
	city, _ = command.SplitFirst(city)
	if city == "" {
		city = defaultCity
	}
	return s.cached(cache.Key("weather", city), weatherTTL, func() (string, error) {
		info, err := s.ai.Generate(ctx, "你是天气播报员，回答简洁清晰。",
			fmt.Sprintf("请生成%s的当前天气信息，包括温度、天气状况、湿度、风力等，格式要简洁清晰。", city))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("🌤️ %s天气\n\n%s\n\n📅 查询时间：%s", city, info, s.now().Format(stampLayout)), nil
	})
}

func (s *Service) translate(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", usageError("❓ 请提供要翻译的文本\n例如：" + s.hint + " translate Hello World")
	}
	return s.cached(cache.Key("translation", text), translateTTL, func() (string, error) {
		out, err := s.ai.Translate(ctx, text, TargetLanguage(text))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("🌐 翻译结果\n\n原文：%s\n译文：%s", text, out), nil
	})
}

// TargetLanguage picks English for text containing Han characters and
// Chinese otherwise.
func TargetLanguage(text string) string {
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			return "英文"
		}
	}
	return "中文"
}

func (s *Service) calculate(ctx context.Context, expr string) (string, error) {
	if expr == "" {
		return "", usageError("❓ 请提供要计算的表达式\n例如：" + s.hint + " calc 2+3*4")
	}
	v, err := s.calc.Eval(ctx, expr)
	switch {
	case errors.Is(err, scripting.ErrNotFinite):
		return "", usageError("❌ 计算结果无效（是否除以了零？）")
	case errors.Is(err, scripting.ErrInvalidExpression):
		return "", usageError("❌ 无效的数学表达式")
	case err != nil:
		return "", err
	}
	return fmt.Sprintf("🧮 计算结果\n\n%s = %s", strings.TrimSpace(expr), FormatNumber(v)), nil
}

// FormatNumber renders v with at most 12 significant digits.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', 12, 64)
}

var weekdays = [...]string{"星期日", "星期一", "星期二", "星期三", "星期四", "星期五", "星期六"}

func (s *Service) clock(tz string) (string, error) {
	tz, _ = command.SplitFirst(tz)
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", usageError("❌ 未知时区：" + tz)
	}
	now := s.now().In(loc)
	daysInYear := time.Date(now.Year(), 12, 31, 0, 0, 0, 0, loc).YearDay()
	return strings.Join([]string{
		"🕐 当前时间",
		"",
		"📅 日期：" + now.Format("2006年01月02日"),
		"⏰ 时间：" + now.Format("15:04:05"),
		"📆 星期：" + weekdays[now.Weekday()],
		"🌍 时区：" + tz,
		"",
		fmt.Sprintf("📊 今年第%d天", now.YearDay()),
		fmt.Sprintf("📈 本年进度：%.1f%%", float64(now.YearDay())/float64(daysInYear)*100),
	}, "\n"), nil
}

func (s *Service) rate(ctx context.Context, args string) (string, error) {
	from, rest := command.SplitFirst(args)
	to, _ := command.SplitFirst(rest)
	from = strings.ToUpper(orDefault(from, "USD"))
	to = strings.ToUpper(orDefault(to, "CNY"))
	return s.cached(cache.Key("exchange", from, to), rateTTL, func() (string, error) {
		info, err := s.ai.Generate(ctx, "你是金融助手，回答简洁清晰。",
			fmt.Sprintf("请提供%s到%s的当前汇率信息，包括汇率数值和简要分析。", from, to))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("💱 汇率查询\n\n%s → %s\n\n%s\n\n📅 查询时间：%s", from, to, info, s.now().Format(stampLayout)), nil
	})
}

func (s *Service) shorten(raw string) (string, error) {
	raw, _ = command.SplitFirst(raw)
	if raw == "" {
		return "", usageError("❓ 请提供要缩短的URL\n例如：" + s.hint + " short https://www.example.com")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", usageError("❌ 请提供有效的URL（需要包含http://或https://）")
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return strings.Join([]string{
		"🔗 短链生成成功",
		"",
		"原链接：" + raw,
		"短链接：" + shortLinkHost + id,
		"",
		"💡 注意：这是演示短链，实际使用请接入专业服务",
	}, "\n"), nil
}

func (s *Service) qrcode(text string) (string, error) {
	if text == "" {
		return "", usageError("❓ 请提供要生成二维码的内容\n例如：" + s.hint + " qrcode Hello World")
	}
	q := url.Values{"size": {"200x200"}, "data": {text}}
	return strings.Join([]string{
		"📱 二维码生成成功",
		"",
		"内容：" + text,
		"二维码：" + qrEndpoint + "?" + q.Encode(),
		"",
		"💡 扫描上方链接查看二维码",
	}, "\n"), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
