package ai

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// deepReasoningLength is the rune length above which a message is treated as complex.
const deepReasoningLength = 30

var simplePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(你好|hi|hello|嗨|早上好|晚上好|再见|拜拜)$`),
	regexp.MustCompile(`^(谢谢|感谢|不客气|没关系)$`),
	regexp.MustCompile(`^(是的|好的|不是|没有|可以|不可以)$`),
	regexp.MustCompile(`^(哈哈|呵呵|笑死|好笑)$`),
	regexp.MustCompile(`^.*(天气|怎么样)$`),
}

var analyticalKeywords = []string{
	"分析", "比较", "评价", "解释", "原理", "机制", "算法",
	"策略", "方案", "设计", "架构", "优化", "问题解决",
	"为什么", "如何", "区别", "联系", "影响", "后果",
	"建议", "推荐", "选择", "判断",
	"什么是", "什么叫", "是什么", "介绍一下", "告诉我",
	"什么意思", "定义", "概念",
	"analyze", "compare", "explain", "why", "how does", "what is", "difference",
}

// NeedsDeepReasoning reports whether text warrants extended reasoning. Short
// greetings and acknowledgements never do; analytical or definitional
// questions and long messages do.
func NeedsDeepReasoning(text string) bool {
	text = strings.TrimSpace(text)
	for _, p := range simplePatterns {
		if p.MatchString(text) {
			return false
		}
	}
	lower := strings.ToLower(text)
	for _, kw := range analyticalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return utf8.RuneCountInString(text) > deepReasoningLength
}
