package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNeedsDeepReasoning(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"你好", false},
		{"Hello", false},
		{"谢谢", false},
		{"好的", false},
		{"今天天气怎么样", false},
		{"为什么天空是蓝色的", true},
		{"什么是量子纠缠", true},
		{"please explain closures", true},
		{"ok", false},
		{strings.Repeat("长", 31), true},
		{strings.Repeat("长", 30), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NeedsDeepReasoning(tc.text), "text %q", tc.text)
	}
}
