package dispatch

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/parley/internal/command"
	"github.com/cory-johannsen/parley/internal/config"
)

// HelpInput is what the help text is generated from.
type HelpInput struct {
	BotName  string
	Prefix   string
	Commands *command.Registry
	Features config.FeaturesConfig
	// MaxTurns is the per-user transcript cap.
	MaxTurns int
}

type helpSection struct {
	title string
	kinds []command.Kind
	on    bool
}

// HelpText lists every enabled command with its reachable aliases.
func HelpText(in HelpInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🤖 %s 使用指南\n\n", in.BotName)

	sections := []helpSection{
		{title: "📝 基础命令：", kinds: []command.Kind{command.KindHelp, command.KindClear}, on: true},
		{title: "🧠 知识功能：", kinds: []command.Kind{command.KindKnowledge}, on: in.Features.Knowledge},
		{title: "🎮 娱乐功能：", kinds: []command.Kind{command.KindGame}, on: in.Features.Entertainment},
		{title: "🔧 实用工具：", kinds: []command.Kind{command.KindTool}, on: in.Features.Tools},
		{title: "🎉 一起聊功能（仅群聊）：", kinds: []command.Kind{command.KindStartShared, command.KindStopShared}, on: in.Features.GroupChat},
		{title: "🔐 管理功能：", kinds: []command.Kind{command.KindAdmin}, on: in.Features.Admin},
	}
	for _, s := range sections {
		if !s.on {
			continue
		}
		b.WriteString(s.title + "\n")
		for _, k := range s.kinds {
			cmd, ok := in.Commands.Lookup(k)
			if !ok || len(cmd.Aliases) == 0 {
				continue
			}
			names := make([]string, len(cmd.Aliases))
			for i, a := range cmd.Aliases {
				names[i] = in.Prefix + a
			}
			fmt.Fprintf(&b, "%s - %s\n", strings.Join(names, " / "), cmd.Help)
		}
		b.WriteString("\n")
	}

	b.WriteString("💬 直接对话：\n直接发送消息即可与我对话\n群聊中@我或包含我的名字即可\n\n")
	b.WriteString("🔄 上下文管理：\n")
	fmt.Fprintf(&b, "机器人会记住最近%d条对话消息\n使用清除命令可重新开始对话\n", in.MaxTurns)
	if in.Features.GroupChat {
		b.WriteString("一起聊模式下所有用户共享上下文\n")
	}
	b.WriteString("\n❓ 如有问题，请联系管理员")
	return b.String()
}
