// Package command defines the bot's logical commands, the alias registry that
// resolves user-typed tokens to them, and the prefix command parser.
package command

import "github.com/cory-johannsen/parley/internal/config"

// Kind identifies a logical command.
type Kind int

// Kinds are declared in routing priority order.
const (
	KindUnknown Kind = iota
	KindHelp
	KindClear
	KindStartShared
	KindStopShared
	KindKnowledge
	KindGame
	KindTool
	KindAdmin
)

// String returns the canonical command name.
func (k Kind) String() string {
	switch k {
	case KindHelp:
		return "help"
	case KindClear:
		return "clear"
	case KindStartShared:
		return "group-chat"
	case KindStopShared:
		return "stop-group-chat"
	case KindKnowledge:
		return "knowledge"
	case KindGame:
		return "game"
	case KindTool:
		return "tool"
	case KindAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Command is one logical command with every alias that invokes it.
type Command struct {
	Kind    Kind
	Aliases []string
	// Help is the one-line usage shown in the help text.
	Help string
}

// FromConfig builds the command list in routing priority order from cfg.
func FromConfig(cfg config.CommandsConfig) []Command {
	return []Command{
		{Kind: KindHelp, Aliases: cfg.Help, Help: "显示帮助信息"},
		{Kind: KindClear, Aliases: cfg.Clear, Help: "清除对话上下文"},
		{Kind: KindStartShared, Aliases: cfg.GroupChat, Help: "开启群聊共享上下文模式"},
		{Kind: KindStopShared, Aliases: cfg.StopGroupChat, Help: "关闭共享上下文模式"},
		{Kind: KindKnowledge, Aliases: cfg.Knowledge, Help: "知识问答"},
		{Kind: KindGame, Aliases: cfg.Game, Help: "游戏与娱乐"},
		{Kind: KindTool, Aliases: cfg.Tool, Help: "实用工具"},
		{Kind: KindAdmin, Aliases: cfg.Admin, Help: "管理命令"},
	}
}
