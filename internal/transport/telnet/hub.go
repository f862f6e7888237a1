package telnet

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/parley/internal/command"
	"github.com/cory-johannsen/parley/internal/dialog"
	"github.com/cory-johannsen/parley/internal/transport"
)

// MaxMediaBytes bounds a file sent with :image or :video.
const MaxMediaBytes = 10 << 20

// ErrNoRecipient is returned by Reply when nobody is connected to receive it.
var ErrNoRecipient = errors.New("no connected recipient")

// Dispatcher receives inbound messages.
type Dispatcher interface {
	Handle(ctx context.Context, msg transport.Message, r transport.Replier)
}

type client struct {
	name string
	conn *Conn

	mu   sync.Mutex
	room string
}

func (c *client) currentRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *client) setRoom(room string) {
	c.mu.Lock()
	c.room = room
	c.mu.Unlock()
}

// Hub turns Telnet sessions into chat messages and delivers the bot's
// replies. The client's chosen name is both its sender id and display name.
// Hub implements SessionHandler and transport.Replier.
type Hub struct {
	botName    string
	dispatcher Dispatcher
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub creates a Hub.
//
// Precondition: dispatcher and logger must be non-nil.
func NewHub(botName string, dispatcher Dispatcher, logger *zap.Logger) *Hub {
	return &Hub{
		botName:    botName,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
		clients:    make(map[string]*client),
	}
}

// HandleSession implements SessionHandler.
func (h *Hub) HandleSession(ctx context.Context, conn *Conn) error {
	c, err := h.register(conn)
	if err != nil {
		return err
	}
	defer h.unregister(c)

	_ = conn.WriteLine(fmt.Sprintf("你好 %s！直接输入内容与 %s 私聊，:join <群> 进入群聊，:help 查看客户端命令。", c.name, h.botName))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := conn.ReadLine()
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}
		if done := h.handleLine(ctx, c, line); done {
			_ = conn.WriteLine("再见！")
			return nil
		}
	}
}

func (h *Hub) register(conn *Conn) (*client, error) {
	_ = conn.WriteLine(Colorize(Bold, h.botName+" 开发聊天室"))
	for {
		if err := conn.WritePrompt("你的名字："); err != nil {
			return nil, err
		}
		name, err := conn.ReadLine()
		if err != nil {
			return nil, err
		}
		if name == "" || strings.ContainsAny(name, " \t@:") {
			_ = conn.WriteLine("名字不能为空，也不能包含空格、@ 或 :")
			continue
		}
		if strings.EqualFold(name, h.botName) {
			_ = conn.WriteLine("这个名字已被机器人占用")
			continue
		}
		h.mu.Lock()
		if _, taken := h.clients[name]; taken {
			h.mu.Unlock()
			_ = conn.WriteLine("这个名字已被占用")
			continue
		}
		c := &client{name: name, conn: conn}
		h.clients[name] = c
		h.mu.Unlock()
		h.logger.Info("telnet user joined", zap.String("user", name))
		return c, nil
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.name)
	h.mu.Unlock()
	h.logger.Info("telnet user left", zap.String("user", c.name))
}

// handleLine processes one input line and reports whether the client quit.
func (h *Hub) handleLine(ctx context.Context, c *client, line string) bool {
	if !strings.HasPrefix(line, ":") {
		h.sendText(ctx, c, line)
		return false
	}
	verb, arg := command.SplitFirst(line[1:])
	switch strings.ToLower(verb) {
	case "quit":
		return true
	case "join":
		if arg == "" {
			_ = c.conn.WriteLine("用法：:join <群名>")
			break
		}
		c.setRoom(arg)
		_ = c.conn.WriteLine(Colorize(Dim, "已进入群 "+arg+"，成员："+strings.Join(h.members(arg), ", ")))
	case "leave":
		c.setRoom("")
		_ = c.conn.WriteLine(Colorize(Dim, "已回到私聊"))
	case "image":
		h.sendMedia(ctx, c, transport.KindImage, arg)
	case "video":
		h.sendMedia(ctx, c, transport.KindVideo, arg)
	case "who":
		room := c.currentRoom()
		if room == "" {
			_ = c.conn.WriteLine("当前是私聊")
			break
		}
		_ = c.conn.WriteLine("成员：" + strings.Join(h.members(room), ", "))
	default:
		_ = c.conn.WriteLine(":join <群> | :leave | :image <路径> [说明] | :video <路径> | :who | :quit")
	}
	return false
}

func (h *Hub) sendText(ctx context.Context, c *client, text string) {
	msg := h.newMessage(c, transport.KindText)
	msg.Text = text
	msg.MentionsSelf = strings.Contains(text, "@"+h.botName)
	if msg.InRoom() {
		h.broadcast(msg.Room, c.name, fmt.Sprintf("[%s] %s: %s", msg.Room, c.name, text))
	}
	h.dispatcher.Handle(ctx, msg, h)
}

func (h *Hub) sendMedia(ctx context.Context, c *client, kind transport.Kind, arg string) {
	path, caption := command.SplitFirst(arg)
	if path == "" {
		_ = c.conn.WriteLine("用法：:" + kind.String() + " <路径> [说明]")
		return
	}
	data, err := readMedia(path)
	if err != nil {
		_ = c.conn.WriteLine("无法读取文件：" + err.Error())
		return
	}
	mediaKind := dialog.MediaImage
	if kind == transport.KindVideo {
		mediaKind = dialog.MediaVideo
	}
	msg := h.newMessage(c, kind)
	msg.Text = caption
	msg.Media = &dialog.Media{Kind: mediaKind, MIMEType: http.DetectContentType(data), Data: data}
	if msg.InRoom() {
		h.broadcast(msg.Room, c.name, fmt.Sprintf("[%s] %s 发送了%s", msg.Room, c.name, kind))
	}
	h.dispatcher.Handle(ctx, msg, h)
}

func readMedia(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxMediaBytes {
		return nil, fmt.Errorf("%s is larger than %d bytes", path, MaxMediaBytes)
	}
	return os.ReadFile(path)
}

func (h *Hub) newMessage(c *client, kind transport.Kind) transport.Message {
	return transport.Message{
		ID:         uuid.NewString(),
		SenderID:   c.name,
		SenderName: c.name,
		Room:       c.currentRoom(),
		Kind:       kind,
		Timestamp:  h.now(),
	}
}

// Reply implements transport.Replier. Private replies go to the sender; room
// replies go to every client currently in the room.
func (h *Hub) Reply(_ context.Context, msg transport.Message, text, mention string) error {
	speaker := Colorize(Cyan, h.botName)
	if !msg.InRoom() {
		h.mu.RLock()
		c, ok := h.clients[msg.SenderID]
		h.mu.RUnlock()
		if !ok {
			return fmt.Errorf("replying to %s: %w", msg.SenderID, ErrNoRecipient)
		}
		return c.conn.WriteLine(speaker + ": " + text)
	}
	if mention != "" {
		text = Colorize(Yellow, "@"+mention) + " " + text
	}
	if h.broadcast(msg.Room, "", fmt.Sprintf("[%s] %s: %s", msg.Room, speaker, text)) == 0 {
		return fmt.Errorf("replying in room %s: %w", msg.Room, ErrNoRecipient)
	}
	return nil
}

// broadcast writes line to every client in room except skip and returns how
// many clients received it.
func (h *Hub) broadcast(room, skip, line string) int {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for name, c := range h.clients {
		if name != skip && c.currentRoom() == room {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if err := c.conn.WriteLine(line); err != nil {
			h.logger.Debug("room write failed", zap.String("user", c.name), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

func (h *Hub) members(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []string
	for name, c := range h.clients {
		if c.currentRoom() == room {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Rooms returns the names of rooms with at least one member, sorted.
func (h *Hub) Rooms() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]bool)
	for _, c := range h.clients {
		if r := c.currentRoom(); r != "" {
			seen[r] = true
		}
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Members returns the sorted member names of room.
func (h *Hub) Members(room string) []string {
	return h.members(room)
}
