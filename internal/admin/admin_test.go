package admin_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/parley/internal/admin"
	"github.com/cory-johannsen/parley/internal/knowledge"
)

var fixedNow = time.Date(2024, 5, 4, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, mutate func(*admin.Options)) (*admin.Service, *knowledge.MemoryStore) {
	store := knowledge.NewMemoryStore()
	opts := admin.Options{
		IDs:         []string{"boss"},
		CommandHint: "/管理",
		Warnings:    admin.NewMemoryWarnings(),
		Knowledge:   store,
		Now:         func() time.Time { return fixedNow },
	}
	if mutate != nil {
		mutate(&opts)
	}
	return admin.NewService(opts, zaptest.NewLogger(t)), store
}

func run(t *testing.T, svc *admin.Service, sender, room, args string) string {
	t.Helper()
	out, err := svc.Handle(context.Background(), admin.Request{SenderID: sender, Room: room, Args: args})
	require.NoError(t, err)
	return out
}

func TestNonAdminRefused(t *testing.T) {
	svc, _ := newService(t, nil)
	assert.ErrorIs(t, svc.Authorize("stranger"), admin.ErrNotAuthorized)
	assert.Contains(t, run(t, svc, "stranger", "", "stats"), "只有管理员")
	assert.NoError(t, svc.Authorize("boss"))
}

func TestAuthElevatesWithPassphrase(t *testing.T) {
	hash, err := admin.HashPassphrase("open sesame")
	require.NoError(t, err)
	svc, _ := newService(t, func(o *admin.Options) { o.PassphraseHash = hash })

	assert.Equal(t, "❌ 口令错误", run(t, svc, "u1", "", "auth wrong"))
	assert.False(t, svc.IsAdmin("u1"))
	assert.Equal(t, "✅ 已获得管理员权限", run(t, svc, "u1", "", "认证 open sesame"))
	assert.True(t, svc.IsAdmin("u1"))
	assert.False(t, svc.IsAdmin("u2"))
}

func TestAuthWithoutConfiguredHash(t *testing.T) {
	svc, _ := newService(t, nil)
	assert.Equal(t, "❌ 未配置管理口令", run(t, svc, "u1", "", "auth anything"))
}

func TestMenuForUnknownSubcommand(t *testing.T) {
	svc, _ := newService(t, nil)
	out := run(t, svc, "boss", "", "")
	assert.Contains(t, out, "管理命令")
	assert.Contains(t, out, "/管理 warn")
}

func TestStats(t *testing.T) {
	svc, _ := newService(t, func(o *admin.Options) {
		o.Stats = func(context.Context) []string { return []string{"cache: 3"} }
	})
	out := run(t, svc, "boss", "", "stats")
	assert.Contains(t, out, "运行统计")
	assert.Contains(t, out, "cache: 3")
	assert.Contains(t, out, "2024-05-04 12:00")
}

func TestRoomOnlyCommands(t *testing.T) {
	svc, _ := newService(t, nil)
	for _, args := range []string{"info", "warn bob", "warnings bob", "pardon bob"} {
		assert.Contains(t, run(t, svc, "boss", "", args), "只能在群聊中使用", args)
	}
}

func TestInfo(t *testing.T) {
	svc, _ := newService(t, func(o *admin.Options) {
		o.RoomInfo = func(room string) []string { return []string{"一起聊：开启"} }
	})
	out := run(t, svc, "boss", "room-1", "info")
	assert.Contains(t, out, "群ID：room-1")
	assert.Contains(t, out, "一起聊：开启")
}

func TestWarnUntilLimitThenPardon(t *testing.T) {
	svc, _ := newService(t, func(o *admin.Options) { o.WarningLimit = 2 })
	out := run(t, svc, "boss", "r", "warn bob 刷屏")
	assert.Contains(t, out, "@bob 警告：刷屏")
	assert.Contains(t, out, "1/2")
	assert.Contains(t, out, "剩余机会：1次")

	out = run(t, svc, "boss", "r", "warn @bob")
	assert.Contains(t, out, "已达上限（2/2）")

	assert.Contains(t, run(t, svc, "boss", "r", "warnings bob"), "2/2")
	assert.Contains(t, run(t, svc, "boss", "other", "warnings bob"), "0/2")

	assert.Equal(t, "✅ 已清除 @bob 的 2 次警告", run(t, svc, "boss", "r", "pardon bob"))
	assert.Equal(t, "@bob 没有警告记录", run(t, svc, "boss", "r", "pardon bob"))
}

func TestWarnDefaultReasonAndMissingName(t *testing.T) {
	svc, _ := newService(t, nil)
	assert.Contains(t, run(t, svc, "boss", "r", "warn alice"), "违反群规")
	assert.Contains(t, run(t, svc, "boss", "r", "warn"), "请指定要警告的成员")
}

func TestLearnAndForget(t *testing.T) {
	svc, store := newService(t, nil)
	assert.Equal(t, "✅ 已学习：parley", run(t, svc, "boss", "", "learn parley 一个聊天机器人"))
	got, err := store.Search(context.Background(), "parley 是什么", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "一个聊天机器人", got[0].Content)

	assert.Contains(t, run(t, svc, "boss", "", "learn parley"), "用法")
	assert.Equal(t, "✅ 已删除：parley", run(t, svc, "boss", "", "forget parley"))
	assert.Contains(t, run(t, svc, "boss", "", "forget parley"), "没有找到")
}

func TestLearnWithoutKnowledgeStore(t *testing.T) {
	svc, _ := newService(t, func(o *admin.Options) { o.Knowledge = nil })
	assert.Equal(t, "❌ 知识库未启用", run(t, svc, "boss", "", "learn a b"))
}

func TestCachePurge(t *testing.T) {
	purged := 0
	svc, _ := newService(t, func(o *admin.Options) {
		o.PurgeCache = func() int {
			purged++
			return 7
		}
	})
	assert.Equal(t, "🧹 已清空缓存（7 条）", run(t, svc, "boss", "", "cache purge"))
	assert.Equal(t, 1, purged)
	assert.Contains(t, run(t, svc, "boss", "", "cache"), "用法")
}

func TestCheckPassphrase(t *testing.T) {
	hash, err := admin.HashPassphrase("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)
	assert.True(t, admin.CheckPassphrase("secret123", hash))
	assert.False(t, admin.CheckPassphrase("wrong", hash))
}

func TestPropertyWarningCountMatchesAdds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		w := admin.NewMemoryWarnings()
		ctx := context.Background()
		adds := rapid.IntRange(0, 10).Draw(t, "adds")
		for i := 0; i < adds; i++ {
			n, _ := w.Add(ctx, admin.Warning{Room: "r", User: "@bob"})
			if n != i+1 {
				t.Fatalf("add %d returned %d", i, n)
			}
		}
		if n, _ := w.Count(ctx, "r", "bob"); n != adds {
			t.Fatalf("count %d, want %d", n, adds)
		}
		if n, _ := w.Pardon(ctx, "r", "bob"); n != adds {
			t.Fatalf("pardon %d, want %d", n, adds)
		}
	})
}
