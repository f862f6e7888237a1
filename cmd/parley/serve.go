package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/parley/internal/admin"
	"github.com/cory-johannsen/parley/internal/ai"
	"github.com/cory-johannsen/parley/internal/cache"
	"github.com/cory-johannsen/parley/internal/command"
	"github.com/cory-johannsen/parley/internal/config"
	"github.com/cory-johannsen/parley/internal/dialog"
	"github.com/cory-johannsen/parley/internal/dispatch"
	"github.com/cory-johannsen/parley/internal/game"
	"github.com/cory-johannsen/parley/internal/group"
	"github.com/cory-johannsen/parley/internal/knowledge"
	"github.com/cory-johannsen/parley/internal/scripting"
	"github.com/cory-johannsen/parley/internal/server"
	"github.com/cory-johannsen/parley/internal/storage/postgres"
	"github.com/cory-johannsen/parley/internal/tools"
	"github.com/cory-johannsen/parley/internal/transport/telnet"
)

const (
	dbKeepAliveInterval = 30 * time.Second
	dbHealthTimeout     = 5 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot with the development Telnet transport",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

// stores are the durable stores, backed by PostgreSQL when the database is
// enabled and by process memory otherwise.
type stores struct {
	knowledge knowledge.CustomStore
	warnings  admin.WarningStore
	pool      *postgres.Pool
}

func openStores(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (stores, error) {
	if !cfg.Enabled {
		logger.Info("database disabled, using in-memory stores")
		return stores{knowledge: knowledge.NewMemoryStore(), warnings: admin.NewMemoryWarnings()}, nil
	}
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return stores{}, fmt.Errorf("connecting to database: %w", err)
	}
	logger.Info("database connected",
		zap.String("host", cfg.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	return stores{
		knowledge: postgres.NewKnowledgeRepository(pool.DB()),
		warnings:  postgres.NewWarningRepository(pool.DB()),
		pool:      pool,
	}, nil
}

func loadKnowledgeBase(path string) (*knowledge.Base, error) {
	if path == "" {
		return knowledge.DefaultBase(), nil
	}
	return knowledge.LoadBase(path)
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	start := time.Now()
	logger.Info("starting parley",
		zap.String("bot", cfg.Bot.Name),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("model", cfg.AI.Model),
	)

	shared := openCache(cfg.Cache, logger)

	provider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("creating ai provider: %w", err)
	}
	completer := ai.NewCached(provider, shared, cfg.AI.CacheTTL, logger.Named("ai"))
	assistant := ai.NewAssistant(completer, cfg.AI.VisionModel)

	st, err := openStores(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	if st.pool != nil {
		defer st.pool.Close()
	}

	registry := command.NewRegistry(command.FromConfig(cfg.Commands))
	for _, s := range registry.Shadowed() {
		logger.Warn("command alias shadowed",
			zap.String("alias", s.Alias),
			zap.Stringer("kept_by", s.Winner),
			zap.Stringer("dropped_from", s.Shadows),
		)
	}
	hint := func(kind command.Kind) string {
		if c, ok := registry.Lookup(kind); ok && len(c.Aliases) > 0 {
			return cfg.Commands.Prefix + c.Aliases[0]
		}
		return cfg.Commands.Prefix + kind.String()
	}

	sessions := dialog.NewStore(cfg.Session.MaxTurns)
	engine := group.NewEngine(completer, cfg.GroupChat.Interval, cfg.GroupChat.MaxContext, logger.Named("group"))
	games := game.NewService(game.NewRegistry(), assistant, shared, game.Options{
		Questions:   cfg.Games.QuizQuestions,
		SeedWords:   cfg.Games.SeedWords,
		CommandHint: hint(command.KindGame),
	}, logger.Named("game"))

	base, err := loadKnowledgeBase(cfg.Knowledge.ContentPath)
	if err != nil {
		return fmt.Errorf("loading knowledge base: %w", err)
	}
	know := knowledge.NewService(assistant, shared, cfg.Knowledge.MaxResults, logger.Named("knowledge"), st.knowledge, base)
	toolbox := tools.NewService(assistant, shared, scripting.NewCalculator(0), hint(command.KindTool), nil, logger.Named("tools"))

	var (
		dispatcher *dispatch.Dispatcher
		hub        *telnet.Hub
	)
	admins := admin.NewService(admin.Options{
		IDs:            cfg.Admin.IDs,
		PassphraseHash: cfg.Admin.PassphraseHash,
		WarningLimit:   cfg.Admin.WarningLimit,
		CommandHint:    hint(command.KindAdmin),
		Warnings:       st.warnings,
		Knowledge:      st.knowledge,
		Stats: func(ctx context.Context) []string {
			lines := dispatcher.StatsLines()
			cs := shared.Stats()
			lines = append(lines,
				fmt.Sprintf("🗄️ 缓存：%d/%d（命中 %d，未命中 %d，淘汰 %d）", cs.Entries, cs.MaxSize, cs.Hits, cs.Misses, cs.Evictions),
				fmt.Sprintf("🎮 进行中的游戏：%d", games.Registry().Len()),
				fmt.Sprintf("🎉 一起聊群数：%d", len(engine.ActiveRooms())),
			)
			if n, err := st.knowledge.Count(ctx); err == nil {
				lines = append(lines, fmt.Sprintf("🧠 自定义知识：%d", n))
			}
			if toolLines := toolbox.StatsLines(); len(toolLines) > 0 {
				lines = append(lines, "🔧 工具使用：")
				lines = append(lines, toolLines...)
			}
			return lines
		},
		RoomInfo: func(room string) []string {
			lines := []string{}
			if hub != nil {
				lines = append(lines, fmt.Sprintf("👥 在线成员：%d", len(hub.Members(room))))
			}
			if _, counter, ok := engine.Snapshot(room); ok {
				lines = append(lines, fmt.Sprintf("🎉 一起聊：开启（%d/%d）", counter, engine.Interval()))
			} else {
				lines = append(lines, "🎉 一起聊：关闭")
			}
			return lines
		},
		PurgeCache: shared.Clear,
	}, logger.Named("admin"))

	dispatcher = dispatch.New(dispatch.Options{
		BotName:        cfg.Bot.Name,
		Prefix:         cfg.Commands.Prefix,
		HelpKeywords:   cfg.Commands.HelpKeywords,
		Features:       cfg.Features,
		MaxConcurrency: cfg.Dispatch.MaxConcurrency,
	}, dispatch.Deps{
		Commands:  registry,
		Sessions:  sessions,
		Chat:      assistant,
		Shared:    engine,
		Games:     games,
		Knowledge: know,
		Tools:     toolbox,
		Admin:     admins,
	}, logger.Named("dispatch"))

	lifecycle := server.NewLifecycle(logger)
	if cfg.Health.Enabled {
		health := server.NewHealthService(cfg.Health.Addr(), logger.Named("health"))
		lifecycle.Add("health", health)
		lifecycle.ReportTo(health)
	}
	lifecycle.Add("cache-sweeper", cache.NewSweeper(shared, cfg.Cache.SweepInterval, logger.Named("cache")))
	if st.pool != nil {
		lifecycle.Add("db-keepalive", st.pool.KeepAlive(dbKeepAliveInterval, dbHealthTimeout, logger.Named("db")))
	}

	done := make(chan struct{})
	lifecycle.Add("dispatcher", &server.FuncService{
		StartFn: func() error {
			<-done
			return nil
		},
		StopFn: func() {
			close(done)
			dispatcher.Stop()
			logger.Info("dispatcher drained", zap.Int64("processed", dispatcher.Stats().Processed))
		},
	})

	if cfg.Telnet.Enabled {
		hub = telnet.NewHub(cfg.Bot.Name, dispatcher, logger.Named("telnet"))
		lifecycle.Add("telnet", telnet.NewAcceptor(cfg.Telnet, hub, logger.Named("telnet")))
	}

	logger.Info("parley initialized", zap.Duration("startup", time.Since(start)))
	return lifecycle.Run(ctx)
}
