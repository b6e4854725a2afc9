package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/Chative-Voice-Commerce/agent/agents/assistant"
	"github.com/tanpawarit/Chative-Voice-Commerce/agent/agents/orchestrator"
	catalogx "github.com/tanpawarit/Chative-Voice-Commerce/agent/catalog"
	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
	llmx "github.com/tanpawarit/Chative-Voice-Commerce/agent/llm"
	"github.com/tanpawarit/Chative-Voice-Commerce/agent/remote"
	toolx "github.com/tanpawarit/Chative-Voice-Commerce/agent/tool"
	configx "github.com/tanpawarit/Chative-Voice-Commerce/pkg/config"
	_ "github.com/tanpawarit/Chative-Voice-Commerce/pkg/logger/autoload"
	qstashx "github.com/tanpawarit/Chative-Voice-Commerce/pkg/qstash"
)

type AppConfig struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
	ReindexOnStart  bool          `split_words:"true" default:"true"`
	DetailCache     bool          `split_words:"true" default:"false"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("APP")
	llmCfg := configx.MustNew[llmx.Config]("LLM")
	dbCfg := configx.MustNew[catalogx.DatabaseConfig]("DATABASE")
	embedCfg := configx.MustNew[catalogx.EmbeddingConfig]("EMBEDDING")
	searchCfg := configx.MustNew[catalogx.SearchConfig]("SEARCH")
	timeouts := configx.MustNew[toolx.Timeouts]("RPC")
	idleCfg := configx.MustNew[orchestrator.IdleConfig]("IDLE")
	remoteCfg := configx.MustNew[remote.Config]("REMOTE")
	qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")

	db, err := catalogx.OpenDB(*dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open catalog database")
	}
	defer db.Close()

	repo, err := catalogx.NewRepository(db)
	if err != nil {
		log.Fatal().Err(err).Msg("build catalog repository")
	}
	embedder, err := catalogx.NewOpenAIEmbedder(*embedCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build embedder")
	}

	var gatewayOpts []catalogx.GatewayOption
	if appCfg.DetailCache {
		cacheCfg := configx.MustNew[catalogx.UpstashConfig]("UPSTASH_REDIS")
		cache, err := catalogx.NewUpstashCache(*cacheCfg, catalogx.WithKeyPrefix("catalog:"+searchCfg.Namespace))
		if err != nil {
			log.Fatal().Err(err).Msg("build detail cache")
		}
		gatewayOpts = append(gatewayOpts, catalogx.WithCache(cache))
	}
	gateway, err := catalogx.NewGateway(repo, repo, embedder, *searchCfg, gatewayOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("build catalog gateway")
	}
	if appCfg.ReindexOnStart {
		n, err := gateway.Reindex(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("build product index")
		}
		log.Info().Int("products", n).Msg("product index built")
	}

	models, err := assistant.NewModels(ctx, *llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build chat models")
	}
	driver, err := assistant.NewDriver(models, nil, nil, llmCfg.MaxSteps)
	if err != nil {
		log.Fatal().Err(err).Msg("build assistant driver")
	}

	var events contractx.OrderEventSink
	if qstashCfg.Enabled() {
		sink, err := qstashx.NewOrderEvents(qstashx.MustNew(*qstashCfg), qstashCfg.Destination)
		if err != nil {
			log.Fatal().Err(err).Msg("build order event sink")
		}
		events = sink
	}

	factory := orchestrator.NewFactory(
		orchestrator.Deps{Runner: driver, Catalog: gateway, Events: events},
		orchestrator.Config{Timeouts: *timeouts, Threshold: gateway.Threshold(), Idle: *idleCfg},
	)
	hub, err := remote.NewHub(factory, *remoteCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build session hub")
	}

	app := fiber.New(fiber.Config{
		AppName:               "chative-voice-commerce",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"sessions": hub.SessionCount(),
		})
	})
	app.Post("/api/catalog/reindex", func(c *fiber.Ctx) error {
		n, err := gateway.Reindex(c.UserContext())
		if err != nil {
			log.Error().Err(err).Msg("reindex catalog")
			return fiber.NewError(fiber.StatusBadGateway, "reindex failed")
		}
		return c.JSON(fiber.Map{"indexed": n})
	})
	hub.RegisterRoutes(app)

	go func() {
		log.Info().Str("addr", appCfg.Addr).Msg("listening")
		if err := app.Listen(appCfg.Addr); err != nil {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
