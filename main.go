package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ManagementMO/dreamwell-assessment/agent/enrichment"
	"github.com/ManagementMO/dreamwell-assessment/agent/orchestrator"
	"github.com/ManagementMO/dreamwell-assessment/agent/session"
	"github.com/ManagementMO/dreamwell-assessment/agent/store"
	"github.com/ManagementMO/dreamwell-assessment/agent/tools"
	configx "github.com/ManagementMO/dreamwell-assessment/pkg/config"
	llmx "github.com/ManagementMO/dreamwell-assessment/pkg/llm"
	_ "github.com/ManagementMO/dreamwell-assessment/pkg/logger/autoload"
	"github.com/ManagementMO/dreamwell-assessment/server"
)

const version = "1.0.0"

type AppConfig struct {
	Port            int           `envconfig:"PORT" default:"8080"`
	DatabaseURL     string        `envconfig:"DATABASE_URL"`
	YouTubeAPIKey   string        `envconfig:"YOUTUBE_API_KEY"`
	MaxIterations   int           `envconfig:"MAX_ITERATIONS" default:"5"`
	ToolTimeout     time.Duration `envconfig:"TOOL_TIMEOUT" default:"45s"`
	RunTimeout      time.Duration `envconfig:"RUN_TIMEOUT" default:"45s"`
	EnrichmentTTL   time.Duration `envconfig:"ENRICHMENT_TTL" default:"24h"`
	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"10s"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("")

	threads, brands, cleanup := buildStores(ctx, appCfg)
	defer cleanup()

	gateway := buildGateway(ctx, appCfg)

	toolServer := tools.New(threads, brands, gateway)
	sess, err := session.Open(ctx, toolServer.MCPServer(),
		session.WithCallTimeout(appCfg.ToolTimeout),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("open execution session")
	}
	defer func() { _ = sess.Close() }()

	llmCfg := configx.MustNew[llmx.Config]("OPENAI")
	model, err := llmx.NewClient(*llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create llm client")
	}

	orch, err := orchestrator.New(sess, model,
		orchestrator.WithMaxIterations(appCfg.MaxIterations),
		orchestrator.WithRunTimeout(appCfg.RunTimeout),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("create orchestrator")
	}

	srv := server.New(server.Config{
		Threads:   threads,
		Brands:    brands,
		Generator: orch,
		Port:      appCfg.Port,
		Version:   version,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// buildStores selects the thread/brand collaborator: Postgres when
// DATABASE_URL is set, embedded fixtures otherwise.
func buildStores(ctx context.Context, cfg *AppConfig) (store.ThreadStore, store.BrandStore, func()) {
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect postgres")
		}
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("migrate postgres schema")
		}
		if err := pg.SeedFromFixtures(ctx); err != nil {
			log.Fatal().Err(err).Msg("seed postgres fixtures")
		}
		log.Info().Msg("using postgres store")
		return pg, pg, func() { _ = pg.Close() }
	}

	fixtures, err := store.NewFixtureStore()
	if err != nil {
		log.Fatal().Err(err).Msg("load fixture store")
	}
	log.Info().Msg("using embedded fixture store")
	return fixtures, fixtures, func() {}
}

// buildGateway wires the enrichment gateway, attaching the live YouTube
// provider only when a credential is configured.
func buildGateway(ctx context.Context, cfg *AppConfig) *enrichment.Gateway {
	fallback, err := enrichment.LoadFallbackDataset()
	if err != nil {
		log.Fatal().Err(err).Msg("load fallback dataset")
	}

	opts := []enrichment.GatewayOption{
		enrichment.WithProviderTTL(cfg.EnrichmentTTL),
	}
	if cfg.YouTubeAPIKey != "" {
		provider, err := enrichment.NewYouTubeProvider(ctx, cfg.YouTubeAPIKey, cfg.ProviderTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("create youtube provider")
		}
		opts = append(opts, enrichment.WithProvider(provider))
		log.Info().Msg("live channel provider enabled")
	} else {
		log.Info().Msg("no provider credential, enrichment will use the local dataset")
	}

	return enrichment.NewGateway(fallback, opts...)
}
