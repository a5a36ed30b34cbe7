package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/venturist-ai/venturist/config"
	"github.com/venturist-ai/venturist/internal/agent"
	"github.com/venturist-ai/venturist/internal/index"
	"github.com/venturist-ai/venturist/internal/llm"
	"github.com/venturist-ai/venturist/internal/scraper"
	"github.com/venturist-ai/venturist/internal/search"
	"github.com/venturist-ai/venturist/internal/store"
)

// Run wires the whole backend together and serves HTTP until it fails.
func Run(cfg *appconfig.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	origins := cfg.General.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	dsn, err := cfg.Databases.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}

	// Full-text trend index, rebuilt from Postgres at boot.
	trendIdx, err := search.NewTrendIndex()
	if err != nil {
		return err
	}
	if err := reindexTrends(ctx, st, trendIdx); err != nil {
		return fmt.Errorf("rebuild trend index: %w", err)
	}

	var vecIdx *index.Client
	if cfg.Index.Enabled {
		vecIdx, err = index.New(cfg.Index, log.New(log.Writer(), "[INDEX] ", log.LstdFlags))
		if err != nil {
			return err
		}
		if err := vecIdx.EnsureCollection(ctx); err != nil {
			return err
		}
	}

	var reddit *scraper.RedditScraper
	if cfg.Scrapers.Reddit.Enabled {
		reddit = scraper.NewRedditScraper(cfg.Scrapers.Reddit, log.New(log.Writer(), "[SCRAPER] ", log.LstdFlags))
	}

	runner := agent.NewRunner(&agent.Deps{
		Store:          st,
		Provider:       provider,
		Routing:        cfg.LLM.Routing,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Reddit:         reddit,
		Search:         trendIdx,
		Index:          vecIdx,
		Logger:         log.New(log.Writer(), "[RUNNER] ", log.LstdFlags),
	})

	secret := cfg.General.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (general.jwt_secret)")
	}

	var rdb *redis.Client
	if cfg.Databases.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Databases.Redis.Addr(),
			Password: cfg.Databases.Redis.Password,
			DB:       cfg.Databases.Redis.DB,
		})
	}

	if cfg.Scheduler.Enabled {
		sched := NewScheduler(st, runner, rdb, cfg.Scheduler.Jobs, nil)
		sched.Start()
		defer close(sched.Stop)
	}

	api := e.Group("/api")
	auth := &AuthHandler{Store: st, Secret: []byte(secret)}
	auth.Register(api.Group("/auth"))

	(&AgentsHandler{Runner: runner, Store: st}).Register(api.Group("/agents"), []byte(secret))
	(&TrendsHandler{Store: st, Search: trendIdx}).Register(api.Group("/trends"), []byte(secret))
	(&IdeasHandler{Store: st, Index: vecIdx, Provider: provider, EmbeddingModel: cfg.LLM.EmbeddingModel}).Register(api.Group("/ideas"), []byte(secret))

	return e.Start(addr)
}

// reindexTrends loads every trend into the in-memory search index.
func reindexTrends(ctx context.Context, st *store.Store, idx *search.TrendIndex) error {
	const page = 500
	for skip := 0; ; skip += page {
		trends, total, err := st.ListTrends(ctx, store.TrendFilter{Skip: skip, Limit: page})
		if err != nil {
			return err
		}
		if err := idx.AddAll(trends); err != nil {
			return err
		}
		if skip+page >= total || len(trends) == 0 {
			return nil
		}
	}
}
