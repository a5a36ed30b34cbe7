package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/venturist-ai/venturist/config"
	"github.com/venturist-ai/venturist/internal/agent"
	"github.com/venturist-ai/venturist/internal/index"
	"github.com/venturist-ai/venturist/internal/llm"
	"github.com/venturist-ai/venturist/internal/scraper"
	"github.com/venturist-ai/venturist/internal/search"
	"github.com/venturist-ai/venturist/internal/store"
)

func agentCMD() *cobra.Command {
	agentRoot := &cobra.Command{
		Use:   "agent",
		Short: "Run agents from the command line",
	}

	var cfgPath, paramsJSON string
	run := &cobra.Command{
		Use:   "run <agent-type>",
		Short: "Execute one agent invocation and print its ledger record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			ctx := context.Background()

			params := map[string]interface{}{}
			if paramsJSON != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
					return fmt.Errorf("invalid --params: %w", err)
				}
			}

			runner, cleanup, err := buildRunner(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			exec, runErr := runner.Run(ctx, args[0], params)
			if exec.ID != "" {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				_ = enc.Encode(exec)
			}
			return runErr
		},
	}
	run.Flags().StringVar(&paramsJSON, "params", "", "invocation params as a JSON object")
	run.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	agentRoot.AddCommand(run)
	return agentRoot
}

func buildRunner(ctx context.Context, cfg *config.Config) (*agent.Runner, func(), error) {
	dsn, err := cfg.Databases.Postgres.DSN()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){func() { _ = st.DB.Close() }}
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	trendIdx, err := search.NewTrendIndex()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, func() { _ = trendIdx.Close() })

	var vecIdx *index.Client
	if cfg.Index.Enabled {
		vecIdx, err = index.New(cfg.Index, log.New(log.Writer(), "[INDEX] ", log.LstdFlags))
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = vecIdx.Close() })
		if err := vecIdx.EnsureCollection(ctx); err != nil {
			cleanup()
			return nil, nil, err
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
	return runner, cleanup, nil
}
