package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/venturist-ai/venturist/config"
	"github.com/venturist-ai/venturist/internal/githubx"
	"github.com/venturist-ai/venturist/internal/index"
	"github.com/venturist-ai/venturist/internal/llm"
	"github.com/venturist-ai/venturist/internal/review"
)

func indexCMD() *cobra.Command {
	var cfgPath, ref string
	cmd := &cobra.Command{
		Use:   "index <owner/repo>",
		Short: "Embed a repository's source files into the vector index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			ctx := context.Background()

			if !cfg.Index.Enabled {
				return fmt.Errorf("vector index disabled (index.enabled)")
			}
			if cfg.LLM.EmbeddingModel == "" {
				return fmt.Errorf("llm.embedding_model required for indexing")
			}

			provider, err := llm.NewProvider(cfg.LLM)
			if err != nil {
				return err
			}
			logger := log.New(log.Writer(), "[INDEXER] ", log.LstdFlags)
			vecIdx, err := index.New(cfg.Index, logger)
			if err != nil {
				return err
			}
			defer func() { _ = vecIdx.Close() }()

			gh := githubx.New(ctx, cfg.GitHub.Token)
			indexer := review.NewCodeIndexer(gh, provider, vecIdx, cfg.LLM.EmbeddingModel, logger)

			n, err := indexer.IndexRepository(ctx, args[0], ref)
			if err != nil {
				return err
			}
			fmt.Printf("indexed %d chunks from %s\n", n, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&ref, "ref", "", "git ref (default branch if empty)")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	return cmd
}
