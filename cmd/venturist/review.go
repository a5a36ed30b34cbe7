package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/venturist-ai/venturist/config"
	"github.com/venturist-ai/venturist/internal/githubx"
	"github.com/venturist-ai/venturist/internal/index"
	"github.com/venturist-ai/venturist/internal/llm"
	"github.com/venturist-ai/venturist/internal/review"
)

func reviewCMD() *cobra.Command {
	var cfgPath string
	var post bool
	cmd := &cobra.Command{
		Use:   "review <owner/repo> <pr-number>",
		Short: "Run an LLM review of a pull request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			ctx := context.Background()

			number, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("pr number must be an integer, got %q", args[1])
			}

			reviewer, err := buildReviewer(ctx, cfg)
			if err != nil {
				return err
			}
			rev, err := reviewer.ReviewPullRequest(ctx, args[0], number, post)
			if err != nil {
				return err
			}
			return printJSON(rev)
		},
	}
	cmd.Flags().BoolVar(&post, "post", false, "post the review as a PR comment")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	var task, ref string
	var paths []string
	generate := &cobra.Command{
		Use:   "generate <owner/repo>",
		Short: "Generate code for a task against a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			ctx := context.Background()

			reviewer, err := buildReviewer(ctx, cfg)
			if err != nil {
				return err
			}
			gen, err := reviewer.GenerateCode(ctx, args[0], task, paths, ref)
			if err != nil {
				return err
			}
			return printJSON(gen)
		},
	}
	generate.Flags().StringVar(&task, "task", "", "task description (required)")
	generate.Flags().StringArrayVar(&paths, "path", nil, "repo file to include as context (repeatable)")
	generate.Flags().StringVar(&ref, "ref", "", "git ref (default branch if empty)")
	_ = generate.MarkFlagRequired("task")

	cmd.AddCommand(generate)
	return cmd
}

func buildReviewer(ctx context.Context, cfg *config.Config) (*review.Reviewer, error) {
	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}
	gh := githubx.New(ctx, cfg.GitHub.Token)
	model := cfg.LLM.Routing.Model("code_review")
	reviewer := review.NewReviewer(gh, provider, model, log.New(log.Writer(), "[REVIEW] ", log.LstdFlags))

	if cfg.Index.Enabled && cfg.LLM.EmbeddingModel != "" {
		vecIdx, err := index.New(cfg.Index, log.New(log.Writer(), "[INDEX] ", log.LstdFlags))
		if err != nil {
			return nil, err
		}
		reviewer.WithIndex(vecIdx, cfg.LLM.EmbeddingModel)
	}
	return reviewer, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
