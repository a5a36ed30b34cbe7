package agent

import (
	"context"
	"fmt"

	"github.com/venturist-ai/venturist/internal/index"
	"github.com/venturist-ai/venturist/internal/llm"
	"github.com/venturist-ai/venturist/internal/scraper"
	"github.com/venturist-ai/venturist/internal/store"
)

const ideaAnalystSystemPrompt = `You are a venture analyst. Given a market trend, propose one concrete business idea built on it and evaluate it. Return only a JSON object:

{
  "title": "<short product name>",
  "description": "<2-3 sentence pitch>",
  "scores": {
    "market_size": 0-100,
    "competition": 0-100,
    "demand": 0-100,
    "monetization": 0-100,
    "feasibility": 0-100,
    "time_to_market": 0-100
  },
  "analysis": {
    "target_audience": "...",
    "competitors": ["..."],
    "risks": ["..."],
    "moat": "..."
  },
  "financials": {
    "pricing_model": "...",
    "estimated_mrr_12mo_usd": <number>,
    "estimated_startup_cost_usd": <number>
  }
}

Higher competition score means LESS competition (more room). Be realistic, not promotional.`

type ideaAssessment struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Scores      struct {
		MarketSize   int `json:"market_size"`
		Competition  int `json:"competition"`
		Demand       int `json:"demand"`
		Monetization int `json:"monetization"`
		Feasibility  int `json:"feasibility"`
		TimeToMarket int `json:"time_to_market"`
	} `json:"scores"`
	Analysis   map[string]interface{} `json:"analysis"`
	Financials map[string]interface{} `json:"financials"`
}

// IdeaAnalyst turns trends into scored business ideas. Explicit trend_ids in
// the params win; otherwise it picks the highest-engagement trends that have
// no idea yet.
func IdeaAnalyst(ctx context.Context, inv *Invocation) (map[string]interface{}, error) {
	deps := inv.Deps

	trends, err := analystTrends(ctx, inv)
	if err != nil {
		return nil, err
	}
	if len(trends) == 0 {
		return map[string]interface{}{
			"trends_analyzed": 0,
			"ideas_created":   0,
			"idea_ids":        []string{},
		}, nil
	}

	model := deps.Routing.Model("idea_analysis")
	ideaIDs := make([]string, 0, len(trends))
	for _, trend := range trends {
		prompt := fmt.Sprintf("Trend: %s\nDescription: %s\nSource: %s (engagement %d, velocity %.1f/h)\nTags: %v",
			trend.Title, trend.Description, trend.Source, trend.EngagementScore, trend.Velocity, trend.Tags)
		if extra := scraper.ExtractArticle(ctx, trend.URL, 2000); extra != "" {
			prompt += "\n\nLinked article excerpt:\n" + extra
		}

		resp, err := deps.Provider.Chat(ctx, llm.ChatRequest{
			Model: model,
			Messages: []llm.Message{
				{Role: "system", Content: ideaAnalystSystemPrompt},
				{Role: "user", Content: prompt},
			},
			Temperature: 0.5,
			JSONMode:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("analyze trend %s: %w", trend.ID, err)
		}
		inv.Meter.Record(model, resp.PromptTokens, resp.CompletionTokens)

		var a ideaAssessment
		if err := parseModelJSON(resp.Content, &a); err != nil {
			return nil, fmt.Errorf("trend %s: %w", trend.ID, err)
		}
		if a.Title == "" {
			a.Title = "Idea for: " + trend.Title
		}

		trendID := trend.ID
		idea, err := deps.Store.CreateIdea(ctx, store.Idea{
			TrendID:     &trendID,
			Title:       a.Title,
			Description: a.Description,
			Scores: store.Scores{
				MarketSize:   clampScore(a.Scores.MarketSize),
				Competition:  clampScore(a.Scores.Competition),
				Demand:       clampScore(a.Scores.Demand),
				Monetization: clampScore(a.Scores.Monetization),
				Feasibility:  clampScore(a.Scores.Feasibility),
				TimeToMarket: clampScore(a.Scores.TimeToMarket),
			},
			Analysis:   a.Analysis,
			Financials: a.Financials,
		})
		if err != nil {
			return nil, fmt.Errorf("save idea for trend %s: %w", trend.ID, err)
		}
		ideaIDs = append(ideaIDs, idea.ID)

		indexIdea(ctx, inv, idea)
	}

	return map[string]interface{}{
		"trends_analyzed": len(trends),
		"ideas_created":   len(ideaIDs),
		"idea_ids":        ideaIDs,
	}, nil
}

func analystTrends(ctx context.Context, inv *Invocation) ([]store.Trend, error) {
	deps := inv.Deps
	if ids := stringsParam(inv.Params, "trend_ids"); len(ids) > 0 {
		trends := make([]store.Trend, 0, len(ids))
		for _, id := range ids {
			trend, found, err := deps.Store.GetTrend(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("load trend %s: %w", id, err)
			}
			if !found {
				return nil, fmt.Errorf("trend %s not found", id)
			}
			trends = append(trends, trend)
		}
		return trends, nil
	}

	limit := intParam(inv.Params, "limit", 5)
	minEngagement := intParam(inv.Params, "min_engagement", 0)
	trends, err := deps.Store.ListUnanalyzedTrends(ctx, limit, minEngagement)
	if err != nil {
		return nil, fmt.Errorf("list unanalyzed trends: %w", err)
	}
	return trends, nil
}

// indexIdea embeds the idea and upserts it into the vector index. Vector
// indexing is advisory; failures are logged and never fail the run.
func indexIdea(ctx context.Context, inv *Invocation, idea store.Idea) {
	deps := inv.Deps
	if deps.Index == nil || deps.EmbeddingModel == "" {
		return
	}
	vecs, err := deps.Provider.Embed(ctx, deps.EmbeddingModel, []string{idea.Title + "\n" + idea.Description})
	if err != nil || len(vecs) == 0 {
		deps.Logger.Printf("[ANALYST] embed idea %s: %v", idea.ID, err)
		return
	}
	err = deps.Index.Upsert(ctx, []index.Point{{
		ID:        idea.ID,
		Embedding: vecs[0],
		Payload: map[string]any{
			"kind":        "idea",
			"title":       idea.Title,
			"total_score": int64(idea.TotalScore),
		},
	}})
	if err != nil {
		deps.Logger.Printf("[ANALYST] index idea %s: %v", idea.ID, err)
	}
}
