package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/venturist-ai/venturist/internal/llm"
	"github.com/venturist-ai/venturist/internal/scraper"
	"github.com/venturist-ai/venturist/internal/store"
)

const trendScoutSystemPrompt = `You are a market trend analyst. You receive a numbered list of posts scraped from startup and technology communities. For each post that describes a real market signal (a product need, a growing behavior, a new niche), return a JSON object:

{"trends": [{"index": 0, "category": "<one of: saas, ai, fintech, ecommerce, devtools, health, education, other>", "tags": ["..."], "summary": "<one-sentence description of the underlying opportunity>"}]}

Skip posts that are memes, jokes, or pure self-promotion by omitting their index. Return only JSON.`

type scoutAssessment struct {
	Trends []struct {
		Index    int      `json:"index"`
		Category string   `json:"category"`
		Tags     []string `json:"tags"`
		Summary  string   `json:"summary"`
	} `json:"trends"`
}

// TrendScout scrapes configured communities, asks the model to separate real
// market signals from noise, and persists the survivors as trends.
func TrendScout(ctx context.Context, inv *Invocation) (map[string]interface{}, error) {
	deps := inv.Deps
	if deps.Reddit == nil {
		return nil, fmt.Errorf("reddit scraper not configured")
	}

	limit := intParam(inv.Params, "limit", 10)
	perSub := intParam(inv.Params, "limit_per_subreddit", 25)
	minEngagement := intParam(inv.Params, "min_engagement", 0)
	subreddits := stringsParam(inv.Params, "subreddits")

	posts, err := deps.Reddit.Discover(ctx, subreddits, perSub)
	if err != nil {
		return nil, fmt.Errorf("discover posts: %w", err)
	}

	candidates := make([]scraper.Post, 0, len(posts))
	for _, p := range posts {
		if p.Engagement() >= minEngagement {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return map[string]interface{}{
			"posts_seen":     len(posts),
			"trends_found":   0,
			"trends_created": 0,
			"duplicates":     0,
			"trend_ids":      []string{},
		}, nil
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	var sb strings.Builder
	for i, p := range candidates {
		fmt.Fprintf(&sb, "%d. [r/%s, score=%d, comments=%d] %s\n", i, p.Subreddit, p.Score, p.NumComments, p.Title)
		if txt := strings.TrimSpace(p.SelfText); txt != "" {
			if len(txt) > 400 {
				txt = txt[:400]
			}
			fmt.Fprintf(&sb, "   %s\n", txt)
		}
	}

	model := deps.Routing.Model("trend_discovery")
	resp, err := deps.Provider.Chat(ctx, llm.ChatRequest{
		Model: model,
		Messages: []llm.Message{
			{Role: "system", Content: trendScoutSystemPrompt},
			{Role: "user", Content: sb.String()},
		},
		Temperature: 0.3,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("assess posts: %w", err)
	}
	inv.Meter.Record(model, resp.PromptTokens, resp.CompletionTokens)

	var assessment scoutAssessment
	if err := parseModelJSON(resp.Content, &assessment); err != nil {
		return nil, err
	}

	var created, duplicates int
	trendIDs := make([]string, 0, len(assessment.Trends))
	for _, a := range assessment.Trends {
		if a.Index < 0 || a.Index >= len(candidates) {
			continue
		}
		p := candidates[a.Index]
		url := p.URL
		if url == "" {
			url = p.Permalink
		}
		trend := store.Trend{
			Title:           p.Title,
			Description:     a.Summary,
			URL:             url,
			Source:          "reddit",
			Category:        a.Category,
			Tags:            a.Tags,
			EngagementScore: p.Engagement(),
			Velocity:        p.Velocity(),
			Metadata: map[string]interface{}{
				"subreddit":    p.Subreddit,
				"score":        p.Score,
				"num_comments": p.NumComments,
				"execution_id": inv.ExecutionID,
			},
		}
		saved, wasCreated, err := deps.Store.CreateTrend(ctx, trend)
		if err != nil {
			return nil, fmt.Errorf("save trend %q: %w", p.Title, err)
		}
		trendIDs = append(trendIDs, saved.ID)
		if !wasCreated {
			duplicates++
			continue
		}
		created++
		if deps.Search != nil {
			if err := deps.Search.Add(saved); err != nil {
				deps.Logger.Printf("[SCOUT] index trend %s: %v", saved.ID, err)
			}
		}
	}

	return map[string]interface{}{
		"posts_seen":     len(posts),
		"trends_found":   len(assessment.Trends),
		"trends_created": created,
		"duplicates":     duplicates,
		"trend_ids":      trendIDs,
	}, nil
}
