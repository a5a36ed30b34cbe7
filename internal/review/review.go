package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/venturist-ai/venturist/internal/githubx"
	"github.com/venturist-ai/venturist/internal/index"
	"github.com/venturist-ai/venturist/internal/llm"
)

const reviewSystemPrompt = `You are a senior engineer reviewing a pull request. You receive the PR title, description, and the unified diff of each changed file. Return only a JSON object:

{
  "summary": "<2-3 sentence overview of the change and its quality>",
  "verdict": "approve" | "request_changes" | "comment",
  "issues": [
    {"file": "<path>", "severity": "blocker" | "warning" | "nit", "comment": "<specific, actionable feedback>"}
  ]
}

Focus on correctness, error handling, and security. Do not comment on formatting. An empty issues list with verdict "approve" is a valid answer.`

// maxPatchBytes bounds how much diff goes into one prompt.
const maxPatchBytes = 48 * 1024

// Issue is one piece of feedback tied to a file.
type Issue struct {
	File     string `json:"file"`
	Severity string `json:"severity"`
	Comment  string `json:"comment"`
}

// Review is the structured outcome of one PR review.
type Review struct {
	Summary string  `json:"summary"`
	Verdict string  `json:"verdict"`
	Issues  []Issue `json:"issues"`
	Tokens  int64   `json:"tokens"`
	CostUSD float64 `json:"cost_usd"`
}

// Reviewer runs LLM-backed pull request reviews and code generation.
type Reviewer struct {
	gh         *githubx.Client
	provider   llm.Provider
	model      string
	logger     *log.Logger
	idx        *index.Client
	embedModel string
}

func NewReviewer(gh *githubx.Client, provider llm.Provider, model string, logger *log.Logger) *Reviewer {
	if logger == nil {
		logger = log.Default()
	}
	return &Reviewer{gh: gh, provider: provider, model: model, logger: logger}
}

// WithIndex enables retrieval of related code chunks from the vector index
// as extra prompt context. Without it, reviews run on the diff alone.
func (r *Reviewer) WithIndex(idx *index.Client, embedModel string) *Reviewer {
	r.idx = idx
	r.embedModel = embedModel
	return r
}

// ReviewPullRequest fetches the PR diff, asks the model for a structured
// review, and optionally posts it back as a comment.
func (r *Reviewer) ReviewPullRequest(ctx context.Context, repo string, number int, post bool) (Review, error) {
	owner, name, err := githubx.SplitRepo(repo)
	if err != nil {
		return Review{}, err
	}

	pr, err := r.gh.GetPullRequest(ctx, owner, name, number)
	if err != nil {
		return Review{}, err
	}
	files, err := r.gh.ListPullRequestFiles(ctx, owner, name, number)
	if err != nil {
		return Review{}, err
	}
	if len(files) == 0 {
		return Review{}, fmt.Errorf("pr %s#%d has no changed files", repo, number)
	}

	prompt := buildPrompt(pr, files)
	if related := r.relatedCode(ctx, owner, name, pr.Title+"\n"+pr.Body); related != "" {
		prompt += "\n\nRelated code from the repository:\n" + related
	}
	resp, err := r.provider.Chat(ctx, llm.ChatRequest{
		Model: r.model,
		Messages: []llm.Message{
			{Role: "system", Content: reviewSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.2,
		JSONMode:    true,
	})
	if err != nil {
		return Review{}, fmt.Errorf("review model call: %w", err)
	}

	var rev Review
	if err := decodeReview(resp.Content, &rev); err != nil {
		return Review{}, err
	}
	rev.Tokens = resp.PromptTokens + resp.CompletionTokens
	rev.CostUSD = llm.Cost(r.model, resp.PromptTokens, resp.CompletionTokens)

	if post {
		if err := r.gh.CommentOnPullRequest(ctx, owner, name, number, rev.Markdown()); err != nil {
			return rev, err
		}
		r.logger.Printf("[REVIEW] posted review on %s#%d (%s, %d issues)", repo, number, rev.Verdict, len(rev.Issues))
	}
	return rev, nil
}

// relatedCode retrieves the nearest indexed code chunks for the query and
// re-fetches their file contents. Retrieval is advisory; any failure just
// yields an empty context.
func (r *Reviewer) relatedCode(ctx context.Context, owner, name, query string) string {
	if r.idx == nil || r.embedModel == "" || strings.TrimSpace(query) == "" {
		return ""
	}
	vecs, err := r.provider.Embed(ctx, r.embedModel, []string{query})
	if err != nil || len(vecs) == 0 {
		r.logger.Printf("[REVIEW] embed context query: %v", err)
		return ""
	}
	matches, err := r.idx.Search(ctx, vecs[0], 5)
	if err != nil {
		r.logger.Printf("[REVIEW] search code index: %v", err)
		return ""
	}

	var sb strings.Builder
	seen := map[string]bool{}
	budget := 12 * 1024
	for _, m := range matches {
		if kind, _ := m.Payload["kind"].(string); kind != "code" {
			continue
		}
		p, _ := m.Payload["path"].(string)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		content, err := r.gh.GetFileContent(ctx, owner, name, p, "")
		if err != nil {
			continue
		}
		if len(content) > 4*1024 {
			content = content[:4*1024]
		}
		snippet := fmt.Sprintf("--- %s ---\n%s\n", p, content)
		if len(snippet) > budget {
			break
		}
		budget -= len(snippet)
		sb.WriteString(snippet)
	}
	return sb.String()
}

func buildPrompt(pr githubx.PullRequest, files []githubx.ChangedFile) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "PR #%d: %s\nAuthor: %s\nBase: %s <- Head: %s\n\n%s\n\n", pr.Number, pr.Title, pr.Author, pr.Base, pr.Head, pr.Body)

	budget := maxPatchBytes
	for _, f := range files {
		header := fmt.Sprintf("--- %s (%s, +%d -%d) ---\n", f.Filename, f.Status, f.Additions, f.Deletions)
		patch := f.Patch
		if patch == "" {
			patch = "(no textual diff: binary or too large)\n"
		}
		if len(header)+len(patch) > budget {
			sb.WriteString(header)
			sb.WriteString("(diff omitted: prompt budget exhausted)\n")
			continue
		}
		budget -= len(header) + len(patch)
		sb.WriteString(header)
		sb.WriteString(patch)
		sb.WriteString("\n")
	}
	return sb.String()
}

func decodeReview(content string, out *Review) error {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	if err := json.Unmarshal([]byte(trimmed), out); err != nil {
		snippet := trimmed
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		return fmt.Errorf("malformed review output: %v (raw: %q)", err, snippet)
	}
	switch out.Verdict {
	case "approve", "request_changes", "comment":
	case "":
		out.Verdict = "comment"
	default:
		return fmt.Errorf("unexpected review verdict %q", out.Verdict)
	}
	return nil
}

// Markdown renders the review as a PR comment.
func (rev Review) Markdown() string {
	var sb strings.Builder
	sb.WriteString("## Automated review\n\n")
	sb.WriteString(rev.Summary)
	fmt.Fprintf(&sb, "\n\n**Verdict:** %s\n", rev.Verdict)
	if len(rev.Issues) > 0 {
		sb.WriteString("\n| File | Severity | Comment |\n|---|---|---|\n")
		for _, is := range rev.Issues {
			fmt.Fprintf(&sb, "| `%s` | %s | %s |\n", is.File, is.Severity, strings.ReplaceAll(is.Comment, "|", "\\|"))
		}
	}
	return sb.String()
}
