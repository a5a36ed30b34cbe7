package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/venturist-ai/venturist/internal/githubx"
	"github.com/venturist-ai/venturist/internal/llm"
)

const generateSystemPrompt = `You are a senior engineer implementing a change in an existing codebase. You receive a task description and excerpts of the relevant source files. Return only a JSON object:

{
  "files": [
    {"path": "<repo-relative path>", "content": "<complete new file content>"}
  ],
  "notes": "<short explanation of the approach and anything the author must verify>"
}

Every file in "files" must contain the FULL content, not a diff. Follow the conventions visible in the provided code. Do not invent files outside the task's scope.`

// GeneratedFile is one complete file proposed by the model.
type GeneratedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Generated is the structured outcome of one code generation task.
type Generated struct {
	Files   []GeneratedFile `json:"files"`
	Notes   string          `json:"notes"`
	Tokens  int64           `json:"tokens"`
	CostUSD float64         `json:"cost_usd"`
}

// GenerateCode asks the model to implement a task against a repository.
// Context comes from the explicitly named paths plus, when the vector index
// is configured, the code chunks nearest to the task description.
func (r *Reviewer) GenerateCode(ctx context.Context, repo, task string, paths []string, ref string) (Generated, error) {
	owner, name, err := githubx.SplitRepo(repo)
	if err != nil {
		return Generated{}, err
	}
	if strings.TrimSpace(task) == "" {
		return Generated{}, fmt.Errorf("task description required")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Repository: %s\nTask: %s\n", repo, task)

	budget := maxPatchBytes
	for _, p := range paths {
		content, err := r.gh.GetFileContent(ctx, owner, name, p, ref)
		if err != nil {
			return Generated{}, fmt.Errorf("load %s: %w", p, err)
		}
		snippet := fmt.Sprintf("\n--- %s ---\n%s\n", p, content)
		if len(snippet) > budget {
			r.logger.Printf("[REVIEW] %s omitted from prompt, budget exhausted", p)
			continue
		}
		budget -= len(snippet)
		sb.WriteString(snippet)
	}
	if related := r.relatedCode(ctx, owner, name, task); related != "" {
		sb.WriteString("\nRelated code from the repository:\n")
		sb.WriteString(related)
	}

	resp, err := r.provider.Chat(ctx, llm.ChatRequest{
		Model: r.model,
		Messages: []llm.Message{
			{Role: "system", Content: generateSystemPrompt},
			{Role: "user", Content: sb.String()},
		},
		Temperature: 0.2,
		JSONMode:    true,
	})
	if err != nil {
		return Generated{}, fmt.Errorf("generate model call: %w", err)
	}

	var gen Generated
	if err := decodeGenerated(resp.Content, &gen); err != nil {
		return Generated{}, err
	}
	gen.Tokens = resp.PromptTokens + resp.CompletionTokens
	gen.CostUSD = llm.Cost(r.model, resp.PromptTokens, resp.CompletionTokens)
	return gen, nil
}

func decodeGenerated(content string, out *Generated) error {
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
		return fmt.Errorf("malformed generation output: %v (raw: %q)", err, snippet)
	}
	if len(out.Files) == 0 {
		return fmt.Errorf("generation produced no files")
	}
	for _, f := range out.Files {
		if strings.TrimSpace(f.Path) == "" {
			return fmt.Errorf("generation produced a file with no path")
		}
		if strings.HasPrefix(f.Path, "/") || strings.Contains(f.Path, "..") {
			return fmt.Errorf("generation produced an unsafe path %q", f.Path)
		}
	}
	return nil
}
