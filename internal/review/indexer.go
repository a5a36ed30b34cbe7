package review

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/venturist-ai/venturist/internal/githubx"
	"github.com/venturist-ai/venturist/internal/index"
	"github.com/venturist-ai/venturist/internal/llm"
)

// indexable lists extensions worth embedding; everything else is skipped.
var indexable = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".rs": true,
	".java": true, ".rb": true, ".sql": true, ".md": true, ".yaml": true, ".yml": true,
}

const (
	chunkSize     = 3000
	maxChunkFiles = 200
	embedBatch    = 16
)

// CodeIndexer embeds repository files into the vector index so future dev
// and review agents can retrieve related code by similarity.
type CodeIndexer struct {
	gh       *githubx.Client
	provider llm.Provider
	idx      *index.Client
	model    string
	logger   *log.Logger
}

func NewCodeIndexer(gh *githubx.Client, provider llm.Provider, idx *index.Client, model string, logger *log.Logger) *CodeIndexer {
	if logger == nil {
		logger = log.Default()
	}
	return &CodeIndexer{gh: gh, provider: provider, idx: idx, model: model, logger: logger}
}

// IndexRepository walks the repo tree, chunks source files, embeds the chunks
// and upserts them. Returns the number of chunks indexed.
func (c *CodeIndexer) IndexRepository(ctx context.Context, repo, ref string) (int, error) {
	owner, name, err := githubx.SplitRepo(repo)
	if err != nil {
		return 0, err
	}
	if err := c.idx.EnsureCollection(ctx); err != nil {
		return 0, err
	}

	paths, err := c.gh.ListTree(ctx, owner, name, ref)
	if err != nil {
		return 0, err
	}

	var files int
	var pending []index.Point
	var pendingTexts []string
	total := 0

	flush := func() error {
		if len(pendingTexts) == 0 {
			return nil
		}
		vecs, err := c.provider.Embed(ctx, c.model, pendingTexts)
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}
		if len(vecs) != len(pending) {
			return fmt.Errorf("embed batch: got %d vectors for %d chunks", len(vecs), len(pending))
		}
		for i := range pending {
			pending[i].Embedding = vecs[i]
		}
		if err := c.idx.Upsert(ctx, pending); err != nil {
			return err
		}
		total += len(pending)
		pending = pending[:0]
		pendingTexts = pendingTexts[:0]
		return nil
	}

	for _, p := range paths {
		if !indexable[strings.ToLower(path.Ext(p))] {
			continue
		}
		if files >= maxChunkFiles {
			c.logger.Printf("[INDEXER] file cap reached for %s, stopping at %d files", repo, maxChunkFiles)
			break
		}
		content, err := c.gh.GetFileContent(ctx, owner, name, p, ref)
		if err != nil {
			c.logger.Printf("[INDEXER] skip %s: %v", p, err)
			continue
		}
		files++

		for n, chunk := range chunkText(content, chunkSize) {
			pending = append(pending, index.Point{
				ID: uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s/%s#%d", repo, p, n))).String(),
				Payload: map[string]any{
					"kind":  "code",
					"repo":  repo,
					"path":  p,
					"chunk": int64(n),
				},
			})
			pendingTexts = append(pendingTexts, fmt.Sprintf("// %s\n%s", p, chunk))
			if len(pending) >= embedBatch {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	c.logger.Printf("[INDEXER] indexed %d chunks from %d files in %s", total, files, repo)
	return total, nil
}

// chunkText splits text into size-bounded pieces on line boundaries.
func chunkText(text string, size int) []string {
	if len(text) <= size {
		return []string{text}
	}
	var chunks []string
	lines := strings.SplitAfter(text, "\n")
	var sb strings.Builder
	for _, line := range lines {
		if sb.Len()+len(line) > size && sb.Len() > 0 {
			chunks = append(chunks, sb.String())
			sb.Reset()
		}
		sb.WriteString(line)
	}
	if sb.Len() > 0 {
		chunks = append(chunks, sb.String())
	}
	return chunks
}
