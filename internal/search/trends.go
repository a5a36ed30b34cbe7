package search

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"
	_ "github.com/blevesearch/bleve/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/mapping"

	"github.com/venturist-ai/venturist/internal/store"
)

// trendDoc is the indexed shape of a trend; only searchable fields go in.
type trendDoc struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Source      string   `json:"source"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
}

// Hit is one search result: the trend id plus its relevance score.
type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// TrendIndex is an in-memory full-text index over trends. It is rebuilt from
// the store at startup and kept current as scouts discover new trends.
type TrendIndex struct {
	mu  sync.RWMutex
	idx bleve.Index
}

func NewTrendIndex() (*TrendIndex, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("bleve index: %w", err)
	}
	return &TrendIndex{idx: idx}, nil
}

func buildMapping() *mapping.IndexMappingImpl {
	m := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("description", text)
	doc.AddFieldMappingsAt("tags", text)

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"
	doc.AddFieldMappingsAt("source", keyword)
	doc.AddFieldMappingsAt("category", keyword)

	m.DefaultMapping = doc
	return m
}

// Add indexes one trend, replacing any previous version of it.
func (t *TrendIndex) Add(trend store.Trend) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.idx.Index(trend.ID, trendDoc{
		Title:       trend.Title,
		Description: trend.Description,
		Source:      trend.Source,
		Category:    trend.Category,
		Tags:        trend.Tags,
	})
}

// AddAll bulk-indexes trends, used when rebuilding from the store.
func (t *TrendIndex) AddAll(trends []store.Trend) error {
	for _, tr := range trends {
		if err := t.Add(tr); err != nil {
			return err
		}
	}
	return nil
}

// Remove drops a trend from the index.
func (t *TrendIndex) Remove(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.idx.Delete(id)
}

// Search runs a query-string search and returns matching trend ids by
// descending relevance.
func (t *TrendIndex) Search(query string, limit int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if limit <= 0 {
		limit = 20
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	q := bleve.NewQueryStringQuery(query)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := t.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score})
	}
	return hits, nil
}

// Count returns the number of indexed trends.
func (t *TrendIndex) Count() (uint64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.idx.DocCount()
}

// Close releases index resources.
func (t *TrendIndex) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.idx.Close()
}
