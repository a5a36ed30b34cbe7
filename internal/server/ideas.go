package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/venturist-ai/venturist/internal/index"
	"github.com/venturist-ai/venturist/internal/llm"
	"github.com/venturist-ai/venturist/internal/store"
)

type IdeasHandler struct {
	Store          *store.Store
	Index          *index.Client
	Provider       llm.Provider
	EmbeddingModel string
}

func (h *IdeasHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/stats", h.stats)
	g.GET("/similar", h.similar)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.remove)
}

func (h *IdeasHandler) list(c echo.Context) error {
	skip := queryInt(c, "skip", 0)
	limit := queryInt(c, "limit", 50)
	items, total, err := h.Store.ListIdeas(c.Request().Context(), store.IdeaFilter{
		Status:   c.QueryParam("status"),
		TrendID:  c.QueryParam("trend_id"),
		MinScore: queryInt(c, "min_score", 0),
		Sort:     c.QueryParam("sort"),
		Skip:     skip,
		Limit:    limit,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.Idea{}
	}
	return c.JSON(http.StatusOK, newPage(items, total, skip, limit))
}

func (h *IdeasHandler) create(c echo.Context) error {
	var req struct {
		TrendID     *string                `json:"trend_id"`
		Title       string                 `json:"title"`
		Description string                 `json:"description"`
		Scores      store.Scores           `json:"scores"`
		Analysis    map[string]interface{} `json:"analysis"`
		Financials  map[string]interface{} `json:"financials"`
		Status      string                 `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	idea, err := h.Store.CreateIdea(c.Request().Context(), store.Idea{
		TrendID:     req.TrendID,
		Title:       req.Title,
		Description: req.Description,
		Scores:      req.Scores,
		Analysis:    req.Analysis,
		Financials:  req.Financials,
		Status:      req.Status,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, idea)
}

func (h *IdeasHandler) get(c echo.Context) error {
	idea, found, err := h.Store.GetIdea(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "idea not found")
	}
	return c.JSON(http.StatusOK, idea)
}

func (h *IdeasHandler) update(c echo.Context) error {
	var req struct {
		Title       *string                `json:"title"`
		Description *string                `json:"description"`
		Status      *string                `json:"status"`
		Scores      *store.Scores          `json:"scores"`
		Analysis    map[string]interface{} `json:"analysis"`
		Financials  map[string]interface{} `json:"financials"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	idea, found, err := h.Store.UpdateIdea(c.Request().Context(), c.Param("id"), store.IdeaUpdate{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Scores:      req.Scores,
		Analysis:    req.Analysis,
		Financials:  req.Financials,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "idea not found")
	}
	return c.JSON(http.StatusOK, idea)
}

func (h *IdeasHandler) remove(c echo.Context) error {
	id := c.Param("id")
	ok, err := h.Store.DeleteIdea(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "idea not found")
	}
	if h.Index != nil {
		_ = h.Index.Delete(c.Request().Context(), []string{id})
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *IdeasHandler) stats(c echo.Context) error {
	stats, err := h.Store.IdeaStats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

// similar embeds the query and returns the nearest ideas from the vector
// index. Requires the index to be configured.
func (h *IdeasHandler) similar(c echo.Context) error {
	if h.Index == nil || h.Provider == nil || h.EmbeddingModel == "" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "vector index not available")
	}
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	vecs, err := h.Provider.Embed(c.Request().Context(), h.EmbeddingModel, []string{q})
	if err != nil || len(vecs) == 0 {
		return echo.NewHTTPError(http.StatusInternalServerError, "embed query failed")
	}
	matches, err := h.Index.Search(c.Request().Context(), vecs[0], queryInt(c, "limit", 10))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	type similarIdea struct {
		store.Idea
		Similarity float32 `json:"similarity"`
	}
	out := make([]similarIdea, 0, len(matches))
	for _, m := range matches {
		if kind, _ := m.Payload["kind"].(string); kind != "idea" {
			continue
		}
		idea, found, err := h.Store.GetIdea(c.Request().Context(), m.ID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if !found {
			continue
		}
		out = append(out, similarIdea{Idea: idea, Similarity: m.Score})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"query": q, "results": out})
}
