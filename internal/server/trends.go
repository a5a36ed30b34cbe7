package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/venturist-ai/venturist/internal/search"
	"github.com/venturist-ai/venturist/internal/store"
)

type TrendsHandler struct {
	Store  *store.Store
	Search *search.TrendIndex
}

func (h *TrendsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/stats", h.stats)
	g.GET("/search", h.search)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.remove)
}

func (h *TrendsHandler) list(c echo.Context) error {
	skip := queryInt(c, "skip", 0)
	limit := queryInt(c, "limit", 50)
	items, total, err := h.Store.ListTrends(c.Request().Context(), store.TrendFilter{
		Source:        c.QueryParam("source"),
		Category:      c.QueryParam("category"),
		MinEngagement: queryInt(c, "min_engagement", 0),
		Sort:          c.QueryParam("sort"),
		Skip:          skip,
		Limit:         limit,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.Trend{}
	}
	return c.JSON(http.StatusOK, newPage(items, total, skip, limit))
}

// create adds a trend by hand. Duplicates by (title, url) return the existing
// record with 200 instead of 201.
func (h *TrendsHandler) create(c echo.Context) error {
	var req store.Trend
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title required")
	}
	if req.Source == "" {
		req.Source = "manual"
	}
	trend, created, err := h.Store.CreateTrend(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !created {
		return c.JSON(http.StatusOK, trend)
	}
	if h.Search != nil {
		_ = h.Search.Add(trend)
	}
	return c.JSON(http.StatusCreated, trend)
}

func (h *TrendsHandler) get(c echo.Context) error {
	trend, found, err := h.Store.GetTrend(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "trend not found")
	}
	return c.JSON(http.StatusOK, trend)
}

func (h *TrendsHandler) remove(c echo.Context) error {
	id := c.Param("id")
	ok, err := h.Store.DeleteTrend(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "trend not found")
	}
	if h.Search != nil {
		_ = h.Search.Remove(id)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *TrendsHandler) stats(c echo.Context) error {
	stats, err := h.Store.TrendStats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

// search runs a full-text query over the in-memory index and resolves hits
// back to full trend records, preserving relevance order.
func (h *TrendsHandler) search(c echo.Context) error {
	if h.Search == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search index not available")
	}
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	hits, err := h.Search.Search(q, queryInt(c, "limit", 20))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	type scoredTrend struct {
		store.Trend
		Relevance float64 `json:"relevance"`
	}
	out := make([]scoredTrend, 0, len(hits))
	for _, hit := range hits {
		trend, found, err := h.Store.GetTrend(c.Request().Context(), hit.ID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if !found {
			// index can briefly outlive a deleted row
			continue
		}
		out = append(out, scoredTrend{Trend: trend, Relevance: hit.Score})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"query": q, "results": out})
}
