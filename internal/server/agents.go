package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/venturist-ai/venturist/internal/agent"
	"github.com/venturist-ai/venturist/internal/store"
)

// pageResponse is the common list envelope. has_more is derived from the
// window position, not the page length, so a short final page reports false.
type pageResponse struct {
	Items   interface{} `json:"items"`
	Total   int         `json:"total"`
	Skip    int         `json:"skip"`
	Limit   int         `json:"limit"`
	HasMore bool        `json:"has_more"`
}

func newPage(items interface{}, total, skip, limit int) pageResponse {
	return pageResponse{
		Items:   items,
		Total:   total,
		Skip:    skip,
		Limit:   limit,
		HasMore: skip+limit < total,
	}
}

func queryInt(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

type AgentsHandler struct {
	Runner *agent.Runner
	Store  *store.Store
}

func (h *AgentsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("/types", h.types)
	g.POST("/run", h.run)
	g.GET("/executions", h.listExecutions)
	g.GET("/executions/:id", h.getExecution)
	g.GET("/status", h.stats)
}

func (h *AgentsHandler) types(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Runner.Types())
}

// run executes an agent synchronously and returns its ledger record. Unknown
// and unimplemented types are rejected before any record exists; a capability
// failure has its failed record persisted and surfaces as a 500.
func (h *AgentsHandler) run(c echo.Context) error {
	var req struct {
		AgentType string                 `json:"agent_type"`
		Params    map[string]interface{} `json:"params"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.AgentType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "agent_type required")
	}

	exec, err := h.Runner.Run(c.Request().Context(), req.AgentType, req.Params)
	if err != nil {
		switch {
		case errors.Is(err, agent.ErrUnknownAgentType):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, agent.ErrNotImplemented):
			return echo.NewHTTPError(http.StatusNotImplemented, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"job_id":     exec.ID,
		"agent_type": exec.AgentType,
		"status":     exec.Status,
		"message":    "agent " + exec.AgentType + " finished",
	})
}

func (h *AgentsHandler) listExecutions(c echo.Context) error {
	skip := queryInt(c, "skip", 0)
	limit := queryInt(c, "limit", 50)
	items, total, err := h.Store.ListExecutions(c.Request().Context(), store.ExecutionFilter{
		AgentType: c.QueryParam("agent_type"),
		Status:    c.QueryParam("status"),
		Skip:      skip,
		Limit:     limit,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.Execution{}
	}
	return c.JSON(http.StatusOK, newPage(items, total, skip, limit))
}

func (h *AgentsHandler) getExecution(c echo.Context) error {
	exec, found, err := h.Store.GetExecution(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "execution not found")
	}
	return c.JSON(http.StatusOK, exec)
}

func (h *AgentsHandler) stats(c echo.Context) error {
	stats, err := h.Store.ExecutionStats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}
