package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/venturist-ai/venturist/internal/agent"
	"github.com/venturist-ai/venturist/internal/store"
)

func newAgentsHandler(t *testing.T) (*AgentsHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	st := store.New(db)
	runner := agent.NewRunner(&agent.Deps{Store: st})
	return &AgentsHandler{Runner: runner, Store: st}, mock
}

func jsonRequest(method, target, body string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req, httptest.NewRecorder()
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he.Code
}

func TestRunUnknownAgentTypeReturns400(t *testing.T) {
	h, mock := newAgentsHandler(t)
	e := echo.New()

	req, rec := jsonRequest(http.MethodPost, "/api/agents/run", `{"agent_type":"chaos_monkey"}`)
	err := h.run(e.NewContext(req, rec))
	if got := httpStatus(t, err); got != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", got)
	}
	// No ledger record: no DB expectations were registered.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRunStubAgentTypeReturns501(t *testing.T) {
	h, mock := newAgentsHandler(t)
	e := echo.New()

	req, rec := jsonRequest(http.MethodPost, "/api/agents/run", `{"agent_type":"dev_agent"}`)
	err := h.run(e.NewContext(req, rec))
	if got := httpStatus(t, err); got != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRunMissingAgentTypeReturns400(t *testing.T) {
	h, _ := newAgentsHandler(t)
	e := echo.New()

	req, rec := jsonRequest(http.MethodPost, "/api/agents/run", `{}`)
	err := h.run(e.NewContext(req, rec))
	if got := httpStatus(t, err); got != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", got)
	}
}

func TestRunCapabilityFailureReturns500(t *testing.T) {
	h, mock := newAgentsHandler(t)
	e := echo.New()

	h.Runner.Register("exploder", func(ctx context.Context, inv *agent.Invocation) (map[string]interface{}, error) {
		return nil, fmt.Errorf("backend unavailable")
	})

	mock.ExpectQuery("INSERT INTO agent_executions").
		WillReturnRows(sqlmock.NewRows([]string{"started_at"}).AddRow(time.Now()))
	mock.ExpectExec("UPDATE agent_executions SET status=").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE agent_executions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req, rec := jsonRequest(http.MethodPost, "/api/agents/run", `{"agent_type":"exploder"}`)
	err := h.run(e.NewContext(req, rec))
	if got := httpStatus(t, err); got != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRunSuccessReturnsJobSummary(t *testing.T) {
	h, mock := newAgentsHandler(t)
	e := echo.New()

	h.Runner.Register("echoer", func(ctx context.Context, inv *agent.Invocation) (map[string]interface{}, error) {
		return map[string]interface{}{"ok": true}, nil
	})

	mock.ExpectQuery("INSERT INTO agent_executions").
		WillReturnRows(sqlmock.NewRows([]string{"started_at"}).AddRow(time.Now()))
	mock.ExpectExec("UPDATE agent_executions SET status=").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE agent_executions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req, rec := jsonRequest(http.MethodPost, "/api/agents/run", `{"agent_type":"echoer","params":{"x":1}}`)
	if err := h.run(e.NewContext(req, rec)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		JobID     string `json:"job_id"`
		AgentType string `json:"agent_type"`
		Status    string `json:"status"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobID == "" || resp.AgentType != "echoer" || resp.Status != store.ExecutionStatusCompleted {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestListExecutionsHasMoreOffByOne(t *testing.T) {
	h, mock := newAgentsHandler(t)
	e := echo.New()

	// total=25, skip=20, limit=10: the window covers the tail, so has_more
	// must be false even though the page is short.
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM agent_executions`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(25))
	rows := sqlmock.NewRows([]string{"id", "agent_type", "input_data", "output_data", "status", "error", "started_at", "completed_at", "duration_seconds", "llm_tokens_used", "llm_cost_usd", "metadata"})
	for i := 0; i < 5; i++ {
		rows.AddRow(fmt.Sprintf("e%d", i), "trend_scout", []byte(`{}`), nil, store.ExecutionStatusCompleted, nil, time.Now(), nil, nil, int64(0), 0.0, nil)
	}
	mock.ExpectQuery("SELECT id, agent_type").WillReturnRows(rows)

	req := httptest.NewRequest(http.MethodGet, "/api/agents/executions?skip=20&limit=10", nil)
	rec := httptest.NewRecorder()
	if err := h.listExecutions(e.NewContext(req, rec)); err != nil {
		t.Fatalf("list: %v", err)
	}

	var resp pageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 25 || resp.Skip != 20 || resp.Limit != 10 {
		t.Fatalf("unexpected envelope %+v", resp)
	}
	if resp.HasMore {
		t.Fatal("expected has_more=false when skip+limit >= total")
	}
}

func TestListExecutionsHasMoreTrue(t *testing.T) {
	h, mock := newAgentsHandler(t)
	e := echo.New()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM agent_executions`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(25))
	mock.ExpectQuery("SELECT id, agent_type").
		WillReturnRows(sqlmock.NewRows([]string{"id", "agent_type", "input_data", "output_data", "status", "error", "started_at", "completed_at", "duration_seconds", "llm_tokens_used", "llm_cost_usd", "metadata"}))

	req := httptest.NewRequest(http.MethodGet, "/api/agents/executions?skip=0&limit=10", nil)
	rec := httptest.NewRecorder()
	if err := h.listExecutions(e.NewContext(req, rec)); err != nil {
		t.Fatalf("list: %v", err)
	}
	var resp pageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.HasMore {
		t.Fatal("expected has_more=true when skip+limit < total")
	}
}

func TestGetExecutionNotFound(t *testing.T) {
	h, mock := newAgentsHandler(t)
	e := echo.New()

	mock.ExpectQuery("SELECT id, agent_type").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := httptest.NewRequest(http.MethodGet, "/api/agents/executions/nope", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("nope")

	err := h.getExecution(ctx)
	if got := httpStatus(t, err); got != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", got)
	}
}
