package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/venturist-ai/venturist/internal/store"
)

func newTestRunner(t *testing.T) (*Runner, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewRunner(&Deps{Store: store.New(db)}), mock
}

func expectLifecycleStart(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("INSERT INTO agent_executions").
		WillReturnRows(sqlmock.NewRows([]string{"started_at"}).AddRow(time.Now()))
	mock.ExpectExec("UPDATE agent_executions SET status=").
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestRunUnknownAgentTypeWritesNothing(t *testing.T) {
	r, mock := newTestRunner(t)

	_, err := r.Run(context.Background(), "chaos_monkey", nil)
	if !errors.Is(err, ErrUnknownAgentType) {
		t.Fatalf("expected ErrUnknownAgentType, got %v", err)
	}
	// No DB expectations were set: any query would have failed the test.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRunStubAgentTypeWritesNothing(t *testing.T) {
	r, mock := newTestRunner(t)

	_, err := r.Run(context.Background(), TypeDevAgent, nil)
	if !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRunPersistsFailureAndReturnsOriginalError(t *testing.T) {
	r, mock := newTestRunner(t)

	boom := fmt.Errorf("scrape exploded")
	r.Register("exploder", func(ctx context.Context, inv *Invocation) (map[string]interface{}, error) {
		inv.Meter.Record("gpt-4o-mini", 100, 50)
		return nil, boom
	})

	expectLifecycleStart(mock)
	mock.ExpectExec("UPDATE agent_executions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	exec, err := r.Run(context.Background(), "exploder", map[string]interface{}{"x": 1})
	if !errors.Is(err, boom) {
		t.Fatalf("expected original capability error, got %v", err)
	}
	if exec.Status != store.ExecutionStatusFailed {
		t.Fatalf("expected failed status, got %s", exec.Status)
	}
	if exec.Error != "scrape exploded" {
		t.Fatalf("expected stringified error, got %q", exec.Error)
	}
	if exec.TokensUsed != 150 {
		t.Fatalf("expected 150 tokens metered, got %d", exec.TokensUsed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRunReturnsOriginalErrorEvenIfLedgerWriteFails(t *testing.T) {
	r, mock := newTestRunner(t)

	boom := fmt.Errorf("capability failed")
	r.Register("exploder", func(ctx context.Context, inv *Invocation) (map[string]interface{}, error) {
		return nil, boom
	})

	expectLifecycleStart(mock)
	mock.ExpectExec("UPDATE agent_executions").
		WillReturnError(fmt.Errorf("db went away"))

	_, err := r.Run(context.Background(), "exploder", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected original capability error to win, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRunCompletesWithMeteredUsage(t *testing.T) {
	r, mock := newTestRunner(t)

	r.Register("echoer", func(ctx context.Context, inv *Invocation) (map[string]interface{}, error) {
		inv.Meter.Record("gpt-4o", 1000, 200)
		return map[string]interface{}{"echo": inv.Params["msg"]}, nil
	})

	expectLifecycleStart(mock)
	mock.ExpectExec("UPDATE agent_executions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	exec, err := r.Run(context.Background(), "echoer", map[string]interface{}{"msg": "hello"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if exec.Status != store.ExecutionStatusCompleted {
		t.Fatalf("expected completed, got %s", exec.Status)
	}
	if exec.OutputData["echo"] != "hello" {
		t.Fatalf("unexpected output %v", exec.OutputData)
	}
	if exec.TokensUsed != 1200 {
		t.Fatalf("expected 1200 tokens, got %d", exec.TokensUsed)
	}
	if exec.CostUSD <= 0 {
		t.Fatalf("expected positive cost, got %v", exec.CostUSD)
	}
	if exec.DurationSeconds == nil {
		t.Fatal("expected duration recorded")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRunFreshMeterPerInvocation(t *testing.T) {
	r, mock := newTestRunner(t)

	r.Register("counter", func(ctx context.Context, inv *Invocation) (map[string]interface{}, error) {
		inv.Meter.Record("gpt-4o-mini", 10, 10)
		return map[string]interface{}{}, nil
	})

	for i := 0; i < 2; i++ {
		expectLifecycleStart(mock)
		mock.ExpectExec("UPDATE agent_executions").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	first, err := r.Run(context.Background(), "counter", nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := r.Run(context.Background(), "counter", nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.TokensUsed != 20 || second.TokensUsed != 20 {
		t.Fatalf("expected 20 tokens per run, got %d and %d", first.TokensUsed, second.TokensUsed)
	}
}

func TestKnownDistinguishesStubFromUnknown(t *testing.T) {
	r, _ := newTestRunner(t)
	if !r.Known(TypeSalesAgent) {
		t.Fatal("expected sales_agent to be a known stub")
	}
	if r.Known("nonsense") {
		t.Fatal("expected nonsense to be unknown")
	}
}
