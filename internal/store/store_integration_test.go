package store_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/venturist-ai/venturist/internal/store"
)

func intPtr(v int) *int { return &v }

func TestStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		tcPostgres.WithDatabase("venturist"),
		tcPostgres.WithUsername("venturist"),
		tcPostgres.WithPassword("venturist"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://venturist:venturist@%s:%s/venturist?sslmode=disable", host, port.Port())
	if err := applyMigrations(ctx, dsn); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("store init: %v", err)
	}
	defer st.DB.Close()

	// Execution lifecycle: pending -> running -> failed, then immutable.
	exec, err := st.CreateExecution(ctx, "trend_scout", map[string]interface{}{"limit": 3})
	if err != nil {
		t.Fatalf("create execution: %v", err)
	}
	if err := st.MarkExecutionRunning(ctx, exec.ID); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	if err := st.FailExecution(ctx, exec.ID, "scrape timed out", 512, 0.0008, time.Now(), 7); err != nil {
		t.Fatalf("fail execution: %v", err)
	}
	if err := st.CompleteExecution(ctx, exec.ID, nil, 0, 0, time.Now(), 0); err == nil {
		t.Fatal("expected terminal row to reject a second outcome")
	}
	got, found, err := st.GetExecution(ctx, exec.ID)
	if err != nil || !found {
		t.Fatalf("get execution: %v found=%v", err, found)
	}
	if got.Status != store.ExecutionStatusFailed || got.Error != "scrape timed out" {
		t.Fatalf("unexpected execution state: %+v", got)
	}
	if got.DurationSeconds == nil || *got.DurationSeconds != 7 {
		t.Fatalf("unexpected duration: %v", got.DurationSeconds)
	}

	// Trend dedupe by (title, url).
	tr, created, err := st.CreateTrend(ctx, store.Trend{Title: "No-code agents", URL: "https://example.com/t", Source: "reddit", Tags: []string{"ai", "saas"}, EngagementScore: 300})
	if err != nil || !created {
		t.Fatalf("create trend: %v created=%v", err, created)
	}
	dup, created, err := st.CreateTrend(ctx, store.Trend{Title: "No-code agents", URL: "https://example.com/t", Source: "hackernews"})
	if err != nil {
		t.Fatalf("create duplicate trend: %v", err)
	}
	if created || dup.ID != tr.ID {
		t.Fatalf("expected duplicate to return existing trend, got created=%v id=%s", created, dup.ID)
	}

	// Idea with derived score, min-score filtering in SQL.
	idea, err := st.CreateIdea(ctx, store.Idea{
		TrendID: &tr.ID,
		Title:   "Agent marketplace",
		Scores: store.Scores{
			MarketSize: intPtr(80), Competition: intPtr(70), Demand: intPtr(90),
			Monetization: intPtr(60), Feasibility: intPtr(85), TimeToMarket: intPtr(75),
		},
	})
	if err != nil {
		t.Fatalf("create idea: %v", err)
	}
	if idea.TotalScore != 76 {
		t.Fatalf("expected total score 76, got %d", idea.TotalScore)
	}
	items, total, err := st.ListIdeas(ctx, store.IdeaFilter{MinScore: 80})
	if err != nil {
		t.Fatalf("list ideas: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Fatalf("expected no ideas above score 80, got total=%d", total)
	}
	items, total, err = st.ListIdeas(ctx, store.IdeaFilter{MinScore: 70})
	if err != nil {
		t.Fatalf("list ideas: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != idea.ID {
		t.Fatalf("expected one idea above score 70, got total=%d", total)
	}

	// Deleting the trend detaches the idea instead of deleting it.
	if ok, err := st.DeleteTrend(ctx, tr.ID); err != nil || !ok {
		t.Fatalf("delete trend: %v ok=%v", err, ok)
	}
	detached, found, err := st.GetIdea(ctx, idea.ID)
	if err != nil || !found {
		t.Fatalf("get idea after trend delete: %v found=%v", err, found)
	}
	if detached.TrendID != nil {
		t.Fatalf("expected trend_id cleared, got %v", *detached.TrendID)
	}

	stats, err := st.ExecutionStats(ctx)
	if err != nil {
		t.Fatalf("execution stats: %v", err)
	}
	if stats.TotalExecutions != 1 || stats.ByStatus[store.ExecutionStatusFailed] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.SuccessRate != 0 {
		t.Fatalf("expected 0%% success rate, got %v", stats.SuccessRate)
	}
}

func applyMigrations(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	schemaSQL, err := os.ReadFile("../../migrations/0001_init.up.sql")
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
