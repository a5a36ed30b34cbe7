package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store wraps the Postgres connection. All SQL lives here.
type Store struct {
	DB *sql.DB
}

// Execution statuses. Transitions are pending -> running -> completed|failed;
// cancelled is reserved for operator intervention. Terminal rows are never
// mutated again (terminal updates are guarded by status in SQL).
const (
	ExecutionStatusPending   = "pending"
	ExecutionStatusRunning   = "running"
	ExecutionStatusCompleted = "completed"
	ExecutionStatusFailed    = "failed"
	ExecutionStatusCancelled = "cancelled"
)

// Idea lifecycle statuses.
const (
	IdeaStatusPending       = "pending"
	IdeaStatusApproved      = "approved"
	IdeaStatusRejected      = "rejected"
	IdeaStatusInDevelopment = "in_development"
	IdeaStatusLaunched      = "launched"
)

// IdeaStatuses enumerates the valid idea lifecycle values.
var IdeaStatuses = []string{IdeaStatusPending, IdeaStatusApproved, IdeaStatusRejected, IdeaStatusInDevelopment, IdeaStatusLaunched}

// totalScoreExpr computes the derived idea score inside the query so that
// filtering and pagination agree on it; the score is never stored.
const totalScoreExpr = `(COALESCE(market_size_score,0)+COALESCE(competition_score,0)+COALESCE(demand_score,0)+COALESCE(monetization_score,0)+COALESCE(feasibility_score,0)+COALESCE(time_to_market_score,0))/6`

// Execution is one agent invocation tracked start-to-finish.
type Execution struct {
	ID              string                 `json:"id"`
	AgentType       string                 `json:"agent_type"`
	Status          string                 `json:"status"`
	InputData       map[string]interface{} `json:"input_data,omitempty"`
	OutputData      map[string]interface{} `json:"output_data,omitempty"`
	Error           string                 `json:"error,omitempty"`
	StartedAt       time.Time              `json:"started_at"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`
	DurationSeconds *int                   `json:"duration_seconds,omitempty"`
	TokensUsed      int64                  `json:"llm_tokens_used"`
	CostUSD         float64                `json:"llm_cost_usd"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// ExecutionFilter selects and pages the execution history.
type ExecutionFilter struct {
	AgentType string
	Status    string
	Skip      int
	Limit     int
}

// ExecutionStats aggregates the whole ledger.
type ExecutionStats struct {
	TotalExecutions    int64            `json:"total_executions"`
	ByAgentType        map[string]int64 `json:"by_agent_type"`
	ByStatus           map[string]int64 `json:"by_status"`
	TotalTokensUsed    int64            `json:"total_tokens_used"`
	TotalCostUSD       float64          `json:"total_cost_usd"`
	AvgDurationSeconds float64          `json:"avg_duration_seconds"`
	SuccessRate        float64          `json:"success_rate"`
}

// Trend is an externally observed signal, immutable once created.
type Trend struct {
	ID              string                 `json:"id"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description,omitempty"`
	URL             string                 `json:"url,omitempty"`
	Source          string                 `json:"source"`
	Category        string                 `json:"category,omitempty"`
	Tags            []string               `json:"tags"`
	EngagementScore int                    `json:"engagement_score"`
	Velocity        float64                `json:"velocity"`
	DiscoveredAt    time.Time              `json:"discovered_at"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// TrendFilter selects and pages trends.
type TrendFilter struct {
	Source        string
	Category      string
	MinEngagement int
	Sort          string // discovered_at (default) | engagement
	Skip          int
	Limit         int
}

// TrendStats aggregates stored trends.
type TrendStats struct {
	TotalTrends   int64            `json:"total_trends"`
	BySource      map[string]int64 `json:"by_source"`
	ByCategory    map[string]int64 `json:"by_category"`
	AvgEngagement float64          `json:"avg_engagement"`
}

// Scores holds the six idea sub-scores; nil means not yet scored.
type Scores struct {
	MarketSize   *int `json:"market_size"`
	Competition  *int `json:"competition"`
	Demand       *int `json:"demand"`
	Monetization *int `json:"monetization"`
	Feasibility  *int `json:"feasibility"`
	TimeToMarket *int `json:"time_to_market"`
}

// Validate checks that every present sub-score lies in [0,100].
func (s Scores) Validate() error {
	for name, v := range map[string]*int{
		"market_size":    s.MarketSize,
		"competition":    s.Competition,
		"demand":         s.Demand,
		"monetization":   s.Monetization,
		"feasibility":    s.Feasibility,
		"time_to_market": s.TimeToMarket,
	} {
		if v != nil && (*v < 0 || *v > 100) {
			return fmt.Errorf("score %s out of range [0,100]: %d", name, *v)
		}
	}
	return nil
}

// Total derives the idea score: floor of the six-score sum divided by six.
// Missing sub-scores count as zero. The result is always recomputed, never
// stored.
func (s Scores) Total() int {
	sum := 0
	for _, v := range []*int{s.MarketSize, s.Competition, s.Demand, s.Monetization, s.Feasibility, s.TimeToMarket} {
		if v != nil {
			sum += *v
		}
	}
	return sum / 6
}

// Idea is a scored business concept derived from zero-or-one trend.
type Idea struct {
	ID          string                 `json:"id"`
	TrendID     *string                `json:"trend_id,omitempty"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Scores      Scores                 `json:"scores"`
	TotalScore  int                    `json:"total_score"`
	Analysis    map[string]interface{} `json:"analysis,omitempty"`
	Financials  map[string]interface{} `json:"financials,omitempty"`
	Status      string                 `json:"status"`
	AnalyzedAt  time.Time              `json:"analyzed_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// IdeaFilter selects and pages ideas. MinScore is applied inside the query.
type IdeaFilter struct {
	Status   string
	TrendID  string
	MinScore int
	Sort     string // analyzed_at (default) | score
	Skip     int
	Limit    int
}

// IdeaUpdate is a partial idea update; nil fields are left untouched.
type IdeaUpdate struct {
	Title       *string
	Description *string
	Status      *string
	Scores      *Scores
	Analysis    map[string]interface{}
	Financials  map[string]interface{}
}

// IdeaStats aggregates stored ideas.
type IdeaStats struct {
	TotalIdeas    int64            `json:"total_ideas"`
	ByStatus      map[string]int64 `json:"by_status"`
	AvgTotalScore float64          `json:"avg_total_score"`
	TopScore      int              `json:"top_score"`
}

// New wraps an existing connection.
func New(db *sql.DB) *Store { return &Store{DB: db} }

// NewWithDSN opens a Postgres connection and verifies it.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Store{DB: db}, nil
}

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (id, email, password_hash) VALUES ($1,$2,$3)`, uuid.New().String(), email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// ---- agent executions ----

// CreateExecution inserts a pending ledger record for one agent invocation.
func (s *Store) CreateExecution(ctx context.Context, agentType string, input map[string]interface{}) (Execution, error) {
	exec := Execution{
		ID:        uuid.New().String(),
		AgentType: agentType,
		Status:    ExecutionStatusPending,
		InputData: input,
	}
	row := s.DB.QueryRowContext(ctx, `
INSERT INTO agent_executions (id, agent_type, input_data, status)
VALUES ($1,$2,$3,$4)
RETURNING started_at
`, exec.ID, agentType, mustJSON(input), ExecutionStatusPending)
	if err := row.Scan(&exec.StartedAt); err != nil {
		return Execution{}, err
	}
	return exec, nil
}

// MarkExecutionRunning moves a pending record to running.
func (s *Store) MarkExecutionRunning(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `
UPDATE agent_executions SET status=$2 WHERE id=$1 AND status=$3
`, id, ExecutionStatusRunning, ExecutionStatusPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("execution %s not pending", id)
	}
	return nil
}

// CompleteExecution writes the terminal success state exactly once.
func (s *Store) CompleteExecution(ctx context.Context, id string, output map[string]interface{}, tokens int64, costUSD float64, completedAt time.Time, durationSeconds int) error {
	return s.finishExecution(ctx, id, ExecutionStatusCompleted, mustJSON(output), nil, tokens, costUSD, completedAt, durationSeconds)
}

// FailExecution writes the terminal failure state exactly once.
func (s *Store) FailExecution(ctx context.Context, id string, errMsg string, tokens int64, costUSD float64, completedAt time.Time, durationSeconds int) error {
	return s.finishExecution(ctx, id, ExecutionStatusFailed, nil, &errMsg, tokens, costUSD, completedAt, durationSeconds)
}

func (s *Store) finishExecution(ctx context.Context, id, status string, output []byte, errMsg *string, tokens int64, costUSD float64, completedAt time.Time, durationSeconds int) error {
	res, err := s.DB.ExecContext(ctx, `
UPDATE agent_executions
SET status=$2, output_data=$3, error=$4, completed_at=$5, duration_seconds=$6, llm_tokens_used=$7, llm_cost_usd=$8
WHERE id=$1 AND status IN ($9,$10)
`, id, status, nullableBytes(output), nullableStringPtr(errMsg), completedAt.UTC(), durationSeconds, tokens, costUSD,
		ExecutionStatusPending, ExecutionStatusRunning)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("execution %s not found or already terminal", id)
	}
	return nil
}

// GetExecution fetches a single execution by id.
func (s *Store) GetExecution(ctx context.Context, id string) (Execution, bool, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT id, agent_type, input_data, output_data, status, error, started_at, completed_at, duration_seconds, llm_tokens_used, llm_cost_usd, metadata
FROM agent_executions WHERE id=$1
`, id)
	exec, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Execution{}, false, nil
		}
		return Execution{}, false, err
	}
	return exec, true, nil
}

// ListExecutions returns a page of executions newest-first plus the total
// count matching the filters, independent of the page size.
func (s *Store) ListExecutions(ctx context.Context, f ExecutionFilter) ([]Execution, int, error) {
	where, args := []string{}, []interface{}{}
	if f.AgentType != "" {
		args = append(args, f.AgentType)
		where = append(where, fmt.Sprintf("agent_type=$%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM agent_executions`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, f.Skip)
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
SELECT id, agent_type, input_data, output_data, status, error, started_at, completed_at, duration_seconds, llm_tokens_used, llm_cost_usd, metadata
FROM agent_executions%s
ORDER BY started_at DESC
LIMIT $%d OFFSET $%d
`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, exec)
	}
	return out, total, rows.Err()
}

// ExecutionStats aggregates the ledger: counts, tokens, cost, average
// completed duration and the completed/total success rate as a percentage.
func (s *Store) ExecutionStats(ctx context.Context) (ExecutionStats, error) {
	stats := ExecutionStats{ByAgentType: map[string]int64{}, ByStatus: map[string]int64{}}

	row := s.DB.QueryRowContext(ctx, `
SELECT COUNT(*),
       COALESCE(SUM(llm_tokens_used),0),
       COALESCE(SUM(llm_cost_usd),0),
       COALESCE(AVG(duration_seconds) FILTER (WHERE status='completed'),0),
       COUNT(*) FILTER (WHERE status='completed')
FROM agent_executions
`)
	var completed int64
	if err := row.Scan(&stats.TotalExecutions, &stats.TotalTokensUsed, &stats.TotalCostUSD, &stats.AvgDurationSeconds, &completed); err != nil {
		return ExecutionStats{}, err
	}
	if stats.TotalExecutions > 0 {
		stats.SuccessRate = float64(completed) / float64(stats.TotalExecutions) * 100
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT agent_type, COUNT(*) FROM agent_executions GROUP BY agent_type`)
	if err != nil {
		return ExecutionStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int64
		if err := rows.Scan(&k, &n); err != nil {
			return ExecutionStats{}, err
		}
		stats.ByAgentType[k] = n
	}
	if err := rows.Err(); err != nil {
		return ExecutionStats{}, err
	}

	rows2, err := s.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM agent_executions GROUP BY status`)
	if err != nil {
		return ExecutionStats{}, err
	}
	defer rows2.Close()
	for rows2.Next() {
		var k string
		var n int64
		if err := rows2.Scan(&k, &n); err != nil {
			return ExecutionStats{}, err
		}
		stats.ByStatus[k] = n
	}
	return stats, rows2.Err()
}

// LatestExecutionTime returns the start time of the most recent execution of
// an agent type, or nil if it never ran. Used by the scheduler's due check.
func (s *Store) LatestExecutionTime(ctx context.Context, agentType string) (*time.Time, error) {
	var ts time.Time
	err := s.DB.QueryRowContext(ctx, `
SELECT started_at FROM agent_executions WHERE agent_type=$1 ORDER BY started_at DESC LIMIT 1
`, agentType).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExecution(row rowScanner) (Execution, error) {
	var exec Execution
	var input, output, meta []byte
	var errMsg sql.NullString
	var completedAt sql.NullTime
	var duration sql.NullInt64
	if err := row.Scan(&exec.ID, &exec.AgentType, &input, &output, &exec.Status, &errMsg, &exec.StartedAt, &completedAt, &duration, &exec.TokensUsed, &exec.CostUSD, &meta); err != nil {
		return Execution{}, err
	}
	if len(input) > 0 {
		_ = json.Unmarshal(input, &exec.InputData)
	}
	if len(output) > 0 {
		_ = json.Unmarshal(output, &exec.OutputData)
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &exec.Metadata)
	}
	if errMsg.Valid {
		exec.Error = errMsg.String
	}
	if completedAt.Valid {
		ts := completedAt.Time
		exec.CompletedAt = &ts
	}
	if duration.Valid {
		d := int(duration.Int64)
		exec.DurationSeconds = &d
	}
	return exec, nil
}

// ---- trends ----

// CreateTrend inserts a trend unless one with the same (title, url) already
// exists; in that case the existing record is returned and created is false.
func (s *Store) CreateTrend(ctx context.Context, t Trend) (Trend, bool, error) {
	existing, found, err := s.findTrendByTitleURL(ctx, t.Title, t.URL)
	if err != nil {
		return Trend{}, false, err
	}
	if found {
		return existing, false, nil
	}

	t.ID = uuid.New().String()
	row := s.DB.QueryRowContext(ctx, `
INSERT INTO trends (id, title, description, url, source, category, tags, engagement_score, velocity, metadata)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING discovered_at
`, t.ID, t.Title, nullableString(t.Description), nullableString(t.URL), t.Source, nullableString(t.Category),
		pq.Array(t.Tags), t.EngagementScore, t.Velocity, mustJSON(t.Metadata))
	if err := row.Scan(&t.DiscoveredAt); err != nil {
		return Trend{}, false, err
	}
	return t, true, nil
}

func (s *Store) findTrendByTitleURL(ctx context.Context, title, url string) (Trend, bool, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT id, title, description, url, source, category, tags, engagement_score, velocity, discovered_at, metadata
FROM trends WHERE title=$1 AND COALESCE(url,'')=$2
`, title, url)
	t, err := scanTrend(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Trend{}, false, nil
		}
		return Trend{}, false, err
	}
	return t, true, nil
}

// GetTrend fetches a single trend by id.
func (s *Store) GetTrend(ctx context.Context, id string) (Trend, bool, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT id, title, description, url, source, category, tags, engagement_score, velocity, discovered_at, metadata
FROM trends WHERE id=$1
`, id)
	t, err := scanTrend(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Trend{}, false, nil
		}
		return Trend{}, false, err
	}
	return t, true, nil
}

// ListTrends returns a page of trends plus the total matching count.
func (s *Store) ListTrends(ctx context.Context, f TrendFilter) ([]Trend, int, error) {
	where, args := []string{}, []interface{}{}
	if f.Source != "" {
		args = append(args, f.Source)
		where = append(where, fmt.Sprintf("source=$%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category=$%d", len(args)))
	}
	if f.MinEngagement > 0 {
		args = append(args, f.MinEngagement)
		where = append(where, fmt.Sprintf("engagement_score>=$%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM trends`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "discovered_at DESC"
	if f.Sort == "engagement" {
		order = "engagement_score DESC"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, f.Skip)
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
SELECT id, title, description, url, source, category, tags, engagement_score, velocity, discovered_at, metadata
FROM trends%s
ORDER BY %s
LIMIT $%d OFFSET $%d
`, cond, order, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Trend
	for rows.Next() {
		t, err := scanTrend(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// ListUnanalyzedTrends returns trends with no derived idea yet, highest
// engagement first. Used by the idea analyst when no explicit ids are given.
func (s *Store) ListUnanalyzedTrends(ctx context.Context, limit, minEngagement int) ([]Trend, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT t.id, t.title, t.description, t.url, t.source, t.category, t.tags, t.engagement_score, t.velocity, t.discovered_at, t.metadata
FROM trends t
LEFT JOIN ideas i ON i.trend_id = t.id
WHERE i.id IS NULL AND t.engagement_score >= $1
ORDER BY t.engagement_score DESC
LIMIT $2
`, minEngagement, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Trend
	for rows.Next() {
		t, err := scanTrend(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTrend removes a trend; derived ideas keep a NULL trend_id.
func (s *Store) DeleteTrend(ctx context.Context, id string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM trends WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// TrendStats aggregates stored trends.
func (s *Store) TrendStats(ctx context.Context) (TrendStats, error) {
	stats := TrendStats{BySource: map[string]int64{}, ByCategory: map[string]int64{}}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(AVG(engagement_score),0) FROM trends`).Scan(&stats.TotalTrends, &stats.AvgEngagement); err != nil {
		return TrendStats{}, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT source, COUNT(*) FROM trends GROUP BY source`)
	if err != nil {
		return TrendStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int64
		if err := rows.Scan(&k, &n); err != nil {
			return TrendStats{}, err
		}
		stats.BySource[k] = n
	}
	if err := rows.Err(); err != nil {
		return TrendStats{}, err
	}
	rows2, err := s.DB.QueryContext(ctx, `SELECT COALESCE(category,''), COUNT(*) FROM trends GROUP BY category`)
	if err != nil {
		return TrendStats{}, err
	}
	defer rows2.Close()
	for rows2.Next() {
		var k string
		var n int64
		if err := rows2.Scan(&k, &n); err != nil {
			return TrendStats{}, err
		}
		stats.ByCategory[k] = n
	}
	return stats, rows2.Err()
}

func scanTrend(row rowScanner) (Trend, error) {
	var t Trend
	var desc, url, category sql.NullString
	var meta []byte
	if err := row.Scan(&t.ID, &t.Title, &desc, &url, &t.Source, &category, pq.Array(&t.Tags), &t.EngagementScore, &t.Velocity, &t.DiscoveredAt, &meta); err != nil {
		return Trend{}, err
	}
	if desc.Valid {
		t.Description = desc.String
	}
	if url.Valid {
		t.URL = url.String
	}
	if category.Valid {
		t.Category = category.String
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &t.Metadata)
	}
	return t, nil
}

// ---- ideas ----

// CreateIdea validates sub-scores and inserts the idea.
func (s *Store) CreateIdea(ctx context.Context, idea Idea) (Idea, error) {
	if strings.TrimSpace(idea.Title) == "" {
		return Idea{}, fmt.Errorf("idea title required")
	}
	if err := idea.Scores.Validate(); err != nil {
		return Idea{}, err
	}
	if idea.Status == "" {
		idea.Status = IdeaStatusPending
	}
	if !validIdeaStatus(idea.Status) {
		return Idea{}, fmt.Errorf("invalid idea status: %s", idea.Status)
	}

	idea.ID = uuid.New().String()
	row := s.DB.QueryRowContext(ctx, `
INSERT INTO ideas (id, trend_id, title, description, market_size_score, competition_score, demand_score, monetization_score, feasibility_score, time_to_market_score, analysis, financials, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING analyzed_at, updated_at
`, idea.ID, nullableStringPtr(idea.TrendID), idea.Title, nullableString(idea.Description),
		idea.Scores.MarketSize, idea.Scores.Competition, idea.Scores.Demand,
		idea.Scores.Monetization, idea.Scores.Feasibility, idea.Scores.TimeToMarket,
		mustJSON(idea.Analysis), mustJSON(idea.Financials), idea.Status)
	if err := row.Scan(&idea.AnalyzedAt, &idea.UpdatedAt); err != nil {
		return Idea{}, err
	}
	idea.TotalScore = idea.Scores.Total()
	return idea, nil
}

// GetIdea fetches a single idea by id.
func (s *Store) GetIdea(ctx context.Context, id string) (Idea, bool, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT id, trend_id, title, description, market_size_score, competition_score, demand_score, monetization_score, feasibility_score, time_to_market_score, analysis, financials, status, analyzed_at, updated_at
FROM ideas WHERE id=$1
`, id)
	idea, err := scanIdea(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Idea{}, false, nil
		}
		return Idea{}, false, err
	}
	return idea, true, nil
}

// ListIdeas returns a page of ideas plus the total matching count. The
// min-score filter runs inside the query so totals and pages agree.
func (s *Store) ListIdeas(ctx context.Context, f IdeaFilter) ([]Idea, int, error) {
	where, args := []string{}, []interface{}{}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	if f.TrendID != "" {
		args = append(args, f.TrendID)
		where = append(where, fmt.Sprintf("trend_id=$%d", len(args)))
	}
	if f.MinScore > 0 {
		args = append(args, f.MinScore)
		where = append(where, fmt.Sprintf("%s>=$%d", totalScoreExpr, len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM ideas`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "analyzed_at DESC"
	if f.Sort == "score" {
		order = totalScoreExpr + " DESC"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, f.Skip)
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
SELECT id, trend_id, title, description, market_size_score, competition_score, demand_score, monetization_score, feasibility_score, time_to_market_score, analysis, financials, status, analyzed_at, updated_at
FROM ideas%s
ORDER BY %s
LIMIT $%d OFFSET $%d
`, cond, order, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Idea
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, idea)
	}
	return out, total, rows.Err()
}

// UpdateIdea applies a partial update after validating any new scores/status.
func (s *Store) UpdateIdea(ctx context.Context, id string, upd IdeaUpdate) (Idea, bool, error) {
	set, args := []string{}, []interface{}{}
	add := func(col string, v interface{}) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.Status != nil {
		if !validIdeaStatus(*upd.Status) {
			return Idea{}, false, fmt.Errorf("invalid idea status: %s", *upd.Status)
		}
		add("status", *upd.Status)
	}
	if upd.Scores != nil {
		if err := upd.Scores.Validate(); err != nil {
			return Idea{}, false, err
		}
		add("market_size_score", upd.Scores.MarketSize)
		add("competition_score", upd.Scores.Competition)
		add("demand_score", upd.Scores.Demand)
		add("monetization_score", upd.Scores.Monetization)
		add("feasibility_score", upd.Scores.Feasibility)
		add("time_to_market_score", upd.Scores.TimeToMarket)
	}
	if upd.Analysis != nil {
		add("analysis", mustJSON(upd.Analysis))
	}
	if upd.Financials != nil {
		add("financials", mustJSON(upd.Financials))
	}
	if len(set) == 0 {
		return s.GetIdea(ctx, id)
	}
	set = append(set, "updated_at=NOW()")
	args = append(args, id)

	res, err := s.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE ideas SET %s WHERE id=$%d`, strings.Join(set, ", "), len(args)), args...)
	if err != nil {
		return Idea{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Idea{}, false, err
	}
	if n == 0 {
		return Idea{}, false, nil
	}
	return s.GetIdea(ctx, id)
}

// DeleteIdea removes an idea.
func (s *Store) DeleteIdea(ctx context.Context, id string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM ideas WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// IdeaStats aggregates stored ideas.
func (s *Store) IdeaStats(ctx context.Context) (IdeaStats, error) {
	stats := IdeaStats{ByStatus: map[string]int64{}}
	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
SELECT COUNT(*), COALESCE(AVG(%s),0), COALESCE(MAX(%s),0) FROM ideas
`, totalScoreExpr, totalScoreExpr))
	if err := row.Scan(&stats.TotalIdeas, &stats.AvgTotalScore, &stats.TopScore); err != nil {
		return IdeaStats{}, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM ideas GROUP BY status`)
	if err != nil {
		return IdeaStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int64
		if err := rows.Scan(&k, &n); err != nil {
			return IdeaStats{}, err
		}
		stats.ByStatus[k] = n
	}
	return stats, rows.Err()
}

func scanIdea(row rowScanner) (Idea, error) {
	var idea Idea
	var trendID, desc sql.NullString
	var analysis, financials []byte
	if err := row.Scan(&idea.ID, &trendID, &idea.Title, &desc,
		&idea.Scores.MarketSize, &idea.Scores.Competition, &idea.Scores.Demand,
		&idea.Scores.Monetization, &idea.Scores.Feasibility, &idea.Scores.TimeToMarket,
		&analysis, &financials, &idea.Status, &idea.AnalyzedAt, &idea.UpdatedAt); err != nil {
		return Idea{}, err
	}
	if trendID.Valid {
		v := trendID.String
		idea.TrendID = &v
	}
	if desc.Valid {
		idea.Description = desc.String
	}
	if len(analysis) > 0 {
		_ = json.Unmarshal(analysis, &idea.Analysis)
	}
	if len(financials) > 0 {
		_ = json.Unmarshal(financials, &idea.Financials)
	}
	idea.TotalScore = idea.Scores.Total()
	return idea, nil
}

func validIdeaStatus(s string) bool {
	for _, v := range IdeaStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ---- helpers ----

func mustJSON(m map[string]interface{}) []byte {
	if m == nil {
		m = map[string]interface{}{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return []byte("{}")
	}
	return b
}

func nullableString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableStringPtr(s *string) sql.NullString {
	if s == nil || strings.TrimSpace(*s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableBytes(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return b
}
