package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/venturist-ai/venturist/config"
	"github.com/venturist-ai/venturist/internal/agent"
	"github.com/venturist-ai/venturist/internal/store"
)

// Scheduler periodically fires configured agent jobs. A Redis lock keyed by
// agent type keeps multiple replicas from double-running the same job.
type Scheduler struct {
	Store    *store.Store
	Runner   *agent.Runner
	Rdb      *redis.Client
	Jobs     []config.ScheduledJob
	Interval time.Duration
	Logger   *log.Logger
	Stop     chan struct{}
}

func NewScheduler(st *store.Store, runner *agent.Runner, rdb *redis.Client, jobs []config.ScheduledJob, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	return &Scheduler{
		Store:    st,
		Runner:   runner,
		Rdb:      rdb,
		Jobs:     jobs,
		Interval: 1 * time.Minute,
		Logger:   logger,
		Stop:     make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(s.Interval)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	for _, job := range s.Jobs {
		if !s.Runner.Known(job.AgentType) {
			s.Logger.Printf("skipping job for unknown agent type %s", job.AgentType)
			continue
		}
		last, err := s.Store.LatestExecutionTime(ctx, job.AgentType)
		if err != nil {
			s.Logger.Printf("last execution time for %s: %v", job.AgentType, err)
			continue
		}
		if !isDue(job.Cron, last) {
			continue
		}

		if s.Rdb != nil {
			lockKey := "sched:lock:" + job.AgentType
			ok, err := s.Rdb.SetNX(ctx, lockKey, "1", 2*time.Minute).Result()
			if err != nil {
				s.Logger.Printf("lock %s: %v", lockKey, err)
				continue
			}
			if !ok {
				continue
			}
		}

		go func(job config.ScheduledJob) {
			// jitter to avoid stampedes across job types
			time.Sleep(time.Duration(250+time.Now().UnixNano()%250) * time.Millisecond)
			if _, err := s.Runner.Run(context.Background(), job.AgentType, job.Params); err != nil {
				s.Logger.Printf("scheduled %s run failed: %v", job.AgentType, err)
			}
		}(job)
	}
}

// isDue determines whether a job with cronSpec should run now given its last
// execution time. Supports "@daily", "@hourly", and 5-field cron expressions;
// an unparsable spec falls back to @daily.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
