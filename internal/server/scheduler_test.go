package server

import (
	"testing"
	"time"
)

func TestIsDueNeverRan(t *testing.T) {
	if !isDue("@daily", nil) {
		t.Fatal("job that never ran should be due")
	}
	if !isDue("0 * * * *", nil) {
		t.Fatal("cron job that never ran should be due")
	}
}

func TestIsDueDaily(t *testing.T) {
	recent := time.Now().Add(-1 * time.Hour)
	if isDue("@daily", &recent) {
		t.Fatal("daily job run an hour ago should not be due")
	}
	old := time.Now().Add(-25 * time.Hour)
	if !isDue("@daily", &old) {
		t.Fatal("daily job run 25h ago should be due")
	}
}

func TestIsDueHourly(t *testing.T) {
	recent := time.Now().Add(-10 * time.Minute)
	if isDue("@hourly", &recent) {
		t.Fatal("hourly job run 10m ago should not be due")
	}
	old := time.Now().Add(-2 * time.Hour)
	if !isDue("@hourly", &old) {
		t.Fatal("hourly job run 2h ago should be due")
	}
}

func TestIsDueCronExpression(t *testing.T) {
	// every hour at minute 0
	old := time.Now().Add(-3 * time.Hour)
	if !isDue("0 * * * *", &old) {
		t.Fatal("hourly cron last run 3h ago should be due")
	}
	justNow := time.Now().Add(-10 * time.Second)
	if isDue("0 0 1 1 *", &justNow) {
		t.Fatal("yearly cron run seconds ago should not be due")
	}
}

func TestIsDueInvalidSpecFallsBackToDaily(t *testing.T) {
	recent := time.Now().Add(-1 * time.Hour)
	if isDue("not-a-cron", &recent) {
		t.Fatal("invalid spec with recent run should not be due")
	}
	old := time.Now().Add(-30 * time.Hour)
	if !isDue("not-a-cron", &old) {
		t.Fatal("invalid spec with stale run should be due")
	}
}
