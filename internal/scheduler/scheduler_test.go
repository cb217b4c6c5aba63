package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"blogsmith/internal/core"
	"blogsmith/internal/persistence"
	"blogsmith/internal/pipeline"
)

// fakeGenerator produces numbered articles and can fail on a chosen
// call.
type fakeGenerator struct {
	calls      int
	failOnCall int // 1-based; 0 means never fail
}

func (f *fakeGenerator) Run(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error) {
	f.calls++
	if f.failOnCall > 0 && f.calls == f.failOnCall {
		return nil, errors.New("injected fatal error")
	}
	return &pipeline.Result{
		Article: &core.FinalArticle{
			ID:        string(rune('a' + f.calls - 1)),
			UserID:    opts.UserID,
			Title:     "generated",
			CreatedAt: time.Now().UTC(),
		},
	}, nil
}

func newTestCoordinator(t *testing.T, gen ArticleGenerator, credits int) (*Coordinator, *persistence.MemoryDB) {
	t.Helper()
	db := persistence.NewMemoryDB()
	if credits > 0 {
		if err := db.Credits().Grant(context.Background(), "u1", credits); err != nil {
			t.Fatal(err)
		}
	}
	return NewCoordinator(gen, db.Credits(), db.Schedules(), nil, 10), db
}

// failingCreditRepo simulates a credit store whose reads fail.
type failingCreditRepo struct {
	persistence.CreditRepository
}

func (f *failingCreditRepo) Get(ctx context.Context, userID string) (*core.CreditAccount, error) {
	return nil, errors.New("connection refused")
}

func TestGenerateBatchReportsCreditLookupFailure(t *testing.T) {
	gen := &fakeGenerator{}
	db := persistence.NewMemoryDB()
	c := NewCoordinator(gen, &failingCreditRepo{db.Credits()}, db.Schedules(), nil, 10)

	result, err := c.GenerateBatch(context.Background(), BatchRequest{
		Seed:   pipeline.Seed{Headline: "topic"},
		UserID: "u1",
		Count:  3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.CreditsExhausted {
		t.Error("a store failure must not be reported as exhausted credits")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected one item error, got %v", result.Errors)
	}
	if !strings.Contains(result.Errors[0].Err.Error(), "failed to check credits") {
		t.Errorf("unexpected error: %v", result.Errors[0].Err)
	}
	if gen.calls != 0 {
		t.Errorf("generator should not run after a failed credit lookup, got %d calls", gen.calls)
	}
}

func TestGenerateBatchStopsAtFirstFatalError(t *testing.T) {
	gen := &fakeGenerator{failOnCall: 3}
	c, _ := newTestCoordinator(t, gen, 10)

	result, err := c.GenerateBatch(context.Background(), BatchRequest{
		Seed:   pipeline.Seed{Headline: "topic"},
		UserID: "u1",
		Count:  5,
	})
	if err != nil {
		t.Fatalf("batch should not fail outright: %v", err)
	}
	if len(result.Articles) != 2 {
		t.Errorf("expected 2 completed articles before the fatal item, got %d", len(result.Articles))
	}
	if !result.Stopped {
		t.Error("batch should report an early stop")
	}
	if len(result.Errors) != 1 || result.Errors[0].Index != 2 {
		t.Errorf("expected one error at index 2, got %v", result.Errors)
	}
}

func TestGenerateBatchCreditGate(t *testing.T) {
	gen := &fakeGenerator{}
	c, db := newTestCoordinator(t, gen, 2)

	result, err := c.GenerateBatch(context.Background(), BatchRequest{
		Seed:   pipeline.Seed{Headline: "topic"},
		UserID: "u1",
		Count:  5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Articles) != 2 {
		t.Errorf("expected 2 articles from 2 credits, got %d", len(result.Articles))
	}
	if !result.CreditsExhausted {
		t.Error("expected credit exhaustion to be reported")
	}
	if len(result.Errors) != 0 {
		t.Errorf("credit exhaustion is not an error: %v", result.Errors)
	}

	account, err := db.Credits().Get(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if account.CreditsRemaining != 0 {
		t.Errorf("expected 0 credits left, got %d", account.CreditsRemaining)
	}
}

func TestGenerateBatchNoCreditsProducesNothing(t *testing.T) {
	gen := &fakeGenerator{}
	c, _ := newTestCoordinator(t, gen, 0)

	result, err := c.GenerateBatch(context.Background(), BatchRequest{
		Seed:   pipeline.Seed{Headline: "topic"},
		UserID: "u1",
		Count:  3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Articles) != 0 || !result.CreditsExhausted {
		t.Errorf("expected empty exhausted batch, got %+v", result)
	}
	if gen.calls != 0 {
		t.Errorf("pipeline should not run without credits, ran %d times", gen.calls)
	}
}

func TestGenerateBatchCapsCount(t *testing.T) {
	gen := &fakeGenerator{}
	db := persistence.NewMemoryDB()
	if err := db.Credits().Grant(context.Background(), "u1", 100); err != nil {
		t.Fatal(err)
	}
	c := NewCoordinator(gen, db.Credits(), db.Schedules(), nil, 3)

	result, err := c.GenerateBatch(context.Background(), BatchRequest{
		Seed:   pipeline.Seed{Headline: "topic"},
		UserID: "u1",
		Count:  50,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Articles) != 3 {
		t.Errorf("expected batch capped at 3, got %d", len(result.Articles))
	}
}

func TestNextRunTimeDailyRollsOver(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC) // Monday 10:00
	next, err := NextRunTime(core.Schedule{
		Frequency: core.FrequencyDaily,
		TimeOfDay: "09:00",
	}, now)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNextRunTimeWeeklyUpcomingWednesday(t *testing.T) {
	// Monday 2025-03-10 10:00, schedule fires Wednesdays at 09:00.
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	next, err := NextRunTime(core.Schedule{
		Frequency: core.FrequencyWeekly,
		DayOfWeek: 3,
		TimeOfDay: "09:00",
	}, now)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected upcoming Wednesday %v, got %v", want, next)
	}
}

func TestNextRunTimeWeeklySameDayPassedTime(t *testing.T) {
	// Wednesday 10:00 with a 09:00 Wednesday schedule goes to next week.
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	next, err := NextRunTime(core.Schedule{
		Frequency: core.FrequencyWeekly,
		DayOfWeek: 3,
		TimeOfDay: "09:00",
	}, now)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2025, 3, 19, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected next week's Wednesday %v, got %v", want, next)
	}
}

func TestNextRunTimeMonthlyClampsToMonthEnd(t *testing.T) {
	// April has 30 days; a day-31 schedule fires on the 30th.
	now := time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC)
	next, err := NextRunTime(core.Schedule{
		Frequency:  core.FrequencyMonthly,
		DayOfMonth: 31,
		TimeOfDay:  "09:00",
	}, now)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2025, 4, 30, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected clamp to April 30, got %v", next)
	}
}

func TestNextRunTimeMonthlyAdvancesYear(t *testing.T) {
	now := time.Date(2025, 12, 20, 10, 0, 0, 0, time.UTC)
	next, err := NextRunTime(core.Schedule{
		Frequency:  core.FrequencyMonthly,
		DayOfMonth: 5,
		TimeOfDay:  "09:00",
	}, now)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected January 5 next year, got %v", next)
	}
}

func TestNextRunTimeRejectsBadInput(t *testing.T) {
	if _, err := NextRunTime(core.Schedule{Frequency: core.FrequencyDaily, TimeOfDay: "25:00"}, time.Now()); err == nil {
		t.Error("expected error for invalid hour")
	}
	if _, err := NextRunTime(core.Schedule{Frequency: "hourly", TimeOfDay: "09:00"}, time.Now()); err == nil {
		t.Error("expected error for unknown frequency")
	}
}

func TestRunDueExecutesAndReschedules(t *testing.T) {
	gen := &fakeGenerator{}
	c, db := newTestCoordinator(t, gen, 5)

	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	schedule := core.Schedule{
		ID:        "s1",
		UserID:    "u1",
		TargetURL: "https://example.com/source",
		Frequency: core.FrequencyDaily,
		TimeOfDay: "09:00",
		IsActive:  true,
		NextRun:   now.Add(-time.Hour),
	}
	if err := db.Schedules().Upsert(context.Background(), &schedule); err != nil {
		t.Fatal(err)
	}

	ran, err := c.RunDue(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if ran != 1 {
		t.Fatalf("expected 1 schedule run, got %d", ran)
	}

	updated, err := db.Schedules().Get(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	if !updated.LastRun.Equal(now) {
		t.Errorf("last run not recorded: %v", updated.LastRun)
	}
	if !updated.NextRun.After(now) {
		t.Errorf("next run not advanced: %v", updated.NextRun)
	}

	account, _ := db.Credits().Get(context.Background(), "u1")
	if account.CreditsRemaining != 4 {
		t.Errorf("expected 4 credits after one run, got %d", account.CreditsRemaining)
	}
}

func TestRunDueSkipsWithoutCreditsLeavingScheduleUntouched(t *testing.T) {
	gen := &fakeGenerator{}
	c, db := newTestCoordinator(t, gen, 0)

	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	nextRun := now.Add(-time.Hour)
	schedule := core.Schedule{
		ID:        "s1",
		UserID:    "u1",
		TargetURL: "https://example.com/source",
		Frequency: core.FrequencyDaily,
		TimeOfDay: "09:00",
		IsActive:  true,
		NextRun:   nextRun,
	}
	if err := db.Schedules().Upsert(context.Background(), &schedule); err != nil {
		t.Fatal(err)
	}

	ran, err := c.RunDue(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if ran != 0 {
		t.Errorf("expected no runs without credits, got %d", ran)
	}
	if gen.calls != 0 {
		t.Errorf("pipeline should not run, ran %d times", gen.calls)
	}

	untouched, err := db.Schedules().Get(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	if !untouched.NextRun.Equal(nextRun) || !untouched.LastRun.IsZero() {
		t.Errorf("schedule should be untouched, got %+v", untouched)
	}
}
