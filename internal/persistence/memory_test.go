package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"blogsmith/internal/core"
)

func TestMemoryPostListRecentOrdersNewestFirst(t *testing.T) {
	db := NewMemoryDB()
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		err := db.Posts().Save(ctx, &core.FinalArticle{
			ID:        id,
			UserID:    "u1",
			Title:     "post " + id,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if err := db.Posts().Save(ctx, &core.FinalArticle{ID: "other", UserID: "u2", CreatedAt: base}); err != nil {
		t.Fatal(err)
	}

	posts, err := db.Posts().ListRecent(ctx, "u1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}
	if posts[0].ID != "c" || posts[1].ID != "b" {
		t.Errorf("wrong order: %s, %s", posts[0].ID, posts[1].ID)
	}
}

func TestMemoryCreditDecrementNeverGoesNegative(t *testing.T) {
	db := NewMemoryDB()
	ctx := context.Background()

	if err := db.Credits().Grant(ctx, "u1", 5); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := db.Credits().Decrement(ctx, "u1"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 5 {
		t.Errorf("expected exactly 5 successful decrements, got %d", succeeded)
	}
	account, err := db.Credits().Get(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if account.CreditsRemaining != 0 {
		t.Errorf("expected 0 credits, got %d", account.CreditsRemaining)
	}
}

func TestMemoryCreditDecrementUnknownUser(t *testing.T) {
	db := NewMemoryDB()
	if err := db.Credits().Decrement(context.Background(), "nobody"); err != ErrNoCredits {
		t.Errorf("expected ErrNoCredits, got %v", err)
	}
}

func TestMemoryScheduleListDue(t *testing.T) {
	db := NewMemoryDB()
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	for _, s := range []core.Schedule{
		{ID: "due", UserID: "u1", IsActive: true, NextRun: now.Add(-time.Hour)},
		{ID: "future", UserID: "u1", IsActive: true, NextRun: now.Add(time.Hour)},
		{ID: "inactive", UserID: "u1", IsActive: false, NextRun: now.Add(-time.Hour)},
	} {
		schedule := s
		if err := db.Schedules().Upsert(ctx, &schedule); err != nil {
			t.Fatal(err)
		}
	}

	due, err := db.Schedules().ListDue(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0].ID != "due" {
		t.Errorf("expected only the due schedule, got %v", due)
	}
}

func TestMemoryScheduleMarkRun(t *testing.T) {
	db := NewMemoryDB()
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	next := now.Add(24 * time.Hour)

	if err := db.Schedules().Upsert(ctx, &core.Schedule{ID: "s1", UserID: "u1", IsActive: true, NextRun: now}); err != nil {
		t.Fatal(err)
	}
	if err := db.Schedules().MarkRun(ctx, "s1", now, next); err != nil {
		t.Fatal(err)
	}

	got, err := db.Schedules().Get(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.LastRun.Equal(now) || !got.NextRun.Equal(next) {
		t.Errorf("run not recorded: last=%v next=%v", got.LastRun, got.NextRun)
	}

	if err := db.Schedules().MarkRun(ctx, "missing", now, next); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
