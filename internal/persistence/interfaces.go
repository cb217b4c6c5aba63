// Package persistence provides database access for posts, credits and
// publishing schedules.
package persistence

import (
	"context"
	"errors"
	"time"

	"blogsmith/internal/core"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoCredits is returned when a decrement finds no credit to spend.
var ErrNoCredits = errors.New("no credits remaining")

// ListOptions holds common pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// PostRepository stores finished articles.
type PostRepository interface {
	Save(ctx context.Context, post *core.FinalArticle) error
	Get(ctx context.Context, id string) (*core.FinalArticle, error)
	// ListRecent returns the user's newest posts, newest first. Used for
	// the similarity window during generation.
	ListRecent(ctx context.Context, userID string, limit int) ([]core.FinalArticle, error)
	List(ctx context.Context, userID string, opts ListOptions) ([]core.FinalArticle, error)
	Delete(ctx context.Context, id string) error
}

// CreditRepository tracks per-user generation credits.
type CreditRepository interface {
	Get(ctx context.Context, userID string) (*core.CreditAccount, error)
	// Decrement spends one credit. It must be atomic: concurrent calls
	// never drive the balance below zero. Returns ErrNoCredits when the
	// balance is already exhausted.
	Decrement(ctx context.Context, userID string) error
	Grant(ctx context.Context, userID string, amount int) error
}

// ScheduleRepository stores recurring publishing schedules.
type ScheduleRepository interface {
	Upsert(ctx context.Context, schedule *core.Schedule) error
	Get(ctx context.Context, id string) (*core.Schedule, error)
	ListByUser(ctx context.Context, userID string) ([]core.Schedule, error)
	// ListDue returns active schedules whose next run is at or before now.
	ListDue(ctx context.Context, now time.Time) ([]core.Schedule, error)
	// MarkRun records a completed run and the next computed fire time.
	MarkRun(ctx context.Context, id string, lastRun, nextRun time.Time) error
	Delete(ctx context.Context, id string) error
}

// Database is the top-level persistence interface.
type Database interface {
	Posts() PostRepository
	Credits() CreditRepository
	Schedules() ScheduleRepository

	Ping(ctx context.Context) error
	Close() error
}
