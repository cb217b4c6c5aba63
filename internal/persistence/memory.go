package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"blogsmith/internal/core"
)

// MemoryDB is an in-memory Database for tests and dry runs. Safe for
// concurrent use.
type MemoryDB struct {
	posts     *memoryPostRepo
	credits   *memoryCreditRepo
	schedules *memoryScheduleRepo
}

// NewMemoryDB creates an empty in-memory database.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		posts:     &memoryPostRepo{posts: make(map[string]core.FinalArticle)},
		credits:   &memoryCreditRepo{accounts: make(map[string]core.CreditAccount)},
		schedules: &memoryScheduleRepo{schedules: make(map[string]core.Schedule)},
	}
}

func (m *MemoryDB) Posts() PostRepository         { return m.posts }
func (m *MemoryDB) Credits() CreditRepository     { return m.credits }
func (m *MemoryDB) Schedules() ScheduleRepository { return m.schedules }

func (m *MemoryDB) Ping(ctx context.Context) error { return nil }
func (m *MemoryDB) Close() error                   { return nil }

type memoryPostRepo struct {
	mu    sync.Mutex
	posts map[string]core.FinalArticle
}

func (r *memoryPostRepo) Save(ctx context.Context, post *core.FinalArticle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts[post.ID] = *post
	return nil
}

func (r *memoryPostRepo) Get(ctx context.Context, id string) (*core.FinalArticle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &post, nil
}

func (r *memoryPostRepo) ListRecent(ctx context.Context, userID string, limit int) ([]core.FinalArticle, error) {
	return r.List(ctx, userID, ListOptions{Limit: limit})
}

func (r *memoryPostRepo) List(ctx context.Context, userID string, opts ListOptions) ([]core.FinalArticle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var posts []core.FinalArticle
	for _, post := range r.posts {
		if post.UserID == userID {
			posts = append(posts, post)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(posts) {
			return nil, nil
		}
		posts = posts[opts.Offset:]
	}
	limit := opts.Limit
	if limit == 0 {
		limit = 100
	}
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (r *memoryPostRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, id)
	return nil
}

type memoryCreditRepo struct {
	mu       sync.Mutex
	accounts map[string]core.CreditAccount
}

func (r *memoryCreditRepo) Get(ctx context.Context, userID string) (*core.CreditAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &account, nil
}

func (r *memoryCreditRepo) Decrement(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[userID]
	if !ok || account.CreditsRemaining <= 0 {
		return ErrNoCredits
	}
	account.CreditsRemaining--
	r.accounts[userID] = account
	return nil
}

func (r *memoryCreditRepo) Grant(ctx context.Context, userID string, amount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[userID]
	if !ok {
		account = core.CreditAccount{UserID: userID, PlanID: "free"}
	}
	account.CreditsRemaining += amount
	r.accounts[userID] = account
	return nil
}

type memoryScheduleRepo struct {
	mu        sync.Mutex
	schedules map[string]core.Schedule
}

func (r *memoryScheduleRepo) Upsert(ctx context.Context, schedule *core.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[schedule.ID] = *schedule
	return nil
}

func (r *memoryScheduleRepo) Get(ctx context.Context, id string) (*core.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	schedule, ok := r.schedules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &schedule, nil
}

func (r *memoryScheduleRepo) ListByUser(ctx context.Context, userID string) ([]core.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var schedules []core.Schedule
	for _, schedule := range r.schedules {
		if schedule.UserID == userID {
			schedules = append(schedules, schedule)
		}
	}
	sort.Slice(schedules, func(i, j int) bool {
		return schedules[i].NextRun.Before(schedules[j].NextRun)
	})
	return schedules, nil
}

func (r *memoryScheduleRepo) ListDue(ctx context.Context, now time.Time) ([]core.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []core.Schedule
	for _, schedule := range r.schedules {
		if schedule.IsActive && !schedule.NextRun.After(now) {
			due = append(due, schedule)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextRun.Before(due[j].NextRun)
	})
	return due, nil
}

func (r *memoryScheduleRepo) MarkRun(ctx context.Context, id string, lastRun, nextRun time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	schedule, ok := r.schedules[id]
	if !ok {
		return ErrNotFound
	}
	schedule.LastRun = lastRun
	schedule.NextRun = nextRun
	r.schedules[id] = schedule
	return nil
}

func (r *memoryScheduleRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.schedules, id)
	return nil
}
