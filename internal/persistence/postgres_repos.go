package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"blogsmith/internal/core"
)

// postgresPostRepo implements PostRepository for PostgreSQL.
type postgresPostRepo struct {
	db *sql.DB
}

var postColumns = []string{
	"id", "user_id", "title", "html_body", "seo_score",
	"headings", "keywords", "citations", "created_at", "reveal_date", "source_url",
}

func (r *postgresPostRepo) Save(ctx context.Context, post *core.FinalArticle) error {
	headingsJSON, err := json.Marshal(post.Headings)
	if err != nil {
		return fmt.Errorf("failed to marshal headings: %w", err)
	}

	query, args, err := psql.Insert("posts").
		Columns(postColumns...).
		Values(
			post.ID, post.UserID, post.Title, post.HTMLBody, post.SEOScore,
			headingsJSON, pq.Array(post.Keywords), pq.Array(post.Citations),
			post.CreatedAt, post.RevealDate, post.SourceURL,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			html_body = EXCLUDED.html_body,
			seo_score = EXCLUDED.seo_score,
			headings = EXCLUDED.headings,
			keywords = EXCLUDED.keywords,
			citations = EXCLUDED.citations,
			reveal_date = EXCLUDED.reveal_date,
			source_url = EXCLUDED.source_url`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build post insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert/update post: %w", err)
	}
	return nil
}

func (r *postgresPostRepo) Get(ctx context.Context, id string) (*core.FinalArticle, error) {
	query, args, err := psql.Select(postColumns...).
		From("posts").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.scanPost(r.db.QueryRowContext(ctx, query, args...))
}

func (r *postgresPostRepo) ListRecent(ctx context.Context, userID string, limit int) ([]core.FinalArticle, error) {
	return r.List(ctx, userID, ListOptions{Limit: limit})
}

func (r *postgresPostRepo) List(ctx context.Context, userID string, opts ListOptions) ([]core.FinalArticle, error) {
	limit := opts.Limit
	if limit == 0 {
		limit = 100
	}

	query, args, err := psql.Select(postColumns...).
		From("posts").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(opts.Offset)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []core.FinalArticle
	for rows.Next() {
		post, err := r.scanPostRow(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	return posts, rows.Err()
}

func (r *postgresPostRepo) Delete(ctx context.Context, id string) error {
	query, args, err := psql.Delete("posts").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *postgresPostRepo) scanPost(row *sql.Row) (*core.FinalArticle, error) {
	var post core.FinalArticle
	var headingsJSON []byte
	var sourceURL sql.NullString

	err := row.Scan(
		&post.ID, &post.UserID, &post.Title, &post.HTMLBody, &post.SEOScore,
		&headingsJSON, pq.Array(&post.Keywords), pq.Array(&post.Citations),
		&post.CreatedAt, &post.RevealDate, &sourceURL,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	post.SourceURL = sourceURL.String

	if len(headingsJSON) > 0 {
		if err := json.Unmarshal(headingsJSON, &post.Headings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal headings: %w", err)
		}
	}
	return &post, nil
}

func (r *postgresPostRepo) scanPostRow(rows *sql.Rows) (*core.FinalArticle, error) {
	var post core.FinalArticle
	var headingsJSON []byte
	var sourceURL sql.NullString

	err := rows.Scan(
		&post.ID, &post.UserID, &post.Title, &post.HTMLBody, &post.SEOScore,
		&headingsJSON, pq.Array(&post.Keywords), pq.Array(&post.Citations),
		&post.CreatedAt, &post.RevealDate, &sourceURL,
	)
	if err != nil {
		return nil, err
	}
	post.SourceURL = sourceURL.String

	if len(headingsJSON) > 0 {
		if err := json.Unmarshal(headingsJSON, &post.Headings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal headings: %w", err)
		}
	}
	return &post, nil
}

// postgresCreditRepo implements CreditRepository for PostgreSQL.
type postgresCreditRepo struct {
	db *sql.DB
}

func (r *postgresCreditRepo) Get(ctx context.Context, userID string) (*core.CreditAccount, error) {
	query, args, err := psql.Select("user_id", "plan_id", "credits_remaining").
		From("credit_accounts").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var account core.CreditAccount
	err = r.db.QueryRowContext(ctx, query, args...).
		Scan(&account.UserID, &account.PlanID, &account.CreditsRemaining)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Decrement spends one credit with a conditional update so concurrent
// spenders can never push the balance negative.
func (r *postgresCreditRepo) Decrement(ctx context.Context, userID string) error {
	query, args, err := psql.Update("credit_accounts").
		Set("credits_remaining", sq.Expr("credits_remaining - 1")).
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Gt{"credits_remaining": 0}).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to decrement credits for %s: %w", userID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoCredits
	}
	return nil
}

func (r *postgresCreditRepo) Grant(ctx context.Context, userID string, amount int) error {
	query, args, err := psql.Update("credit_accounts").
		Set("credits_remaining", sq.Expr("credits_remaining + ?", amount)).
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to grant credits to %s: %w", userID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// postgresScheduleRepo implements ScheduleRepository for PostgreSQL.
type postgresScheduleRepo struct {
	db *sql.DB
}

var scheduleColumns = []string{
	"id", "user_id", "target_url", "frequency", "day_of_week",
	"day_of_month", "time_of_day", "is_active", "last_run", "next_run",
}

func (r *postgresScheduleRepo) Upsert(ctx context.Context, schedule *core.Schedule) error {
	query, args, err := psql.Insert("schedules").
		Columns(scheduleColumns...).
		Values(
			schedule.ID, schedule.UserID, schedule.TargetURL, string(schedule.Frequency),
			schedule.DayOfWeek, schedule.DayOfMonth, schedule.TimeOfDay,
			schedule.IsActive, nullableTime(schedule.LastRun), schedule.NextRun,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			target_url = EXCLUDED.target_url,
			frequency = EXCLUDED.frequency,
			day_of_week = EXCLUDED.day_of_week,
			day_of_month = EXCLUDED.day_of_month,
			time_of_day = EXCLUDED.time_of_day,
			is_active = EXCLUDED.is_active,
			next_run = EXCLUDED.next_run`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build schedule upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert schedule: %w", err)
	}
	return nil
}

func (r *postgresScheduleRepo) Get(ctx context.Context, id string) (*core.Schedule, error) {
	query, args, err := psql.Select(scheduleColumns...).
		From("schedules").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	schedule, err := scanSchedule(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return schedule, err
}

func (r *postgresScheduleRepo) ListByUser(ctx context.Context, userID string) ([]core.Schedule, error) {
	builder := psql.Select(scheduleColumns...).
		From("schedules").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("next_run ASC")
	return r.list(ctx, builder)
}

func (r *postgresScheduleRepo) ListDue(ctx context.Context, now time.Time) ([]core.Schedule, error) {
	builder := psql.Select(scheduleColumns...).
		From("schedules").
		Where(sq.Eq{"is_active": true}).
		Where(sq.LtOrEq{"next_run": now}).
		OrderBy("next_run ASC")
	return r.list(ctx, builder)
}

func (r *postgresScheduleRepo) list(ctx context.Context, builder sq.SelectBuilder) ([]core.Schedule, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []core.Schedule
	for rows.Next() {
		schedule, err := scanScheduleRow(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *schedule)
	}
	return schedules, rows.Err()
}

func (r *postgresScheduleRepo) MarkRun(ctx context.Context, id string, lastRun, nextRun time.Time) error {
	query, args, err := psql.Update("schedules").
		Set("last_run", lastRun).
		Set("next_run", nextRun).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark schedule run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresScheduleRepo) Delete(ctx context.Context, id string) error {
	query, args, err := psql.Delete("schedules").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func scanSchedule(row *sql.Row) (*core.Schedule, error) {
	var schedule core.Schedule
	var frequency string
	var lastRun sql.NullTime

	err := row.Scan(
		&schedule.ID, &schedule.UserID, &schedule.TargetURL, &frequency,
		&schedule.DayOfWeek, &schedule.DayOfMonth, &schedule.TimeOfDay,
		&schedule.IsActive, &lastRun, &schedule.NextRun,
	)
	if err != nil {
		return nil, err
	}
	schedule.Frequency = core.ScheduleFrequency(frequency)
	schedule.LastRun = lastRun.Time
	return &schedule, nil
}

func scanScheduleRow(rows *sql.Rows) (*core.Schedule, error) {
	var schedule core.Schedule
	var frequency string
	var lastRun sql.NullTime

	err := rows.Scan(
		&schedule.ID, &schedule.UserID, &schedule.TargetURL, &frequency,
		&schedule.DayOfWeek, &schedule.DayOfMonth, &schedule.TimeOfDay,
		&schedule.IsActive, &lastRun, &schedule.NextRun,
	)
	if err != nil {
		return nil, err
	}
	schedule.Frequency = core.ScheduleFrequency(frequency)
	schedule.LastRun = lastRun.Time
	return &schedule, nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
