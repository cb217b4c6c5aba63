// Package scheduler decides when and how many times the article
// pipeline runs: credit-gated batches and recurring schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"blogsmith/internal/core"
	"blogsmith/internal/logger"
	"blogsmith/internal/persistence"
	"blogsmith/internal/pipeline"
)

// ErrNoCredits signals a normal stop: the user has no generation
// credits left. Not an error condition for batch callers.
var ErrNoCredits = persistence.ErrNoCredits

// ArticleGenerator runs one end-to-end article generation.
type ArticleGenerator interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error)
}

// Pacer spaces successive articles within one batch.
type Pacer interface {
	Wait(ctx context.Context) error
}

type noopPacer struct{}

func (noopPacer) Wait(ctx context.Context) error { return ctx.Err() }

// Coordinator gates pipeline runs on credits and timing.
type Coordinator struct {
	generator    ArticleGenerator
	credits      persistence.CreditRepository
	schedules    persistence.ScheduleRepository
	pacer        Pacer
	maxBatchSize int
}

// NewCoordinator wires the coordinator. A nil pacer disables pacing;
// maxBatchSize <= 0 defaults to 10.
func NewCoordinator(generator ArticleGenerator, credits persistence.CreditRepository, schedules persistence.ScheduleRepository, pacer Pacer, maxBatchSize int) *Coordinator {
	if pacer == nil {
		pacer = noopPacer{}
	}
	if maxBatchSize <= 0 {
		maxBatchSize = 10
	}
	return &Coordinator{
		generator:    generator,
		credits:      credits,
		schedules:    schedules,
		pacer:        pacer,
		maxBatchSize: maxBatchSize,
	}
}

// BatchRequest asks for Count articles from one seed for one user.
type BatchRequest struct {
	Seed           pipeline.Seed
	UserID         string
	Count          int
	HumanizeLevel  core.HumanizeLevel
	TargetKeywords []string
	InternalLinks  []string
	BrandInfo      string
}

// ItemError records which batch item failed and why.
type ItemError struct {
	Index int
	Err   error
}

// BatchResult carries however many articles succeeded plus per-item
// failures. Stopped is true when the batch ended before Count items,
// either on a fatal error or on credit exhaustion.
type BatchResult struct {
	Articles         []core.FinalArticle
	Warnings         []core.StageWarning
	Errors           []ItemError
	Stopped          bool
	CreditsExhausted bool
}

// GenerateBatch runs the pipeline up to req.Count times sequentially.
// The first fatal run stops the batch; already-produced articles are
// kept and returned. Credit exhaustion is a normal stop, not an error.
func (c *Coordinator) GenerateBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if req.UserID == "" {
		return nil, errors.New("user id is required")
	}
	count := req.Count
	if count <= 0 {
		count = 1
	}
	if count > c.maxBatchSize {
		logger.Warn("batch size capped", "requested", count, "cap", c.maxBatchSize)
		count = c.maxBatchSize
	}

	result := &BatchResult{}
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			result.Stopped = true
			result.Errors = append(result.Errors, ItemError{Index: i, Err: err})
			break
		}

		account, err := c.credits.Get(ctx, req.UserID)
		if err != nil && !errors.Is(err, persistence.ErrNotFound) {
			// A store failure is not a credit stop; report it as an
			// item error so callers can tell the two apart.
			logger.Error("credit lookup failed", err, "user", req.UserID, "item", i)
			result.Stopped = true
			result.Errors = append(result.Errors, ItemError{Index: i, Err: fmt.Errorf("failed to check credits: %w", err)})
			break
		}
		if err != nil || account.CreditsRemaining < 1 {
			result.Stopped = true
			result.CreditsExhausted = true
			logger.Info("stopping batch, no credits remaining", "user", req.UserID, "produced", len(result.Articles))
			break
		}

		if i > 0 {
			if err := c.pacer.Wait(ctx); err != nil {
				result.Stopped = true
				result.Errors = append(result.Errors, ItemError{Index: i, Err: err})
				break
			}
		}

		run, err := c.generator.Run(ctx, pipeline.Options{
			Seed:           req.Seed,
			UserID:         req.UserID,
			HumanizeLevel:  req.HumanizeLevel,
			TargetKeywords: req.TargetKeywords,
			InternalLinks:  req.InternalLinks,
			BrandInfo:      req.BrandInfo,
		})
		if err != nil {
			logger.Error("batch item failed", err, "user", req.UserID, "item", i)
			result.Stopped = true
			result.Errors = append(result.Errors, ItemError{Index: i, Err: err})
			break
		}

		if err := c.credits.Decrement(ctx, req.UserID); err != nil {
			// The pre-run gate passed but another actor spent the last
			// credit first. Keep the produced article and stop.
			logger.Warn("credit decrement failed after generation", "user", req.UserID, "error", err.Error())
			result.Articles = append(result.Articles, *run.Article)
			result.Warnings = append(result.Warnings, run.Warnings...)
			result.Stopped = true
			result.CreditsExhausted = true
			break
		}

		result.Articles = append(result.Articles, *run.Article)
		result.Warnings = append(result.Warnings, run.Warnings...)
	}

	return result, nil
}

// RunDue executes every active schedule whose next run has passed.
// Schedules without credits are left untouched. Returns the number of
// schedules that produced an article.
func (c *Coordinator) RunDue(ctx context.Context, now time.Time) (int, error) {
	due, err := c.schedules.ListDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list due schedules: %w", err)
	}

	ran := 0
	for _, schedule := range due {
		if err := ctx.Err(); err != nil {
			return ran, err
		}

		account, err := c.credits.Get(ctx, schedule.UserID)
		if err != nil || account.CreditsRemaining < 1 {
			logger.Info("skipping schedule, no credits", "schedule", schedule.ID, "user", schedule.UserID)
			continue
		}

		run, err := c.generator.Run(ctx, pipeline.Options{
			Seed:   pipeline.Seed{URL: schedule.TargetURL},
			UserID: schedule.UserID,
		})
		if err != nil {
			logger.Error("scheduled generation failed", err, "schedule", schedule.ID)
			continue
		}

		if err := c.credits.Decrement(ctx, schedule.UserID); err != nil {
			logger.Warn("credit decrement failed for schedule", "schedule", schedule.ID, "error", err.Error())
		}

		next, err := NextRunTime(schedule, now)
		if err != nil {
			logger.Error("could not compute next run", err, "schedule", schedule.ID)
			continue
		}
		if err := c.schedules.MarkRun(ctx, schedule.ID, now, next); err != nil {
			logger.Error("could not record schedule run", err, "schedule", schedule.ID)
			continue
		}

		logger.Info("scheduled article generated", "schedule", schedule.ID, "article", run.Article.ID, "next_run", next)
		ran++
	}
	return ran, nil
}

// NextRunTime computes the next fire time after now: same time of day;
// weekly picks the next occurrence of DayOfWeek (0 = Sunday); monthly
// clamps DayOfMonth to the last valid day of the target month.
func NextRunTime(schedule core.Schedule, now time.Time) (time.Time, error) {
	hour, minute, err := parseTimeOfDay(schedule.TimeOfDay)
	if err != nil {
		return time.Time{}, err
	}

	switch schedule.Frequency {
	case core.FrequencyDaily:
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next, nil

	case core.FrequencyWeekly:
		daysAhead := (schedule.DayOfWeek - int(now.Weekday()) + 7) % 7
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location()).
			AddDate(0, 0, daysAhead)
		if !next.After(now) {
			next = next.AddDate(0, 0, 7)
		}
		return next, nil

	case core.FrequencyMonthly:
		next := monthlyOccurrence(now.Year(), now.Month(), schedule.DayOfMonth, hour, minute, now.Location())
		if !next.After(now) {
			year, month := now.Year(), now.Month()+1
			if month > time.December {
				year, month = year+1, time.January
			}
			next = monthlyOccurrence(year, month, schedule.DayOfMonth, hour, minute, now.Location())
		}
		return next, nil

	default:
		return time.Time{}, fmt.Errorf("unknown schedule frequency %q", schedule.Frequency)
	}
}

// monthlyOccurrence clamps day to the month's last valid day, so a
// day-31 schedule fires on the 30th of a 30-day month.
func monthlyOccurrence(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > lastDay {
		day = lastDay
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

func parseTimeOfDay(value string) (hour, minute int, err error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day %q, want HH:MM", value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour, minute, nil
}
