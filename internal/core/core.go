package core

import "time"

// HumanizeLevel selects how aggressively the humanize stage rewrites tone.
type HumanizeLevel string

const (
	HumanizeNormal   HumanizeLevel = "normal"
	HumanizeHardcore HumanizeLevel = "hardcore"
)

// ResearchSource is a single scraped web source. Immutable once fetched;
// it lives only for the duration of a pipeline run.
type ResearchSource struct {
	URL        string `json:"url"`         // Source URL
	RawContent string `json:"raw_content"` // Cleaned text content
	Title      string `json:"title"`       // Page title, may be empty
}

// ExtractedKeyword is a keyword pulled from research content with a
// relevance weight.
type ExtractedKeyword struct {
	Keyword   string  `json:"keyword"`
	Relevance float64 `json:"relevance"`
}

// ResearchBundle aggregates everything the drafting stages consume.
// Built once per article during RESEARCH and read-only downstream.
// Sources may be empty, but CoreTopic must be non-empty before drafting.
type ResearchBundle struct {
	InitialSeed        string             `json:"initial_seed"`        // Seed URL or headline
	InitialSummary     string             `json:"initial_summary"`     // Summary of the seed content
	Sources            []ResearchSource   `json:"sources"`             // Scraped research sources
	CombinedSummary    string             `json:"combined_summary"`    // Concatenated source digest
	CoreTopic          string             `json:"core_topic"`          // Topic derived from scraped text
	BrandInfo          string             `json:"brand_info"`          // Brand/business context
	YouTubeURL         string             `json:"youtube_url"`         // Optional video found during research
	InternalLinks      []string           `json:"internal_links"`      // Same-site link candidates
	ExternalReferences []string           `json:"external_references"` // Authority link candidates
	ExistingPostTitles []string           `json:"existing_post_titles"`
	ExistingPostBodies []string           `json:"existing_post_bodies"`
	TargetKeywords     []string           `json:"target_keywords"`
	ExtractedKeywords  []ExtractedKeyword `json:"extracted_keywords"`
	Timestamp          time.Time          `json:"timestamp"`
	DiversityNudge     string             `json:"diversity_nudge"` // Extra instruction to steer away from recent posts
}

// Heading is one entry of a generated article's table of contents.
type Heading struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Level int    `json:"level"`
}

// FinalArticle is one generated blog post in final HTML form. Created by
// the pipeline, refined in place during the run, persisted exactly once.
type FinalArticle struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	HTMLBody   string    `json:"html_body"`
	SEOScore   int       `json:"seo_score"`
	Headings   []Heading `json:"headings"`
	Keywords   []string  `json:"keywords"`
	Citations  []string  `json:"citations"`
	CreatedAt  time.Time `json:"created_at"`
	RevealDate time.Time `json:"reveal_date"`
	SourceURL  string    `json:"source_url,omitempty"`
}

// StageWarning records a degraded-but-nonfatal event inside one pipeline
// stage, typically a provider call that fell back to canned text.
type StageWarning struct {
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// CreditAccount mirrors the persisted per-user entitlement row.
// CreditsRemaining <= 0 is a normal stop condition, not an error.
type CreditAccount struct {
	UserID           string `json:"user_id"`
	PlanID           string `json:"plan_id"`
	CreditsRemaining int    `json:"credits_remaining"`
}

// ScheduleFrequency is how often a recurring schedule fires.
type ScheduleFrequency string

const (
	FrequencyDaily   ScheduleFrequency = "daily"
	FrequencyWeekly  ScheduleFrequency = "weekly"
	FrequencyMonthly ScheduleFrequency = "monthly"
)

// Schedule is a recurring article-generation configuration. DayOfWeek is
// 0=Sunday. DayOfMonth beyond the target month's length clamps to the
// month's last day.
type Schedule struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	TargetURL  string            `json:"target_url"`
	Frequency  ScheduleFrequency `json:"frequency"`
	DayOfWeek  int               `json:"day_of_week"`  // Weekly only
	DayOfMonth int               `json:"day_of_month"` // Monthly only
	TimeOfDay  string            `json:"time_of_day"`  // "HH:MM", 24h
	IsActive   bool              `json:"is_active"`
	LastRun    time.Time         `json:"last_run"` // Zero value if never run
	NextRun    time.Time         `json:"next_run"`
}
