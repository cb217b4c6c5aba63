package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestResearchBundleCreation(t *testing.T) {
	now := time.Now()
	bundle := ResearchBundle{
		InitialSeed:     "https://example.com/post",
		InitialSummary:  "A summary of the seed page",
		CoreTopic:       "Container Gardening",
		CombinedSummary: "Combined digest of all sources",
		Sources: []ResearchSource{
			{URL: "https://example.com/a", RawContent: "source a", Title: "A"},
			{URL: "https://example.com/b", RawContent: "source b", Title: "B"},
		},
		InternalLinks:      []string{"/", "/blog"},
		ExternalReferences: []string{"https://authority.example.com"},
		TargetKeywords:     []string{"gardening", "containers"},
		ExtractedKeywords: []ExtractedKeyword{
			{Keyword: "raised beds", Relevance: 0.9},
		},
		Timestamp: now,
	}

	if bundle.CoreTopic != "Container Gardening" {
		t.Errorf("Expected CoreTopic to be 'Container Gardening', got %s", bundle.CoreTopic)
	}
	if len(bundle.Sources) != 2 {
		t.Errorf("Expected Sources to have 2 elements, got %d", len(bundle.Sources))
	}
	if len(bundle.ExtractedKeywords) != 1 {
		t.Errorf("Expected ExtractedKeywords to have 1 element, got %d", len(bundle.ExtractedKeywords))
	}
	if bundle.ExtractedKeywords[0].Relevance != 0.9 {
		t.Errorf("Expected Relevance to be 0.9, got %f", bundle.ExtractedKeywords[0].Relevance)
	}
	if bundle.DiversityNudge != "" {
		t.Errorf("Expected DiversityNudge to default empty, got %s", bundle.DiversityNudge)
	}
}

func TestFinalArticleCreation(t *testing.T) {
	now := time.Now()
	article := FinalArticle{
		ID:       "article-1",
		UserID:   "user-1",
		Title:    "Test Article",
		HTMLBody: "<h1>Test Article</h1><p>Body</p>",
		SEOScore: 72,
		Headings: []Heading{
			{ID: "intro", Text: "Introduction", Level: 2},
			{ID: "faq", Text: "Frequently Asked Questions", Level: 2},
		},
		Keywords:   []string{"test", "article"},
		Citations:  []string{"https://example.com/source"},
		CreatedAt:  now,
		RevealDate: now,
		SourceURL:  "https://example.com/seed",
	}

	if article.ID != "article-1" {
		t.Errorf("Expected ID to be 'article-1', got %s", article.ID)
	}
	if article.Title != "Test Article" {
		t.Errorf("Expected Title to be 'Test Article', got %s", article.Title)
	}
	if article.SEOScore != 72 {
		t.Errorf("Expected SEOScore to be 72, got %d", article.SEOScore)
	}
	if len(article.Headings) != 2 {
		t.Errorf("Expected Headings to have 2 elements, got %d", len(article.Headings))
	}
	if article.Headings[1].Level != 2 {
		t.Errorf("Expected second heading Level to be 2, got %d", article.Headings[1].Level)
	}
}

func TestFinalArticleJSONOmitsEmptySourceURL(t *testing.T) {
	article := FinalArticle{ID: "article-2", UserID: "user-1", Title: "No Seed"}

	data, err := json.Marshal(article)
	if err != nil {
		t.Fatalf("Failed to marshal article: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Failed to unmarshal article: %v", err)
	}
	if _, ok := fields["source_url"]; ok {
		t.Error("Expected source_url to be omitted when empty")
	}
	if fields["id"] != "article-2" {
		t.Errorf("Expected id to be 'article-2', got %v", fields["id"])
	}
}

func TestScheduleCreation(t *testing.T) {
	now := time.Now()
	schedule := Schedule{
		ID:        "schedule-1",
		UserID:    "user-1",
		TargetURL: "https://example.com",
		Frequency: FrequencyWeekly,
		DayOfWeek: 3,
		TimeOfDay: "09:00",
		IsActive:  true,
		NextRun:   now.Add(24 * time.Hour),
	}

	if schedule.Frequency != FrequencyWeekly {
		t.Errorf("Expected Frequency to be weekly, got %s", schedule.Frequency)
	}
	if schedule.DayOfWeek != 3 {
		t.Errorf("Expected DayOfWeek to be 3, got %d", schedule.DayOfWeek)
	}
	if !schedule.LastRun.IsZero() {
		t.Error("Expected LastRun to default to the zero time")
	}
	if !schedule.IsActive {
		t.Error("Expected schedule to be active")
	}
}

func TestHumanizeLevelValues(t *testing.T) {
	if HumanizeNormal != "normal" {
		t.Errorf("Expected HumanizeNormal to be 'normal', got %s", HumanizeNormal)
	}
	if HumanizeHardcore != "hardcore" {
		t.Errorf("Expected HumanizeHardcore to be 'hardcore', got %s", HumanizeHardcore)
	}
}

func TestStageWarningCreation(t *testing.T) {
	now := time.Now()
	warning := StageWarning{
		Stage:   "fact_check",
		Message: "provider returned fallback text",
		At:      now,
	}

	if warning.Stage != "fact_check" {
		t.Errorf("Expected Stage to be 'fact_check', got %s", warning.Stage)
	}
	if warning.Message == "" {
		t.Error("Expected Message to be set")
	}
}
