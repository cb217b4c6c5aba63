package handlers

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"blogsmith/internal/config"
	"blogsmith/internal/core"
	"blogsmith/internal/pipeline"
	"blogsmith/internal/scheduler"
	"blogsmith/internal/textops"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	articleStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// NewGenerateCmd creates the generate command
func NewGenerateCmd() *cobra.Command {
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one or more blog articles from a URL or headline seed",
		Long: `Generate researches the seed on the web, drafts and repairs a
long-form article through chained completion calls, enriches it with
media, and persists the final HTML.

Examples:
  blogsmith generate --url https://example.com/news/some-story
  blogsmith generate --headline "Why heat pumps win" --count 3
  blogsmith generate --headline "Topic" --humanize hardcore --dry-run`,
		RunE: generateRunFunc,
	}

	generateCmd.Flags().String("url", "", "Seed URL to research and react to")
	generateCmd.Flags().String("headline", "", "Seed headline when no URL is available")
	generateCmd.Flags().String("website", "", "Brand website for internal links")
	generateCmd.Flags().Int("count", 1, "Number of articles to generate")
	generateCmd.Flags().String("humanize", "normal", "Humanize intensity: normal or hardcore")
	generateCmd.Flags().StringSlice("keywords", nil, "Target keywords to work into the article")
	generateCmd.Flags().String("user", "", "User id to generate for (default from config)")
	generateCmd.Flags().Bool("dry-run", false, "Generate without persisting to the database")

	return generateCmd
}

func generateRunFunc(cmd *cobra.Command, args []string) error {
	url, _ := cmd.Flags().GetString("url")
	headline, _ := cmd.Flags().GetString("headline")
	if url == "" && headline == "" {
		return fmt.Errorf("either --url or --headline is required")
	}

	website, _ := cmd.Flags().GetString("website")
	count, _ := cmd.Flags().GetInt("count")
	humanize, _ := cmd.Flags().GetString("humanize")
	keywords, _ := cmd.Flags().GetStringSlice("keywords")
	userID, _ := cmd.Flags().GetString("user")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	level := core.HumanizeLevel(humanize)
	if level != core.HumanizeNormal && level != core.HumanizeHardcore {
		return fmt.Errorf("invalid humanize level %q, want normal or hardcore", humanize)
	}

	cfg := config.Get()
	if userID == "" {
		userID = cfg.App.UserID
	}
	if userID == "" {
		return fmt.Errorf("no user id: pass --user or set app.user_id")
	}

	s, err := buildStack(dryRun)
	if err != nil {
		return err
	}
	defer s.close()

	if dryRun {
		// The in-memory store starts empty, so seed enough credits for
		// the requested batch.
		if err := s.db.Credits().Grant(cmd.Context(), userID, count); err != nil {
			return err
		}
	}

	fmt.Println(subtleStyle.Render(fmt.Sprintf("Generating %d article(s)...", count)))

	result, err := s.coordinator.GenerateBatch(cmd.Context(), scheduler.BatchRequest{
		Seed:           pipeline.Seed{URL: url, Headline: headline, Website: website},
		UserID:         userID,
		Count:          count,
		HumanizeLevel:  level,
		TargetKeywords: keywords,
		BrandInfo:      cfg.App.BrandInfo,
	})
	if err != nil {
		return err
	}

	printBatchResult(result)
	if len(result.Articles) == 0 && len(result.Errors) > 0 {
		os.Exit(1)
	}
	return nil
}

func printBatchResult(result *scheduler.BatchResult) {
	for _, article := range result.Articles {
		summary := fmt.Sprintf("%s\n%s",
			titleStyle.Render(article.Title),
			subtleStyle.Render(fmt.Sprintf("id=%s words=%d seo=%d headings=%d",
				article.ID,
				textops.CountWords(article.HTMLBody),
				article.SEOScore,
				len(article.Headings),
			)),
		)
		fmt.Println(articleStyle.Render(summary))
	}

	for _, warning := range result.Warnings {
		fmt.Println(warnStyle.Render(fmt.Sprintf("warning [%s]: %s", warning.Stage, warning.Message)))
	}
	for _, itemErr := range result.Errors {
		fmt.Println(errorStyle.Render(fmt.Sprintf("item %d failed: %v", itemErr.Index+1, itemErr.Err)))
	}
	if result.CreditsExhausted {
		fmt.Println(warnStyle.Render("stopped: no credits remaining"))
	}

	fmt.Println(subtleStyle.Render(fmt.Sprintf("%d article(s) generated", len(result.Articles))))
}
