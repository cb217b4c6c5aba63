package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"blogsmith/internal/config"
	"blogsmith/internal/logger"
)

// negativePrompt excludes the defects that make generated images unusable
// in a published article.
const negativePrompt = "blurry, low quality, watermark, text overlay, logo, signature, deformed, nsfw, nudity, violence"

// ImageClient talks to a runware-style image-generation API that accepts
// an array of inference tasks and returns hosted image URLs.
type ImageClient struct {
	apiKey        string
	baseURL       string
	httpClient    *http.Client
	model         string
	fallbackModel string
	width         int
	height        int
	steps         int
	cfgScale      float64
}

// NewImageClient creates an image-generation client from configuration.
func NewImageClient(cfg config.Images) *ImageClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ImageClient{
		apiKey:        cfg.APIKey,
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:    &http.Client{Timeout: timeout},
		model:         cfg.Model,
		fallbackModel: cfg.FallbackModel,
		width:         cfg.Width,
		height:        cfg.Height,
		steps:         cfg.Steps,
		cfgScale:      cfg.CFGScale,
	}
}

// PrimaryModel returns the configured primary model identifier.
func (c *ImageClient) PrimaryModel() string { return c.model }

// FallbackModel returns the alternate model used on retry.
func (c *ImageClient) FallbackModel() string { return c.fallbackModel }

type imageTask struct {
	TaskType       string  `json:"taskType"`
	TaskUUID       string  `json:"taskUUID"`
	PositivePrompt string  `json:"positivePrompt"`
	NegativePrompt string  `json:"negativePrompt"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Model          string  `json:"model"`
	NumberResults  int     `json:"numberResults"`
	OutputType     string  `json:"outputType"`
	OutputFormat   string  `json:"outputFormat"`
	Steps          int     `json:"steps"`
	CFGScale       float64 `json:"CFGScale"`
	CheckNSFW      bool    `json:"checkNSFW"`
}

type imageTaskResult struct {
	TaskUUID string `json:"taskUUID"`
	ImageURL string `json:"imageURL"`
}

type imageResponse struct {
	Data   []imageTaskResult `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// Generate requests count images for the prompt from the given model.
func (c *ImageClient) Generate(ctx context.Context, positive, negative string, count int, model string) ([]string, error) {
	task := imageTask{
		TaskType:       "imageInference",
		TaskUUID:       uuid.NewString(),
		PositivePrompt: positive,
		NegativePrompt: negative,
		Width:          c.width,
		Height:         c.height,
		Model:          model,
		NumberResults:  count,
		OutputType:     "URL",
		OutputFormat:   "JPG",
		Steps:          c.steps,
		CFGScale:       c.cfgScale,
		CheckNSFW:      true,
	}

	reqBody, err := json.Marshal([]imageTask{task})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image provider returned status %d", resp.StatusCode)
	}

	var parsed imageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse image response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("image provider error: %s", parsed.Errors[0].Message)
	}

	var urls []string
	for _, result := range parsed.Data {
		if result.ImageURL != "" {
			urls = append(urls, result.ImageURL)
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("image provider returned no images")
	}
	return urls, nil
}

// GenerateImages produces count image URLs for the topic. On primary
// model failure it retries once with the alternate model; on total
// failure it returns deterministic placeholder URLs so downstream
// placement always has count URLs to work with.
func (e *Enricher) GenerateImages(ctx context.Context, topic string, count int) []string {
	if count <= 0 {
		return nil
	}

	positive := fmt.Sprintf("professional photorealistic photograph illustrating %s, natural lighting, high detail, editorial style", topic)

	urls, err := e.images.Generate(ctx, positive, negativePrompt, count, e.images.PrimaryModel())
	if err != nil {
		logger.Warn("image generation failed, retrying with fallback model", "error", err.Error())
		urls, err = e.images.Generate(ctx, positive, negativePrompt, count, e.images.FallbackModel())
	}
	if err != nil {
		logger.Warn("image generation failed on both models, using placeholders", "error", err.Error())
		return PlaceholderImages(count, topic)
	}

	// Pad a short batch so callers always get exactly count URLs.
	for len(urls) < count {
		urls = append(urls, PlaceholderImages(1, fmt.Sprintf("%s %d", topic, len(urls)))[0])
	}
	return urls[:count]
}

// PlaceholderImages returns deterministic placeholder URLs for the topic.
func PlaceholderImages(count int, topic string) []string {
	urls := make([]string, count)
	for i := range urls {
		urls[i] = fmt.Sprintf("/placeholder.svg?height=400&width=800&query=%s&index=%d", url.QueryEscape(topic), i)
	}
	return urls
}
