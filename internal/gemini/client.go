package gemini

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
	"google.golang.org/genai"

	"github.com/captionstudio/captionstudio/internal/caption"
)

// Config holds the model credential and sampling parameters.
type Config struct {
	APIKey          string
	Model           string
	Temperature     float64
	TopP            float64
	MaxOutputTokens int
	// MaxConcurrent bounds in-flight model calls. Extra requests wait on the
	// caller's context rather than piling up against the provider quota.
	MaxConcurrent int
}

// Client wraps the Gemini SDK. It is constructed explicitly and passed to the
// handler so tests can substitute a fake without touching global state.
type Client struct {
	genai *genai.Client
	model string
	gen   *genai.GenerateContentConfig
	sem   *semaphore.Weighted
}

// New builds a Client. It fails fast when no API key is configured so the
// caller can surface a configuration error before any network call.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key not configured")
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	return &Client{
		genai: gc,
		model: cfg.Model,
		gen: &genai.GenerateContentConfig{
			Temperature:       genai.Ptr(float32(cfg.Temperature)),
			TopP:              genai.Ptr(float32(cfg.TopP)),
			MaxOutputTokens:   int32(cfg.MaxOutputTokens),
			SystemInstruction: genai.NewContentFromText(caption.SystemInstruction, genai.RoleUser),
		},
		sem: semaphore.NewWeighted(int64(maxConcurrent)),
	}, nil
}

// Generate submits one multimodal request (prompt text + inline image bytes)
// and returns the model's raw text reply. The provider offers no server-side
// cancel: once in flight, an abandoned call may still complete and consume
// quota upstream.
func (c *Client) Generate(ctx context.Context, prompt string, image []byte, mime string) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for model slot: %w", err)
	}
	defer c.sem.Release(1)

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(image, mime),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, c.gen)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("model returned an empty reply")
	}
	return text, nil
}
