// Package gemini implements the generative text model over the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/utils"
)

const (
	provider       = "gemini"
	baseRetryDelay = 2 * time.Second
	maxRetryDelay  = 20 * time.Second
	maxQuotaDelay  = 15 * time.Second
)

// wait is replaced in tests.
var wait = utils.WaitFor

var retryAfter = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*(s|sec|secs|second|seconds)?\b`)

type contentStreamer interface {
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// Generator wraps the Google GenAI client and streams replies for an
// instruction applied to a text.
type Generator struct {
	models     contentStreamer
	model      string
	config     ModelConfig
	maxRetries int
	logger     *zap.Logger
}

// NewGenerator creates a Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey string, cfg ModelConfig, l *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg, err := cfg.normalized()
	if err != nil {
		return nil, fmt.Errorf("gemini model config: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Generator{
		models:     client.Models,
		model:      cfg.Model,
		config:     cfg,
		maxRetries: cfg.MaxRetries,
		logger:     logger.WithCommonFields(l, provider, cfg.Model),
	}, nil
}

// Model returns the configured model name.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// Generate sends instruction followed by text as one user turn and returns
// the concatenated streamed reply. Temporary API failures are retried.
func (g *Generator) Generate(ctx context.Context, instruction, text string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	instruction = strings.TrimSpace(instruction)
	text = strings.TrimSpace(text)
	if instruction == "" && text == "" {
		return "", errors.New("prompt must not be empty")
	}

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: instruction},
			{Text: text},
		},
	}}

	attempts := g.maxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		output, err := g.stream(ctx, contents)
		if err == nil {
			return output, nil
		}
		lastErr = err

		delay, retry := retryDelay(err, attempt)
		if !retry || attempt == attempts {
			break
		}

		g.logger.Warn("gemini request failed, retrying",
			zap.Int(logger.FieldAttempt, attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := wait(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", lastErr
}

func (g *Generator) stream(ctx context.Context, contents []*genai.Content) (string, error) {
	var builder strings.Builder
	chunks := 0

	for resp, err := range g.models.GenerateContentStream(ctx, g.model, contents, g.config.contentConfig()) {
		if err != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}
		chunks++
		appendText(&builder, resp)
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	g.logger.Debug("gemini stream finished", zap.Int("chunks", chunks), zap.Int("response_length", len(output)))

	return output, nil
}

func appendText(builder *strings.Builder, resp *genai.GenerateContentResponse) {
	if resp == nil {
		return
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			builder.WriteString(part.Text)
		}
	}
}

// retryDelay reports whether err is temporary and how long to wait before
// the next attempt.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if ptrErr := (*genai.APIError)(nil); errors.As(err, &ptrErr) && ptrErr != nil {
		apiErr = *ptrErr
	} else if !errors.As(err, &apiErr) {
		return 0, false
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		if d, ok := parseRetryAfter(apiErr.Message); ok {
			if d > maxQuotaDelay {
				return 0, false
			}
			return d, true
		}
		return backoff(attempt), true
	case apiErr.Code >= http.StatusInternalServerError:
		return backoff(attempt), true
	default:
		return 0, false
	}
}

func parseRetryAfter(message string) (time.Duration, bool) {
	m := retryAfter.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

func backoff(attempt int) time.Duration {
	d := baseRetryDelay << (attempt - 1)
	if d <= 0 || d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}
