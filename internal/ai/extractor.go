// Package ai turns document text into structured records with a generative
// text model.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/utils"
)

const (
	defaultMaxAttempts    = 5
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = 30 * time.Second
	defaultCallTimeout    = 30 * time.Second
	defaultMaxLogLength   = 200
)

// TextModel generates a reply for an instruction applied to a text.
type TextModel interface {
	Generate(ctx context.Context, instruction, text string) (string, error)
}

// Record is a parsed JSON object returned by the model.
type Record map[string]any

// ExtractorConfig bounds the regenerate-on-malformed-output loop.
type ExtractorConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	CallTimeout    time.Duration
	MaxLogLength   int
}

func (c ExtractorConfig) withDefaults() ExtractorConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.InitialBackoff < 0 {
		c.InitialBackoff = 0
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = defaultCallTimeout
	}
	if c.MaxLogLength <= 0 {
		c.MaxLogLength = defaultMaxLogLength
	}
	return c
}

// DefaultExtractorConfig returns the production retry policy.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		MaxAttempts:    defaultMaxAttempts,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
		CallTimeout:    defaultCallTimeout,
		MaxLogLength:   defaultMaxLogLength,
	}
}

// Extractor is the structured extraction service.
type Extractor struct {
	model  TextModel
	cfg    ExtractorConfig
	logger *zap.Logger
	wait   func(context.Context, time.Duration) error
}

// NewExtractor wraps model. Zero values in cfg fall back to the defaults.
func NewExtractor(model TextModel, cfg ExtractorConfig, l *zap.Logger) *Extractor {
	return &Extractor{
		model:  model,
		cfg:    cfg.withDefaults(),
		logger: logger.WithComponent(l, "extraction"),
		wait:   utils.WaitFor,
	}
}

// Extract runs tpl over text and returns the reply as a JSON object.
func (e *Extractor) Extract(ctx context.Context, tpl Template, text string) (Record, error) {
	var record Record
	err := e.extract(ctx, tpl, text, func(v any) error {
		obj, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: expected a JSON object, got %T", ErrMalformedOutput, v)
		}
		record = Record(obj)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ExtractValue runs tpl over text and returns any valid JSON value.
func (e *Extractor) ExtractValue(ctx context.Context, tpl Template, text string) (any, error) {
	var value any
	err := e.extract(ctx, tpl, text, func(v any) error {
		value = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (e *Extractor) extract(ctx context.Context, tpl Template, text string, accept func(any) error) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}

	instruction, err := tpl.Instruction()
	if err != nil {
		return &ExtractionError{Template: tpl, Err: err}
	}

	log := e.logger.With(zap.Stringer(logger.FieldTemplate, tpl))

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := utils.Backoff(attempt-1, e.cfg.InitialBackoff, e.cfg.MaxBackoff)
			if err := e.wait(ctx, delay); err != nil {
				return &ExtractionError{Template: tpl, Attempts: attempt - 1, Err: errors.Join(lastErr, err)}
			}
		}

		log.Debug("model request",
			zap.Int(logger.FieldAttempt, attempt),
			zap.Int("text_length", utf8.RuneCountInString(text)),
			zap.String("text_preview", utils.TruncateForLog(text, e.cfg.MaxLogLength)),
		)

		raw, err := e.generate(ctx, instruction, text)
		if err != nil {
			return &ExtractionError{Template: tpl, Attempts: attempt, Err: err}
		}

		log.Debug("model response",
			zap.Int(logger.FieldAttempt, attempt),
			zap.Int("response_length", utf8.RuneCountInString(raw)),
			zap.String("response_preview", utils.TruncateForLog(raw, e.cfg.MaxLogLength)),
		)

		value, err := parse(raw)
		if err == nil {
			err = accept(value)
		}
		if err == nil {
			return nil
		}

		lastErr = err
		log.Warn("malformed model output, regenerating",
			zap.Int(logger.FieldAttempt, attempt),
			zap.Int("max_attempts", e.cfg.MaxAttempts),
			zap.Error(err),
		)
	}

	return &ExtractionError{Template: tpl, Attempts: e.cfg.MaxAttempts, Err: lastErr}
}

func (e *Extractor) generate(ctx context.Context, instruction, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	return e.model.Generate(ctx, instruction, text)
}

func parse(raw string) (any, error) {
	cleaned := Sanitize(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrMalformedOutput)
	}

	var value any
	if err := json.Unmarshal([]byte(cleaned), &value); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}
	return value, nil
}

// Sanitize drops newline and backslash characters and strips a markdown
// code fence around the reply.
func Sanitize(raw string) string {
	cleaned := strings.NewReplacer("\r", "", "\n", "", `\`, "").Replace(raw)
	return extractJSON(cleaned)
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```JSON")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
