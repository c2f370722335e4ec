// Package document converts résumé and job-description files into plain text.
package document

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/logger"
)

const defaultTimeout = 30 * time.Second

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// Extractor dispatches documents to a per-format parser.
type Extractor struct {
	parsers map[Format]Parser
	timeout time.Duration
	logger  *zap.Logger
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithTimeout bounds a single parse. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithParser replaces the parser for format.
func WithParser(format Format, p Parser) Option {
	return func(e *Extractor) {
		e.parsers[format] = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

// New returns an Extractor that knows every supported format.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		parsers: defaultParsers(),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logger.WithComponent(e.logger, "document")
	return e
}

// ExtractFile reads the file at path and returns its text.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (string, error) {
	if _, err := DetectFormat(path); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("read document %s: %w", path, err)
	}

	return e.Extract(ctx, filepath.Base(path), data)
}

// Extract parses data according to the extension of name.
func (e *Extractor) Extract(ctx context.Context, name string, data []byte) (string, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return "", err
	}

	parse, ok := e.parsers[format]
	if !ok {
		return "", fmt.Errorf("%w: no parser for %s", ErrUnsupportedFormat, format)
	}

	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s is empty", ErrUnreadableDocument, name)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	started := time.Now()
	raw, err := e.run(ctx, parse, data)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", name, err)
	}

	text := normalizeWhitespace(raw)
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrUnreadableDocument, name)
	}

	e.logger.Debug("document text extracted",
		zap.String("name", name),
		zap.String("format", string(format)),
		zap.Int("bytes", len(data)),
		zap.Int("text_length", len(text)),
		zap.Duration("took", time.Since(started)),
	)

	return text, nil
}

type parseResult struct {
	text string
	err  error
}

// run executes parse in its own goroutine so a stuck parser cannot outlive ctx.
func (e *Extractor) run(ctx context.Context, parse Parser, data []byte) (string, error) {
	done := make(chan parseResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- parseResult{err: fmt.Errorf("%w: parser panic: %v", ErrCorruptFile, r)}
			}
		}()

		text, err := parse(data)
		if err != nil && !errors.Is(err, ErrCorruptFile) && !errors.Is(err, ErrUnreadableDocument) {
			err = fmt.Errorf("%w: %w", ErrCorruptFile, err)
		}
		done <- parseResult{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.text, res.err
	}
}

func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
	}

	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
