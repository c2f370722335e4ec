// Package ingest turns structured records extracted from résumés and job
// descriptions into persisted candidate profiles and job postings.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/ai"
	"github.com/spigell/jobmatch/internal/filestore"
	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/reconcile"
	"github.com/spigell/jobmatch/internal/store"
)

// Extractor turns document text into a structured record.
type Extractor interface {
	Extract(ctx context.Context, tpl ai.Template, text string) (ai.Record, error)
}

// TextSource reads plain text out of a document on disk.
type TextSource interface {
	ExtractFile(ctx context.Context, path string) (string, error)
}

// Pipeline turns a document into a stored candidate profile or job posting.
// Each ingestion commits in one transaction or not at all.
type Pipeline struct {
	store      store.Store
	extractor  Extractor
	text       TextSource
	reconciler *reconcile.Reconciler
	files      filestore.Store
	now        func() time.Time
	logger     *zap.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithFileStore retains ingested documents in fs.
func WithFileStore(fs filestore.Store) Option {
	return func(p *Pipeline) {
		p.files = fs
	}
}

// WithClock overrides the time source used for "present" dates.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// New builds a pipeline. Without WithFileStore the source documents are not
// kept.
func New(s store.Store, extractor Extractor, text TextSource, r *reconcile.Reconciler, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      s,
		extractor:  extractor,
		text:       text,
		reconciler: r,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logger.WithComponent(p.logger, "ingest")
	return p
}

// document is an uploaded file to keep once its ingestion commits.
type document struct {
	path   string
	kind   string
	stored string
}

// retain saves doc under a key derived from owner and records the upload.
// It returns the retained URL, or "" when no file store is configured.
func (p *Pipeline) retain(ctx context.Context, tx store.Repository, owner uuid.UUID, prefix string, doc *document) (string, error) {
	if doc == nil || p.files == nil {
		return "", nil
	}

	name := filepath.Base(doc.path)
	key := fmt.Sprintf("%s/%s/%s-%s", prefix, owner, uuid.NewString(), name)

	url, err := p.files.Save(ctx, key, doc.path)
	if err != nil {
		return "", fmt.Errorf("retain %s: %w", name, err)
	}
	doc.stored = key

	if err := tx.CreateUpload(ctx, &store.Upload{
		OwnerID:  owner,
		Kind:     doc.kind,
		Filename: name,
		URL:      url,
	}); err != nil {
		return "", fmt.Errorf("record upload of %s: %w", name, err)
	}

	return url, nil
}

// discard removes a retained file after its transaction failed.
func (p *Pipeline) discard(ctx context.Context, doc *document) {
	if doc == nil || doc.stored == "" || p.files == nil {
		return
	}
	if err := p.files.Delete(context.WithoutCancel(ctx), doc.stored); err != nil {
		p.logger.Warn("failed to remove retained document", zap.String("key", doc.stored), zap.Error(err))
	}
}

func (p *Pipeline) resolveAll(ctx context.Context, tx store.Repository, kind store.Kind, names []string) ([]*store.Entity, error) {
	seen := make(map[uint]bool, len(names))
	out := make([]*store.Entity, 0, len(names))
	for _, name := range names {
		e, err := p.reconciler.Resolve(ctx, tx, kind, name)
		if errors.Is(err, reconcile.ErrEmptyName) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	return out, nil
}

func (p *Pipeline) resolveMajor(ctx context.Context, tx store.Repository, name string) (*uint, *store.Major, error) {
	e, err := p.reconciler.Resolve(ctx, tx, store.KindMajor, name)
	if errors.Is(err, reconcile.ErrEmptyName) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	m := e.Major()
	return &m.ID, &m, nil
}

// Insights returns ATS feedback for the résumé at path. Nothing is stored.
func (p *Pipeline) Insights(ctx context.Context, path string) (ai.Record, error) {
	text, err := p.text.ExtractFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	rec, err := p.extractor.Extract(ctx, ai.TemplateATSInsights, text)
	if err != nil {
		return nil, fmt.Errorf("ats insights for %s: %w", filepath.Base(path), err)
	}
	return rec, nil
}

func (p *Pipeline) extractDocument(ctx context.Context, tpl ai.Template, path string) (string, ai.Record, error) {
	text, err := p.text.ExtractFile(ctx, path)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	rec, err := p.extractor.Extract(ctx, tpl, text)
	if err != nil {
		return "", nil, fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}
	return text, rec, nil
}
