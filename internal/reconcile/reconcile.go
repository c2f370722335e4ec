// Package reconcile maps free-text skill, language and major names onto
// canonical stored entities, creating them on first sight.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/skills"
	"github.com/spigell/jobmatch/internal/store"
)

// ErrEmptyName is returned for blank entity names.
var ErrEmptyName = errors.New("entity name is empty")

// Lookup selects how an existing entity is found.
type Lookup int

const (
	// LookupExact matches the case-folded canonical name.
	LookupExact Lookup = iota
	// LookupFuzzy accepts any stored entity whose name contains the
	// canonical name before falling back to exact find-or-create.
	LookupFuzzy
)

// ParseLookup resolves "exact" or "fuzzy".
func ParseLookup(s string) (Lookup, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exact":
		return LookupExact, nil
	case "fuzzy":
		return LookupFuzzy, nil
	default:
		return LookupExact, fmt.Errorf("unknown lookup mode %q", s)
	}
}

func (l Lookup) String() string {
	if l == LookupFuzzy {
		return "fuzzy"
	}
	return "exact"
}

var spaces = regexp.MustCompile(`\s+`)

// Reconciler finds or creates canonical entities. It keeps no state between
// calls; every lookup goes to the repository passed in.
type Reconciler struct {
	synonyms *skills.Table
	lookup   Lookup
	logger   *zap.Logger
}

// Option customizes a Reconciler.
type Option func(*Reconciler)

// WithLookup sets the mode used by Resolve.
func WithLookup(l Lookup) Option {
	return func(r *Reconciler) {
		r.lookup = l
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// New returns a Reconciler with exact lookup. synonyms may be nil.
func New(synonyms *skills.Table, opts ...Option) *Reconciler {
	r := &Reconciler{synonyms: synonyms}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logger.WithComponent(r.logger, "reconcile")
	return r
}

// Lookup returns the configured mode.
func (r *Reconciler) Lookup() Lookup {
	return r.lookup
}

// Canonical returns the lookup key and display name for name.
func (r *Reconciler) Canonical(kind store.Kind, name string) (key, display string) {
	display = strings.TrimSpace(spaces.ReplaceAllString(name, " "))
	if kind == store.KindSkill {
		display = r.synonyms.Canonical(display)
	}
	return skills.Normalize(display), display
}

// Resolve finds or creates the entity using the configured lookup mode.
func (r *Reconciler) Resolve(ctx context.Context, repo store.Repository, kind store.Kind, name string) (*store.Entity, error) {
	if r.lookup == LookupFuzzy {
		return r.ResolveFuzzy(ctx, repo, kind, name)
	}
	return r.ResolveOrCreate(ctx, repo, kind, name)
}

// ResolveOrCreate returns the entity whose key equals the canonical key of
// name, inserting it when missing. A concurrent insert of the same key is
// absorbed by re-reading the winner.
func (r *Reconciler) ResolveOrCreate(ctx context.Context, repo store.Repository, kind store.Kind, name string) (*store.Entity, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown entity kind %s", kind)
	}

	key, display := r.Canonical(kind, name)
	if key == "" {
		return nil, fmt.Errorf("%s: %w", kind, ErrEmptyName)
	}

	existing, err := repo.FindEntity(ctx, kind, key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("find %s %q: %w", kind, key, err)
	}

	created := &store.Entity{Key: key, Name: display}
	err = repo.CreateEntity(ctx, kind, created)
	if err == nil {
		r.logger.Debug("canonical entity created",
			zap.Stringer("kind", kind),
			zap.String("name", display),
			zap.Uint("id", created.ID),
		)
		return created, nil
	}
	if !errors.Is(err, store.ErrDuplicate) {
		return nil, fmt.Errorf("create %s %q: %w", kind, key, err)
	}

	// A plain read may still see the snapshot taken before the other writer
	// committed.
	winner, err := repo.FindCommittedEntity(ctx, kind, key)
	if err != nil {
		return nil, fmt.Errorf("re-read %s %q after conflict: %w", kind, key, err)
	}

	r.logger.Debug("reconciliation conflict absorbed",
		zap.Stringer("kind", kind),
		zap.String("name", display),
		zap.Uint("id", winner.ID),
	)

	return winner, nil
}

// ResolveFuzzy prefers an exact key match, then the shortest stored entity
// whose key contains the canonical key, and otherwise behaves like
// ResolveOrCreate.
func (r *Reconciler) ResolveFuzzy(ctx context.Context, repo store.Repository, kind store.Kind, name string) (*store.Entity, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown entity kind %s", kind)
	}

	key, _ := r.Canonical(kind, name)
	if key == "" {
		return nil, fmt.Errorf("%s: %w", kind, ErrEmptyName)
	}

	found, err := repo.SearchEntities(ctx, kind, key)
	if err != nil {
		return nil, fmt.Errorf("search %s %q: %w", kind, key, err)
	}

	var best *store.Entity
	for _, e := range found {
		if e.Key == key {
			return e, nil
		}
		if best == nil || len(e.Key) < len(best.Key) || (len(e.Key) == len(best.Key) && e.Key < best.Key) {
			best = e
		}
	}

	if best != nil {
		r.logger.Debug("fuzzy match",
			zap.Stringer("kind", kind),
			zap.String("query", key),
			zap.String("matched", best.Name),
		)
		return best, nil
	}

	return r.ResolveOrCreate(ctx, repo, kind, name)
}
