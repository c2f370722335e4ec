// Package match recommends jobs and candidates to each other, searches job
// postings and decides applications when a job closes.
package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/mail"
	"github.com/spigell/jobmatch/internal/store"
)

const (
	DefaultShortlistThreshold = 0.4
	DefaultSearchThreshold    = 70
)

// Scorer rates how well a candidate fits a job on a 0..1 scale.
type Scorer interface {
	Score(ctx context.Context, c *store.Candidate, j *store.Job) (float64, error)
}

// Engine recommends, searches and closes jobs on top of a store.Store.
type Engine struct {
	store              store.Store
	scorer             Scorer
	mail               mail.Sender
	shortlistThreshold float64
	searchThreshold    int
	now                func() time.Time
	logger             *zap.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithShortlistThreshold sets the score an application must exceed to be
// shortlisted.
func WithShortlistThreshold(v float64) Option {
	return func(e *Engine) {
		e.shortlistThreshold = v
	}
}

// WithSearchThreshold sets the similarity a search field must exceed.
func WithSearchThreshold(v int) Option {
	return func(e *Engine) {
		e.searchThreshold = v
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New returns an Engine with the default thresholds. sender may be nil, in
// which case nobody is notified.
func New(s store.Store, scorer Scorer, sender mail.Sender, opts ...Option) *Engine {
	e := &Engine{
		store:              s,
		scorer:             scorer,
		mail:               sender,
		shortlistThreshold: DefaultShortlistThreshold,
		searchThreshold:    DefaultSearchThreshold,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logger.WithComponent(e.logger, "match")
	return e
}

func (e *Engine) getJob(ctx context.Context, id uuid.UUID) (*store.Job, error) {
	j, err := e.store.GetJob(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return j, err
}

func (e *Engine) getCandidate(ctx context.Context, id uuid.UUID) (*store.Candidate, error) {
	c, err := e.store.GetCandidate(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCandidateNotFound, id)
	}
	return c, err
}

// Apply records an application of candidateID to an open job.
func (e *Engine) Apply(ctx context.Context, candidateID, jobID uuid.UUID) (*store.Application, error) {
	var app *store.Application
	err := e.store.InTx(ctx, func(tx store.Repository) error {
		j, err := tx.GetJob(ctx, jobID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		if err != nil {
			return err
		}
		if !j.IsOpen {
			return fmt.Errorf("%w: %s", ErrJobClosed, jobID)
		}

		if _, err := tx.GetCandidate(ctx, candidateID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrCandidateNotFound, candidateID)
			}
			return err
		}

		app = &store.Application{CandidateID: candidateID, JobID: jobID, Status: store.StatusPending}
		if err := tx.CreateApplication(ctx, app); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return fmt.Errorf("%w: job %s", ErrAlreadyApplied, jobID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("application created",
		zap.Stringer("candidate_id", candidateID),
		zap.Stringer("job_id", jobID),
	)
	return app, nil
}
