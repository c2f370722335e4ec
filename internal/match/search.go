package match

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/filtering"
	"github.com/spigell/jobmatch/internal/store"
)

// Query is a free-text job search. Empty fields do not filter.
type Query struct {
	Title         string
	Location      string
	IncludeClosed bool
}

// SearchFilters returns the steps SearchJobs runs for q.
func (e *Engine) SearchFilters(q Query) []filtering.Filter {
	steps := []filtering.Filter{
		filtering.NewOpenOnly(),
		filtering.NewTitleSimilarity(q.Title, e.searchThreshold, TokenSetRatio),
		filtering.NewLocationSimilarity(q.Location, e.searchThreshold, TokenSetRatio),
	}
	if q.IncludeClosed {
		filtering.DisableByName(steps, "open_only", "closed jobs requested")
	}
	return steps
}

// SearchJobs returns the jobs matching q, newest first.
func (e *Engine) SearchJobs(ctx context.Context, q Query) ([]*store.Job, error) {
	jobs, err := e.store.ListJobs(ctx)
	if err != nil {
		return nil, err
	}

	steps := e.SearchFilters(q)
	e.logger.Debug("search filters", zap.Any("filters", filtering.Describe(steps)))

	found, err := filtering.Run(ctx, e.logger, steps, jobs)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(found, func(i, k int) bool {
		return found[i].CreatedAt.After(found[k].CreatedAt)
	})
	return found, nil
}
