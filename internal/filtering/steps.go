package filtering

import (
	"context"
	"strconv"
	"strings"

	"github.com/spigell/jobmatch/internal/store"
)

// Similarity scores two strings on a 0..100 scale.
type Similarity func(a, b string) int

type similarityFilter struct {
	name      string
	field     func(*store.Job) string
	query     string
	threshold int
	score     Similarity
	disabled  bool
	reason    string
}

// NewTitleSimilarity keeps jobs whose title scores above threshold against
// query. An empty query keeps every job.
func NewTitleSimilarity(query string, threshold int, score Similarity) Filter {
	return &similarityFilter{
		name:      "title_similarity",
		field:     func(j *store.Job) string { return j.Title },
		query:     strings.TrimSpace(query),
		threshold: threshold,
		score:     score,
	}
}

// NewLocationSimilarity is NewTitleSimilarity for the job location.
func NewLocationSimilarity(query string, threshold int, score Similarity) Filter {
	return &similarityFilter{
		name:      "location_similarity",
		field:     func(j *store.Job) string { return j.Location },
		query:     strings.TrimSpace(query),
		threshold: threshold,
		score:     score,
	}
}

func (f *similarityFilter) Name() string { return f.name }

func (f *similarityFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *similarityFilter) IsEnabled() bool { return !f.disabled }

func (f *similarityFilter) Apply(_ context.Context, jobs []*store.Job) ([]*store.Job, Step, error) {
	if f.query == "" {
		return jobs, Step{Initial: len(jobs), Left: len(jobs)}, nil
	}

	out, step := keep(jobs, func(j *store.Job) bool {
		return f.score(f.query, f.field(j)) > f.threshold
	})
	return out, step, nil
}

func (f *similarityFilter) Status() Status {
	details := map[string]string{"threshold": strconv.Itoa(f.threshold)}
	if f.query != "" {
		details["query"] = f.query
	}
	reason := f.reason
	if reason == "" && f.query == "" {
		reason = "empty query"
	}
	return Status{Name: f.name, Enabled: f.IsEnabled(), Reason: reason, Details: details}
}

type openFilter struct {
	disabled bool
	reason   string
}

// NewOpenOnly drops closed jobs.
func NewOpenOnly() Filter {
	return &openFilter{}
}

func (f *openFilter) Name() string { return "open_only" }

func (f *openFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *openFilter) IsEnabled() bool { return !f.disabled }

func (f *openFilter) Apply(_ context.Context, jobs []*store.Job) ([]*store.Job, Step, error) {
	out, step := keep(jobs, func(j *store.Job) bool { return j.IsOpen })
	return out, step, nil
}

func (f *openFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}
