package filtering

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/jobmatch/internal/store"
)

// exactScore gives 100 for case-insensitive equality and 0 otherwise.
func exactScore(a, b string) int {
	if strings.EqualFold(a, b) {
		return 100
	}
	return 0
}

func jobs() []*store.Job {
	return []*store.Job{
		{Title: "Backend Engineer", Location: "Berlin", IsOpen: true},
		{Title: "Designer", Location: "Berlin", IsOpen: true},
		{Title: "Backend Engineer", Location: "Paris", IsOpen: false},
	}
}

func TestRunAppliesEnabledSteps(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)

	steps := []Filter{
		NewOpenOnly(),
		NewTitleSimilarity("backend engineer", 70, exactScore),
		NewLocationSimilarity("", 70, exactScore),
	}

	out, err := Run(context.Background(), zap.New(core), steps, jobs())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Berlin", out[0].Location)

	entries := observed.FilterMessage("filter step").All()
	require.Len(t, entries, 3)
	assert.Equal(t, int64(1), entries[0].ContextMap()["dropped"])
	assert.Equal(t, int64(1), entries[1].ContextMap()["dropped"])
	assert.Equal(t, int64(0), entries[2].ContextMap()["dropped"])
}

func TestDisabledStepsAreSkipped(t *testing.T) {
	steps := []Filter{NewOpenOnly(), NewTitleSimilarity("backend engineer", 70, exactScore)}
	DisableByName(steps, "open_only", "closed jobs requested")

	out, err := Run(context.Background(), nil, steps, jobs())
	require.NoError(t, err)
	assert.Len(t, out, 2)

	statuses := Describe(steps)
	require.Len(t, statuses, 2)
	assert.False(t, statuses[0].Enabled)
	assert.Equal(t, "closed jobs requested", statuses[0].Reason)
	assert.Equal(t, "backend engineer", statuses[1].Details["query"])
}

type brokenFilter struct{}

func (brokenFilter) Name() string    { return "broken" }
func (brokenFilter) Disable(string)  {}
func (brokenFilter) IsEnabled() bool { return true }
func (brokenFilter) Apply(context.Context, []*store.Job) ([]*store.Job, Step, error) {
	return nil, Step{}, errors.New("boom")
}

func TestRunStopsOnError(t *testing.T) {
	_, err := Run(context.Background(), nil, []Filter{brokenFilter{}}, jobs())
	require.EqualError(t, err, "broken: boom")

	statuses := Describe([]Filter{brokenFilter{}})
	assert.Equal(t, []Status{{Name: "broken", Enabled: true}}, statuses)
}
