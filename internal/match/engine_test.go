package match

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/jobmatch/internal/ai"
	"github.com/spigell/jobmatch/internal/filtering"
	"github.com/spigell/jobmatch/internal/store"
	"github.com/spigell/jobmatch/internal/store/memstore"
)

type board struct {
	t         *testing.T
	store     *memstore.Store
	recruiter *store.Recruiter
}

func newBoard(t *testing.T) *board {
	t.Helper()
	ctx := context.Background()

	tick := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := memstore.New(memstore.WithClock(func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}))

	u := &store.User{Name: "Rita", Email: "rita@acme.io"}
	require.NoError(t, s.CreateUser(ctx, u))
	rec := &store.Recruiter{UserID: u.ID, CompanyName: "Acme"}
	require.NoError(t, s.CreateRecruiter(ctx, rec))

	return &board{t: t, store: s, recruiter: rec}
}

func (b *board) entity(kind store.Kind, name string) uint {
	b.t.Helper()
	ctx := context.Background()
	key := strings.ToLower(name)
	if e, err := b.store.FindEntity(ctx, kind, key); err == nil {
		return e.ID
	}
	e := &store.Entity{Key: key, Name: name}
	require.NoError(b.t, b.store.CreateEntity(ctx, kind, e))
	return e.ID
}

func (b *board) candidate(name, major string, skills ...string) *store.Candidate {
	b.t.Helper()
	ctx := context.Background()

	u := &store.User{Name: name, Email: strings.ToLower(name) + "@x.com"}
	require.NoError(b.t, b.store.CreateUser(ctx, u))

	c := &store.Candidate{UserID: u.ID}
	if major != "" {
		id := b.entity(store.KindMajor, major)
		c.MajorID = &id
	}
	require.NoError(b.t, b.store.CreateCandidate(ctx, c))
	for _, s := range skills {
		require.NoError(b.t, b.store.AttachCandidateSkill(ctx, c.ID, b.entity(store.KindSkill, s)))
	}

	got, err := b.store.GetCandidate(ctx, c.ID)
	require.NoError(b.t, err)
	return got
}

func (b *board) job(title, location, major string, skills ...string) *store.Job {
	b.t.Helper()
	ctx := context.Background()

	j := &store.Job{RecruiterID: b.recruiter.ID, Title: title, Location: location, IsOpen: true}
	if major != "" {
		id := b.entity(store.KindMajor, major)
		j.MajorID = &id
	}
	require.NoError(b.t, b.store.CreateJob(ctx, j))
	for _, s := range skills {
		require.NoError(b.t, b.store.AttachJobSkill(ctx, j.ID, b.entity(store.KindSkill, s)))
	}

	got, err := b.store.GetJob(ctx, j.ID)
	require.NoError(b.t, err)
	return got
}

func (b *board) apply(c *store.Candidate, j *store.Job) {
	b.t.Helper()
	require.NoError(b.t, b.store.CreateApplication(context.Background(), &store.Application{CandidateID: c.ID, JobID: j.ID}))
}

type sentMail struct {
	html, email, name, subject string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeSender) Enqueue(html, email, name, subject string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{html: html, email: email, name: name, subject: subject})
}

type fixedScorer struct {
	scores map[uuid.UUID]float64
	errs   map[uuid.UUID]error
	calls  int
}

func (s *fixedScorer) Score(_ context.Context, c *store.Candidate, _ *store.Job) (float64, error) {
	s.calls++
	if err := s.errs[c.ID]; err != nil {
		return 0, err
	}
	return s.scores[c.ID], nil
}

func TestRecommendationsAreSymmetric(t *testing.T) {
	b := newBoard(t)
	ctx := context.Background()

	jane := b.candidate("Jane", "Computer Science", "python", "sql")
	joe := b.candidate("Joe", "Design", "figma")
	nomajor := b.candidate("Nomajor", "", "python")

	backend := b.job("Backend Engineer", "Berlin", "Computer Science", "sql", "go")
	design := b.job("Graphic Designer", "Paris", "Design", "figma")
	otherMajor := b.job("Data Engineer", "Berlin", "Mathematics", "python")
	closed := b.job("Python Developer", "Berlin", "Computer Science", "python")

	b.apply(jane, backend)

	_, err := b.store.CloseJob(ctx, closed.ID, time.Now())
	require.NoError(t, err)

	e := New(b.store, nil, nil)

	jobs, err := e.RecommendJobs(ctx, jane.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, backend.ID, jobs[0].Job.ID)
	assert.True(t, jobs[0].HasApplied)

	cands, err := e.RecommendCandidates(ctx, backend.ID)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, jane.ID, cands[0].Candidate.ID)
	assert.True(t, cands[0].HasApplied)

	jobs, err = e.RecommendJobs(ctx, joe.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, design.ID, jobs[0].Job.ID)
	assert.False(t, jobs[0].HasApplied)

	jobs, err = e.RecommendJobs(ctx, nomajor.ID)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	cands, err = e.RecommendCandidates(ctx, otherMajor.ID)
	require.NoError(t, err)
	assert.Empty(t, cands)

	cands, err = e.RecommendCandidates(ctx, closed.ID)
	require.NoError(t, err)
	assert.Empty(t, cands)

	for _, c := range []*store.Candidate{jane, joe, nomajor} {
		recJobs, err := e.RecommendJobs(ctx, c.ID)
		require.NoError(t, err)

		for _, j := range []*store.Job{backend, design, otherMajor, closed} {
			recCands, err := e.RecommendCandidates(ctx, j.ID)
			require.NoError(t, err)

			jobListed := false
			for _, r := range recJobs {
				jobListed = jobListed || r.Job.ID == j.ID
			}
			candListed := false
			for _, r := range recCands {
				candListed = candListed || r.Candidate.ID == c.ID
			}
			assert.Equal(t, jobListed, candListed, "%s / %s", c.User.Name, j.Title)
		}
	}
}

func TestRecommendJobsSkipsClosedJobs(t *testing.T) {
	b := newBoard(t)
	ctx := context.Background()

	jane := b.candidate("Jane", "Computer Science", "python")
	j := b.job("Backend Engineer", "Berlin", "Computer Science", "python")

	_, err := b.store.CloseJob(ctx, j.ID, time.Now())
	require.NoError(t, err)

	jobs, err := New(b.store, nil, nil).RecommendJobs(ctx, jane.ID)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestRecommendUnknownIDs(t *testing.T) {
	b := newBoard(t)
	e := New(b.store, nil, nil)

	_, err := e.RecommendJobs(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrCandidateNotFound)

	_, err = e.RecommendCandidates(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestSearchJobs(t *testing.T) {
	b := newBoard(t)
	ctx := context.Background()

	older := b.job("Backend Engineer", "Berlin, Germany", "")
	newer := b.job("Backend Engineer II", "Remote", "")
	b.job("Graphic Designer", "Berlin", "")
	closed := b.job("Senior Backend Engineer", "Berlin", "")
	_, err := b.store.CloseJob(ctx, closed.ID, time.Now())
	require.NoError(t, err)

	e := New(b.store, nil, nil)

	found, err := e.SearchJobs(ctx, Query{Title: "Backend Engineer"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, newer.ID, found[0].ID)
	assert.Equal(t, older.ID, found[1].ID)

	found, err = e.SearchJobs(ctx, Query{Title: "backend engineer", Location: "Berlin"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, older.ID, found[0].ID)

	found, err = e.SearchJobs(ctx, Query{Title: "Backend Engineer", Location: "Berlin", IncludeClosed: true})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = e.SearchJobs(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, found, 3)
}

func TestSearchJobsLogsFilterStatus(t *testing.T) {
	b := newBoard(t)
	b.job("Backend Engineer", "Berlin", "")

	core, observed := observer.New(zapcore.DebugLevel)
	e := New(b.store, nil, nil, WithLogger(zap.New(core)))

	_, err := e.SearchJobs(context.Background(), Query{Title: "Backend Engineer", IncludeClosed: true})
	require.NoError(t, err)

	entries := observed.FilterMessage("search filters").All()
	require.Len(t, entries, 1)
	statuses, ok := entries[0].ContextMap()["filters"].([]filtering.Status)
	require.True(t, ok)
	require.Len(t, statuses, 3)

	byName := map[string]filtering.Status{}
	for _, s := range statuses {
		byName[s.Name] = s
	}
	assert.False(t, byName["open_only"].Enabled)
	assert.Equal(t, "closed jobs requested", byName["open_only"].Reason)
	assert.Equal(t, "Backend Engineer", byName["title_similarity"].Details["query"])
	assert.Equal(t, "empty query", byName["location_similarity"].Reason)
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    float64
		wantErr bool
	}{
		{name: "number", in: 0.72, want: 0.72},
		{name: "int", in: 1, want: 1},
		{name: "numeric string", in: " 0.5 ", want: 0.5},
		{name: "percent", in: "85%", want: 0.85},
		{name: "clamped high", in: 7.0, want: 1},
		{name: "clamped low", in: -0.2, want: 0},
		{name: "object", in: map[string]any{"match_score": 0.3}, want: 0.3},
		{name: "object score", in: map[string]any{"score": "40%"}, want: 0.4},
		{name: "object without score", in: map[string]any{"reason": "good"}, wantErr: true},
		{name: "words", in: "a strong fit", wantErr: true},
		{name: "nan", in: "NaN", wantErr: true},
		{name: "inf", in: math.Inf(1), wantErr: true},
		{name: "list", in: []any{0.5}, wantErr: true},
		{name: "nil", in: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseScore(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidScore)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

type stubValues struct {
	value any
	err   error
	tpl   ai.Template
	text  string
}

func (s *stubValues) ExtractValue(_ context.Context, tpl ai.Template, text string) (any, error) {
	s.tpl, s.text = tpl, text
	return s.value, s.err
}

func TestAIScorer(t *testing.T) {
	c := &store.Candidate{
		Skills:      []store.Skill{{Name: "python"}, {Name: "sql"}},
		Experiences: []store.WorkExperience{{Title: "Engineer", Company: "Initech", Description: "Built billing services."}},
	}
	j := &store.Job{Title: "Backend Engineer", Description: "Own billing.", Skills: []store.Skill{{Name: "go"}}}

	stub := &stubValues{value: 0.66}
	score, err := NewAIScorer(stub).Score(context.Background(), c, j)
	require.NoError(t, err)
	assert.InDelta(t, 0.66, score, 1e-9)
	assert.Equal(t, ai.TemplateJobMatch, stub.tpl)
	assert.Contains(t, stub.text, "Built billing services.")
	assert.Contains(t, stub.text, "Skills: python, sql")
	assert.Contains(t, stub.text, "Description: Own billing.")

	stub.value = "very good"
	_, err = NewAIScorer(stub).Score(context.Background(), c, j)
	require.ErrorIs(t, err, ErrInvalidScore)

	stub.err = ai.ErrExtractionFailed
	_, err = NewAIScorer(stub).Score(context.Background(), c, j)
	require.ErrorIs(t, err, ai.ErrExtractionFailed)
}

func TestCloseJobDecidesOnce(t *testing.T) {
	b := newBoard(t)
	ctx := context.Background()

	j := b.job("Backend Engineer", "Berlin", "Computer Science", "python")
	above := b.candidate("Above", "Computer Science", "python")
	at := b.candidate("At", "Computer Science", "python")
	broken := b.candidate("Broken", "Computer Science", "python")
	b.apply(above, j)
	b.apply(at, j)
	b.apply(broken, j)

	scorer := &fixedScorer{
		scores: map[uuid.UUID]float64{above.ID: 0.41, at.ID: 0.4},
		errs:   map[uuid.UUID]error{broken.ID: errors.New("model unavailable")},
	}
	sender := &fakeSender{}
	e := New(b.store, scorer, sender)

	report, err := e.CloseJob(ctx, j.ID)
	require.NoError(t, err)
	assert.True(t, report.Closed)

	require.Len(t, report.Shortlisted, 1)
	assert.Equal(t, above.ID, report.Shortlisted[0].CandidateID)
	assert.Equal(t, "above@x.com", report.Shortlisted[0].Email)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, at.ID, report.Rejected[0].CandidateID)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, broken.ID, report.Failed[0].CandidateID)

	apps, err := b.store.ListApplicationsByJob(ctx, j.ID)
	require.NoError(t, err)
	statuses := map[uuid.UUID]string{}
	for _, a := range apps {
		statuses[a.CandidateID] = a.Status
		if a.CandidateID == broken.ID {
			assert.Nil(t, a.MatchScore)
		}
	}
	assert.Equal(t, store.StatusShortlisted, statuses[above.ID])
	assert.Equal(t, store.StatusRejected, statuses[at.ID])
	assert.Equal(t, store.StatusPending, statuses[broken.ID])

	require.Len(t, sender.sent, 3)
	recipients := map[string]sentMail{}
	for _, m := range sender.sent {
		recipients[m.email] = m
	}
	assert.Contains(t, recipients["above@x.com"].subject, "shortlisted")
	assert.Contains(t, recipients["at@x.com"].subject, "Update on your application")
	assert.Contains(t, recipients["rita@acme.io"].html, "above@x.com")

	closedJob, err := b.store.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.False(t, closedJob.IsOpen)
	assert.NotNil(t, closedJob.ClosedAt)

	again, err := e.CloseJob(ctx, j.ID)
	require.NoError(t, err)
	assert.False(t, again.Closed)
	assert.Empty(t, again.Shortlisted)
	assert.Equal(t, 3, scorer.calls)
	assert.Len(t, sender.sent, 3)

	scorer.errs = nil
	scorer.scores[broken.ID] = 0.9
	retried, err := e.DecidePending(ctx, j.ID)
	require.NoError(t, err)
	assert.False(t, retried.Closed)
	require.Len(t, retried.Shortlisted, 1)
	assert.Equal(t, broken.ID, retried.Shortlisted[0].CandidateID)
	assert.Empty(t, retried.Rejected)
	assert.Empty(t, retried.Failed)
	assert.Equal(t, 4, scorer.calls)
	// candidate mail plus a recruiter summary
	require.Len(t, sender.sent, 5)
	assert.Contains(t, sender.sent[4].html, "broken@x.com")

	nothing, err := e.DecidePending(ctx, j.ID)
	require.NoError(t, err)
	assert.Empty(t, nothing.Shortlisted)
	assert.Empty(t, nothing.Rejected)
	assert.Equal(t, 4, scorer.calls)
	assert.Len(t, sender.sent, 5)
}

func TestDecidePendingNeedsClosedJob(t *testing.T) {
	b := newBoard(t)
	j := b.job("Backend Engineer", "Berlin", "Computer Science", "python")
	b.apply(b.candidate("Early", "Computer Science", "python"), j)

	scorer := &fixedScorer{}
	_, err := New(b.store, scorer, &fakeSender{}).DecidePending(context.Background(), j.ID)
	require.ErrorIs(t, err, ErrJobOpen)
	assert.Zero(t, scorer.calls)
}

func TestCloseUnknownJob(t *testing.T) {
	b := newBoard(t)
	_, err := New(b.store, &fixedScorer{}, &fakeSender{}).CloseJob(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestShortlistThreshold(t *testing.T) {
	e := New(nil, nil, nil)
	assert.Equal(t, store.StatusShortlisted, e.Status(0.41))
	assert.Equal(t, store.StatusRejected, e.Status(0.4))

	strict := New(nil, nil, nil, WithShortlistThreshold(0.8))
	assert.Equal(t, store.StatusRejected, strict.Status(0.79))
}

func TestApply(t *testing.T) {
	b := newBoard(t)
	ctx := context.Background()

	jane := b.candidate("Jane", "Computer Science", "python")
	j := b.job("Backend Engineer", "Berlin", "Computer Science", "python")
	e := New(b.store, nil, nil)

	app, err := e.Apply(ctx, jane.ID, j.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, app.Status)

	_, err = e.Apply(ctx, jane.ID, j.ID)
	require.ErrorIs(t, err, ErrAlreadyApplied)

	_, err = e.Apply(ctx, uuid.New(), j.ID)
	require.ErrorIs(t, err, ErrCandidateNotFound)

	_, err = b.store.CloseJob(ctx, j.ID, time.Now())
	require.NoError(t, err)
	other := b.candidate("Joe", "Computer Science")
	_, err = e.Apply(ctx, other.ID, j.ID)
	require.ErrorIs(t, err, ErrJobClosed)
}
