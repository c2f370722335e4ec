package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/jobmatch/internal/ai"
	"github.com/spigell/jobmatch/internal/filestore"
	"github.com/spigell/jobmatch/internal/reconcile"
	"github.com/spigell/jobmatch/internal/skills"
	"github.com/spigell/jobmatch/internal/store"
	"github.com/spigell/jobmatch/internal/store/memstore"
)

var fixedNow = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

type stubExtractor struct {
	rec       ai.Record
	err       error
	templates []ai.Template
	texts     []string
}

func (s *stubExtractor) Extract(_ context.Context, tpl ai.Template, text string) (ai.Record, error) {
	s.templates = append(s.templates, tpl)
	s.texts = append(s.texts, text)
	return s.rec, s.err
}

type stubText struct {
	text string
	err  error
}

func (s stubText) ExtractFile(context.Context, string) (string, error) {
	return s.text, s.err
}

type fixture struct {
	store     *memstore.Store
	extractor *stubExtractor
	pipeline  *Pipeline
	user      *store.User
	candidate *store.Candidate
	recruiter *store.Recruiter
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	table, err := skills.Default()
	require.NoError(t, err)

	s := memstore.New()
	user := &store.User{Name: "placeholder", Email: "placeholder@example.com"}
	require.NoError(t, s.CreateUser(ctx, user))
	candidate := &store.Candidate{UserID: user.ID}
	require.NoError(t, s.CreateCandidate(ctx, candidate))

	recUser := &store.User{Name: "Rita", Email: "rita@acme.io"}
	require.NoError(t, s.CreateUser(ctx, recUser))
	recruiter := &store.Recruiter{UserID: recUser.ID, CompanyName: "Acme"}
	require.NoError(t, s.CreateRecruiter(ctx, recruiter))

	ex := &stubExtractor{}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)

	return &fixture{
		store:     s,
		extractor: ex,
		pipeline:  New(s, ex, stubText{text: "Jane Doe, jane@x.com, Computer Science, Python, SQL"}, reconcile.New(table), opts...),
		user:      user,
		candidate: candidate,
		recruiter: recruiter,
	}
}

func janeDoe() ai.Record {
	return ai.Record{
		"name":   "Jane Doe",
		"email":  "jane@x.com",
		"major":  "Computer Science",
		"skills": []any{"Python", "SQL"},
	}
}

func TestIngestCandidateScenario(t *testing.T) {
	f := newFixture(t)

	c, err := f.pipeline.IngestCandidate(context.Background(), f.user.ID, janeDoe())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"python", "sql"}, c.SkillNames())
	require.NotNil(t, c.Major)
	assert.Equal(t, "Computer Science", c.Major.Name)
	assert.Empty(t, c.Experiences)
	require.NotNil(t, c.User)
	assert.Equal(t, "Jane Doe", c.User.Name)
	assert.Equal(t, "jane@x.com", c.User.Email)
}

func TestIngestCandidateIsIdempotentForSkills(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := janeDoe()
	rec["skills"] = []any{"python", "Python Developer", "python3"}

	_, err := f.pipeline.IngestCandidate(ctx, f.user.ID, rec)
	require.NoError(t, err)
	c, err := f.pipeline.IngestCandidate(ctx, f.user.ID, rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"python"}, c.SkillNames())
}

func TestIngestCandidateObjectShapedSkills(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := janeDoe()
	rec["skills"] = []any{
		map[string]any{"name": "Go"},
		map[string]any{"title": "SQL", "years": 4.0},
		map[string]any{"level": "expert"},
	}
	rec["languages"] = []any{map[string]any{"name": "English", "level": "C1"}}

	c, err := f.pipeline.IngestCandidate(ctx, f.user.ID, rec)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"go", "sql"}, c.SkillNames())
	require.Len(t, c.Languages, 1)
	assert.Equal(t, "English", c.Languages[0].Name)
}

func TestIngestCandidateExperiences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := janeDoe()
	rec["languages"] = "English, German"
	rec["experiences"] = []any{
		map[string]any{
			"title":       "Backend Engineer",
			"company":     "Initech",
			"start_date":  "01/2021",
			"end_date":    "present",
			"description": "Built billing services.",
		},
		map[string]any{
			"title":      "Intern",
			"company":    "Globex",
			"start_date": "summer of love",
		},
	}

	c, err := f.pipeline.IngestCandidate(ctx, f.user.ID, rec)
	require.NoError(t, err)
	require.Len(t, c.Experiences, 2)
	assert.Len(t, c.Languages, 2)

	byTitle := map[string]store.WorkExperience{}
	for _, e := range c.Experiences {
		byTitle[e.Title] = e
	}

	backend := byTitle["Backend Engineer"]
	require.NotNil(t, backend.StartDate)
	assert.True(t, backend.StartDate.Equal(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NotNil(t, backend.EndDate)
	assert.True(t, backend.EndDate.Equal(fixedNow))

	intern := byTitle["Intern"]
	assert.Nil(t, intern.StartDate)
	assert.Nil(t, intern.EndDate)

	again, err := f.pipeline.IngestCandidate(ctx, f.user.ID, rec)
	require.NoError(t, err)
	assert.Len(t, again.Experiences, 2)
}

func TestIngestCandidateValidation(t *testing.T) {
	f := newFixture(t)

	rec := janeDoe()
	delete(rec, "email")

	_, err := f.pipeline.IngestCandidate(context.Background(), f.user.ID, rec)
	require.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"email"}, verr.Fields)

	rec["email"] = "not an address"
	_, err = f.pipeline.IngestCandidate(context.Background(), f.user.ID, rec)
	require.ErrorIs(t, err, ErrValidation)
}

func TestIngestCandidateOwnerMustExist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.pipeline.IngestCandidate(ctx, uuid.New(), janeDoe())
	require.ErrorIs(t, err, ErrUserNotFound)

	lonely := &store.User{Name: "Lonely", Email: "lonely@example.com"}
	require.NoError(t, f.store.CreateUser(ctx, lonely))
	_, err = f.pipeline.IngestCandidate(ctx, lonely.ID, janeDoe())
	require.ErrorIs(t, err, ErrCandidateNotFound)
}

// failingStore makes UpdateCandidate fail inside transactions.
type failingStore struct {
	*memstore.Store
}

type failingTx struct {
	store.Repository
}

var errDiskFull = errors.New("disk full")

func (failingTx) UpdateCandidate(context.Context, *store.Candidate) error {
	return errDiskFull
}

func (s failingStore) InTx(ctx context.Context, fn func(tx store.Repository) error) error {
	return s.Store.InTx(ctx, func(tx store.Repository) error {
		return fn(failingTx{Repository: tx})
	})
}

func TestFailedIngestionLeavesNoOrphanEntities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	table, err := skills.Default()
	require.NoError(t, err)
	p := New(failingStore{f.store}, f.extractor, stubText{}, reconcile.New(table))

	rec := janeDoe()
	rec["skills"] = []any{"erlang"}
	rec["experiences"] = []any{map[string]any{"title": "Engineer", "company": "Acme"}}

	_, err = p.IngestCandidate(ctx, f.user.ID, rec)
	require.ErrorIs(t, err, errDiskFull)

	_, err = f.store.FindEntity(ctx, store.KindSkill, "erlang")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.store.FindEntity(ctx, store.KindMajor, "computer science")
	require.ErrorIs(t, err, store.ErrNotFound)

	u, err := f.store.GetUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "placeholder", u.Name)
}

func TestIngestJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	j, err := f.pipeline.IngestJob(ctx, f.recruiter.ID, ai.Record{
		"title":               "Backend Engineer",
		"major":               "computer science",
		"years_of_experience": "3+ years",
		"responsibilities":    []any{"Design APIs", "Review code"},
		"skills":              []any{"Golang", "postgres", "k8s"},
		"location":            "Berlin, Germany",
		"job_desc":            "Own the billing backend.",
	})
	require.NoError(t, err)

	assert.True(t, j.IsOpen)
	assert.Equal(t, 3, j.YearsOfExperience)
	assert.Equal(t, "Own the billing backend.", j.Description)
	assert.Equal(t, []string{"Design APIs", "Review code"}, j.ResponsibilityList())
	assert.ElementsMatch(t, []string{"go", "postgresql", "kubernetes"}, j.SkillNames())
	require.NotNil(t, j.Major)
	assert.Equal(t, "computer science", j.Major.Key)
}

func TestIngestJobValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.pipeline.IngestJob(ctx, f.recruiter.ID, ai.Record{"title": " "})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.pipeline.IngestJob(ctx, f.recruiter.ID, ai.Record{"title": "QA", "years_of_experience": "many"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "years_of_experience")

	_, err = f.pipeline.IngestJob(ctx, uuid.New(), ai.Record{"title": "QA"})
	require.ErrorIs(t, err, ErrRecruiterNotFound)
}

func TestIngestCandidateDocumentRetainsFile(t *testing.T) {
	files, err := filestore.NewLocal(t.TempDir(), nil)
	require.NoError(t, err)

	f := newFixture(t, WithFileStore(files))
	f.extractor.rec = janeDoe()

	path := filepath.Join(t.TempDir(), "resume.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	c, err := f.pipeline.IngestCandidateDocument(context.Background(), f.user.ID, path)
	require.NoError(t, err)

	assert.Equal(t, []ai.Template{ai.TemplateCandidate}, f.extractor.templates)
	assert.Equal(t, []string{"Jane Doe, jane@x.com, Computer Science, Python, SQL"}, f.extractor.texts)
	assert.ElementsMatch(t, []string{"python", "sql"}, c.SkillNames())
	assert.True(t, strings.HasPrefix(c.CVURL, "file://"))

	stored := strings.TrimPrefix(c.CVURL, "file://")
	_, err = os.Stat(filepath.FromSlash(stored))
	require.NoError(t, err)

	uploads := f.store.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, store.UploadCandidateCV, uploads[0].Kind)
	assert.Equal(t, "resume.pdf", uploads[0].Filename)
	assert.Equal(t, c.ID, uploads[0].OwnerID)
}

type recordingFiles struct {
	saved   []string
	deleted []string
}

func (r *recordingFiles) Save(_ context.Context, key, _ string) (string, error) {
	r.saved = append(r.saved, key)
	return "mem://" + key, nil
}

func (r *recordingFiles) Delete(_ context.Context, key string) error {
	r.deleted = append(r.deleted, key)
	return nil
}

func TestFailedDocumentIngestionDiscardsFile(t *testing.T) {
	files := &recordingFiles{}
	f := newFixture(t)

	table, err := skills.Default()
	require.NoError(t, err)
	p := New(failingStore{f.store}, &stubExtractor{rec: ai.Record{
		"email":       "jane@x.com",
		"experiences": []any{map[string]any{"title": "Engineer"}},
	}}, stubText{text: "cv"}, reconcile.New(table), WithFileStore(files))

	_, err = p.IngestCandidateDocument(context.Background(), f.user.ID, "/tmp/cv.docx")
	require.ErrorIs(t, err, errDiskFull)

	require.Len(t, files.saved, 1)
	assert.Equal(t, files.saved, files.deleted)
	assert.Empty(t, f.store.Uploads())
}

func TestIngestJobDocumentFallsBackToText(t *testing.T) {
	f := newFixture(t)
	f.extractor.rec = ai.Record{"title": "Data Analyst", "skills": "sql, excel"}

	j, err := f.pipeline.IngestJobDocument(context.Background(), f.recruiter.ID, "/tmp/job.docx")
	require.NoError(t, err)

	assert.Equal(t, []ai.Template{ai.TemplateJob}, f.extractor.templates)
	assert.Equal(t, "Jane Doe, jane@x.com, Computer Science, Python, SQL", j.Description)
	assert.ElementsMatch(t, []string{"sql", "excel"}, j.SkillNames())
	assert.Empty(t, j.DescriptionURL)
}

func TestDocumentErrorsStopIngestion(t *testing.T) {
	f := newFixture(t)
	unreadable := errors.New("unreadable")

	table, err := skills.Default()
	require.NoError(t, err)
	p := New(f.store, f.extractor, stubText{err: unreadable}, reconcile.New(table))

	_, err = p.IngestCandidateDocument(context.Background(), f.user.ID, "/tmp/cv.pdf")
	require.ErrorIs(t, err, unreadable)
	assert.Empty(t, f.extractor.templates)

	f.extractor.err = ai.ErrExtractionFailed
	_, err = f.pipeline.IngestCandidateDocument(context.Background(), f.user.ID, "/tmp/cv.pdf")
	require.ErrorIs(t, err, ai.ErrExtractionFailed)
}

func TestInsights(t *testing.T) {
	f := newFixture(t)
	f.extractor.rec = ai.Record{"ats_score": 72}

	rec, err := f.pipeline.Insights(context.Background(), "/tmp/cv.pdf")
	require.NoError(t, err)
	assert.Equal(t, ai.Record{"ats_score": 72}, rec)
	assert.Equal(t, []ai.Template{ai.TemplateATSInsights}, f.extractor.templates)
}
