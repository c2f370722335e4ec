// Package memstore is an in-memory store.Store. Each transaction works on a
// private copy of the data that replaces the shared copy on commit.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/jobmatch/internal/store"
)

type state struct {
	users        map[uuid.UUID]store.User
	candidates   map[uuid.UUID]store.Candidate
	candSkills   map[uuid.UUID][]uint
	candLangs    map[uuid.UUID][]uint
	experiences  []store.WorkExperience
	recruiters   map[uuid.UUID]store.Recruiter
	jobs         map[uuid.UUID]store.Job
	jobSkills    map[uuid.UUID][]uint
	applications map[uuid.UUID]store.Application
	entities     map[store.Kind][]store.Entity
	uploads      []store.Upload
}

func newState() *state {
	return &state{
		users:        map[uuid.UUID]store.User{},
		candidates:   map[uuid.UUID]store.Candidate{},
		candSkills:   map[uuid.UUID][]uint{},
		candLangs:    map[uuid.UUID][]uint{},
		recruiters:   map[uuid.UUID]store.Recruiter{},
		jobs:         map[uuid.UUID]store.Job{},
		jobSkills:    map[uuid.UUID][]uint{},
		applications: map[uuid.UUID]store.Application{},
		entities:     map[store.Kind][]store.Entity{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.candidates {
		c.candidates[k] = v
	}
	for k, v := range s.candSkills {
		c.candSkills[k] = append([]uint(nil), v...)
	}
	for k, v := range s.candLangs {
		c.candLangs[k] = append([]uint(nil), v...)
	}
	c.experiences = append(c.experiences, s.experiences...)
	for k, v := range s.recruiters {
		c.recruiters[k] = v
	}
	for k, v := range s.jobs {
		v.Responsibilities = append(v.Responsibilities[:0:0], v.Responsibilities...)
		c.jobs[k] = v
	}
	for k, v := range s.jobSkills {
		c.jobSkills[k] = append([]uint(nil), v...)
	}
	for k, v := range s.applications {
		c.applications[k] = v
	}
	for k, v := range s.entities {
		c.entities[k] = append([]store.Entity(nil), v...)
	}
	c.uploads = append(c.uploads, s.uploads...)
	return c
}

// Store is safe for concurrent use. Transactions are serialized.
type Store struct {
	repo
	mu sync.Mutex
	st *state
}

// Option customizes a Store.
type Option func(*Store)

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{st: newState()}
	s.repo = repo{st: s.st, mu: &s.mu, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InTx runs fn against a private copy that replaces the shared data when fn
// succeeds.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&repo{st: work, now: s.now}); err != nil {
		return err
	}

	*s.st = *work
	return nil
}

func (s *Store) Close() error { return nil }

// Uploads returns the recorded upload audit rows.
func (s *Store) Uploads() []store.Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.Upload(nil), s.st.uploads...)
}

type repo struct {
	mu  *sync.Mutex
	st  *state
	now func() time.Time
}

func (r *repo) lock() func() {
	if r.mu == nil {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func notFound(what string, id any) error {
	return fmt.Errorf("%s %v: %w", what, id, store.ErrNotFound)
}

func appendUnique(ids []uint, id uint) []uint {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func (r *repo) stamp(created *time.Time, updated *time.Time) {
	now := r.now()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}

func (r *repo) CreateUser(_ context.Context, u *store.User) error {
	defer r.lock()()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if _, ok := r.st.users[u.ID]; ok {
		return fmt.Errorf("user %s: %w", u.ID, store.ErrDuplicate)
	}
	if u.Email != "" {
		for _, other := range r.st.users {
			if strings.EqualFold(other.Email, u.Email) {
				return fmt.Errorf("user email %s: %w", u.Email, store.ErrDuplicate)
			}
		}
	}
	r.stamp(&u.CreatedAt, &u.UpdatedAt)
	r.st.users[u.ID] = *u
	return nil
}

func (r *repo) GetUser(_ context.Context, id uuid.UUID) (*store.User, error) {
	defer r.lock()()
	u, ok := r.st.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return &u, nil
}

func (r *repo) UpdateUser(_ context.Context, u *store.User) error {
	defer r.lock()()
	existing, ok := r.st.users[u.ID]
	if !ok {
		return notFound("user", u.ID)
	}
	if u.Email != "" {
		for id, other := range r.st.users {
			if id != u.ID && strings.EqualFold(other.Email, u.Email) {
				return fmt.Errorf("user email %s: %w", u.Email, store.ErrDuplicate)
			}
		}
	}
	u.CreatedAt = existing.CreatedAt
	r.stamp(nil, &u.UpdatedAt)
	r.st.users[u.ID] = *u
	return nil
}

func (r *repo) CreateCandidate(_ context.Context, c *store.Candidate) error {
	defer r.lock()()
	if _, ok := r.st.users[c.UserID]; !ok {
		return notFound("user", c.UserID)
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	for _, other := range r.st.candidates {
		if other.ID == c.ID || other.UserID == c.UserID {
			return fmt.Errorf("candidate for user %s: %w", c.UserID, store.ErrDuplicate)
		}
	}
	r.stamp(&c.CreatedAt, &c.UpdatedAt)
	r.st.candidates[c.ID] = scalarCandidate(c)
	return nil
}

func (r *repo) GetCandidate(_ context.Context, id uuid.UUID) (*store.Candidate, error) {
	defer r.lock()()
	c, ok := r.st.candidates[id]
	if !ok {
		return nil, notFound("candidate", id)
	}
	return r.loadCandidate(c), nil
}

func (r *repo) GetCandidateByUser(_ context.Context, userID uuid.UUID) (*store.Candidate, error) {
	defer r.lock()()
	for _, c := range r.st.candidates {
		if c.UserID == userID {
			return r.loadCandidate(c), nil
		}
	}
	return nil, notFound("candidate for user", userID)
}

func (r *repo) ListCandidates(_ context.Context) ([]*store.Candidate, error) {
	defer r.lock()()
	out := make([]*store.Candidate, 0, len(r.st.candidates))
	for _, c := range r.st.candidates {
		out = append(out, r.loadCandidate(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *repo) UpdateCandidate(_ context.Context, c *store.Candidate) error {
	defer r.lock()()
	existing, ok := r.st.candidates[c.ID]
	if !ok {
		return notFound("candidate", c.ID)
	}
	c.CreatedAt = existing.CreatedAt
	r.stamp(nil, &c.UpdatedAt)
	r.st.candidates[c.ID] = scalarCandidate(c)
	return nil
}

func (r *repo) AttachCandidateSkill(_ context.Context, candidateID uuid.UUID, skillID uint) error {
	defer r.lock()()
	if _, ok := r.st.candidates[candidateID]; !ok {
		return notFound("candidate", candidateID)
	}
	if _, ok := r.entity(store.KindSkill, skillID); !ok {
		return notFound("skill", skillID)
	}
	r.st.candSkills[candidateID] = appendUnique(r.st.candSkills[candidateID], skillID)
	return nil
}

func (r *repo) AttachCandidateLanguage(_ context.Context, candidateID uuid.UUID, languageID uint) error {
	defer r.lock()()
	if _, ok := r.st.candidates[candidateID]; !ok {
		return notFound("candidate", candidateID)
	}
	if _, ok := r.entity(store.KindLanguage, languageID); !ok {
		return notFound("language", languageID)
	}
	r.st.candLangs[candidateID] = appendUnique(r.st.candLangs[candidateID], languageID)
	return nil
}

func (r *repo) CreateWorkExperience(_ context.Context, e *store.WorkExperience) error {
	defer r.lock()()
	if _, ok := r.st.candidates[e.CandidateID]; !ok {
		return notFound("candidate", e.CandidateID)
	}
	e.ID = uint(len(r.st.experiences) + 1)
	r.stamp(&e.CreatedAt, nil)
	r.st.experiences = append(r.st.experiences, *e)
	return nil
}

func (r *repo) CreateRecruiter(_ context.Context, rec *store.Recruiter) error {
	defer r.lock()()
	if _, ok := r.st.users[rec.UserID]; !ok {
		return notFound("user", rec.UserID)
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	for _, other := range r.st.recruiters {
		if other.ID == rec.ID || other.UserID == rec.UserID {
			return fmt.Errorf("recruiter for user %s: %w", rec.UserID, store.ErrDuplicate)
		}
	}
	r.stamp(&rec.CreatedAt, &rec.UpdatedAt)
	stored := *rec
	stored.User = nil
	r.st.recruiters[rec.ID] = stored
	return nil
}

func (r *repo) GetRecruiter(_ context.Context, id uuid.UUID) (*store.Recruiter, error) {
	defer r.lock()()
	rec, ok := r.st.recruiters[id]
	if !ok {
		return nil, notFound("recruiter", id)
	}
	return r.loadRecruiter(rec), nil
}

func (r *repo) CreateJob(_ context.Context, j *store.Job) error {
	defer r.lock()()
	if _, ok := r.st.recruiters[j.RecruiterID]; !ok {
		return notFound("recruiter", j.RecruiterID)
	}
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if _, ok := r.st.jobs[j.ID]; ok {
		return fmt.Errorf("job %s: %w", j.ID, store.ErrDuplicate)
	}
	r.stamp(&j.CreatedAt, &j.UpdatedAt)
	r.st.jobs[j.ID] = scalarJob(j)
	return nil
}

func (r *repo) GetJob(_ context.Context, id uuid.UUID) (*store.Job, error) {
	defer r.lock()()
	j, ok := r.st.jobs[id]
	if !ok {
		return nil, notFound("job", id)
	}
	return r.loadJob(j), nil
}

func (r *repo) ListJobs(_ context.Context) ([]*store.Job, error) {
	defer r.lock()()
	out := make([]*store.Job, 0, len(r.st.jobs))
	for _, j := range r.st.jobs {
		out = append(out, r.loadJob(j))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *repo) UpdateJob(_ context.Context, j *store.Job) error {
	defer r.lock()()
	existing, ok := r.st.jobs[j.ID]
	if !ok {
		return notFound("job", j.ID)
	}
	j.CreatedAt = existing.CreatedAt
	r.stamp(nil, &j.UpdatedAt)
	r.st.jobs[j.ID] = scalarJob(j)
	return nil
}

func (r *repo) AttachJobSkill(_ context.Context, jobID uuid.UUID, skillID uint) error {
	defer r.lock()()
	if _, ok := r.st.jobs[jobID]; !ok {
		return notFound("job", jobID)
	}
	if _, ok := r.entity(store.KindSkill, skillID); !ok {
		return notFound("skill", skillID)
	}
	r.st.jobSkills[jobID] = appendUnique(r.st.jobSkills[jobID], skillID)
	return nil
}

func (r *repo) CloseJob(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	defer r.lock()()
	j, ok := r.st.jobs[id]
	if !ok {
		return false, notFound("job", id)
	}
	if !j.IsOpen {
		return false, nil
	}
	j.IsOpen = false
	j.ClosedAt = &at
	j.UpdatedAt = r.now()
	r.st.jobs[id] = j
	return true, nil
}

func (r *repo) CreateApplication(_ context.Context, a *store.Application) error {
	defer r.lock()()
	if _, ok := r.st.candidates[a.CandidateID]; !ok {
		return notFound("candidate", a.CandidateID)
	}
	if _, ok := r.st.jobs[a.JobID]; !ok {
		return notFound("job", a.JobID)
	}
	for _, other := range r.st.applications {
		if other.CandidateID == a.CandidateID && other.JobID == a.JobID {
			return fmt.Errorf("application of %s to %s: %w", a.CandidateID, a.JobID, store.ErrDuplicate)
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = store.StatusPending
	}
	r.stamp(&a.CreatedAt, &a.UpdatedAt)
	r.st.applications[a.ID] = scalarApplication(a)
	return nil
}

func (r *repo) ListApplicationsByJob(_ context.Context, jobID uuid.UUID) ([]*store.Application, error) {
	defer r.lock()()
	if _, ok := r.st.jobs[jobID]; !ok {
		return nil, notFound("job", jobID)
	}
	out := []*store.Application{}
	for _, a := range r.st.applications {
		if a.JobID != jobID {
			continue
		}
		a := a
		if c, ok := r.st.candidates[a.CandidateID]; ok {
			a.Candidate = r.loadCandidate(c)
		}
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *repo) UpdateApplication(_ context.Context, a *store.Application) error {
	defer r.lock()()
	existing, ok := r.st.applications[a.ID]
	if !ok {
		return notFound("application", a.ID)
	}
	a.CreatedAt = existing.CreatedAt
	r.stamp(nil, &a.UpdatedAt)
	r.st.applications[a.ID] = scalarApplication(a)
	return nil
}

func (r *repo) FindEntity(_ context.Context, kind store.Kind, key string) (*store.Entity, error) {
	defer r.lock()()
	for _, e := range r.st.entities[kind] {
		if e.Key == key {
			e := e
			return &e, nil
		}
	}
	return nil, notFound(kind.String(), key)
}

// FindCommittedEntity is FindEntity. A memstore transaction works on a
// private copy, so there is nothing newer to read.
func (r *repo) FindCommittedEntity(ctx context.Context, kind store.Kind, key string) (*store.Entity, error) {
	return r.FindEntity(ctx, kind, key)
}

func (r *repo) SearchEntities(_ context.Context, kind store.Kind, fragment string) ([]*store.Entity, error) {
	defer r.lock()()
	out := []*store.Entity{}
	for _, e := range r.st.entities[kind] {
		if strings.Contains(e.Key, fragment) {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r *repo) CreateEntity(_ context.Context, kind store.Kind, e *store.Entity) error {
	defer r.lock()()
	if !kind.Valid() {
		return fmt.Errorf("unknown entity kind %s", kind)
	}
	for _, existing := range r.st.entities[kind] {
		if existing.Key == e.Key {
			return fmt.Errorf("%s %q: %w", kind, e.Key, store.ErrDuplicate)
		}
	}
	e.ID = uint(len(r.st.entities[kind]) + 1)
	r.st.entities[kind] = append(r.st.entities[kind], *e)
	return nil
}

func (r *repo) CreateUpload(_ context.Context, u *store.Upload) error {
	defer r.lock()()
	u.ID = uint(len(r.st.uploads) + 1)
	r.stamp(&u.CreatedAt, nil)
	r.st.uploads = append(r.st.uploads, *u)
	return nil
}

func (r *repo) entity(kind store.Kind, id uint) (store.Entity, bool) {
	list := r.st.entities[kind]
	if id == 0 || int(id) > len(list) {
		return store.Entity{}, false
	}
	return list[id-1], true
}

func (r *repo) loadCandidate(c store.Candidate) *store.Candidate {
	if u, ok := r.st.users[c.UserID]; ok {
		c.User = &u
	}
	if c.MajorID != nil {
		if e, ok := r.entity(store.KindMajor, *c.MajorID); ok {
			m := e.Major()
			c.Major = &m
		}
	}

	c.Skills = []store.Skill{}
	for _, id := range r.st.candSkills[c.ID] {
		if e, ok := r.entity(store.KindSkill, id); ok {
			c.Skills = append(c.Skills, e.Skill())
		}
	}

	c.Languages = []store.Language{}
	for _, id := range r.st.candLangs[c.ID] {
		if e, ok := r.entity(store.KindLanguage, id); ok {
			c.Languages = append(c.Languages, e.Language())
		}
	}

	c.Experiences = []store.WorkExperience{}
	for _, e := range r.st.experiences {
		if e.CandidateID == c.ID {
			c.Experiences = append(c.Experiences, e)
		}
	}

	c.Applications = nil
	for _, a := range r.st.applications {
		if a.CandidateID == c.ID {
			c.Applications = append(c.Applications, a)
		}
	}
	sort.Slice(c.Applications, func(i, j int) bool {
		return c.Applications[i].CreatedAt.Before(c.Applications[j].CreatedAt)
	})

	return &c
}

func (r *repo) loadRecruiter(rec store.Recruiter) *store.Recruiter {
	if u, ok := r.st.users[rec.UserID]; ok {
		rec.User = &u
	}
	return &rec
}

func (r *repo) loadJob(j store.Job) *store.Job {
	if rec, ok := r.st.recruiters[j.RecruiterID]; ok {
		j.Recruiter = r.loadRecruiter(rec)
	}
	if j.MajorID != nil {
		if e, ok := r.entity(store.KindMajor, *j.MajorID); ok {
			m := e.Major()
			j.Major = &m
		}
	}
	j.Skills = []store.Skill{}
	for _, id := range r.st.jobSkills[j.ID] {
		if e, ok := r.entity(store.KindSkill, id); ok {
			j.Skills = append(j.Skills, e.Skill())
		}
	}
	j.Responsibilities = append(j.Responsibilities[:0:0], j.Responsibilities...)
	return &j
}

func scalarCandidate(c *store.Candidate) store.Candidate {
	out := *c
	out.User = nil
	out.Major = nil
	out.Skills = nil
	out.Languages = nil
	out.Experiences = nil
	out.Applications = nil
	return out
}

func scalarJob(j *store.Job) store.Job {
	out := *j
	out.Recruiter = nil
	out.Major = nil
	out.Skills = nil
	out.Responsibilities = append(j.Responsibilities[:0:0], j.Responsibilities...)
	return out
}

func scalarApplication(a *store.Application) store.Application {
	out := *a
	out.Candidate = nil
	out.Job = nil
	return out
}
