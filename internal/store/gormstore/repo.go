package gormstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/spigell/jobmatch/internal/store"
)

type repo struct {
	db *gorm.DB
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *repo) candidateQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("User").
		Preload("Major").
		Preload("Skills").
		Preload("Languages").
		Preload("Experiences", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Applications")
}

func (r *repo) jobQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Recruiter.User").
		Preload("Major").
		Preload("Skills")
}

func (r *repo) CreateUser(ctx context.Context, u *store.User) error {
	return translate(r.db.WithContext(ctx).Create(u).Error, "create user")
}

func (r *repo) GetUser(ctx context.Context, id uuid.UUID) (*store.User, error) {
	var u store.User
	if err := r.db.WithContext(ctx).Take(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err, "get user %s", id)
	}
	return &u, nil
}

func (r *repo) UpdateUser(ctx context.Context, u *store.User) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(u).Error, "update user %s", u.ID)
}

func (r *repo) CreateCandidate(ctx context.Context, c *store.Candidate) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error, "create candidate")
}

func (r *repo) GetCandidate(ctx context.Context, id uuid.UUID) (*store.Candidate, error) {
	var c store.Candidate
	if err := r.candidateQuery(ctx).Take(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err, "get candidate %s", id)
	}
	return &c, nil
}

func (r *repo) GetCandidateByUser(ctx context.Context, userID uuid.UUID) (*store.Candidate, error) {
	var c store.Candidate
	if err := r.candidateQuery(ctx).Take(&c, "user_id = ?", userID).Error; err != nil {
		return nil, translate(err, "get candidate of user %s", userID)
	}
	return &c, nil
}

func (r *repo) ListCandidates(ctx context.Context) ([]*store.Candidate, error) {
	var out []*store.Candidate
	if err := r.candidateQuery(ctx).Order("created_at").Find(&out).Error; err != nil {
		return nil, translate(err, "list candidates")
	}
	return out, nil
}

func (r *repo) UpdateCandidate(ctx context.Context, c *store.Candidate) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(c).Error, "update candidate %s", c.ID)
}

func (r *repo) AttachCandidateSkill(ctx context.Context, candidateID uuid.UUID, skillID uint) error {
	row := &candidateSkill{CandidateID: candidateID, SkillID: skillID}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
	return translate(err, "attach skill %d to candidate %s", skillID, candidateID)
}

func (r *repo) AttachCandidateLanguage(ctx context.Context, candidateID uuid.UUID, languageID uint) error {
	row := &candidateLanguage{CandidateID: candidateID, LanguageID: languageID}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
	return translate(err, "attach language %d to candidate %s", languageID, candidateID)
}

func (r *repo) CreateWorkExperience(ctx context.Context, e *store.WorkExperience) error {
	return translate(r.db.WithContext(ctx).Create(e).Error, "create work experience")
}

func (r *repo) CreateRecruiter(ctx context.Context, rec *store.Recruiter) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(rec).Error, "create recruiter")
}

func (r *repo) GetRecruiter(ctx context.Context, id uuid.UUID) (*store.Recruiter, error) {
	var rec store.Recruiter
	if err := r.db.WithContext(ctx).Preload("User").Take(&rec, "id = ?", id).Error; err != nil {
		return nil, translate(err, "get recruiter %s", id)
	}
	return &rec, nil
}

func (r *repo) CreateJob(ctx context.Context, j *store.Job) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(j).Error, "create job")
}

func (r *repo) GetJob(ctx context.Context, id uuid.UUID) (*store.Job, error) {
	var j store.Job
	if err := r.jobQuery(ctx).Take(&j, "id = ?", id).Error; err != nil {
		return nil, translate(err, "get job %s", id)
	}
	return &j, nil
}

func (r *repo) ListJobs(ctx context.Context) ([]*store.Job, error) {
	var out []*store.Job
	if err := r.jobQuery(ctx).Order("created_at").Find(&out).Error; err != nil {
		return nil, translate(err, "list jobs")
	}
	return out, nil
}

func (r *repo) UpdateJob(ctx context.Context, j *store.Job) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(j).Error, "update job %s", j.ID)
}

func (r *repo) AttachJobSkill(ctx context.Context, jobID uuid.UUID, skillID uint) error {
	row := &jobSkill{JobID: jobID, SkillID: skillID}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
	return translate(err, "attach skill %d to job %s", skillID, jobID)
}

func (r *repo) CloseJob(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&store.Job{}).
		Where("id = ? AND is_open = ?", id, true).
		Updates(map[string]any{"is_open": false, "closed_at": at})
	if res.Error != nil {
		return false, translate(res.Error, "close job %s", id)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&store.Job{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, translate(err, "close job %s", id)
	}
	if count == 0 {
		return false, fmt.Errorf("close job %s: %w", id, store.ErrNotFound)
	}
	return false, nil
}

func (r *repo) CreateApplication(ctx context.Context, a *store.Application) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(a).Error, "create application")
}

func (r *repo) ListApplicationsByJob(ctx context.Context, jobID uuid.UUID) ([]*store.Application, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&store.Job{}).Where("id = ?", jobID).Count(&count).Error; err != nil {
		return nil, translate(err, "list applications of job %s", jobID)
	}
	if count == 0 {
		return nil, fmt.Errorf("list applications of job %s: %w", jobID, store.ErrNotFound)
	}

	var out []*store.Application
	err := r.db.WithContext(ctx).
		Preload("Candidate.User").
		Preload("Candidate.Major").
		Preload("Candidate.Skills").
		Preload("Candidate.Experiences").
		Where("job_id = ?", jobID).
		Order("created_at").
		Find(&out).Error
	if err != nil {
		return nil, translate(err, "list applications of job %s", jobID)
	}
	return out, nil
}

func (r *repo) UpdateApplication(ctx context.Context, a *store.Application) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(a).Error, "update application %s", a.ID)
}

func (r *repo) FindEntity(ctx context.Context, kind store.Kind, key string) (*store.Entity, error) {
	return r.findEntity(ctx, kind, key, false)
}

// FindCommittedEntity uses a locking read, which sees rows committed after
// the transaction's snapshot was taken (MySQL REPEATABLE READ).
func (r *repo) FindCommittedEntity(ctx context.Context, kind store.Kind, key string) (*store.Entity, error) {
	return r.findEntity(ctx, kind, key, true)
}

func (r *repo) findEntity(ctx context.Context, kind store.Kind, key string, committed bool) (*store.Entity, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown entity kind %s", kind)
	}
	var e store.Entity
	if err := entityQuery(r.db.WithContext(ctx), kind, key, committed).Take(&e).Error; err != nil {
		return nil, translate(err, "find %s %q", kind, key)
	}
	return &e, nil
}

func entityQuery(db *gorm.DB, kind store.Kind, key string, committed bool) *gorm.DB {
	q := db.Table(kind.Table()).Where("name_key = ?", key)
	if committed {
		q = q.Clauses(clause.Locking{Strength: "SHARE"})
	}
	return q
}

func (r *repo) SearchEntities(ctx context.Context, kind store.Kind, fragment string) ([]*store.Entity, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown entity kind %s", kind)
	}
	var out []*store.Entity
	err := r.db.WithContext(ctx).
		Table(kind.Table()).
		Where("name_key LIKE ?", "%"+likeEscaper.Replace(fragment)+"%").
		Order("LENGTH(name_key), name_key").
		Find(&out).Error
	if err != nil {
		return nil, translate(err, "search %s %q", kind, fragment)
	}
	return out, nil
}

// CreateEntity inserts e inside a nested transaction so that a unique
// violation rolls back to a savepoint instead of aborting the caller's
// transaction.
func (r *repo) CreateEntity(ctx context.Context, kind store.Kind, e *store.Entity) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown entity kind %s", kind)
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Table(kind.Table()).Create(e).Error
	})
	return translate(err, "create %s %q", kind, e.Key)
}

func (r *repo) CreateUpload(ctx context.Context, u *store.Upload) error {
	return translate(r.db.WithContext(ctx).Create(u).Error, "create upload")
}
