// Package store defines the persisted model of the job board and the
// repository contract the core depends on.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence surface used by ingestion and matching.
// Get/Find methods return ErrNotFound when nothing matches; Create methods
// return ErrDuplicate on a unique-constraint violation.
type Repository interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	UpdateUser(ctx context.Context, u *User) error

	// Candidate reads load the user, major, skills, languages,
	// experiences and applications.
	CreateCandidate(ctx context.Context, c *Candidate) error
	GetCandidate(ctx context.Context, id uuid.UUID) (*Candidate, error)
	GetCandidateByUser(ctx context.Context, userID uuid.UUID) (*Candidate, error)
	ListCandidates(ctx context.Context) ([]*Candidate, error)
	UpdateCandidate(ctx context.Context, c *Candidate) error
	AttachCandidateSkill(ctx context.Context, candidateID uuid.UUID, skillID uint) error
	AttachCandidateLanguage(ctx context.Context, candidateID uuid.UUID, languageID uint) error
	CreateWorkExperience(ctx context.Context, e *WorkExperience) error

	CreateRecruiter(ctx context.Context, r *Recruiter) error
	GetRecruiter(ctx context.Context, id uuid.UUID) (*Recruiter, error)

	// Job reads load the recruiter (with user), major and skills.
	CreateJob(ctx context.Context, j *Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)
	ListJobs(ctx context.Context) ([]*Job, error)
	UpdateJob(ctx context.Context, j *Job) error
	AttachJobSkill(ctx context.Context, jobID uuid.UUID, skillID uint) error
	// CloseJob flips is_open from true to false. It reports false when the
	// job was already closed.
	CloseJob(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	CreateApplication(ctx context.Context, a *Application) error
	// ListApplicationsByJob loads each application's candidate graph.
	ListApplicationsByJob(ctx context.Context, jobID uuid.UUID) ([]*Application, error)
	UpdateApplication(ctx context.Context, a *Application) error

	FindEntity(ctx context.Context, kind Kind, key string) (*Entity, error)
	// FindCommittedEntity is FindEntity reading the latest committed row
	// rather than the transaction snapshot. Used after a create conflict.
	FindCommittedEntity(ctx context.Context, kind Kind, key string) (*Entity, error)
	// SearchEntities returns entities whose key contains fragment.
	SearchEntities(ctx context.Context, kind Kind, fragment string) ([]*Entity, error)
	CreateEntity(ctx context.Context, kind Kind, e *Entity) error

	CreateUpload(ctx context.Context, u *Upload) error
}

// Store is a Repository that can run a unit of work in one transaction.
type Store interface {
	Repository
	// InTx commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx Repository) error) error
	Close() error
}
