package store

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Application statuses.
const (
	StatusPending     = "pending"
	StatusShortlisted = "shortlisted"
	StatusRejected    = "rejected"
)

// Upload kinds.
const (
	UploadCandidateCV    = "candidate_cv"
	UploadJobDescription = "job_description"
)

type User struct {
	ID        uuid.UUID `gorm:"size:36;primaryKey" json:"id"`
	Name      string    `gorm:"size:255" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex" json:"email"`
	Phone     string    `gorm:"size:64" json:"phone,omitempty"`
	Bio       string    `gorm:"type:text" json:"bio,omitempty"`
	Location  string    `gorm:"size:255" json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type Candidate struct {
	ID           uuid.UUID        `gorm:"size:36;primaryKey" json:"id"`
	UserID       uuid.UUID        `gorm:"size:36;uniqueIndex;not null" json:"user_id"`
	User         *User            `json:"user,omitempty"`
	MajorID      *uint            `json:"-"`
	Major        *Major           `json:"major,omitempty"`
	CVURL        string           `gorm:"size:1024" json:"cv_url,omitempty"`
	Skills       []Skill          `gorm:"many2many:candidate_skills" json:"skills"`
	Languages    []Language       `gorm:"many2many:candidate_languages" json:"languages"`
	Experiences  []WorkExperience `json:"experiences"`
	Applications []Application    `json:"applications,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func (c *Candidate) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// SkillNames returns the candidate's skill names.
func (c *Candidate) SkillNames() []string {
	return skillNames(c.Skills)
}

// MajorKey returns the canonical key of the candidate's major or "".
func (c *Candidate) MajorKey() string {
	if c == nil || c.Major == nil {
		return ""
	}
	return c.Major.Key
}

// HasAppliedTo reports whether the candidate has an application for job.
func (c *Candidate) HasAppliedTo(jobID uuid.UUID) bool {
	for _, a := range c.Applications {
		if a.JobID == jobID {
			return true
		}
	}
	return false
}

type Recruiter struct {
	ID          uuid.UUID `gorm:"size:36;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"size:36;uniqueIndex;not null" json:"user_id"`
	User        *User     `json:"user,omitempty"`
	CompanyName string    `gorm:"size:255" json:"company_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r *Recruiter) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

type Job struct {
	ID                uuid.UUID      `gorm:"size:36;primaryKey" json:"id"`
	RecruiterID       uuid.UUID      `gorm:"size:36;index;not null" json:"recruiter_id"`
	Recruiter         *Recruiter     `json:"recruiter,omitempty"`
	Title             string         `gorm:"size:255;not null" json:"title"`
	Description       string         `gorm:"type:text" json:"description"`
	Location          string         `gorm:"size:255" json:"location"`
	YearsOfExperience int            `json:"years_of_experience"`
	Responsibilities  datatypes.JSON `json:"responsibilities"`
	MajorID           *uint          `json:"-"`
	Major             *Major         `json:"major,omitempty"`
	Skills            []Skill        `gorm:"many2many:job_skills" json:"skills"`
	IsOpen            bool           `gorm:"not null;default:true" json:"is_open"`
	DescriptionURL    string         `gorm:"size:1024" json:"description_url,omitempty"`
	ClosedAt          *time.Time     `json:"closed_at,omitempty"`
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func (j *Job) BeforeCreate(*gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// SkillNames returns the job's skill names.
func (j *Job) SkillNames() []string {
	return skillNames(j.Skills)
}

// MajorKey returns the canonical key of the job's major or "".
func (j *Job) MajorKey() string {
	if j == nil || j.Major == nil {
		return ""
	}
	return j.Major.Key
}

// SetResponsibilities stores items as a JSON array.
func (j *Job) SetResponsibilities(items []string) error {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	j.Responsibilities = datatypes.JSON(data)
	return nil
}

// ResponsibilityList decodes the stored responsibilities.
func (j *Job) ResponsibilityList() []string {
	if len(j.Responsibilities) == 0 {
		return nil
	}
	var items []string
	if err := json.Unmarshal(j.Responsibilities, &items); err != nil {
		return nil
	}
	return items
}

type WorkExperience struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CandidateID uuid.UUID  `gorm:"size:36;index;not null" json:"candidate_id"`
	Title       string     `gorm:"size:255" json:"title"`
	Company     string     `gorm:"size:255" json:"company"`
	Location    string     `gorm:"size:255" json:"location,omitempty"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SameAs reports whether other describes the same position.
func (w *WorkExperience) SameAs(other *WorkExperience) bool {
	if !strings.EqualFold(w.Title, other.Title) || !strings.EqualFold(w.Company, other.Company) {
		return false
	}
	switch {
	case w.StartDate == nil && other.StartDate == nil:
		return true
	case w.StartDate == nil || other.StartDate == nil:
		return false
	default:
		return w.StartDate.Equal(*other.StartDate)
	}
}

type Application struct {
	ID          uuid.UUID  `gorm:"size:36;primaryKey" json:"id"`
	CandidateID uuid.UUID  `gorm:"size:36;not null;uniqueIndex:idx_application_pair" json:"candidate_id"`
	Candidate   *Candidate `json:"candidate,omitempty"`
	JobID       uuid.UUID  `gorm:"size:36;not null;uniqueIndex:idx_application_pair" json:"job_id"`
	Job         *Job       `json:"job,omitempty"`
	Status      string     `gorm:"size:16;not null;default:pending" json:"status"`
	MatchScore  *float64   `json:"match_score,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (a *Application) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	return nil
}

// Skill, Language and Major are canonical entities. Key is the case-folded
// lookup name and carries the unique index.
type Skill struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Key  string `gorm:"column:name_key;size:191;not null;uniqueIndex" json:"-"`
	Name string `gorm:"size:191;not null" json:"name"`
}

type Language struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Key  string `gorm:"column:name_key;size:191;not null;uniqueIndex" json:"-"`
	Name string `gorm:"size:191;not null" json:"name"`
}

type Major struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Key  string `gorm:"column:name_key;size:191;not null;uniqueIndex" json:"-"`
	Name string `gorm:"size:191;not null" json:"name"`
}

// Upload is the audit record of a retained document.
type Upload struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerID   uuid.UUID `gorm:"size:36;index;not null" json:"owner_id"`
	Kind      string    `gorm:"size:32;not null" json:"kind"`
	Filename  string    `gorm:"size:255;not null" json:"filename"`
	URL       string    `gorm:"size:1024" json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// Models lists every persisted type in migration order.
func Models() []any {
	return []any{
		&User{}, &Skill{}, &Language{}, &Major{},
		&Candidate{}, &Recruiter{}, &Job{},
		&WorkExperience{}, &Application{}, &Upload{},
	}
}

func skillNames(skills []Skill) []string {
	names := make([]string, 0, len(skills))
	for _, s := range skills {
		names = append(names, s.Name)
	}
	return names
}
