package gormstore

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/spigell/jobmatch/internal/store"
)

type candidateSkill struct {
	CandidateID uuid.UUID `gorm:"size:36;primaryKey"`
	SkillID     uint      `gorm:"primaryKey"`
}

func (candidateSkill) TableName() string { return "candidate_skills" }

type candidateLanguage struct {
	CandidateID uuid.UUID `gorm:"size:36;primaryKey"`
	LanguageID  uint      `gorm:"primaryKey"`
}

func (candidateLanguage) TableName() string { return "candidate_languages" }

type jobSkill struct {
	JobID   uuid.UUID `gorm:"size:36;primaryKey"`
	SkillID uint      `gorm:"primaryKey"`
}

func (jobSkill) TableName() string { return "job_skills" }

func setupJoinTables(db *gorm.DB) error {
	joins := []struct {
		model any
		field string
		join  any
	}{
		{&store.Candidate{}, "Skills", &candidateSkill{}},
		{&store.Candidate{}, "Languages", &candidateLanguage{}},
		{&store.Job{}, "Skills", &jobSkill{}},
	}
	for _, j := range joins {
		if err := db.SetupJoinTable(j.model, j.field, j.join); err != nil {
			return fmt.Errorf("setup join table for %s: %w", j.field, err)
		}
	}
	return nil
}
