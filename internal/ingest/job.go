package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/ai"
	"github.com/spigell/jobmatch/internal/store"
)

// IngestJob creates a job posting for recruiterID from rec.
func (p *Pipeline) IngestJob(ctx context.Context, recruiterID uuid.UUID, rec ai.Record) (*store.Job, error) {
	return p.ingestJob(ctx, recruiterID, rec, "", nil)
}

// IngestJobDocument extracts a job description and creates the posting. The
// document text is the description when the model returns none.
func (p *Pipeline) IngestJobDocument(ctx context.Context, recruiterID uuid.UUID, path string) (*store.Job, error) {
	text, rec, err := p.extractDocument(ctx, ai.TemplateJob, path)
	if err != nil {
		return nil, err
	}
	return p.ingestJob(ctx, recruiterID, rec, text, &document{path: path, kind: store.UploadJobDescription})
}

func (p *Pipeline) ingestJob(ctx context.Context, recruiterID uuid.UUID, rec ai.Record, fallbackDesc string, doc *document) (*store.Job, error) {
	data, err := decodeJob(rec)
	if err != nil {
		return nil, err
	}

	description := strings.TrimSpace(data.Description)
	if description == "" {
		description = fallbackDesc
	}

	var result *store.Job
	err = p.store.InTx(ctx, func(tx store.Repository) error {
		if _, err := tx.GetRecruiter(ctx, recruiterID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrRecruiterNotFound, recruiterID)
			}
			return err
		}

		majorID, major, err := p.resolveMajor(ctx, tx, data.Major)
		if err != nil {
			return err
		}

		job := &store.Job{
			ID:                uuid.New(),
			RecruiterID:       recruiterID,
			Title:             data.Title,
			Description:       description,
			Location:          strings.TrimSpace(data.Location),
			YearsOfExperience: data.YearsOfExperience,
			MajorID:           majorID,
			Major:             major,
			IsOpen:            true,
		}
		if err := job.SetResponsibilities(data.Responsibilities); err != nil {
			return &ValidationError{Fields: []string{"responsibilities"}, Err: err}
		}

		url, err := p.retain(ctx, tx, job.ID, "jobs", doc)
		if err != nil {
			return err
		}
		job.DescriptionURL = url

		if err := tx.CreateJob(ctx, job); err != nil {
			return fmt.Errorf("create job: %w", err)
		}

		skills, err := p.resolveAll(ctx, tx, store.KindSkill, data.Skills)
		if err != nil {
			return err
		}
		for _, s := range skills {
			if err := tx.AttachJobSkill(ctx, job.ID, s.ID); err != nil {
				return err
			}
		}

		result, err = tx.GetJob(ctx, job.ID)
		if err != nil {
			return err
		}

		p.logger.Info("job ingested",
			zap.Stringer("job_id", job.ID),
			zap.Stringer("recruiter_id", recruiterID),
			zap.Int("skills", len(skills)),
		)
		return nil
	})
	if err != nil {
		p.discard(ctx, doc)
		return nil, err
	}

	return result, nil
}
