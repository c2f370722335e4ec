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

// IngestCandidate applies rec to the candidate profile of userID and returns
// the committed profile. The user and candidate rows must already exist.
func (p *Pipeline) IngestCandidate(ctx context.Context, userID uuid.UUID, rec ai.Record) (*store.Candidate, error) {
	return p.ingestCandidate(ctx, userID, rec, nil)
}

// IngestCandidateDocument extracts a résumé and ingests it. The file is
// retained in the configured file store when the ingestion commits.
func (p *Pipeline) IngestCandidateDocument(ctx context.Context, userID uuid.UUID, path string) (*store.Candidate, error) {
	_, rec, err := p.extractDocument(ctx, ai.TemplateCandidate, path)
	if err != nil {
		return nil, err
	}
	return p.ingestCandidate(ctx, userID, rec, &document{path: path, kind: store.UploadCandidateCV})
}

func (p *Pipeline) ingestCandidate(ctx context.Context, userID uuid.UUID, rec ai.Record, doc *document) (*store.Candidate, error) {
	data, err := decodeCandidate(rec)
	if err != nil {
		return nil, err
	}

	log := p.logger.With(zap.Stringer("user_id", userID))

	var result *store.Candidate
	err = p.store.InTx(ctx, func(tx store.Repository) error {
		user, err := tx.GetUser(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		if err != nil {
			return err
		}

		candidate, err := tx.GetCandidateByUser(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: user %s", ErrCandidateNotFound, userID)
		}
		if err != nil {
			return err
		}

		applyContact(user, data)
		if err := tx.UpdateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return &ValidationError{Fields: []string{"email"}, Err: err}
			}
			return fmt.Errorf("update user: %w", err)
		}

		majorID, major, err := p.resolveMajor(ctx, tx, data.Major)
		if err != nil {
			return err
		}
		if majorID != nil {
			candidate.MajorID, candidate.Major = majorID, major
		}

		skills, err := p.resolveAll(ctx, tx, store.KindSkill, data.Skills)
		if err != nil {
			return err
		}
		for _, s := range skills {
			if err := tx.AttachCandidateSkill(ctx, candidate.ID, s.ID); err != nil {
				return err
			}
		}

		languages, err := p.resolveAll(ctx, tx, store.KindLanguage, data.Languages)
		if err != nil {
			return err
		}
		for _, l := range languages {
			if err := tx.AttachCandidateLanguage(ctx, candidate.ID, l.ID); err != nil {
				return err
			}
		}

		created, err := p.addExperiences(ctx, tx, candidate, data.Experiences)
		if err != nil {
			return err
		}

		url, err := p.retain(ctx, tx, candidate.ID, "candidates", doc)
		if err != nil {
			return err
		}
		if url != "" {
			candidate.CVURL = url
		}

		if err := tx.UpdateCandidate(ctx, candidate); err != nil {
			return fmt.Errorf("update candidate: %w", err)
		}

		result, err = tx.GetCandidate(ctx, candidate.ID)
		if err != nil {
			return err
		}

		log.Info("candidate ingested",
			zap.Stringer("candidate_id", candidate.ID),
			zap.Int("skills", len(skills)),
			zap.Int("languages", len(languages)),
			zap.Int("experiences_added", created),
		)
		return nil
	})
	if err != nil {
		p.discard(ctx, doc)
		return nil, err
	}

	return result, nil
}

func applyContact(u *store.User, c *candidateRecord) {
	if c.Name != "" {
		u.Name = c.Name
	}
	u.Email = c.Email
	if v := strings.TrimSpace(c.Phone); v != "" {
		u.Phone = v
	}
	if v := strings.TrimSpace(c.Bio); v != "" {
		u.Bio = v
	}
	if v := strings.TrimSpace(c.Location); v != "" {
		u.Location = v
	}
}

// addExperiences creates the experiences the candidate does not have yet and
// returns how many were added.
func (p *Pipeline) addExperiences(ctx context.Context, tx store.Repository, c *store.Candidate, records []experienceRecord) (int, error) {
	now := p.now()
	known := make([]store.WorkExperience, 0, len(c.Experiences)+len(records))
	known = append(known, c.Experiences...)

	added := 0
	for _, r := range records {
		exp := store.WorkExperience{
			CandidateID: c.ID,
			Title:       strings.TrimSpace(r.Title),
			Company:     strings.TrimSpace(r.Company),
			Location:    strings.TrimSpace(r.Location),
			Description: strings.TrimSpace(r.Description),
		}
		if t, ok := ParseDate(r.StartDate, now); ok {
			exp.StartDate = &t
		}
		if t, ok := ParseDate(r.EndDate, now); ok {
			exp.EndDate = &t
		}

		duplicate := false
		for i := range known {
			if known[i].SameAs(&exp) {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		if err := tx.CreateWorkExperience(ctx, &exp); err != nil {
			return added, fmt.Errorf("create experience %q: %w", exp.Title, err)
		}
		known = append(known, exp)
		added++
	}

	return added, nil
}
