package match

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/store"
)

// JobRecommendation is an open job that matches a candidate.
type JobRecommendation struct {
	Job        *store.Job `json:"job"`
	HasApplied bool       `json:"has_applied"`
}

type CandidateRecommendation struct {
	Candidate  *store.Candidate `json:"candidate"`
	HasApplied bool             `json:"has_applied"`
}

// Matches reports whether c and j share at least one skill and have the same
// major. A missing major on either side never matches.
func Matches(c *store.Candidate, j *store.Job) bool {
	major := c.MajorKey()
	if major == "" || major != j.MajorKey() {
		return false
	}

	have := make(map[string]bool, len(c.Skills))
	for _, s := range c.Skills {
		have[strings.ToLower(s.Name)] = true
	}
	for _, s := range j.Skills {
		if have[strings.ToLower(s.Name)] {
			return true
		}
	}
	return false
}

// RecommendJobs lists the open jobs matching the candidate.
func (e *Engine) RecommendJobs(ctx context.Context, candidateID uuid.UUID) ([]JobRecommendation, error) {
	c, err := e.getCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	jobs, err := e.store.ListJobs(ctx)
	if err != nil {
		return nil, err
	}

	out := []JobRecommendation{}
	for _, j := range jobs {
		if !j.IsOpen || !Matches(c, j) {
			continue
		}
		out = append(out, JobRecommendation{Job: j, HasApplied: c.HasAppliedTo(j.ID)})
	}

	e.logger.Debug("jobs recommended",
		zap.Stringer("candidate_id", candidateID),
		zap.Int("considered", len(jobs)),
		zap.Int("recommended", len(out)),
	)
	return out, nil
}

// RecommendCandidates lists the candidates matching the job. A closed job
// has no recommendations, mirroring RecommendJobs.
func (e *Engine) RecommendCandidates(ctx context.Context, jobID uuid.UUID) ([]CandidateRecommendation, error) {
	j, err := e.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	out := []CandidateRecommendation{}
	if !j.IsOpen {
		e.logger.Debug("job is closed, no candidates recommended", zap.Stringer("job_id", jobID))
		return out, nil
	}

	candidates, err := e.store.ListCandidates(ctx)
	if err != nil {
		return nil, err
	}

	for _, c := range candidates {
		if !Matches(c, j) {
			continue
		}
		out = append(out, CandidateRecommendation{Candidate: c, HasApplied: c.HasAppliedTo(j.ID)})
	}

	e.logger.Debug("candidates recommended",
		zap.Stringer("job_id", jobID),
		zap.Int("considered", len(candidates)),
		zap.Int("recommended", len(out)),
	)
	return out, nil
}
