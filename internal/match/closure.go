package match

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/mail"
	"github.com/spigell/jobmatch/internal/store"
)

// Decision is the outcome recorded for one application.
type Decision struct {
	ApplicationID uuid.UUID `json:"application_id"`
	CandidateID   uuid.UUID `json:"candidate_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Score         float64   `json:"match_score"`
	Status        string    `json:"status"`
}

// Failure is an application that could not be scored. It stays pending.
type Failure struct {
	ApplicationID uuid.UUID `json:"application_id"`
	CandidateID   uuid.UUID `json:"candidate_id"`
	Error         string    `json:"error"`
}

// ClosureReport lists what a CloseJob or DecidePending call decided.
type ClosureReport struct {
	JobID uuid.UUID `json:"job_id"`
	// Closed reports whether this call closed the job.
	Closed      bool       `json:"closed"`
	Shortlisted []Decision `json:"shortlisted"`
	Rejected    []Decision `json:"rejected"`
	Failed      []Failure  `json:"failed"`
}

// Status maps a score to an application status. Only scores strictly above
// the threshold are shortlisted.
func (e *Engine) Status(score float64) string {
	if score > e.shortlistThreshold {
		return store.StatusShortlisted
	}
	return store.StatusRejected
}

// CloseJob closes an open job, scores every pending application and
// notifies candidates and the recruiter. Closing an already closed job is a
// no-op, so each application is decided at most once. Applications that
// failed to score stay pending; DecidePending picks them up later.
func (e *Engine) CloseJob(ctx context.Context, jobID uuid.UUID) (*ClosureReport, error) {
	job, err := e.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	log := e.logger.With(zap.Stringer("job_id", jobID))
	report := &ClosureReport{JobID: jobID, Shortlisted: []Decision{}, Rejected: []Decision{}, Failed: []Failure{}}

	closed, err := e.store.CloseJob(ctx, jobID, e.now())
	if err != nil {
		return nil, fmt.Errorf("close job %s: %w", jobID, err)
	}
	if !closed {
		log.Info("job already closed, nothing to decide")
		return report, nil
	}
	report.Closed = true

	apps, err := e.decidePending(ctx, log, job, report)
	if err != nil {
		return nil, err
	}
	e.notifyRecruiter(log, job, report)

	log.Info("job closed",
		zap.Int("applications", apps),
		zap.Int("shortlisted", len(report.Shortlisted)),
		zap.Int("rejected", len(report.Rejected)),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

// DecidePending retries the applications a closed job left pending, for
// example after the scorer failed during CloseJob. Decided applications are
// not touched again. The recruiter only hears about new decisions.
func (e *Engine) DecidePending(ctx context.Context, jobID uuid.UUID) (*ClosureReport, error) {
	job, err := e.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsOpen {
		return nil, fmt.Errorf("%w: %s", ErrJobOpen, jobID)
	}

	log := e.logger.With(zap.Stringer("job_id", jobID))
	report := &ClosureReport{JobID: jobID, Shortlisted: []Decision{}, Rejected: []Decision{}, Failed: []Failure{}}

	if _, err := e.decidePending(ctx, log, job, report); err != nil {
		return nil, err
	}
	if len(report.Shortlisted)+len(report.Rejected) > 0 {
		e.notifyRecruiter(log, job, report)
	}

	log.Info("pending applications decided",
		zap.Int("shortlisted", len(report.Shortlisted)),
		zap.Int("rejected", len(report.Rejected)),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

// decidePending scores every pending application of job into report and
// returns how many applications the job has in total.
func (e *Engine) decidePending(ctx context.Context, log *zap.Logger, job *store.Job, report *ClosureReport) (int, error) {
	apps, err := e.store.ListApplicationsByJob(ctx, job.ID)
	if err != nil {
		return 0, fmt.Errorf("list applications of job %s: %w", job.ID, err)
	}

	for _, app := range apps {
		if app.Status != store.StatusPending {
			continue
		}

		d, err := e.decide(ctx, job, app)
		if err != nil {
			log.Warn("application left pending",
				zap.Stringer("application_id", app.ID),
				zap.Stringer("candidate_id", app.CandidateID),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, Failure{
				ApplicationID: app.ID,
				CandidateID:   app.CandidateID,
				Error:         err.Error(),
			})
			continue
		}

		if d.Status == store.StatusShortlisted {
			report.Shortlisted = append(report.Shortlisted, *d)
		} else {
			report.Rejected = append(report.Rejected, *d)
		}
		e.notifyCandidate(log, job, d)
	}
	return len(apps), nil
}

func (e *Engine) decide(ctx context.Context, job *store.Job, app *store.Application) (*Decision, error) {
	if app.Candidate == nil {
		return nil, fmt.Errorf("%w: %s", ErrCandidateNotFound, app.CandidateID)
	}

	score, err := e.scorer.Score(ctx, app.Candidate, job)
	if err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}

	app.MatchScore = &score
	app.Status = e.Status(score)
	if err := e.store.UpdateApplication(ctx, app); err != nil {
		return nil, fmt.Errorf("save decision: %w", err)
	}

	d := &Decision{
		ApplicationID: app.ID,
		CandidateID:   app.CandidateID,
		Score:         score,
		Status:        app.Status,
	}
	if u := app.Candidate.User; u != nil {
		d.Name, d.Email = u.Name, u.Email
	}
	return d, nil
}

func company(job *store.Job) string {
	if job.Recruiter == nil {
		return ""
	}
	return job.Recruiter.CompanyName
}

func (e *Engine) notifyCandidate(log *zap.Logger, job *store.Job, d *Decision) {
	if e.mail == nil || d.Email == "" {
		return
	}

	data := mail.Decision{CandidateName: d.Name, JobTitle: job.Title, Company: company(job), Score: d.Score}

	var (
		body    string
		subject string
		err     error
	)
	if d.Status == store.StatusShortlisted {
		body, err = mail.RenderShortlisted(data)
		subject = fmt.Sprintf("You have been shortlisted for %s", job.Title)
	} else {
		body, err = mail.RenderRejected(data)
		subject = fmt.Sprintf("Update on your application for %s", job.Title)
	}
	if err != nil {
		log.Error("candidate notification not sent", zap.Stringer("candidate_id", d.CandidateID), zap.Error(err))
		return
	}

	e.mail.Enqueue(body, d.Email, d.Name, subject)
}

func (e *Engine) notifyRecruiter(log *zap.Logger, job *store.Job, report *ClosureReport) {
	if e.mail == nil || job.Recruiter == nil || job.Recruiter.User == nil || job.Recruiter.User.Email == "" {
		return
	}
	recruiter := job.Recruiter.User

	summary := mail.Summary{
		RecruiterName: recruiter.Name,
		JobTitle:      job.Title,
		Total:         len(report.Shortlisted) + len(report.Rejected) + len(report.Failed),
	}
	for _, d := range report.Shortlisted {
		summary.Shortlisted = append(summary.Shortlisted, mail.ShortlistEntry{Name: d.Name, Email: d.Email, Score: d.Score})
	}

	body, err := mail.RenderSummary(summary)
	if err != nil {
		log.Error("recruiter summary not sent", zap.Error(err))
		return
	}

	e.mail.Enqueue(body, recruiter.Email, recruiter.Name, fmt.Sprintf("Shortlist for %s", job.Title))
}
