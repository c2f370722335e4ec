package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Decision is the outcome of one application shown to a candidate.
type Decision struct {
	CandidateName string
	JobTitle      string
	Company       string
	Score         float64
}

func (d Decision) ScorePercent() float64 { return d.Score * 100 }

type ShortlistEntry struct {
	Name  string
	Email string
	Score float64
}

func (e ShortlistEntry) ScorePercent() float64 { return e.Score * 100 }

// Summary is the recruiter's report for a closed job.
type Summary struct {
	RecruiterName string
	JobTitle      string
	Total         int
	Shortlisted   []ShortlistEntry
}

func render(name string, data any) (string, error) {
	var b bytes.Buffer
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return b.String(), nil
}

func RenderShortlisted(d Decision) (string, error) {
	return render("shortlisted.html", d)
}

func RenderRejected(d Decision) (string, error) {
	return render("rejected.html", d)
}

func RenderSummary(s Summary) (string, error) {
	return render("recruiter_summary.html", s)
}
