package match

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/jobmatch/internal/ai"
	"github.com/spigell/jobmatch/internal/store"
)

// ValueExtractor runs a template and returns any JSON value.
type ValueExtractor interface {
	ExtractValue(ctx context.Context, tpl ai.Template, text string) (any, error)
}

// AIScorer asks the model for a match score.
type AIScorer struct {
	extractor ValueExtractor
}

// NewAIScorer scores with the job match template.
func NewAIScorer(x ValueExtractor) *AIScorer {
	return &AIScorer{extractor: x}
}

func (s *AIScorer) Score(ctx context.Context, c *store.Candidate, j *store.Job) (float64, error) {
	v, err := s.extractor.ExtractValue(ctx, ai.TemplateJobMatch, MatchText(c, j))
	if err != nil {
		return 0, err
	}
	return ParseScore(v)
}

// MatchText is the model input comparing c with j.
func MatchText(c *store.Candidate, j *store.Job) string {
	var b strings.Builder

	b.WriteString("Candidate\nWork experience:\n")
	for _, e := range c.Experiences {
		desc := strings.TrimSpace(e.Description)
		if desc == "" {
			desc = strings.TrimSpace(e.Title + " at " + e.Company)
		}
		b.WriteString("- ")
		b.WriteString(desc)
		b.WriteString("\n")
	}
	b.WriteString("Skills: ")
	b.WriteString(strings.Join(c.SkillNames(), ", "))
	b.WriteString("\n\nJob\n")
	b.WriteString("Title: ")
	b.WriteString(j.Title)
	b.WriteString("\nDescription: ")
	b.WriteString(strings.TrimSpace(j.Description))
	b.WriteString("\nSkills: ")
	b.WriteString(strings.Join(j.SkillNames(), ", "))
	b.WriteString("\n")

	return b.String()
}

type scoreObject struct {
	MatchScore any `mapstructure:"match_score"`
	Score      any `mapstructure:"score"`
}

// ParseScore interprets a model reply as a score in [0,1]. It accepts a
// number, a numeric string ("0.7" or "70%") or an object carrying
// match_score or score. Out-of-range values are clamped.
func ParseScore(v any) (float64, error) {
	var f float64
	switch val := v.(type) {
	case map[string]any:
		var obj scoreObject
		if err := mapstructure.Decode(val, &obj); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidScore, err)
		}
		switch {
		case obj.MatchScore != nil:
			return ParseScore(obj.MatchScore)
		case obj.Score != nil:
			return ParseScore(obj.Score)
		default:
			return 0, fmt.Errorf("%w: object without match_score", ErrInvalidScore)
		}
	case string:
		s := strings.TrimSpace(val)
		if pct, ok := strings.CutSuffix(s, "%"); ok {
			f = ai.CoerceFloat(pct) / 100
		} else {
			f = ai.CoerceFloat(s)
		}
	default:
		f = ai.CoerceFloat(v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidScore, v)
	}
	return math.Min(1, math.Max(0, f)), nil
}
