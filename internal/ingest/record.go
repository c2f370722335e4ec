package ingest

import (
	"fmt"
	"net/mail"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/jobmatch/internal/ai"
)

type candidateRecord struct {
	Name        string             `json:"name"`
	Email       string             `json:"email"`
	Phone       string             `json:"phone"`
	Bio         string             `json:"bio"`
	Location    string             `json:"location"`
	Major       string             `json:"major"`
	Skills      []string           `json:"skills"`
	Languages   []string           `json:"languages"`
	Experiences []experienceRecord `json:"experiences"`
}

type experienceRecord struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

type jobRecord struct {
	Title             string   `json:"title"`
	Major             string   `json:"major"`
	YearsOfExperience int      `json:"years_of_experience"`
	Responsibilities  []string `json:"responsibilities"`
	Skills            []string `json:"skills"`
	Location          string   `json:"location"`
	Description       string   `json:"job_desc"`
}

var (
	stringSlice = reflect.TypeOf([]string(nil))
	leadingInt  = regexp.MustCompile(`-?\d+`)
)

// coerceHook accepts the loose shapes models produce: comma separated
// strings for lists, numbers for strings and "3 years" for integers.
func coerceHook(from, to reflect.Type, data any) (any, error) {
	switch {
	case to == stringSlice:
		return ai.CoerceStrings(data), nil
	case to.Kind() == reflect.String && from.Kind() != reflect.String:
		return ai.CoerceString(data), nil
	case to.Kind() == reflect.Int && from.Kind() == reflect.String:
		s := strings.TrimSpace(data.(string))
		if s == "" {
			return 0, nil
		}
		m := leadingInt.FindString(s)
		if m == "" {
			return nil, fmt.Errorf("%q is not a number", s)
		}
		return strconv.Atoi(m)
	default:
		return data, nil
	}
}

func decode(rec ai.Record, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       coerceHook,
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(rec)); err != nil {
		return &ValidationError{Fields: decodeFields(err), Err: err}
	}
	return nil
}

var quotedField = regexp.MustCompile(`'([^']+)'`)

// decodeFields pulls field names out of mapstructure's error messages.
func decodeFields(err error) []string {
	var msgs []string
	if me, ok := err.(*mapstructure.Error); ok {
		msgs = me.Errors
	} else {
		msgs = []string{err.Error()}
	}

	var fields []string
	for _, msg := range msgs {
		if m := quotedField.FindStringSubmatch(msg); m != nil {
			fields = append(fields, m[1])
		}
	}
	return fields
}

func decodeCandidate(rec ai.Record) (*candidateRecord, error) {
	var c candidateRecord
	if err := decode(rec, &c); err != nil {
		return nil, err
	}

	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)

	var missing []string
	if c.Email == "" {
		missing = append(missing, "email")
	} else if addr, err := mail.ParseAddress(c.Email); err != nil {
		missing = append(missing, "email")
	} else {
		c.Email = strings.ToLower(addr.Address)
	}
	for i, e := range c.Experiences {
		if strings.TrimSpace(e.Title) == "" && strings.TrimSpace(e.Company) == "" {
			missing = append(missing, fmt.Sprintf("experiences[%d].title", i))
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}

	return &c, nil
}

func decodeJob(rec ai.Record) (*jobRecord, error) {
	var j jobRecord
	if err := decode(rec, &j); err != nil {
		return nil, err
	}

	j.Title = strings.TrimSpace(j.Title)

	var missing []string
	if j.Title == "" {
		missing = append(missing, "title")
	}
	if j.YearsOfExperience < 0 {
		missing = append(missing, "years_of_experience")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}

	return &j, nil
}
