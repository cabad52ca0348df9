package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/verte-zerg/streamdash/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var settingNames = map[string]string{
	"Settings.Source.Kind":        "source.kind",
	"Settings.Source.Path":        "source.path",
	"Settings.Source.Encoding":    "source.encoding",
	"Settings.Source.APIEndpoint": "source.api-endpoint",
	"Settings.Source.APITimeout":  "source.api-timeout",
	"Settings.Source.APIDelay":    "source.api-delay",
	"Settings.Source.Fallback":    "source.fallback",
	"Settings.Source.Rows":        "source.rows",
	"Settings.Source.Dataset":     "source.dataset",
	"Settings.ExportDir":          "export.dir",
	"Settings.DBPath":             "database path",
	"Settings.LogLevel":           "log.level",
	"Settings.LogFormat":          "log.format",
}

// Validate checks resolved settings and reports every violation at once.
func Validate(s model.Settings) error {
	var problems []string
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("failed to validate settings: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}
	if s.Source.Kind == "api" && s.Source.APIEndpoint != "" {
		if err := validate.Var(s.Source.APIEndpoint, "url"); err != nil {
			problems = append(problems, "source.api-endpoint must be a URL")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	name, ok := settingNames[fe.Namespace()]
	if !ok {
		name = fe.Namespace()
	}
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", name, fe.Param(), fe.Value())
	case "required", "required_if":
		return fmt.Sprintf("%s is required", name)
	case "gte":
		return fmt.Sprintf("%s must be >= %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", name, fe.Tag())
	}
}

// ParseDateRange builds an inclusive range from YYYY-MM-DD bounds. A missing
// bound is taken from lo or hi; two missing bounds mean no date constraint.
func ParseDateRange(start, end string, lo, hi time.Time) (*model.DateRange, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return nil, nil
	}
	r := &model.DateRange{Start: model.DateOf(lo), End: model.DateOf(hi)}
	if start != "" {
		parsed, err := time.Parse(model.DateLayout, start)
		if err != nil {
			return nil, fmt.Errorf("invalid start date %q (expected YYYY-MM-DD)", start)
		}
		r.Start = parsed
	}
	if end != "" {
		parsed, err := time.Parse(model.DateLayout, end)
		if err != nil {
			return nil, fmt.Errorf("invalid end date %q (expected YYYY-MM-DD)", end)
		}
		r.End = parsed
	}
	return r, nil
}

// SplitList splits comma-separated values, dropping blanks.
func SplitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
