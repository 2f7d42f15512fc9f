package service

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/c360/heritagestreams/errors"
	"github.com/c360/heritagestreams/protocol"
	"github.com/c360/heritagestreams/query"
	"github.com/c360/heritagestreams/taxonomy"
)

// Filters narrows a listing. Zero values mean "no constraint".
type Filters struct {
	Page     int `json:"page" validate:"omitempty,min=1"`
	PageSize int `json:"page_size" validate:"omitempty,min=1,max=100"`

	Search   string `json:"search,omitempty" validate:"max=200"`
	Category string `json:"category,omitempty" validate:"max=64"`
	Region   string `json:"region,omitempty" validate:"max=128"`
	Language string `json:"language,omitempty" validate:"max=64"`
	Culture  string `json:"culture,omitempty" validate:"max=128"`

	Authors   []string          `json:"authors,omitempty" validate:"omitempty,max=50,dive,len=64,hexadecimal"`
	Labels    []taxonomy.Filter `json:"labels,omitempty" validate:"omitempty,max=20"`
	LabelMode string            `json:"label_mode,omitempty" validate:"omitempty,oneof=and or"`

	Since time.Time `json:"since,omitempty"`
	Until time.Time `json:"until,omitempty" validate:"omitempty,gtfield=Since"`

	// Fresh bypasses the query cache.
	Fresh bool `json:"fresh,omitempty"`
}

// LabelQuery selects labels from the taxonomy.
type LabelQuery struct {
	Filters []taxonomy.Filter `json:"filters,omitempty" validate:"omitempty,max=20"`
	Mode    string            `json:"mode,omitempty" validate:"omitempty,oneof=and or"`
	SortBy  string            `json:"sort_by,omitempty" validate:"omitempty,oneof=count name namespace"`
	Limit   int               `json:"limit,omitempty" validate:"omitempty,min=1,max=1000"`
	// Fresh bypasses the query cache when refreshing label events.
	Fresh bool `json:"fresh,omitempty"`
}

func (s *Service) check(method string, v any) error {
	if err := s.validate.Struct(v); err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %s", ErrInvalidFilters, formatValidationError(err)),
			"Service", method, "validate filters")
	}
	return nil
}

// jsonFieldName reports fields by their JSON name in validation messages.
func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func formatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if !stderrors.As(err, &validationErrors) {
		return err.Error()
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		msgs = append(msgs, formatFieldError(e))
	}
	return strings.Join(msgs, "; ")
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "len", "hexadecimal":
		return fmt.Sprintf("%s must be a 64 character hex key", field)
	case "gtfield":
		return fmt.Sprintf("%s must be after %s", field, strings.ToLower(e.Param()))
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// queryOptions builds the relay query for kinds. Text and category filters
// are applied client-side. Label filters become relay tag filters only when
// no kind is replaceable: a newer revision that dropped a label would be
// withheld by the relay and the stale revision would win the collapse.
func (s *Service) queryOptions(f Filters, kinds ...int) query.Options {
	opts := query.Options{
		Kinds:     kinds,
		Authors:   f.Authors,
		Limit:     s.fetchLimit,
		Since:     f.Since,
		Until:     f.Until,
		SkipCache: f.Fresh,
	}
	if len(f.Labels) == 0 {
		return opts
	}
	for _, kind := range kinds {
		if protocol.IsParameterizedReplaceable(kind) {
			return opts
		}
	}
	if tags := taxonomy.BuildFilterFromLabels(f.Labels, taxonomy.ParseMode(f.LabelMode)); len(tags) > 0 {
		opts.Tags = tags
	}
	return opts
}

// matchText reports whether needle occurs in any field, ignoring case.
// An empty needle matches.
func matchText(needle string, fields ...string) bool {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return true
	}
	needle = strings.ToLower(needle)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// matchExact compares ignoring case. An empty want matches.
func matchExact(want, got string) bool {
	want = strings.TrimSpace(want)
	return want == "" || strings.EqualFold(want, strings.TrimSpace(got))
}
