package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "covidcli/internal/errors"
	"covidcli/pkg/contracts/domain"
)

// maxLoggedIssues bounds the issues written to the log per dataset
const maxLoggedIssues = 10

// Issue is one rule a dataset row breaks
type Issue struct {
	Row     int    `json:"row"`
	Date    string `json:"date"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Report summarizes a dataset validation pass
type Report struct {
	Rows   int     `json:"rows"`
	Valid  int     `json:"valid"`
	Issues []Issue `json:"issues,omitempty"`
}

// RecordValidator checks parsed dataset rows against the validate tags on
// domain.Record plus the cross-field rules registered below.
type RecordValidator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewRecordValidator creates a validator that reports field names as the
// dataset column names.
func NewRecordValidator(logger *slog.Logger) *RecordValidator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(recordStructLevel, domain.Record{})

	return &RecordValidator{
		validate: v,
		logger:   logger.With(slog.String("component", "record_validator")),
	}
}

// recordStructLevel enforces the geographic hierarchy: a city row names its
// state, and the national row names none.
func recordStructLevel(sl validator.StructLevel) {
	r := sl.Current().Interface().(domain.Record)

	if r.CityCode != "" && r.State == "" {
		sl.ReportError(r.State, string(domain.ColState), "State", "required_with_city", "")
	}
	if r.IsNational() && (r.State != "" || r.CityCode != "") {
		sl.ReportError(r.State, string(domain.ColState), "State", "empty_for_nation", "")
	}
	if r.CumulativeDeaths > r.CumulativeCases && r.CumulativeCases > 0 {
		sl.ReportError(r.CumulativeDeaths, string(domain.ColCumulativeDeaths), "CumulativeDeaths", "lte_cases", "")
	}
}

// Validate checks one record. The returned error is a VALIDATION AppError
// listing every broken rule.
func (v *RecordValidator) Validate(r domain.Record) error {
	issues := v.issues(0, r)
	if len(issues) == 0 {
		return nil
	}
	msgs := make([]string, len(issues))
	for i, is := range issues {
		msgs[i] = is.Message
	}
	return apperrors.NewAppValidationError(strings.Join(msgs, "; ")).WithContext("date", r.DateKey())
}

// ValidateRecords checks every record and logs a summary. Invalid rows are
// reported, not removed.
func (v *RecordValidator) ValidateRecords(records []domain.Record) Report {
	report := Report{Rows: len(records)}
	for i, r := range records {
		issues := v.issues(i, r)
		if len(issues) == 0 {
			report.Valid++
			continue
		}
		report.Issues = append(report.Issues, issues...)
	}

	if len(report.Issues) > 0 {
		v.logger.Warn("dataset rows failed validation",
			slog.Int("rows", report.Rows),
			slog.Int("invalid", report.Rows-report.Valid))
		for _, is := range report.Issues[:min(len(report.Issues), maxLoggedIssues)] {
			v.logger.Debug("invalid row",
				slog.Int("row", is.Row),
				slog.String("date", is.Date),
				slog.String("field", is.Field),
				slog.String("message", is.Message))
		}
	}
	return report
}

func (v *RecordValidator) issues(row int, r domain.Record) []Issue {
	err := v.validate.Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []Issue{{Row: row, Date: r.DateKey(), Message: err.Error()}}
	}

	out := make([]Issue, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, Issue{
			Row:     row,
			Date:    r.DateKey(),
			Field:   fe.Field(),
			Message: formatFieldError(fe),
		})
	}
	return out
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "required_with_city":
		return fmt.Sprintf("%s is required on city rows", field)
	case "empty_for_nation":
		return fmt.Sprintf("%s must be empty on national rows", field)
	case "lte_cases":
		return fmt.Sprintf("%s must not exceed %s", field, domain.ColCumulativeCases)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
