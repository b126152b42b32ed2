package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	apperrors "covidcli/internal/errors"
)

// ParamValidator checks path and query parameters with validator tags
type ParamValidator struct {
	validator    *validator.Validate
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewParamValidator creates a parameter validator with the dataset tags
// registered: uf (two-letter state) and codmun (six or seven digit
// municipality code).
func NewParamValidator(logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *ParamValidator {
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apperrors.NewErrorHandler(logger, false)
	}

	v := validator.New()
	v.RegisterValidation("uf", isValidUF)
	v.RegisterValidation("codmun", isValidCityCode)

	return &ParamValidator{
		validator:    v,
		logger:       logger.With(slog.String("component", "param_validator")),
		errorHandler: errorHandler,
	}
}

// URLParam returns the chi URL parameter name after checking it against
// tag. On failure a problem response has been written and ok is false.
func (v *ParamValidator) URLParam(w http.ResponseWriter, r *http.Request, name, tag string) (string, bool) {
	value := strings.TrimSpace(chi.URLParam(r, name))
	if err := v.validator.Var(value, tag); err != nil {
		v.reject(w, r, name, value, err)
		return "", false
	}
	return value, true
}

// Require returns a middleware that validates the chi URL parameter name
// before calling next.
func (v *ParamValidator) Require(name, tag string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := v.URLParam(w, r, name, tag); !ok {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// QueryInt64 validates an integer query parameter within [min, max]. A
// missing parameter is an error when required, else defaultValue.
func (v *ParamValidator) QueryInt64(w http.ResponseWriter, r *http.Request, param string, min, max int64, required bool, defaultValue int64) (int64, bool) {
	value := strings.TrimSpace(r.URL.Query().Get(param))
	if value == "" {
		if required {
			v.errorHandler.HandleError(w, r, apperrors.ErrValidation(param, fmt.Sprintf("%s is required", param)))
			return 0, false
		}
		return defaultValue, true
	}

	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		v.errorHandler.HandleError(w, r, apperrors.ErrValidation(param, fmt.Sprintf("%s must be a valid integer", param)))
		return 0, false
	}
	if n < min || n > max {
		v.errorHandler.HandleError(w, r, apperrors.ErrValidation(param, fmt.Sprintf("%s must be between %d and %d", param, min, max)))
		return 0, false
	}
	return n, true
}

// QueryUF validates an optional state query parameter
func (v *ParamValidator) QueryUF(w http.ResponseWriter, r *http.Request, param string) (string, bool) {
	value := strings.TrimSpace(r.URL.Query().Get(param))
	if value == "" {
		return "", true
	}
	if err := v.validator.Var(value, "uf"); err != nil {
		v.reject(w, r, param, value, err)
		return "", false
	}
	return strings.ToUpper(value), true
}

// QueryEnum validates an enum query parameter
func (v *ParamValidator) QueryEnum(w http.ResponseWriter, r *http.Request, param string, allowed []string, defaultValue string) (string, bool) {
	value := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(param)))
	if value == "" {
		return defaultValue, true
	}
	for _, a := range allowed {
		if value == a {
			return value, true
		}
	}
	v.errorHandler.HandleError(w, r, apperrors.ErrValidation(param, fmt.Sprintf("%s must be one of: %s", param, strings.Join(allowed, ", "))))
	return "", false
}

func (v *ParamValidator) reject(w http.ResponseWriter, r *http.Request, name, value string, err error) {
	message := fmt.Sprintf("%s is invalid", name)
	if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
		message = formatParamError(name, fieldErrs[0])
	}
	v.logger.DebugContext(r.Context(), "parameter rejected",
		slog.String("param", name),
		slog.String("value", value),
		slog.String("reason", message))
	v.errorHandler.HandleError(w, r, apperrors.ErrValidation(name, message))
}

func formatParamError(name string, err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "uf":
		return fmt.Sprintf("%s must be a two-letter state abbreviation", name)
	case "codmun":
		return fmt.Sprintf("%s must be a 6 or 7 digit municipality code", name)
	default:
		return fmt.Sprintf("%s failed %s validation", name, err.Tag())
	}
}

// isValidUF accepts two ASCII letters in either case
func isValidUF(fl validator.FieldLevel) bool {
	uf := fl.Field().String()
	if len(uf) != 2 {
		return false
	}
	for _, ch := range uf {
		if !((ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z')) {
			return false
		}
	}
	return true
}

// isValidCityCode accepts the 6 digit code of the published dataset and the
// 7 digit code with check digit
func isValidCityCode(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	if len(code) != 6 && len(code) != 7 {
		return false
	}
	for _, ch := range code {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
