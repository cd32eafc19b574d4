package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/ecoterra/siteapi/internal/domain"
)

// maxJSONBody caps JSON request bodies
const maxJSONBody = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// MessageResponse is returned by operations with nothing else to report
type MessageResponse struct {
	Message string `json:"message"`
}

// Responder writes JSON bodies and maps service errors to HTTP status codes
type Responder struct {
	logger     *slog.Logger
	showDetail bool
}

// NewResponder creates a responder; showDetail exposes internal error text to clients
func NewResponder(logger *slog.Logger, showDetail bool) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{logger: logger, showDetail: showDetail}
}

func (rs *Responder) JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		rs.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (rs *Responder) Message(w http.ResponseWriter, status int, msg string) {
	rs.JSON(w, status, MessageResponse{Message: msg})
}

func (rs *Responder) Error(w http.ResponseWriter, status int, msg, code string) {
	rs.JSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// Fail maps err onto a status code. Unrecognized errors are logged and
// reported as a generic 500.
func (rs *Responder) Fail(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		rs.Error(w, http.StatusBadRequest, vErr.Msg, "validation_error")
	case errors.Is(err, domain.ErrValidation):
		rs.Error(w, http.StatusBadRequest, err.Error(), "validation_error")
	case errors.Is(err, domain.ErrTooManyAttempts):
		rs.Error(w, http.StatusTooManyRequests, "too many login attempts, try again later", "too_many_attempts")
	case errors.Is(err, domain.ErrInvalidCredentials):
		rs.Error(w, http.StatusUnauthorized, "invalid credentials", "invalid_credentials")
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrUserNotFound):
		rs.Error(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, domain.ErrNotFound):
		rs.Error(w, http.StatusNotFound, "resource not found", "not_found")
	case errors.Is(err, domain.ErrUnsupportedMediaType):
		rs.Error(w, http.StatusUnsupportedMediaType, domain.ErrUnsupportedMediaType.Error(), "unsupported_media_type")
	case errors.Is(err, domain.ErrPayloadTooLarge):
		rs.Error(w, http.StatusRequestEntityTooLarge, domain.ErrPayloadTooLarge.Error(), "payload_too_large")
	case errors.Is(err, domain.ErrUnavailable):
		rs.logger.Warn("dependency unavailable", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		w.Header().Set("Retry-After", "30")
		rs.Error(w, http.StatusServiceUnavailable, "service temporarily unavailable", "unavailable")
	default:
		rs.internalError(w, r, err)
	}
}

func (rs *Responder) internalError(w http.ResponseWriter, r *http.Request, err error) {
	rs.logger.Error("request failed",
		slog.String("request_id", chimid.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	body := ErrorResponse{Error: "internal server error", Code: "internal"}
	if rs.showDetail {
		body.Detail = err.Error()
	}
	rs.JSON(w, http.StatusInternalServerError, body)
}

// decodeJSON reads a single JSON value into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: request body too large", domain.ErrPayloadTooLarge)
		case errors.Is(err, io.EOF):
			return domain.Invalid("request body is required")
		default:
			return domain.Invalid("invalid JSON body")
		}
	}
	return nil
}

// validateStruct runs struct tag validation and reports the first failure
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return domain.Invalid(describeFieldError(fieldErrs[0]))
	}
	return domain.Invalid(err.Error())
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return fe.Field() + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "excludesall":
		return fe.Field() + " contains forbidden characters"
	default:
		return fe.Field() + " is invalid"
	}
}
