package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorValidationFailed     = "INGEST_VALIDATION_FAILED"
	ErrorClassificationFailed = "INGEST_CLASSIFICATION_FAILED"
	ErrorClaimFailed          = "INGEST_CLAIM_FAILED"
	ErrorFetchFailed          = "INGEST_FETCH_FAILED"
	ErrorHandlerFailed        = "INGEST_HANDLER_FAILED"
	ErrorConfigInvalid        = "INGEST_CONFIG_INVALID"
	ErrorInternal             = "INGEST_INTERNAL_ERROR"
)

var (
	ErrAlreadyExists  = errors.New("ingest: claim already exists")
	ErrClaimNotFound  = errors.New("ingest: claim not found")
	ErrObjectNotFound = errors.New("ingest: object not found")
)

func ingestError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func ingestWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	if source == nil {
		return ingestError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// ValidationError reports a malformed or unsupported application event, or a
// type with no registered handler. It is always a client error.
func ValidationError(message string, field string, metadata map[string]any) error {
	err := goerrors.NewValidation(message, goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorValidationFailed).
		WithSeverity(goerrors.SeverityError)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// ClassificationError reports an inbound event whose shape cannot be mapped
// to any envelope variant.
func ClassificationError(message string, metadata map[string]any) error {
	return ingestError(message, goerrors.CategoryBadInput, http.StatusBadRequest, ErrorClassificationFailed, metadata)
}

func ClaimError(source error, message string, metadata map[string]any) error {
	return ingestWrapError(source, goerrors.CategoryOperation, message, http.StatusInternalServerError, ErrorClaimFailed, metadata)
}

func FetchError(source error, message string, metadata map[string]any) error {
	category := goerrors.CategoryOperation
	if errors.Is(source, ErrObjectNotFound) {
		category = goerrors.CategoryNotFound
	}
	return ingestWrapError(source, category, message, http.StatusInternalServerError, ErrorFetchFailed, metadata)
}

func HandlerError(source error, message string, metadata map[string]any) error {
	return ingestWrapError(source, goerrors.CategoryOperation, message, http.StatusInternalServerError, ErrorHandlerFailed, metadata)
}

// ConfigError is fatal at startup; the process must not serve.
func ConfigError(source error, message string) error {
	return ingestWrapError(source, goerrors.CategoryValidation, message, http.StatusInternalServerError, ErrorConfigInvalid, nil)
}

func InternalError(source error, message string) error {
	return ingestWrapError(source, goerrors.CategoryInternal, message, http.StatusInternalServerError, ErrorInternal, nil)
}

// TextCode returns the stable text code carried by err, or ErrorInternal for
// errors that never went through this package.
func TextCode(err error) string {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && strings.TrimSpace(rich.TextCode) != "" {
		return rich.TextCode
	}
	return ErrorInternal
}

func IsClientError(err error) bool {
	code := StatusCode(err)
	return code >= http.StatusBadRequest && code < http.StatusInternalServerError
}

// StatusCode maps err onto the outbound status: 200 for nil, the envelope
// code when present, 400 for bad input or validation categories and 500 for
// everything else.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return http.StatusInternalServerError
	}
	if rich.Code != 0 {
		return rich.Code
	}
	switch rich.Category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorResponse renders err as an outbound response. Server errors never
// expose the underlying cause.
func ErrorResponse(err error) Response {
	code := StatusCode(err)
	body := errorBody{Error: TextCode(err), Message: "internal error"}
	if code < http.StatusInternalServerError {
		body.Message = err.Error()
		var rich *goerrors.Error
		if goerrors.As(err, &rich) && strings.TrimSpace(rich.Message) != "" {
			body.Message = rich.Message
		}
	}
	return Response{StatusCode: code, Body: MarshalBody(body)}
}

// MarshalBody encodes value as a response body. Values that cannot be encoded
// produce an empty JSON object.
func MarshalBody(value any) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
