// Package apperrors defines the error kinds surfaced by the API and the
// HTTP status each one maps to.
package apperrors

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

type Kind int

const (
	Internal Kind = iota
	NotFound
	ValidationFailed
	UnsupportedImageFormat
	BlobStoreFailure
	DuplicateKey
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case ValidationFailed:
		return "validation_failed"
	case UnsupportedImageFormat:
		return "unsupported_image_format"
	case BlobStoreFailure:
		return "blob_store_failure"
	case DuplicateKey:
		return "duplicate_key"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case ValidationFailed, UnsupportedImageFormat:
		return http.StatusBadRequest
	case DuplicateKey:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind    Kind
	Message string
	// Fields holds the offending field names for validation and duplicate key errors.
	Fields []string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string, fields ...string) *Error {
	return &Error{Kind: ValidationFailed, Message: message, Fields: fields}
}

// KindOf reports the kind of the first *Error in err's chain, Internal otherwise.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// PublicMessage is the message safe to return to API clients.
func PublicMessage(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) || appErr.Kind == Internal {
		return "internal server error"
	}
	if appErr.Kind == BlobStoreFailure {
		return "object storage request failed"
	}
	if appErr.Message != "" {
		return appErr.Message
	}
	return appErr.Error()
}

var dupKeyPattern = regexp.MustCompile(`dup key: \{(.*)\}`)

// FromMongo converts a duplicate key write error into a DuplicateKey error
// naming the offending fields. Other errors are returned unchanged.
func FromMongo(err error) error {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return err
	}
	fields := duplicateFields(err.Error())
	msg := "duplicate value"
	if len(fields) > 0 {
		msg = "duplicate value for " + strings.Join(fields, ", ")
	}
	return &Error{Kind: DuplicateKey, Message: msg, Fields: fields, Err: err}
}

func duplicateFields(raw string) []string {
	m := dupKeyPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	var fields []string
	for _, pair := range strings.Split(m[1], ",") {
		name, _, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			continue
		}
		if name = strings.TrimSpace(name); name != "" {
			fields = append(fields, name)
		}
	}
	return fields
}
