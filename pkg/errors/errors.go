package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind represents the category of a resolution failure
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindUpstream   Kind = "upstream"
)

// Error is a resolution error carrying its category and HTTP status
type Error struct {
	Kind    Kind
	Message string
	Status  int
}

func (e *Error) Error() string {
	return e.Message
}

// Validation creates an error for user-correctable input problems
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Status: http.StatusBadRequest}
}

// NotFound creates an error for an authoritative or exhausted-chain absence
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message, Status: http.StatusNotFound}
}

// Upstream creates an error for unexpected upstream behaviour
func Upstream(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUpstream, Message: fmt.Sprintf(format, args...), Status: http.StatusInternalServerError}
}

// KindOf returns the kind of err, or KindUpstream for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}

// StatusOf maps any error to the HTTP status it should surface as
func StatusOf(err error) int {
	var e *Error
	if stderrors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// IsNotFound reports whether err is a NotFound resolution error
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}
