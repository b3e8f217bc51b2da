package apperror

import (
	"errors"
	"net/http"
)

type Code string

const (
	BadRequest        Code = "BAD_REQUEST"
	NotFound          Code = "NOT_FOUND"
	InvalidTransition Code = "INVALID_TRANSITION"
	TrackingActive    Code = "TRACKING_ACTIVE"
	NoTracking        Code = "NO_TRACKING"
	Internal          Code = "INTERNAL"
)

type AppError struct {
	code    Code
	message string
}

func New(code Code, message string) *AppError {
	return &AppError{code: code, message: message}
}

func (e *AppError) Error() string   { return e.message }
func (e *AppError) Code() Code      { return e.code }
func (e *AppError) Message() string { return e.message }

func (e *AppError) HTTPStatus() int {
	switch e.code {
	case BadRequest:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case InvalidTransition, TrackingActive, NoTracking:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Is reports whether err is, or wraps, an *AppError with the given code.
func Is(err error, code Code) bool {
	var ae *AppError
	return errors.As(err, &ae) && ae.code == code
}
