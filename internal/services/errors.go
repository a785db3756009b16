// Package services defines the business logic for companion sessions,
// their messages, and guided content search. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Session and message errors.
var (
	// ErrSessionNotFound indicates that the requested session does not exist
	// or is not accessible to the current user.
	ErrSessionNotFound = errors.New("session not found")

	// ErrEmptyPrompt is returned when a message request contains an empty
	// prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrTooLong is returned when a prompt exceeds the configured rune limit.
	ErrTooLong = errors.New("prompt too long")

	// ErrEmptyQuery is returned for a blank content search.
	ErrEmptyQuery = errors.New("query is empty")
)
