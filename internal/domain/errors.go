// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"fmt"
)

// ErrAuthExpired is returned by the download client when its session was rejected.
// The dispatcher consumes it; it never reaches an API response.
var ErrAuthExpired = errors.New("download client session expired")

// ValidationError reports missing or malformed caller input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError returns a ValidationError with the given message.
func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}

// UpstreamError describes a failed call to an external collaborator.
type UpstreamError struct {
	Service    string
	Endpoint   string
	StatusCode int
	Body       string
	// Message overrides the generated text when the caller should see a fixed wording.
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s returned unexpected status %d", e.Service, e.StatusCode)
	default:
		return fmt.Sprintf("%s request failed", e.Service)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NoResultsError is a normal outcome: the search worked but nothing usable came back.
type NoResultsError struct {
	Reason string
}

func (e *NoResultsError) Error() string {
	return e.Reason
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsUpstream reports whether err is an UpstreamError.
func IsUpstream(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}

// IsNoResults reports whether err is a NoResultsError.
func IsNoResults(err error) bool {
	var target *NoResultsError
	return errors.As(err, &target)
}
