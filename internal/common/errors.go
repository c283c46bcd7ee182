// Package common defines sentinel errors shared by the uploader and the
// pipeline. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Configuration errors.
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidConfig      = errors.New("invalid configuration")

	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Workflow declaration errors.
	ErrInvalidWorkflow   = errors.New("invalid workflow")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrUnknownJob        = errors.New("unknown job")

	// Remote job errors.
	ErrJobFailed = errors.New("remote job failed")
)
