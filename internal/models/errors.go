package models

import "errors"

// Validation and lifecycle errors shared across services and repositories.
var (
	// ErrInputPathRequired is returned when a transcode request has no input path.
	ErrInputPathRequired = errors.New("input path is required")

	// ErrMediaIDRequired is returned when a transcode request has no media ID.
	ErrMediaIDRequired = errors.New("media ID is required")

	// ErrUnknownProfile is returned when a named transcoding profile does not exist.
	ErrUnknownProfile = errors.New("unknown transcoding profile")

	// ErrJobNotFound is returned when a job lookup finds no record.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobFinished is returned when an operation targets a job that is
	// already in a terminal state.
	ErrJobFinished = errors.New("job already finished")

	// ErrOutputOutsideRoot is returned when a requested output path would
	// resolve outside the configured output root directory.
	ErrOutputOutsideRoot = errors.New("output path escapes output root")

	// ErrTranscodingDisabled is returned when transcoding is disabled in
	// the configuration.
	ErrTranscodingDisabled = errors.New("transcoding is disabled")
)
