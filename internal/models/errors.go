package models

import (
	"errors"
)

// Error variants surfaced by request validation and dispatch. The HTTP layer
// maps them to status codes; nothing below it retries.
var (
	// ErrNoSource indicates a request declared neither a video nor an audio source.
	ErrNoSource = errors.New("at least one of video source or audio source is required")

	// ErrSourceNotFound indicates a declared source path does not exist.
	ErrSourceNotFound = errors.New("source file not found")

	// ErrDestinationInvalid indicates the destination folder does not exist.
	ErrDestinationInvalid = errors.New("destination folder does not exist")

	// ErrProbeFailed indicates the metadata probe could not determine
	// duration or framerate for a source.
	ErrProbeFailed = errors.New("media probe failed")

	// ErrNoTargets indicates a transcode request without target renditions.
	ErrNoTargets = errors.New("at least one target rendition is required")

	// ErrInvalidTarget indicates a target rendition with a non-positive dimension or bitrate.
	ErrInvalidTarget = errors.New("target rendition has invalid dimensions or bitrates")

	// ErrMachineNameRequired indicates a worker poll without a machine name.
	ErrMachineNameRequired = errors.New("machine name is required")

	// ErrClaimLost indicates the conditional update in a claim raced another
	// worker and affected zero rows. Internal; the worker just sees no job.
	ErrClaimLost = errors.New("claim lost to concurrent worker")

	// ErrRequestNotFound indicates an unknown correlation id.
	ErrRequestNotFound = errors.New("request not found")

	// ErrJobNotFound indicates an unknown job id.
	ErrJobNotFound = errors.New("job not found")
)
