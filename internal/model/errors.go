package model

import "errors"

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrEmptyBatch      = errors.New("batch has no items")
	ErrUnknownJobType  = errors.New("unknown automation type")
	ErrNothingToRetry  = errors.New("no technical failures to retry")
	ErrJobStillRunning = errors.New("job is still running")
	ErrJobClosed       = errors.New("job is already complete")
	ErrJobChanged      = errors.New("job changed concurrently")
	ErrUnauthorized    = errors.New("unauthorized")
)
