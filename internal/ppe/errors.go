package ppe

import "errors"

var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrModelUnavailable  = errors.New("model unavailable")
	ErrMalformedState    = errors.New("malformed persisted state")
	ErrIncompleteUpload  = errors.New("incomplete upload")
	ErrUnknownSite       = errors.New("unknown site")
	ErrInvalidAlertType  = errors.New("invalid alert type")
	ErrRunFailed         = errors.New("analysis run failed")
)
