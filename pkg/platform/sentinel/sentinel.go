package sentinel

import "errors"

// Sentinel dependency errors. Stores return these (optionally wrapped) so the
// consent service can translate them into domain errors exactly once.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrStaleVersion = errors.New("stale version")
	ErrAppendOnly   = errors.New("append-only: update and delete are not permitted")
	ErrInvalidInput = errors.New("invalid input")
	ErrExpired      = errors.New("expired")
	ErrUnavailable  = errors.New("unavailable")
)
