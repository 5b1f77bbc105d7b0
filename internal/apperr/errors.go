// Package apperr defines sentinel errors shared across Raido components.
package apperr

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")
	ErrAlreadyExists         = errors.New("already exists")
	ErrVaultRootUnconfigured = errors.New("vault root is not configured")
	ErrNoPendingRelocation   = errors.New("no pending relocation")
)
