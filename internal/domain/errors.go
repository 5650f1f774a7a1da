// internal/domain/errors.go
package domain

import "errors"

var (
	// General errors
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	// Organization-related errors
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrOrganizationExists   = errors.New("organization already exists")

	// Admin-related errors
	ErrAdminNotFound      = errors.New("admin not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAdminInactive      = errors.New("admin account is inactive")

	// Token and access errors
	ErrInvalidToken = errors.New("invalid authentication credentials")
	ErrForbidden    = errors.New("not authorized for this organization")

	// Partition-related errors
	ErrPartitionNotFound    = errors.New("partition not found")
	ErrInvalidPartitionName = errors.New("invalid partition name")

	// Lifecycle failures. These are joined with the underlying cause.
	ErrCreateFailed = errors.New("failed to create organization")
	ErrUpdateFailed = errors.New("failed to update organization")
	ErrDeleteFailed = errors.New("failed to delete organization")
)

// IsConflict reports whether err is one of the duplicate-record errors.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOrganizationExists) || errors.Is(err, ErrEmailAlreadyExists)
}
