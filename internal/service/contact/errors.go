package contact

import "errors"

// Sentinel errors for the contact service layer.
var (
	ErrNotFound = errors.New("contact not found")
	// ErrDuplicateEmail is returned by Repository.Create when the email is
	// already taken within the organization.
	ErrDuplicateEmail = errors.New("contact email already exists")
	ErrMissingOrg     = errors.New("organization id is required")
	ErrMissingEmail   = errors.New("email is required")
)
