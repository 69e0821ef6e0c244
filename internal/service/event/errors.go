package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for the event service layer.
var (
	ErrNotFound        = errors.New("event not found")
	ErrMissingOrg      = errors.New("organization id is required")
	ErrMissingName     = errors.New("event name is required")
	ErrInvalidStage    = errors.New("invalid stage list")
	ErrInvalidAudience = errors.New("invalid audience type list")
)

// DuplicateError reports a stage or audience type listed twice after
// normalization.
type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s %q", e.Field, e.Value)
}

// Is matches ErrInvalidStage for stages and ErrInvalidAudience for audience
// types.
func (e *DuplicateError) Is(target error) bool {
	if e.Field == audienceField {
		return target == ErrInvalidAudience
	}
	return target == ErrInvalidStage
}

const audienceField = "audience type"
