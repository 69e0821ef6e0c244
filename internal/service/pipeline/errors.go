package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the pipeline service layer.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidStage = errors.New("invalid stage")
	ErrPersistence  = errors.New("persistence failure")

	// ErrAlreadyInPipeline is returned by Repository.Create when a record
	// already exists for the same PipelineKey.
	ErrAlreadyInPipeline = errors.New("already in pipeline")

	// ErrAttendeeExists is returned by AttendeeRepository.Create when an
	// attendee already exists for the same (organization, event, contact).
	ErrAttendeeExists = errors.New("attendee already exists")

	ErrMissingOrg          = errors.New("organization id is required")
	ErrMissingEvent        = errors.New("event id is required")
	ErrNoContacts          = errors.New("at least one contact id is required")
	ErrNoTags              = errors.New("at least one tag is required")
	ErrInvalidAudienceType = errors.New("invalid audience type")
	ErrInvalidSource       = errors.New("invalid source")
)

// NotFoundError reports a missing contact, event, or pipeline record.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidStageError reports a stage outside the event's configured list.
type InvalidStageError struct {
	Stage   string
	Allowed []string
}

func (e *InvalidStageError) Error() string {
	return fmt.Sprintf("invalid stage %q (allowed: %s)", e.Stage, strings.Join(e.Allowed, ", "))
}

// Is lets errors.Is(err, ErrInvalidStage) match.
func (e *InvalidStageError) Is(target error) bool { return target == ErrInvalidStage }

// PersistenceError wraps an underlying store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrPersistence) match.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func persistence(op string, err error) error {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
