package vicon

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoFrameData is returned by queries made before the first successful update.
	ErrNoFrameData = errors.New("no frame data, call Update first")
	// ErrNotConnected is returned by sources that are not connected to their server.
	ErrNotConnected = errors.New("not connected to the frame source")
)

// SubjectNotVisibleError indicates that a known subject was not observed in the current
// frame.
type SubjectNotVisibleError struct {
	Subject string
}

func (e *SubjectNotVisibleError) Error() string {
	return fmt.Sprintf("subject %q is not visible", e.Subject)
}

// NewSubjectNotVisibleError returns a SubjectNotVisibleError for the subject.
func NewSubjectNotVisibleError(subject string) error {
	return &SubjectNotVisibleError{Subject: subject}
}

// UnknownSubjectError indicates that a subject name is neither configured nor part of
// the current frame.
type UnknownSubjectError struct {
	Subject string
}

func (e *UnknownSubjectError) Error() string {
	return fmt.Sprintf("unknown subject %q", e.Subject)
}

// NewUnknownSubjectError returns an UnknownSubjectError for the subject.
func NewUnknownSubjectError(subject string) error {
	return &UnknownSubjectError{Subject: subject}
}

// IsSubjectNotVisible returns true if err is or wraps a SubjectNotVisibleError.
func IsSubjectNotVisible(err error) bool {
	var target *SubjectNotVisibleError
	return errors.As(err, &target)
}

// IsUnknownSubject returns true if err is or wraps an UnknownSubjectError.
func IsUnknownSubject(err error) bool {
	var target *UnknownSubjectError
	return errors.As(err, &target)
}
