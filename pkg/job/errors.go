package job

import (
	"errors"
	"fmt"
)

// Kind classifies a job failure by how far the job got before failing.
type Kind string

const (
	// KindValidation failures happen before any I/O.
	KindValidation Kind = "validation"
	// KindDevice failures happen before any destructive step.
	KindDevice Kind = "device"
	// KindFormat failures happen after the device may have been touched.
	KindFormat Kind = "format"
	// KindWrite failures leave the device formatted but not bootable.
	KindWrite Kind = "write"
)

var (
	ErrEmptyDevice     = errors.New("no device selected")
	ErrMissingImage    = errors.New("no image file specified")
	ErrUnknownAction   = errors.New("unsupported action")
	ErrDeviceNotFound  = errors.New("device not found")
	ErrInfoUnavailable = errors.New("unable to get device information")
	ErrDeviceMounted   = errors.New("device is currently mounted")
	ErrFetchFailed     = errors.New("image download failed")
	ErrFormatFailed    = errors.New("format failed")
	ErrImageNotFound   = errors.New("image file not found")
	ErrImageUnreadable = errors.New("cannot read image file")
	ErrWriteFailed     = errors.New("image write failed")
)

// Error is a terminal job failure. Message is the operator-facing status
// text sent to the controller; Err is the underlying cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Op)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a job Error.
func NewError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Status returns the operator-facing message for err, falling back to the
// error text for errors that are not job Errors.
func Status(err error) string {
	var jerr *Error
	if errors.As(err, &jerr) && jerr.Message != "" {
		return jerr.Message
	}
	return fmt.Sprintf("Error: %v", err)
}
