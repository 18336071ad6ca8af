package image

import "errors"

// Reason classifies why a save failed.
type Reason string

const (
	ReasonMissingInput       Reason = "MissingInput"
	ReasonDecodeFailed       Reason = "DecodeFailed"
	ReasonPermissionDenied   Reason = "PermissionDenied"
	ReasonStorageUnavailable Reason = "StorageUnavailable"
	ReasonWriteFailed        Reason = "WriteFailed"
)

// SaveError is a terminal save failure. Message is what the caller sees; Err
// keeps the underlying cause for logs.
type SaveError struct {
	Reason  Reason
	Message string
	Err     error
}

func (e *SaveError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *SaveError) Unwrap() error { return e.Err }

// Is matches any SaveError with the same Reason, so errors.Is works against
// the sentinels below whatever the cause.
func (e *SaveError) Is(target error) bool {
	t, ok := target.(*SaveError)
	return ok && t.Reason == e.Reason
}

var (
	ErrMissingInput       = &SaveError{Reason: ReasonMissingInput, Message: "Missing base64 string"}
	ErrDecodeFailed       = &SaveError{Reason: ReasonDecodeFailed, Message: "The image could not be decoded"}
	ErrPermissionDenied   = &SaveError{Reason: ReasonPermissionDenied, Message: "Permission denied"}
	ErrStorageUnavailable = &SaveError{Reason: ReasonStorageUnavailable, Message: "Media store unavailable"}
	ErrWriteFailed        = &SaveError{Reason: ReasonWriteFailed, Message: "Error while saving image"}
)

var (
	ErrMissingLocator = errors.New("missing locator")
	ErrImageNotFound  = errors.New("image not found")
)

func newSaveError(sentinel *SaveError, cause error) *SaveError {
	return &SaveError{Reason: sentinel.Reason, Message: sentinel.Message, Err: cause}
}

// Message returns the caller-visible text of err.
func Message(err error) string {
	var se *SaveError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

// ReasonOf returns the Reason of err, or "" when it is not a SaveError.
func ReasonOf(err error) Reason {
	var se *SaveError
	if errors.As(err, &se) {
		return se.Reason
	}
	return ""
}
