package attachments

import "errors"

var (
	// ErrValidation is the parent of every rejection that happens before any write.
	ErrValidation          = errors.New("validation failed")
	ErrFileTooLarge        = errors.New("file too large")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrMissingName         = errors.New("file name is required")

	ErrStorageWrite       = errors.New("storage write failed")
	ErrStorageRead        = errors.New("storage read failed")
	ErrAttachmentNotFound = errors.New("attachment not found")
	// ErrFileMissing means the metadata exists but the backend has no bytes for it.
	ErrFileMissing    = errors.New("attachment file missing from storage")
	ErrPartialCleanup = errors.New("attachment cleanup incomplete")

	// ErrObjectNotFound is returned by backends for a path with no stored object.
	ErrObjectNotFound = errors.New("object not found")
)

// validationError ties a specific rejection to ErrValidation so callers can
// match either the kind or the general class with errors.Is.
type validationError struct {
	kind error
	msg  string
}

func (e *validationError) Error() string {
	return e.msg
}

func (e *validationError) Is(target error) bool {
	return target == ErrValidation || target == e.kind
}
