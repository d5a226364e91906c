package reclaim

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// ErrorReason categorizes why a removal failed
type ErrorReason int

const (
	ReasonPermissionDenied ErrorReason = iota
	ReasonFileInUse
	ReasonNotFound
	ReasonIsDirectory
	ReasonUnsafePath
	ReasonUnknown
)

// String returns a human-readable error reason
func (r ErrorReason) String() string {
	switch r {
	case ReasonPermissionDenied:
		return "permission denied"
	case ReasonFileInUse:
		return "file is in use"
	case ReasonNotFound:
		return "file not found"
	case ReasonIsDirectory:
		return "is a directory"
	case ReasonUnsafePath:
		return "unsafe path"
	case ReasonUnknown:
		return "unknown error"
	default:
		return "unspecified error"
	}
}

// RemoveError is a categorized removal failure. Retryable marks transient
// conditions worth another attempt (a file briefly held open, for example).
type RemoveError struct {
	Path      string
	Reason    ErrorReason
	Original  error
	Retryable bool
}

// Error implements the error interface
func (e *RemoveError) Error() string {
	return fmt.Sprintf("%s: %s (%v)", e.Path, e.Reason, e.Original)
}

func (e *RemoveError) Unwrap() error {
	return e.Original
}

// categorizeError inspects an os.Remove failure and classifies it.
func categorizeError(path string, err error) *RemoveError {
	if err == nil {
		return nil
	}

	remErr := &RemoveError{
		Path:     path,
		Original: err,
		Reason:   ReasonUnknown,
	}

	if os.IsNotExist(err) {
		remErr.Reason = ReasonNotFound
		return remErr
	}
	if os.IsPermission(err) {
		remErr.Reason = ReasonPermissionDenied
		return remErr
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EACCES, syscall.EPERM:
			remErr.Reason = ReasonPermissionDenied
		case syscall.EBUSY, syscall.ETXTBSY:
			remErr.Reason = ReasonFileInUse
			remErr.Retryable = true
		case syscall.ENOENT:
			remErr.Reason = ReasonNotFound
		case syscall.EISDIR:
			remErr.Reason = ReasonIsDirectory
		}
	}

	return remErr
}

// GroupErrors groups removal errors by reason
func GroupErrors(errs []*RemoveError) map[ErrorReason][]*RemoveError {
	grouped := make(map[ErrorReason][]*RemoveError)
	for _, err := range errs {
		grouped[err.Reason] = append(grouped[err.Reason], err)
	}
	return grouped
}
