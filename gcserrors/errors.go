// Package gcserrors defines the POSIX-like error kinds surfaced by gcsfs.
//
// The backend only speaks HTTP status codes; gcsstorage/google translates
// those into the kinds defined here, the vocabulary callers expect from a
// filesystem (NoSuchFile, FileAlreadyExists, DirectoryNotEmpty, ...), so
// gcsfs and gcsvfs never inspect a *googleapi.Error directly.
package gcserrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the POSIX-like classification of an error.
type Kind int

// Error kinds, see spec §7.
const (
	// KindNoSuchFile: target blob, directory marker or bucket does not exist.
	KindNoSuchFile Kind = iota
	// KindFileAlreadyExists: CREATE_NEW on an existing target, or a
	// non-replacing copy onto an existing target.
	KindFileAlreadyExists
	// KindDirectoryNotEmpty: deleting a non-empty directory or bucket.
	KindDirectoryNotEmpty
	// KindAccessDenied: EXECUTE mode requested, or an underlying auth failure.
	KindAccessDenied
	// KindIllegalArgument: malformed URI, missing bucket, provider mismatch,
	// invalid open-mode combination.
	KindIllegalArgument
	// KindUnsupported: an operation in the unsupported surface (spec §6).
	KindUnsupported
	// KindFileSystemAlreadyExists: registry already has a Filesystem for the bucket.
	KindFileSystemAlreadyExists
	// KindFileSystemNotFound: no registered Filesystem for the bucket.
	KindFileSystemNotFound
	// KindIO: any other backend failure; Cause() unwraps to it.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindNoSuchFile:
		return "no such file"
	case KindFileAlreadyExists:
		return "file already exists"
	case KindDirectoryNotEmpty:
		return "directory not empty"
	case KindAccessDenied:
		return "access denied"
	case KindIllegalArgument:
		return "illegal argument"
	case KindUnsupported:
		return "unsupported"
	case KindFileSystemAlreadyExists:
		return "filesystem already exists"
	case KindFileSystemNotFound:
		return "filesystem not found"
	case KindIO:
		return "I/O error"
	}
	return "unknown error"
}

// Error is a gcsfs error: a Kind plus the path or description it applies
// to, optionally wrapping an underlying cause (always present for KindIO).
type Error struct {
	Kind   Kind
	Path   string
	Reason string
	cause  error
}

func (e *Error) Error() string {
	switch {
	case e.Reason != "" && e.Path != "":
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Kind, e.Reason)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Path, e.Kind)
	case e.Reason != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	default:
		return e.Kind.String()
	}
}

// Unwrap lets errors.Is/As and errors.Cause reach the wrapped backend error.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error of the same Kind, so callers can
// write errors.Is(err, gcserrors.NoSuchFile("")) style checks, or more
// usually IsKind(err, gcserrors.KindNoSuchFile).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error of the given kind describing path.
func New(kind Kind, path string) *Error {
	return &Error{Kind: kind, Path: path}
}

// Newf builds an *Error of the given kind with a formatted reason.
func Newf(kind Kind, path, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Wrap builds a KindIO error around cause, preserving it for errors.Cause.
func Wrap(cause error, path string) *Error {
	return &Error{Kind: KindIO, Path: path, Reason: cause.Error(), cause: errors.WithStack(cause)}
}

// NoSuchFile, FileAlreadyExists, DirectoryNotEmpty, AccessDenied,
// IllegalArgument, Unsupported, FileSystemAlreadyExists and
// FileSystemNotFound are convenience constructors for the matching Kind.
func NoSuchFile(path string) *Error              { return New(KindNoSuchFile, path) }
func FileAlreadyExists(path string) *Error       { return New(KindFileAlreadyExists, path) }
func DirectoryNotEmpty(path string) *Error       { return New(KindDirectoryNotEmpty, path) }
func AccessDenied(path string) *Error            { return New(KindAccessDenied, path) }
func IllegalArgument(path, reason string) *Error { return Newf(KindIllegalArgument, path, "%s", reason) }
func Unsupported(op string) *Error               { return Newf(KindUnsupported, "", "%s", op) }
func FileSystemAlreadyExists(bucket string) *Error {
	return New(KindFileSystemAlreadyExists, bucket)
}
func FileSystemNotFound(bucket string) *Error { return New(KindFileSystemNotFound, bucket) }

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// Cause unwraps err to the deepest non-gcsfs cause, same contract as the
// teacher's own fs.Cause: unwrap through gcserrors.Error, then through
// anything implementing Unwrap.
func Cause(err error) error {
	for {
		if e, ok := err.(*Error); ok && e.cause != nil {
			err = e.cause
			continue
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return err
		}
		next := u.Unwrap()
		if next == nil {
			return err
		}
		err = next
	}
}
