// Package sftpfs implements a POSIX-like virtual file system on top of
// an SFTP server: lexical paths, attribute views, server-side symlink
// resolution, file identity checks and copy/move between servers.
package sftpfs

import (
	"errors"
	"fmt"

	"github.com/telebroad/sftpfs/remote"
)

// Op names the file system operation that produced an error.
type Op string

const (
	OpStat      Op = "stat"
	OpReadLink  Op = "readlink"
	OpReadDir   Op = "readdir"
	OpMkdir     Op = "mkdir"
	OpDelete    Op = "delete"
	OpRename    Op = "rename"
	OpOpenRead  Op = "open-read"
	OpOpenWrite Op = "open-write"
	OpSetStat   Op = "setstat"
	OpSymlink   Op = "symlink"
	OpRealPath  Op = "realpath"
	OpStatVFS   Op = "statvfs"
	OpCopy      Op = "copy"
)

// NoSuchFileError reports that a path, or a component of it, does not
// exist on the server.
type NoSuchFileError struct {
	Path string
}

func (e *NoSuchFileError) Error() string {
	return fmt.Sprintf("sftpfs: %s: no such file or directory", e.Path)
}

// PermissionError reports that the server denied an operation.
type PermissionError struct {
	Path string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("sftpfs: %s: permission denied", e.Path)
}

// FileAlreadyExistsError reports a create that collided with an
// existing file.
type FileAlreadyExistsError struct {
	Path string
}

func (e *FileAlreadyExistsError) Error() string {
	return fmt.Sprintf("sftpfs: %s: file already exists", e.Path)
}

// DirectoryNotEmptyError reports a delete or replace of a directory
// that still has entries.
type DirectoryNotEmptyError struct {
	Path string
}

func (e *DirectoryNotEmptyError) Error() string {
	return fmt.Sprintf("sftpfs: %s: directory not empty", e.Path)
}

// NotDirectoryError reports a directory operation on something that is
// not a directory.
type NotDirectoryError struct {
	Path string
}

func (e *NotDirectoryError) Error() string {
	return fmt.Sprintf("sftpfs: %s: not a directory", e.Path)
}

// NotLinkError reports a readlink on something that is not a symbolic
// link.
type NotLinkError struct {
	Path string
}

func (e *NotLinkError) Error() string {
	return fmt.Sprintf("sftpfs: %s: not a symbolic link", e.Path)
}

// TooManyLinksError reports a symbolic link cycle. Path names the link
// whose resolution came back to an already visited link.
type TooManyLinksError struct {
	Path string
}

func (e *TooManyLinksError) Error() string {
	return fmt.Sprintf("sftpfs: %s: too many levels of symbolic links", e.Path)
}

// UnsupportedViewError reports an attribute view name this file system
// does not implement.
type UnsupportedViewError struct {
	View string
}

func (e *UnsupportedViewError) Error() string {
	return fmt.Sprintf("sftpfs: unsupported attribute view %q", e.View)
}

// UnsupportedAttributeError reports an attribute name unknown to its
// view, or one that cannot be written.
type UnsupportedAttributeError struct {
	Name string
}

func (e *UnsupportedAttributeError) Error() string {
	return fmt.Sprintf("sftpfs: unsupported attribute %q", e.Name)
}

// AttributeValueError reports an attribute write whose value has the
// wrong type.
type AttributeValueError struct {
	Name string
	Want string
}

func (e *AttributeValueError) Error() string {
	return fmt.Sprintf("sftpfs: attribute %q requires a %s value", e.Name, e.Want)
}

// UnsupportedOptionError reports an option the operation cannot honor,
// such as attribute-preserving copies.
type UnsupportedOptionError struct {
	Option string
}

func (e *UnsupportedOptionError) Error() string {
	return fmt.Sprintf("sftpfs: unsupported option %s", e.Option)
}

// ErrMoveRoot is wrapped into the failure returned for an attempt to
// move the root directory itself.
var ErrMoveRoot = errors.New("root directory cannot be moved")

// IOFailureError is the catch-all for remote failures without a more
// specific shape. Other names the second path of a two-path operation
// and is empty otherwise.
type IOFailureError struct {
	Op     Op
	Path   string
	Other  string
	Status remote.StatusCode
	Err    error
}

func (e *IOFailureError) Error() string {
	msg := fmt.Sprintf("sftpfs: %s %s", e.Op, e.Path)
	if e.Other != "" {
		msg += " -> " + e.Other
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg + ": " + remote.StatusText(e.Status)
}

func (e *IOFailureError) Unwrap() error { return e.Err }

// ErrorFactory turns raw session errors into the errors an operation
// returns. A custom factory can replace the default mapping, the way a
// caller might want machine-readable errors with extra context. isDir
// tells the factory whether the operation targeted a directory, which
// decides how a bare protocol failure is read.
type ErrorFactory interface {
	New(op Op, cause error, path, other string, isDir bool) error
}

// DefaultErrorFactory is the standard status code mapping.
var DefaultErrorFactory ErrorFactory = statusErrorFactory{}

type statusErrorFactory struct{}

func (statusErrorFactory) New(op Op, cause error, path, other string, isDir bool) error {
	status := remote.Status(cause)
	switch status {
	case remote.StatusNoSuchFile:
		if op == OpRename && other != "" {
			// the source was verified before renaming, so the missing
			// piece is the target's parent chain
			return &NoSuchFileError{Path: other}
		}
		return &NoSuchFileError{Path: path}
	case remote.StatusPermissionDenied:
		return &PermissionError{Path: path}
	case remote.StatusFailure:
		// SFTP v3 reports "directory not empty" as a bare failure; for
		// a directory delete that is the only plausible reading
		if op == OpDelete && isDir {
			return &DirectoryNotEmptyError{Path: path}
		}
	}
	return &IOFailureError{Op: op, Path: path, Other: other, Status: status, Err: cause}
}
