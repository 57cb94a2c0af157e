package remote

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/pkg/sftp"
)

// StatusCode is an SFTP v3 status code as defined in
// draft-ietf-secsh-filexfer-02 section 7.
type StatusCode uint32

const (
	StatusOK               StatusCode = 0
	StatusEOF              StatusCode = 1
	StatusNoSuchFile       StatusCode = 2
	StatusPermissionDenied StatusCode = 3
	StatusFailure          StatusCode = 4
	StatusBadMessage       StatusCode = 5
	StatusNoConnection     StatusCode = 6
	StatusConnectionLost   StatusCode = 7
	StatusOpUnsupported    StatusCode = 8

	// StatusUnknown is not a wire code. It classifies errors that carry
	// no SFTP status at all, typically transport failures.
	StatusUnknown StatusCode = 1<<32 - 1
)

var statusText = map[StatusCode]string{
	StatusOK:               "OK",
	StatusEOF:              "end of file",
	StatusNoSuchFile:       "no such file",
	StatusPermissionDenied: "permission denied",
	StatusFailure:          "failure",
	StatusBadMessage:       "bad message",
	StatusNoConnection:     "no connection",
	StatusConnectionLost:   "connection lost",
	StatusOpUnsupported:    "operation unsupported",
	StatusUnknown:          "unknown",
}

// StatusText returns the text for an SFTP status code. It returns the
// empty string for codes it does not know.
func StatusText(code StatusCode) string {
	return statusText[code]
}

// StatusError is a remote failure carrying its SFTP status code.
// MemStore reports failures with it; real servers report through
// sftp.StatusError, which Status also understands.
type StatusError struct {
	Code StatusCode
	Msg  string
}

func (e *StatusError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("sftp: %s (%s)", e.Msg, StatusText(e.Code))
	}
	return fmt.Sprintf("sftp: %s", StatusText(e.Code))
}

// Status classifies an error from a Session into an SFTP status code.
// It understands the sentinel errors the sftp package normalises common
// statuses into, raw sftp status errors, and StatusError values from
// MemStore. Anything else is StatusUnknown.
func Status(err error) StatusCode {
	if err == nil {
		return StatusOK
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	var sse *sftp.StatusError
	if errors.As(err, &sse) {
		return StatusCode(sse.Code)
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return StatusNoSuchFile
	case errors.Is(err, fs.ErrPermission):
		return StatusPermissionDenied
	case errors.Is(err, io.EOF):
		return StatusEOF
	case errors.Is(err, sftp.ErrSSHFxOpUnsupported):
		return StatusOpUnsupported
	case errors.Is(err, sftp.ErrSSHFxConnectionLost):
		return StatusConnectionLost
	case errors.Is(err, sftp.ErrSSHFxNoConnection):
		return StatusNoConnection
	}
	return StatusUnknown
}
