package sftpfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/telebroad/sftpfs/fspath"
	"github.com/telebroad/sftpfs/remote"
)

var fsSeq atomic.Int64

// FileSystem is one view onto one SFTP server: a home directory to
// anchor relative paths and a session pool to talk through. Methods are
// safe for concurrent use; each call borrows a session for its own
// duration only.
type FileSystem struct {
	id       int64
	remoteID string
	home     fspath.Path
	pool     *remote.Pool
	baseURI  string

	logger *slog.Logger
	errs   ErrorFactory
}

// New creates a file system over pool. remoteID identifies the server
// endpoint, such as "user@host:22"; two file systems agree on file
// identity only when their remote IDs match. home must be an absolute
// path.
func New(pool *remote.Pool, remoteID, home string) (*FileSystem, error) {
	hp, err := fspath.New(home)
	if err != nil {
		return nil, err
	}
	if !hp.IsAbsolute() {
		return nil, &fspath.InvalidPathError{Path: home, Reason: "home directory must be absolute"}
	}
	return &FileSystem{
		id:       fsSeq.Add(1),
		remoteID: remoteID,
		home:     hp.Normalize(),
		pool:     pool,
		errs:     DefaultErrorFactory,
	}, nil
}

// SetLogger sets the file system logger.
func (fsys *FileSystem) SetLogger(logger *slog.Logger) {
	fsys.logger = logger.With("module", "sftpfs", "remote", fsys.remoteID)
}

// Logger returns the file system logger, creating a default one if
// needed.
func (fsys *FileSystem) Logger() *slog.Logger {
	if fsys.logger == nil {
		fsys.SetLogger(slog.Default())
	}
	return fsys.logger
}

// SetErrorFactory replaces the error mapping. A nil factory restores
// the default.
func (fsys *FileSystem) SetErrorFactory(f ErrorFactory) {
	if f == nil {
		f = DefaultErrorFactory
	}
	fsys.errs = f
}

// SetBaseURI sets the URI prefix Path.URI reports, such as
// "sftp://user@host:22".
func (fsys *FileSystem) SetBaseURI(base string) {
	fsys.baseURI = strings.TrimRight(base, "/")
}

// RemoteID returns the server endpoint identity.
func (fsys *FileSystem) RemoteID() string { return fsys.remoteID }

// Home returns the home directory paths resolve against.
func (fsys *FileSystem) Home() string { return fsys.home.String() }

// Close closes the underlying session pool.
func (fsys *FileSystem) Close() error { return fsys.pool.Close() }

// Path binds a path string to this file system. The string is kept
// verbatim; errors and URIs report it as given.
func (fsys *FileSystem) Path(name string) (Path, error) {
	p, err := fspath.New(name)
	if err != nil {
		return Path{}, err
	}
	return Path{fsys: fsys, p: p}, nil
}

// MustPath is Path for known-good strings. It panics on invalid input.
func (fsys *FileSystem) MustPath(name string) Path {
	p, err := fsys.Path(name)
	if err != nil {
		panic(err)
	}
	return p
}

// Path is one path bound to its file system.
type Path struct {
	fsys *FileSystem
	p    fspath.Path
}

// String returns the path as the caller spelled it.
func (p Path) String() string { return p.p.String() }

// FileSystem returns the owning file system.
func (p Path) FileSystem() *FileSystem { return p.fsys }

// Absolute returns the path anchored at the home directory, without
// normalizing away any "." or ".." segments.
func (p Path) Absolute() Path {
	return Path{fsys: p.fsys, p: p.p.ResolveAgainstHome(p.fsys.home)}
}

// Normalized returns the absolute, lexically normalized form.
func (p Path) Normalized() Path {
	return Path{fsys: p.fsys, p: p.p.ResolveAgainstHome(p.fsys.home).Normalize()}
}

// Parent returns the containing path. The second return is false at the
// root and for single-segment relative paths.
func (p Path) Parent() (Path, bool) {
	parent, ok := p.p.Parent()
	if !ok {
		return Path{}, false
	}
	return Path{fsys: p.fsys, p: parent}, true
}

// URI returns the path as a URI under the file system's base. The path
// segments are kept as given, not normalized.
func (p Path) URI() (*url.URL, error) {
	if p.fsys.baseURI == "" {
		return nil, fmt.Errorf("sftpfs: file system has no base URI")
	}
	abs := p.p.ResolveAgainstHome(p.fsys.home).String()
	return url.Parse(p.fsys.baseURI + abs)
}

// abs is the wire form handed to sessions.
func (p Path) abs() string {
	return p.p.ResolveAgainstHome(p.fsys.home).Normalize().String()
}

// withSession runs fn with a pooled session and returns it afterwards.
func (fsys *FileSystem) withSession(ctx context.Context, fn func(remote.Session) error) error {
	s, err := fsys.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("sftpfs: acquire session: %w", err)
	}
	err = fn(s)
	fsys.pool.Put(s, err)
	return err
}

// Stat returns the attributes of a path. With followLinks unset a final
// symbolic link reports its own attributes.
func (fsys *FileSystem) Stat(ctx context.Context, p Path, followLinks bool) (remote.Attrs, error) {
	var attrs remote.Attrs
	err := fsys.withSession(ctx, func(s remote.Session) error {
		var err error
		attrs, err = statPath(s, p, followLinks)
		if err != nil {
			return fsys.errs.New(OpStat, err, p.String(), "", false)
		}
		return nil
	})
	return attrs, err
}

func statPath(s remote.Session, p Path, followLinks bool) (remote.Attrs, error) {
	if followLinks {
		return s.Stat(p.abs())
	}
	return s.Lstat(p.abs())
}

// Exists reports whether a path names anything on the server.
func (fsys *FileSystem) Exists(ctx context.Context, p Path) (bool, error) {
	_, err := fsys.Stat(ctx, p, false)
	var nsf *NoSuchFileError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &nsf):
		return false, nil
	default:
		return false, err
	}
}

// AccessMode is one access class checked by CheckAccess.
type AccessMode int

const (
	AccessRead AccessMode = iota
	AccessWrite
	AccessExecute
)

func (m AccessMode) String() string {
	switch m {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessExecute:
		return "execute"
	}
	return "unknown"
}

// permBits returns the permission bits of a mode for any class, which
// is as precise as the protocol allows without knowing the remote
// identity.
func (m AccessMode) permBits() uint32 {
	switch m {
	case AccessRead:
		return 0o444
	case AccessWrite:
		return 0o222
	case AccessExecute:
		return 0o111
	}
	return 0
}

// CheckAccess verifies a path exists and grants each requested access
// mode to at least one permission class. With no modes it is a pure
// existence check.
func (fsys *FileSystem) CheckAccess(ctx context.Context, p Path, modes ...AccessMode) error {
	attrs, err := fsys.Stat(ctx, p, true)
	if err != nil {
		return err
	}
	for _, m := range modes {
		if uint32(attrs.Mode)&m.permBits() == 0 {
			return &PermissionError{Path: p.String()}
		}
	}
	return nil
}

// IsHidden reports whether the file exists and its name starts with a
// dot. The existence check runs first so a missing path fails rather
// than reporting false.
func (fsys *FileSystem) IsHidden(ctx context.Context, p Path) (bool, error) {
	if _, err := fsys.Stat(ctx, p, true); err != nil {
		return false, err
	}
	base := p.p.ResolveAgainstHome(fsys.home).Normalize().Base()
	return strings.HasPrefix(base, ".") && base != "/" && base != ".", nil
}

// ReadDir lists a directory sorted by name.
func (fsys *FileSystem) ReadDir(ctx context.Context, p Path) ([]remote.Entry, error) {
	var entries []remote.Entry
	err := fsys.withSession(ctx, func(s remote.Session) error {
		attrs, err := s.Stat(p.abs())
		if err != nil {
			return fsys.errs.New(OpStat, err, p.String(), "", false)
		}
		if !attrs.IsDir() {
			return &NotDirectoryError{Path: p.String()}
		}
		entries, err = s.ReadDir(p.abs())
		if err != nil {
			return fsys.errs.New(OpReadDir, err, p.String(), "", true)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

// CreateDirectory creates a single directory. Parents must exist.
func (fsys *FileSystem) CreateDirectory(ctx context.Context, p Path) error {
	return fsys.withSession(ctx, func(s remote.Session) error {
		err := s.Mkdir(p.abs())
		if err == nil {
			fsys.Logger().Debug("directory created", "path", p.String())
			return nil
		}
		// a failed mkdir on an existing path reads as a collision, not
		// as whatever code the server picked
		if _, lerr := s.Lstat(p.abs()); lerr == nil {
			return &FileAlreadyExistsError{Path: p.String()}
		}
		return fsys.errs.New(OpMkdir, err, p.String(), "", true)
	})
}

// CreateSymbolicLink creates link pointing at target. The target string
// is stored on the server verbatim.
func (fsys *FileSystem) CreateSymbolicLink(ctx context.Context, link Path, target string) error {
	return fsys.withSession(ctx, func(s remote.Session) error {
		if err := s.Symlink(target, link.abs()); err != nil {
			if _, lerr := s.Lstat(link.abs()); lerr == nil {
				return &FileAlreadyExistsError{Path: link.String()}
			}
			return fsys.errs.New(OpSymlink, err, link.String(), "", false)
		}
		return nil
	})
}

// ReadSymbolicLink returns the target of a symbolic link as a path on
// the same file system.
func (fsys *FileSystem) ReadSymbolicLink(ctx context.Context, p Path) (Path, error) {
	var target string
	err := fsys.withSession(ctx, func(s remote.Session) error {
		attrs, err := s.Lstat(p.abs())
		if err != nil {
			return fsys.errs.New(OpStat, err, p.String(), "", false)
		}
		if !attrs.IsSymlink() {
			return &NotLinkError{Path: p.String()}
		}
		target, err = s.ReadLink(p.abs())
		if err != nil {
			return fsys.errs.New(OpReadLink, err, p.String(), "", false)
		}
		return nil
	})
	if err != nil {
		return Path{}, err
	}
	return fsys.Path(target)
}

// Delete removes a file, symbolic link or empty directory.
func (fsys *FileSystem) Delete(ctx context.Context, p Path) error {
	return fsys.withSession(ctx, func(s remote.Session) error {
		return deletePath(fsys, s, p.abs(), p.String())
	})
}

// deletePath picks remove or rmdir from the lstat answer. display is
// the path spelling used in errors.
func deletePath(fsys *FileSystem, s remote.Session, abs, display string) error {
	attrs, err := s.Lstat(abs)
	if err != nil {
		return fsys.errs.New(OpStat, err, display, "", false)
	}
	if attrs.IsDir() {
		if err := s.Rmdir(abs); err != nil {
			return fsys.errs.New(OpDelete, err, display, "", true)
		}
	} else {
		if err := s.Remove(abs); err != nil {
			return fsys.errs.New(OpDelete, err, display, "", false)
		}
	}
	fsys.Logger().Debug("deleted", "path", display, "dir", attrs.IsDir())
	return nil
}

// DeleteIfExists removes a path and reports whether it existed.
func (fsys *FileSystem) DeleteIfExists(ctx context.Context, p Path) (bool, error) {
	err := fsys.Delete(ctx, p)
	var nsf *NoSuchFileError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &nsf):
		return false, nil
	default:
		return false, err
	}
}

// spaceUnknown is reported when the server has no statvfs extension, so
// space queries always succeed.
const spaceUnknown = math.MaxInt64

// TotalSpace returns the size of the file store holding p, or
// math.MaxInt64 when the server cannot say.
func (fsys *FileSystem) TotalSpace(ctx context.Context, p Path) (int64, error) {
	info, ok, err := fsys.statVFS(ctx, p)
	if err != nil || !ok {
		return spaceUnknown, err
	}
	return info.TotalBytes, nil
}

// FreeSpace returns the free bytes of the file store holding p, or
// math.MaxInt64 when the server cannot say.
func (fsys *FileSystem) FreeSpace(ctx context.Context, p Path) (int64, error) {
	info, ok, err := fsys.statVFS(ctx, p)
	if err != nil || !ok {
		return spaceUnknown, err
	}
	return info.FreeBytes, nil
}

// UsableSpace returns the bytes available to the current user, or
// math.MaxInt64 when the server cannot say.
func (fsys *FileSystem) UsableSpace(ctx context.Context, p Path) (int64, error) {
	info, ok, err := fsys.statVFS(ctx, p)
	if err != nil || !ok {
		return spaceUnknown, err
	}
	return info.AvailableBytes, nil
}

func (fsys *FileSystem) statVFS(ctx context.Context, p Path) (remote.FSInfo, bool, error) {
	var info remote.FSInfo
	supported := true
	err := fsys.withSession(ctx, func(s remote.Session) error {
		var err error
		info, err = s.StatVFS(p.abs())
		if err == nil {
			return nil
		}
		switch remote.Status(err) {
		case remote.StatusOpUnsupported, remote.StatusFailure:
			supported = false
			return nil
		}
		return fsys.errs.New(OpStatVFS, err, p.String(), "", false)
	})
	return info, supported, err
}

// Keepalive issues a cheap request to keep the server from dropping
// idle connections.
func (fsys *FileSystem) Keepalive(ctx context.Context) error {
	return fsys.withSession(ctx, func(s remote.Session) error {
		_, err := s.Stat(fsys.home.String())
		if err != nil {
			return fsys.errs.New(OpStat, err, fsys.home.String(), "", true)
		}
		return nil
	})
}

// OpenOption adjusts OpenRead and OpenWrite.
type OpenOption int

const (
	// OpenAppend writes at the end of the file.
	OpenAppend OpenOption = iota
	// OpenCreate creates the file when missing.
	OpenCreate
	// OpenCreateNew creates the file and fails when it already exists.
	OpenCreateNew
	// OpenTruncate empties the file on open.
	OpenTruncate
	// OpenDeleteOnClose deletes the file when the stream closes.
	OpenDeleteOnClose
)

// OpenRead opens a file for reading. The stream holds one pooled
// session until Close.
func (fsys *FileSystem) OpenRead(ctx context.Context, p Path, opts ...OpenOption) (io.ReadCloser, error) {
	deleteOnClose := false
	for _, o := range opts {
		switch o {
		case OpenDeleteOnClose:
			deleteOnClose = true
		default:
			return nil, &UnsupportedOptionError{Option: fmt.Sprintf("open option %d for reading", o)}
		}
	}
	s, err := fsys.pool.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("sftpfs: acquire session: %w", err)
	}
	attrs, err := s.Stat(p.abs())
	if err != nil {
		err = fsys.errs.New(OpStat, err, p.String(), "", false)
		fsys.pool.Put(s, err)
		return nil, err
	}
	if attrs.IsDir() {
		fsys.pool.Put(s, nil)
		return nil, &NotDirectoryError{Path: p.String()}
	}
	r, err := s.OpenRead(p.abs())
	if err != nil {
		err = fsys.errs.New(OpOpenRead, err, p.String(), "", false)
		fsys.pool.Put(s, err)
		return nil, err
	}
	return &remoteStream{
		rc:            r,
		fsys:          fsys,
		sess:          s,
		path:          p,
		deleteOnClose: deleteOnClose,
	}, nil
}

// OpenWrite opens a file for writing. Without options the file must
// already exist and writing starts at offset zero without truncation.
// The stream holds one pooled session until Close.
func (fsys *FileSystem) OpenWrite(ctx context.Context, p Path, opts ...OpenOption) (io.WriteCloser, error) {
	flags := 0
	deleteOnClose := false
	createNew := false
	for _, o := range opts {
		switch o {
		case OpenAppend:
			flags |= os.O_APPEND
		case OpenCreate:
			flags |= os.O_CREATE
		case OpenCreateNew:
			flags |= os.O_CREATE | os.O_EXCL
			createNew = true
		case OpenTruncate:
			flags |= os.O_TRUNC
		case OpenDeleteOnClose:
			deleteOnClose = true
		default:
			return nil, &UnsupportedOptionError{Option: fmt.Sprintf("open option %d for writing", o)}
		}
	}
	s, err := fsys.pool.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("sftpfs: acquire session: %w", err)
	}
	attrs, statErr := s.Stat(p.abs())
	switch {
	case statErr == nil && attrs.IsDir():
		fsys.pool.Put(s, nil)
		return nil, &IOFailureError{Op: OpOpenWrite, Path: p.String(), Status: remote.StatusFailure, Err: errIsDirectory}
	case statErr == nil && createNew:
		fsys.pool.Put(s, nil)
		return nil, &FileAlreadyExistsError{Path: p.String()}
	}
	w, err := s.OpenWrite(p.abs(), flags)
	if err != nil {
		err = fsys.errs.New(OpOpenWrite, err, p.String(), "", false)
		fsys.pool.Put(s, err)
		return nil, err
	}
	return &remoteStream{
		wc:            w,
		fsys:          fsys,
		sess:          s,
		path:          p,
		deleteOnClose: deleteOnClose,
	}, nil
}

var errIsDirectory = fmt.Errorf("is a directory")

// remoteStream ties an open handle to the session it lives on. Closing
// returns the session to the pool, after the optional delete.
type remoteStream struct {
	rc   io.ReadCloser
	wc   io.WriteCloser
	fsys *FileSystem
	sess remote.Session
	path Path

	deleteOnClose bool
	closed        bool
}

func (st *remoteStream) Read(p []byte) (int, error) {
	if st.rc == nil {
		return 0, fmt.Errorf("sftpfs: %s: stream not open for reading", st.path)
	}
	return st.rc.Read(p)
}

func (st *remoteStream) Write(p []byte) (int, error) {
	if st.wc == nil {
		return 0, fmt.Errorf("sftpfs: %s: stream not open for writing", st.path)
	}
	return st.wc.Write(p)
}

func (st *remoteStream) Close() error {
	if st.closed {
		return nil
	}
	st.closed = true
	var err error
	if st.rc != nil {
		err = st.rc.Close()
	}
	if st.wc != nil {
		if cerr := st.wc.Close(); err == nil {
			err = cerr
		}
	}
	if st.deleteOnClose {
		if derr := deletePath(st.fsys, st.sess, st.path.abs(), st.path.String()); err == nil {
			err = derr
		}
	}
	st.fsys.pool.Put(st.sess, err)
	return err
}
