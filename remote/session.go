// Package remote defines the channel abstraction the file system engine
// talks through: a Session is one SFTP channel to a server, a Pool hands
// sessions out and takes them back, and MemStore is an in-process server
// used by tests and the mem:// provider.
package remote

import (
	"io"
	"io/fs"
	"time"
)

// Attrs is the attribute set an SFTP v3 server reports for a file. The
// protocol has no creation time, so callers that need one fall back to
// ModTime.
type Attrs struct {
	Size       int64
	Mode       fs.FileMode
	UID        uint32
	GID        uint32
	ModTime    time.Time
	AccessTime time.Time
}

// IsDir reports whether the attributes describe a directory.
func (a Attrs) IsDir() bool { return a.Mode.IsDir() }

// IsSymlink reports whether the attributes describe a symbolic link.
func (a Attrs) IsSymlink() bool { return a.Mode&fs.ModeSymlink != 0 }

// IsRegular reports whether the attributes describe a regular file.
func (a Attrs) IsRegular() bool { return a.Mode.IsRegular() }

// Perm returns the permission bits only.
func (a Attrs) Perm() fs.FileMode { return a.Mode & fs.ModePerm }

// SetAttrs carries the attribute changes of a setstat request. Nil
// fields are left untouched on the server.
type SetAttrs struct {
	Size       *int64
	Perm       *fs.FileMode
	UID        *uint32
	GID        *uint32
	ModTime    *time.Time
	AccessTime *time.Time
}

// Entry is one name in a directory listing. It implements fs.FileInfo so
// listings can feed APIs that expect one.
type Entry struct {
	name  string
	attrs Attrs
}

// NewEntry builds a directory entry from a name and its attributes.
func NewEntry(name string, attrs Attrs) Entry {
	return Entry{name: name, attrs: attrs}
}

func (e Entry) Name() string       { return e.name }
func (e Entry) Size() int64        { return e.attrs.Size }
func (e Entry) Mode() fs.FileMode  { return e.attrs.Mode }
func (e Entry) ModTime() time.Time { return e.attrs.ModTime }
func (e Entry) IsDir() bool        { return e.attrs.IsDir() }
func (e Entry) Sys() any           { return e.attrs }

// Attributes returns the full attribute set of the entry.
func (e Entry) Attributes() Attrs { return e.attrs }

// FSInfo is the statvfs answer of a server.
type FSInfo struct {
	TotalBytes     int64
	FreeBytes      int64
	AvailableBytes int64
}

// Session is a single channel to a remote server. Implementations are
// not safe for concurrent use; a Pool hands each session to one caller
// at a time. All paths are absolute, slash separated and already
// normalized by the caller.
type Session interface {
	// Stat follows symbolic links.
	Stat(path string) (Attrs, error)
	// Lstat does not follow a final symbolic link.
	Lstat(path string) (Attrs, error)
	// ReadLink returns the raw target of a symbolic link.
	ReadLink(path string) (string, error)
	// ReadDir lists a directory. "." and ".." never appear.
	ReadDir(path string) ([]Entry, error)
	Mkdir(path string) error
	// Remove deletes a file or symbolic link, never a directory.
	Remove(path string) error
	// Rmdir deletes an empty directory.
	Rmdir(path string) error
	// Rename fails when newpath already exists.
	Rename(oldpath, newpath string) error
	// Symlink creates link pointing at target. target is stored verbatim.
	Symlink(target, link string) error
	OpenRead(path string) (io.ReadCloser, error)
	// OpenWrite opens path with os.O_* flags. os.O_WRONLY is implied.
	OpenWrite(path string, flags int) (io.WriteCloser, error)
	SetStat(path string, attrs SetAttrs) error
	// StatVFS reports file system totals. Servers without the
	// statvfs@openssh.com extension fail with StatusOpUnsupported.
	StatVFS(path string) (FSInfo, error)
	Close() error
}
