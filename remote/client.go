package remote

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Dialer opens SFTP sessions against one server. It is the factory a
// Pool uses, so every session of a pool shares the same endpoint and
// credentials.
type Dialer struct {
	// Addr is the host:port of the SSH server.
	Addr string
	// Config is the fully prepared SSH client configuration, including
	// auth methods and the host key callback.
	Config *ssh.ClientConfig
	// Timeout bounds the TCP dial. Zero means no timeout.
	Timeout time.Duration

	logger *slog.Logger
}

// SetLogger sets the debug logger for sessions the dialer creates.
func (d *Dialer) SetLogger(logger *slog.Logger) {
	d.logger = logger.With("module", "sftp-client")
}

// Logger returns the dialer logger, creating a default one if needed.
func (d *Dialer) Logger() *slog.Logger {
	if d.logger == nil {
		d.SetLogger(slog.Default())
	}
	return d.logger
}

// Dial opens a new SSH connection and one SFTP session on it.
func (d *Dialer) Dial() (Session, error) {
	conn, err := net.DialTimeout("tcp", d.Addr, d.Timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.Addr, err)
	}
	sconn, chans, reqs, err := ssh.NewClientConn(conn, d.Addr, d.Config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", d.Addr, err)
	}
	sshClient := ssh.NewClient(sconn, chans, reqs)
	sc, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("sftp subsystem %s: %w", d.Addr, err)
	}
	d.Logger().Debug("session opened", "addr", d.Addr)
	return &Client{sc: sc, ssh: sshClient, logger: d.Logger()}, nil
}

// Client is a Session backed by one SFTP channel of a real server.
type Client struct {
	sc     *sftp.Client
	ssh    *ssh.Client
	logger *slog.Logger
}

var _ Session = &Client{}

// NewClient wraps an already established SFTP client. The SSH connection
// may be nil when its lifetime is managed elsewhere.
func NewClient(sc *sftp.Client, sshClient *ssh.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{sc: sc, ssh: sshClient, logger: logger}
}

func attrsFromInfo(fi os.FileInfo) Attrs {
	a := Attrs{
		Size:    fi.Size(),
		Mode:    fi.Mode(),
		ModTime: fi.ModTime(),
	}
	if st, ok := fi.Sys().(*sftp.FileStat); ok {
		a.UID = st.UID
		a.GID = st.GID
		a.AccessTime = time.Unix(int64(st.Atime), 0)
	}
	if a.AccessTime.IsZero() {
		a.AccessTime = a.ModTime
	}
	return a
}

func (c *Client) Stat(path string) (Attrs, error) {
	fi, err := c.sc.Stat(path)
	if err != nil {
		return Attrs{}, err
	}
	return attrsFromInfo(fi), nil
}

func (c *Client) Lstat(path string) (Attrs, error) {
	fi, err := c.sc.Lstat(path)
	if err != nil {
		return Attrs{}, err
	}
	return attrsFromInfo(fi), nil
}

func (c *Client) ReadLink(path string) (string, error) {
	return c.sc.ReadLink(path)
}

func (c *Client) ReadDir(path string) ([]Entry, error) {
	fis, err := c.sc.ReadDir(path)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(fis))
	for _, fi := range fis {
		entries = append(entries, NewEntry(fi.Name(), attrsFromInfo(fi)))
	}
	return entries, nil
}

func (c *Client) Mkdir(path string) error  { return c.sc.Mkdir(path) }
func (c *Client) Remove(path string) error { return c.sc.Remove(path) }
func (c *Client) Rmdir(path string) error  { return c.sc.RemoveDirectory(path) }

func (c *Client) Rename(oldpath, newpath string) error {
	return c.sc.Rename(oldpath, newpath)
}

func (c *Client) Symlink(target, link string) error {
	return c.sc.Symlink(target, link)
}

func (c *Client) OpenRead(path string) (io.ReadCloser, error) {
	f, err := c.sc.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (c *Client) OpenWrite(path string, flags int) (io.WriteCloser, error) {
	f, err := c.sc.OpenFile(path, os.O_WRONLY|flags)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (c *Client) SetStat(path string, attrs SetAttrs) error {
	if attrs.Size != nil {
		if err := c.sc.Truncate(path, *attrs.Size); err != nil {
			return err
		}
	}
	if attrs.Perm != nil {
		if err := c.sc.Chmod(path, *attrs.Perm); err != nil {
			return err
		}
	}
	if attrs.UID != nil || attrs.GID != nil {
		uid, gid, err := c.fillOwner(path, attrs.UID, attrs.GID)
		if err != nil {
			return err
		}
		if err := c.sc.Chown(path, uid, gid); err != nil {
			return err
		}
	}
	if attrs.ModTime != nil || attrs.AccessTime != nil {
		mtime, atime, err := c.fillTimes(path, attrs.ModTime, attrs.AccessTime)
		if err != nil {
			return err
		}
		if err := c.sc.Chtimes(path, atime, mtime); err != nil {
			return err
		}
	}
	return nil
}

// fillOwner completes a partial owner change with the current values,
// since the protocol sets uid and gid together.
func (c *Client) fillOwner(path string, uid, gid *uint32) (int, int, error) {
	if uid != nil && gid != nil {
		return int(*uid), int(*gid), nil
	}
	cur, err := c.Stat(path)
	if err != nil {
		return 0, 0, err
	}
	if uid == nil {
		uid = &cur.UID
	}
	if gid == nil {
		gid = &cur.GID
	}
	return int(*uid), int(*gid), nil
}

// fillTimes completes a partial time change, because SSH_FXP_SETSTAT
// carries atime and mtime as one attribute.
func (c *Client) fillTimes(path string, mtime, atime *time.Time) (time.Time, time.Time, error) {
	if mtime != nil && atime != nil {
		return *mtime, *atime, nil
	}
	cur, err := c.Stat(path)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if mtime == nil {
		mtime = &cur.ModTime
	}
	if atime == nil {
		atime = &cur.AccessTime
	}
	return *mtime, *atime, nil
}

func (c *Client) StatVFS(path string) (FSInfo, error) {
	vfs, err := c.sc.StatVFS(path)
	if err != nil {
		return FSInfo{}, err
	}
	return FSInfo{
		TotalBytes:     int64(vfs.TotalSpace()),
		FreeBytes:      int64(vfs.FreeSpace()),
		AvailableBytes: int64(vfs.Frsize) * int64(vfs.Bavail),
	}, nil
}

func (c *Client) Close() error {
	err := c.sc.Close()
	if c.ssh != nil {
		if cerr := c.ssh.Close(); err == nil {
			err = cerr
		}
	}
	c.logger.Debug("session closed")
	return err
}
