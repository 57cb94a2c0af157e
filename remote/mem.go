package remote

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemStore is an in-process file tree that answers like an SFTP v3
// server, including its error shapes: missing files surface as
// fs.ErrNotExist and everything the protocol has no code for is
// StatusFailure. It backs tests and the mem:// provider scheme.
type MemStore struct {
	mu   sync.Mutex
	root *memNode
	now  func() time.Time
}

type memNode struct {
	mode     fs.FileMode
	data     []byte
	link     string
	children map[string]*memNode
	uid, gid uint32
	mtime    time.Time
	atime    time.Time
}

func (n *memNode) isDir() bool  { return n.mode.IsDir() }
func (n *memNode) isLink() bool { return n.mode&fs.ModeSymlink != 0 }

// NewMemStore returns an empty store with a root directory.
func NewMemStore() *MemStore {
	st := &MemStore{now: time.Now}
	st.root = &memNode{
		mode:     fs.ModeDir | 0o755,
		children: map[string]*memNode{},
		mtime:    st.now(),
	}
	st.root.atime = st.root.mtime
	return st
}

// Session returns a channel onto the store. Sessions share the tree;
// each one is as independent as an SFTP channel of one server.
func (st *MemStore) Session() Session { return &memSession{st: st} }

const maxLinkDepth = 40

func failure(msg string) error {
	return &StatusError{Code: StatusFailure, Msg: msg}
}

// lookup walks path from the root, following intermediate symbolic
// links. The final link is followed only when followFinal is set.
// st.mu must be held.
func (st *MemStore) lookup(path string, followFinal bool) (*memNode, error) {
	node, _, _, err := st.walk(path, followFinal, 0)
	return node, err
}

// walk resolves path and also reports the parent directory and final
// name, for operations that mutate the parent. node is nil with
// fs.ErrNotExist when only the final segment is missing but the parent
// exists.
func (st *MemStore) walk(path string, followFinal bool, depth int) (node, parent *memNode, name string, err error) {
	if depth > maxLinkDepth {
		return nil, nil, "", failure("too many levels of symbolic links")
	}
	segs := splitPath(path)
	cur := st.root
	parent = nil
	name = "/"
	for i, seg := range segs {
		if !cur.isDir() {
			return nil, nil, "", fs.ErrNotExist
		}
		child, ok := cur.children[seg]
		last := i == len(segs)-1
		if !ok {
			if last {
				return nil, cur, seg, fs.ErrNotExist
			}
			return nil, nil, "", fs.ErrNotExist
		}
		if child.isLink() && (!last || followFinal) {
			rest := strings.Join(segs[i+1:], "/")
			target := child.link
			if !strings.HasPrefix(target, "/") {
				target = joinPath(segs[:i], target)
			}
			if rest != "" {
				target = strings.TrimRight(target, "/") + "/" + rest
			}
			return st.walk(target, followFinal, depth+1)
		}
		parent = cur
		name = seg
		cur = child
	}
	return cur, parent, name, nil
}

func splitPath(path string) []string {
	var segs []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(segs) > 0 {
				segs = segs[:len(segs)-1]
			}
		default:
			segs = append(segs, seg)
		}
	}
	return segs
}

func joinPath(base []string, rel string) string {
	return "/" + strings.Join(append(append([]string{}, base...), rel), "/")
}

func (st *MemStore) attrs(n *memNode) Attrs {
	size := int64(len(n.data))
	if n.isLink() {
		size = int64(len(n.link))
	}
	return Attrs{
		Size:       size,
		Mode:       n.mode,
		UID:        n.uid,
		GID:        n.gid,
		ModTime:    n.mtime,
		AccessTime: n.atime,
	}
}

// MkdirAll creates a directory and any missing parents. It is a test
// and provider convenience, not part of the session protocol.
func (st *MemStore) MkdirAll(path string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	cur := st.root
	for _, seg := range splitPath(path) {
		child, ok := cur.children[seg]
		if !ok {
			child = &memNode{
				mode:     fs.ModeDir | 0o755,
				children: map[string]*memNode{},
				mtime:    st.now(),
			}
			child.atime = child.mtime
			cur.children[seg] = child
		} else if !child.isDir() {
			return failure("not a directory: " + seg)
		}
		cur = child
	}
	return nil
}

// WriteFile creates or replaces a regular file, creating parents as
// needed.
func (st *MemStore) WriteFile(path string, data []byte) error {
	segs := splitPath(path)
	if len(segs) == 0 {
		return failure("cannot write root")
	}
	if err := st.MkdirAll("/" + strings.Join(segs[:len(segs)-1], "/")); err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	parent, err := st.lookupDirLocked(segs[:len(segs)-1])
	if err != nil {
		return err
	}
	parent.children[segs[len(segs)-1]] = &memNode{
		mode:  0o644,
		data:  append([]byte{}, data...),
		mtime: st.now(),
		atime: st.now(),
	}
	return nil
}

func (st *MemStore) lookupDirLocked(segs []string) (*memNode, error) {
	cur := st.root
	for _, seg := range segs {
		child, ok := cur.children[seg]
		if !ok || !child.isDir() {
			return nil, fs.ErrNotExist
		}
		cur = child
	}
	return cur, nil
}

// ReadFile returns the contents of a regular file, following links.
func (st *MemStore) ReadFile(path string) ([]byte, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	n, err := st.lookup(path, true)
	if err != nil {
		return nil, err
	}
	if n.isDir() {
		return nil, failure("is a directory")
	}
	return append([]byte{}, n.data...), nil
}

// Symlink creates a symbolic link at link pointing at target. Parents
// are created as needed.
func (st *MemStore) Symlink(target, link string) error {
	segs := splitPath(link)
	if len(segs) == 0 {
		return failure("cannot link root")
	}
	if err := st.MkdirAll("/" + strings.Join(segs[:len(segs)-1], "/")); err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	parent, err := st.lookupDirLocked(segs[:len(segs)-1])
	if err != nil {
		return err
	}
	parent.children[segs[len(segs)-1]] = &memNode{
		mode:  fs.ModeSymlink | 0o777,
		link:  target,
		mtime: st.now(),
		atime: st.now(),
	}
	return nil
}

// Exists reports whether path names anything, without following a final
// link.
func (st *MemStore) Exists(path string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, err := st.lookup(path, false)
	return err == nil
}

// ChildCount returns the number of entries of a directory.
func (st *MemStore) ChildCount(path string) (int, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	n, err := st.lookup(path, true)
	if err != nil {
		return 0, err
	}
	if !n.isDir() {
		return 0, failure("not a directory")
	}
	return len(n.children), nil
}

type memSession struct {
	st *MemStore
}

var _ Session = &memSession{}

func (s *memSession) Stat(path string) (Attrs, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	n, err := s.st.lookup(path, true)
	if err != nil {
		return Attrs{}, err
	}
	return s.st.attrs(n), nil
}

func (s *memSession) Lstat(path string) (Attrs, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	n, err := s.st.lookup(path, false)
	if err != nil {
		return Attrs{}, err
	}
	return s.st.attrs(n), nil
}

func (s *memSession) ReadLink(path string) (string, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	n, err := s.st.lookup(path, false)
	if err != nil {
		return "", err
	}
	if !n.isLink() {
		return "", failure("not a symlink")
	}
	return n.link, nil
}

func (s *memSession) ReadDir(path string) ([]Entry, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	n, err := s.st.lookup(path, true)
	if err != nil {
		return nil, err
	}
	if !n.isDir() {
		return nil, failure("not a directory")
	}
	entries := make([]Entry, 0, len(n.children))
	for name, child := range n.children {
		entries = append(entries, NewEntry(name, s.st.attrs(child)))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func (s *memSession) Mkdir(path string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	_, parent, name, err := s.st.walk(path, false, 0)
	if err == nil {
		return failure("file exists")
	}
	if parent == nil {
		return err
	}
	child := &memNode{
		mode:     fs.ModeDir | 0o755,
		children: map[string]*memNode{},
		mtime:    s.st.now(),
	}
	child.atime = child.mtime
	parent.children[name] = child
	parent.mtime = s.st.now()
	return nil
}

func (s *memSession) Remove(path string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	node, parent, name, err := s.st.walk(path, false, 0)
	if err != nil {
		return err
	}
	if node.isDir() {
		return failure("is a directory")
	}
	if parent == nil {
		return failure("cannot remove root")
	}
	delete(parent.children, name)
	parent.mtime = s.st.now()
	return nil
}

func (s *memSession) Rmdir(path string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	node, parent, name, err := s.st.walk(path, false, 0)
	if err != nil {
		return err
	}
	if !node.isDir() {
		return failure("not a directory")
	}
	if parent == nil {
		return failure("cannot remove root")
	}
	if len(node.children) > 0 {
		return failure("directory not empty")
	}
	delete(parent.children, name)
	parent.mtime = s.st.now()
	return nil
}

func (s *memSession) Rename(oldpath, newpath string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	node, oldParent, oldName, err := s.st.walk(oldpath, false, 0)
	if err != nil {
		return err
	}
	if oldParent == nil {
		return failure("cannot rename root")
	}
	_, newParent, newName, err := s.st.walk(newpath, false, 0)
	if err == nil {
		return failure("file exists")
	}
	if newParent == nil {
		return err
	}
	delete(oldParent.children, oldName)
	newParent.children[newName] = node
	oldParent.mtime = s.st.now()
	newParent.mtime = s.st.now()
	return nil
}

func (s *memSession) Symlink(target, link string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	_, parent, name, err := s.st.walk(link, false, 0)
	if err == nil {
		return failure("file exists")
	}
	if parent == nil {
		return err
	}
	parent.children[name] = &memNode{
		mode:  fs.ModeSymlink | 0o777,
		link:  target,
		mtime: s.st.now(),
		atime: s.st.now(),
	}
	return nil
}

func (s *memSession) OpenRead(path string) (io.ReadCloser, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	n, err := s.st.lookup(path, true)
	if err != nil {
		return nil, err
	}
	if n.isDir() {
		return nil, failure("is a directory")
	}
	n.atime = s.st.now()
	return io.NopCloser(bytes.NewReader(append([]byte{}, n.data...))), nil
}

func (s *memSession) OpenWrite(path string, flags int) (io.WriteCloser, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	node, parent, name, err := s.st.walk(path, true, 0)
	switch {
	case err == nil:
		if node.isDir() {
			return nil, failure("is a directory")
		}
		if flags&os.O_EXCL != 0 {
			return nil, failure("file exists")
		}
	case parent != nil:
		if flags&os.O_CREATE == 0 {
			return nil, err
		}
		node = &memNode{mode: 0o644, mtime: s.st.now(), atime: s.st.now()}
		parent.children[name] = node
	default:
		return nil, err
	}
	w := &memWriter{st: s.st, node: node}
	if flags&os.O_APPEND != 0 {
		w.buf = append(w.buf, node.data...)
	}
	return w, nil
}

type memWriter struct {
	st     *MemStore
	node   *memNode
	buf    []byte
	closed bool
}

func (w *memWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, failure("write on closed handle")
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *memWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.st.mu.Lock()
	defer w.st.mu.Unlock()
	w.node.data = w.buf
	w.node.mtime = w.st.now()
	return nil
}

func (s *memSession) SetStat(path string, attrs SetAttrs) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	n, err := s.st.lookup(path, true)
	if err != nil {
		return err
	}
	if attrs.Size != nil {
		if n.isDir() {
			return failure("is a directory")
		}
		size := *attrs.Size
		if int64(len(n.data)) > size {
			n.data = n.data[:size]
		} else {
			n.data = append(n.data, make([]byte, size-int64(len(n.data)))...)
		}
	}
	if attrs.Perm != nil {
		n.mode = n.mode&^fs.ModePerm | *attrs.Perm&fs.ModePerm
	}
	if attrs.UID != nil {
		n.uid = *attrs.UID
	}
	if attrs.GID != nil {
		n.gid = *attrs.GID
	}
	if attrs.ModTime != nil {
		n.mtime = *attrs.ModTime
	}
	if attrs.AccessTime != nil {
		n.atime = *attrs.AccessTime
	}
	return nil
}

func (s *memSession) StatVFS(path string) (FSInfo, error) {
	return FSInfo{}, &StatusError{Code: StatusOpUnsupported, Msg: "statvfs not supported"}
}

func (s *memSession) Close() error { return nil }
