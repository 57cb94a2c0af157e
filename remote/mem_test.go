package remote

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *MemStore {
	t.Helper()
	st := NewMemStore()
	if err := st.MkdirAll("/home/dir"); err != nil {
		t.Fatal(err)
	}
	if err := st.WriteFile("/home/file.txt", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestMemStatAndLstat(t *testing.T) {
	st := newTestStore(t)
	if err := st.Symlink("/home/file.txt", "/home/link"); err != nil {
		t.Fatal(err)
	}
	s := st.Session()

	a, err := s.Stat("/home/link")
	if err != nil {
		t.Fatal(err)
	}
	if !a.IsRegular() || a.Size != 5 {
		t.Errorf("Stat through link = %+v", a)
	}

	a, err = s.Lstat("/home/link")
	if err != nil {
		t.Fatal(err)
	}
	if !a.IsSymlink() {
		t.Errorf("Lstat link mode = %v", a.Mode)
	}

	_, err = s.Stat("/home/missing")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat missing = %v", err)
	}
	if got := Status(err); got != StatusNoSuchFile {
		t.Errorf("Status = %v", got)
	}
}

func TestMemIntermediateLink(t *testing.T) {
	st := newTestStore(t)
	if err := st.Symlink("/home/dir", "/home/dirlink"); err != nil {
		t.Fatal(err)
	}
	if err := st.WriteFile("/home/dir/inner.txt", []byte("x")); err != nil {
		t.Fatal(err)
	}
	s := st.Session()
	a, err := s.Stat("/home/dirlink/inner.txt")
	if err != nil {
		t.Fatal(err)
	}
	if a.Size != 1 {
		t.Errorf("size = %d", a.Size)
	}
}

func TestMemLinkLoop(t *testing.T) {
	st := NewMemStore()
	if err := st.Symlink("/b", "/a"); err != nil {
		t.Fatal(err)
	}
	if err := st.Symlink("/a", "/b"); err != nil {
		t.Fatal(err)
	}
	_, err := st.Session().Stat("/a")
	if Status(err) != StatusFailure {
		t.Errorf("loop Stat = %v", err)
	}
}

func TestMemReadDir(t *testing.T) {
	st := newTestStore(t)
	entries, err := st.Session().ReadDir("/home")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Name() != "dir" || entries[1].Name() != "file.txt" {
		t.Errorf("entries = %v", entries)
	}
	if !entries[0].IsDir() || entries[1].IsDir() {
		t.Error("entry modes wrong")
	}

	_, err = st.Session().ReadDir("/home/file.txt")
	if Status(err) != StatusFailure {
		t.Errorf("ReadDir on file = %v", err)
	}
}

func TestMemMkdir(t *testing.T) {
	s := newTestStore(t).Session()
	if err := s.Mkdir("/home/newdir"); err != nil {
		t.Fatal(err)
	}
	if err := s.Mkdir("/home/newdir"); Status(err) != StatusFailure {
		t.Errorf("Mkdir existing = %v", err)
	}
	if err := s.Mkdir("/nope/newdir"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Mkdir missing parent = %v", err)
	}
}

func TestMemRemoveAndRmdir(t *testing.T) {
	st := newTestStore(t)
	s := st.Session()
	if err := s.Remove("/home/dir"); Status(err) != StatusFailure {
		t.Errorf("Remove on dir = %v", err)
	}
	if err := s.Remove("/home/file.txt"); err != nil {
		t.Fatal(err)
	}
	if st.Exists("/home/file.txt") {
		t.Error("file survived Remove")
	}
	if err := s.Rmdir("/home"); Status(err) != StatusFailure {
		t.Errorf("Rmdir non-empty = %v", err)
	}
	if err := s.Rmdir("/home/dir"); err != nil {
		t.Fatal(err)
	}
	if err := s.Rmdir("/"); Status(err) != StatusFailure {
		t.Errorf("Rmdir root = %v", err)
	}
}

func TestMemRename(t *testing.T) {
	st := newTestStore(t)
	s := st.Session()
	if err := s.Rename("/home/file.txt", "/home/dir/moved.txt"); err != nil {
		t.Fatal(err)
	}
	if st.Exists("/home/file.txt") || !st.Exists("/home/dir/moved.txt") {
		t.Error("rename did not move the file")
	}
	if err := st.WriteFile("/home/other.txt", nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Rename("/home/other.txt", "/home/dir/moved.txt"); Status(err) != StatusFailure {
		t.Errorf("Rename onto existing = %v", err)
	}
	if err := s.Rename("/home/other.txt", "/nope/x"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Rename to missing parent = %v", err)
	}
}

func TestMemOpenWrite(t *testing.T) {
	st := newTestStore(t)
	s := st.Session()

	w, err := s.OpenWrite("/home/new.txt", os.O_CREATE|os.O_TRUNC)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("data")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	got, err := st.ReadFile("/home/new.txt")
	if err != nil || string(got) != "data" {
		t.Fatalf("ReadFile = %q, %v", got, err)
	}

	w, err = s.OpenWrite("/home/new.txt", os.O_APPEND)
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("+more"))
	w.Close()
	got, _ = st.ReadFile("/home/new.txt")
	if string(got) != "data+more" {
		t.Errorf("append = %q", got)
	}

	if _, err := s.OpenWrite("/home/new.txt", os.O_CREATE|os.O_EXCL); Status(err) != StatusFailure {
		t.Errorf("O_EXCL on existing = %v", err)
	}
	if _, err := s.OpenWrite("/home/missing.txt", 0); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("write without create = %v", err)
	}
	if _, err := s.OpenWrite("/home/dir", os.O_CREATE); Status(err) != StatusFailure {
		t.Errorf("write on dir = %v", err)
	}
}

func TestMemOpenRead(t *testing.T) {
	st := newTestStore(t)
	r, err := st.Session().OpenRead("/home/file.txt")
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(r)
	r.Close()
	if err != nil || string(data) != "hello" {
		t.Fatalf("read = %q, %v", data, err)
	}
	if _, err := st.Session().OpenRead("/home/dir"); Status(err) != StatusFailure {
		t.Errorf("read dir = %v", err)
	}
}

func TestMemSetStat(t *testing.T) {
	st := newTestStore(t)
	s := st.Session()
	mtime := time.Date(2020, 5, 4, 3, 2, 1, 0, time.UTC)
	perm := fs.FileMode(0o600)
	uid, gid := uint32(1000), uint32(1001)
	err := s.SetStat("/home/file.txt", SetAttrs{
		Perm:    &perm,
		UID:     &uid,
		GID:     &gid,
		ModTime: &mtime,
	})
	if err != nil {
		t.Fatal(err)
	}
	a, err := s.Stat("/home/file.txt")
	if err != nil {
		t.Fatal(err)
	}
	if a.Perm() != 0o600 || a.UID != 1000 || a.GID != 1001 || !a.ModTime.Equal(mtime) {
		t.Errorf("attrs = %+v", a)
	}
}

func TestMemStatVFSUnsupported(t *testing.T) {
	st := newTestStore(t)
	_, err := st.Session().StatVFS("/")
	if Status(err) != StatusOpUnsupported {
		t.Errorf("StatVFS = %v", err)
	}
}

func TestMemReadLink(t *testing.T) {
	st := newTestStore(t)
	if err := st.Symlink("target", "/home/rel"); err != nil {
		t.Fatal(err)
	}
	got, err := st.Session().ReadLink("/home/rel")
	if err != nil || got != "target" {
		t.Fatalf("ReadLink = %q, %v", got, err)
	}
	if _, err := st.Session().ReadLink("/home/file.txt"); Status(err) != StatusFailure {
		t.Errorf("ReadLink on file = %v", err)
	}
}
