package sftpfs

import (
	"context"
	"os"
	"path"

	krfs "github.com/kr/fs"
	"github.com/telebroad/sftpfs/remote"
)

// Walk returns a depth-first walker rooted at root. Each step stats
// lazily over the session pool, so a walk in progress shares sessions
// with other callers.
func (fsys *FileSystem) Walk(ctx context.Context, root Path) *krfs.Walker {
	return krfs.WalkFS(root.abs(), &walkAdapter{ctx: ctx, fsys: fsys})
}

// walkAdapter exposes the file system in the shape kr/fs walks.
type walkAdapter struct {
	ctx  context.Context
	fsys *FileSystem
}

func (w *walkAdapter) ReadDir(dirname string) ([]os.FileInfo, error) {
	p, err := w.fsys.Path(dirname)
	if err != nil {
		return nil, err
	}
	entries, err := w.fsys.ReadDir(w.ctx, p)
	if err != nil {
		return nil, err
	}
	infos := make([]os.FileInfo, len(entries))
	for i, e := range entries {
		infos[i] = e
	}
	return infos, nil
}

func (w *walkAdapter) Lstat(name string) (os.FileInfo, error) {
	p, err := w.fsys.Path(name)
	if err != nil {
		return nil, err
	}
	attrs, err := w.fsys.Stat(w.ctx, p, false)
	if err != nil {
		return nil, err
	}
	return remote.NewEntry(path.Base(name), attrs), nil
}

func (w *walkAdapter) Join(elem ...string) string {
	return path.Join(elem...)
}
