package sftpfs

import (
	"context"

	"github.com/telebroad/sftpfs/fspath"
	"github.com/telebroad/sftpfs/remote"
)

// RealPath resolves a path on the server, component by component,
// expanding every symbolic link it meets. The result is absolute,
// normalized and verified to exist. With followLinks unset a final
// symbolic link is kept as itself; its parent chain is still fully
// resolved.
//
// Resolution fails with NoSuchFileError naming the first prefix that
// does not exist on the server, which for a broken link is the link's
// unresolved target. A cycle fails with TooManyLinksError naming the
// link that closed it.
func (fsys *FileSystem) RealPath(ctx context.Context, p Path, followLinks bool) (Path, error) {
	var out fspath.Path
	err := fsys.withSession(ctx, func(s remote.Session) error {
		var err error
		out, err = fsys.realPath(s, p, followLinks)
		return err
	})
	if err != nil {
		return Path{}, err
	}
	return Path{fsys: fsys, p: out}, nil
}

func (fsys *FileSystem) realPath(s remote.Session, p Path, followLinks bool) (fspath.Path, error) {
	abs := p.p.ResolveAgainstHome(fsys.home).Normalize()
	resolved := fspath.Root
	pending := abs.Segments()
	visited := map[string]struct{}{}

	for len(pending) > 0 {
		seg := pending[0]
		pending = pending[1:]
		switch seg {
		case "", ".":
			continue
		case "..":
			// link targets reintroduce dot-dot after normalization;
			// apply it against what is resolved so far
			if parent, ok := resolved.Parent(); ok {
				resolved = parent
			}
			continue
		}

		next := resolved.Join(seg)
		final := len(pending) == 0

		attrs, err := s.Lstat(next.String())
		if err != nil {
			return fspath.Path{}, fsys.errs.New(OpStat, err, next.String(), "", false)
		}
		if !attrs.IsSymlink() || (final && !followLinks) {
			resolved = next
			continue
		}

		if _, seen := visited[next.String()]; seen {
			return fspath.Path{}, &TooManyLinksError{Path: next.String()}
		}
		visited[next.String()] = struct{}{}

		target, err := s.ReadLink(next.String())
		if err != nil {
			return fspath.Path{}, fsys.errs.New(OpReadLink, err, next.String(), "", false)
		}
		tp, err := fspath.New(target)
		if err != nil {
			return fspath.Path{}, err
		}
		if tp.IsAbsolute() {
			resolved = fspath.Root
		}
		// a relative target stays anchored at the link's parent, which
		// is the current resolved prefix
		pending = append(tp.Segments(), pending...)
	}
	return resolved, nil
}
