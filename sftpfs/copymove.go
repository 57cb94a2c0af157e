package sftpfs

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/telebroad/sftpfs/remote"
)

// CopyOption adjusts Copy and Move.
type CopyOption int

const (
	// ReplaceExisting deletes an existing target before the transfer.
	ReplaceExisting CopyOption = iota
	// CopyAttributes asks for attribute preservation, which the
	// protocol cannot promise. It is always rejected.
	CopyAttributes
)

// parseCopyOptions validates options before any server round trip.
func parseCopyOptions(opts []CopyOption) (replace bool, err error) {
	for _, o := range opts {
		switch o {
		case ReplaceExisting:
			replace = true
		case CopyAttributes:
			return false, &UnsupportedOptionError{Option: "COPY_ATTRIBUTES"}
		default:
			return false, &UnsupportedOptionError{Option: fmt.Sprintf("copy option %d", o)}
		}
	}
	return replace, nil
}

// Copy copies src to dst, possibly on a different server. A directory
// is copied shallow: the target directory is created empty. Without
// ReplaceExisting an existing target fails with FileAlreadyExistsError,
// except when both paths already denote the same file, which is a
// no-op.
func Copy(ctx context.Context, src, dst Path, opts ...CopyOption) error {
	replace, err := parseCopyOptions(opts)
	if err != nil {
		return err
	}
	if !replace && src.fsys.sameFileDisregardingMissing(ctx, src, dst) {
		return nil
	}
	srcSess, dstSess, put, err := transferSessions(ctx, src, dst)
	if err != nil {
		return err
	}
	var werr error
	defer func() { put(werr) }()

	srcAttrs, werr := prepareTarget(srcSess, dstSess, src, dst, replace)
	if werr != nil {
		return werr
	}
	werr = copyContent(srcSess, dstSess, src, dst, srcAttrs)
	if werr == nil {
		src.fsys.Logger().Debug("copied", "src", src.String(), "dst", dst.String(), "dir", srcAttrs.IsDir())
	}
	return werr
}

// Move moves src to dst. On the same file system it is one server-side
// rename. Across file systems it degrades to copy plus delete with no
// rollback: when deleting the source fails, the target keeps whatever
// was transferred and the delete failure is returned.
func Move(ctx context.Context, src, dst Path, opts ...CopyOption) error {
	replace, err := parseCopyOptions(opts)
	if err != nil {
		return err
	}
	if !replace && src.fsys.sameFileDisregardingMissing(ctx, src, dst) {
		return nil
	}
	if src.abs() == "/" {
		return moveRootError(ctx, src, dst)
	}
	srcSess, dstSess, put, err := transferSessions(ctx, src, dst)
	if err != nil {
		return err
	}
	var werr error
	defer func() { put(werr) }()

	srcAttrs, werr := prepareTarget(srcSess, dstSess, src, dst, replace)
	if werr != nil {
		return werr
	}

	if srcSess == dstSess {
		if err := srcSess.Rename(src.abs(), dst.abs()); err != nil {
			werr = src.fsys.errs.New(OpRename, err, src.String(), dst.String(), srcAttrs.IsDir())
			return werr
		}
		src.fsys.Logger().Debug("renamed", "src", src.String(), "dst", dst.String())
		return nil
	}

	if werr = copyContent(srcSess, dstSess, src, dst, srcAttrs); werr != nil {
		return werr
	}
	// no rollback: a source that cannot be deleted leaves the copy in
	// place on the target server
	if srcAttrs.IsDir() {
		if err := srcSess.Rmdir(src.abs()); err != nil {
			werr = src.fsys.errs.New(OpDelete, err, src.String(), "", true)
			return werr
		}
	} else {
		if err := srcSess.Remove(src.abs()); err != nil {
			werr = src.fsys.errs.New(OpDelete, err, src.String(), "", false)
			return werr
		}
	}
	src.fsys.Logger().Debug("moved", "src", src.String(), "dst", dst.String(), "dir", srcAttrs.IsDir())
	return nil
}

// moveRootError distinguishes a root that still has entries from the
// structural impossibility of renaming "/" itself.
func moveRootError(ctx context.Context, src, dst Path) error {
	entries, err := src.fsys.ReadDir(ctx, src)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return &DirectoryNotEmptyError{Path: src.String()}
	}
	return &IOFailureError{
		Op:     OpRename,
		Path:   src.String(),
		Other:  dst.String(),
		Status: remote.StatusFailure,
		Err:    ErrMoveRoot,
	}
}

// transferSessions acquires the session pair of a transfer. On the same
// file system one session serves both ends. put returns them with the
// outcome of the work.
func transferSessions(ctx context.Context, src, dst Path) (srcSess, dstSess remote.Session, put func(error), err error) {
	srcSess, err = src.fsys.pool.Get(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sftpfs: acquire session: %w", err)
	}
	if src.fsys == dst.fsys {
		return srcSess, srcSess, func(werr error) {
			src.fsys.pool.Put(srcSess, werr)
		}, nil
	}
	dstSess, err = dst.fsys.pool.Get(ctx)
	if err != nil {
		src.fsys.pool.Put(srcSess, nil)
		return nil, nil, nil, fmt.Errorf("sftpfs: acquire session: %w", err)
	}
	return srcSess, dstSess, func(werr error) {
		src.fsys.pool.Put(srcSess, werr)
		dst.fsys.pool.Put(dstSess, werr)
	}, nil
}

// prepareTarget verifies the source exists and clears the target when
// replacing. An existing target without ReplaceExisting is a collision;
// a non-empty target directory survives the replace attempt and fails
// the transfer as its delete would.
func prepareTarget(srcSess, dstSess remote.Session, src, dst Path, replace bool) (remote.Attrs, error) {
	srcAttrs, err := srcSess.Lstat(src.abs())
	if err != nil {
		return remote.Attrs{}, src.fsys.errs.New(OpStat, err, src.String(), "", false)
	}
	if _, err := dstSess.Lstat(dst.abs()); err == nil {
		if !replace {
			return remote.Attrs{}, &FileAlreadyExistsError{Path: dst.String()}
		}
		if err := deletePath(dst.fsys, dstSess, dst.abs(), dst.String()); err != nil {
			return remote.Attrs{}, err
		}
	}
	return srcAttrs, nil
}

// copyContent creates the target from the source: directories become
// empty directories, everything else is streamed byte for byte.
func copyContent(srcSess, dstSess remote.Session, src, dst Path, srcAttrs remote.Attrs) error {
	if srcAttrs.IsDir() {
		if err := dstSess.Mkdir(dst.abs()); err != nil {
			return dst.fsys.errs.New(OpMkdir, err, dst.String(), "", true)
		}
		return nil
	}
	r, err := srcSess.OpenRead(src.abs())
	if err != nil {
		return src.fsys.errs.New(OpOpenRead, err, src.String(), "", false)
	}
	defer r.Close()
	w, err := dstSess.OpenWrite(dst.abs(), os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return dst.fsys.errs.New(OpOpenWrite, err, dst.String(), "", false)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return &IOFailureError{Op: OpCopy, Path: src.String(), Other: dst.String(), Status: remote.Status(err), Err: err}
	}
	if err := w.Close(); err != nil {
		return &IOFailureError{Op: OpCopy, Path: src.String(), Other: dst.String(), Status: remote.Status(err), Err: err}
	}
	return nil
}
