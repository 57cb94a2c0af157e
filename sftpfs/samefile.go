package sftpfs

import "context"

// IsSameFile reports whether two paths denote the same file. On the
// same file system two paths whose absolute normalized forms are equal
// are the same file without asking the server; this covers the home
// directory spelled as "" and as its absolute path. Otherwise both
// sides are resolved on their servers and compared, and they can only
// match when both file systems point at the same remote endpoint.
//
// Resolution failures propagate, left side first, so a missing path
// surfaces as NoSuchFileError naming it.
func (fsys *FileSystem) IsSameFile(ctx context.Context, a, b Path) (bool, error) {
	if a.fsys == b.fsys {
		na := a.p.ResolveAgainstHome(a.fsys.home).Normalize()
		nb := b.p.ResolveAgainstHome(b.fsys.home).Normalize()
		if na == nb {
			return true, nil
		}
	}
	ra, err := a.fsys.RealPath(ctx, a, true)
	if err != nil {
		return false, err
	}
	rb, err := b.fsys.RealPath(ctx, b, true)
	if err != nil {
		return false, err
	}
	return a.fsys.remoteID == b.fsys.remoteID && ra.p == rb.p, nil
}

// sameFileDisregardingMissing is the pre-copy identity probe: a
// resolution failure only means the check cannot apply, not that the
// operation must stop.
func (fsys *FileSystem) sameFileDisregardingMissing(ctx context.Context, a, b Path) bool {
	same, err := fsys.IsSameFile(ctx, a, b)
	return err == nil && same
}
