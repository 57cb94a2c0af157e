package sftpfs

import (
	"context"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/telebroad/sftpfs/remote"
)

// Attribute views. Every view resolves from
// the same stat answer; posix extends basic, owner is the one-field
// subset shared by both.
const (
	ViewBasic = "basic"
	ViewPosix = "posix"
	ViewOwner = "owner"
)

// attrGetter extracts one attribute value from a stat answer.
type attrGetter func(remote.Attrs) any

var basicGetters = map[string]attrGetter{
	"lastModifiedTime": func(a remote.Attrs) any { return a.ModTime },
	"lastAccessTime":   func(a remote.Attrs) any { return a.AccessTime },
	// SFTP v3 has no creation time; the closest value the protocol
	// offers is the modification time
	"creationTime":   func(a remote.Attrs) any { return a.ModTime },
	"size":           func(a remote.Attrs) any { return a.Size },
	"isRegularFile":  func(a remote.Attrs) any { return a.IsRegular() },
	"isDirectory":    func(a remote.Attrs) any { return a.IsDir() },
	"isSymbolicLink": func(a remote.Attrs) any { return a.IsSymlink() },
	"isOther": func(a remote.Attrs) any {
		return !a.IsRegular() && !a.IsDir() && !a.IsSymlink()
	},
	// no stable identity is available over the protocol
	"fileKey": func(a remote.Attrs) any { return nil },
}

var ownerGetters = map[string]attrGetter{
	"owner": func(a remote.Attrs) any { return strconv.FormatUint(uint64(a.UID), 10) },
}

var posixGetters = func() map[string]attrGetter {
	m := map[string]attrGetter{
		"group":       func(a remote.Attrs) any { return strconv.FormatUint(uint64(a.GID), 10) },
		"permissions": func(a remote.Attrs) any { return a.Perm() },
	}
	for name, g := range basicGetters {
		m[name] = g
	}
	for name, g := range ownerGetters {
		m[name] = g
	}
	return m
}()

// basicOrder fixes the iteration order of wildcard reads; maps would
// shuffle it per call.
var basicOrder = []string{
	"lastModifiedTime", "lastAccessTime", "creationTime", "size",
	"isRegularFile", "isDirectory", "isSymbolicLink", "isOther", "fileKey",
}

var posixOrder = append(append([]string{}, basicOrder...), "owner", "group", "permissions")

var ownerOrder = []string{"owner"}

type attrView struct {
	name    string
	getters map[string]attrGetter
	order   []string
	// settable maps attribute name to the setter dispatched by
	// SetAttribute
	settable map[string]bool
}

var attrViews = map[string]*attrView{
	ViewBasic: {
		name:     ViewBasic,
		getters:  basicGetters,
		order:    basicOrder,
		settable: map[string]bool{"lastModifiedTime": true},
	},
	ViewPosix: {
		name:    ViewPosix,
		getters: posixGetters,
		order:   posixOrder,
		settable: map[string]bool{
			"lastModifiedTime": true,
			"owner":            true,
			"group":            true,
			"permissions":      true,
		},
	},
	ViewOwner: {
		name:     ViewOwner,
		getters:  ownerGetters,
		order:    ownerOrder,
		settable: map[string]bool{"owner": true},
	},
}

// ReadAttributes returns the full attribute set of a path, the raw form
// the views are derived from.
func (fsys *FileSystem) ReadAttributes(ctx context.Context, p Path, followLinks bool) (remote.Attrs, error) {
	return fsys.Stat(ctx, p, followLinks)
}

// ReadAttributesByName reads attributes addressed by a view qualified
// string: "[view:]name[,name...]" where view defaults to basic and "*"
// selects every attribute of the view. Keys of the result are always
// view qualified. Unknown views and names fail before any server
// round trip.
func (fsys *FileSystem) ReadAttributesByName(ctx context.Context, p Path, spec string, followLinks bool) (map[string]any, error) {
	view, names, err := parseAttrSpec(spec)
	if err != nil {
		return nil, err
	}
	attrs, err := fsys.Stat(ctx, p, followLinks)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(names))
	for _, name := range names {
		if name == "*" {
			for _, n := range view.order {
				out[view.name+":"+n] = view.getters[n](attrs)
			}
			continue
		}
		out[view.name+":"+name] = view.getters[name](attrs)
	}
	return out, nil
}

// parseAttrSpec splits and validates an attribute address. Every
// non-wildcard name must belong to the view.
func parseAttrSpec(spec string) (*attrView, []string, error) {
	viewName := ViewBasic
	rest := spec
	if i := strings.IndexByte(spec, ':'); i >= 0 {
		viewName = spec[:i]
		rest = spec[i+1:]
	}
	view, ok := attrViews[viewName]
	if !ok {
		return nil, nil, &UnsupportedViewError{View: viewName}
	}
	if rest == "" {
		return nil, nil, &UnsupportedAttributeError{Name: spec}
	}
	names := strings.Split(rest, ",")
	for _, name := range names {
		if name == "*" {
			continue
		}
		if _, ok := view.getters[name]; !ok {
			return nil, nil, &UnsupportedAttributeError{Name: viewName + ":" + name}
		}
	}
	return view, names, nil
}

// SetAttribute writes one attribute addressed as "[view:]name". Only
// lastModifiedTime, owner, group and permissions are writable, matching
// what SSH_FXP_SETSTAT can express.
func (fsys *FileSystem) SetAttribute(ctx context.Context, p Path, name string, value any) error {
	viewName := ViewBasic
	attrName := name
	if i := strings.IndexByte(name, ':'); i >= 0 {
		viewName = name[:i]
		attrName = name[i+1:]
	}
	view, ok := attrViews[viewName]
	if !ok {
		return &UnsupportedViewError{View: viewName}
	}
	if _, known := view.getters[attrName]; !known {
		return &UnsupportedAttributeError{Name: viewName + ":" + attrName}
	}
	if !view.settable[attrName] {
		return &UnsupportedAttributeError{Name: viewName + ":" + attrName}
	}

	switch attrName {
	case "lastModifiedTime":
		t, ok := value.(time.Time)
		if !ok {
			return &AttributeValueError{Name: name, Want: "time.Time"}
		}
		return fsys.SetLastModifiedTime(ctx, p, t)
	case "owner":
		s, ok := value.(string)
		if !ok {
			return &AttributeValueError{Name: name, Want: "string"}
		}
		return fsys.SetOwner(ctx, p, s)
	case "group":
		s, ok := value.(string)
		if !ok {
			return &AttributeValueError{Name: name, Want: "string"}
		}
		return fsys.SetGroup(ctx, p, s)
	case "permissions":
		m, ok := value.(fs.FileMode)
		if !ok {
			return &AttributeValueError{Name: name, Want: "fs.FileMode"}
		}
		return fsys.SetPermissions(ctx, p, m)
	}
	return &UnsupportedAttributeError{Name: name}
}

// SetLastModifiedTime sets the modification time of a path.
func (fsys *FileSystem) SetLastModifiedTime(ctx context.Context, p Path, t time.Time) error {
	return fsys.setStat(ctx, p, remote.SetAttrs{ModTime: &t})
}

// SetOwner sets the owning user. The server speaks numeric IDs only, so
// owner must be a decimal uid.
func (fsys *FileSystem) SetOwner(ctx context.Context, p Path, owner string) error {
	uid, err := parseID(owner)
	if err != nil {
		return fmt.Errorf("sftpfs: invalid owner %q: %w", owner, err)
	}
	return fsys.setStat(ctx, p, remote.SetAttrs{UID: &uid})
}

// SetGroup sets the owning group. group must be a decimal gid.
func (fsys *FileSystem) SetGroup(ctx context.Context, p Path, group string) error {
	gid, err := parseID(group)
	if err != nil {
		return fmt.Errorf("sftpfs: invalid group %q: %w", group, err)
	}
	return fsys.setStat(ctx, p, remote.SetAttrs{GID: &gid})
}

// SetPermissions sets the permission bits of a path.
func (fsys *FileSystem) SetPermissions(ctx context.Context, p Path, perm fs.FileMode) error {
	perm &= fs.ModePerm
	return fsys.setStat(ctx, p, remote.SetAttrs{Perm: &perm})
}

func parseID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(id), nil
}

func (fsys *FileSystem) setStat(ctx context.Context, p Path, attrs remote.SetAttrs) error {
	return fsys.withSession(ctx, func(s remote.Session) error {
		if err := s.SetStat(p.abs(), attrs); err != nil {
			return fsys.errs.New(OpSetStat, err, p.String(), "", false)
		}
		return nil
	})
}
