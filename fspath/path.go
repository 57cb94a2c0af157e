// Package fspath implements the lexical, POSIX-style path model used by
// the virtual file system. A Path is an immutable value; all operations
// here are purely lexical and never touch a remote server.
package fspath

import (
	"strconv"
	"strings"
)

// Path is an immutable slash-separated path. The zero value is the empty
// path, which denotes the home directory of whatever file system it is
// resolved against.
type Path struct {
	raw string
}

// Root is the absolute root path "/".
var Root = Path{raw: "/"}

// InvalidPathError reports a path string that cannot be represented.
type InvalidPathError struct {
	Path   string
	Reason string
}

func (e *InvalidPathError) Error() string {
	return "fspath: invalid path " + strconv.Quote(e.Path) + ": " + e.Reason
}

// New validates raw and returns it as a Path. The only rejected input is
// a string containing a NUL byte, which no remote server can represent.
func New(raw string) (Path, error) {
	if strings.IndexByte(raw, 0) >= 0 {
		return Path{}, &InvalidPathError{Path: raw, Reason: "NUL byte in path"}
	}
	return Path{raw: raw}, nil
}

// Must is like New but panics on invalid input. Intended for constants
// and tests.
func Must(raw string) Path {
	p, err := New(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the original path string, byte for byte.
func (p Path) String() string { return p.raw }

// IsAbsolute reports whether the path starts at the root.
func (p Path) IsAbsolute() bool { return strings.HasPrefix(p.raw, "/") }

// IsEmpty reports whether the path is the empty string, the spelling of
// the home directory.
func (p Path) IsEmpty() bool { return p.raw == "" }

// IsRoot reports whether the normalized form of the path is the root.
func (p Path) IsRoot() bool { return p.Normalize().raw == "/" }

// Normalize collapses redundant separators and "." segments and applies
// ".." segments lexically. On an absolute path leading ".." segments are
// dropped, because the parent of the root is the root. On a relative
// path leading ".." segments are kept, since they can only be resolved
// once the path is anchored somewhere. Normalize is idempotent.
func (p Path) Normalize() Path {
	out := make([]string, 0, 8)
	for _, seg := range strings.Split(p.raw, "/") {
		switch seg {
		case "", ".":
		case "..":
			if n := len(out); n > 0 && out[n-1] != ".." {
				out = out[:n-1]
			} else if !p.IsAbsolute() {
				out = append(out, "..")
			}
		default:
			out = append(out, seg)
		}
	}
	joined := strings.Join(out, "/")
	if p.IsAbsolute() {
		return Path{raw: "/" + joined}
	}
	return Path{raw: joined}
}

// Segments returns the non-empty segments of the path in order. The root
// and the empty path both have no segments.
func (p Path) Segments() []string {
	var segs []string
	for _, seg := range strings.Split(p.raw, "/") {
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	return segs
}

// Base returns the final segment of the path. The base of the root is
// "/" and the base of the empty path is "".
func (p Path) Base() string {
	segs := p.Segments()
	if len(segs) == 0 {
		if p.IsAbsolute() {
			return "/"
		}
		return ""
	}
	return segs[len(segs)-1]
}

// Parent returns the lexical parent of the path. The root, the empty
// path and a single relative segment have no parent, reported by the
// second return value.
func (p Path) Parent() (Path, bool) {
	raw := p.raw
	for len(raw) > 1 && strings.HasSuffix(raw, "/") {
		raw = raw[:len(raw)-1]
	}
	i := strings.LastIndexByte(raw, '/')
	switch {
	case raw == "" || raw == "/":
		return Path{}, false
	case i < 0:
		return Path{}, false
	case i == 0:
		return Root, true
	default:
		return Path{raw: raw[:i]}, true
	}
}

// Join appends a single name to the path with a separator.
func (p Path) Join(name string) Path {
	switch {
	case p.raw == "":
		return Path{raw: name}
	case strings.HasSuffix(p.raw, "/"):
		return Path{raw: p.raw + name}
	default:
		return Path{raw: p.raw + "/" + name}
	}
}

// ResolveAgainstHome anchors the path at home when it is relative. An
// absolute path is returned unchanged, the empty path resolves to home
// itself. home must be absolute.
func (p Path) ResolveAgainstHome(home Path) Path {
	switch {
	case p.IsAbsolute():
		return p
	case p.raw == "":
		return home
	default:
		return home.Join(p.raw)
	}
}
