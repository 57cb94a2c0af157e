package fspath

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/", "/"},
		{"", ""},
		{"/foo", "/foo"},
		{"/foo/", "/foo"},
		{"//foo//bar", "/foo/bar"},
		{"/foo/./bar", "/foo/bar"},
		{"/foo/../bar", "/bar"},
		{"/foo/bar/..", "/foo"},
		{"/..", "/"},
		{"/../..", "/"},
		{"/../foo", "/foo"},
		{"foo/../bar", "bar"},
		{"../foo", "../foo"},
		{"../../foo", "../../foo"},
		{"foo/..", ""},
		{".", ""},
		{"./foo", "foo"},
	}
	for _, tt := range tests {
		got := Must(tt.in).Normalize().String()
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, in := range []string{"/foo/../bar", "../foo", "//a//b//..", ""} {
		once := Must(in).Normalize()
		twice := once.Normalize()
		if once != twice {
			t.Errorf("Normalize(%q) not idempotent: %q then %q", in, once, twice)
		}
	}
}

func TestParent(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/", "", false},
		{"", "", false},
		{"/foo", "/", true},
		{"/foo/bar", "/foo", true},
		{"/foo/bar/", "/foo", true},
		{"foo", "", false},
		{"foo/bar", "foo", true},
	}
	for _, tt := range tests {
		got, ok := Must(tt.in).Parent()
		if ok != tt.ok || got.String() != tt.want {
			t.Errorf("Parent(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestResolveAgainstHome(t *testing.T) {
	home := Must("/home")
	tests := []struct {
		in   string
		want string
	}{
		{"", "/home"},
		{"foo", "/home/foo"},
		{"foo/bar", "/home/foo/bar"},
		{"/abs", "/abs"},
		{"..", "/home/.."},
	}
	for _, tt := range tests {
		got := Must(tt.in).ResolveAgainstHome(home).String()
		if got != tt.want {
			t.Errorf("ResolveAgainstHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBaseAndSegments(t *testing.T) {
	if got := Must("/foo/bar").Base(); got != "bar" {
		t.Errorf("Base(/foo/bar) = %q", got)
	}
	if got := Must("/").Base(); got != "/" {
		t.Errorf("Base(/) = %q", got)
	}
	if got := Must("").Base(); got != "" {
		t.Errorf("Base() = %q", got)
	}
	segs := Must("//a/b//c/").Segments()
	if len(segs) != 3 || segs[0] != "a" || segs[1] != "b" || segs[2] != "c" {
		t.Errorf("Segments = %v", segs)
	}
	if segs := Must("/").Segments(); len(segs) != 0 {
		t.Errorf("Segments(/) = %v", segs)
	}
}

func TestNewRejectsNUL(t *testing.T) {
	_, err := New("/foo\x00bar")
	if err == nil {
		t.Fatal("expected error for NUL byte")
	}
	var ipe *InvalidPathError
	if !errors.As(err, &ipe) {
		t.Fatalf("expected InvalidPathError, got %T", err)
	}
	if ipe.Path != "/foo\x00bar" {
		t.Errorf("error path = %q", ipe.Path)
	}
}

func TestJoin(t *testing.T) {
	tests := []struct {
		base, name, want string
	}{
		{"/", "foo", "/foo"},
		{"/foo", "bar", "/foo/bar"},
		{"", "foo", "foo"},
		{"foo", "bar", "foo/bar"},
	}
	for _, tt := range tests {
		if got := Must(tt.base).Join(tt.name).String(); got != tt.want {
			t.Errorf("Join(%q, %q) = %q, want %q", tt.base, tt.name, got, tt.want)
		}
	}
}
