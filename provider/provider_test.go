package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telebroad/sftpfs/config"
	"github.com/telebroad/sftpfs/sftpfs"
)

func TestOpenMemFileSystem(t *testing.T) {
	r := NewRegistry()
	cfg := config.Default()
	cfg.URI = "mem://scratch/home/alice"

	fsys, err := r.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { r.CloseAll() })

	assert.Equal(t, "mem:scratch", fsys.RemoteID())
	assert.Equal(t, "/home/alice", fsys.Home())

	ctx := context.Background()
	require.NoError(t, fsys.CreateDirectory(ctx, fsys.MustPath("data")))
	entries, err := fsys.ReadDir(ctx, fsys.MustPath(""))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "data", entries[0].Name())
}

func TestOpenTwiceFails(t *testing.T) {
	r := NewRegistry()
	cfg := config.Default()
	cfg.URI = "mem://twice/home"

	_, err := r.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { r.CloseAll() })

	_, err = r.Open(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already open")
}

func TestGetAndClose(t *testing.T) {
	r := NewRegistry()
	cfg := config.Default()
	cfg.URI = "mem://gc/home"

	opened, err := r.Open(cfg)
	require.NoError(t, err)

	got, err := r.Get("mem://gc/anything")
	require.NoError(t, err)
	assert.Same(t, opened, got)

	require.NoError(t, r.Close("mem://gc"))
	_, err = r.Get("mem://gc")
	require.Error(t, err)

	// identity is free again
	_, err = r.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { r.CloseAll() })
}

func TestMemStoreSurvivesReopen(t *testing.T) {
	r := NewRegistry()
	t.Cleanup(func() { r.CloseAll() })
	ctx := context.Background()

	cfg := config.Default()
	cfg.URI = "mem://shared/home"
	a, err := r.Open(cfg)
	require.NoError(t, err)

	w, err := a.OpenWrite(ctx, a.MustPath("note.txt"), sftpfs.OpenCreate)
	require.NoError(t, err)
	_, err = w.Write([]byte("kept"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, r.Close(cfg.URI))

	// the store itself outlives the file system handle
	b, err := r.Open(cfg)
	require.NoError(t, err)
	ok, err := b.Exists(ctx, b.MustPath("note.txt"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHomeOverride(t *testing.T) {
	r := NewRegistry()
	t.Cleanup(func() { r.CloseAll() })

	cfg := config.Default()
	cfg.URI = "mem://override/from/uri"
	cfg.Home = "/from/config"

	fsys, err := r.Open(cfg)
	require.NoError(t, err)
	assert.Equal(t, "/from/config", fsys.Home())
}

func TestUnsupportedScheme(t *testing.T) {
	r := NewRegistry()
	cfg := config.Default()
	cfg.URI = "ftp://host/path"
	_, err := r.Open(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scheme")
}

func TestSFTPRequiresCredentials(t *testing.T) {
	r := NewRegistry()
	cfg := config.Default()
	cfg.URI = "sftp://bob@files.example.com/home/bob"
	_, err := r.Open(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials")
}
