package httpgate

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telebroad/sftpfs/remote"
	"github.com/telebroad/sftpfs/sftpfs"
	"github.com/telebroad/sftpfs/users"
)

func newTestServer(t *testing.T, u Users) (*FileServer, *remote.MemStore) {
	t.Helper()
	st := remote.NewMemStore()
	require.NoError(t, st.MkdirAll("/home"))
	pool := remote.NewPool(func() (remote.Session, error) {
		return st.Session(), nil
	}, 2)
	t.Cleanup(func() { pool.Close() })
	fsys, err := sftpfs.New(pool, "mem:test", "/home")
	require.NoError(t, err)
	return NewFileServerHandler("/files", fsys, u), st
}

func TestGetFile(t *testing.T) {
	srv, st := newTestServer(t, nil)
	require.NoError(t, st.WriteFile("/home/hello.txt", []byte("hello world")))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/files/hello.txt", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello world", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, "11", rec.Header().Get("Content-Length"))
}

func TestGetMissingFile(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/files/nope.txt", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDirectoryListing(t *testing.T) {
	srv, st := newTestServer(t, nil)
	require.NoError(t, st.MkdirAll("/home/docs"))
	require.NoError(t, st.WriteFile("/home/docs/a.txt", []byte("a")))
	require.NoError(t, st.MkdirAll("/home/docs/sub"))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/files/docs/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "a.txt")
	assert.Contains(t, rec.Body.String(), "sub/")
	assert.Contains(t, rec.Body.String(), `href="../"`)
}

func TestGetDirectoryRedirectsWithoutSlash(t *testing.T) {
	srv, st := newTestServer(t, nil)
	require.NoError(t, st.MkdirAll("/home/docs"))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/files/docs", nil))

	require.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/files/docs/", rec.Header().Get("Location"))
}

func TestPutCreatesFile(t *testing.T) {
	srv, st := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("PUT", "/files/new.txt", strings.NewReader("payload")))

	require.Equal(t, http.StatusCreated, rec.Code)
	data, err := st.ReadFile("/home/new.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestPutReplacesFile(t *testing.T) {
	srv, st := newTestServer(t, nil)
	require.NoError(t, st.WriteFile("/home/new.txt", []byte("old content")))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("PUT", "/files/new.txt", strings.NewReader("new")))

	require.Equal(t, http.StatusCreated, rec.Code)
	data, err := st.ReadFile("/home/new.txt")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestPatchAppends(t *testing.T) {
	srv, st := newTestServer(t, nil)
	require.NoError(t, st.WriteFile("/home/log.txt", []byte("one\n")))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("PATCH", "/files/log.txt", strings.NewReader("two\n")))

	require.Equal(t, http.StatusOK, rec.Code)
	data, err := st.ReadFile("/home/log.txt")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestPostGeneratesName(t *testing.T) {
	srv, st := newTestServer(t, nil)
	require.NoError(t, st.MkdirAll("/home/uploads"))

	req := httptest.NewRequest("POST", "/files/uploads", strings.NewReader("blob"))
	req.Header.Set("Content-Type", "text/html")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	n, err := st.ChildCount("/home/uploads")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPostWithoutContentType(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("POST", "/files/uploads", strings.NewReader("blob")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDelete(t *testing.T) {
	srv, st := newTestServer(t, nil)
	require.NoError(t, st.WriteFile("/home/gone.txt", []byte("x")))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("DELETE", "/files/gone.txt", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, st.Exists("/home/gone.txt"))
}

func TestDeleteNonEmptyDirectory(t *testing.T) {
	srv, st := newTestServer(t, nil)
	require.NoError(t, st.MkdirAll("/home/full"))
	require.NoError(t, st.WriteFile("/home/full/a", []byte("a")))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("DELETE", "/files/full", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.True(t, st.Exists("/home/full/a"))
}

func TestOptions(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/files/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GET, POST, PUT, PATCH, DELETE", rec.Header().Get("Allow"))
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("TRACE", "/files/", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	u := users.NewLocalUsers()
	u.Add("alice", "secret", "/")
	srv, st := newTestServer(t, u)
	require.NoError(t, st.WriteFile("/home/hello.txt", []byte("hi")))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/files/hello.txt", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest("GET", "/files/hello.txt", nil)
	req.SetBasicAuth("alice", "secret")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hi", rec.Body.String())
}
