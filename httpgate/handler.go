// http gateway exposing a remote file system over plain HTTP verbs

package httpgate

import (
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/telebroad/sftpfs/sftpfs"
	"github.com/telebroad/sftpfs/tools"
	"github.com/telebroad/sftpfs/users"
)

// Users is the interface to authenticate an incoming request
type Users interface {
	// VerifyUser returns the authenticated user, if the credentials are
	// missing or wrong it returns an error
	VerifyUser(request *http.Request) (*users.User, error)
}

// FileServer is an http handler serving a remote file system
type FileServer struct {

	// the virtual directory is stripped from the URL before the path is
	// looked up on the remote side
	virtualDir string
	fsys       *sftpfs.FileSystem
	mux        *http.ServeMux
	logger     *slog.Logger
	users      Users
}

func (s *FileServer) SetLogger(l *slog.Logger) {
	s.logger = l
}
func (s *FileServer) Logger() *slog.Logger {
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s.logger.With("module", "http-gateway")
}

// ServeHTTP serves the request implementing the http.Handler interface
func (s *FileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var protocol string
	if r.TLS == nil {
		protocol = "http://"
	} else {
		protocol = "https://"
	}

	if s.users != nil {
		_, err := s.users.VerifyUser(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized! "+err.Error(), http.StatusUnauthorized)
			return
		}
	}
	s.Logger().Debug("ServeHTTP", "method", r.Method, "url", protocol+r.Host+r.URL.String(), "remote", r.RemoteAddr, "user-agent", r.UserAgent())

	lw := tools.NewHttpResponseWriter(w, s.Logger())

	switch r.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		s.mux.ServeHTTP(lw, r)
	case http.MethodOptions:
		w.Header().Set("Allow", "GET, POST, PUT, PATCH, DELETE")
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// remotePath maps the request URL to a path under the file system home
func (s *FileServer) remotePath(urlPath string) (sftpfs.Path, error) {
	relativePath := strings.TrimPrefix(urlPath, strings.TrimSuffix(s.virtualDir, "/"))
	return s.fsys.Path(strings.TrimPrefix(relativePath, "/"))
}

// httpError translates a file system error into an HTTP status
func (s *FileServer) httpError(w http.ResponseWriter, err error) {
	var (
		notFound *sftpfs.NoSuchFileError
		perm     *sftpfs.PermissionError
		exists   *sftpfs.FileAlreadyExistsError
		notEmpty *sftpfs.DirectoryNotEmptyError
		notDir   *sftpfs.NotDirectoryError
	)
	switch {
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &perm):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.As(err, &exists), errors.As(err, &notEmpty):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &notDir):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.Logger().Error("remote operation failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

var (
	//go:embed directory.gohtml
	directoryTemplate string
)

func (s *FileServer) generateCustomDirectoryHTML(w http.ResponseWriter, r *http.Request, p sftpfs.Path, displayDir string) {
	type FileInfo struct {
		Name  string
		URL   string
		IsDir bool
	}

	type DirectoryData struct {
		Path  string
		Files []FileInfo
	}

	entries, err := s.fsys.ReadDir(r.Context(), p)
	if err != nil {
		s.Logger().Error("Unable to read directory", "error", err)
		s.httpError(w, err)
		return
	}

	var fileInfos []FileInfo
	if displayDir != "/" && displayDir != s.virtualDir {
		fileInfos = append(fileInfos, FileInfo{Name: "..", URL: "../", IsDir: true})
	}
	for _, entry := range entries {
		urlPath := strings.Replace(entry.Name(), " ", "%20", -1)
		if entry.IsDir() {
			urlPath = urlPath + "/"
		}
		fileInfos = append(fileInfos, FileInfo{
			Name:  entry.Name(),
			URL:   urlPath,
			IsDir: entry.IsDir(),
		})
	}

	tmpl, err := template.New("directory.gohtml").Parse(directoryTemplate)
	if err != nil {
		http.Error(w, "Error loading template", http.StatusInternalServerError)
		return
	}

	data := DirectoryData{
		Path:  displayDir,
		Files: fileInfos,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	tmpl.Execute(w, data)
}

// Get streams a file, or renders a listing for a directory
func (s *FileServer) Get(w http.ResponseWriter, r *http.Request) {
	p, err := s.remotePath(r.URL.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	attrs, err := s.fsys.Stat(r.Context(), p, true)
	if err != nil {
		s.httpError(w, err)
		return
	}
	if attrs.IsDir() {
		if !strings.HasSuffix(r.URL.Path, "/") {
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		s.generateCustomDirectoryHTML(w, r, p, r.URL.Path)
		return
	}

	f, err := s.fsys.OpenRead(r.Context(), p)
	if err != nil {
		s.httpError(w, err)
		return
	}
	defer f.Close()

	if ct := mime.TypeByExtension(path.Ext(p.String())); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Content-Length", fmt.Sprintf("%d", attrs.Size))
	io.Copy(w, f)
}

// Post uploads the body under a generated file name in the request directory
func (s *FileServer) Post(w http.ResponseWriter, r *http.Request) {
	randFileName := time.Now().Format("2006-01-02_15-04-05.00000000_MST")
	filePathExt, err := mime.ExtensionsByType(r.Header.Get("Content-Type"))
	if err != nil || len(filePathExt) == 0 {
		http.Error(w, "Error reading Content-Type", http.StatusBadRequest)
		return
	}
	randFileName = randFileName + filePathExt[0]

	p, err := s.remotePath(path.Join(r.URL.Path, randFileName))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.upload(w, r, p, http.StatusCreated,
		fmt.Sprintf("File %s created\nto upload a file with a file name use PUT method", p),
		sftpfs.OpenCreateNew)
}

// Put uploads the body to the request path, replacing any existing file
func (s *FileServer) Put(w http.ResponseWriter, r *http.Request) {
	p, err := s.remotePath(r.URL.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.upload(w, r, p, http.StatusCreated, fmt.Sprintf("File %s updated", p),
		sftpfs.OpenCreate, sftpfs.OpenTruncate)
}

// Patch appends the body to an existing file
func (s *FileServer) Patch(w http.ResponseWriter, r *http.Request) {
	p, err := s.remotePath(r.URL.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.upload(w, r, p, http.StatusOK, fmt.Sprintf("File %s updated", p), sftpfs.OpenAppend)
}

func (s *FileServer) upload(w http.ResponseWriter, r *http.Request, p sftpfs.Path, status int, message string, opts ...sftpfs.OpenOption) {
	f, err := s.fsys.OpenWrite(r.Context(), p, opts...)
	if err != nil {
		s.httpError(w, err)
		return
	}
	_, err = io.Copy(f, tools.NewLogReader(r.Body, s.Logger()))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		s.httpError(w, err)
		return
	}
	w.WriteHeader(status)
	fmt.Fprint(w, message)
}

// Delete removes the file or empty directory at the request path
func (s *FileServer) Delete(w http.ResponseWriter, r *http.Request) {
	p, err := s.remotePath(r.URL.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.fsys.Delete(r.Context(), p); err != nil {
		s.httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "File %s deleted", p)
}

func (s *FileServer) Option(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "GET, POST, PUT, PATCH, DELETE")
	w.WriteHeader(http.StatusOK)
}

// NewFileServerHandler creates an http handler serving a remote file system
// The pattern is the virtual directory to serve, it is stripped from the URL
// in the handler
func NewFileServerHandler(pattern string, fsys *sftpfs.FileSystem, u Users) *FileServer {

	s := &FileServer{
		virtualDir: strings.TrimSuffix(path.Clean(pattern), "/") + "/",
		fsys:       fsys,
		mux:        http.NewServeMux(),
		users:      u,
	}

	s.mux.Handle("GET /{pathname...}", http.HandlerFunc(s.Get))
	s.mux.Handle("POST /{pathname...}", http.HandlerFunc(s.Post))
	s.mux.Handle("PUT /{pathname...}", http.HandlerFunc(s.Put))
	s.mux.Handle("PATCH /{pathname...}", http.HandlerFunc(s.Patch))
	s.mux.Handle("DELETE /{pathname...}", http.HandlerFunc(s.Delete))
	s.mux.Handle("OPTIONS /{pathname...}", http.HandlerFunc(s.Option))

	return s
}
