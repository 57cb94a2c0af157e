// Package provider mints file systems from URIs. It understands two
// schemes: sftp:// for real servers and mem:// for in-process stores,
// and keeps every open file system in a registry keyed by its endpoint
// identity.
package provider

import (
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/ssh"

	"github.com/telebroad/sftpfs/config"
	"github.com/telebroad/sftpfs/keys"
	"github.com/telebroad/sftpfs/remote"
	"github.com/telebroad/sftpfs/sftpfs"
)

const (
	SchemeSFTP = "sftp"
	SchemeMem  = "mem"
)

// Registry tracks open file systems by endpoint identity. One endpoint
// can be open once at a time; closing it frees the identity again.
type Registry struct {
	mu     sync.Mutex
	open   map[string]*sftpfs.FileSystem
	stores map[string]*remote.MemStore

	logger     *slog.Logger
	registerer prometheus.Registerer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		open:   map[string]*sftpfs.FileSystem{},
		stores: map[string]*remote.MemStore{},
	}
}

// SetLogger sets the logger passed on to file systems the registry
// opens.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.logger = logger.With("module", "provider")
}

// Logger returns the registry logger, creating a default one if needed.
func (r *Registry) Logger() *slog.Logger {
	if r.logger == nil {
		r.SetLogger(slog.Default())
	}
	return r.logger
}

// SetRegisterer attaches a Prometheus registerer; pools of file systems
// opened afterwards report metrics to it.
func (r *Registry) SetRegisterer(reg prometheus.Registerer) {
	r.registerer = reg
}

// endpoint is the canonical identity of a parsed URI.
type endpoint struct {
	key      string // registry and identity key, scheme://user@host
	remoteID string
	addr     string // host:port, sftp only
	user     string
	home     string
	memName  string
}

func parseURI(cfg *config.Config) (*endpoint, error) {
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("provider: parse uri %q: %w", cfg.URI, err)
	}
	home := u.Path
	if cfg.Home != "" {
		home = cfg.Home
	}
	if home == "" {
		home = "/"
	}

	switch u.Scheme {
	case SchemeSFTP:
		user := cfg.User
		if user == "" && u.User != nil {
			user = u.User.Username()
		}
		if user == "" {
			return nil, fmt.Errorf("provider: uri %q has no user", cfg.URI)
		}
		host := u.Hostname()
		if host == "" {
			return nil, fmt.Errorf("provider: uri %q has no host", cfg.URI)
		}
		port := u.Port()
		if port == "" {
			port = "22"
		}
		id := user + "@" + host + ":" + port
		return &endpoint{
			key:      SchemeSFTP + "://" + id,
			remoteID: id,
			addr:     host + ":" + port,
			user:     user,
			home:     home,
		}, nil
	case SchemeMem:
		name := u.Host
		if name == "" {
			name = "default"
		}
		return &endpoint{
			key:      SchemeMem + "://" + name,
			remoteID: SchemeMem + ":" + name,
			home:     home,
			memName:  name,
		}, nil
	default:
		return nil, fmt.Errorf("provider: unsupported scheme %q", u.Scheme)
	}
}

// Open creates the file system for cfg.URI and registers it. Opening an
// endpoint that is already open fails; use Get for that.
func (r *Registry) Open(cfg *config.Config) (*sftpfs.FileSystem, error) {
	ep, err := parseURI(cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.open[ep.key]; exists {
		return nil, fmt.Errorf("provider: %s is already open", ep.key)
	}

	var factory remote.Factory
	switch {
	case ep.memName != "":
		store, ok := r.stores[ep.memName]
		if !ok {
			store = remote.NewMemStore()
			r.stores[ep.memName] = store
		}
		if err := store.MkdirAll(ep.home); err != nil {
			return nil, err
		}
		factory = func() (remote.Session, error) { return store.Session(), nil }
	default:
		dialer, err := r.dialer(cfg, ep)
		if err != nil {
			return nil, err
		}
		factory = dialer.Dial
	}

	pool := remote.NewPool(factory, cfg.PoolSize)
	pool.SetLogger(r.Logger())
	if r.registerer != nil {
		pool.SetMetrics(remote.NewPoolMetrics(r.registerer, ep.remoteID))
	}

	fsys, err := sftpfs.New(pool, ep.remoteID, ep.home)
	if err != nil {
		pool.Close()
		return nil, err
	}
	fsys.SetLogger(r.Logger())
	fsys.SetBaseURI(ep.key)
	r.open[ep.key] = fsys
	r.Logger().Info("file system opened", "endpoint", ep.key, "home", ep.home)
	return fsys, nil
}

// dialer assembles SSH transport and auth for an sftp endpoint.
func (r *Registry) dialer(cfg *config.Config, ep *endpoint) (*remote.Dialer, error) {
	var signers []ssh.Signer
	if cfg.KeyFile != "" {
		signer, err := keys.LoadPrivateKey(cfg.KeyFile, cfg.KeyPassphrase)
		if err != nil {
			return nil, err
		}
		signers = append(signers, signer)
	}
	password := cfg.Password
	if password == "" {
		if u, err := url.Parse(cfg.URI); err == nil && u.User != nil {
			password, _ = u.User.Password()
		}
	}
	auth := keys.AuthMethods(password, signers...)
	if len(auth) == 0 {
		return nil, fmt.Errorf("provider: no credentials for %s", ep.key)
	}

	var hostKeys ssh.HostKeyCallback
	if cfg.InsecureSkipHostKey {
		hostKeys = keys.InsecureHostKeyCallback()
	} else {
		var err error
		hostKeys, err = keys.HostKeyCallback(cfg.KnownHostsFile)
		if err != nil {
			return nil, err
		}
	}

	d := &remote.Dialer{
		Addr: ep.addr,
		Config: &ssh.ClientConfig{
			User:            ep.user,
			Auth:            auth,
			HostKeyCallback: hostKeys,
			Timeout:         cfg.Timeout(),
		},
		Timeout: cfg.Timeout(),
	}
	d.SetLogger(r.Logger())
	return d, nil
}

// Get returns the open file system for a URI.
func (r *Registry) Get(uri string) (*sftpfs.FileSystem, error) {
	ep, err := parseURI(&config.Config{URI: uri})
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fsys, ok := r.open[ep.key]
	if !ok {
		return nil, fmt.Errorf("provider: %s is not open", ep.key)
	}
	return fsys, nil
}

// Close shuts down the file system of a URI and frees its identity.
func (r *Registry) Close(uri string) error {
	ep, err := parseURI(&config.Config{URI: uri})
	if err != nil {
		return err
	}
	r.mu.Lock()
	fsys, ok := r.open[ep.key]
	delete(r.open, ep.key)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("provider: %s is not open", ep.key)
	}
	return fsys.Close()
}

// CloseAll shuts down every open file system.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	open := r.open
	r.open = map[string]*sftpfs.FileSystem{}
	r.mu.Unlock()

	var err error
	for _, fsys := range open {
		if cerr := fsys.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
