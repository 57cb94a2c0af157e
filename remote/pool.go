package remote

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrPoolClosed is returned by Get after the pool has been closed.
var ErrPoolClosed = errors.New("remote: pool is closed")

// Factory opens a new session. A Pool calls it when a caller needs a
// session and none is idle.
type Factory func() (Session, error)

// Pool is a bounded set of sessions to one server. Get hands out an idle
// session or dials a new one, Put returns it. At most size sessions are
// live at any moment; further Get calls block until one is returned.
type Pool struct {
	factory Factory
	tokens  chan struct{}

	mu     sync.Mutex
	idle   []Session
	closed bool

	logger  *slog.Logger
	metrics *PoolMetrics
}

// NewPool creates a pool of at most size sessions. size must be at
// least 1.
func NewPool(factory Factory, size int) *Pool {
	if size < 1 {
		size = 1
	}
	tokens := make(chan struct{}, size)
	for i := 0; i < size; i++ {
		tokens <- struct{}{}
	}
	return &Pool{factory: factory, tokens: tokens}
}

// SetLogger sets the pool logger.
func (p *Pool) SetLogger(logger *slog.Logger) {
	p.logger = logger.With("module", "sftp-pool")
}

// Logger returns the pool logger, creating a default one if needed.
func (p *Pool) Logger() *slog.Logger {
	if p.logger == nil {
		p.SetLogger(slog.Default())
	}
	return p.logger
}

// SetMetrics attaches pool metrics. Passing nil disables them.
func (p *Pool) SetMetrics(m *PoolMetrics) { p.metrics = m }

// Get returns a session for exclusive use. It blocks while all sessions
// are handed out, until ctx is done or the pool is closed.
func (p *Pool) Get(ctx context.Context) (Session, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case _, ok := <-p.tokens:
		if !ok {
			return nil, ErrPoolClosed
		}
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	var s Session
	if n := len(p.idle); n > 0 {
		s = p.idle[n-1]
		p.idle = p.idle[:n-1]
	}
	p.mu.Unlock()

	if s == nil {
		var err error
		s, err = p.factory()
		if err != nil {
			p.release()
			p.metrics.dialError()
			return nil, err
		}
		p.metrics.dialed()
	}
	p.metrics.acquired()
	return s, nil
}

// Put returns a session obtained from Get. err is the outcome of the
// work done with the session; a session whose connection is gone is
// closed instead of going back on the idle list.
func (p *Pool) Put(s Session, err error) {
	if s == nil {
		return
	}
	defer p.metrics.released()
	if broken(err) {
		p.Logger().Warn("discarding broken session", "err", err)
		s.Close()
		p.release()
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		s.Close()
		return
	}
	p.idle = append(p.idle, s)
	p.mu.Unlock()
	p.release()
}

// release returns a capacity token unless the pool is closed.
func (p *Pool) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.tokens <- struct{}{}
	}
}

func broken(err error) bool {
	switch Status(err) {
	case StatusNoConnection, StatusConnectionLost:
		return true
	}
	return false
}

// Close closes all idle sessions and fails pending and future Get
// calls. Sessions currently handed out are closed when returned.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	close(p.tokens)
	p.mu.Unlock()

	var err error
	for _, s := range idle {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
