package remote

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type trackedSession struct {
	Session
	closed *atomic.Int32
}

func (s *trackedSession) Close() error {
	s.closed.Add(1)
	return s.Session.Close()
}

func newTrackedFactory(st *MemStore) (Factory, *atomic.Int32, *atomic.Int32) {
	var dials, closes atomic.Int32
	factory := func() (Session, error) {
		dials.Add(1)
		return &trackedSession{Session: st.Session(), closed: &closes}, nil
	}
	return factory, &dials, &closes
}

func TestPoolReusesIdleSessions(t *testing.T) {
	factory, dials, _ := newTrackedFactory(NewMemStore())
	p := NewPool(factory, 2)
	defer p.Close()

	ctx := context.Background()
	s1, err := p.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	p.Put(s1, nil)
	s2, err := p.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	p.Put(s2, nil)

	if got := dials.Load(); got != 1 {
		t.Errorf("dials = %d, want 1", got)
	}
}

func TestPoolBlocksAtCapacity(t *testing.T) {
	factory, _, _ := newTrackedFactory(NewMemStore())
	p := NewPool(factory, 1)
	defer p.Close()

	ctx := context.Background()
	s, err := p.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}

	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := p.Get(tctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Get at capacity = %v, want deadline exceeded", err)
	}

	done := make(chan struct{})
	go func() {
		s2, err := p.Get(ctx)
		if err == nil {
			p.Put(s2, nil)
		}
		close(done)
	}()
	p.Put(s, nil)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Get did not unblock after Put")
	}
}

func TestPoolDiscardsBrokenSessions(t *testing.T) {
	factory, dials, closes := newTrackedFactory(NewMemStore())
	p := NewPool(factory, 1)
	defer p.Close()

	ctx := context.Background()
	s, err := p.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	p.Put(s, &StatusError{Code: StatusConnectionLost, Msg: "boom"})
	if got := closes.Load(); got != 1 {
		t.Errorf("closes = %d, want 1", got)
	}

	s, err = p.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	p.Put(s, nil)
	if got := dials.Load(); got != 2 {
		t.Errorf("dials = %d, want 2", got)
	}
}

func TestPoolKeepsSessionsOnRemoteErrors(t *testing.T) {
	factory, dials, _ := newTrackedFactory(NewMemStore())
	p := NewPool(factory, 1)
	defer p.Close()

	ctx := context.Background()
	s, _ := p.Get(ctx)
	p.Put(s, &StatusError{Code: StatusNoSuchFile, Msg: "missing"})
	s, _ = p.Get(ctx)
	p.Put(s, nil)
	if got := dials.Load(); got != 1 {
		t.Errorf("dials = %d, want 1", got)
	}
}

func TestPoolClose(t *testing.T) {
	factory, _, closes := newTrackedFactory(NewMemStore())
	p := NewPool(factory, 2)

	ctx := context.Background()
	s, err := p.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	p.Put(s, nil)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if got := closes.Load(); got != 1 {
		t.Errorf("closes = %d, want 1", got)
	}
	if _, err := p.Get(ctx); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Get after Close = %v", err)
	}
}

func TestPoolFactoryError(t *testing.T) {
	boom := errors.New("dial failed")
	p := NewPool(func() (Session, error) { return nil, boom }, 1)
	defer p.Close()

	ctx := context.Background()
	if _, err := p.Get(ctx); !errors.Is(err, boom) {
		t.Fatalf("Get = %v", err)
	}
	// capacity token must come back after a failed dial
	if _, err := p.Get(ctx); !errors.Is(err, boom) {
		t.Fatalf("second Get = %v", err)
	}
}
