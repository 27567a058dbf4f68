// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

type (
	// ServeFunc serves connections from l until the server is shut down.
	// It returns nil, or an error matching net.ErrClosed, on a graceful
	// stop; servers with their own "closed" sentinel map it to nil.
	ServeFunc func(l net.Listener) error

	// ShutdownFunc stops accepting connections and drains the open ones.
	ShutdownFunc func(ctx context.Context) error

	// Base runs one server. An instance is single-use: once stopped or
	// failed, create a new one.
	Base struct {
		name            string
		logger          *log.Logger
		startupTimeout  time.Duration
		shutdownTimeout time.Duration

		// state is read lock-free; stateMu guards lastErr and errClosed.
		state     atomic.Int32
		stateMu   sync.Mutex
		lastErr   error
		errClosed bool

		ctx       context.Context
		cancel    context.CancelFunc
		wg        sync.WaitGroup
		startedCh chan struct{}
		errCh     chan error

		srvMu    sync.Mutex
		listener net.Listener
		addr     string
		shutdown ShutdownFunc
	}
)

// NewBase creates a Base for a server called name.
func NewBase(name string, opts ...Option) *Base {
	b := &Base{
		name:            name,
		startupTimeout:  DefaultStartupTimeout,
		shutdownTimeout: DefaultShutdownTimeout,
		startedCh:       make(chan struct{}),
		errCh:           make(chan error, 1),
	}
	b.state.Store(int32(StateCreated))
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.Default()
	}
	b.logger = b.logger.WithPrefix(name)
	return b
}

// Start listens on addr and runs serve in a tracked goroutine. It returns
// once the server is running, or with the error that prevented it. After a
// nil return, watch Err for runtime failures.
func (b *Base) Start(ctx context.Context, addr string, serve ServeFunc, shutdown ShutdownFunc) error {
	select {
	case <-ctx.Done():
		b.fail(fmt.Errorf("context cancelled before start: %w", ctx.Err()))
		return b.LastError()
	default:
	}

	if !b.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start %s server in state %s", b.name, b.State())
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())

	startupCtx, startupCancel := context.WithTimeout(ctx, b.startupTimeout)
	defer startupCancel()

	var lc net.ListenConfig
	l, err := lc.Listen(startupCtx, "tcp", addr)
	if err != nil {
		b.fail(fmt.Errorf("failed to listen on %s: %w", addr, err))
		return b.LastError()
	}

	b.srvMu.Lock()
	b.listener = l
	b.addr = l.Addr().String()
	b.shutdown = shutdown
	b.srvMu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if b.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
			close(b.startedCh)
		}
		if err := serve(l); err != nil && !errors.Is(err, net.ErrClosed) {
			b.SendError(fmt.Errorf("%s serve error: %w", b.name, err))
		}
	}()

	select {
	case <-b.startedCh:
		b.logger.Info("server started", "address", b.Addr())
		return nil
	case err := <-b.errCh:
		b.fail(err)
		return err
	case <-startupCtx.Done():
		b.fail(fmt.Errorf("startup timeout: %w", startupCtx.Err()))
		return b.LastError()
	}
}

// Stop shuts the server down gracefully. Calling it again, or on a server
// that never started, is a no-op.
func (b *Base) Stop() error {
	if !b.toStopping() {
		b.wg.Wait()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.shutdownTimeout)
	defer cancel()

	b.srvMu.Lock()
	shutdown, l := b.shutdown, b.listener
	b.srvMu.Unlock()

	var err error
	if shutdown != nil {
		if err = shutdown(ctx); err != nil && !errors.Is(err, net.ErrClosed) {
			b.logger.Error("shutdown error", "err", err)
		} else {
			err = nil
		}
	}
	if l != nil {
		_ = l.Close() //nolint:errcheck // may already be closed by shutdown
	}

	b.wg.Wait()
	b.state.Store(int32(StateStopped))
	b.stateMu.Lock()
	b.errClosed = true
	close(b.errCh)
	b.stateMu.Unlock()
	b.logger.Info("server stopped")
	return err
}

// toStopping moves a starting or running server to Stopping. It reports
// whether the caller owns the shutdown.
func (b *Base) toStopping() bool {
	for {
		cur := b.State()
		switch cur {
		case StateCreated:
			if b.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return false
			}
		case StateStarting, StateRunning:
			if b.state.CompareAndSwap(int32(cur), int32(StateStopping)) {
				if b.cancel != nil {
					b.cancel()
				}
				return true
			}
		default:
			return false
		}
	}
}

func (b *Base) fail(err error) {
	b.stateMu.Lock()
	b.lastErr = err
	b.stateMu.Unlock()
	b.state.Store(int32(StateFailed))
	if b.cancel != nil {
		b.cancel()
	}
	b.SendError(err)
}

// Go runs fn in a goroutine tracked by Stop. fn must return once ctx is
// cancelled.
func (b *Base) Go(fn func(ctx context.Context)) {
	ctx := b.Context()
	if ctx == nil {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn(ctx)
	}()
}

// SendError reports a runtime error on Err without blocking. It is dropped
// when the channel is full.
func (b *Base) SendError(err error) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	if b.errClosed {
		return
	}
	select {
	case b.errCh <- err:
	default:
	}
}

// State returns the current state.
func (b *Base) State() State { return State(b.state.Load()) }

// IsRunning reports whether the server accepts connections.
func (b *Base) IsRunning() bool { return b.State() == StateRunning }

// Err returns the channel runtime errors are reported on. It is closed
// by Stop.
func (b *Base) Err() <-chan error { return b.errCh }

// LastError returns the error that failed the server, or nil.
func (b *Base) LastError() error {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.lastErr
}

// Context is cancelled when the server stops. It is nil before Start.
func (b *Base) Context() context.Context { return b.ctx }

// Addr returns the bound address, or "" before Start.
func (b *Base) Addr() string {
	b.srvMu.Lock()
	defer b.srvMu.Unlock()
	return b.addr
}

// Name returns the server name.
func (b *Base) Name() string { return b.name }

// Logger returns the server's logger.
func (b *Base) Logger() *log.Logger { return b.logger }

// WaitForReady blocks until the server runs or ctx is done.
func (b *Base) WaitForReady(ctx context.Context) error {
	select {
	case <-b.startedCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s server: %w", b.name, ctx.Err())
	}
}
