// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultStartupTimeout bounds how long Start waits for readiness.
	DefaultStartupTimeout = 10 * time.Second
	// DefaultShutdownTimeout bounds how long Stop waits for connections
	// to drain.
	DefaultShutdownTimeout = 10 * time.Second
)

// Option configures a Base.
type Option func(*Base)

// WithLogger sets the logger lifecycle events are written to.
func WithLogger(l *log.Logger) Option {
	return func(b *Base) { b.logger = l }
}

// WithErrorChannel sets the buffer size of the channel returned by Err.
// Default buffer size is 1.
func WithErrorChannel(size int) Option {
	return func(b *Base) { b.errCh = make(chan error, size) }
}

// WithStartupTimeout overrides DefaultStartupTimeout.
func WithStartupTimeout(d time.Duration) Option {
	return func(b *Base) { b.startupTimeout = d }
}

// WithShutdownTimeout overrides DefaultShutdownTimeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(b *Base) { b.shutdownTimeout = d }
}
