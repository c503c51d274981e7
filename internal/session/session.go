// Package session holds the runtime context of a single execution run: the
// configuration, the tool registry, and the audit log. A Session is created
// once per run and passed explicitly to whatever needs it.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vk/burstmission/internal/audit"
	"github.com/vk/burstmission/internal/config"
	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/registry"
)

// Session bundles the shared services of one run. Configuration is
// read-mostly and guarded by its own lock; the registry and the audit log
// carry their own synchronization.
type Session struct {
	mu  sync.RWMutex
	cfg config.Config

	tools *registry.Registry
	audit *audit.Log

	closersMu sync.Mutex
	closers   []io.Closer
}

// Option customizes a Session at construction.
type Option func(*Session)

// WithRegistry installs a prepared registry instead of an empty one.
func WithRegistry(r *registry.Registry) Option {
	return func(s *Session) { s.tools = r }
}

// WithAuditLog installs an existing audit log, e.g. one restored from storage.
func WithAuditLog(l *audit.Log) Option {
	return func(s *Session) { s.audit = l }
}

// New creates a session from cfg.
func New(cfg config.Config, opts ...Option) *Session {
	s := &Session{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.tools == nil {
		s.tools = registry.New()
	}
	if s.audit == nil {
		s.audit = audit.New()
	}
	return s
}

// Config returns a copy of the current configuration.
func (s *Session) Config() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// UpdateConfig applies fn to the configuration under the write lock. The
// change is discarded if the result fails validation.
func (s *Session) UpdateConfig(fn func(*config.Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cfg
	fn(&next)
	if err := next.Validate(); err != nil {
		return fmt.Errorf("invalid configuration update: %w", err)
	}
	s.cfg = next
	return nil
}

// Tools returns the tool registry.
func (s *Session) Tools() *registry.Registry { return s.tools }

// Audit returns the audit log.
func (s *Session) Audit() *audit.Log { return s.audit }

// AuditAction records an action when auditing is enabled and is a no-op
// otherwise.
func (s *Session) AuditAction(ctx context.Context, agent, action, outcome string) error {
	if !s.Config().AuditEnabled {
		return nil
	}
	_, err := s.audit.Append(ctx, agent, action, outcome)
	return err
}

// AddSink attaches a persistent sink to the audit log. Sinks that implement
// io.Closer are closed with the session.
func (s *Session) AddSink(sink audit.Sink) {
	s.audit.AddSink(sink)
	if c, ok := sink.(io.Closer); ok {
		s.AddCloser(c)
	}
}

// AddCloser registers a resource, such as a tool's connection pool, to be
// released by Close.
func (s *Session) AddCloser(c io.Closer) {
	s.closersMu.Lock()
	s.closers = append(s.closers, c)
	s.closersMu.Unlock()
}

// Close releases resources held by the session, such as database-backed
// audit sinks.
func (s *Session) Close(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	s.closersMu.Lock()
	closers := s.closers
	s.closers = nil
	s.closersMu.Unlock()

	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close session resource.", "error", err)
			errs = append(errs, err)
		}
	}
	logger.Debug("Session closed.", "audit_entries", s.audit.Len())
	return errors.Join(errs...)
}
