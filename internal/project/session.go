// Package project owns the open-project session. Callers hold a *Session
// instead of reaching for a process-wide "current project"; every mutation
// goes through Mutate, which serializes access and persists on success.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/stemma/internal/graph"
	"github.com/roach88/stemma/internal/metrics"
)

// Session is one open project.
type Session struct {
	mu     sync.Mutex
	store  *graph.Store
	opts   []graph.Option
	logger *slog.Logger
}

// Open loads the project at root.
func Open(root string, logger *slog.Logger, opts ...graph.Option) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]graph.Option{graph.WithLogger(logger)}, opts...)
	st, err := graph.Open(root, opts...)
	if err != nil {
		return nil, err
	}
	return &Session{store: st, opts: opts, logger: logger}, nil
}

// Create initializes a project at root and opens a session on it.
func Create(root, name string, logger *slog.Logger, opts ...graph.Option) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]graph.Option{graph.WithLogger(logger)}, opts...)
	st, err := graph.Create(root, name, opts...)
	if err != nil {
		return nil, err
	}
	return &Session{store: st, opts: opts, logger: logger}, nil
}

// Root returns the project root.
func (s *Session) Root() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Root()
}

// View runs fn with the store locked. fn must not mutate the graph.
func (s *Session) View(fn func(st *graph.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.store)
}

// Mutate runs fn with the store locked and saves when it succeeds. When fn
// or the save fails the in-memory graph is reloaded from disk, so a failed
// mutation never lingers in the session.
func (s *Session) Mutate(ctx context.Context, fn func(st *graph.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(s.store); err != nil {
		return s.rollback(err)
	}
	if err := s.store.Save(); err != nil {
		return s.rollback(fmt.Errorf("save project: %w", err))
	}
	metrics.StateSaves.Inc()
	return nil
}

func (s *Session) rollback(cause error) error {
	st, err := graph.Open(s.store.Root(), s.opts...)
	if err != nil {
		s.logger.Error("reload after failed mutation", "root", s.store.Root(), "error", err)
		return errors.Join(cause, fmt.Errorf("reload project: %w", err))
	}
	s.store = st
	s.logger.Debug("mutation rolled back", "root", st.Root(), "error", cause)
	return cause
}
