package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/genricoloni/spotbar/internal/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Engine supervises the status poller and the command server.
// Both loops run independently; the first one to fail stops the other and
// shuts the application down with a non-zero exit code.
type Engine struct {
	logger     *zap.Logger
	shutdowner fx.Shutdowner
	loops      map[string]domain.Loop

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewEngine creates a new supervisor for the named loops
func NewEngine(logger *zap.Logger, shutdowner fx.Shutdowner, loops map[string]domain.Loop) *Engine {
	return &Engine{
		logger:     logger,
		shutdowner: shutdowner,
		loops:      loops,
	}
}

// Run blocks until every loop returned. The first error cancels the rest.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for name, loop := range e.loops {
		name, loop := name, loop
		g.Go(func() error {
			if err := loop.Run(gctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			e.logger.Debug("Loop finished", zap.String("loop", name))
			return nil
		})
	}

	return g.Wait()
}

// Start launches the loops in the background.
// It returns immediately (non-blocking).
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info("Engine starting...", zap.Int("loops", len(e.loops)))

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	e.mu.Lock()
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()

	go func() {
		defer close(done)

		err := e.Run(runCtx)

		e.mu.Lock()
		e.err = err
		e.mu.Unlock()

		if err != nil && runCtx.Err() == nil {
			e.logger.Error("Engine loop failed, shutting down", zap.Error(err))
			if shutdownErr := e.shutdowner.Shutdown(fx.ExitCode(1)); shutdownErr != nil {
				e.logger.Warn("Failed to request shutdown", zap.Error(shutdownErr))
			}
		}
	}()

	return nil
}

// Stop cancels the loops and waits for them to return
func (e *Engine) Stop(ctx context.Context) error {
	e.logger.Info("Engine stopping...")

	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("engine did not stop in time: %w", ctx.Err())
	}

	e.logger.Info("Engine stopped")
	return nil
}

// Err returns the error the loops stopped with, if any
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}
