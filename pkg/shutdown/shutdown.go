// Package shutdown provides graceful shutdown handling.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cetsp/diario-scraper/pkg/logger"
)

// Handler manages graceful shutdown of multiple components.
type Handler struct {
	log      *logger.Logger
	timeout  time.Duration
	cleanups []namedCleanup
	mu       sync.Mutex
}

type namedCleanup struct {
	name string
	fn   CleanupFunc
}

// CleanupFunc is a function called during shutdown.
type CleanupFunc func(ctx context.Context) error

// New creates a new shutdown handler.
func New(log *logger.Logger, timeout time.Duration) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		log:     log.WithComponent("shutdown"),
		timeout: timeout,
	}
}

// Register adds a cleanup function to be called during shutdown.
// Cleanup functions run one after another in LIFO order (last registered,
// first called): the HTTP server stops before the stores it uses close.
func (h *Handler) Register(fn CleanupFunc) {
	h.RegisterNamed("", fn)
}

// RegisterNamed adds a named cleanup function for better logging.
func (h *Handler) RegisterNamed(name string, fn CleanupFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanups = append(h.cleanups, namedCleanup{name: name, fn: fn})
}

// Wait blocks until a shutdown signal is received, then performs cleanup.
func (h *Handler) Wait() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-quit
	signal.Stop(quit)
	h.log.Info("received shutdown signal", "signal", sig.String())

	h.Shutdown()
}

// Shutdown runs every cleanup within the handler's timeout and returns the
// number that failed. A cleanup still running at the deadline is abandoned.
func (h *Handler) Shutdown() int {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	cleanups := make([]namedCleanup, len(h.cleanups))
	copy(cleanups, h.cleanups)
	h.mu.Unlock()

	done := make(chan int, 1)
	go func() {
		failed := 0
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := h.run(ctx, cleanups[i]); err != nil {
				failed++
			}
		}
		done <- failed
	}()

	select {
	case failed := <-done:
		if failed > 0 {
			h.log.Warn("shutdown completed with errors", "failed", failed)
		} else {
			h.log.Info("graceful shutdown completed")
		}
		return failed
	case <-ctx.Done():
		h.log.Warn("shutdown timed out, forcing exit")
		return len(cleanups)
	}
}

func (h *Handler) run(ctx context.Context, c namedCleanup) error {
	log := h.log
	if c.name != "" {
		log = log.WithFields(map[string]any{"target": c.name})
	}
	log.Info("shutting down component")
	if err := c.fn(ctx); err != nil {
		log.WithError(err).Error("error shutting down component")
		return err
	}
	log.Debug("component shut down successfully")
	return nil
}

// ListenAndShutdown is a convenience function that starts listening for signals
// in a goroutine and returns a channel that will be closed when shutdown is complete.
func (h *Handler) ListenAndShutdown() <-chan struct{} {
	done := make(chan struct{})

	go func() {
		h.Wait()
		close(done)
	}()

	return done
}
