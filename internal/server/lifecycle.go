// Package server runs the skill server's process plumbing: the lifecycle
// that starts and stops services with signal handling, the engine goroutine
// that owns all game-state mutation, and the runtime that wires the
// progression stack onto it.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service represents a long-running component that can be started and stopped.
type Service interface {
	// Start begins the service. It should block until the service is stopped
	// or an error occurs.
	Start() error
	// Stop gracefully stops the service.
	Stop()
}

// FuncService adapts a start/stop function pair into the Service interface.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

// Start calls the underlying start function.
func (f *FuncService) Start() error { return f.StartFn() }

// Stop calls the underlying stop function.
func (f *FuncService) Stop() { f.StopFn() }

// Lifecycle manages the startup and shutdown of multiple services. Services
// are started in order and stopped in reverse order, so a service may rely on
// everything added before it still being up while it stops. The shutdown pass
// as a whole is bounded by the stop timeout.
type Lifecycle struct {
	logger      *zap.Logger
	stopTimeout time.Duration
	services    []namedService
	mu          sync.Mutex
}

type namedService struct {
	name    string
	service Service
}

// NewLifecycle creates a Lifecycle manager. A stopTimeout of 0 waits for
// shutdown indefinitely.
//
// Precondition: logger must be non-nil and stopTimeout must be >= 0.
func NewLifecycle(logger *zap.Logger, stopTimeout time.Duration) *Lifecycle {
	if logger == nil {
		panic("server: NewLifecycle with nil logger")
	}
	if stopTimeout < 0 {
		panic("server: NewLifecycle with negative stop timeout")
	}
	return &Lifecycle{
		logger:      logger,
		stopTimeout: stopTimeout,
	}
}

// Add registers a named service for lifecycle management.
// Services are started in the order they are added.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	if name == "" {
		panic("server: Add with empty service name")
	}
	if svc == nil {
		panic("server: Add with nil service")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, namedService{name: name, service: svc})
}

// Run starts all services and blocks until a termination signal arrives
// (SIGINT or SIGTERM), the context is cancelled, or a service fails. Services
// are then stopped in reverse order.
//
// Postcondition: Returns the failing service's error, or nil after a clean
// signal or cancellation shutdown. When the stop timeout expires the
// remaining stops are abandoned and Run returns anyway.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start services
	errCh := make(chan error, len(l.services))
	for _, ns := range l.services {
		ns := ns
		go func() {
			l.logger.Info("starting service",
				zap.String("service", ns.name),
			)
			svcStart := time.Now()
			if err := ns.service.Start(); err != nil {
				l.logger.Error("service failed",
					zap.String("service", ns.name),
					zap.Error(err),
					zap.Duration("uptime", time.Since(svcStart)),
				)
				errCh <- fmt.Errorf("service %s: %w", ns.name, err)
				cancel()
			}
		}()
	}

	l.logger.Info("all services started",
		zap.Int("count", len(l.services)),
		zap.Duration("startup", time.Since(start)),
	)

	// Wait for signal, service failure, or context cancellation
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		l.logger.Info("received signal, shutting down",
			zap.String("signal", sig.String()),
		)
	case runErr = <-errCh:
		l.logger.Error("service error, shutting down",
			zap.Error(runErr),
		)
	case <-ctx.Done():
		l.logger.Info("context cancelled, shutting down")
	}

	// A failing service cancels the context itself; don't let the race
	// between the two channels swallow its error.
	if runErr == nil {
		select {
		case runErr = <-errCh:
		default:
		}
	}

	l.shutdown()

	l.logger.Info("shutdown complete",
		zap.Duration("total_uptime", time.Since(start)),
	)
	return runErr
}

// shutdown stops services in reverse add order. The whole pass races the
// stop timeout; on expiry the remaining stops keep running in their
// goroutine but the process no longer waits for them.
func (l *Lifecycle) shutdown() {
	shutdownStart := time.Now()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := len(l.services) - 1; i >= 0; i-- {
			ns := l.services[i]
			svcStart := time.Now()
			l.logger.Info("stopping service",
				zap.String("service", ns.name),
			)
			ns.service.Stop()
			l.logger.Info("service stopped",
				zap.String("service", ns.name),
				zap.Duration("elapsed", time.Since(svcStart)),
			)
		}
	}()

	if l.stopTimeout <= 0 {
		<-done
	} else {
		select {
		case <-done:
		case <-time.After(l.stopTimeout):
			l.logger.Error("shutdown deadline exceeded, abandoning remaining stops",
				zap.Duration("stop_timeout", l.stopTimeout),
			)
			return
		}
	}

	l.logger.Info("all services stopped",
		zap.Duration("shutdown_elapsed", time.Since(shutdownStart)),
	)
}
