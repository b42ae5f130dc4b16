// Package goroutine starts and supervises background goroutines.
package goroutine

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// StackTraceBufferSize is the buffer size for stack trace collection
const StackTraceBufferSize = 4096

// Recover recovers from panics in goroutines and logs them. Call it
// deferred. If logger is nil the panic is written to stderr.
func Recover(name string, logger *zap.SugaredLogger) {
	if r := recover(); r != nil {
		report(name, r, logger)
	}
}

func report(name string, r interface{}, logger *zap.SugaredLogger) {
	buf := make([]byte, StackTraceBufferSize)
	n := runtime.Stack(buf, false)

	if logger != nil {
		logger.Errorw("Goroutine panic recovered",
			"goroutine", name,
			"panic", r,
			"stack", string(buf[:n]))
		return
	}
	fmt.Fprintf(os.Stderr, "PANIC in goroutine %s (no logger): %v\n%s\n", name, r, string(buf[:n]))
}

// Group tracks named goroutines so shutdown can wait for them. Errors
// returned by the goroutines are logged, and a panic in one goroutine is
// recovered without affecting the others.
type Group struct {
	wg     sync.WaitGroup
	logger *zap.SugaredLogger

	mu     sync.Mutex
	failed map[string]error
}

// NewGroup creates an empty Group
func NewGroup(logger *zap.SugaredLogger) *Group {
	return &Group{logger: logger, failed: make(map[string]error)}
}

// Go runs fn in a new goroutine
func (g *Group) Go(name string, fn func() error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				report(name, r, g.logger)
				g.record(name, fmt.Errorf("panic: %v", r))
			}
		}()
		if err := fn(); err != nil {
			if g.logger != nil {
				g.logger.Errorw("Goroutine exited with error", "goroutine", name, "error", err)
			}
			g.record(name, err)
		}
	}()
}

func (g *Group) record(name string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failed[name] = err
}

// Wait blocks until every goroutine started with Go has returned
func (g *Group) Wait() {
	g.wg.Wait()
}

// Errors returns the errors and recovered panics recorded so far, keyed by
// goroutine name.
func (g *Group) Errors() map[string]error {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]error, len(g.failed))
	for k, v := range g.failed {
		out[k] = v
	}
	return out
}
