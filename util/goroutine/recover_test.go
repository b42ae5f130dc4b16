package goroutine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecover_NoPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)

	func() {
		defer Recover("quiet", zap.New(core).Sugar())
	}()

	assert.Zero(t, logs.Len())
}

func TestRecover_LogsPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)

	func() {
		defer Recover("api-server", zap.New(core).Sugar())
		panic("listener exploded")
	}()

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Goroutine panic recovered", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "api-server", fields["goroutine"])
	assert.Equal(t, "listener exploded", fields["panic"])
	assert.Contains(t, fields["stack"], "goroutine")
}

func TestRecover_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		defer Recover("no-logger", nil)
		panic(errors.New("boom"))
	})
}

func TestGroup_WaitsForAll(t *testing.T) {
	AssertNoLeaks(t)
	g := NewGroup(zaptest.NewLogger(t).Sugar())

	done := make(chan struct{})
	g.Go("slow", func() error {
		<-done
		return nil
	})
	g.Go("fast", func() error { return nil })

	close(done)
	g.Wait()
	assert.Empty(t, g.Errors())
}

func TestGroup_RecordsErrorsAndPanics(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	g := NewGroup(zap.New(core).Sugar())

	g.Go("failing", func() error { return errors.New("bind: address already in use") })
	g.Go("panicking", func() error { panic("nil map write") })
	g.Go("healthy", func() error { return nil })
	g.Wait()

	errs := g.Errors()
	require.Len(t, errs, 2)
	assert.EqualError(t, errs["failing"], "bind: address already in use")
	assert.EqualError(t, errs["panicking"], "panic: nil map write")
	assert.Equal(t, 2, logs.Len())
}

func TestWaitForGoroutineCount(t *testing.T) {
	release := make(chan struct{})
	go func() { <-release }()

	assert.False(t, WaitForGoroutineCount(0, 20*time.Millisecond, 5*time.Millisecond))
	close(release)
}
