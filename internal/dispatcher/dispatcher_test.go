package dispatcher

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	called := false
	d.Register("skip_map", func(e Event) (any, error) {
		called = true
		return "result", nil
	})

	result, err := d.Dispatch(Event{Command: "skip_map", Args: []string{"arg1"}})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
	if result != "result" {
		t.Errorf("expected 'result', got %v", result)
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: "warp"})

	if err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Register("rescan", func(e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return nil, nil
	}, Buffered(100))

	// Dispatch 3 events
	for i := 0; i < 3; i++ {
		result, err := d.Dispatch(Event{Command: "rescan"})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != "queued" {
			t.Errorf("expected 'queued', got %v", result)
		}
	}

	// Wait for processing
	wg.Wait()

	if processed.Load() != 3 {
		t.Errorf("expected 3 processed, got %d", processed.Load())
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	// Block the handler so queue fills up
	block := make(chan struct{})
	d.Register("prefetch", func(e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(2))

	// Fill the queue (2 items) + 1 being processed
	d.Dispatch(Event{Command: "prefetch"}) // being processed
	d.Dispatch(Event{Command: "prefetch"}) // queued
	d.Dispatch(Event{Command: "prefetch"}) // queued

	// This should be dropped
	_, err := d.Dispatch(Event{Command: "prefetch"})

	if err == nil {
		t.Error("expected error when queue is full")
	}

	close(block)
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	d.Register("copy_replays", func(e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	// First event starts processing
	d.Dispatch(Event{Command: "copy_replays"})
	// Second event fills the queue
	d.Dispatch(Event{Command: "copy_replays"})

	// Third event should block (test with timeout)
	done := make(chan struct{})
	go func() {
		d.Dispatch(Event{Command: "copy_replays"})
		close(done)
	}()

	select {
	case <-done:
		t.Error("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
		// Expected - dispatch is blocking
	}

	close(block)
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("reload_map", func(e Event) (any, error) {
		return "ok", nil
	}, Logged())

	d.Dispatch(Event{Command: "reload_map", Args: []string{"a", "b"}})

	// Give time for logging
	time.Sleep(10 * time.Millisecond)

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected at least 2 log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("end_session", func(e Event) (any, error) {
		return nil, fmt.Errorf("test error")
	}, Logged())

	d.Dispatch(Event{Command: "end_session"})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	hasError := false
	for _, msg := range logger.messages {
		if len(msg) >= 5 && msg[:5] == "ERROR" {
			hasError = true
			break
		}
	}

	if !hasError {
		t.Error("expected error log message")
	}
}

// companionStub stands in for the session controls the GUI drives.
type companionStub struct {
	skips    atomic.Int32
	reloads  atomic.Int32
	ends     atomic.Int32
	noMap    bool
	rescans  atomic.Int32
	rescanOK bool
}

func (c *companionStub) register(d *Dispatcher) {
	d.Register("skip_map", func(Event) (any, error) {
		c.skips.Add(1)
		return "ok", nil
	}, Logged())
	d.Register("reload_map", func(Event) (any, error) {
		if c.noMap {
			return nil, fmt.Errorf("no map is currently tracked")
		}
		c.reloads.Add(1)
		return "ok", nil
	}, Logged())
	d.Register("end_session", func(Event) (any, error) {
		c.ends.Add(1)
		return "ok", nil
	}, Logged())
	d.Register("rescan", func(Event) (any, error) {
		c.rescans.Add(1)
		return c.rescanOK, nil
	}, Logged())
}

func TestDispatcher_RoutesGUICommands(t *testing.T) {
	d, _ := newTestDispatcher(t)
	stub := &companionStub{rescanOK: true}
	stub.register(d)

	now := time.Now()
	for _, cmd := range []string{"skip_map", "skip_map", "reload_map", "end_session"} {
		if _, err := d.Dispatch(Event{Command: cmd, Timestamp: now}); err != nil {
			t.Fatalf("dispatch %s: %v", cmd, err)
		}
	}

	if stub.skips.Load() != 2 {
		t.Errorf("expected 2 skips, got %d", stub.skips.Load())
	}
	if stub.reloads.Load() != 1 {
		t.Errorf("expected 1 reload, got %d", stub.reloads.Load())
	}
	if stub.ends.Load() != 1 {
		t.Errorf("expected 1 end, got %d", stub.ends.Load())
	}

	changed, err := d.Dispatch(Event{Command: "rescan", Timestamp: now})
	if err != nil {
		t.Fatalf("dispatch rescan: %v", err)
	}
	if changed != true {
		t.Errorf("expected rescan result true, got %v", changed)
	}
}

func TestDispatcher_GUICommandErrorsSurface(t *testing.T) {
	d, logger := newTestDispatcher(t)
	stub := &companionStub{noMap: true}
	stub.register(d)

	// Reloading with no map in play fails and the failure is logged.
	if _, err := d.Dispatch(Event{Command: "reload_map"}); err == nil {
		t.Fatal("expected reload without a tracked map to fail")
	}
	if stub.reloads.Load() != 0 {
		t.Errorf("expected no reloads, got %d", stub.reloads.Load())
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	hasError := false
	for _, msg := range logger.messages {
		if len(msg) >= 5 && msg[:5] == "ERROR" {
			hasError = true
			break
		}
	}
	if !hasError {
		t.Error("expected the failed command in the error log")
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register("skip_map", func(e Event) (any, error) { return nil, nil })

	if !d.HasHandler("skip_map") {
		t.Error("expected handler to exist")
	}

	if d.HasHandler("never_registered") {
		t.Error("expected handler to not exist")
	}
}

func TestDispatcher_CombinedOptions(t *testing.T) {
	d, logger := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)

	d.Register("rescan_all", func(e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return "done", nil
	}, Buffered(100), Logged())

	result, err := d.Dispatch(Event{Command: "rescan_all"})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != "queued" {
		t.Errorf("expected 'queued', got %v", result)
	}

	wg.Wait()

	if processed.Load() != 1 {
		t.Errorf("expected 1 processed, got %d", processed.Load())
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected log messages, got %d", len(logger.messages))
	}
}
