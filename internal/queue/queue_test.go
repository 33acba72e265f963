package queue

import (
	"sync"
	"testing"
)

// pendingMessage mirrors the stream's use of the queue: raw envelopes
// held while the websocket is down.
type pendingMessage struct {
	Seq  int
	Body []byte
}

func TestQueue_New(t *testing.T) {
	q := New[pendingMessage]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_Push(t *testing.T) {
	q := New[pendingMessage]()

	q.Push(pendingMessage{Seq: 1, Body: []byte("status")})
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}

	q.Push(pendingMessage{Seq: 2}, pendingMessage{Seq: 3})
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}
}

func TestQueue_Pop(t *testing.T) {
	q := New[pendingMessage]()

	// Pop from empty queue returns zero value
	result := q.Pop()
	if result.Seq != 0 || result.Body != nil {
		t.Errorf("expected zero value, got %+v", result)
	}

	q.Push(pendingMessage{Seq: 1, Body: []byte("medal")}, pendingMessage{Seq: 2})
	first := q.Pop()
	if first.Seq != 1 || string(first.Body) != "medal" {
		t.Errorf("expected {1, medal}, got %+v", first)
	}
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}
}

func TestQueue_Clear(t *testing.T) {
	q := New[pendingMessage]()
	q.Push(pendingMessage{Seq: 1}, pendingMessage{Seq: 2}, pendingMessage{Seq: 3})

	q.Clear()

	if !q.Empty() {
		t.Error("expected empty queue after clear")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_GetAndEmpty(t *testing.T) {
	q := New[pendingMessage]()
	q.Push(pendingMessage{Seq: 1}, pendingMessage{Seq: 2}, pendingMessage{Seq: 3})

	result := q.GetAndEmpty()

	if len(result) != 3 {
		t.Errorf("expected 3 items, got %d", len(result))
	}
	if result[0].Seq != 1 || result[1].Seq != 2 || result[2].Seq != 3 {
		t.Errorf("unexpected items: %+v", result)
	}
	if !q.Empty() {
		t.Error("expected empty queue after GetAndEmpty")
	}
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[pendingMessage]()
	var wg sync.WaitGroup

	// Concurrent pushes
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			q.Push(pendingMessage{Seq: seq})
		}(i)
	}
	wg.Wait()

	if q.Len() != 100 {
		t.Errorf("expected 100 items, got %d", q.Len())
	}

	// Concurrent pops
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Pop()
		}()
	}
	wg.Wait()

	if q.Len() != 50 {
		t.Errorf("expected 50 items after pops, got %d", q.Len())
	}
}

func TestQueue_ConcurrentGetAndEmpty(t *testing.T) {
	q := New[pendingMessage]()

	for i := 0; i < 100; i++ {
		q.Push(pendingMessage{Seq: i})
	}

	var wg sync.WaitGroup
	results := make(chan []pendingMessage, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- q.GetAndEmpty()
		}()
	}
	wg.Wait()
	close(results)

	// Total items across all results should be 100
	total := 0
	for r := range results {
		total += len(r)
	}
	if total != 100 {
		t.Errorf("expected total 100 items, got %d", total)
	}
}

func TestQueue_ByteSliceType(t *testing.T) {
	q := New[[]byte]()
	q.Push([]byte("map_started"), []byte("map_ended"))

	first := q.Pop()
	if string(first) != "map_started" {
		t.Errorf("expected map_started, got %s", first)
	}
}
