package channel

import "testing"

func TestBufferedSendUntil(t *testing.T) {
	c := NewBuffered[int](1)
	done := make(chan struct{})

	if !c.SendUntil(1, done) {
		t.Fatal("expected send into free buffer to succeed")
	}

	// Buffer is full; a closed done channel must win the select.
	close(done)
	if c.SendUntil(2, done) {
		t.Fatal("expected send to give up once done closed")
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 buffered item, got %d", c.Len())
	}
}

func TestUnbufferedSendUntil(t *testing.T) {
	c := NewUnbuffered[string]()
	done := make(chan struct{})

	got := make(chan string, 1)
	go func() { got <- <-c.Receive() }()

	if !c.SendUntil("event", done) {
		t.Fatal("expected send to a waiting receiver to succeed")
	}
	if v := <-got; v != "event" {
		t.Fatalf("received %q", v)
	}

	close(done)
	if c.SendUntil("late", done) {
		t.Fatal("expected send with no receiver to give up once done closed")
	}
}
