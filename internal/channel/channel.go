// Package channel provides generic channel interfaces that decouple
// producers like the autosave watcher from the session loop consuming
// their events.
package channel

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a channel.
type Sender[T any] interface {
	Send(T)
	// SendUntil sends v unless done closes first; reports whether the
	// value was delivered.
	SendUntil(v T, done <-chan struct{}) bool
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}
