package stream

import (
	"encoding/json"
	"time"
)

// Message type constants for the GUI stream protocol.
const (
	TypeSessionStarted = "session_started"
	TypeStatus         = "status"
	TypeMapStarted     = "map_started"
	TypeMedal          = "medal"
	TypeMapEnded       = "map_ended"
	TypeSessionEnded   = "session_ended"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the GUI's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// CommandMessage is a control request sent by the GUI: skip_map,
// reload_map, end_session, rescan.
type CommandMessage struct {
	Type    string   `json:"type"` // always "command"
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// SessionStartedPayload announces a new session and its rule summary.
type SessionStartedPayload struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`
	TimeLimit string    `json:"timeLimit"`
	Sites     string    `json:"sites"`
}

// StatusPayload carries one human-readable status line.
type StatusPayload struct {
	Message string `json:"message"`
}

// MapStartedPayload describes the map now in play.
type MapStartedPayload struct {
	UID          string `json:"uid"`
	Name         string `json:"name"`
	Environment  string `json:"environment"`
	Mode         string `json:"mode"`
	AuthorTimeMs *int64 `json:"authorTimeMs,omitempty"`
}

// MedalPayload announces a classified medal on the current map.
type MedalPayload struct {
	UID  string `json:"uid"`
	Tier string `json:"tier"`
}

// MapEndedPayload marks the current map as finished.
type MapEndedPayload struct {
	UID string `json:"uid"`
}

// SessionEndedPayload is the terminal message with the final tally.
type SessionEndedPayload struct {
	Reason     string `json:"reason"`
	MapsPlayed int    `json:"mapsPlayed"`
	Gold       int    `json:"gold"`
	Author     int    `json:"author"`
	Skipped    int    `json:"skipped"`
	DurationMs int64  `json:"durationMs"`
}
