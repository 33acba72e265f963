package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmchallenge/companion/internal/autosave"
	"github.com/rmchallenge/companion/internal/gbx"
	"github.com/rmchallenge/companion/internal/session"
)

// testServer upgrades to WebSocket, records received envelopes, and
// acks the session boundary messages.
func testServer(t *testing.T) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if env.Type == TypeSessionStarted || env.Type == TypeSessionEnded {
				ack := AckMessage{Type: "ack", For: env.Type}
				data, _ := json.Marshal(ack)
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))

	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	messages []Envelope
}

func (m *messageLog) add(env Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) all() []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSessionBoundaries(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	n := New(Config{URL: wsURL(srv)}, slog.Default())
	require.NoError(t, n.Connect())
	defer n.Close()

	require.NoError(t, n.SessionStarted(SessionStartedPayload{
		ID:        "s-1",
		StartedAt: time.Now(),
		TimeLimit: "1h",
	}))

	n.SessionEnded("Session ended.", session.Summary{MapsPlayed: 3, Gold: 1})

	msgs := ml.all()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, TypeSessionStarted, msgs[0].Type)
	assert.Equal(t, TypeSessionEnded, msgs[len(msgs)-1].Type)
}

func TestFireAndForgetMessages(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	n := New(Config{URL: wsURL(srv)}, slog.Default())
	require.NoError(t, n.Connect())
	defer n.Close()

	require.NoError(t, n.SessionStarted(SessionStartedPayload{ID: "s-2"}))

	at := 32 * time.Second
	n.MapStarted(&gbx.TrackRecord{
		UID:         "uid-1",
		Name:        "Dusty Run",
		Environment: "Stadium",
		Mode:        gbx.ModeRace,
		Medals:      gbx.Medals{AuthorTime: &at},
	})
	n.Status("Playing Dusty Run")
	n.Medal("uid-1", autosave.Gold)
	n.MapEnded("uid-1")

	n.SessionEnded("Session ended.", session.Summary{MapsPlayed: 1, Gold: 1})

	// Give a moment for all messages to arrive at server.
	time.Sleep(50 * time.Millisecond)

	types := make(map[string]int)
	for _, m := range ml.all() {
		types[m.Type]++
	}

	assert.Equal(t, 1, types[TypeSessionStarted])
	assert.Equal(t, 1, types[TypeMapStarted])
	assert.Equal(t, 1, types[TypeStatus])
	assert.Equal(t, 1, types[TypeMedal])
	assert.Equal(t, 1, types[TypeMapEnded])
	assert.Equal(t, 1, types[TypeSessionEnded])
}

func TestMapStartedPayload(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	n := New(Config{URL: wsURL(srv)}, slog.Default())
	require.NoError(t, n.Connect())
	defer n.Close()

	at := 32 * time.Second
	n.MapStarted(&gbx.TrackRecord{
		UID:    "uid-1",
		Name:   "Dusty Run",
		Mode:   gbx.ModeRace,
		Medals: gbx.Medals{AuthorTime: &at},
	})

	require.Eventually(t, func() bool { return len(ml.all()) == 1 },
		2*time.Second, 10*time.Millisecond)

	var p MapStartedPayload
	require.NoError(t, json.Unmarshal(ml.all()[0].Payload, &p))
	assert.Equal(t, "uid-1", p.UID)
	assert.Equal(t, "Race", p.Mode)
	require.NotNil(t, p.AuthorTimeMs)
	assert.Equal(t, int64(32000), *p.AuthorTimeMs)
}
