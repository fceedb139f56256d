package ws

import (
	"context"
	"encoding/json"
	"sync"

	"smartsurvey/internal/flow"
	"smartsurvey/internal/platform/logger"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MsgQuestionChanged  MessageType = MessageType(flow.EventQuestionChanged)
	MsgSurveyCompleted  MessageType = MessageType(flow.EventSurveyCompleted)
	MsgSurveyTerminated MessageType = MessageType(flow.EventSurveyTerminated)
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans session progress events out to WebSocket clients. Hosts observe a
// whole survey; a respondent connection follows its own session only.
type Hub struct {
	observers map[string]map[*Connection]bool // surveyID -> conns
	sessions  map[string]map[*Connection]bool // sessionID -> conns

	mu sync.RWMutex

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan flow.Event
	done       chan struct{}

	log *logger.Logger
}

// Connection represents a WebSocket connection
type Connection struct {
	SurveyID  string
	SessionID string // empty for host observers
	Send      chan []byte
}

// IsObserver reports whether the connection watches the whole survey
func (c *Connection) IsObserver() bool {
	return c.SessionID == ""
}

// NewHub creates a new WebSocket hub and starts its loop
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	h := &Hub{
		observers:  make(map[string]map[*Connection]bool),
		sessions:   make(map[string]map[*Connection]bool),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan flow.Event, 256),
		done:       make(chan struct{}),
		log:        log,
	}
	go h.run()
	return h
}

func (h *Hub) index(conn *Connection) (map[string]map[*Connection]bool, string) {
	if conn.IsObserver() {
		return h.observers, conn.SurveyID
	}
	return h.sessions, conn.SessionID
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return

		case conn := <-h.register:
			h.mu.Lock()
			m, key := h.index(conn)
			if m[key] == nil {
				m[key] = make(map[*Connection]bool)
			}
			m[key][conn] = true
			h.mu.Unlock()
			h.log.Debug("ws client connected", "survey_id", conn.SurveyID, "session_id", conn.SessionID)

		case conn := <-h.unregister:
			h.mu.Lock()
			m, key := h.index(conn)
			if conns, ok := m[key]; ok && conns[conn] {
				delete(conns, conn)
				if len(conns) == 0 {
					delete(m, key)
				}
				close(conn.Send)
			}
			h.mu.Unlock()
			h.log.Debug("ws client disconnected", "survey_id", conn.SurveyID, "session_id", conn.SessionID)

		case ev := <-h.broadcast:
			data, err := encode(ev)
			if err != nil {
				h.log.Warn("ws event not encodable", "type", ev.Type, "error", err)
				continue
			}
			h.mu.RLock()
			for conn := range h.observers[ev.SurveyID] {
				deliver(conn, data)
			}
			for conn := range h.sessions[ev.SessionID] {
				deliver(conn, data)
			}
			h.mu.RUnlock()
		}
	}
}

func encode(ev flow.Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Message{Type: MessageType(ev.Type), Payload: payload})
}

func deliver(conn *Connection, data []byte) {
	select {
	case conn.Send <- data:
	default:
		// slow client, drop
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Publish implements flow.Publisher. It never blocks; events are dropped when
// the hub is saturated.
func (h *Hub) Publish(_ context.Context, ev flow.Event) {
	select {
	case h.broadcast <- ev:
	default:
		h.log.Warn("ws hub saturated, dropping event", "type", ev.Type, "session_id", ev.SessionID)
	}
}

// Close stops the hub loop
func (h *Hub) Close() {
	close(h.done)
}
