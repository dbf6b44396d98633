package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"deeptalk-backend/internal/models"
)

// State is the multiplexer lifecycle. Completed and Failed are terminal and
// mutually exclusive; no write happens after entering either.
type State int

const (
	Idle State = iota
	Started
	Streaming
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Started:
		return "started"
	case Streaming:
		return "streaming"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// ErrFlusherRequired is returned when the response writer cannot flush.
// Per-token latency is the whole point of the stream, so flushing is a hard
// requirement, not an optional capability probe.
var ErrFlusherRequired = errors.New("relay: response writer does not support flushing")

type startSignal struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type deltaSignal struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type doneSignal struct {
	Type           string        `json:"type"`
	Usage          *models.Usage `json:"usage"`
	ConversationID string        `json:"conversationId"`
}

type errorSignal struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Multiplexer owns the outbound event stream to the client for one turn.
// Signals are written strictly in classification order and flushed after
// every write.
type Multiplexer struct {
	w     http.ResponseWriter
	f     http.Flusher
	state State
}

// NewMultiplexer prepares the client stream. It sets the event-stream
// headers but writes nothing until Start is called.
func NewMultiplexer(w http.ResponseWriter) (*Multiplexer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrFlusherRequired
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return &Multiplexer{w: w, f: f, state: Idle}, nil
}

func (m *Multiplexer) State() State { return m.state }

// Start emits the single start signal. Valid only once, before any deltas.
func (m *Multiplexer) Start() error {
	if m.state != Idle {
		return fmt.Errorf("relay: start signal in state %s", m.state)
	}
	if err := m.write(startSignal{Type: "start", Message: "Stream started"}); err != nil {
		m.state = Failed
		return err
	}
	m.state = Started
	return nil
}

// Reasoning relays one thinking fragment.
func (m *Multiplexer) Reasoning(text string) error {
	return m.delta("reasoning", text)
}

// Content relays one answer fragment.
func (m *Multiplexer) Content(text string) error {
	return m.delta("content", text)
}

func (m *Multiplexer) delta(kind, text string) error {
	if m.state != Started && m.state != Streaming {
		return fmt.Errorf("relay: %s signal in state %s", kind, m.state)
	}
	if err := m.write(deltaSignal{Type: kind, Content: text}); err != nil {
		m.state = Failed
		return err
	}
	m.state = Streaming
	return nil
}

// Done emits the single terminal done signal with the aggregated usage (nil
// when the provider reported none) and the conversation id resolved at turn
// start.
func (m *Multiplexer) Done(usage *models.Usage, conversationID string) error {
	if m.state != Started && m.state != Streaming {
		return fmt.Errorf("relay: done signal in state %s", m.state)
	}
	if err := m.write(doneSignal{Type: "done", Usage: usage, ConversationID: conversationID}); err != nil {
		m.state = Failed
		return err
	}
	m.state = Completed
	return nil
}

// Fail emits the single terminal error signal. A no-op once a terminal
// state has been reached: done and error never both appear.
func (m *Multiplexer) Fail(message string) error {
	if m.state == Completed || m.state == Failed {
		return nil
	}
	err := m.write(errorSignal{Type: "error", Error: message})
	m.state = Failed
	return err
}

func (m *Multiplexer) write(signal any) error {
	data, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("relay: failed to marshal signal: %w", err)
	}
	if _, err := fmt.Fprintf(m.w, "data: %s\n\n", data); err != nil {
		return err
	}
	m.f.Flush()
	return nil
}
