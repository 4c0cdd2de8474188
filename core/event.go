package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType discriminates the lifecycle events published on a session stream.
type EventType string

// Event types, in the order a fully successful session emits them.
const (
	EventSessionStart    EventType = "session_start"
	EventConfidence      EventType = "confidence"
	EventAgentStart      EventType = "agent_start"
	EventAgentComplete   EventType = "agent_complete"
	EventAgentError      EventType = "agent_error"
	EventHandoff         EventType = "handoff"
	EventEvaluation      EventType = "evaluation"
	EventSessionComplete EventType = "session_complete"
)

// Event is one record on a session's ordered lifecycle stream. After emission
// it is immutable. The sequence of events alone is sufficient to rebuild full
// session state: completion events carry the produced KPIs and insights,
// handoff and evaluation events carry their full payloads.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEvent creates an event bound to a session with a fresh ID and UTC
// timestamp.
func NewEvent(sessionID string, typ EventType, payload any) Event {
	return Event{
		ID:        NewID(),
		SessionID: sessionID,
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// PayloadJSON marshals just the payload, the form wire transports frame under
// their own event-type envelope.
func (e Event) PayloadJSON() ([]byte, error) { return json.Marshal(e.Payload) }

// NewID generates a unique identifier for sessions, events and conflicts.
func NewID() string { return uuid.NewString() }

// SessionStartPayload announces a created session and its flow shape.
type SessionStartPayload struct {
	SessionID string   `json:"session_id"`
	FlowID    string   `json:"flow_id"`
	Flow      []string `json:"flow"`
}

// AgentStartPayload marks a node transition to active.
type AgentStartPayload struct {
	Agent     string    `json:"agent"`
	StartedAt time.Time `json:"started_at"`
}

// AgentCompletePayload marks a node transition to completed, carrying enough
// of the output for observers to rebuild stage state.
type AgentCompletePayload struct {
	Agent    string    `json:"agent"`
	EndedAt  time.Time `json:"ended_at"`
	KPIs     []KPI     `json:"kpis,omitempty"`
	Insights []string  `json:"insights,omitempty"`
}

// AgentErrorPayload marks a node transition to failed.
type AgentErrorPayload struct {
	Agent   string `json:"agent"`
	Error   string `json:"error"`
	Timeout bool   `json:"timeout,omitempty"`
}

// SessionCompletePayload is the terminal record of every session, including
// blocked ones.
type SessionCompletePayload struct {
	SessionID         string                      `json:"session_id"`
	EndedAt           time.Time                   `json:"ended_at"`
	Status            SessionStatus               `json:"status"`
	ConstraintsStatus map[string]ConstraintStatus `json:"constraints_status,omitempty"`
}
