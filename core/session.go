package core

import (
	"sync"
	"time"
)

// SessionStatus is the orchestrator state machine position of a session.
type SessionStatus string

// Session statuses. Completed, Blocked and Aborted are terminal.
const (
	SessionNotStarted      SessionStatus = "not_started"
	SessionConfidenceCheck SessionStatus = "confidence_check"
	SessionRunning         SessionStatus = "running"
	SessionCompleted       SessionStatus = "completed"
	SessionBlocked         SessionStatus = "blocked"
	SessionAborted         SessionStatus = "aborted"
)

// Terminal reports whether the status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionBlocked || s == SessionAborted
}

// NodeStatus is the lifecycle position of one stage node within a session.
type NodeStatus string

// Node statuses. Transitions are monotonic:
// pending → active → {completed | failed}; a node is never revisited.
const (
	NodePending   NodeStatus = "pending"
	NodeActive    NodeStatus = "active"
	NodeCompleted NodeStatus = "completed"
	NodeFailed    NodeStatus = "failed"
)

// Terminal reports whether the node reached a final state.
func (s NodeStatus) Terminal() bool { return s == NodeCompleted || s == NodeFailed }

// NodeState tracks one stage node. The orchestrator is its only writer.
type NodeState struct {
	Stage     string     `json:"stage"`
	Status    NodeStatus `json:"status"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Session is the mutable per-run state container. It is created at flow
// start, mutated only by the owning orchestrator, and immutable once EndedAt
// is set. Reads are safe from any goroutine.
type Session struct {
	ID          string        `json:"id"`
	FlowID      string        `json:"flow_id"`
	Mode        string        `json:"mode,omitempty"`
	Status      SessionStatus `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     *time.Time    `json:"ended_at,omitempty"`
	PeriodStart string        `json:"period_start,omitempty"`
	PeriodEnd   string        `json:"period_end,omitempty"`

	Nodes                map[string]*NodeState       `json:"nodes"`
	Handoffs             []*Handoff                  `json:"handoffs,omitempty"`
	StageKPIs            map[string][]KPI            `json:"stage_kpis,omitempty"`
	StageRecommendations map[string][]Recommendation `json:"stage_recommendations,omitempty"`
	Confidence           *ConfidenceReport           `json:"confidence,omitempty"`
	Conflicts            []Conflict                  `json:"conflicts,omitempty"`
	ConstraintsStatus    map[string]ConstraintStatus `json:"constraints_status,omitempty"`
	Evaluation           *Evaluation                 `json:"evaluation,omitempty"`
	Events               []Event                     `json:"events,omitempty"`

	mu sync.RWMutex
}

// NewSession creates a session in the NotStarted state with pending nodes for
// each stage of the flow.
func NewSession(flowID, mode string, stages []string) *Session {
	nodes := make(map[string]*NodeState, len(stages))
	for _, name := range stages {
		nodes[name] = &NodeState{Stage: name, Status: NodePending}
	}
	return &Session{
		ID:                NewID(),
		FlowID:            flowID,
		Mode:              mode,
		Status:            SessionNotStarted,
		StartedAt:         time.Now().UTC(),
		Nodes:             nodes,
		StageKPIs:         map[string][]KPI{},
		ConstraintsStatus: map[string]ConstraintStatus{},
	}
}

// SetStatus advances the session state machine.
func (s *Session) SetStatus(status SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
}

// SetConfidence records the gate report.
func (s *Session) SetConfidence(report *ConfidenceReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Confidence = report
}

// SetEvaluation records the join node's evaluation.
func (s *Session) SetEvaluation(eval *Evaluation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Evaluation = eval
}

// End stamps the terminal status and end time.
func (s *Session) End(status SessionStatus) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.Status = status
	s.EndedAt = &now
	return now
}

// MarkNodeActive transitions a node pending→active and returns its start time.
func (s *Session) MarkNodeActive(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if n, ok := s.Nodes[name]; ok && n.Status == NodePending {
		n.Status = NodeActive
		n.StartedAt = &now
	}
	return now
}

// MarkNodeDone transitions an active node to completed or failed.
func (s *Session) MarkNodeDone(name string, status NodeStatus, errMsg string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if n, ok := s.Nodes[name]; ok && n.Status == NodeActive {
		n.Status = status
		n.EndedAt = &now
		n.Error = errMsg
	}
	return now
}

// Node returns a snapshot of one node's state.
func (s *Session) Node(name string) (NodeState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.Nodes[name]
	if !ok {
		return NodeState{}, false
	}
	return *n, true
}

// AddHandoff appends a completed stage's handoff.
func (s *Session) AddHandoff(h *Handoff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Handoffs = append(s.Handoffs, h)
}

// AddStageKPIs records the KPIs a completed stage produced.
func (s *Session) AddStageKPIs(stage string, kpis []KPI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StageKPIs[stage] = append(s.StageKPIs[stage], kpis...)
}

// AddStageRecommendations records the actions a completed stage proposed.
func (s *Session) AddStageRecommendations(stage string, recs []Recommendation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.StageRecommendations == nil {
		s.StageRecommendations = map[string][]Recommendation{}
	}
	s.StageRecommendations[stage] = append(s.StageRecommendations[stage], recs...)
}

// AddEvent appends to the ordered event history.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, ev)
}

// GetEvents returns a defensive copy of the event history.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]Event, len(s.Events))
	copy(events, s.Events)
	return events
}

// SetConstraintStatus updates one constraint's per-session status.
func (s *Session) SetConstraintStatus(name string, status ConstraintStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ConstraintsStatus[name] = status
}

// ConstraintsSnapshot returns a copy of the constraint status map.
func (s *Session) ConstraintsSnapshot() map[string]ConstraintStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ConstraintStatus, len(s.ConstraintsStatus))
	for k, v := range s.ConstraintsStatus {
		out[k] = v
	}
	return out
}

// AddConflicts appends detected conflicts.
func (s *Session) AddConflicts(conflicts ...Conflict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Conflicts = append(s.Conflicts, conflicts...)
}

// ConflictsSnapshot returns a copy of the accumulated conflict list.
func (s *Session) ConflictsSnapshot() []Conflict {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Conflict, len(s.Conflicts))
	copy(out, s.Conflicts)
	return out
}

// Clone returns a deep copy of the session safe for independent reads. Node
// states, handoffs and events are copied; immutable leaf values are shared.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:          s.ID,
		FlowID:      s.FlowID,
		Mode:        s.Mode,
		Status:      s.Status,
		StartedAt:   s.StartedAt,
		EndedAt:     s.EndedAt,
		PeriodStart: s.PeriodStart,
		PeriodEnd:   s.PeriodEnd,
		Confidence:  s.Confidence,
		Evaluation:  s.Evaluation,
	}
	clone.Nodes = make(map[string]*NodeState, len(s.Nodes))
	for k, v := range s.Nodes {
		n := *v
		clone.Nodes[k] = &n
	}
	clone.Handoffs = append([]*Handoff(nil), s.Handoffs...)
	clone.StageKPIs = make(map[string][]KPI, len(s.StageKPIs))
	for k, v := range s.StageKPIs {
		clone.StageKPIs[k] = append([]KPI(nil), v...)
	}
	if s.StageRecommendations != nil {
		clone.StageRecommendations = make(map[string][]Recommendation, len(s.StageRecommendations))
		for k, v := range s.StageRecommendations {
			clone.StageRecommendations[k] = append([]Recommendation(nil), v...)
		}
	}
	clone.Conflicts = append([]Conflict(nil), s.Conflicts...)
	clone.ConstraintsStatus = make(map[string]ConstraintStatus, len(s.ConstraintsStatus))
	for k, v := range s.ConstraintsStatus {
		clone.ConstraintsStatus[k] = v
	}
	clone.Events = append([]Event(nil), s.Events...)
	return clone
}

// SessionStore persists sessions. Event history travels inside the Session;
// the orchestrator appends events to the live session it saved.
type SessionStore interface {
	Save(s *Session) error
	Get(id string) (*Session, error)
}
