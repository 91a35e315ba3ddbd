package domain

// InitialPhase is the phase of a working state that has not seen a plan yet.
const InitialPhase = "Initialization"

// AgentState is the running coaching context derived from history and the
// latest plan. It is sent to the agent with every request.
type AgentState struct {
	Phase       string       `json:"phase"`
	Consistency int          `json:"consistency"`
	Fatigue     FatigueLevel `json:"fatigue"`
}

// AppState is the working state of one device. It is cached between
// requests and reconciled against the authenticated identity.
type AppState struct {
	Profile        *UserProfile   `json:"profile"`
	History        []HistoryEntry `json:"history"`
	CurrentWorkout *WorkoutPlan   `json:"currentWorkout"`
	Phase          string         `json:"globalPhase"`
	Consistency    int            `json:"globalConsistency"`
	Fatigue        FatigueLevel   `json:"globalFatigue"`
	CurrentWeight  float64        `json:"currentWeight"`

	// AppliedSeq is the sequence number of the generation that produced
	// CurrentWorkout. Older generations are never applied over it.
	AppliedSeq uint64 `json:"appliedSeq"`
}

// NewAppState returns the empty working state.
func NewAppState() AppState {
	return AppState{
		History: []HistoryEntry{},
		Phase:   InitialPhase,
		Fatigue: FatigueLow,
	}
}

// AgentState extracts the agent context from the working state.
func (s AppState) AgentState() AgentState {
	return AgentState{
		Phase:       s.Phase,
		Consistency: s.Consistency,
		Fatigue:     s.Fatigue,
	}
}

// HasPersonalData reports whether anything user-owned is held.
func (s AppState) HasPersonalData() bool {
	return s.Profile != nil || len(s.History) > 0 || s.CurrentWorkout != nil
}
