package domain

// FatigueLevel is the agent's estimate of accumulated training fatigue.
type FatigueLevel string

const (
	FatigueLow    FatigueLevel = "low"
	FatigueMedium FatigueLevel = "medium"
	FatigueHigh   FatigueLevel = "high"
)

// IsValid reports whether f is one of the known fatigue levels.
func (f FatigueLevel) IsValid() bool {
	switch f {
	case FatigueLow, FatigueMedium, FatigueHigh:
		return true
	default:
		return false
	}
}

// AgentFocus describes which step of the coaching loop produced a plan.
type AgentFocus string

const (
	FocusPlanning   AgentFocus = "Planning"
	FocusExecuting  AgentFocus = "Executing"
	FocusEvaluating AgentFocus = "Evaluating"
	FocusAdapting   AgentFocus = "Adapting"
)

func (f AgentFocus) IsValid() bool {
	switch f {
	case FocusPlanning, FocusExecuting, FocusEvaluating, FocusAdapting:
		return true
	default:
		return false
	}
}

// WorkoutPlan is the canonical coaching session consumed by the rest of the app.
// Once a plan leaves the parser every field holds a value.
type WorkoutPlan struct {
	Title            string       `bson:"title" json:"title"`
	Warmup           []Exercise   `bson:"warmup" json:"warmup"`
	MainExercises    []Exercise   `bson:"mainExercises" json:"mainExercises"`
	Cooldown         []Exercise   `bson:"cooldown" json:"cooldown"`
	Reasoning        string       `bson:"reasoning" json:"reasoning"`
	Alternatives     string       `bson:"alternatives" json:"alternatives"`
	MetricsToTrack   string       `bson:"metricsToTrack" json:"metricsToTrack"`
	Phase            string       `bson:"phase" json:"phase"`
	FatigueLevel     FatigueLevel `bson:"fatigueLevel" json:"fatigueLevel"`
	ConsistencyScore float64      `bson:"consistencyScore" json:"consistencyScore"`
	AgentFocus       AgentFocus   `bson:"agentFocus" json:"agentFocus"`
}
