package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"forgeai/fitness-agent/internal/domain"
)

// Defaults applied to every field the agent leaves out.
const (
	DefaultTitle          = "Agent Workout"
	DefaultReasoning      = "Optimized session generated by ForgeAI."
	DefaultAlternatives   = "None provided."
	DefaultMetricsToTrack = "RPE and completion."
	DefaultPhase          = "General Physical Preparedness"
	DefaultFatigue        = domain.FatigueMedium
	DefaultFocus          = domain.FocusExecuting

	PastWorkoutTitle = "Past Workout"
)

var ErrNoJSONObject = errors.New("agent text holds no JSON object")

// Outcome tags the result of one parsing stage.
type Outcome int

const (
	// OutcomeParsed means Plan is a complete canonical plan.
	OutcomeParsed Outcome = iota
	// OutcomeNeedsFallback means the text could not be read as a JSON
	// object locally and a re-extraction may still recover it.
	OutcomeNeedsFallback
	// OutcomeFailed is terminal.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeParsed:
		return "parsed"
	case OutcomeNeedsFallback:
		return "needs_fallback"
	default:
		return "failed"
	}
}

// Result is the outcome of a parsing stage. Err is set unless Outcome is
// OutcomeParsed.
type Result struct {
	Outcome Outcome
	Plan    domain.WorkoutPlan
	Err     error
}

// Parse reads raw agent text as a workout plan. It reports
// OutcomeNeedsFallback when no JSON object can be decoded and never
// reports OutcomeFailed itself.
func Parse(raw string) Result {
	fields, err := decodeObject(CleanAgentText(raw))
	if err != nil {
		return Result{Outcome: OutcomeNeedsFallback, Err: err}
	}
	return Result{Outcome: OutcomeParsed, Plan: BuildPlan(fields)}
}

// CleanAgentText strips markdown code fences and trims the text to the span
// between the first '{' and the last '}' when both exist.
func CleanAgentText(raw string) string {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start != -1 && end != -1 && start < end {
		cleaned = cleaned[start : end+1]
	}
	return cleaned
}

func decodeObject(text string) (map[string]any, error) {
	if text == "" {
		return nil, ErrNoJSONObject
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode agent json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode agent json: unexpected data after object")
	}
	if fields == nil {
		return nil, ErrNoJSONObject
	}
	return fields, nil
}

// BuildPlan maps a decoded JSON object onto the canonical plan. Field
// aliases absorb schema drift between agent calls; every field gets a
// default, so this never fails.
func BuildPlan(fields map[string]any) domain.WorkoutPlan {
	p := domain.WorkoutPlan{
		Title:          textOr(fields, DefaultTitle, "title"),
		Warmup:         NormalizeExercises(fields["warmup"]),
		MainExercises:  NormalizeExercises(lookup(fields, "mainExercises", "mainBlock", "main")),
		Cooldown:       NormalizeExercises(fields["cooldown"]),
		Reasoning:      textOr(fields, DefaultReasoning, "reasoning", "rationale"),
		Alternatives:   textOr(fields, DefaultAlternatives, "alternatives"),
		MetricsToTrack: textOr(fields, DefaultMetricsToTrack, "metricsToTrack"),
		Phase:          textOr(fields, DefaultPhase, "phase"),
		FatigueLevel:   ParseFatigue(fields["fatigueLevel"]),
		AgentFocus:     ParseFocus(fields["agentFocus"]),
	}
	if score, ok := number(fields["consistencyScore"]); ok {
		p.ConsistencyScore = clampScore(score)
	}
	return p
}

// Complete fills empty fields of an already typed plan with the same
// defaults BuildPlan uses.
func Complete(p domain.WorkoutPlan) domain.WorkoutPlan {
	if strings.TrimSpace(p.Title) == "" {
		p.Title = DefaultTitle
	}
	if p.Warmup == nil {
		p.Warmup = []domain.Exercise{}
	}
	if p.MainExercises == nil {
		p.MainExercises = []domain.Exercise{}
	}
	if p.Cooldown == nil {
		p.Cooldown = []domain.Exercise{}
	}
	if p.Reasoning == "" {
		p.Reasoning = DefaultReasoning
	}
	if p.Alternatives == "" {
		p.Alternatives = DefaultAlternatives
	}
	if p.MetricsToTrack == "" {
		p.MetricsToTrack = DefaultMetricsToTrack
	}
	if p.Phase == "" {
		p.Phase = DefaultPhase
	}
	if !p.FatigueLevel.IsValid() {
		p.FatigueLevel = ParseFatigue(string(p.FatigueLevel))
	}
	if !p.AgentFocus.IsValid() {
		p.AgentFocus = ParseFocus(string(p.AgentFocus))
	}
	p.ConsistencyScore = clampScore(p.ConsistencyScore)
	return p
}

// PastWorkout is the placeholder for history rows stored without detail.
func PastWorkout() domain.WorkoutPlan {
	return Complete(domain.WorkoutPlan{Title: PastWorkoutTitle})
}

// ParseFatigue maps free text onto a fatigue level, defaulting to medium.
func ParseFatigue(v any) domain.FatigueLevel {
	s, _ := scalarText(v)
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "high"):
		return domain.FatigueHigh
	case strings.Contains(s, "low"):
		return domain.FatigueLow
	case strings.Contains(s, "med"), strings.Contains(s, "moderate"):
		return domain.FatigueMedium
	default:
		return DefaultFatigue
	}
}

// ParseFocus maps free text ("Execution", "adapting", ...) onto an agent
// focus, defaulting to Executing.
func ParseFocus(v any) domain.AgentFocus {
	s, _ := scalarText(v)
	s = strings.ToLower(s)
	switch {
	case strings.HasPrefix(s, "plan"):
		return domain.FocusPlanning
	case strings.HasPrefix(s, "exec"):
		return domain.FocusExecuting
	case strings.HasPrefix(s, "eval"):
		return domain.FocusEvaluating
	case strings.HasPrefix(s, "adapt"):
		return domain.FocusAdapting
	default:
		return DefaultFocus
	}
}

func textOr(fields map[string]any, def string, keys ...string) string {
	for _, k := range keys {
		if s, ok := freeText(fields[k]); ok {
			return s
		}
	}
	return def
}

func clampScore(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	return math.Max(0, math.Min(100, score))
}
