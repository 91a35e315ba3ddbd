package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"forgeai/fitness-agent/internal/domain"
)

// HistoryContextLimit bounds how many recent sessions are sent to the agent.
const HistoryContextLimit = 7

const systemPrompt = `You are ForgeAI, an elite fitness intelligence agent.
Your goal is to construct hyper-personalized, progressive, and scientifically optimal workout plans.
Structure your response as a JSON object with:
- 'title' (short name of the session)
- 'phase' (current training phase: Hypertrophy, Strength, Metabolic, etc)
- 'rationale' (why this workout today?)
- 'warmup' (list of exercises)
- 'mainBlock' (list of compound movements with sets/reps/RPE)
- 'cooldown' (list of exercises)
- 'alternatives' (substitutions if equipment or time is missing)
- 'metricsToTrack' (what the athlete should record)
- 'fatigueLevel' (estimated CNS fatigue rating: low, medium, high)
- 'agentFocus' (one of: Planning, Executing, Evaluating, Adapting)
DO NOT use markdown formatting. Return raw JSON only.`

const reextractPrompt = `Extract the workout details from this response into a valid JSON object with this exact structure:
{
  "title": "workout title",
  "warmup": [],
  "mainExercises": [],
  "cooldown": [],
  "reasoning": "why this workout",
  "alternatives": "alternative options",
  "metricsToTrack": "what to track",
  "phase": "current phase",
  "fatigueLevel": "low",
  "consistencyScore": 0,
  "agentFocus": "Planning"
}

Response to parse:
%s

Return ONLY the raw JSON object, no markdown formatting.`

type historyLine struct {
	Date             string               `json:"date"`
	WorkoutTitle     string               `json:"workout_title"`
	Status           domain.SessionStatus `json:"status"`
	DifficultyRating int                  `json:"difficulty_rating"`
}

// BuildPrompt assembles the full agent prompt from the system instruction,
// the serialized coaching state and the free-form user input.
func BuildPrompt(userInput string, profile *domain.UserProfile, history []domain.HistoryEntry, state domain.AgentState) string {
	if profile == nil {
		profile = &domain.UserProfile{}
	}

	limitations := profile.Limitations
	if strings.TrimSpace(limitations) == "" {
		limitations = "None"
	}

	var sb strings.Builder
	sb.WriteString(systemPrompt)
	sb.WriteString("\n\nCURRENT AGENT STATE:\n")
	sb.WriteString("User Profile:\n")
	fmt.Fprintf(&sb, "- Goal: %s\n", profile.Goal)
	fmt.Fprintf(&sb, "- Level: %s\n", profile.Level)
	fmt.Fprintf(&sb, "- Equipment: %s\n", strings.Join(profile.Equipment, ", "))
	fmt.Fprintf(&sb, "- Injuries/Limitations: %s\n", limitations)
	fmt.Fprintf(&sb, "- Availability: %s\n\n", profile.Availability)
	fmt.Fprintf(&sb, "Global Phase: %s\n", state.Phase)
	fmt.Fprintf(&sb, "Consistency Score: %d%%\n", state.Consistency)
	fmt.Fprintf(&sb, "Fatigue Level: %s\n", state.Fatigue)
	sb.WriteString("Recent History:\n")
	sb.WriteString(historyContext(history))
	sb.WriteString("\n\nUSER INPUT:\n")
	sb.WriteString(userInput)

	return sb.String()
}

// historyContext renders the most recent sessions, newest first, one
// compact JSON object per line.
func historyContext(history []domain.HistoryEntry) string {
	if len(history) == 0 {
		return "None"
	}

	recent := make([]domain.HistoryEntry, len(history))
	copy(recent, history)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Date.After(recent[j].Date)
	})
	if len(recent) > HistoryContextLimit {
		recent = recent[:HistoryContextLimit]
	}

	lines := make([]string, 0, len(recent))
	for _, h := range recent {
		b, err := json.Marshal(historyLine{
			Date:             h.Date.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			WorkoutTitle:     h.Workout.Title,
			Status:           h.Status,
			DifficultyRating: h.Difficulty,
		})
		if err != nil {
			continue
		}
		lines = append(lines, string(b))
	}
	return strings.Join(lines, "\n")
}

// OnboardingInput is the user input for the first plan of a new profile.
func OnboardingInput(profile domain.UserProfile) string {
	return fmt.Sprintf(
		"Start my journey. Goal: %s. Initial weight: %s%s. Target: %s%s. Create a long-term strategy.",
		profile.Goal,
		formatWeight(profile.InitialWeight), profile.Unit,
		formatWeight(profile.TargetWeight), profile.Unit,
	)
}

// NextWorkoutInput is the user input asking for the next session. An empty
// userContext lets the agent decide on its own.
func NextWorkoutInput(state domain.AppState, userContext string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current weight: %s. Global Phase: %s. Consistency: %d%%.",
		formatWeight(state.CurrentWeight), state.Phase, state.Consistency)

	if userContext = strings.TrimSpace(userContext); userContext != "" {
		fmt.Fprintf(&sb, " USER REQUEST FOR TODAY: \"%s\". Adjust the session to strictly follow this request.", userContext)
	} else {
		sb.WriteString(" Evaluate progress and decide the next optimal session.")
	}

	if last, ok := latestEntry(state.History); ok {
		fmt.Fprintf(&sb, " Last session was %s (%s).", last.Workout.Title, last.Status)
	}
	return sb.String()
}

// ReextractPrompt asks the agent to restate raw text as strict JSON.
func ReextractPrompt(raw string) string {
	return fmt.Sprintf(reextractPrompt, raw)
}

func latestEntry(history []domain.HistoryEntry) (domain.HistoryEntry, bool) {
	if len(history) == 0 {
		return domain.HistoryEntry{}, false
	}
	latest := history[0]
	for _, h := range history[1:] {
		if h.Date.After(latest.Date) {
			latest = h
		}
	}
	return latest, true
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}
