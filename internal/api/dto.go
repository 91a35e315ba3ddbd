package api

import (
	"time"

	"forgeai/fitness-agent/internal/domain"
)

// --- Request/Response Structs ---

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UserResponse excludes sensitive info like password hash
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type AgentRequest struct {
	Prompt string `json:"prompt"`
	// APIKey is accepted for compatibility and ignored; the server key is used.
	APIKey string `json:"apiKey,omitempty"`
}

type OnboardingRequest struct {
	Goal          string   `json:"goal" binding:"required"`
	Equipment     []string `json:"equipment"`
	Level         string   `json:"level"`
	Availability  string   `json:"availability"`
	Limitations   string   `json:"limitations"`
	InitialWeight float64  `json:"initialWeight"`
	TargetWeight  float64  `json:"targetWeight"`
	Unit          string   `json:"unit"`
}

type NextWorkoutRequest struct {
	Context string `json:"context"`
}

type FinishRequest struct {
	Status     domain.SessionStatus `json:"status" binding:"required"`
	Feedback   string               `json:"feedback"`
	Difficulty int                  `json:"difficulty" binding:"required"`
}

type WeightRequest struct {
	Weight float64 `json:"weight" binding:"required"`
}

type ThemeRequest struct {
	Theme domain.Theme `json:"theme" binding:"required"`
}

// StateResponse is the working state as the client sees it.
type StateResponse struct {
	Profile           *domain.UserProfile   `json:"profile"`
	History           []domain.HistoryEntry `json:"history"`
	CurrentWorkout    *domain.WorkoutPlan   `json:"currentWorkout"`
	GlobalPhase       string                `json:"globalPhase"`
	GlobalConsistency int                   `json:"globalConsistency"`
	GlobalFatigue     domain.FatigueLevel   `json:"globalFatigue"`
	CurrentWeight     float64               `json:"currentWeight"`
}

type PlanResponse struct {
	State   StateResponse `json:"state"`
	RawText string        `json:"rawText"`
}

type FinishResponse struct {
	State        StateResponse       `json:"state"`
	Entry        domain.HistoryEntry `json:"entry"`
	HistorySaved bool                `json:"historySaved"`
}

// MapUserToResponse converts a domain User to a UserResponse DTO.
func MapUserToResponse(user *domain.User) UserResponse {
	if user == nil {
		return UserResponse{}
	}
	return UserResponse{
		ID:        user.ID.Hex(),
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}

func MapStateToResponse(st domain.AppState) StateResponse {
	history := st.History
	if history == nil {
		history = []domain.HistoryEntry{}
	}
	return StateResponse{
		Profile:           st.Profile,
		History:           history,
		CurrentWorkout:    st.CurrentWorkout,
		GlobalPhase:       st.Phase,
		GlobalConsistency: st.Consistency,
		GlobalFatigue:     st.Fatigue,
		CurrentWeight:     st.CurrentWeight,
	}
}

func (r OnboardingRequest) toProfile() domain.UserProfile {
	return domain.UserProfile{
		Goal:          r.Goal,
		Equipment:     r.Equipment,
		Level:         domain.FitnessLevel(r.Level),
		Availability:  r.Availability,
		Limitations:   r.Limitations,
		InitialWeight: r.InitialWeight,
		TargetWeight:  r.TargetWeight,
		Unit:          domain.WeightUnit(r.Unit),
	}
}
