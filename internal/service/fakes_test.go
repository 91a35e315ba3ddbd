package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"forgeai/fitness-agent/internal/agent"
	"forgeai/fitness-agent/internal/domain"
	"forgeai/fitness-agent/internal/repository"
)

type memStates struct {
	mu      sync.Mutex
	states  map[string]domain.AppState
	seqs    map[string]uint64
	saveErr error
}

func newMemStates() *memStates {
	return &memStates{
		states: map[string]domain.AppState{},
		seqs:   map[string]uint64{},
	}
}

func (m *memStates) Load(_ context.Context, deviceID string) (domain.AppState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[deviceID]
	if !ok {
		return domain.NewAppState(), nil
	}
	return st, nil
}

func (m *memStates) Save(_ context.Context, deviceID string, state domain.AppState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.states[deviceID] = state
	return nil
}

func (m *memStates) NextSeq(_ context.Context, deviceID string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seqs[deviceID]++
	return m.seqs[deviceID], nil
}

func (m *memStates) get(deviceID string) domain.AppState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[deviceID]
}

type memProfiles struct {
	mu        sync.Mutex
	profiles  map[string]domain.UserProfile
	weightErr error
}

func newMemProfiles() *memProfiles {
	return &memProfiles{profiles: map[string]domain.UserProfile{}}
}

func (m *memProfiles) GetByUserID(_ context.Context, userID string) (*domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (m *memProfiles) Upsert(_ context.Context, profile *domain.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.UserID] = *profile
	return nil
}

func (m *memProfiles) UpdateWeight(_ context.Context, userID string, weight float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.weightErr != nil {
		return m.weightErr
	}
	p := m.profiles[userID]
	p.UserID = userID
	p.CurrentWeight = weight
	p.UpdatedAt = at
	m.profiles[userID] = p
	return nil
}

type memHistory struct {
	mu        sync.Mutex
	rows      map[string][]domain.HistoryEntry
	insertErr error
	lists     int
}

func newMemHistory() *memHistory {
	return &memHistory{rows: map[string][]domain.HistoryEntry{}}
}

func (m *memHistory) ListByUser(_ context.Context, userID string) ([]domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	return append([]domain.HistoryEntry(nil), m.rows[userID]...), nil
}

func (m *memHistory) Insert(_ context.Context, userID string, entry domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.rows[userID] = append([]domain.HistoryEntry{entry}, m.rows[userID]...)
	return nil
}

// scriptedGenerator returns plans in order and records the inputs it saw.
// before, when set, runs inside Generate to simulate work racing the call.
type scriptedGenerator struct {
	mu     sync.Mutex
	plans  []domain.WorkoutPlan
	err    error
	inputs []string
	before func()
}

func (g *scriptedGenerator) Generate(
	_ context.Context,
	userInput string,
	_ *domain.UserProfile,
	_ []domain.HistoryEntry,
	_ domain.AgentState,
) (*agent.Generation, error) {
	g.mu.Lock()
	g.inputs = append(g.inputs, userInput)
	before := g.before
	g.before = nil
	var p domain.WorkoutPlan
	if len(g.plans) > 0 {
		p, g.plans = g.plans[0], g.plans[1:]
	}
	err := g.err
	g.mu.Unlock()

	if before != nil {
		before()
	}
	if err != nil {
		return nil, err
	}
	return &agent.Generation{Plan: p, RawText: "raw:" + p.Title}, nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[string]domain.User{}}
}

func (m *memUsers) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(user.Email)
	if _, ok := m.users[key]; ok {
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	u := *user
	u.ID = primitive.NewObjectID()
	m.users[key] = u
	return u.ID, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (m *memUsers) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}
