package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"forgeai/fitness-agent/internal/domain"
)

// HistoryStore is the persisted, append-only history stream.
type HistoryStore interface {
	// ListByUser returns the user's history ordered by date, newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.HistoryEntry, error)
	Insert(ctx context.Context, userID string, entry domain.HistoryEntry) error
}

// LoadResult describes what LoadForIdentity did.
type LoadResult struct {
	Cleared   bool // personal data removed on sign-out
	Discarded bool // state of another identity, or orphaned data, dropped
	Fetched   bool // history re-read from the store
}

// FinishResult is the outcome of recording a session. PersistErr is set when
// the local update succeeded but the store write did not.
type FinishResult struct {
	Entry      domain.HistoryEntry
	PersistErr error
}

// Session owns the working state of one device. Every transition replaces
// the fields it owns; no transition leaves a partial update behind.
type Session struct {
	mu      sync.Mutex
	state   domain.AppState
	history HistoryStore
}

func NewSession(state domain.AppState, history HistoryStore) *Session {
	if state.History == nil {
		state.History = []domain.HistoryEntry{}
	}
	return &Session{
		state:   state,
		history: history,
	}
}

// State returns a snapshot that shares nothing mutable with the session.
func (s *Session) State() domain.AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.state)
}

// LoadForIdentity reconciles the working state with the authenticated
// identity. An empty identity means signed out.
func (s *Session) LoadForIdentity(ctx context.Context, identity string) (LoadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res LoadResult
	if identity == "" {
		if s.state.HasPersonalData() {
			s.reset()
			res.Cleared = true
		}
		return res, nil
	}

	switch {
	case s.state.Profile != nil && s.state.Profile.UserID != identity:
		log.Infof("working state owned by %s, discarding for %s", s.state.Profile.UserID, identity)
		s.reset()
		res.Discarded = true
	case s.state.Profile == nil && (len(s.state.History) > 0 || s.state.CurrentWorkout != nil):
		log.Infof("orphaned working state, discarding for %s", identity)
		s.reset()
		res.Discarded = true
	case len(s.state.History) > 0:
		return res, nil
	}

	rows, err := s.history.ListByUser(ctx, identity)
	if err != nil {
		return res, fmt.Errorf("fetch history: %w", err)
	}
	if rows == nil {
		rows = []domain.HistoryEntry{}
	}
	s.state.History = rows
	s.state.Consistency = domain.ConsistencyScore(rows)
	res.Fetched = true
	return res, nil
}

// Clear drops all personal data. AppliedSeq survives so that a plan
// requested before sign-out can never be applied over a newer one.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// SyncProfile replaces the working profile with one fetched for identity.
// A weight already recorded for the same identity is kept: it may be newer
// than the stored profile when the last weight write failed.
func (s *Session) SyncProfile(identity string, profile *domain.UserProfile) error {
	if profile == nil || profile.UserID != identity {
		return ErrNotOwner
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owned := s.state.Profile != nil && s.state.Profile.UserID == identity
	p := *profile
	p.Equipment = append([]string(nil), profile.Equipment...)
	s.state.Profile = &p

	switch {
	case owned && s.state.CurrentWeight > 0:
	case p.CurrentWeight > 0:
		s.state.CurrentWeight = p.CurrentWeight
	case p.InitialWeight > 0:
		s.state.CurrentWeight = p.InitialWeight
	}
	return nil
}

// SetWeight records a new body weight in the working state.
func (s *Session) SetWeight(identity string, weight float64) error {
	if weight <= 0 {
		return ErrInvalidWeight
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ownedBy(identity) {
		return ErrNotOwner
	}
	s.state.CurrentWeight = weight
	return nil
}

// ApplyNewPlan installs a generated plan as the current workout. seq must
// come from a monotonic source shared by all requests of the device; results
// of requests older than the last applied one are rejected.
func (s *Session) ApplyNewPlan(identity string, seq uint64, plan domain.WorkoutPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkApply(identity, seq); err != nil {
		return err
	}

	s.state.CurrentWorkout = &plan
	if plan.Phase != "" {
		s.state.Phase = plan.Phase
	}
	if plan.FatigueLevel.IsValid() {
		s.state.Fatigue = plan.FatigueLevel
	}
	s.state.AppliedSeq = seq
	return nil
}

// ApplyOnboarding installs a new profile together with its first plan.
func (s *Session) ApplyOnboarding(identity string, seq uint64, profile domain.UserProfile, plan domain.WorkoutPlan) error {
	if profile.UserID != identity {
		return ErrNotOwner
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Profile != nil && s.state.Profile.UserID != identity {
		return ErrNotOwner
	}
	if seq <= s.state.AppliedSeq {
		return ErrStalePlan
	}

	profile.Equipment = append([]string(nil), profile.Equipment...)
	s.state.Profile = &profile
	s.state.CurrentWorkout = &plan
	s.state.Phase = plan.Phase
	s.state.Consistency = 0
	s.state.CurrentWeight = profile.InitialWeight
	s.state.AppliedSeq = seq
	return nil
}

// RecordHistoryEntry finishes or aborts the current workout. The entry is
// prepended to the working history and then persisted; a failed write is
// reported in the result but does not undo the local update.
func (s *Session) RecordHistoryEntry(
	ctx context.Context,
	identity string,
	status domain.SessionStatus,
	feedback string,
	difficulty int,
	now time.Time,
) (FinishResult, error) {
	if !status.IsValid() {
		return FinishResult{}, ErrInvalidStatus
	}
	if difficulty < domain.MinDifficulty || difficulty > domain.MaxDifficulty {
		return FinishResult{}, ErrInvalidDifficulty
	}

	s.mu.Lock()
	if !s.ownedBy(identity) {
		s.mu.Unlock()
		return FinishResult{}, ErrNotOwner
	}
	if s.state.CurrentWorkout == nil {
		s.mu.Unlock()
		return FinishResult{}, ErrNoActiveWorkout
	}

	entry := domain.HistoryEntry{
		Date:       now.UTC(),
		Workout:    *s.state.CurrentWorkout,
		Status:     status,
		Feedback:   feedback,
		Difficulty: difficulty,
	}

	history := make([]domain.HistoryEntry, 0, len(s.state.History)+1)
	history = append(history, entry)
	history = append(history, s.state.History...)

	s.state.History = history
	s.state.Consistency = domain.ConsistencyScore(history)
	s.state.CurrentWorkout = nil
	s.mu.Unlock()

	res := FinishResult{Entry: entry}
	if err := s.history.Insert(ctx, identity, entry); err != nil {
		log.Errorf("save history entry for %s: %s", identity, err)
		res.PersistErr = err
	}
	return res, nil
}

func (s *Session) ownedBy(identity string) bool {
	return identity != "" && s.state.Profile != nil && s.state.Profile.UserID == identity
}

func (s *Session) checkApply(identity string, seq uint64) error {
	if !s.ownedBy(identity) {
		return ErrNotOwner
	}
	if seq <= s.state.AppliedSeq {
		return ErrStalePlan
	}
	return nil
}

func (s *Session) reset() {
	fresh := domain.NewAppState()
	fresh.AppliedSeq = s.state.AppliedSeq
	s.state = fresh
}

func snapshot(st domain.AppState) domain.AppState {
	out := st
	out.History = append(make([]domain.HistoryEntry, 0, len(st.History)), st.History...)
	if st.Profile != nil {
		p := *st.Profile
		p.Equipment = append([]string(nil), st.Profile.Equipment...)
		out.Profile = &p
	}
	if st.CurrentWorkout != nil {
		w := *st.CurrentWorkout
		out.CurrentWorkout = &w
	}
	return out
}
