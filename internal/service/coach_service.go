package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"forgeai/fitness-agent/internal/agent"
	"forgeai/fitness-agent/internal/domain"
	"forgeai/fitness-agent/internal/metrics"
	"forgeai/fitness-agent/internal/reconcile"
	"forgeai/fitness-agent/internal/repository"
)

var (
	ErrOnboardingRequired = errors.New("onboarding has not been completed")
	ErrWeightNotSaved     = errors.New("weight updated locally but could not be saved")
)

// StateStore keeps the working state of each device between requests.
type StateStore interface {
	Load(ctx context.Context, deviceID string) (domain.AppState, error)
	Save(ctx context.Context, deviceID string, state domain.AppState) error
	// NextSeq returns a device-wide, strictly increasing generation number.
	NextSeq(ctx context.Context, deviceID string) (uint64, error)
}

// PlanGenerator turns agent replies into workout plans.
type PlanGenerator interface {
	Generate(
		ctx context.Context,
		userInput string,
		profile *domain.UserProfile,
		history []domain.HistoryEntry,
		state domain.AgentState,
	) (*agent.Generation, error)
}

// PlanResult is the working state after a plan was applied, with the agent
// text the plan was structured from.
type PlanResult struct {
	State   domain.AppState
	RawText string
}

// FinishResult is the working state after a session was recorded.
// HistorySaved is false when the entry exists only in the working state.
type FinishResult struct {
	State        domain.AppState
	Entry        domain.HistoryEntry
	HistorySaved bool
}

// CoachService drives the coaching loop of one device for one user.
type CoachService interface {
	State(ctx context.Context, deviceID, identity string) (domain.AppState, error)
	Onboard(ctx context.Context, deviceID, identity string, profile domain.UserProfile) (*PlanResult, error)
	NextWorkout(ctx context.Context, deviceID, identity, userContext string) (*PlanResult, error)
	Finish(ctx context.Context, deviceID, identity string, status domain.SessionStatus, feedback string, difficulty int) (*FinishResult, error)
	UpdateWeight(ctx context.Context, deviceID, identity string, weight float64) (domain.AppState, error)
	History(ctx context.Context, deviceID, identity string) ([]domain.HistoryEntry, error)
	SignOut(ctx context.Context, deviceID, identity string) error
}

type coachService struct {
	states         StateStore
	profiles       ProfileService
	history        repository.HistoryRepository
	generator      PlanGenerator
	metricsManager *metrics.Manager
	now            func() time.Time
}

func NewCoachService(
	states StateStore,
	profiles ProfileService,
	history repository.HistoryRepository,
	generator PlanGenerator,
	metricsManager *metrics.Manager,
) CoachService {
	return &coachService{
		states:         states,
		profiles:       profiles,
		history:        history,
		generator:      generator,
		metricsManager: metricsManager,
		now:            time.Now,
	}
}

// open loads the working state of the device and reconciles it with identity.
func (s *coachService) open(ctx context.Context, deviceID, identity string) (*reconcile.Session, error) {
	st, err := s.states.Load(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("load working state: %w", err)
	}

	sess := reconcile.NewSession(st, s.history)
	res, err := sess.LoadForIdentity(ctx, identity)
	if res.Discarded {
		s.metricsManager.CounterStateDiscards.Inc()
	}
	if err != nil {
		if res.Discarded || res.Cleared {
			s.save(ctx, deviceID, sess)
		}
		return nil, err
	}

	if identity != "" && (res.Fetched || sess.State().Profile == nil) {
		if err := s.syncProfile(ctx, sess, identity); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

func (s *coachService) syncProfile(ctx context.Context, sess *reconcile.Session, identity string) error {
	p, err := s.profiles.GetProfile(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil
		}
		return fmt.Errorf("fetch profile: %w", err)
	}
	return sess.SyncProfile(identity, p)
}

func (s *coachService) save(ctx context.Context, deviceID string, sess *reconcile.Session) {
	if err := s.states.Save(ctx, deviceID, sess.State()); err != nil {
		log.Errorf("save working state for device %s: %s", deviceID, err)
	}
}

func (s *coachService) State(ctx context.Context, deviceID, identity string) (domain.AppState, error) {
	sess, err := s.open(ctx, deviceID, identity)
	if err != nil {
		return domain.AppState{}, err
	}
	s.save(ctx, deviceID, sess)
	return sess.State(), nil
}

func (s *coachService) Onboard(ctx context.Context, deviceID, identity string, profile domain.UserProfile) (*PlanResult, error) {
	if err := NormalizeProfile(&profile); err != nil {
		return nil, err
	}
	profile.UserID = identity

	sess, err := s.open(ctx, deviceID, identity)
	if err != nil {
		return nil, err
	}
	seq, err := s.states.NextSeq(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("next generation seq: %w", err)
	}

	// a new profile starts from an empty history
	gen, err := s.generator.Generate(ctx, agent.OnboardingInput(profile), &profile, nil, sess.State().AgentState())
	if err != nil {
		return nil, err
	}

	sess, err = s.open(ctx, deviceID, identity)
	if err != nil {
		return nil, err
	}
	if err := sess.ApplyOnboarding(identity, seq, profile, gen.Plan); err != nil {
		return nil, s.applyFailed(deviceID, err)
	}

	if err := s.profiles.SaveOnboarding(ctx, &profile); err != nil {
		log.Errorf("save profile for %s: %s", identity, err)
	}
	s.save(ctx, deviceID, sess)

	return &PlanResult{State: sess.State(), RawText: gen.RawText}, nil
}

func (s *coachService) NextWorkout(ctx context.Context, deviceID, identity, userContext string) (*PlanResult, error) {
	sess, err := s.open(ctx, deviceID, identity)
	if err != nil {
		return nil, err
	}
	st := sess.State()
	if !st.Profile.IsComplete() {
		return nil, ErrOnboardingRequired
	}

	seq, err := s.states.NextSeq(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("next generation seq: %w", err)
	}

	gen, err := s.generator.Generate(ctx, agent.NextWorkoutInput(st, userContext), st.Profile, st.History, st.AgentState())
	if err != nil {
		return nil, err
	}

	// the agent call is slow; apply against whatever the device holds now
	sess, err = s.open(ctx, deviceID, identity)
	if err != nil {
		return nil, err
	}
	if err := sess.ApplyNewPlan(identity, seq, gen.Plan); err != nil {
		return nil, s.applyFailed(deviceID, err)
	}
	s.save(ctx, deviceID, sess)

	return &PlanResult{State: sess.State(), RawText: gen.RawText}, nil
}

func (s *coachService) applyFailed(deviceID string, err error) error {
	if errors.Is(err, reconcile.ErrStalePlan) {
		s.metricsManager.CounterStalePlans.Inc()
		log.Warnf("dropping stale plan for device %s", deviceID)
	}
	return err
}

func (s *coachService) Finish(
	ctx context.Context,
	deviceID, identity string,
	status domain.SessionStatus,
	feedback string,
	difficulty int,
) (*FinishResult, error) {
	sess, err := s.open(ctx, deviceID, identity)
	if err != nil {
		return nil, err
	}

	res, err := sess.RecordHistoryEntry(ctx, identity, status, feedback, difficulty, s.now())
	if err != nil {
		return nil, err
	}
	s.save(ctx, deviceID, sess)

	return &FinishResult{
		State:        sess.State(),
		Entry:        res.Entry,
		HistorySaved: res.PersistErr == nil,
	}, nil
}

// UpdateWeight changes the working weight first and then persists it. When
// persisting fails the working state keeps the new weight and
// ErrWeightNotSaved is returned with it.
func (s *coachService) UpdateWeight(ctx context.Context, deviceID, identity string, weight float64) (domain.AppState, error) {
	sess, err := s.open(ctx, deviceID, identity)
	if err != nil {
		return domain.AppState{}, err
	}
	if err := sess.SetWeight(identity, weight); err != nil {
		return domain.AppState{}, err
	}
	s.save(ctx, deviceID, sess)

	if err := s.profiles.UpdateWeight(ctx, identity, weight); err != nil {
		log.Errorf("save weight for %s: %s", identity, err)
		return sess.State(), fmt.Errorf("%w: %w", ErrWeightNotSaved, err)
	}
	return sess.State(), nil
}

func (s *coachService) History(ctx context.Context, deviceID, identity string) ([]domain.HistoryEntry, error) {
	sess, err := s.open(ctx, deviceID, identity)
	if err != nil {
		return nil, err
	}
	s.save(ctx, deviceID, sess)
	return sess.State().History, nil
}

// SignOut drops the personal data held for the device. Only the owner of
// the working state may clear it. The applied sequence number survives.
func (s *coachService) SignOut(ctx context.Context, deviceID, identity string) error {
	st, err := s.states.Load(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("load working state: %w", err)
	}
	if st.Profile != nil && st.Profile.UserID != identity {
		return reconcile.ErrNotOwner
	}
	sess := reconcile.NewSession(st, s.history)
	sess.Clear()
	return s.states.Save(ctx, deviceID, sess.State())
}
