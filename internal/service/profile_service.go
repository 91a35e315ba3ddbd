package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"forgeai/fitness-agent/internal/domain"
	"forgeai/fitness-agent/internal/repository"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidProfile  = errors.New("invalid profile")
)

type ProfileService interface {
	GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
	SaveOnboarding(ctx context.Context, profile *domain.UserProfile) error
	UpdateWeight(ctx context.Context, userID string, weight float64) error
}

type profileService struct {
	profileRepo repository.ProfileRepository
	now         func() time.Time
}

func NewProfileService(profileRepo repository.ProfileRepository) ProfileService {
	return &profileService{
		profileRepo: profileRepo,
		now:         time.Now,
	}
}

func (s *profileService) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	p, err := s.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *profileService) SaveOnboarding(ctx context.Context, profile *domain.UserProfile) error {
	profile.UpdatedAt = s.now().UTC()
	return s.profileRepo.Upsert(ctx, profile)
}

func (s *profileService) UpdateWeight(ctx context.Context, userID string, weight float64) error {
	return s.profileRepo.UpdateWeight(ctx, userID, weight, s.now())
}

// NormalizeProfile validates onboarding input and fills optional fields.
func NormalizeProfile(p *domain.UserProfile) error {
	p.Goal = strings.TrimSpace(p.Goal)
	if p.Goal == "" {
		return fmt.Errorf("%w: goal is required", ErrInvalidProfile)
	}

	switch p.Level {
	case domain.LevelBeginner, domain.LevelIntermediate, domain.LevelAdvanced:
	case "":
		p.Level = domain.LevelBeginner
	default:
		return fmt.Errorf("%w: unknown level %q", ErrInvalidProfile, p.Level)
	}

	switch p.Unit {
	case domain.UnitKg, domain.UnitLbs:
	case "":
		p.Unit = domain.UnitKg
	default:
		return fmt.Errorf("%w: unknown unit %q", ErrInvalidProfile, p.Unit)
	}

	if p.InitialWeight < 0 || p.TargetWeight < 0 {
		return fmt.Errorf("%w: weights cannot be negative", ErrInvalidProfile)
	}
	if p.Equipment == nil {
		p.Equipment = []string{}
	}
	p.CurrentWeight = p.InitialWeight
	return nil
}
