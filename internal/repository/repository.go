package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"forgeai/fitness-agent/internal/domain"
)

// Error constants for the repository layer
var (
	ErrNotFound  = RepositoryError("not found")
	ErrDuplicate = RepositoryError("already exists")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// ProfileRepository stores one coaching profile per user.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (*domain.UserProfile, error)
	// Upsert replaces the onboarding fields of the profile, creating it if needed.
	Upsert(ctx context.Context, profile *domain.UserProfile) error
	// UpdateWeight sets only the current weight, creating the profile if needed.
	UpdateWeight(ctx context.Context, userID string, weight float64, at time.Time) error
}

// HistoryRepository is the append-only session history of each user.
type HistoryRepository interface {
	// ListByUser returns history ordered by date, newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.HistoryEntry, error)
	Insert(ctx context.Context, userID string, entry domain.HistoryEntry) error
}
