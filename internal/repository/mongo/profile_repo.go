package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"forgeai/fitness-agent/internal/domain"
	"forgeai/fitness-agent/internal/repository"
)

const profileCollectionName = "user_profiles"

type mongoProfileRepository struct {
	collection *mongo.Collection
}

func NewMongoProfileRepository(db *mongo.Database) repository.ProfileRepository {
	return &mongoProfileRepository{
		collection: db.Collection(profileCollectionName),
	}
}

func (r *mongoProfileRepository) GetByUserID(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	err := r.collection.FindOne(ctx, bson.M{"userId": userID}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (r *mongoProfileRepository) Upsert(ctx context.Context, profile *domain.UserProfile) error {
	if profile.UserID == "" {
		return errors.New("profile user id is required")
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = time.Now().UTC()
	}

	update := bson.M{
		"$set": bson.M{
			"goal":          profile.Goal,
			"equipment":     profile.Equipment,
			"level":         profile.Level,
			"availability":  profile.Availability,
			"limitations":   profile.Limitations,
			"initialWeight": profile.InitialWeight,
			"targetWeight":  profile.TargetWeight,
			"currentWeight": profile.CurrentWeight,
			"unit":          profile.Unit,
			"updatedAt":     profile.UpdatedAt,
		},
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"userId": profile.UserID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", profile.UserID, err)
	}
	return nil
}

func (r *mongoProfileRepository) UpdateWeight(ctx context.Context, userID string, weight float64, at time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"currentWeight": weight,
			"updatedAt":     at.UTC(),
		},
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"userId": userID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("update weight for %s: %w", userID, err)
	}
	return nil
}

func EnsureProfileIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create indexes for %s: %w", collection.Name(), err)
	}
	return nil
}
