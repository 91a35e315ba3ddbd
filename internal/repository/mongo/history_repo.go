package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"forgeai/fitness-agent/internal/domain"
	"forgeai/fitness-agent/internal/plan"
	"forgeai/fitness-agent/internal/repository"
)

const historyCollectionName = "workout_history"

// historyDocument is one stored session. Older rows carry no workout detail.
type historyDocument struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty"`
	UserID     string               `bson:"userId"`
	Date       time.Time            `bson:"date"`
	Status     domain.SessionStatus `bson:"status"`
	Difficulty int                  `bson:"difficulty"`
	Feedback   string               `bson:"feedback"`
	Workout    *domain.WorkoutPlan  `bson:"workout,omitempty"`
}

func (d historyDocument) toEntry() domain.HistoryEntry {
	workout := plan.PastWorkout()
	if d.Workout != nil {
		workout = plan.Complete(*d.Workout)
	}
	return domain.HistoryEntry{
		Date:       d.Date.UTC(),
		Workout:    workout,
		Status:     d.Status,
		Feedback:   d.Feedback,
		Difficulty: d.Difficulty,
	}
}

type mongoHistoryRepository struct {
	collection *mongo.Collection
}

func NewMongoHistoryRepository(db *mongo.Database) repository.HistoryRepository {
	return &mongoHistoryRepository{
		collection: db.Collection(historyCollectionName),
	}
}

func (r *mongoHistoryRepository) ListByUser(ctx context.Context, userID string) ([]domain.HistoryEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find history for %s: %w", userID, err)
	}
	defer cursor.Close(ctx)

	var docs []historyDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode history for %s: %w", userID, err)
	}

	entries := make([]domain.HistoryEntry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, d.toEntry())
	}
	return entries, nil
}

func (r *mongoHistoryRepository) Insert(ctx context.Context, userID string, entry domain.HistoryEntry) error {
	if userID == "" {
		return errors.New("history user id is required")
	}

	workout := entry.Workout
	doc := historyDocument{
		ID:         primitive.NewObjectID(),
		UserID:     userID,
		Date:       entry.Date.UTC(),
		Status:     entry.Status,
		Difficulty: entry.Difficulty,
		Feedback:   entry.Feedback,
		Workout:    &workout,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert history for %s: %w", userID, err)
	}
	return nil
}

func EnsureHistoryIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: -1}},
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create indexes for %s: %w", collection.Name(), err)
	}
	return nil
}
