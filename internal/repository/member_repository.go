package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rank-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var ErrNotFound = errors.New("member record not found")

type MemberRepository struct {
	collection *mongo.Collection
}

func NewMemberRepository(db *mongo.Database) *MemberRepository {
	return &MemberRepository{
		collection: db.Collection("member_records"),
	}
}

func (r *MemberRepository) CreateIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tracked_since", Value: 1}},
		Options: options.Index().SetName("tracked_since_idx"),
	})
	if err != nil {
		return fmt.Errorf("failed to create member_records indexes: %w", err)
	}
	return nil
}

// Track starts tracking a member entering probation. Inserting an already
// tracked member is a no-op so the original tracked_since survives role
// churn.
func (r *MemberRepository) Track(ctx context.Context, memberID string, now time.Time) error {
	record := models.MemberRecord{
		MemberID:     memberID,
		TrackedSince: now.Unix(),
	}
	_, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("failed to insert member record: %w", err)
	}
	return nil
}

// Untrack deletes the member's record. Deleting a missing record is not an
// error.
func (r *MemberRepository) Untrack(ctx context.Context, memberID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": memberID})
	if err != nil {
		return fmt.Errorf("failed to delete member record: %w", err)
	}
	return nil
}

func (r *MemberRepository) Find(ctx context.Context, memberID string) (*models.MemberRecord, error) {
	var record models.MemberRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": memberID}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find member record: %w", err)
	}
	return &record, nil
}

// RecordAttempt persists the outcome of a finished quiz attempt.
func (r *MemberRepository) RecordAttempt(ctx context.Context, memberID string, at time.Time, score int) error {
	update := bson.M{"$set": bson.M{
		"last_attempt": at.Unix(),
		"last_score":   score,
	}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": memberID}, update)
	if err != nil {
		return fmt.Errorf("failed to record quiz attempt: %w", err)
	}
	return nil
}
