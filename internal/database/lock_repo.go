package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dandantas/tasyrunner/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LockRepository hands out named leases so periodic tasks run on a single
// instance at a time
type LockRepository struct {
	collection *mongo.Collection
}

// NewLockRepository creates a new lock repository
func NewLockRepository(db *MongoDB) *LockRepository {
	return &LockRepository{
		collection: db.GetCollection(CollectionScheduleLocks),
	}
}

// AcquireLock takes the named lease for ttl. It returns false when another
// instance holds an unexpired lease.
func (r *LockRepository) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	filter := bson.M{
		"name": name,
		"$or": []bson.M{
			{"expires_at": bson.M{"$lt": now}},
			{"expires_at": bson.M{"$exists": false}},
			{"locked_by": owner},
		},
	}

	update := bson.M{
		"$set": bson.M{
			"name":       name,
			"locked_by":  owner,
			"locked_at":  now,
			"expires_at": expiresAt,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result model.ScheduleLock
	err := r.collection.FindOneAndUpdate(ctxTimeout, filter, update, opts).Decode(&result)
	if err != nil {
		// The upsert collides with the unique index while someone else holds it
		if errors.Is(err, mongo.ErrNoDocuments) || mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if result.LockedBy != owner {
		return false, nil
	}

	slog.Debug("Acquired lock",
		"lock", name,
		"owner", owner,
		"expires_at", expiresAt,
	)

	return true, nil
}

// ReleaseLock drops the lease if owner still holds it
func (r *LockRepository) ReleaseLock(ctx context.Context, name, owner string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.collection.DeleteOne(ctxTimeout, bson.M{
		"name":      name,
		"locked_by": owner,
	})
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	if result.DeletedCount > 0 {
		slog.Debug("Released lock", "lock", name, "owner", owner)
	}

	return nil
}

// ReleaseAllLocks drops every lease held by owner. Called during shutdown.
func (r *LockRepository) ReleaseAllLocks(ctx context.Context, owner string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.collection.DeleteMany(ctxTimeout, bson.M{"locked_by": owner})
	if err != nil {
		return fmt.Errorf("failed to release all locks: %w", err)
	}

	if result.DeletedCount > 0 {
		slog.Info("Released all locks during shutdown",
			"owner", owner,
			"count", result.DeletedCount,
		)
	}

	return nil
}
