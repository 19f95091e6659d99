package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dandantas/tasyrunner/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// jobDocument is the stored form of a job. Results are embedded so that a
// result append and the counter increment are one atomic update.
type jobDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	model.Job `bson:",inline"`
}

func (d *jobDocument) toModel() *model.Job {
	job := d.Job
	job.ID = d.ID.Hex()
	return &job
}

// JobRepository is the MongoDB job ledger
type JobRepository struct {
	collection *mongo.Collection
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *MongoDB) *JobRepository {
	return &JobRepository{
		collection: db.GetCollection(CollectionJobs),
	}
}

func parseJobID(id string) (primitive.ObjectID, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, model.ErrJobNotFound
	}
	return objectID, nil
}

// CreateJob inserts job and sets its ID
func (r *JobRepository) CreateJob(ctx context.Context, job *model.Job) (string, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	doc := jobDocument{ID: primitive.NewObjectID(), Job: *job}
	if doc.Results == nil {
		doc.Results = []model.ItemResult{}
	}

	if _, err := r.collection.InsertOne(ctxTimeout, doc); err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	job.ID = doc.ID.Hex()
	return job.ID, nil
}

// AppendResult pushes res and increments completed_count in one update. The
// filter skips a result whose key is already stored and refuses jobs that are
// no longer RUNNING.
func (r *JobRepository) AppendResult(ctx context.Context, jobID string, res model.ItemResult) error {
	objectID, err := parseJobID(jobID)
	if err != nil {
		return err
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"_id": objectID, "status": model.JobRunning}
	if res.Key != "" {
		filter["results.key"] = bson.M{"$ne": res.Key}
	}
	update := bson.M{
		"$push": bson.M{"results": res},
		"$inc":  bson.M{"completed_count": 1},
		"$set":  bson.M{"heartbeat_at": time.Now().UTC()},
	}

	result, err := r.collection.UpdateOne(ctxTimeout, filter, update)
	if err != nil {
		return fmt.Errorf("failed to append result: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.unmatched(ctxTimeout, objectID, res.Key)
	}

	return nil
}

// unmatched explains why a guarded update matched nothing. A result key that
// is already stored means an earlier attempt went through.
func (r *JobRepository) unmatched(ctx context.Context, objectID primitive.ObjectID, key string) error {
	if key != "" {
		n, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID, "results.key": key})
		if err != nil {
			return fmt.Errorf("failed to check result: %w", err)
		}
		if n > 0 {
			return nil
		}
	}

	var doc struct {
		Status model.JobStatus `bson:"status"`
	}
	opts := options.FindOne().SetProjection(bson.M{"status": 1})
	if err := r.collection.FindOne(ctx, bson.M{"_id": objectID}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.ErrJobNotFound
		}
		return fmt.Errorf("failed to get job status: %w", err)
	}
	if doc.Status != model.JobRunning {
		return model.ErrJobClosed
	}
	return model.ErrJobChanged
}

// Touch refreshes heartbeat_at on a running job
func (r *JobRepository) Touch(ctx context.Context, jobID string, at time.Time) error {
	objectID, err := parseJobID(jobID)
	if err != nil {
		return err
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"_id": objectID, "status": model.JobRunning}
	result, err := r.collection.UpdateOne(ctxTimeout, filter, bson.M{"$set": bson.M{"heartbeat_at": at.UTC()}})
	if err != nil {
		return fmt.Errorf("failed to touch job: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.unmatched(ctxTimeout, objectID, "")
	}
	return nil
}

// MarkComplete moves a running job to COMPLETE
func (r *JobRepository) MarkComplete(ctx context.Context, jobID string, endedAt time.Time) error {
	objectID, err := parseJobID(jobID)
	if err != nil {
		return err
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"_id": objectID, "status": model.JobRunning}
	update := bson.M{
		"$set": bson.M{
			"status":   model.JobComplete,
			"ended_at": endedAt.UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctxTimeout, filter, update)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.unmatched(ctxTimeout, objectID, "")
	}

	return nil
}

// CloseAbandoned appends results and completes the job on behalf of by in one
// update. The
// update only applies while completed_count still equals completed, so a
// result recorded by a live owner in the meantime wins.
func (r *JobRepository) CloseAbandoned(ctx context.Context, jobID, by string, completed int, results []model.ItemResult, endedAt time.Time) error {
	objectID, err := parseJobID(jobID)
	if err != nil {
		return err
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"_id":             objectID,
		"status":          model.JobRunning,
		"completed_count": completed,
	}
	update := bson.M{
		"$set": bson.M{
			"status":    model.JobComplete,
			"ended_at":  endedAt.UTC(),
			"closed_by": by,
		},
	}
	if len(results) > 0 {
		update["$push"] = bson.M{"results": bson.M{"$each": results}}
		update["$inc"] = bson.M{"completed_count": len(results)}
	}

	result, err := r.collection.UpdateOne(ctxTimeout, filter, update)
	if err != nil {
		return fmt.Errorf("failed to close job: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.unmatched(ctxTimeout, objectID, "")
	}
	return nil
}

// GetJob retrieves a job with its items and results
func (r *JobRepository) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	objectID, err := parseJobID(jobID)
	if err != nil {
		return nil, err
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc jobDocument
	err = r.collection.FindOne(ctxTimeout, bson.M{"_id": objectID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return doc.toModel(), nil
}

// ListJobs returns jobs newest first. Items are not loaded.
func (r *JobRepository) ListJobs(ctx context.Context, filter model.JobFilter) ([]model.Job, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := bson.M{}
	if filter.Type != "" {
		query["job_type"] = filter.Type
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if !filter.Since.IsZero() {
		query["started_at"] = bson.M{"$gte": filter.Since.UTC()}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetProjection(bson.M{"items": 0})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	return r.find(ctxTimeout, query, opts)
}

// ListRunning returns every job still marked RUNNING, items included
func (r *JobRepository) ListRunning(ctx context.Context) ([]model.Job, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return r.find(ctxTimeout, bson.M{"status": model.JobRunning}, options.Find())
}

func (r *JobRepository) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]model.Job, error) {
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []jobDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode jobs: %w", err)
	}

	jobs := make([]model.Job, 0, len(docs))
	for i := range docs {
		jobs = append(jobs, *docs[i].toModel())
	}
	return jobs, nil
}

// Ping checks the database is reachable
func (r *JobRepository) Ping(ctx context.Context) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.collection.Database().Client().Ping(ctxTimeout, nil)
}
