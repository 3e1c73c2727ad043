package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	blockederrors "reservio/internal/blockedtimes/errors"
	"reservio/pkg/config"
	mongotx "reservio/pkg/db/mongo"
	"reservio/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "Blocked_times"

type BlockedTimeRepository interface {
	Create(ctx context.Context, blocked *model.BlockedTime) error
	FindByID(ctx context.Context, id string) (*model.BlockedTime, error)
	FindByResource(ctx context.Context, resourceID string, limit int, offset int64) ([]*model.BlockedTime, error)
	CountByResource(ctx context.Context, resourceID string) (int64, error)
	// FindOverlapping returns blocked windows on the resource intersecting
	// the half-open interval [start, end).
	FindOverlapping(ctx context.Context, resourceID string, start, end time.Time) ([]*model.BlockedTime, error)
	Delete(ctx context.Context, id string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoBlockedTimeRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBlockedTimeRepository(cfg *config.Config) BlockedTimeRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBlockedTimeRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoBlockedTimeRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBlockedTimeRepository) Create(ctx context.Context, blocked *model.BlockedTime) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	blocked.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	result, err := r.collection.InsertOne(ctx, blocked)
	if err != nil {
		return fmt.Errorf("failed to create blocked time: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		blocked.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBlockedTimeRepository) FindByID(ctx context.Context, id string) (*model.BlockedTime, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", blockederrors.ErrInvalidID, id)
	}

	var blocked model.BlockedTime
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&blocked)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, blockederrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find blocked time: %w", err)
	}

	return &blocked, nil
}

func (r *mongoBlockedTimeRepository) FindByResource(ctx context.Context, resourceID string, limit int, offset int64) ([]*model.BlockedTime, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{"resource_id": resourceID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find blocked times: %w", err)
	}
	defer cursor.Close(ctx)

	var blocked []*model.BlockedTime
	if err = cursor.All(ctx, &blocked); err != nil {
		return nil, fmt.Errorf("failed to decode blocked times: %w", err)
	}

	return blocked, nil
}

func (r *mongoBlockedTimeRepository) CountByResource(ctx context.Context, resourceID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"resource_id": resourceID})
	if err != nil {
		return 0, fmt.Errorf("failed to count blocked times: %w", err)
	}
	return count, nil
}

func (r *mongoBlockedTimeRepository) FindOverlapping(ctx context.Context, resourceID string, start, end time.Time) ([]*model.BlockedTime, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"resource_id": resourceID,
		"start_time":  bson.M{"$lt": end},
		"end_time":    bson.M{"$gt": start},
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping blocked times: %w", err)
	}
	defer cursor.Close(ctx)

	var blocked []*model.BlockedTime
	if err = cursor.All(ctx, &blocked); err != nil {
		return nil, fmt.Errorf("failed to decode blocked times: %w", err)
	}

	return blocked, nil
}

func (r *mongoBlockedTimeRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", blockederrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete blocked time: %w", err)
	}

	if result.DeletedCount == 0 {
		return blockederrors.ErrNotFound
	}

	return nil
}

func (r *mongoBlockedTimeRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
