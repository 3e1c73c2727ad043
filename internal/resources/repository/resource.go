package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	resourceserrors "reservio/internal/resources/errors"
	"reservio/pkg/config"
	mongotx "reservio/pkg/db/mongo"
	"reservio/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Resources"

	reservationsCollection = "Reservations"
	blockedTimesCollection = "Blocked_times"
)

type ResourceRepository interface {
	Create(ctx context.Context, resource *model.Resource) error
	FindByID(ctx context.Context, id string) (*model.Resource, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Resource, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id string, resource *model.Resource) error
	Delete(ctx context.Context, id string) error
	// FindActiveForUpdate reads the resource inside a transaction while
	// bumping its lock version, so two transactions touching the same
	// resource conflict at commit instead of proceeding independently.
	FindActiveForUpdate(ctx context.Context, id string) (*model.Resource, error)
	DeleteReservationsByResource(ctx context.Context, resourceID string) (int64, error)
	DeleteBlockedTimesByResource(ctx context.Context, resourceID string) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoResourceRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoResourceRepository(cfg *config.Config) ResourceRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoResourceRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout bounds the operation unless we are already inside a transaction.
// A SessionContext cannot be wrapped without breaking transaction semantics.
func (r *mongoResourceRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoResourceRepository) Create(ctx context.Context, resource *model.Resource) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	resource.CreatedAt = now
	resource.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, resource)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		resource.ID = oid.Hex()
	}
	return nil
}

func (r *mongoResourceRepository) FindByID(ctx context.Context, id string) (*model.Resource, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", resourceserrors.ErrInvalidID, id)
	}

	var resource model.Resource
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&resource)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, resourceserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find resource: %w", err)
	}

	return &resource, nil
}

func (r *mongoResourceRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Resource, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find resources: %w", err)
	}
	defer cursor.Close(ctx)

	var resources []*model.Resource
	if err = cursor.All(ctx, &resources); err != nil {
		return nil, fmt.Errorf("failed to decode resources: %w", err)
	}

	return resources, nil
}

func (r *mongoResourceRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count resources: %w", err)
	}
	return count, nil
}

func (r *mongoResourceRepository) Update(ctx context.Context, id string, resource *model.Resource) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", resourceserrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"name":        resource.Name,
			"description": resource.Description,
			"is_active":   resource.IsActive,
			"updated_at":  time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update resource: %w", err)
	}

	if result.MatchedCount == 0 {
		return resourceserrors.ErrNotFound
	}

	return nil
}

func (r *mongoResourceRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", resourceserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}

	if result.DeletedCount == 0 {
		return resourceserrors.ErrNotFound
	}

	return nil
}

func (r *mongoResourceRepository) FindActiveForUpdate(ctx context.Context, id string) (*model.Resource, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", resourceserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "is_active": true}
	update := bson.M{"$inc": bson.M{"lock_version": 1}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var resource model.Resource
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&resource)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Either the resource does not exist or it was deactivated.
			_, findErr := r.FindByID(ctx, id)
			if findErr == nil {
				return nil, resourceserrors.ErrInactive
			}
			if errors.Is(findErr, resourceserrors.ErrNotFound) {
				return nil, resourceserrors.ErrNotFound
			}
			return nil, findErr
		}
		return nil, fmt.Errorf("failed to lock resource: %w", err)
	}

	return &resource, nil
}

func (r *mongoResourceRepository) DeleteReservationsByResource(ctx context.Context, resourceID string) (int64, error) {
	result, err := r.db.Collection(reservationsCollection).DeleteMany(ctx, bson.M{"resource_id": resourceID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete reservations for resource: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoResourceRepository) DeleteBlockedTimesByResource(ctx context.Context, resourceID string) (int64, error) {
	result, err := r.db.Collection(blockedTimesCollection).DeleteMany(ctx, bson.M{"resource_id": resourceID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete blocked times for resource: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoResourceRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
