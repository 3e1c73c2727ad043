package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	autherrors "reservio/internal/auth/errors"
	"reservio/pkg/config"
	"reservio/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const RefreshTokensCollection = "Refresh_tokens"

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

type mongoRefreshTokenRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoRefreshTokenRepository(cfg *config.Config) RefreshTokenRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRefreshTokenRepository{
		cfg:        cfg,
		collection: db.Collection(RefreshTokensCollection),
	}
}

func (r *mongoRefreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	token.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	result, err := r.collection.InsertOne(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		token.ID = oid.Hex()
	}
	return nil
}

func (r *mongoRefreshTokenRepository) FindByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var token model.RefreshToken
	err := r.collection.FindOne(ctx, bson.M{"token_hash": tokenHash}).Decode(&token)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, autherrors.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}

	return &token, nil
}

func (r *mongoRefreshTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"token_hash": tokenHash, "revoked_at": nil},
		bson.M{"$set": bson.M{"revoked_at": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	if result.MatchedCount == 0 {
		return autherrors.ErrTokenNotFound
	}

	return nil
}

// RevokeAllForUser invalidates every live token in the user's chains.
func (r *mongoRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.UpdateMany(ctx,
		bson.M{"user_id": userID, "revoked_at": nil},
		bson.M{"$set": bson.M{"revoked_at": now}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens for user: %w", err)
	}

	return result.ModifiedCount, nil
}
