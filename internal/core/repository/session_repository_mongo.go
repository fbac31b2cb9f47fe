package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/videotube/auth-service/internal/core/domain"
)

// MongoSessionRepository implements domain.SessionRepository.
//
// The session record rides on the user document itself: the refresh_token
// field holds the single currently-valid refresh token, or is absent when the
// user has no active session. Keeping it on one document is what lets
// ReplaceRefreshTokenIfMatches be a single atomic FindOneAndUpdate.
type MongoSessionRepository struct {
	users *mongo.Collection
}

// NewSessionRepository creates a new MongoSessionRepository.
func NewSessionRepository(db *mongo.Database) *MongoSessionRepository {
	return &MongoSessionRepository{users: db.Collection(usersCollectionName)}
}

// GetRefreshToken returns the refresh token on record for the user, or ""
// when the user has no active session or does not exist.
func (r *MongoSessionRepository) GetRefreshToken(ctx context.Context, userID string) (string, error) {
	oid, ok := objectID(userID)
	if !ok {
		return "", nil
	}

	var doc struct {
		RefreshToken string `bson:"refresh_token"`
	}
	err := r.users.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil
		}
		return "", err
	}

	return doc.RefreshToken, nil
}

// SetRefreshToken unconditionally overwrites the stored refresh token.
// An empty token clears the session record. Clearing a session that does not
// exist is not an error, which makes logout idempotent.
func (r *MongoSessionRepository) SetRefreshToken(ctx context.Context, userID, refreshToken string) error {
	oid, ok := objectID(userID)
	if !ok {
		return nil
	}

	var update bson.M
	if refreshToken == "" {
		update = bson.M{"$unset": bson.M{"refresh_token": ""}}
	} else {
		update = bson.M{"$set": bson.M{"refresh_token": refreshToken}}
	}

	_, err := r.users.UpdateByID(ctx, oid, update)
	return err
}

// ReplaceRefreshTokenIfMatches atomically swaps the stored refresh token for
// next when the current value equals presented. MongoDB applies the filtered
// update to a single document atomically, so two concurrent rotations with
// the same presented token cannot both succeed.
func (r *MongoSessionRepository) ReplaceRefreshTokenIfMatches(ctx context.Context, userID, presented, next string) (bool, error) {
	oid, ok := objectID(userID)
	if !ok {
		return false, nil
	}

	filter := bson.M{"_id": oid, "refresh_token": presented}
	update := bson.M{"$set": bson.M{"refresh_token": next}}

	err := r.users.FindOneAndUpdate(ctx, filter, update).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

var _ domain.SessionRepository = (*MongoSessionRepository)(nil)
var _ domain.UserRepository = (*MongoUserRepository)(nil)
