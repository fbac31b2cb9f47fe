package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/videotube/auth-service/internal/core/domain"
)

const usersCollectionName = "users"

// userDocument is the MongoDB shape of a user. The session record (the single
// currently-valid refresh token) lives on the same document; see
// MongoSessionRepository.
type userDocument struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Username     string        `bson:"username"`
	Email        string        `bson:"email"`
	FullName     string        `bson:"full_name"`
	PasswordHash string        `bson:"password_hash"`
	RefreshToken string        `bson:"refresh_token,omitempty"`
	CreatedAt    time.Time     `bson:"created_at"`
	LastLoginAt  time.Time     `bson:"last_login_at,omitempty"`
}

func (d *userDocument) toRow() *domain.UserRow {
	return &domain.UserRow{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		FullName:     d.FullName,
		PasswordHash: d.PasswordHash,
	}
}

// MongoUserRepository implements domain.UserRepository on the users collection.
type MongoUserRepository struct {
	users *mongo.Collection
}

// NewUserRepository creates a new MongoUserRepository.
func NewUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{users: db.Collection(usersCollectionName)}
}

// GetByUsernameOrEmail returns the user matching either the given username or
// the given email. Returns (nil, nil) when no user is found.
func (r *MongoUserRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (*domain.UserRow, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"username": username},
		bson.M{"email": email},
	}}

	var doc userDocument
	err := r.users.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}

	return doc.toRow(), nil
}

// GetByID returns the user with the given ID.
// Returns (nil, nil) when no user is found.
func (r *MongoUserRepository) GetByID(ctx context.Context, userID string) (*domain.UserRow, error) {
	oid, ok := objectID(userID)
	if !ok {
		return nil, nil
	}

	var doc userDocument
	err := r.users.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}

	return doc.toRow(), nil
}

// ExistsByUsernameOrEmail returns true when a user with the given
// username or email already exists.
func (r *MongoUserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"username": username},
		bson.M{"email": email},
	}}

	count, err := r.users.CountDocuments(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// Create inserts a new user and returns the generated user ID.
func (r *MongoUserRepository) Create(ctx context.Context, username, email, fullName, passwordHash string) (string, error) {
	doc := userDocument{
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}

	res, err := r.users.InsertOne(ctx, doc)
	if err != nil {
		return "", err
	}

	oid, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return "", errors.New("unexpected inserted ID type")
	}

	return oid.Hex(), nil
}

// UpdatePasswordHash replaces the stored password hash for the user.
func (r *MongoUserRepository) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	oid, ok := objectID(userID)
	if !ok {
		return mongo.ErrNoDocuments
	}

	_, err := r.users.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"password_hash": passwordHash}})
	return err
}

// UpdateLastLogin sets the last_login_at timestamp to now for the user.
func (r *MongoUserRepository) UpdateLastLogin(ctx context.Context, userID string) error {
	oid, ok := objectID(userID)
	if !ok {
		return mongo.ErrNoDocuments
	}

	_, err := r.users.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"last_login_at": time.Now()}})
	return err
}

// objectID parses a hex user ID. A malformed ID can never match a document,
// so callers treat it the same as "not found".
func objectID(userID string) (bson.ObjectID, bool) {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return bson.ObjectID{}, false
	}
	return oid, true
}
