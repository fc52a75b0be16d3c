package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forum/internal/domain/models"
	"forum/internal/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type userDoc struct {
	ID               bson.ObjectID `bson:"_id"`
	Email            string        `bson:"email"`
	FullName         string        `bson:"full_name"`
	EnrollmentNumber string        `bson:"enrollment_number"`
	PassHash         []byte        `bson:"pass_hash"`
	RefreshToken     string        `bson:"refresh_token,omitempty"`
	CreatedAt        time.Time     `bson:"created_at"`
	UpdatedAt        time.Time     `bson:"updated_at"`
}

func (d userDoc) model() *models.User {
	return &models.User{
		ID:               d.ID.Hex(),
		Email:            d.Email,
		FullName:         d.FullName,
		EnrollmentNumber: d.EnrollmentNumber,
		PassHash:         d.PassHash,
		RefreshToken:     d.RefreshToken,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

// SaveUser saves a new user and returns the generated user ID.
func (s *Storage) SaveUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.mongodb.SaveUser"

	now := time.Now().UTC()
	doc := userDoc{
		ID:               bson.NewObjectID(),
		Email:            user.Email,
		FullName:         user.FullName,
		EnrollmentNumber: user.EnrollmentNumber,
		PassHash:         user.PassHash,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if isDuplicateKeyError(err) {
			return "", fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return doc.ID.Hex(), nil
}

// User retrieves a user by email.
func (s *Storage) User(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.mongodb.User"

	user, err := s.findUser(ctx, bson.D{{Key: "email", Value: email}})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByID retrieves a user by ID.
func (s *Storage) UserByID(ctx context.Context, userID string) (*models.User, error) {
	const op = "storage.mongodb.UserByID"

	oid, err := objectID(userID, storage.ErrUserNotFound)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.findUser(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) findUser(ctx context.Context, filter bson.D) (*models.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}

	return doc.model(), nil
}

// SaveRefreshToken overwrites the refresh token stored on the user document.
func (s *Storage) SaveRefreshToken(ctx context.Context, userID string, token string) error {
	const op = "storage.mongodb.SaveRefreshToken"

	return s.updateUser(ctx, op, userID, nil, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "refresh_token", Value: token},
			{Key: "updated_at", Value: time.Now().UTC()},
		}},
	}, storage.ErrUserNotFound)
}

// SwapRefreshToken replaces oldToken with newToken in a single conditional
// update, so only one of several concurrent rotations can match.
func (s *Storage) SwapRefreshToken(ctx context.Context, userID string, oldToken, newToken string) error {
	const op = "storage.mongodb.SwapRefreshToken"

	return s.updateUser(ctx, op, userID, bson.D{{Key: "refresh_token", Value: oldToken}}, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "refresh_token", Value: newToken},
			{Key: "updated_at", Value: time.Now().UTC()},
		}},
	}, storage.ErrTokenMismatch)
}

// UnsetRefreshToken removes the refresh token field. Missing users are not an error.
func (s *Storage) UnsetRefreshToken(ctx context.Context, userID string) error {
	const op = "storage.mongodb.UnsetRefreshToken"

	oid, err := objectID(userID, storage.ErrUserNotFound)
	if err != nil {
		return nil
	}

	_, err = s.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{
			{Key: "$unset", Value: bson.D{{Key: "refresh_token", Value: ""}}},
			{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now().UTC()}}},
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) UpdatePassword(ctx context.Context, userID string, passHash []byte) error {
	const op = "storage.mongodb.UpdatePassword"

	return s.updateUser(ctx, op, userID, nil, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "pass_hash", Value: passHash},
			{Key: "updated_at", Value: time.Now().UTC()},
		}},
	}, storage.ErrUserNotFound)
}

func (s *Storage) UpdateAccount(ctx context.Context, userID string, fullName, email string) (*models.User, error) {
	const op = "storage.mongodb.UpdateAccount"

	err := s.updateUser(ctx, op, userID, nil, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "full_name", Value: fullName},
			{Key: "email", Value: email},
			{Key: "updated_at", Value: time.Now().UTC()},
		}},
	}, storage.ErrUserNotFound)
	if err != nil {
		return nil, err
	}

	return s.UserByID(ctx, userID)
}

// updateUser applies update to the user matching userID (and cond, when
// set). notMatched is returned when no document matched.
func (s *Storage) updateUser(
	ctx context.Context,
	op string,
	userID string,
	cond bson.D,
	update bson.D,
	notMatched error,
) error {
	oid, err := objectID(userID, notMatched)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	filter := append(bson.D{{Key: "_id", Value: oid}}, cond...)

	res, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, notMatched)
	}

	return nil
}
