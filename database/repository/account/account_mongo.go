package accountRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rwandabill/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoAccountRepo implements AccountRepository using MongoDB.
type MongoAccountRepo struct {
	coll *mongo.Collection
}

// NewMongoAccountRepo returns a repository over the accounts collection of
// database dbName and makes sure its indexes exist.
func NewMongoAccountRepo(client *mongo.Client, dbName string) (*MongoAccountRepo, error) {
	repo := &MongoAccountRepo{coll: client.Database(dbName).Collection("accounts")}
	if err := repo.ensureIndexes(); err != nil {
		return nil, err
	}
	return repo, nil
}

// newContext bounds a single repository call.
func newContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}

func (r *MongoAccountRepo) ensureIndexes() error {
	ctx, cancel := newContext(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Create inserts a new account document.
func (r *MongoAccountRepo) Create(ctx context.Context, account *models.Account) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	account.Email = models.NormalizeEmail(account.Email)
	account.CreatedAt = now
	account.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, account); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *MongoAccountRepo) findOne(ctx context.Context, filter bson.M) (*models.Account, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	var account models.Account
	if err := r.coll.FindOne(ctx, filter).Decode(&account); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}
	return &account, nil
}

// GetByID retrieves an account by its unique ID.
func (r *MongoAccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.findOne(ctx, bson.M{"id": id})
}

// GetByEmail retrieves an account by its email address.
func (r *MongoAccountRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, bson.M{"email": models.NormalizeEmail(email)})
}

// Update replaces an existing account document.
func (r *MongoAccountRepo) Update(ctx context.Context, account *models.Account) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	account.UpdatedAt = time.Now().UTC()
	result, err := r.coll.ReplaceOne(ctx, bson.M{"id": account.ID}, account)
	if err != nil {
		return fmt.Errorf("failed to update account with id %s: %w", account.ID, err)
	}
	if result.MatchedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ListByStatus returns the accounts with the given status, oldest first.
func (r *MongoAccountRepo) ListByStatus(ctx context.Context, status models.ApprovalStatus) ([]models.Account, error) {
	ctx, cancel := newContext(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"status": status}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer cursor.Close(ctx)

	var accounts []models.Account
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("failed to decode accounts: %w", err)
	}
	return accounts, nil
}

// CountByRole counts accounts holding role.
func (r *MongoAccountRepo) CountByRole(ctx context.Context, role string) (int64, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, bson.M{"role": role})
	if err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return n, nil
}
