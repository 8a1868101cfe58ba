package vault

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"backup_vault/internal/model"
)

// MongoStore keeps one document per account in a collection with a unique
// index on username. Register atomicity comes from the index; RetrieveNext
// uses a compare-and-swap on lastRequest so two racing retrievals can
// never both commit.
type MongoStore struct {
	collection *mongo.Collection
	cooldown   time.Duration
	now        func() time.Time
}

func NewMongoStore(ctx context.Context, db *mongo.Database, cooldown time.Duration) (*MongoStore, error) {
	collection := db.Collection("accounts")

	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create username index: %w", err)
	}

	return &MongoStore{
		collection: collection,
		cooldown:   cooldown,
		now:        time.Now,
	}, nil
}

func (s *MongoStore) Register(ctx context.Context, username string, envelopes []string) error {
	if err := validateRegistration(username, envelopes); err != nil {
		return err
	}

	acc := model.Account{
		Username:        username,
		Envelopes:       envelopes,
		RedeemedIndices: []int{},
		CreatedAt:       s.now(),
	}

	_, err := s.collection.InsertOne(ctx, acc)
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *MongoStore) RetrieveNext(ctx context.Context, username string) (*Retrieval, error) {
	// Optimistic loop: read, decide, then update only if lastRequest is
	// still the value we read. A lost race re-reads and normally lands in
	// the rate-limited branch.
	for {
		var acc model.Account
		err := s.collection.FindOne(ctx, bson.M{"username": username}).Decode(&acc)
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}

		now := s.now()
		if wait := cooldownRemaining(acc.LastRequest, now, s.cooldown); wait > 0 {
			return nil, &RateLimitedError{RetryAfter: wait}
		}

		idx := acc.NextUnredeemed()
		if idx < 0 {
			return nil, ErrExhausted
		}

		filter := bson.M{
			"username":    username,
			"lastRequest": acc.LastRequest,
		}
		update := bson.M{
			"$push": bson.M{"redeemedIndices": idx},
			"$set":  bson.M{"lastRequest": now},
		}

		res, err := s.collection.UpdateOne(ctx, filter, update)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if res.ModifiedCount == 0 {
			// Someone else mutated or deleted the account since the read.
			continue
		}

		return &Retrieval{
			Envelope:  acc.Envelopes[idx],
			Remaining: len(acc.Envelopes) - len(acc.RedeemedIndices) - 1,
			Total:     len(acc.Envelopes),
		}, nil
	}
}

func (s *MongoStore) Reset(ctx context.Context, username string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"username": username})
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	n, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
