// Package mongo provides MongoDB implementations of the audit repositories.
// The attempt store is append-only; documents are never updated or removed.
package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ventasync-reconciler/internal/domain/audit"
)

const (
	// AttemptCollectionName is the name of the issuance attempt collection
	AttemptCollectionName = "issuance_attempts"
)

// AttemptRepository implements the audit.Repository interface for MongoDB
type AttemptRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewAttemptRepository creates a new MongoDB attempt repository
func NewAttemptRepository(logger *slog.Logger, db *mongo.Database) audit.Repository {
	return &AttemptRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an issuance attempt record
func (r *AttemptRepository) Create(ctx context.Context, attempt *audit.Attempt) error {
	collection := r.db.Collection(AttemptCollectionName)

	_, err := collection.InsertOne(ctx, attempt)
	if err != nil {
		r.logger.Error("Failed to create issuance attempt record",
			"sale_id", attempt.SaleID.String(),
			"error", err)
		return fmt.Errorf("failed to create issuance attempt record: %w", err)
	}

	return nil
}

// GetBySaleID retrieves paginated attempts for a sale, newest first
func (r *AttemptRepository) GetBySaleID(ctx context.Context, saleID uuid.UUID, limit, offset int) ([]*audit.Attempt, error) {
	collection := r.db.Collection(AttemptCollectionName)

	filter := bson.M{"sale_id": saleID}
	opts := options.Find().
		SetSort(bson.M{"attempted_at": -1}). // Sort by attempted_at in descending order
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get issuance attempts",
			"sale_id", saleID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get issuance attempts: %w", err)
	}
	defer cursor.Close(ctx)

	var attempts []*audit.Attempt
	if err := cursor.All(ctx, &attempts); err != nil {
		r.logger.Error("Failed to decode issuance attempts",
			"sale_id", saleID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode issuance attempts: %w", err)
	}

	return attempts, nil
}

// CountBySaleID counts the attempts recorded for a sale
func (r *AttemptRepository) CountBySaleID(ctx context.Context, saleID uuid.UUID) (int64, error) {
	collection := r.db.Collection(AttemptCollectionName)

	filter := bson.M{"sale_id": saleID}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count issuance attempts",
			"sale_id", saleID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count issuance attempts: %w", err)
	}

	return count, nil
}
