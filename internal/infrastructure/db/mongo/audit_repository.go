package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/typeapproval/portal/internal/core/domain"
)

const collectionAuthEvents = "auth_events"

// AuditRepository stores the authentication audit trail.
type AuditRepository struct {
	col       *mongo.Collection
	retention time.Duration
}

// NewAuditRepository returns a repository over the auth_events collection.
// Events older than retention are expired by MongoDB; zero keeps them forever.
func NewAuditRepository(db *mongo.Database, retention time.Duration) *AuditRepository {
	return &AuditRepository{col: db.Collection(collectionAuthEvents), retention: retention}
}

type authEventDoc struct {
	Type      string    `bson:"type"`
	UserID    int64     `bson:"user_id,omitempty"`
	Email     string    `bson:"email,omitempty"`
	Path      string    `bson:"path,omitempty"`
	RequestID string    `bson:"request_id,omitempty"`
	Detail    string    `bson:"detail,omitempty"`
	At        time.Time `bson:"at"`
}

// Insert persists one audit event.
func (r *AuditRepository) Insert(ctx context.Context, ev *domain.AuthEvent) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.col.InsertOne(ctx, authEventDoc{
		Type:      string(ev.Type),
		UserID:    ev.UserID,
		Email:     ev.Email,
		Path:      ev.Path,
		RequestID: ev.RequestID,
		Detail:    ev.Detail,
		At:        at.UTC(),
	})
	if err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}

// EnsureIndexes creates the lookup indexes and, when retention is set, the TTL index.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "at", Value: -1}}},
		{Keys: bson.D{{Key: "type", Value: 1}}},
	}
	if r.retention > 0 {
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{{Key: "at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(r.retention.Seconds())),
		})
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
