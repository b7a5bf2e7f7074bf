package mongodb

import (
	"context"
	"fmt"
	"time"

	entity "parts-market/internal/domain"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	DatabaseName = "parts_market"

	CollectionNotifications = "notifications"
	CollectionStatusHistory = "history_status"
)

// LogRepository is the fan-out side of the engine: notifications for users
// and an audit trail of status changes. Writes are fire-and-forget from the
// caller's point of view; failures are logged, never propagated into the
// offer transaction.
type LogRepository interface {
	SaveNotification(notification *entity.Notification) error
	SaveHistoryStatus(doc *entity.HistoryStatus) error
}

type logRepository struct {
	notifications *mongo.Collection
	history       *mongo.Collection
}

func NewLogRepository(client *mongo.Client) LogRepository {
	db := client.Database(DatabaseName)
	return &logRepository{
		notifications: db.Collection(CollectionNotifications),
		history:       db.Collection(CollectionStatusHistory),
	}
}

func (r *logRepository) SaveNotification(notification *entity.Notification) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := r.notifications.InsertOne(ctx, notification); err != nil {
		return fmt.Errorf("failed to insert notification to Mongo: %w", err)
	}
	return nil
}

func (r *logRepository) SaveHistoryStatus(doc *entity.HistoryStatus) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := r.history.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert history status to Mongo: %w", err)
	}
	return nil
}
