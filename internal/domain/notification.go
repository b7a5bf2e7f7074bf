package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification event types emitted by the offer engine.
const (
	NotificationOfferCreated   = "offer_created"
	NotificationOfferResponded = "offer_responded"
	NotificationOfferExpired   = "offer_expired"
)

type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"user_id"`
	Type      string             `bson:"type"`
	Title     string             `bson:"title"`
	Message   string             `bson:"message"`
	RelatedID string             `bson:"related_id"`
	IsRead    bool               `bson:"is_read"`
	CreatedAt time.Time          `bson:"created_at"`
}
