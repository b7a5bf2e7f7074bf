package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HistoryStatus is an audit record of a status change, kept alongside
// notifications in Mongo. ChangedBy is a user id, or "system" for sweeps.
type HistoryStatus struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	RelatedID   string             `bson:"related_id"`
	RelatedType string             `bson:"related_type"`
	OldStatus   string             `bson:"old_status"`
	NewStatus   string             `bson:"new_status"`
	ChangedBy   string             `bson:"changed_by"`
	Timestamp   time.Time          `bson:"timestamp"`
}
