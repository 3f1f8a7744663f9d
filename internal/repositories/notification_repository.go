package repositories

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fruitsense/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrInvalidNotificationID is returned when a notification id is not a valid
// ObjectID hex string. Handlers match it with errors.Is.
var ErrInvalidNotificationID = errors.New("invalid notification ID format")

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	Append(ctx context.Context, notification *models.Notification) (string, error)
	BulkAppend(ctx context.Context, notifications []*models.Notification) (int, error)
	ListByRecipient(ctx context.Context, recipientID uint, page, limit int) ([]models.Notification, int64, int64, error)
	UnreadCount(ctx context.Context, recipientID uint) (int64, error)
	MarkRead(ctx context.Context, recipientID uint, ids []string) (int64, error)
	Delete(ctx context.Context, recipientID uint, id string) error
}

// MongoNotificationRepository implements NotificationRepository for MongoDB
type MongoNotificationRepository struct {
	collection *mongo.Collection
}

// NewMongoNotificationRepository creates a new MongoNotificationRepository
func NewMongoNotificationRepository(db *mongo.Database) *MongoNotificationRepository {
	return &MongoNotificationRepository{collection: db.Collection("notifications")}
}

// Append inserts a single notification and returns its id
func (r *MongoNotificationRepository) Append(ctx context.Context, notification *models.Notification) (string, error) {
	notification.ID = primitive.NewObjectID()
	notification.CreatedAt = time.Now()
	if _, err := r.collection.InsertOne(ctx, notification); err != nil {
		return "", err
	}
	return notification.ID.Hex(), nil
}

// BulkAppend inserts one notification per recipient as an unordered batch.
// A failure on an individual document does not abort the rest of the batch;
// the number of documents that made it in is returned.
func (r *MongoNotificationRepository) BulkAppend(ctx context.Context, notifications []*models.Notification) (int, error) {
	if len(notifications) == 0 {
		return 0, nil
	}

	now := time.Now()
	docs := make([]interface{}, len(notifications))
	for i, n := range notifications {
		n.ID = primitive.NewObjectID()
		n.CreatedAt = now
		docs[i] = n
	}

	opts := options.InsertMany().SetOrdered(false)
	res, err := r.collection.InsertMany(ctx, docs, opts)

	var bulkErr mongo.BulkWriteException
	if errors.As(err, &bulkErr) {
		// Unordered insert: surviving documents are kept, only the
		// failed ones are lost.
		log.Printf("notification bulk insert: %d of %d documents failed", len(bulkErr.WriteErrors), len(docs))
		if res != nil {
			return len(res.InsertedIDs), nil
		}
		return len(docs) - len(bulkErr.WriteErrors), nil
	}
	if err != nil {
		return 0, err
	}
	return len(res.InsertedIDs), nil
}

// ListByRecipient retrieves a page of the recipient's notifications,
// newest-first, together with the total and unread counts
func (r *MongoNotificationRepository) ListByRecipient(ctx context.Context, recipientID uint, page, limit int) ([]models.Notification, int64, int64, error) {
	filter := bson.M{"recipient_id": recipientID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, 0, err
	}

	unread, err := r.UnreadCount(ctx, recipientID)
	if err != nil {
		return nil, 0, 0, err
	}

	skip := int64((page - 1) * limit)
	findOptions := options.Find().SetSkip(skip).SetLimit(int64(limit)).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, 0, err
	}
	defer cursor.Close(ctx)

	notifications := []models.Notification{}
	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, 0, 0, err
	}
	return notifications, total, unread, nil
}

// UnreadCount returns the recipient's number of unread notifications. It is
// always computed by query, never cached.
func (r *MongoNotificationRepository) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"recipient_id": recipientID, "is_read": false})
}

// MarkRead marks the given notifications as read, scoped to the recipient.
// An empty ids list marks all of the recipient's unread notifications.
func (r *MongoNotificationRepository) MarkRead(ctx context.Context, recipientID uint, ids []string) (int64, error) {
	filter := bson.M{"recipient_id": recipientID, "is_read": false}

	if len(ids) > 0 {
		objIDs := make([]primitive.ObjectID, 0, len(ids))
		for _, id := range ids {
			objID, err := primitive.ObjectIDFromHex(id)
			if err != nil {
				return 0, fmt.Errorf("%w: %s", ErrInvalidNotificationID, id)
			}
			objIDs = append(objIDs, objID)
		}
		filter["_id"] = bson.M{"$in": objIDs}
	}

	res, err := r.collection.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Delete removes a notification owned by the recipient. A missing or
// non-owned id is a silent no-op so existence of other users' records is
// never leaked.
func (r *MongoNotificationRepository) Delete(ctx context.Context, recipientID uint, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidNotificationID, id)
	}

	_, err = r.collection.DeleteOne(ctx, bson.M{"_id": objID, "recipient_id": recipientID})
	return err
}
