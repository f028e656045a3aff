package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ridehail/internal/models"
	"ridehail/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type messageRepository struct {
	collection *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) interfaces.MessageRepository {
	return &messageRepository{
		collection: db.Collection("messages"),
	}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	message.ID = primitive.NewObjectID()
	message.CreatedAt = time.Now()

	if _, err := r.collection.InsertOne(ctx, message); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	var message models.Message
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&message)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &message, nil
}

func (r *messageRepository) ListByRide(ctx context.Context, rideID primitive.ObjectID) ([]*models.Message, error) {
	return r.findChronological(ctx, bson.M{"ride_id": rideID})
}

func (r *messageRepository) MarkRideMessagesRead(ctx context.Context, rideID, receiverID primitive.ObjectID) (int64, error) {
	return r.markRead(ctx, bson.M{
		"ride_id":     rideID,
		"receiver_id": receiverID,
		"read":        false,
	})
}

func (r *messageRepository) MarkRead(ctx context.Context, messageID, receiverID primitive.ObjectID) (*models.Message, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var message models.Message
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": messageID, "receiver_id": receiverID},
		bson.M{"$set": bson.M{"read": true}},
		opts,
	).Decode(&message)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to mark message read: %w", err)
	}
	return &message, nil
}

func (r *messageRepository) ListUnread(ctx context.Context, receiverID primitive.ObjectID) ([]*models.Message, error) {
	return r.findChronological(ctx, bson.M{"receiver_id": receiverID, "read": false})
}

func (r *messageRepository) ListSupportThread(ctx context.Context, userID primitive.ObjectID) ([]*models.Message, error) {
	return r.findChronological(ctx, bson.M{"support_chat": true, "support_user": userID})
}

func (r *messageRepository) MarkSupportThreadRead(ctx context.Context, userID primitive.ObjectID, fromUser bool) (int64, error) {
	filter := bson.M{
		"support_chat": true,
		"support_user": userID,
		"read":         false,
	}
	if fromUser {
		filter["sender_id"] = userID
	} else {
		filter["sender_id"] = bson.M{"$ne": userID}
	}
	return r.markRead(ctx, filter)
}

func (r *messageRepository) SupportConversations(ctx context.Context) ([]*models.SupportConversation, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"support_chat": true,
			"support_user": bson.M{"$ne": nil},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":             "$support_user",
			"last_message":    bson.M{"$first": "$content"},
			"last_message_at": bson.M{"$first": "$created_at"},
			"unread_count": bson.M{"$sum": bson.M{
				"$cond": bson.A{
					bson.M{"$and": bson.A{
						bson.M{"$eq": bson.A{"$sender_id", "$support_user"}},
						bson.M{"$eq": bson.A{"$read", false}},
					}},
					1,
					0,
				},
			}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last_message_at", Value: -1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate support conversations: %w", err)
	}
	defer cursor.Close(ctx)

	conversations := make([]*models.SupportConversation, 0)
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, fmt.Errorf("failed to decode support conversations: %w", err)
	}
	return conversations, nil
}

func (r *messageRepository) findChronological(ctx context.Context, filter bson.M) ([]*models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer cursor.Close(ctx)

	messages := make([]*models.Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return messages, nil
}

func (r *messageRepository) markRead(ctx context.Context, filter bson.M) (int64, error) {
	result, err := r.collection.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return result.ModifiedCount, nil
}
