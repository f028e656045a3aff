package interfaces

import (
	"context"

	"ridehail/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error)

	// Ride conversations, oldest first
	ListByRide(ctx context.Context, rideID primitive.ObjectID) ([]*models.Message, error)
	MarkRideMessagesRead(ctx context.Context, rideID, receiverID primitive.ObjectID) (int64, error)

	// MarkRead marks one message read if receiverID is its receiver.
	MarkRead(ctx context.Context, messageID, receiverID primitive.ObjectID) (*models.Message, error)
	ListUnread(ctx context.Context, receiverID primitive.ObjectID) ([]*models.Message, error)

	// Support threads are keyed by the non-admin user.
	ListSupportThread(ctx context.Context, userID primitive.ObjectID) ([]*models.Message, error)
	// MarkSupportThreadRead marks the user's messages read when fromUser is
	// true (an admin is reading), and the admins' replies otherwise.
	MarkSupportThreadRead(ctx context.Context, userID primitive.ObjectID, fromUser bool) (int64, error)
	// SupportConversations lists one entry per user thread, most recent first.
	SupportConversations(ctx context.Context) ([]*models.SupportConversation, error)
}
