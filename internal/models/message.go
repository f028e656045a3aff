package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Message struct {
	ID          primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	RideID      *primitive.ObjectID `json:"ride_id,omitempty" bson:"ride_id,omitempty"`
	SenderID    primitive.ObjectID  `json:"sender_id" bson:"sender_id"`
	ReceiverID  *primitive.ObjectID `json:"receiver_id" bson:"receiver_id"`
	Content     string              `json:"content" bson:"content"`
	Read        bool                `json:"read" bson:"read"`
	SupportChat bool                `json:"support_chat" bson:"support_chat"`
	SupportUser *primitive.ObjectID `json:"support_user,omitempty" bson:"support_user,omitempty"`
	CreatedAt   time.Time           `json:"created_at" bson:"created_at"`

	SenderName string `json:"sender_name,omitempty" bson:"-"`
}

// SupportConversation summarises one user's support thread for admins.
type SupportConversation struct {
	UserID        primitive.ObjectID `json:"user_id" bson:"_id"`
	User          *UserSummary       `json:"user,omitempty" bson:"-"`
	LastMessage   string             `json:"last_message" bson:"last_message"`
	LastMessageAt time.Time          `json:"last_message_at" bson:"last_message_at"`
	UnreadCount   int64              `json:"unread_count" bson:"unread_count"`
}
