package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ridehail/internal/models"
	"ridehail/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type messageRepository struct {
	mu       sync.RWMutex
	messages []*models.Message
}

func NewMessageRepository() interfaces.MessageRepository {
	return &messageRepository{}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	message.ID = primitive.NewObjectID()
	message.CreatedAt = time.Now()
	c := *message
	r.messages = append(r.messages, &c)
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, message := range r.messages {
		if message.ID == id {
			c := *message
			return &c, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (r *messageRepository) ListByRide(ctx context.Context, rideID primitive.ObjectID) ([]*models.Message, error) {
	return r.filter(func(m *models.Message) bool {
		return sameID(m.RideID, rideID)
	}), nil
}

func (r *messageRepository) MarkRideMessagesRead(ctx context.Context, rideID, receiverID primitive.ObjectID) (int64, error) {
	return r.markRead(func(m *models.Message) bool {
		return sameID(m.RideID, rideID) && sameID(m.ReceiverID, receiverID)
	}), nil
}

func (r *messageRepository) MarkRead(ctx context.Context, messageID, receiverID primitive.ObjectID) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, message := range r.messages {
		if message.ID == messageID && sameID(message.ReceiverID, receiverID) {
			message.Read = true
			c := *message
			return &c, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (r *messageRepository) ListUnread(ctx context.Context, receiverID primitive.ObjectID) ([]*models.Message, error) {
	return r.filter(func(m *models.Message) bool {
		return !m.Read && sameID(m.ReceiverID, receiverID)
	}), nil
}

func (r *messageRepository) ListSupportThread(ctx context.Context, userID primitive.ObjectID) ([]*models.Message, error) {
	return r.filter(func(m *models.Message) bool {
		return m.SupportChat && sameID(m.SupportUser, userID)
	}), nil
}

func (r *messageRepository) MarkSupportThreadRead(ctx context.Context, userID primitive.ObjectID, fromUser bool) (int64, error) {
	return r.markRead(func(m *models.Message) bool {
		if !m.SupportChat || !sameID(m.SupportUser, userID) {
			return false
		}
		return (m.SenderID == userID) == fromUser
	}), nil
}

func (r *messageRepository) SupportConversations(ctx context.Context) ([]*models.SupportConversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byUser := make(map[primitive.ObjectID]*models.SupportConversation)
	for _, m := range r.messages {
		if !m.SupportChat || m.SupportUser == nil {
			continue
		}
		conv, ok := byUser[*m.SupportUser]
		if !ok {
			conv = &models.SupportConversation{UserID: *m.SupportUser}
			byUser[*m.SupportUser] = conv
		}
		if !m.CreatedAt.Before(conv.LastMessageAt) {
			conv.LastMessage = m.Content
			conv.LastMessageAt = m.CreatedAt
		}
		if m.SenderID == *m.SupportUser && !m.Read {
			conv.UnreadCount++
		}
	}

	conversations := make([]*models.SupportConversation, 0, len(byUser))
	for _, conv := range byUser {
		conversations = append(conversations, conv)
	}
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastMessageAt.After(conversations[j].LastMessageAt)
	})
	return conversations, nil
}

// filter returns copies of matching messages in insertion order, which is
// creation order.
func (r *messageRepository) filter(match func(*models.Message) bool) []*models.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	messages := make([]*models.Message, 0)
	for _, m := range r.messages {
		if match(m) {
			c := *m
			messages = append(messages, &c)
		}
	}
	return messages
}

func (r *messageRepository) markRead(match func(*models.Message) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, m := range r.messages {
		if !m.Read && match(m) {
			m.Read = true
			n++
		}
	}
	return n
}

func sameID(ref *primitive.ObjectID, id primitive.ObjectID) bool {
	return ref != nil && *ref == id
}
