package services

import (
	"context"
	"errors"
	"strings"

	"ridehail/internal/models"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/utils"
	"ridehail/internal/validators"
	"ridehail/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MessageService interface {
	SendMessage(ctx context.Context, actor Actor, request *SendMessageRequest) (*models.Message, error)
	GetRideMessages(ctx context.Context, actor Actor, rideID primitive.ObjectID) ([]*models.Message, error)
	MarkAsRead(ctx context.Context, actor Actor, messageID primitive.ObjectID) (*models.Message, error)
	GetUnreadMessages(ctx context.Context, actor Actor) ([]*models.Message, error)

	// Support chat between a passenger or driver and any admin
	SendSupportMessage(ctx context.Context, actor Actor, request *SupportMessageRequest) (*models.Message, error)
	GetSupportThread(ctx context.Context, actor Actor) ([]*models.Message, error)
	GetSupportConversations(ctx context.Context, actor Actor) ([]*models.SupportConversation, error)
	GetSupportThreadForUser(ctx context.Context, actor Actor, userID primitive.ObjectID) ([]*models.Message, error)
	ReplySupport(ctx context.Context, actor Actor, request *SupportReplyRequest) (*models.Message, error)
}

type SendMessageRequest struct {
	RideID     string `json:"rideId" validate:"omitempty,object_id"`
	ReceiverID string `json:"receiverId" validate:"omitempty,object_id"`
	Content    string `json:"content" validate:"required,max=1000"`
}

type SupportMessageRequest struct {
	Content string `json:"content" validate:"required,max=1000"`
}

type SupportReplyRequest struct {
	UserID  string `json:"userId" validate:"required,object_id"`
	Content string `json:"content" validate:"required,max=1000"`
}

type messageService struct {
	messageRepo interfaces.MessageRepository
	rideRepo    interfaces.RideRepository
	userRepo    interfaces.UserRepository
	events      EventService
	logger      *logger.Logger
}

func NewMessageService(
	messageRepo interfaces.MessageRepository,
	rideRepo interfaces.RideRepository,
	userRepo interfaces.UserRepository,
	events EventService,
	logger *logger.Logger,
) MessageService {
	return &messageService{
		messageRepo: messageRepo,
		rideRepo:    rideRepo,
		userRepo:    userRepo,
		events:      events,
		logger:      logger.WithComponent("messages"),
	}
}

// SendMessage stores a direct message. For ride messages the sender must be
// a party and the receiver, when given, the other party; it defaults to the
// other party otherwise.
func (s *messageService) SendMessage(ctx context.Context, actor Actor, request *SendMessageRequest) (*models.Message, error) {
	if errs := validators.ValidateStruct(request); errs != nil {
		return nil, NewFieldValidationError(errs)
	}
	content, err := messageContent(request.Content)
	if err != nil {
		return nil, err
	}

	message := &models.Message{
		SenderID: actor.ID,
		Content:  content,
	}

	var receiverID *primitive.ObjectID
	if request.ReceiverID != "" {
		id, _ := primitive.ObjectIDFromHex(request.ReceiverID)
		receiverID = &id
	}

	if request.RideID != "" {
		rideID, _ := primitive.ObjectIDFromHex(request.RideID)
		ride, err := s.loadRide(ctx, rideID)
		if err != nil {
			return nil, err
		}
		if !ride.IsParty(actor.ID) {
			return nil, NewAuthorizationError(utils.CodeForbidden, "you are not part of this ride")
		}
		counterpart := ride.Counterpart(actor.ID)
		if counterpart == nil {
			return nil, NewConflictError(utils.CodeConflict, "no driver has accepted this ride yet")
		}
		if receiverID != nil && *receiverID != *counterpart {
			return nil, NewAuthorizationError(utils.CodeForbidden, "receiver is not part of this ride")
		}
		receiverID = counterpart
		message.RideID = &rideID
	}

	if receiverID == nil {
		return nil, NewValidationError(utils.CodeValidation, "receiverId or rideId is required")
	}
	if *receiverID == actor.ID {
		return nil, NewValidationError(utils.CodeValidation, "cannot send a message to yourself")
	}
	if _, err := s.loadUser(ctx, *receiverID); err != nil {
		return nil, err
	}
	message.ReceiverID = receiverID

	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, NewInternalError("failed to send message", err)
	}

	s.events.Publish(ctx, models.NewMessageEvent(message))
	s.withSenderNames(ctx, []*models.Message{message})
	return message, nil
}

func messageContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", NewValidationError(utils.CodeValidation, "message content is required")
	}
	return content, nil
}

// GetRideMessages lists a ride's conversation oldest first and then marks
// the caller's received messages read. The returned slice reflects the state
// before marking.
func (s *messageService) GetRideMessages(ctx context.Context, actor Actor, rideID primitive.ObjectID) ([]*models.Message, error) {
	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !ride.IsParty(actor.ID) {
		return nil, NewAuthorizationError(utils.CodeForbidden, "you are not allowed to view these messages")
	}

	messages, err := s.messageRepo.ListByRide(ctx, rideID)
	if err != nil {
		return nil, NewInternalError("failed to get messages", err)
	}

	if _, err := s.messageRepo.MarkRideMessagesRead(ctx, rideID, actor.ID); err != nil {
		s.logger.WithError(err).WithRideID(rideID).Warn("Failed to mark ride messages read")
	}

	s.withSenderNames(ctx, messages)
	return messages, nil
}

func (s *messageService) MarkAsRead(ctx context.Context, actor Actor, messageID primitive.ObjectID) (*models.Message, error) {
	message, err := s.messageRepo.MarkRead(ctx, messageID, actor.ID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, NewNotFoundError(utils.CodeNotFound, utils.ErrMessageNotFound)
		}
		return nil, NewInternalError("failed to update message", err)
	}
	return message, nil
}

func (s *messageService) GetUnreadMessages(ctx context.Context, actor Actor) ([]*models.Message, error) {
	messages, err := s.messageRepo.ListUnread(ctx, actor.ID)
	if err != nil {
		return nil, NewInternalError("failed to get unread messages", err)
	}
	s.withSenderNames(ctx, messages)
	return messages, nil
}

func (s *messageService) SendSupportMessage(ctx context.Context, actor Actor, request *SupportMessageRequest) (*models.Message, error) {
	if actor.IsAdmin() {
		return nil, NewValidationError(utils.CodeValidation, "admins reply through the support reply endpoint")
	}
	if errs := validators.ValidateStruct(request); errs != nil {
		return nil, NewFieldValidationError(errs)
	}
	content, err := messageContent(request.Content)
	if err != nil {
		return nil, err
	}

	userID := actor.ID
	message := &models.Message{
		SenderID:    actor.ID,
		Content:     content,
		SupportChat: true,
		SupportUser: &userID,
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, NewInternalError("failed to send support message", err)
	}

	s.events.Publish(ctx, models.NewMessageEvent(message))
	s.withSenderNames(ctx, []*models.Message{message})
	return message, nil
}

// GetSupportThread returns the caller's support thread and marks admin
// replies read.
func (s *messageService) GetSupportThread(ctx context.Context, actor Actor) ([]*models.Message, error) {
	return s.supportThread(ctx, actor.ID, false)
}

func (s *messageService) GetSupportConversations(ctx context.Context, actor Actor) ([]*models.SupportConversation, error) {
	if !actor.IsAdmin() {
		return nil, NewAuthorizationError(utils.CodeForbidden, utils.ErrForbidden)
	}

	conversations, err := s.messageRepo.SupportConversations(ctx)
	if err != nil {
		return nil, NewInternalError("failed to get support conversations", err)
	}
	for _, conv := range conversations {
		if user, err := s.userRepo.GetByID(ctx, conv.UserID); err == nil {
			conv.User = user.Summary()
		}
	}
	return conversations, nil
}

// GetSupportThreadForUser is the admin view of a thread. It marks the user's
// messages read.
func (s *messageService) GetSupportThreadForUser(ctx context.Context, actor Actor, userID primitive.ObjectID) ([]*models.Message, error) {
	if !actor.IsAdmin() {
		return nil, NewAuthorizationError(utils.CodeForbidden, utils.ErrForbidden)
	}
	return s.supportThread(ctx, userID, true)
}

func (s *messageService) ReplySupport(ctx context.Context, actor Actor, request *SupportReplyRequest) (*models.Message, error) {
	if !actor.IsAdmin() {
		return nil, NewAuthorizationError(utils.CodeForbidden, utils.ErrForbidden)
	}
	if errs := validators.ValidateStruct(request); errs != nil {
		return nil, NewFieldValidationError(errs)
	}
	content, err := messageContent(request.Content)
	if err != nil {
		return nil, err
	}

	userID, _ := primitive.ObjectIDFromHex(request.UserID)
	if _, err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}

	message := &models.Message{
		SenderID:    actor.ID,
		ReceiverID:  &userID,
		Content:     content,
		SupportChat: true,
		SupportUser: &userID,
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, NewInternalError("failed to send support reply", err)
	}

	s.logger.LogAdminAction(actor.ID, "support_reply", userID)
	s.events.Publish(ctx, models.NewMessageEvent(message))
	s.withSenderNames(ctx, []*models.Message{message})
	return message, nil
}

func (s *messageService) supportThread(ctx context.Context, userID primitive.ObjectID, readerIsAdmin bool) ([]*models.Message, error) {
	messages, err := s.messageRepo.ListSupportThread(ctx, userID)
	if err != nil {
		return nil, NewInternalError("failed to get support messages", err)
	}

	if _, err := s.messageRepo.MarkSupportThreadRead(ctx, userID, readerIsAdmin); err != nil {
		s.logger.WithError(err).WithUserID(userID).Warn("Failed to mark support messages read")
	}

	s.withSenderNames(ctx, messages)
	return messages, nil
}

func (s *messageService) withSenderNames(ctx context.Context, messages []*models.Message) {
	names := make(map[primitive.ObjectID]string)
	for _, message := range messages {
		name, ok := names[message.SenderID]
		if !ok {
			if user, err := s.userRepo.GetByID(ctx, message.SenderID); err == nil {
				name = user.Name
			}
			names[message.SenderID] = name
		}
		message.SenderName = name
	}
}

func (s *messageService) loadRide(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, NewNotFoundError(utils.CodeNotFound, utils.ErrRideNotFound)
		}
		return nil, NewInternalError("failed to get ride", err)
	}
	return ride, nil
}

func (s *messageService) loadUser(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, NewNotFoundError(utils.CodeNotFound, utils.ErrUserNotFound)
		}
		return nil, NewInternalError("failed to get user", err)
	}
	return user, nil
}
