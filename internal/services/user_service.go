package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"ridehail/internal/models"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/utils"
	"ridehail/internal/validators"
	"ridehail/pkg/logger"
	"ridehail/pkg/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserService interface {
	GetUser(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	ListUsers(ctx context.Context, role models.UserRole, params *utils.PaginationParams) ([]*models.User, int64, error)

	// UpdateLocation and SetAvailability overwrite unconditionally. Going
	// offline leaves any in-flight ride untouched.
	UpdateLocation(ctx context.Context, actor Actor, request *LocationUpdateRequest) (*models.User, error)
	SetAvailability(ctx context.Context, actor Actor, request *AvailabilityRequest) (*models.User, error)

	UploadDocument(ctx context.Context, actor Actor, upload *DocumentUpload) (*models.Document, error)
}

type AvailabilityRequest struct {
	IsAvailable *bool `json:"isAvailable" validate:"required"`
}

type DocumentUpload struct {
	Type     string `validate:"required,max=50"`
	Filename string `validate:"required"`
	Size     int64
	Reader   io.Reader
}

type userService struct {
	userRepo    interfaces.UserRepository
	storage     storage.StorageProvider
	maxFileSize int64
	logger      *logger.Logger
}

// NewUserService accepts a nil storage provider, in which case document
// uploads are rejected.
func NewUserService(userRepo interfaces.UserRepository, storageProvider storage.StorageProvider, maxFileSize int64, logger *logger.Logger) UserService {
	if maxFileSize <= 0 {
		maxFileSize = utils.MaxDocumentSize
	}
	return &userService{
		userRepo:    userRepo,
		storage:     storageProvider,
		maxFileSize: maxFileSize,
		logger:      logger.WithComponent("users"),
	}
}

func (s *userService) GetUser(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, NewNotFoundError(utils.CodeNotFound, utils.ErrUserNotFound)
		}
		return nil, NewInternalError("failed to get user", err)
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, role models.UserRole, params *utils.PaginationParams) ([]*models.User, int64, error) {
	if role != "" && !role.IsValid() {
		return nil, 0, NewValidationError(utils.CodeValidation, "invalid role filter")
	}
	users, total, err := s.userRepo.List(ctx, role, params)
	if err != nil {
		return nil, 0, NewInternalError("failed to list users", err)
	}
	return users, total, nil
}

func (s *userService) UpdateLocation(ctx context.Context, actor Actor, request *LocationUpdateRequest) (*models.User, error) {
	if !actor.IsDriver() {
		return nil, NewAuthorizationError(utils.CodeForbidden, "only drivers can update their location")
	}
	if errs := validators.ValidateStruct(request); errs != nil {
		return nil, NewFieldValidationError(errs)
	}

	location := models.NewPoint(request.Coordinates[0], request.Coordinates[1])
	if err := s.userRepo.UpdateLocation(ctx, actor.ID, location); err != nil {
		return nil, s.writeError(err, "failed to update location")
	}
	return s.GetUser(ctx, actor.ID)
}

func (s *userService) SetAvailability(ctx context.Context, actor Actor, request *AvailabilityRequest) (*models.User, error) {
	if !actor.IsDriver() {
		return nil, NewAuthorizationError(utils.CodeForbidden, "only drivers can change availability")
	}
	if errs := validators.ValidateStruct(request); errs != nil {
		return nil, NewFieldValidationError(errs)
	}

	if err := s.userRepo.SetAvailability(ctx, actor.ID, *request.IsAvailable); err != nil {
		return nil, s.writeError(err, "failed to update availability")
	}

	s.logger.LogUserAction(actor.ID, "set_availability", map[string]interface{}{"is_available": *request.IsAvailable})
	return s.GetUser(ctx, actor.ID)
}

var documentTypePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

func (s *userService) UploadDocument(ctx context.Context, actor Actor, upload *DocumentUpload) (*models.Document, error) {
	if !actor.IsDriver() {
		return nil, NewAuthorizationError(utils.CodeForbidden, "only drivers can upload documents")
	}
	if s.storage == nil {
		return nil, NewInternalError("document storage is not configured", nil)
	}
	if errs := validators.ValidateStruct(upload); errs != nil {
		return nil, NewFieldValidationError(errs)
	}

	docType := strings.ToLower(strings.TrimSpace(upload.Type))
	if !documentTypePattern.MatchString(docType) {
		return nil, NewValidationError(utils.CodeValidation, "invalid document type")
	}
	if !utils.IsDocumentFile(upload.Filename) {
		return nil, NewValidationError(utils.CodeValidation,
			fmt.Sprintf("file type not allowed, accepted types: %s", strings.Join(utils.AllowedDocumentTypes, ", ")))
	}
	if upload.Size > s.maxFileSize {
		return nil, NewValidationError(utils.CodeValidation, "file is too large")
	}

	key := fmt.Sprintf("documents/%s/%s/%s", actor.ID.Hex(), docType, utils.GenerateUniqueFilename(upload.Filename))
	result, err := s.storage.Upload(ctx, &storage.UploadRequest{
		Key:         key,
		Reader:      io.LimitReader(upload.Reader, s.maxFileSize),
		ContentType: utils.GetContentType(upload.Filename),
		Size:        upload.Size,
		Metadata:    map[string]string{"user_id": actor.ID.Hex(), "type": docType},
	})
	if err != nil {
		s.logger.WithError(err).WithUserID(actor.ID).Error("Failed to store document")
		return nil, NewInternalError("failed to store document", err)
	}

	doc := models.Document{
		Type:       docType,
		Key:        result.Key,
		URL:        result.URL,
		UploadedAt: time.Now(),
	}
	if err := s.userRepo.AddDocument(ctx, actor.ID, doc); err != nil {
		if delErr := s.storage.Delete(ctx, result.Key); delErr != nil {
			s.logger.WithError(delErr).Warn("Failed to remove orphaned document")
		}
		return nil, s.writeError(err, "failed to save document")
	}

	s.logger.LogUserAction(actor.ID, "upload_document", map[string]interface{}{"document_type": docType})
	return &doc, nil
}

func (s *userService) writeError(err error, message string) error {
	if errors.Is(err, interfaces.ErrNotFound) {
		return NewNotFoundError(utils.CodeNotFound, utils.ErrUserNotFound)
	}
	return NewInternalError(message, err)
}
