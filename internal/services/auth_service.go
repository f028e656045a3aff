package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ridehail/internal/models"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/utils"
	"ridehail/internal/validators"
	"ridehail/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Register(ctx context.Context, request *RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, request *LoginRequest) (*AuthResponse, error)
	ValidateToken(token string) (*utils.JWTClaims, error)
	GetProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, error)

	// EnsureAdmin creates the bootstrap admin unless a user with that email
	// already exists.
	EnsureAdmin(ctx context.Context, name, email, password string) error
}

type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

type authService struct {
	userRepo interfaces.UserRepository
	config   AuthConfig
	logger   *logger.Logger
}

type RegisterRequest struct {
	Name      string            `json:"name" validate:"required,min=2,max=100"`
	Email     string            `json:"email" validate:"required,email"`
	Password  string            `json:"password" validate:"required,min=6,password"`
	Phone     string            `json:"phone" validate:"required,phone_number"`
	Role      string            `json:"role" validate:"required,oneof=passenger driver"`
	Vehicle   *models.Vehicle   `json:"vehicle,omitempty"`
	Documents []models.Document `json:"documents,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func NewAuthService(userRepo interfaces.UserRepository, config AuthConfig, logger *logger.Logger) AuthService {
	if config.TokenTTL <= 0 {
		config.TokenTTL = utils.JWTAccessTokenTTL
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &authService{
		userRepo: userRepo,
		config:   config,
		logger:   logger.WithComponent("auth"),
	}
}

func (s *authService) Register(ctx context.Context, request *RegisterRequest) (*AuthResponse, error) {
	if errs := validators.ValidateStruct(request); errs != nil {
		return nil, NewFieldValidationError(errs)
	}

	role := models.UserRole(request.Role)
	if role == models.UserRoleDriver {
		if request.Vehicle == nil {
			return nil, NewValidationError(utils.CodeValidation, "vehicle details are required for drivers")
		}
		if errs := validators.ValidateVehicle(request.Vehicle); errs != nil {
			return nil, NewFieldValidationError(errs)
		}
	}

	hashedPassword, err := s.hashPassword(request.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:      strings.TrimSpace(request.Name),
		Email:     validators.NormalizeEmail(request.Email),
		Password:  hashedPassword,
		Phone:     validators.NormalizePhoneNumber(request.Phone),
		Role:      role,
		Documents: request.Documents,
	}
	if role == models.UserRoleDriver {
		user.Vehicle = request.Vehicle
	} else {
		// passengers need no moderation
		user.IsApproved = true
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, interfaces.ErrDuplicateKey) {
			return nil, NewValidationError(utils.CodeEmailTaken, "user already exists with this email")
		}
		s.logger.WithError(err).Error("Failed to create user")
		return nil, NewInternalError("failed to create user", err)
	}

	token, err := utils.GenerateToken(user.ID, string(user.Role), s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return nil, NewInternalError("failed to generate token", err)
	}

	s.logger.LogUserAction(user.ID, "register", map[string]interface{}{"role": user.Role})

	return &AuthResponse{Token: token, User: user}, nil
}

func (s *authService) Login(ctx context.Context, request *LoginRequest) (*AuthResponse, error) {
	if errs := validators.ValidateStruct(request); errs != nil {
		return nil, NewFieldValidationError(errs)
	}

	user, err := s.userRepo.GetByEmail(ctx, validators.NormalizeEmail(request.Email))
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			s.logger.LogSecurityEvent("login_failed", "low", map[string]interface{}{"reason": "unknown_email"})
			return nil, NewValidationError(utils.CodeInvalidCredentials, utils.ErrInvalidCredentials)
		}
		return nil, NewInternalError("failed to load user", err)
	}

	if !s.checkPassword(request.Password, user.Password) {
		s.logger.LogSecurityEvent("login_failed", "low", map[string]interface{}{
			"reason":  "bad_password",
			"user_id": user.ID.Hex(),
		})
		return nil, NewValidationError(utils.CodeInvalidCredentials, utils.ErrInvalidCredentials)
	}

	if user.IsDriver() && !user.IsApproved {
		return nil, NewAuthorizationError(utils.CodeDriverNotApproved, "your account is pending approval by an administrator")
	}

	token, err := utils.GenerateToken(user.ID, string(user.Role), s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return nil, NewInternalError("failed to generate token", err)
	}

	s.logger.LogUserAction(user.ID, "login", nil)

	return &AuthResponse{Token: token, User: user}, nil
}

func (s *authService) ValidateToken(token string) (*utils.JWTClaims, error) {
	claims, err := utils.ValidateToken(token, s.config.JWTSecret)
	if err != nil {
		return nil, NewAuthenticationError(utils.CodeUnauthorized, utils.ErrInvalidToken)
	}
	return claims, nil
}

func (s *authService) GetProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, NewNotFoundError(utils.CodeNotFound, utils.ErrUserNotFound)
		}
		return nil, NewInternalError("failed to load user", err)
	}
	return user, nil
}

func (s *authService) EnsureAdmin(ctx context.Context, name, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, interfaces.ErrNotFound) {
		return err
	}

	hashedPassword, err := s.hashPassword(password)
	if err != nil {
		return err
	}
	if name == "" {
		name = "Administrator"
	}

	admin := &models.User{
		Name:       name,
		Email:      email,
		Password:   hashedPassword,
		Role:       models.UserRoleAdmin,
		IsApproved: true,
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		if errors.Is(err, interfaces.ErrDuplicateKey) {
			return nil
		}
		return err
	}

	s.logger.WithUserID(admin.ID).Info("Bootstrap admin created")
	return nil
}

func (s *authService) hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", NewValidationError(utils.CodeValidation, fmt.Sprintf("password must be at most %d bytes", validators.MaxPasswordBytes))
		}
		return "", NewInternalError("failed to hash password", err)
	}
	return string(bytes), nil
}

func (s *authService) checkPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
