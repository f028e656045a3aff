package services

import (
	"context"
	"errors"

	"ridehail/internal/models"
	"ridehail/internal/repositories/interfaces"
	"ridehail/internal/utils"
	"ridehail/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AdminService interface {
	GetPendingDrivers(ctx context.Context) ([]*models.User, error)
	ApproveDriver(ctx context.Context, actor Actor, driverID primitive.ObjectID) (*models.User, error)
	RejectDriver(ctx context.Context, actor Actor, driverID primitive.ObjectID) (*models.User, error)
	GetDashboardStats(ctx context.Context) (*models.DashboardStats, error)
}

type adminService struct {
	userRepo interfaces.UserRepository
	rideRepo interfaces.RideRepository
	logger   *logger.Logger
}

func NewAdminService(userRepo interfaces.UserRepository, rideRepo interfaces.RideRepository, logger *logger.Logger) AdminService {
	return &adminService{
		userRepo: userRepo,
		rideRepo: rideRepo,
		logger:   logger.WithComponent("admin"),
	}
}

func (s *adminService) GetPendingDrivers(ctx context.Context) ([]*models.User, error) {
	drivers, err := s.userRepo.GetPendingDrivers(ctx)
	if err != nil {
		return nil, NewInternalError("failed to get pending drivers", err)
	}
	return drivers, nil
}

func (s *adminService) ApproveDriver(ctx context.Context, actor Actor, driverID primitive.ObjectID) (*models.User, error) {
	return s.setApproval(ctx, actor, driverID, true)
}

// RejectDriver clears approval and takes the driver offline. The account is
// kept.
func (s *adminService) RejectDriver(ctx context.Context, actor Actor, driverID primitive.ObjectID) (*models.User, error) {
	return s.setApproval(ctx, actor, driverID, false)
}

func (s *adminService) setApproval(ctx context.Context, actor Actor, driverID primitive.ObjectID, approved bool) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, NewAuthorizationError(utils.CodeForbidden, utils.ErrForbidden)
	}

	driver, err := s.userRepo.SetApproval(ctx, driverID, approved)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, NewNotFoundError(utils.CodeNotFound, "driver not found")
		}
		return nil, NewInternalError("failed to update driver", err)
	}

	action := "approve_driver"
	if !approved {
		action = "reject_driver"
	}
	s.logger.LogAdminAction(actor.ID, action, driverID)
	return driver, nil
}

func (s *adminService) GetDashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}
	var err error

	if stats.ActiveDrivers, err = s.userRepo.CountAvailableDrivers(ctx); err != nil {
		return nil, NewInternalError("failed to count active drivers", err)
	}
	if stats.PendingDrivers, err = s.userRepo.CountPendingDrivers(ctx); err != nil {
		return nil, NewInternalError("failed to count pending drivers", err)
	}
	if stats.TotalPassengers, err = s.userRepo.CountByRole(ctx, models.UserRolePassenger); err != nil {
		return nil, NewInternalError("failed to count passengers", err)
	}
	if stats.TotalDrivers, err = s.userRepo.CountByRole(ctx, models.UserRoleDriver); err != nil {
		return nil, NewInternalError("failed to count drivers", err)
	}
	if stats.RidesByStatus, err = s.rideRepo.CountByStatus(ctx); err != nil {
		return nil, NewInternalError("failed to count rides", err)
	}
	return stats, nil
}
