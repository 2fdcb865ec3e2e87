package usecase

import (
	"context"
	"errors"

	"identity-core/internal/data/repository"
	"identity-core/internal/dto/request"
	"identity-core/internal/dto/response"
	"identity-core/pkg/apperror"
	"identity-core/pkg/notify"
	"identity-core/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UserService interface {
	GetUser(ctx context.Context, userID string) (*response.UserResponse, error)
	GetAllUsers(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.UserResponse], error)
	DeleteUser(ctx context.Context, actor *utils.Principal, userID string, meta utils.RequestMeta) error
}

type userService struct {
	userRepo repository.UserRepository
	dispatch *dispatcher
	log      *zap.Logger
}

func NewUserService(userRepo repository.UserRepository, d *dispatcher, log *zap.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		dispatch: d,
		log:      log.With(zap.String("component", "user_service")),
	}
}

func (us *userService) GetUser(ctx context.Context, userID string) (*response.UserResponse, error) {
	id, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}

	user, err := us.userRepo.FindByID(ctx, id)
	if err != nil {
		us.log.Error("Failed to find user", zap.Error(err), zap.String("user_id", userID))
		return nil, apperror.Wrap(apperror.CodeUpstream, "find identity", err)
	}
	if user == nil {
		return nil, apperror.New(apperror.CodeNotFound, "identity not found").WithPublic("User not found")
	}

	resp := response.UserToResponse(user)
	return &resp, nil
}

func (us *userService) GetAllUsers(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.UserResponse], error) {
	// Set defaults
	if req.Page < 1 {
		req.Page = 1
	}
	req.PerPage = req.Limit()

	users, err := us.userRepo.FindAll(ctx, req.Limit(), req.Offset())
	if err != nil {
		us.log.Error("Failed to get all users", zap.Error(err), zap.Int("page", req.Page))
		return nil, apperror.Wrap(apperror.CodeUpstream, "list identities", err)
	}

	total, err := us.userRepo.CountAll(ctx)
	if err != nil {
		us.log.Error("Failed to count users", zap.Error(err))
		return nil, apperror.Wrap(apperror.CodeUpstream, "count identities", err)
	}

	data := make([]response.UserResponse, 0, len(users))
	for _, user := range users {
		data = append(data, response.UserToResponse(user))
	}

	return response.NewPaginatedResponse(data, req.Page, req.PerPage, total), nil
}

// DeleteUser soft-deletes an identity; tokens issued to it stop resolving.
func (us *userService) DeleteUser(ctx context.Context, actor *utils.Principal, userID string, meta utils.RequestMeta) error {
	id, err := parseUserID(userID)
	if err != nil {
		return err
	}

	if err := us.userRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Wrap(apperror.CodeNotFound, "identity not found", err).WithPublic("User not found")
		}
		us.log.Error("Failed to delete user", zap.Error(err), zap.String("user_id", userID))
		return apperror.Wrap(apperror.CodeUpstream, "delete identity", err)
	}

	if actor != nil {
		actorEmail := actor.Email
		metadata := map[string]string{
			"target_id":  id.String(),
			"ip_address": meta.IPAddress,
			"user_agent": meta.UserAgent,
		}
		us.dispatch.send(notify.ActionAdminUserDelete, func(ctx context.Context, n notify.Notifier) error {
			return n.NotifyAdminEvent(ctx, notify.ActionAdminUserDelete, actorEmail, metadata)
		})
	}

	us.log.Info("User deleted", zap.String("user_id", id.String()))
	return nil
}

func parseUserID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid user id", map[string]string{"id": "Must be a valid UUID"})
	}
	return id, nil
}
