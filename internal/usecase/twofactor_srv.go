package usecase

import (
	"context"
	"errors"
	"strings"

	"identity-core/internal/data/entity"
	"identity-core/internal/data/repository"
	"identity-core/internal/dto/request"
	"identity-core/internal/dto/response"
	"identity-core/pkg/apperror"
	"identity-core/pkg/notify"
	"identity-core/pkg/security"
	"identity-core/pkg/utils"

	"go.uber.org/zap"
)

// TwoFactorService handles TOTP enrollment. A generated secret is not stored
// until Enable proves an authenticator produces codes for it.
type TwoFactorService interface {
	GenerateSecret(ctx context.Context, actor *utils.Principal) (*response.TwoFactorSecretResponse, error)
	Enable(ctx context.Context, actor *utils.Principal, req *request.TwoFactorVerifyRequest, meta utils.RequestMeta) error
}

type twoFactorService struct {
	users    repository.UserRepository
	totp     *security.TOTP
	dispatch *dispatcher
	log      *zap.Logger
}

func NewTwoFactorService(deps Deps, d *dispatcher) TwoFactorService {
	return &twoFactorService{
		users:    deps.Repo.User,
		totp:     deps.TOTP,
		dispatch: d,
		log:      deps.Log.With(zap.String("component", "two_factor_service")),
	}
}

func (s *twoFactorService) GenerateSecret(_ context.Context, actor *utils.Principal) (*response.TwoFactorSecretResponse, error) {
	if actor == nil {
		return nil, apperror.New(apperror.CodeUnauthenticated, "no principal")
	}

	enrollment, err := s.totp.GenerateSecret(actor.Email)
	if err != nil {
		s.log.Error("Failed to generate TOTP secret", zap.Error(err), zap.String("user_id", actor.ID.String()))
		return nil, apperror.Wrap(apperror.CodeInternal, "generate totp secret", err)
	}

	return &response.TwoFactorSecretResponse{
		Secret:     enrollment.Secret,
		OTPAuthURL: enrollment.URL,
		QRCode:     enrollment.QRCode,
	}, nil
}

func (s *twoFactorService) Enable(ctx context.Context, actor *utils.Principal, req *request.TwoFactorVerifyRequest, meta utils.RequestMeta) error {
	if actor == nil {
		return apperror.New(apperror.CodeUnauthenticated, "no principal")
	}
	if err := validate(req); err != nil {
		return err
	}

	user, err := s.target(ctx, actor, req.Email)
	if err != nil {
		return err
	}

	if user.TwoFactorEnabled {
		return apperror.New(apperror.CodeConflict, "two-factor already enabled").
			WithPublic("Two-factor authentication is already enabled")
	}

	if !s.totp.Verify(req.Secret, req.Code) {
		s.log.Warn("TOTP verification failed", zap.String("user_id", user.ID.String()))
		return apperror.New(apperror.CodeInvalidOrExpiredCode, "totp mismatch").
			WithPublic("Invalid two-factor code")
	}

	secret := strings.ToUpper(strings.TrimSpace(req.Secret))
	if err := s.users.EnableTwoFactor(ctx, user.ID, secret); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			s.log.Warn("Two-factor enabled concurrently", zap.String("user_id", user.ID.String()))
			return apperror.Wrap(apperror.CodeConflict, "two-factor already enabled", err).
				WithPublic("Two-factor authentication is already enabled")
		case errors.Is(err, repository.ErrNotFound):
			return apperror.Wrap(apperror.CodeNotFound, "identity vanished", err).WithPublic("User not found")
		}
		s.log.Error("Failed to enable two-factor", zap.Error(err), zap.String("user_id", user.ID.String()))
		return apperror.Wrap(apperror.CodeUpstream, "enable two-factor", err)
	}

	if user.ID != actor.ID {
		actorEmail := actor.Email
		metadata := map[string]string{
			"target_id":  user.ID.String(),
			"ip_address": meta.IPAddress,
			"user_agent": meta.UserAgent,
		}
		s.dispatch.send(notify.ActionAdminTwoFactor, func(ctx context.Context, n notify.Notifier) error {
			return n.NotifyAdminEvent(ctx, notify.ActionAdminTwoFactor, actorEmail, metadata)
		})
	}

	s.log.Info("Two-factor enabled", zap.String("user_id", user.ID.String()), zap.String("actor_id", actor.ID.String()))
	return nil
}

// target resolves the identity being enrolled. Naming someone else's email
// requires an administrator.
func (s *twoFactorService) target(ctx context.Context, actor *utils.Principal, email string) (*entity.User, error) {
	var (
		user *entity.User
		err  error
	)
	if email == "" || strings.EqualFold(email, actor.Email) {
		user, err = s.users.FindByID(ctx, actor.ID)
	} else {
		if !actor.IsAdmin() {
			s.log.Warn("Two-factor enrollment for another identity denied", zap.String("actor_id", actor.ID.String()))
			return nil, apperror.New(apperror.CodeForbidden, "not allowed to enroll this identity").WithPublic("Forbidden")
		}
		user, err = s.users.FindByEmail(ctx, email)
	}
	if err != nil {
		s.log.Error("Failed to find user", zap.Error(err))
		return nil, apperror.Wrap(apperror.CodeUpstream, "find identity", err)
	}
	if user == nil {
		return nil, apperror.New(apperror.CodeNotFound, "identity not found").WithPublic("User not found")
	}
	return user, nil
}
