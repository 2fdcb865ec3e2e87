package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"identity-core/internal/data/entity"
	"identity-core/internal/data/repository"
	"identity-core/internal/dto/request"
	"identity-core/internal/dto/response"
	"identity-core/pkg/apperror"
	"identity-core/pkg/notify"
	"identity-core/pkg/security"
	"identity-core/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuthService interface {
	RequestSignup(ctx context.Context, req *request.SignupRequest) error
	ResendOTP(ctx context.Context, req *request.ResendOTPRequest) error
	RequestPasswordReset(ctx context.Context, req *request.PasswordResetRequest) error
	VerifyOTP(ctx context.Context, req *request.VerifyOTPRequest) (*response.AuthResponse, error)
	Login(ctx context.Context, req *request.LoginRequest, meta utils.RequestMeta) (*response.AuthResponse, error)
	ChangePassword(ctx context.Context, actor *utils.Principal, req *request.ChangePasswordRequest, meta utils.RequestMeta) error
}

type authService struct {
	users    repository.UserRepository
	otp      *OTPEngine
	hasher   *security.PasswordHasher
	tokens   *security.TokenIssuer
	dispatch *dispatcher
	log      *zap.Logger
}

func NewAuthService(deps Deps, otp *OTPEngine, d *dispatcher) AuthService {
	return &authService{
		users:    deps.Repo.User,
		otp:      otp,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		dispatch: d,
		log:      deps.Log.With(zap.String("component", "auth_service")),
	}
}

func (s *authService) RequestSignup(ctx context.Context, req *request.SignupRequest) error {
	// 1. Validate
	if err := validate(req); err != nil {
		s.log.Warn("Signup validation failed", zap.Error(err))
		return err
	}

	// 2. Email and username must both be free
	if err := s.ensureAvailable(ctx, req.Email, req.Username); err != nil {
		return err
	}

	// 3. Issue and deliver the code
	return s.issueAndSend(ctx, req.Email)
}

func (s *authService) ResendOTP(ctx context.Context, req *request.ResendOTPRequest) error {
	if err := validate(req); err != nil {
		return err
	}
	return s.issueAndSend(ctx, req.Email)
}

func (s *authService) RequestPasswordReset(ctx context.Context, req *request.PasswordResetRequest) error {
	if err := validate(req); err != nil {
		return err
	}

	user, err := s.findByEmailOrUsername(ctx, req.Email, req.Username)
	if err != nil {
		return err
	}
	if user == nil {
		return apperror.New(apperror.CodeNotFound, "no identity for reset request").WithPublic("User not found")
	}

	return s.issueAndSend(ctx, user.Email)
}

// VerifyOTP completes the flow selected by req.Type. Each flow checks its
// precondition against the store before the code is consumed.
func (s *authService) VerifyOTP(ctx context.Context, req *request.VerifyOTPRequest) (*response.AuthResponse, error) {
	if err := validate(req); err != nil {
		s.log.Warn("Verify OTP validation failed", zap.Error(err))
		return nil, err
	}

	switch entity.VerificationType(req.Type) {
	case entity.VerificationRegister:
		return s.completeRegistration(ctx, req)
	case entity.VerificationLogin:
		return s.completeLogin(ctx, req)
	case entity.VerificationResetPassword:
		return s.completeReset(ctx, req)
	default:
		return nil, apperror.Validation("unknown verification type", map[string]string{
			"type": "Must be one of: register-verification, login-verification, reset-password",
		})
	}
}

func (s *authService) completeRegistration(ctx context.Context, req *request.VerifyOTPRequest) (*response.AuthResponse, error) {
	fields := map[string]string{}
	if req.Email == "" {
		fields["email"] = "This field is required"
	}
	if req.Username == "" {
		fields["username"] = "This field is required"
	}
	if len(fields) > 0 {
		return nil, apperror.Validation("registration requires email and username", fields)
	}

	if err := s.ensureAvailable(ctx, req.Email, req.Username); err != nil {
		return nil, err
	}

	if err := s.otp.Verify(ctx, req.Email, req.OTP); err != nil {
		return nil, err
	}

	hashed, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.log.Error("Failed to hash password", zap.Error(err))
		return nil, apperror.Wrap(apperror.CodeInternal, "hash password", err)
	}

	now := time.Now()
	user := &entity.User{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Username:     req.Username,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: &hashed,
		Role:         entity.RoleStandard,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.Wrap(apperror.CodeConflict, "identity created concurrently", err).
				WithPublic("User already exists, please login")
		}
		s.log.Error("Failed to create user", zap.Error(err), zap.String("email", user.Email))
		return nil, apperror.Wrap(apperror.CodeUpstream, "create identity", err)
	}

	email := user.Email
	s.dispatch.send("welcome", func(ctx context.Context, n notify.Notifier) error {
		return n.SendWelcome(ctx, email)
	})

	s.log.Info("User registered", zap.String("user_id", user.ID.String()), zap.String("email", user.Email))
	return s.mint(user)
}

func (s *authService) completeLogin(ctx context.Context, req *request.VerifyOTPRequest) (*response.AuthResponse, error) {
	user, err := s.findByEmailOrUsername(ctx, req.Email, req.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.New(apperror.CodeNotFound, "no identity for login verification").
			WithPublic("User not found, please register")
	}

	if err := s.otp.Verify(ctx, user.Email, req.OTP); err != nil {
		return nil, err
	}

	// the code proves control of the mailbox, not knowledge of the password
	if !user.HasPassword() || !s.hasher.Verify(req.Password, *user.PasswordHash) {
		s.log.Warn("Invalid password after OTP login", zap.String("user_id", user.ID.String()))
		return nil, apperror.New(apperror.CodeInvalidPassword, "password mismatch after otp")
	}

	s.log.Info("User logged in with OTP", zap.String("user_id", user.ID.String()))
	return s.mint(user)
}

func (s *authService) completeReset(ctx context.Context, req *request.VerifyOTPRequest) (*response.AuthResponse, error) {
	user, err := s.findByEmailOrUsername(ctx, req.Email, req.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.New(apperror.CodeNotFound, "no identity for password reset").
			WithPublic("User not found, please register")
	}

	if err := s.otp.Verify(ctx, user.Email, req.OTP); err != nil {
		return nil, err
	}

	if err := s.setPassword(ctx, user, req.Password); err != nil {
		return nil, err
	}

	email := user.Email
	s.dispatch.send("password_reset", func(ctx context.Context, n notify.Notifier) error {
		return n.SendPasswordResetNotice(ctx, email)
	})

	s.log.Info("Password reset", zap.String("user_id", user.ID.String()))
	return s.mint(user)
}

// Login is the password-only path. Unknown identities and wrong passwords
// are indistinguishable to the caller.
func (s *authService) Login(ctx context.Context, req *request.LoginRequest, meta utils.RequestMeta) (*response.AuthResponse, error) {
	if err := validate(req); err != nil {
		s.log.Warn("Login validation failed", zap.Error(err))
		return nil, err
	}

	user, err := s.findByEmailOrUsername(ctx, req.Email, req.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.log.Warn("User not found for login", zap.String("email", req.Email), zap.String("username", req.Username))
		return nil, apperror.New(apperror.CodeInvalidPassword, "unknown identity")
	}

	if !user.HasPassword() {
		s.log.Warn("Password login on federated account", zap.String("user_id", user.ID.String()))
		return nil, apperror.New(apperror.CodeFederatedAccountOnly, "identity has no password").
			WithPublic("This account uses federated sign-in, use that login method")
	}

	if !s.hasher.Verify(req.Password, *user.PasswordHash) {
		s.log.Warn("Invalid password", zap.String("user_id", user.ID.String()))
		return nil, apperror.New(apperror.CodeInvalidPassword, "password mismatch")
	}

	if user.IsAdmin() {
		email := user.Email
		metadata := map[string]string{
			"via":          "password",
			"requires_2fa": strconv.FormatBool(user.TwoFactorEnabled),
			"ip_address":   meta.IPAddress,
			"user_agent":   meta.UserAgent,
		}
		s.dispatch.send(notify.ActionAdminLogin, func(ctx context.Context, n notify.Notifier) error {
			return n.NotifyAdminEvent(ctx, notify.ActionAdminLogin, email, metadata)
		})
	}

	s.log.Info("User logged in", zap.String("user_id", user.ID.String()), zap.String("username", user.Username))
	return s.mint(user)
}

// ChangePassword lets a principal change its own password after proving the
// current one. Administrators may set anyone's password without it.
func (s *authService) ChangePassword(ctx context.Context, actor *utils.Principal, req *request.ChangePasswordRequest, meta utils.RequestMeta) error {
	if actor == nil {
		return apperror.New(apperror.CodeUnauthenticated, "no principal")
	}
	if err := validate(req); err != nil {
		return err
	}

	targetID := actor.ID
	if req.ID != "" {
		id, err := uuid.Parse(req.ID)
		if err != nil {
			return apperror.Validation("invalid target id", map[string]string{"id": "Must be a valid UUID"})
		}
		targetID = id
	}
	self := targetID == actor.ID

	if !self && !actor.IsAdmin() {
		s.log.Warn("Password change on another identity denied",
			zap.String("actor_id", actor.ID.String()), zap.String("target_id", targetID.String()))
		return apperror.New(apperror.CodeForbidden, "not allowed to change this password").WithPublic("Forbidden")
	}

	user, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		s.log.Error("Failed to find user", zap.Error(err), zap.String("user_id", targetID.String()))
		return apperror.Wrap(apperror.CodeUpstream, "find identity", err)
	}
	if user == nil {
		return apperror.New(apperror.CodeNotFound, "target identity not found").WithPublic("User not found")
	}

	if self {
		if !user.HasPassword() {
			return apperror.New(apperror.CodeFederatedAccountOnly, "identity has no password").
				WithPublic("This account uses federated sign-in and has no password to change")
		}
		if !s.hasher.Verify(req.CurrentPassword, *user.PasswordHash) {
			s.log.Warn("Current password mismatch", zap.String("user_id", user.ID.String()))
			return apperror.New(apperror.CodeInvalidPassword, "current password mismatch").
				WithPublic("Current password is incorrect")
		}
	}

	if err := s.setPassword(ctx, user, req.NewPassword); err != nil {
		return err
	}

	if !self {
		actorEmail := actor.Email
		metadata := map[string]string{
			"target_id":  user.ID.String(),
			"ip_address": meta.IPAddress,
			"user_agent": meta.UserAgent,
		}
		s.dispatch.send(notify.ActionAdminPasswordChange, func(ctx context.Context, n notify.Notifier) error {
			return n.NotifyAdminEvent(ctx, notify.ActionAdminPasswordChange, actorEmail, metadata)
		})
	}

	s.log.Info("Password changed",
		zap.String("user_id", user.ID.String()), zap.String("actor_id", actor.ID.String()))
	return nil
}

// ==================== HELPER METHODS ====================

func (s *authService) issueAndSend(ctx context.Context, email string) error {
	otp, err := s.otp.Issue(ctx, email)
	if err != nil {
		return err
	}

	owner, code := otp.OwnerKey, otp.Code
	s.dispatch.send("otp", func(ctx context.Context, n notify.Notifier) error {
		return n.SendOTPCode(ctx, owner, code)
	})
	return nil
}

func (s *authService) ensureAvailable(ctx context.Context, email, username string) error {
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		s.log.Error("Failed to check email", zap.Error(err))
		return apperror.Wrap(apperror.CodeUpstream, "check email", err)
	}
	if existing == nil && username != "" {
		existing, err = s.users.FindByUsername(ctx, username)
		if err != nil {
			s.log.Error("Failed to check username", zap.Error(err))
			return apperror.Wrap(apperror.CodeUpstream, "check username", err)
		}
	}
	if existing != nil {
		return apperror.New(apperror.CodeConflict, "identity already exists").
			WithPublic("Username or email already exists, please login")
	}
	return nil
}

// findByEmailOrUsername prefers the email when both are given.
func (s *authService) findByEmailOrUsername(ctx context.Context, email, username string) (*entity.User, error) {
	var (
		user *entity.User
		err  error
	)
	if email != "" {
		user, err = s.users.FindByEmail(ctx, email)
	}
	if err == nil && user == nil && username != "" {
		user, err = s.users.FindByUsername(ctx, username)
	}
	if err != nil {
		s.log.Error("Failed to find user", zap.Error(err))
		return nil, apperror.Wrap(apperror.CodeUpstream, "find identity", err)
	}
	return user, nil
}

func (s *authService) setPassword(ctx context.Context, user *entity.User, plaintext string) error {
	hashed, err := s.hasher.Hash(plaintext)
	if err != nil {
		s.log.Error("Failed to hash password", zap.Error(err))
		return apperror.Wrap(apperror.CodeInternal, "hash password", err)
	}

	if err := s.users.Update(ctx, user.ID, entity.UserPatch{PasswordHash: &hashed}); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Wrap(apperror.CodeNotFound, "identity vanished", err).WithPublic("User not found")
		}
		s.log.Error("Failed to update password", zap.Error(err), zap.String("user_id", user.ID.String()))
		return apperror.Wrap(apperror.CodeUpstream, "update password", err)
	}
	user.PasswordHash = &hashed
	return nil
}

func (s *authService) mint(user *entity.User) (*response.AuthResponse, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.log.Error("Failed to sign token", zap.Error(err), zap.String("user_id", user.ID.String()))
		return nil, apperror.Wrap(apperror.CodeInternal, "sign token", err)
	}
	return response.AuthToResponse(user, token, expiresAt), nil
}
