package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"identity-core/internal/data/entity"
	"identity-core/internal/data/repository"
	"identity-core/pkg/apperror"
	"identity-core/pkg/ratelimit"
	"identity-core/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	errOTPExpiredOrMissing = errors.New("otp expired, consumed or missing")
	errOTPMismatch         = errors.New("otp mismatch")
)

// OTPEngine issues and verifies one-time codes anchored to an owner key
// (an email address). Verification targets only the newest record for the
// owner, so a freshly issued code supersedes older unconsumed ones.
type OTPEngine struct {
	repo    repository.OTPRepository
	limiter *ratelimit.Limiter
	cfg     utils.OTPConfig
	now     func() time.Time
	log     *zap.Logger
}

func NewOTPEngine(repo repository.OTPRepository, limiter *ratelimit.Limiter, cfg utils.OTPConfig, log *zap.Logger) *OTPEngine {
	return &OTPEngine{
		repo:    repo,
		limiter: limiter,
		cfg:     cfg,
		now:     time.Now,
		log:     log.With(zap.String("component", "otp_engine")),
	}
}

// Issue stores a new code for ownerKey and returns it for delivery.
func (e *OTPEngine) Issue(ctx context.Context, ownerKey string) (*entity.OTP, error) {
	owner := normalizeOwner(ownerKey)
	if owner == "" {
		return nil, apperror.Validation("owner key is required", map[string]string{"email": "This field is required"})
	}

	if e.limiter != nil {
		err := e.limiter.Allow(ctx, "otp:issue:"+owner, e.cfg.MaxIssues, e.cfg.IssueWindow())
		switch {
		case errors.Is(err, ratelimit.ErrRateLimited):
			e.log.Warn("OTP issuance rate limited", zap.String("owner", owner))
			return nil, apperror.Wrap(apperror.CodeRateLimited, "otp issuance limit reached", err)
		case err != nil:
			e.log.Warn("OTP issuance limiter unavailable", zap.Error(err))
		}
	}

	code, err := utils.GenerateOTP(e.cfg.Length)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeInternal, "generate otp", err)
	}

	now := e.now()
	otp := &entity.OTP{
		BaseSimple: entity.BaseSimple{
			ID:        uuid.New(),
			CreatedAt: now,
		},
		OwnerKey:  owner,
		Code:      code,
		ExpiresAt: now.Add(e.cfg.TTL()),
	}

	storeCtx, cancel := e.storeContext(ctx)
	defer cancel()

	if err := e.repo.Create(storeCtx, otp); err != nil {
		e.log.Error("Failed to save OTP", zap.Error(err), zap.String("owner", owner))
		return nil, apperror.Wrap(apperror.CodeUpstream, "save otp", err)
	}

	e.log.Info("OTP issued", zap.String("owner", owner), zap.Time("expires_at", otp.ExpiresAt))
	return otp, nil
}

// Verify consumes the newest code for ownerKey if it matches. Every failure,
// including store errors and timeouts, is reported as an invalid or expired
// code; the precise reason is only logged. An attempt is counted before the
// code is looked at, so concurrent guesses cannot outrun the budget.
func (e *OTPEngine) Verify(ctx context.Context, ownerKey, code string) error {
	owner := normalizeOwner(ownerKey)
	code = strings.TrimSpace(code)
	if owner == "" || code == "" {
		return apperror.Wrap(apperror.CodeInvalidOrExpiredCode, "otp verification failed", errOTPExpiredOrMissing)
	}

	attemptKey := "otp:verify:" + owner
	if e.limiter != nil {
		err := e.limiter.Allow(ctx, attemptKey, e.cfg.MaxAttempts, e.cfg.TTL())
		switch {
		case errors.Is(err, ratelimit.ErrRateLimited):
			e.log.Warn("OTP verification rate limited", zap.String("owner", owner))
			return apperror.Wrap(apperror.CodeRateLimited, "otp attempt limit reached", err)
		case err != nil:
			e.log.Error("OTP attempt limiter unavailable", zap.Error(err))
			return apperror.Wrap(apperror.CodeInvalidOrExpiredCode, "otp attempt limiter unavailable", err)
		}
	}

	now := e.now()
	check := func(otp *entity.OTP) error {
		if otp == nil || otp.IsUsed || otp.Expired(now) {
			return errOTPExpiredOrMissing
		}
		if subtle.ConstantTimeCompare([]byte(otp.Code), []byte(code)) != 1 {
			return errOTPMismatch
		}
		return nil
	}

	storeCtx, cancel := e.storeContext(ctx)
	defer cancel()

	_, err := e.repo.ConsumeLatest(storeCtx, owner, check)
	switch {
	case err == nil:
	case errors.Is(err, errOTPExpiredOrMissing), errors.Is(err, errOTPMismatch):
		e.log.Warn("OTP verification failed", zap.String("owner", owner), zap.String("reason", err.Error()))
		return apperror.Wrap(apperror.CodeInvalidOrExpiredCode, "otp verification failed", err)
	default:
		e.log.Error("OTP store failure during verification", zap.Error(err), zap.String("owner", owner))
		return apperror.Wrap(apperror.CodeInvalidOrExpiredCode, "otp store unavailable", err)
	}

	if e.limiter != nil {
		if err := e.limiter.Reset(ctx, attemptKey); err != nil {
			e.log.Warn("Failed to reset OTP attempts", zap.Error(err))
		}
	}

	e.log.Info("OTP verified", zap.String("owner", owner))
	return nil
}

func (e *OTPEngine) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout := e.cfg.StoreTimeout(); timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func normalizeOwner(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
