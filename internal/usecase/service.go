package usecase

import (
	"context"
	"sync"
	"time"

	"identity-core/internal/data/repository"
	"identity-core/pkg/apperror"
	"identity-core/pkg/notify"
	"identity-core/pkg/ratelimit"
	"identity-core/pkg/security"
	"identity-core/pkg/utils"

	"go.uber.org/zap"
)

const notifyTimeout = 30 * time.Second

// Deps are the collaborators shared by the services. Limiter may be nil, in
// which case no rate limits are applied.
type Deps struct {
	Repo     *repository.Repository
	Config   *utils.Config
	Hasher   *security.PasswordHasher
	Tokens   *security.TokenIssuer
	TOTP     *security.TOTP
	Notifier notify.Notifier
	Limiter  *ratelimit.Limiter
	Log      *zap.Logger
}

type Service struct {
	Auth      AuthService
	TwoFactor TwoFactorService
	User      UserService

	dispatch *dispatcher
}

func NewService(deps Deps) *Service {
	d := newDispatcher(deps.Notifier, deps.Log)
	otp := NewOTPEngine(deps.Repo.OTP, deps.Limiter, deps.Config.OTP, deps.Log)

	return &Service{
		Auth:      NewAuthService(deps, otp, d),
		TwoFactor: NewTwoFactorService(deps, d),
		User:      NewUserService(deps.Repo.User, d, deps.Log),
		dispatch:  d,
	}
}

// Wait blocks until in-flight notifications finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	return s.dispatch.wait(ctx)
}

// dispatcher runs notifications in the background. Failures are logged and
// never reach the request that triggered them.
type dispatcher struct {
	notifier notify.Notifier
	log      *zap.Logger
	wg       sync.WaitGroup
}

func newDispatcher(n notify.Notifier, log *zap.Logger) *dispatcher {
	return &dispatcher{notifier: n, log: log.With(zap.String("component", "notify_dispatch"))}
}

func (d *dispatcher) send(kind string, fn func(ctx context.Context, n notify.Notifier) error) {
	if d.notifier == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := fn(ctx, d.notifier); err != nil {
			d.log.Error("Failed to send notification", zap.String("kind", kind), zap.Error(err))
		}
	}()
}

func (d *dispatcher) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func validate(req any) error {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return apperror.Validation("validation failed: "+utils.FormatValidationErrors(errs), errs)
	}
	return nil
}
