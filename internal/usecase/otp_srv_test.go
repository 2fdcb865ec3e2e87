package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"identity-core/internal/data/entity"
	"identity-core/internal/data/repository"
	"identity-core/pkg/apperror"
	"identity-core/pkg/ratelimit"
	"identity-core/pkg/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newEngine(t *testing.T, cfg utils.OTPConfig) *OTPEngine {
	t.Helper()
	repo := repository.NewMemoryRepository(zap.NewNop())
	return NewOTPEngine(repo.OTP, ratelimit.New(ratelimit.NewMemoryCounter(), "test"), cfg, zap.NewNop())
}

func TestOTPVerifyIsSingleUse(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, testOTPConfig())

	otp, err := e.Issue(ctx, "A@X.com")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", otp.OwnerKey)
	assert.Len(t, otp.Code, 6)

	require.NoError(t, e.Verify(ctx, "a@x.com", otp.Code))
	err = e.Verify(ctx, "a@x.com", otp.Code)
	assert.ErrorIs(t, err, apperror.ErrInvalidOrExpiredCode)
}

func TestOTPVerifyRejectsExpiredCode(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, testOTPConfig())

	start := time.Now()
	e.now = func() time.Time { return start }
	otp, err := e.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	e.now = func() time.Time { return start.Add(10*time.Minute + time.Second) }
	assert.ErrorIs(t, e.Verify(ctx, "a@x.com", otp.Code), apperror.ErrInvalidOrExpiredCode)
}

func TestOTPLatestCodeWins(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, testOTPConfig())

	first, err := e.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	second, err := e.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	if first.Code != second.Code {
		assert.ErrorIs(t, e.Verify(ctx, "a@x.com", first.Code), apperror.ErrInvalidOrExpiredCode)
	}
	require.NoError(t, e.Verify(ctx, "a@x.com", second.Code))
}

func TestOTPMismatchAndExpiryLookTheSame(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, testOTPConfig())

	missing := e.Verify(ctx, "nobody@x.com", "123456")

	otp, err := e.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	wrong := "000000"
	if otp.Code == wrong {
		wrong = "111111"
	}
	mismatch := e.Verify(ctx, "a@x.com", wrong)

	for _, err := range []error{missing, mismatch} {
		var appErr *apperror.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperror.CodeInvalidOrExpiredCode, appErr.Code)
		assert.Equal(t, "Invalid or expired OTP", appErr.PublicMessage())
	}
}

func TestOTPConcurrentVerifyHasOneWinner(t *testing.T) {
	ctx := context.Background()
	cfg := testOTPConfig()
	cfg.MaxAttempts = 100
	e := newEngine(t, cfg)

	otp, err := e.Issue(ctx, "race@x.com")
	require.NoError(t, err)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := e.Verify(ctx, "race@x.com", otp.Code)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			if apperror.CodeOf(err) == apperror.CodeInvalidOrExpiredCode {
				failures++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, failures)
}

func TestOTPAttemptLimit(t *testing.T) {
	ctx := context.Background()
	cfg := testOTPConfig()
	cfg.MaxAttempts = 3
	e := newEngine(t, cfg)

	otp, err := e.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	wrong := "000000"
	if otp.Code == wrong {
		wrong = "111111"
	}

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, e.Verify(ctx, "a@x.com", wrong), apperror.ErrInvalidOrExpiredCode)
	}
	assert.ErrorIs(t, e.Verify(ctx, "a@x.com", otp.Code), apperror.ErrRateLimited)
}

// slowOTPRepo delays ConsumeLatest and counts how many calls reach it.
type slowOTPRepo struct {
	repository.OTPRepository
	delay    time.Duration
	consumed atomic.Int32
}

func (r *slowOTPRepo) ConsumeLatest(ctx context.Context, owner string, check repository.OTPCheck) (*entity.OTP, error) {
	r.consumed.Add(1)
	time.Sleep(r.delay)
	return r.OTPRepository.ConsumeLatest(ctx, owner, check)
}

func TestOTPAttemptLimitHoldsUnderConcurrentGuesses(t *testing.T) {
	ctx := context.Background()
	cfg := testOTPConfig()
	cfg.MaxAttempts = 5

	repo := &slowOTPRepo{OTPRepository: repository.NewMemoryRepository(zap.NewNop()).OTP, delay: 20 * time.Millisecond}
	e := NewOTPEngine(repo, ratelimit.New(ratelimit.NewMemoryCounter(), "test"), cfg, zap.NewNop())

	otp, err := e.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	wrong := "000000"
	if otp.Code == wrong {
		wrong = "111111"
	}

	const guesses = 100
	var (
		wg      sync.WaitGroup
		limited atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < guesses; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if apperror.CodeOf(e.Verify(ctx, "a@x.com", wrong)) == apperror.CodeRateLimited {
				limited.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(cfg.MaxAttempts), repo.consumed.Load())
	assert.Equal(t, int32(guesses-cfg.MaxAttempts), limited.Load())
	assert.ErrorIs(t, e.Verify(ctx, "a@x.com", otp.Code), apperror.ErrRateLimited)
}

func TestOTPAttemptsResetOnSuccess(t *testing.T) {
	ctx := context.Background()
	cfg := testOTPConfig()
	cfg.MaxAttempts = 2

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := repository.NewMemoryRepository(zap.NewNop())
	e := NewOTPEngine(repo.OTP, ratelimit.New(ratelimit.NewRedisCounter(client), "test"), cfg, zap.NewNop())

	otp, err := e.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	wrong := "000000"
	if otp.Code == wrong {
		wrong = "111111"
	}

	assert.Error(t, e.Verify(ctx, "a@x.com", wrong))
	assert.True(t, mr.Exists("test:otp:verify:a@x.com"))
	require.NoError(t, e.Verify(ctx, "a@x.com", otp.Code))
	assert.False(t, mr.Exists("test:otp:verify:a@x.com"))
}

func TestOTPIssueLimit(t *testing.T) {
	ctx := context.Background()
	cfg := testOTPConfig()
	cfg.MaxIssues = 2
	e := newEngine(t, cfg)

	for i := 0; i < 2; i++ {
		_, err := e.Issue(ctx, "a@x.com")
		require.NoError(t, err)
	}
	_, err := e.Issue(ctx, "a@x.com")
	assert.ErrorIs(t, err, apperror.ErrRateLimited)
}

type failingOTPRepo struct {
	repository.OTPRepository
	err error
}

func (f failingOTPRepo) ConsumeLatest(context.Context, string, repository.OTPCheck) (*entity.OTP, error) {
	return nil, f.err
}

func (f failingOTPRepo) Create(context.Context, *entity.OTP) error {
	return f.err
}

func TestOTPStoreFailuresFailClosed(t *testing.T) {
	ctx := context.Background()
	e := NewOTPEngine(failingOTPRepo{err: context.DeadlineExceeded}, nil, testOTPConfig(), zap.NewNop())

	err := e.Verify(ctx, "a@x.com", "123456")
	assert.ErrorIs(t, err, apperror.ErrInvalidOrExpiredCode)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = e.Issue(ctx, "a@x.com")
	assert.ErrorIs(t, err, apperror.ErrUpstream)
}

func TestOTPLimiterOutageFailsClosedForVerify(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	repo := repository.NewMemoryRepository(zap.NewNop())
	e := NewOTPEngine(repo.OTP, ratelimit.New(ratelimit.NewRedisCounter(client), "test"), testOTPConfig(), zap.NewNop())

	otp, err := e.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	mr.Close()

	assert.ErrorIs(t, e.Verify(ctx, "a@x.com", otp.Code), apperror.ErrInvalidOrExpiredCode)

	// issuance keeps working without the limiter
	_, err = e.Issue(ctx, "b@x.com")
	assert.NoError(t, err)
}

func TestOTPRecordExpiry(t *testing.T) {
	now := time.Now()
	otp := entity.OTP{BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: now}, ExpiresAt: now.Add(time.Minute)}
	assert.False(t, otp.Expired(now.Add(time.Minute)))
	assert.True(t, otp.Expired(now.Add(time.Minute+time.Nanosecond)))
}
