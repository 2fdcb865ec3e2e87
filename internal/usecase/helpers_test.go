package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"identity-core/internal/data/entity"
	"identity-core/internal/data/repository"
	"identity-core/pkg/ratelimit"
	"identity-core/pkg/security"
	"identity-core/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "s3cret-passw0rd"

type adminEvent struct {
	Action   string
	Actor    string
	Metadata map[string]string
}

type fakeNotifier struct {
	mu       sync.Mutex
	fail     bool
	codes    map[string][]string
	welcomes []string
	resets   []string
	events   []adminEvent
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{codes: make(map[string][]string)}
}

func (f *fakeNotifier) SendWelcome(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.welcomes = append(f.welcomes, email)
	return f.err()
}

func (f *fakeNotifier) SendOTPCode(_ context.Context, email, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[email] = append(f.codes[email], code)
	return f.err()
}

func (f *fakeNotifier) SendPasswordResetNotice(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, email)
	return f.err()
}

func (f *fakeNotifier) NotifyAdminEvent(_ context.Context, action, actorEmail string, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, adminEvent{Action: action, Actor: actorEmail, Metadata: metadata})
	return f.err()
}

func (f *fakeNotifier) err() error {
	if f.fail {
		return errors.New("smtp unavailable")
	}
	return nil
}

type harness struct {
	t        *testing.T
	svc      *Service
	repo     *repository.Repository
	notifier *fakeNotifier
	tokens   *security.TokenIssuer
	hasher   *security.PasswordHasher
	totp     *security.TOTP
}

func testOTPConfig() utils.OTPConfig {
	return utils.OTPConfig{
		ExpiryMinutes:       10,
		Length:              6,
		StoreTimeoutSeconds: 5,
		MaxIssues:           5,
		IssueWindowMinutes:  15,
		MaxAttempts:         5,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	log := zap.NewNop()
	tokens, err := security.NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour, "identity-core")
	require.NoError(t, err)

	h := &harness{
		t:        t,
		repo:     repository.NewMemoryRepository(log),
		notifier: newFakeNotifier(),
		tokens:   tokens,
		hasher:   security.NewPasswordHasher(bcrypt.MinCost),
		totp:     security.NewTOTP("identity-core"),
	}
	h.svc = NewService(Deps{
		Repo:     h.repo,
		Config:   &utils.Config{OTP: testOTPConfig()},
		Hasher:   h.hasher,
		Tokens:   h.tokens,
		TOTP:     h.totp,
		Notifier: h.notifier,
		Limiter:  ratelimit.New(ratelimit.NewMemoryCounter(), "test"),
		Log:      log,
	})
	return h
}

// wait flushes background notifications.
func (h *harness) wait() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(h.t, h.svc.Wait(ctx))
}

func (h *harness) lastCode(email string) string {
	h.t.Helper()
	h.wait()
	h.notifier.mu.Lock()
	defer h.notifier.mu.Unlock()
	codes := h.notifier.codes[email]
	require.NotEmpty(h.t, codes, "no code sent to %s", email)
	return codes[len(codes)-1]
}

// seedUser stores an identity directly. An empty password creates a
// federated-only account.
func (h *harness) seedUser(email, username, password string, role entity.UserRole) *entity.User {
	h.t.Helper()
	now := time.Now()
	user := &entity.User{
		Base:     entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Username: username,
		Email:    email,
		Role:     role,
	}
	if password != "" {
		hashed, err := h.hasher.Hash(password)
		require.NoError(h.t, err)
		user.PasswordHash = &hashed
	}
	require.NoError(h.t, h.repo.User.Create(context.Background(), user))
	return user
}

func (h *harness) reload(id uuid.UUID) *entity.User {
	h.t.Helper()
	user, err := h.repo.User.FindByID(context.Background(), id)
	require.NoError(h.t, err)
	return user
}
