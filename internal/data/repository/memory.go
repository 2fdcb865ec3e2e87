package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"identity-core/internal/data/entity"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// memoryStore backs both in-memory repositories. One mutex guards users and
// OTPs so ConsumeLatest is atomic with respect to every other call.
type memoryStore struct {
	mu    sync.Mutex
	users []*entity.User
	otps  map[string][]*entity.OTP
}

// NewMemoryRepository returns a Repository that keeps everything in process
// memory. Used with STORE_DRIVER=memory and in tests.
func NewMemoryRepository(log *zap.Logger) *Repository {
	store := &memoryStore{otps: make(map[string][]*entity.OTP)}
	return &Repository{
		User: &memoryUserRepository{store: store, log: log.With(zap.String("repository", "user"))},
		OTP:  &memoryOTPRepository{store: store, log: log.With(zap.String("repository", "otp"))},
	}
}

type memoryUserRepository struct {
	store *memoryStore
	log   *zap.Logger
}

func (r *memoryUserRepository) Create(ctx context.Context, user *entity.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, u := range r.store.users {
		if u.DeletedAt != nil {
			continue
		}
		if strings.EqualFold(u.Email, user.Email) || u.Username == user.Username || u.ID == user.ID {
			return fmt.Errorf("create user %s: %w", user.Email, ErrDuplicate)
		}
	}

	r.store.users = append(r.store.users, cloneUser(user))
	return nil
}

func (r *memoryUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return r.find(ctx, func(u *entity.User) bool { return u.ID == id })
}

func (r *memoryUserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.find(ctx, func(u *entity.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *memoryUserRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.find(ctx, func(u *entity.User) bool { return u.Username == username })
}

func (r *memoryUserRepository) FindAll(ctx context.Context, limit, offset int) ([]*entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	live := make([]*entity.User, 0, len(r.store.users))
	for i := len(r.store.users) - 1; i >= 0; i-- {
		if u := r.store.users[i]; u.DeletedAt == nil {
			live = append(live, u)
		}
	}
	sort.SliceStable(live, func(i, j int) bool { return live[i].CreatedAt.After(live[j].CreatedAt) })

	if offset >= len(live) {
		return nil, nil
	}
	end := offset + limit
	if end > len(live) {
		end = len(live)
	}

	users := make([]*entity.User, 0, end-offset)
	for _, u := range live[offset:end] {
		users = append(users, cloneUser(u))
	}
	return users, nil
}

func (r *memoryUserRepository) CountAll(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var count int64
	for _, u := range r.store.users {
		if u.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

func (r *memoryUserRepository) Update(ctx context.Context, id uuid.UUID, patch entity.UserPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	u := r.live(id)
	if u == nil {
		return fmt.Errorf("update user %s: %w", id.String(), ErrNotFound)
	}
	if patch.PasswordHash != nil {
		hash := *patch.PasswordHash
		u.PasswordHash = &hash
	}
	u.UpdatedAt = time.Now()
	return nil
}

func (r *memoryUserRepository) EnableTwoFactor(ctx context.Context, id uuid.UUID, secret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	u := r.live(id)
	if u == nil {
		return fmt.Errorf("enable two-factor for %s: %w", id.String(), ErrNotFound)
	}
	if u.TwoFactorEnabled {
		return fmt.Errorf("enable two-factor for %s: %w", id.String(), ErrConflict)
	}
	u.TwoFactorEnabled = true
	u.TwoFactorSecret = &secret
	u.UpdatedAt = time.Now()
	return nil
}

func (r *memoryUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	u := r.live(id)
	if u == nil {
		return fmt.Errorf("delete user %s: %w", id.String(), ErrNotFound)
	}
	now := time.Now()
	u.DeletedAt = &now

	r.log.Info("User deleted", zap.String("id", id.String()))
	return nil
}

func (r *memoryUserRepository) find(ctx context.Context, match func(*entity.User) bool) (*entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, u := range r.store.users {
		if u.DeletedAt == nil && match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

// live must be called with the store lock held.
func (r *memoryUserRepository) live(id uuid.UUID) *entity.User {
	for _, u := range r.store.users {
		if u.ID == id && u.DeletedAt == nil {
			return u
		}
	}
	return nil
}

type memoryOTPRepository struct {
	store *memoryStore
	log   *zap.Logger
}

func (r *memoryOTPRepository) Create(ctx context.Context, otp *entity.OTP) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	record := *otp
	r.store.otps[otp.OwnerKey] = append(r.store.otps[otp.OwnerKey], &record)
	return nil
}

func (r *memoryOTPRepository) ConsumeLatest(ctx context.Context, ownerKey string, check OTPCheck) (*entity.OTP, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	latest := r.latest(ownerKey)
	var snapshot *entity.OTP
	if latest != nil {
		record := *latest
		snapshot = &record
	}

	if err := check(snapshot); err != nil {
		return snapshot, err
	}
	if latest == nil {
		return nil, fmt.Errorf("consume OTP for %s: %w", ownerKey, ErrNotFound)
	}

	latest.IsUsed = true
	snapshot.IsUsed = true
	return snapshot, nil
}

// latest must be called with the store lock held.
func (r *memoryOTPRepository) latest(ownerKey string) *entity.OTP {
	records := r.store.otps[ownerKey]
	if len(records) == 0 {
		return nil
	}
	return records[len(records)-1]
}

func cloneUser(u *entity.User) *entity.User {
	c := *u
	if u.PasswordHash != nil {
		hash := *u.PasswordHash
		c.PasswordHash = &hash
	}
	if u.TwoFactorSecret != nil {
		secret := *u.TwoFactorSecret
		c.TwoFactorSecret = &secret
	}
	if u.DeletedAt != nil {
		deletedAt := *u.DeletedAt
		c.DeletedAt = &deletedAt
	}
	return &c
}
