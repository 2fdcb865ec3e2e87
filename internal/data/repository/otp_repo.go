package repository

import (
	"context"
	"errors"
	"fmt"

	"identity-core/internal/data/entity"
	"identity-core/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// OTPCheck inspects the latest record for an owner (nil when none exists).
// A non-nil error aborts consumption and is returned unchanged.
type OTPCheck func(otp *entity.OTP) error

type OTPRepository interface {
	Create(ctx context.Context, otp *entity.OTP) error
	// ConsumeLatest locks the newest record for ownerKey, runs check and, if
	// check passes, marks the record used before releasing the lock.
	ConsumeLatest(ctx context.Context, ownerKey string, check OTPCheck) (*entity.OTP, error)
}

type otpRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewOTPRepository(db database.PgxIface, log *zap.Logger) OTPRepository {
	return &otpRepository{
		db:  db,
		log: log.With(zap.String("repository", "otp")),
	}
}

const latestOTPQuery = `
		SELECT id, owner_key, code, expires_at, is_used, created_at
		FROM otps
		WHERE owner_key = $1
		ORDER BY created_at DESC
		LIMIT 1
`

func (r *otpRepository) Create(ctx context.Context, otp *entity.OTP) error {
	query := `
		INSERT INTO otps (id, owner_key, code, expires_at, is_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query,
		otp.ID,
		otp.OwnerKey,
		otp.Code,
		otp.ExpiresAt,
		otp.IsUsed,
		otp.CreatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create OTP", zap.Error(err), zap.String("owner_key", otp.OwnerKey))
		return fmt.Errorf("create OTP for %s: %w", otp.OwnerKey, err)
	}

	return nil
}

func (r *otpRepository) ConsumeLatest(ctx context.Context, ownerKey string, check OTPCheck) (*entity.OTP, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin OTP consume for %s: %w", ownerKey, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Concurrent consumers serialise on the row lock and re-read is_used.
	otp, err := scanOTP(tx.QueryRow(ctx, latestOTPQuery+" FOR UPDATE", ownerKey))
	if err != nil {
		r.log.Error("Failed to lock latest OTP", zap.Error(err), zap.String("owner_key", ownerKey))
		return nil, fmt.Errorf("lock latest OTP for %s: %w", ownerKey, err)
	}

	if err := check(otp); err != nil {
		return otp, err
	}
	if otp == nil {
		return nil, fmt.Errorf("consume OTP for %s: %w", ownerKey, ErrNotFound)
	}

	if _, err := tx.Exec(ctx, `UPDATE otps SET is_used = true WHERE id = $1`, otp.ID); err != nil {
		r.log.Error("Failed to consume OTP", zap.Error(err), zap.String("otp_id", otp.ID.String()))
		return nil, fmt.Errorf("consume OTP %s: %w", otp.ID.String(), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit OTP consume %s: %w", otp.ID.String(), err)
	}

	otp.IsUsed = true
	return otp, nil
}

func scanOTP(row pgx.Row) (*entity.OTP, error) {
	var otp entity.OTP
	err := row.Scan(
		&otp.ID,
		&otp.OwnerKey,
		&otp.Code,
		&otp.ExpiresAt,
		&otp.IsUsed,
		&otp.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &otp, nil
}
