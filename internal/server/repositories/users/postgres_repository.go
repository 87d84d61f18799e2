package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cryptexdrive/internal/common"
	"github.com/dmitrijs2005/cryptexdrive/internal/dbx"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the user. Uniqueness of username and email is left to the
// table constraints; a violation comes back as common.ErrDuplicateIdentity.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (username, password_hash, email, is_admin)
         VALUES ($1, $2, $3, $4)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.UserName, user.PasswordHash, user.Email, user.IsAdmin).Scan(&user.ID)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	query :=
		`SELECT id, username, password_hash, email, is_admin, otp, otp_time, last_otp_sent, created_at FROM users
		 WHERE username = $1
		 `

	var (
		user     models.User
		otp      sql.NullString
		otpTime  sql.NullTime
		lastSent sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, userName).Scan(&user.ID, &user.UserName, &user.PasswordHash,
		&user.Email, &user.IsAdmin, &otp, &otpTime, &lastSent, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if otp.Valid {
		user.OTP = &otp.String
	}
	if otpTime.Valid {
		user.OTPTime = &otpTime.Time
	}
	if lastSent.Valid {
		user.LastOTPSent = &lastSent.Time
	}

	return &user, nil
}

func (r *PostgresRepository) SetAdmin(ctx context.Context, userName string, admin bool) error {
	query := `UPDATE users SET is_admin = $2 WHERE username = $1`

	res, err := r.db.ExecContext(ctx, query, userName, admin)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userName string) (bool, error) {
	query := `DELETE FROM users WHERE username = $1`

	res, err := r.db.ExecContext(ctx, query, userName)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// SetOTP is a single conditional UPDATE, so two concurrent issuers cannot
// both pass the rate limit.
func (r *PostgresRepository) SetOTP(ctx context.Context, userName, code string, now, notSentSince time.Time) (bool, error) {
	query :=
		`UPDATE users SET otp = $2, otp_time = $3, last_otp_sent = $3
		 WHERE username = $1 AND (last_otp_sent IS NULL OR last_otp_sent <= $4)
		 `

	res, err := r.db.ExecContext(ctx, query, userName, code, now, notSentSince)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) LockOTP(ctx context.Context, userName string) (*string, *time.Time, error) {
	query := `SELECT otp, otp_time FROM users WHERE username = $1 FOR UPDATE`

	var (
		otp     sql.NullString
		otpTime sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx, query, userName).Scan(&otp, &otpTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, common.ErrorNotFound
		}
		return nil, nil, fmt.Errorf("db error: %w", err)
	}

	var (
		code     *string
		issuedAt *time.Time
	)
	if otp.Valid {
		code = &otp.String
	}
	if otpTime.Valid {
		issuedAt = &otpTime.Time
	}
	return code, issuedAt, nil
}

func (r *PostgresRepository) ClearOTP(ctx context.Context, userName string) error {
	query := `UPDATE users SET otp = NULL, otp_time = NULL WHERE username = $1`

	if _, err := r.db.ExecContext(ctx, query, userName); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
