package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-inventory/app/entity"
)

const userSelectColumns = `id, full_name, username, email, password_hash, avatar_url, avatar_public_id,
		       cover_image_url, cover_image_public_id, timezone, role, refresh_token, is_verified,
		       otp_signup, otp_signup_expires_at, forget_password_token, forget_password_expires_at,
		       created_at, updated_at`

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (full_name, username, email, password_hash, avatar_url, avatar_public_id,
		                   cover_image_url, cover_image_public_id, timezone, role, is_verified,
		                   otp_signup, otp_signup_expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		user.FullName,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.AvatarURL,
		user.AvatarPublicID,
		user.CoverImageURL,
		user.CoverImagePublicID,
		user.Timezone,
		string(user.Role),
		user.IsVerified,
		user.OTPSignup,
		user.OTPSignupExpiresAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return translateError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = uint64(id)
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*entity.User, error) {
	query := `SELECT ` + userSelectColumns + `
		FROM users WHERE id = ?`
	return r.findOne(ctx, query, id)
}

// FindByUsernameAndEmail requires both identifiers to belong to the same row.
func (r *UserRepository) FindByUsernameAndEmail(ctx context.Context, username, email string) (*entity.User, error) {
	query := `SELECT ` + userSelectColumns + `
		FROM users WHERE username = ? AND email = ?`
	return r.findOne(ctx, query, username, email)
}

func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*entity.User, error) {
	query := `SELECT ` + userSelectColumns + `
		FROM users WHERE username = ? OR email = ? LIMIT 1`
	return r.findOne(ctx, query, username, email)
}

// FindConflicting returns another user already holding username or email.
func (r *UserRepository) FindConflicting(ctx context.Context, excludeID uint64, username, email string) (*entity.User, error) {
	query := `SELECT ` + userSelectColumns + `
		FROM users WHERE (username = ? OR email = ?) AND id <> ? LIMIT 1`
	return r.findOne(ctx, query, username, email, excludeID)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	query := `SELECT ` + userSelectColumns + `
		FROM users WHERE email = ?`
	return r.findOne(ctx, query, email)
}

// FindByActiveOTP returns the user holding an unexpired signup OTP.
func (r *UserRepository) FindByActiveOTP(ctx context.Context, otp string, now time.Time) (*entity.User, error) {
	query := `SELECT ` + userSelectColumns + `
		FROM users WHERE otp_signup = ? AND otp_signup_expires_at > ? LIMIT 1`
	return r.findOne(ctx, query, otp, now)
}

func (r *UserRepository) FindByActiveResetToken(ctx context.Context, token string, now time.Time) (*entity.User, error) {
	query := `SELECT ` + userSelectColumns + `
		FROM users WHERE forget_password_token = ? AND forget_password_expires_at > ? LIMIT 1`
	return r.findOne(ctx, query, token, now)
}

func (r *UserRepository) FindAnyByRole(ctx context.Context, role entity.Role) (*entity.User, error) {
	query := `SELECT ` + userSelectColumns + `
		FROM users WHERE role = ? ORDER BY id LIMIT 1`
	return r.findOne(ctx, query, string(role))
}

// Update persists profile and image fields only. Credentials, one-time tokens,
// role and refresh token each have their own targeted statement.
func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	query := `
		UPDATE users SET
			full_name = ?,
			username = ?,
			email = ?,
			avatar_url = ?,
			avatar_public_id = ?,
			cover_image_url = ?,
			cover_image_public_id = ?,
			timezone = ?,
			updated_at = ?
		WHERE id = ?
	`
	user.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		user.FullName,
		user.Username,
		user.Email,
		user.AvatarURL,
		user.AvatarPublicID,
		user.CoverImageURL,
		user.CoverImagePublicID,
		user.Timezone,
		user.UpdatedAt,
		user.ID,
	)
	return translateError(err)
}

// SetSignupOTP stores a fresh signup OTP while the account is still unverified.
func (r *UserRepository) SetSignupOTP(ctx context.Context, userID uint64, otp string, expiresAt time.Time) (bool, error) {
	query := `
		UPDATE users SET
			otp_signup = ?,
			otp_signup_expires_at = ?,
			updated_at = ?
		WHERE id = ? AND is_verified = 0
	`
	return r.execAffected(ctx, query, otp, expiresAt, time.Now(), userID)
}

func (r *UserRepository) SetResetToken(ctx context.Context, userID uint64, token string, expiresAt time.Time) error {
	query := `
		UPDATE users SET
			forget_password_token = ?,
			forget_password_expires_at = ?,
			updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, token, expiresAt, time.Now(), userID)
	return err
}

// UpdatePassword swaps the hash only while currentHash is still stored, and drops the
// refresh token and any pending reset token in the same statement.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID uint64, currentHash, newHash string) (bool, error) {
	query := `
		UPDATE users SET
			password_hash = ?,
			refresh_token = NULL,
			forget_password_token = NULL,
			forget_password_expires_at = NULL,
			updated_at = ?
		WHERE id = ? AND password_hash = ?
	`
	return r.execAffected(ctx, query, newHash, time.Now(), userID, currentHash)
}

// ConsumeSignupOTP verifies the user and clears the OTP pair only while the stored
// OTP still matches and is unexpired. It reports whether a row was changed.
func (r *UserRepository) ConsumeSignupOTP(ctx context.Context, userID uint64, otp string, now time.Time) (bool, error) {
	query := `
		UPDATE users SET
			is_verified = 1,
			otp_signup = NULL,
			otp_signup_expires_at = NULL,
			updated_at = ?
		WHERE id = ? AND otp_signup = ? AND otp_signup_expires_at > ?
	`
	return r.execAffected(ctx, query, now, userID, otp, now)
}

// ConsumeResetToken swaps the password hash, clears the reset pair and drops the
// stored refresh token in one conditional statement.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, userID uint64, token, passwordHash string, now time.Time) (bool, error) {
	query := `
		UPDATE users SET
			password_hash = ?,
			forget_password_token = NULL,
			forget_password_expires_at = NULL,
			refresh_token = NULL,
			updated_at = ?
		WHERE id = ? AND forget_password_token = ? AND forget_password_expires_at > ?
	`
	return r.execAffected(ctx, query, passwordHash, now, userID, token, now)
}

func (r *UserRepository) SetRefreshToken(ctx context.Context, userID uint64, token string) error {
	query := `UPDATE users SET refresh_token = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, token, time.Now(), userID)
	return err
}

// RotateRefreshToken replaces the stored refresh token only if it still equals current.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, userID uint64, current, next string) (bool, error) {
	query := `UPDATE users SET refresh_token = ?, updated_at = ? WHERE id = ? AND refresh_token = ?`
	return r.execAffected(ctx, query, next, time.Now(), userID, current)
}

func (r *UserRepository) ClearRefreshToken(ctx context.Context, userID uint64) error {
	query := `UPDATE users SET refresh_token = NULL, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, time.Now(), userID)
	return err
}

func (r *UserRepository) UpdateRole(ctx context.Context, userID uint64, role entity.Role) (bool, error) {
	query := `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`
	return r.execAffected(ctx, query, string(role), time.Now(), userID)
}

func (r *UserRepository) execAffected(ctx context.Context, query string, args ...interface{}) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func scanUser(scan rowScanner) (*entity.User, error) {
	user := &entity.User{}
	var role string
	if err := scan(
		&user.ID,
		&user.FullName,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.AvatarURL,
		&user.AvatarPublicID,
		&user.CoverImageURL,
		&user.CoverImagePublicID,
		&user.Timezone,
		&role,
		&user.RefreshToken,
		&user.IsVerified,
		&user.OTPSignup,
		&user.OTPSignupExpiresAt,
		&user.ForgetPasswordToken,
		&user.ForgetPasswordExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = entity.Role(role)
	return user, nil
}
