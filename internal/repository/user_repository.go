package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ouvidoria/ocorrencias-api/internal/utils"
)

// Roles stored in users.role. Kept lowercase; comparisons are exact.
const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// User mirrors the 'users' table. The verification and reset token columns
// share a single expiry slot; at most one single-use token per type is
// outstanding at any time and a new request overwrites the previous pair.
type User struct {
	ID                     uint64
	Email                  string
	PasswordHash           string
	Name                   string
	CPF                    string
	Phone                  string
	Role                   string
	IsEmailVerified        bool
	EmailVerificationToken sql.NullString
	PasswordResetToken     sql.NullString
	TokenExpiryDate        sql.NullTime
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// NewUser carries the fields needed to insert an account. The password
// arrives pre-hashed; e-mail and CPF arrive normalized by the handler.
type NewUser struct {
	Email             string
	PasswordHash      string
	Name              string
	CPF               string
	Phone             string
	Role              string
	VerificationToken string
	TokenExpiry       time.Time
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id,email,password_hash,name,cpf,phone,role,is_email_verified,
email_verification_token,password_reset_token,token_expiry_date,created_at,updated_at`

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.CPF, &u.Phone, &u.Role,
		&u.IsEmailVerified, &u.EmailVerificationToken, &u.PasswordResetToken,
		&u.TokenExpiryDate, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create inserts an unverified user and returns its ID. MySQL duplicate-key
// violations (error 1062) on e-mail, CPF, or token columns surface as
// ErrDuplicateIdentity so handlers can answer 409 instead of 500.
func (r *UserRepo) Create(ctx context.Context, nu NewUser) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, name, cpf, phone, role,
		   is_email_verified, email_verification_token, token_expiry_date)
		 VALUES (?,?,?,?,?,?,0,?,?)`,
		nu.Email, nu.PasswordHash, nu.Name, nu.CPF, nu.Phone, nu.Role,
		nu.VerificationToken, nu.TokenExpiry)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrDuplicateIdentity
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized e-mail.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	email = utils.NormalizeEmail(email)
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByCPF fetches a user by normalized CPF digits.
func (r *UserRepo) GetByCPF(ctx context.Context, cpf string) (User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE cpf=? LIMIT 1", utils.NormalizeCPF(cpf)))
}

// GetByVerificationToken fetches a user whose outstanding e-mail verification
// token matches. Expiry is checked by the caller.
func (r *UserRepo) GetByVerificationToken(ctx context.Context, token string) (User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email_verification_token=? LIMIT 1", token))
}

// GetByResetToken fetches a user whose outstanding password reset token matches.
func (r *UserRepo) GetByResetToken(ctx context.Context, token string) (User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE password_reset_token=? LIMIT 1", token))
}

// ExistsByCPFPhone reports whether a user with exactly this CPF and phone is
// registered. Used by the partner-system check endpoint.
func (r *UserRepo) ExistsByCPFPhone(ctx context.Context, cpf, phone string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE cpf=? AND phone=?",
		utils.NormalizeCPF(cpf), phone).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns users ordered by id with skip/limit pagination.
func (r *UserRepo) List(ctx context.Context, skip, limit int) ([]User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY id LIMIT ? OFFSET ?", limit, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.CPF, &u.Phone, &u.Role,
			&u.IsEmailVerified, &u.EmailVerificationToken, &u.PasswordResetToken,
			&u.TokenExpiryDate, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SetVerificationToken stores a fresh verification token and expiry,
// overwriting any previous one. The old token stops being redeemable the
// moment this commits.
func (r *UserRepo) SetVerificationToken(ctx context.Context, userID uint64, token string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email_verification_token=?, token_expiry_date=? WHERE id=?",
		token, exp, userID)
	if err != nil && isDuplicateKey(err) {
		return ErrDuplicateIdentity
	}
	return err
}

// ConsumeVerificationToken flips is_email_verified and clears the token and
// expiry in the same statement, so redeeming is atomic and idempotence falls
// out naturally: the second attempt no longer matches any row.
func (r *UserRepo) ConsumeVerificationToken(ctx context.Context, userID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET is_email_verified=1, email_verification_token=NULL,
		   token_expiry_date=NULL
		 WHERE id=? AND email_verification_token IS NOT NULL`, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetResetToken stores a fresh password reset token and expiry, overwriting
// any previous one.
func (r *UserRepo) SetResetToken(ctx context.Context, userID uint64, token string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_reset_token=?, token_expiry_date=? WHERE id=?",
		token, exp, userID)
	if err != nil && isDuplicateKey(err) {
		return ErrDuplicateIdentity
	}
	return err
}

// ResetPassword stores the new hash and clears the reset token and expiry in
// one statement.
func (r *UserRepo) ResetPassword(ctx context.Context, userID uint64, passwordHash string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET password_hash=?, password_reset_token=NULL, token_expiry_date=NULL
		 WHERE id=? AND password_reset_token IS NOT NULL`, passwordHash, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Update changes the mutable profile fields. Empty strings leave the current
// value in place; a non-empty passwordHash replaces the stored one.
func (r *UserRepo) Update(ctx context.Context, id uint64, name, phone, role, passwordHash string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users SET
		   name = IF(?='', name, ?),
		   phone = IF(?='', phone, ?),
		   role = IF(?='', role, ?),
		   password_hash = IF(?='', password_hash, ?)
		 WHERE id=?`,
		name, name, phone, phone, role, role, passwordHash, passwordHash, id)
	// MySQL reports zero affected rows for a no-op update, so existence is
	// checked by the caller rather than inferred here.
	return err
}

// Delete removes a user row.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

