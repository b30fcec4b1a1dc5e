package handler

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ouvidoria/ocorrencias-api/internal/config"
	"github.com/ouvidoria/ocorrencias-api/internal/middleware"
	"github.com/ouvidoria/ocorrencias-api/internal/queue"
	"github.com/ouvidoria/ocorrencias-api/internal/repository"
	"github.com/ouvidoria/ocorrencias-api/internal/utils"
)

// UserStore is the slice of the user repository the auth flows need.
// *repository.UserRepo satisfies it.
type UserStore interface {
	Create(ctx context.Context, nu repository.NewUser) (uint64, error)
	GetByEmail(ctx context.Context, email string) (repository.User, error)
	GetByVerificationToken(ctx context.Context, token string) (repository.User, error)
	GetByResetToken(ctx context.Context, token string) (repository.User, error)
	SetVerificationToken(ctx context.Context, userID uint64, token string, exp time.Time) error
	ConsumeVerificationToken(ctx context.Context, userID uint64) error
	SetResetToken(ctx context.Context, userID uint64, token string, exp time.Time) error
	ResetPassword(ctx context.Context, userID uint64, passwordHash string) error
}

// MailPublisher dispatches a mail event to the broker. Failures are logged
// by the flows, never surfaced: by the time an event is published its token
// is already persisted, and the user can request a fresh one.
type MailPublisher interface {
	PublishMail(ctx context.Context, ev queue.MailEvent) error
}

// AuthHandler bundles dependencies for the authentication endpoints.
type AuthHandler struct {
	Cfg   config.Config
	Users UserStore
	Mail  MailPublisher
}

func NewAuthHandler(cfg config.Config, users UserStore, mail MailPublisher) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Mail: mail}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	CPF      string `json:"cpf"`
	Phone    string `json:"phone"`
	Role     string `json:"role"` // admin | client, defaults to client
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type emailReq struct {
	Email string `json:"email"`
}
type newPasswordReq struct {
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID              uint64 `json:"id"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	Role            string `json:"role"`
	IsEmailVerified bool   `json:"is_email_verified"`
}
type authResp struct {
	User      userPart  `json:"user"`
	TokenType string    `json:"token_type"`
	Access    tokenPart `json:"access"`
	Refresh   tokenPart `json:"refresh"`
}

func toUserPart(u repository.User) userPart {
	return userPart{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		Role:            u.Role,
		IsEmailVerified: u.IsEmailVerified,
	}
}

const minPasswordLen = 8

// genericAccepted is the uniform answer of the request-token endpoints; it
// never reveals whether the address is registered.
var genericAccepted = echo.Map{"message": "se o e-mail estiver cadastrado, uma mensagem será enviada"}

// Register creates an unverified account, persists its verification token
// and then dispatches the verification mail. No tokens are returned;
// registration does not log the user in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = utils.NormalizeEmail(req.Email)
	if !utils.ValidEmail(req.Email) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid email"})
	}
	if len(req.Password) < minPasswordLen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password too short"})
	}
	if !utils.ValidCPF(req.CPF) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid cpf"})
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role != repository.RoleAdmin && role != repository.RoleClient {
		role = repository.RoleClient
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
	verifTok, err := utils.NewSecureToken(utils.SecureTokenBytes)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	exp := time.Now().UTC().Add(time.Duration(h.Cfg.VerifyTTLHours) * time.Hour)
	uid, err := h.Users.Create(ctx, repository.NewUser{
		Email:             req.Email,
		PasswordHash:      hash,
		Name:              strings.TrimSpace(req.Name),
		CPF:               utils.NormalizeCPF(req.CPF),
		Phone:             strings.TrimSpace(req.Phone),
		Role:              role,
		VerificationToken: verifTok,
		TokenExpiry:       exp,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateIdentity) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email ou cpf já cadastrado"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	// Token first, mail second: a broker outage loses only the message, the
	// user can always request a new verification mail.
	if err := h.Mail.PublishMail(ctx, queue.MailEvent{
		Kind:  queue.MailKindVerification,
		To:    req.Email,
		Name:  req.Name,
		Token: verifTok,
	}); err != nil {
		log.Printf("register: verification mail for user %d not published: %v", uid, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{"user": userPart{
		ID:    uid,
		Email: req.Email,
		Name:  strings.TrimSpace(req.Name),
		Role:  role,
	}})
}

// Login verifies credentials and issues an access+refresh pair. Unknown
// e-mail and wrong password produce the identical 401; a correct password on
// an unverified account is a disclosed 400, the one deliberate exception to
// the uniform-error rule.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = utils.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !u.IsEmailVerified {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email not verified"})
	}

	return h.writeTokenPair(c, http.StatusOK, u)
}

// Refresh exchanges a valid refresh token for a fresh access+refresh pair.
// The old refresh token is not invalidated; there is no revocation store and
// a compromised token stays usable until natural expiry.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	claims, err := utils.ParseRefreshToken(h.Cfg.JWTSecret, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	return h.writeTokenPair(c, http.StatusOK, u)
}

// RequestEmailVerification mints a fresh verification token for an
// unverified account. The response is the same generic 202 whether the
// account exists, is already verified, or the mail could not be sent.
func (h *AuthHandler) RequestEmailVerification(c echo.Context) error {
	return h.requestToken(c, queue.MailKindVerification)
}

// RequestPasswordReset mints a fresh reset token. Same generic 202 policy
// as RequestEmailVerification.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	return h.requestToken(c, queue.MailKindPasswordReset)
}

func (h *AuthHandler) requestToken(c echo.Context, kind string) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	email := utils.NormalizeEmail(req.Email)
	if email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		// Not found or storage trouble: the caller learns nothing either way.
		return c.JSON(http.StatusAccepted, genericAccepted)
	}
	if kind == queue.MailKindVerification && u.IsEmailVerified {
		return c.JSON(http.StatusAccepted, genericAccepted)
	}

	tok, err := utils.NewSecureToken(utils.SecureTokenBytes)
	if err != nil {
		return c.JSON(http.StatusAccepted, genericAccepted)
	}

	// A new token overwrites the previous pair, so at most one token per
	// type is ever redeemable.
	var ttl time.Duration
	var store func(context.Context, uint64, string, time.Time) error
	if kind == queue.MailKindVerification {
		ttl = time.Duration(h.Cfg.VerifyTTLHours) * time.Hour
		store = h.Users.SetVerificationToken
	} else {
		ttl = time.Duration(h.Cfg.ResetTTLHours) * time.Hour
		store = h.Users.SetResetToken
	}
	if err := store(ctx, u.ID, tok, time.Now().UTC().Add(ttl)); err != nil {
		log.Printf("request %s: token store for user %d failed: %v", kind, u.ID, err)
		return c.JSON(http.StatusAccepted, genericAccepted)
	}

	if err := h.Mail.PublishMail(ctx, queue.MailEvent{
		Kind: kind, To: u.Email, Name: u.Name, Token: tok,
	}); err != nil {
		log.Printf("request %s: mail for user %d not published: %v", kind, u.ID, err)
	}
	return c.JSON(http.StatusAccepted, genericAccepted)
}

// VerifyEmail redeems a verification token. A token that never existed, was
// already consumed, or expired all answer the same 400.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if tokenExpired(u) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
	}
	if err := h.Users.ConsumeVerificationToken(ctx, u.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verify failed"})
	}

	u.IsEmailVerified = true
	return c.JSON(http.StatusOK, echo.Map{"user": toUserPart(u)})
}

// ResetPassword redeems a reset token and stores the new password hash,
// clearing the token in the same statement.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	token := c.Param("token")
	var req newPasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if len(req.Password) < minPasswordLen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password too short"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if tokenExpired(u) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}
	if err := h.Users.ResetPassword(ctx, u.ID, hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{"user": toUserPart(u)})
}

// Me returns the authenticated user loaded by the bearer chain.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": toUserPart(u)})
}

// writeTokenPair mints and returns the access+refresh pair for u.
func (h *AuthHandler) writeTokenPair(c echo.Context, status int, u repository.User) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.Email, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.JWTSecret, u.Email, h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	return c.JSON(status, authResp{
		User:      toUserPart(u),
		TokenType: "bearer",
		Access:    tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh:   tokenPart{Token: refresh.Token, Expires: refresh.Exp},
	})
}

// tokenExpired reports whether the user's single-use token slot is missing
// its expiry or already past it.
func tokenExpired(u repository.User) bool {
	return !u.TokenExpiryDate.Valid || !time.Now().UTC().Before(u.TokenExpiryDate.Time)
}
