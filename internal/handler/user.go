package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ouvidoria/ocorrencias-api/internal/config"
	"github.com/ouvidoria/ocorrencias-api/internal/repository"
	"github.com/ouvidoria/ocorrencias-api/internal/utils"
)

// UserAdminStore is the slice of the user repository the admin endpoints
// and the partner-system existence check need.
type UserAdminStore interface {
	GetByID(ctx context.Context, id uint64) (repository.User, error)
	List(ctx context.Context, skip, limit int) ([]repository.User, error)
	Update(ctx context.Context, id uint64, name, phone, role, passwordHash string) error
	Delete(ctx context.Context, id uint64) error
	ExistsByCPFPhone(ctx context.Context, cpf, phone string) (bool, error)
}

// UserHandler serves the admin user CRUD and the CPF+phone existence check
// exposed to partner systems.
type UserHandler struct {
	Cfg   config.Config
	Users UserAdminStore
}

func NewUserHandler(cfg config.Config, users UserAdminStore) *UserHandler {
	return &UserHandler{Cfg: cfg, Users: users}
}

type userDetail struct {
	ID              uint64    `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	CPF             string    `json:"cpf"`
	Phone           string    `json:"phone"`
	Role            string    `json:"role"`
	IsEmailVerified bool      `json:"is_email_verified"`
	CreatedAt       time.Time `json:"created_at"`
}

func toUserDetail(u repository.User) userDetail {
	return userDetail{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		CPF:             u.CPF,
		Phone:           u.Phone,
		Role:            u.Role,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
	}
}

type updateUserReq struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

// List returns users with skip/limit paging. Admin only.
func (h *UserHandler) List(c echo.Context) error {
	skip, limit := pageParams(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, err := h.Users.List(ctx, skip, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]userDetail, 0, len(users))
	for _, u := range users {
		out = append(out, toUserDetail(u))
	}
	return c.JSON(http.StatusOK, echo.Map{"users": out})
}

// Get returns one user by ID. Admin only.
func (h *UserHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": toUserDetail(u)})
}

// Update patches name, phone, role and/or password. Empty fields are left
// untouched. E-mail and CPF are identity and never change here.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role != "" && role != repository.RoleAdmin && role != repository.RoleClient {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
	}
	var hash string
	if req.Password != "" {
		if len(req.Password) < minPasswordLen {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "password too short"})
		}
		if hash, err = utils.HashPassword(req.Password, h.Cfg.BcryptCost); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// Existence check up front: a value-identical UPDATE reports zero
	// affected rows on MySQL, so RowsAffected cannot tell missing from
	// unchanged.
	if _, err := h.Users.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err := h.Users.Update(ctx, id, strings.TrimSpace(req.Name), strings.TrimSpace(req.Phone), role, hash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": toUserDetail(u)})
}

// Delete removes a user. Admin only.
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

type checkUserReq struct {
	CPF  string `json:"cpf"`
	Fone string `json:"fone"`
}

// Check answers whether an account exists for the given CPF and phone pair.
// Reachable only through the API-key chain; it leaks a single boolean so
// partner systems can pre-fill enrollment without reading user records.
func (h *UserHandler) Check(c echo.Context) error {
	var req checkUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	cpf := utils.NormalizeCPF(req.CPF)
	phone := strings.TrimSpace(req.Fone)
	if cpf == "" || phone == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cpf and fone are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	exists, err := h.Users.ExistsByCPFPhone(ctx, cpf, phone)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"exists": exists})
}

// ----- shared param helpers -----

func pathID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

func pageParams(c echo.Context) (skip, limit int) {
	skip, _ = strconv.Atoi(c.QueryParam("skip"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	return skip, limit
}
