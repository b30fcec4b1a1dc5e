package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ouvidoria/ocorrencias-api/internal/repository"
)

// SistemaStore is the slice of the sistema repository the admin CRUD needs.
type SistemaStore interface {
	Create(ctx context.Context, name, apiKey, description string, active bool) (uint64, error)
	GetByID(ctx context.Context, id uint64) (repository.Sistema, error)
	List(ctx context.Context, skip, limit int) ([]repository.Sistema, error)
	Update(ctx context.Context, id uint64, name, description string, active bool) error
	Deactivate(ctx context.Context, id uint64) error
	Delete(ctx context.Context, id uint64) error
}

// SistemaHandler manages the partner-system registry. The API key is minted
// server-side at create and never changes afterwards; rotation means
// deactivating the old record and creating a new one.
type SistemaHandler struct {
	Sistemas SistemaStore
}

func NewSistemaHandler(sistemas SistemaStore) *SistemaHandler {
	return &SistemaHandler{Sistemas: sistemas}
}

type sistemaReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}

type sistemaResp struct {
	ID           uint64     `json:"id"`
	Name         string     `json:"name"`
	APIKey       string     `json:"api_key,omitempty"`
	Active       bool       `json:"active"`
	Description  string     `json:"description,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// toSistemaResp hides the key unless withKey is set; list responses never
// carry keys, only create and single-record admin reads do.
func toSistemaResp(s repository.Sistema, withKey bool) sistemaResp {
	r := sistemaResp{
		ID:          s.ID,
		Name:        s.Name,
		Active:      s.Active,
		Description: s.Description,
		CreatedAt:   s.CreatedAt,
	}
	if withKey {
		r.APIKey = s.APIKey
	}
	if s.LastActivity.Valid {
		t := s.LastActivity.Time
		r.LastActivity = &t
	}
	return r
}

// Create registers a partner system and mints its API key.
func (h *SistemaHandler) Create(c echo.Context) error {
	var req sistemaReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	apiKey := uuid.NewString()
	id, err := h.Sistemas.Create(ctx, name, apiKey, strings.TrimSpace(req.Description), active)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateIdentity) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "sistema already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}

	s, err := h.Sistemas.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"sistema": toSistemaResp(s, true)})
}

// List returns registered systems without their keys.
func (h *SistemaHandler) List(c echo.Context) error {
	skip, limit := pageParams(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Sistemas.List(ctx, skip, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]sistemaResp, 0, len(items))
	for _, s := range items {
		out = append(out, toSistemaResp(s, false))
	}
	return c.JSON(http.StatusOK, echo.Map{"sistemas": out})
}

// Get returns one system, key included, for ops use.
func (h *SistemaHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Sistemas.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "sistema not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"sistema": toSistemaResp(s, true)})
}

// Update changes name, description and the active flag. The key column is
// deliberately outside the UPDATE statement.
func (h *SistemaHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req sistemaReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cur, err := h.Sistemas.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "sistema not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	active := cur.Active
	if req.Active != nil {
		active = *req.Active
	}
	if err := h.Sistemas.Update(ctx, id, name, strings.TrimSpace(req.Description), active); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	s, err := h.Sistemas.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"sistema": toSistemaResp(s, false)})
}

// Deactivate revokes a system's access without losing its history.
func (h *SistemaHandler) Deactivate(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// Deactivating an already inactive sistema is idempotent, so existence
	// is checked separately; the UPDATE alone cannot tell the cases apart.
	if _, err := h.Sistemas.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "sistema not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err := h.Sistemas.Deactivate(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes a system record. Systems referenced by ocorrências answer
// 409; deactivate is the usual path.
func (h *SistemaHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Sistemas.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "sistema is referenced by ocorrencias"})
		}
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "sistema not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
