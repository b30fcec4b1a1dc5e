package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ouvidoria/ocorrencias-api/internal/middleware"
	"github.com/ouvidoria/ocorrencias-api/internal/repository"
)

// ParecerStore is the slice of the parecer repository the handlers use.
type ParecerStore interface {
	Create(ctx context.Context, p repository.Parecer) (uint64, error)
	GetByID(ctx context.Context, id uint64) (repository.Parecer, error)
	ListByOcorrencia(ctx context.Context, ocorrenciaID uint64) ([]repository.Parecer, error)
	Update(ctx context.Context, id uint64, p repository.Parecer) error
	Delete(ctx context.Context, id uint64) error
}

// ParecerHandler serves the resolution records attached to incidents.
type ParecerHandler struct {
	Pareceres ParecerStore
}

func NewParecerHandler(pareceres ParecerStore) *ParecerHandler {
	return &ParecerHandler{Pareceres: pareceres}
}

type parecerReq struct {
	OcorrenciaID   uint64 `json:"ocorrencia_id"`
	SituacaoID     *int64 `json:"situacao_id"`
	ParecerPublico string `json:"parecer_publico"`
	ParecerPrivado string `json:"parecer_privado"`
}

type parecerResp struct {
	ID             uint64    `json:"id"`
	OcorrenciaID   uint64    `json:"ocorrencia_id"`
	SituacaoID     *int64    `json:"situacao_id,omitempty"`
	ParecerPublico string    `json:"parecer_publico,omitempty"`
	ParecerPrivado string    `json:"parecer_privado,omitempty"`
	UserID         uint64    `json:"user_id"`
	CreatedAt      time.Time `json:"created_at"`
}

func toParecerResp(p repository.Parecer) parecerResp {
	r := parecerResp{
		ID:             p.ID,
		OcorrenciaID:   p.OcorrenciaID,
		ParecerPublico: p.ParecerPublico.String,
		ParecerPrivado: p.ParecerPrivado.String,
		UserID:         p.UserID,
		CreatedAt:      p.CreatedAt,
	}
	if p.SituacaoID.Valid {
		v := p.SituacaoID.Int64
		r.SituacaoID = &v
	}
	return r
}

func parecerFromReq(req parecerReq) repository.Parecer {
	p := repository.Parecer{
		OcorrenciaID:   req.OcorrenciaID,
		ParecerPublico: nullStr(req.ParecerPublico),
		ParecerPrivado: nullStr(req.ParecerPrivado),
	}
	if req.SituacaoID != nil {
		p.SituacaoID = sql.NullInt64{Int64: *req.SituacaoID, Valid: true}
	}
	return p
}

// Create attaches a resolution to an incident. The route stacks both guard
// chains, so the author is always a verified admin and the call always comes
// through a registered partner system.
func (h *ParecerHandler) Create(c echo.Context) error {
	var req parecerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.OcorrenciaID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ocorrencia_id is required"})
	}
	if strings.TrimSpace(req.ParecerPublico) == "" && strings.TrimSpace(req.ParecerPrivado) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "parecer text is required"})
	}
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}

	p := parecerFromReq(req)
	p.UserID = u.ID

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Pareceres.Create(ctx, p)
	if err != nil {
		// FK violation on insert: the referenced incident is gone.
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ocorrencia not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}

	created, err := h.Pareceres.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"parecer": toParecerResp(created)})
}

// ListByOcorrencia returns every parecer attached to one incident, oldest
// first.
func (h *ParecerHandler) ListByOcorrencia(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Pareceres.ListByOcorrencia(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]parecerResp, 0, len(items))
	for _, p := range items {
		out = append(out, toParecerResp(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"pareceres": out})
}

// Get returns one parecer by ID.
func (h *ParecerHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Pareceres.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "parecer not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"parecer": toParecerResp(p)})
}

// Update rewrites the text and situação of a parecer. Authorship and the
// incident link never change.
func (h *ParecerHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req parecerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.ParecerPublico) == "" && strings.TrimSpace(req.ParecerPrivado) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "parecer text is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Pareceres.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "parecer not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err := h.Pareceres.Update(ctx, id, parecerFromReq(req)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	updated, err := h.Pareceres.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"parecer": toParecerResp(updated)})
}

// Delete removes a parecer.
func (h *ParecerHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Pareceres.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "parecer not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
