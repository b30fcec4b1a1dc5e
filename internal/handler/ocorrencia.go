package handler

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ouvidoria/ocorrencias-api/internal/middleware"
	"github.com/ouvidoria/ocorrencias-api/internal/repository"
)

// OcorrenciaStore is the slice of the ocorrência repository the handlers use.
type OcorrenciaStore interface {
	Create(ctx context.Context, o repository.Ocorrencia) (uint64, error)
	GetByID(ctx context.Context, id uint64) (repository.Ocorrencia, error)
	GetByProtocolo(ctx context.Context, protocolo string) (repository.Ocorrencia, error)
	List(ctx context.Context, skip, limit int, includeArchived bool) ([]repository.Ocorrencia, error)
	Update(ctx context.Context, id uint64, o repository.Ocorrencia) error
	Archive(ctx context.Context, id uint64) error
	Delete(ctx context.Context, id uint64) error
}

// OcorrenciaHandler serves the incident record CRUD. Records arrive either
// from authenticated citizens (bearer chain, user_id filled in) or from
// partner systems (API-key chain, sistema_id filled in).
type OcorrenciaHandler struct {
	Ocorrencias OcorrenciaStore
}

func NewOcorrenciaHandler(ocorrencias OcorrenciaStore) *OcorrenciaHandler {
	return &OcorrenciaHandler{Ocorrencias: ocorrencias}
}

type ocorrenciaReq struct {
	Assunto          string   `json:"assunto"`
	Mensagem         string   `json:"mensagem"`
	NomeCompleto     string   `json:"nome_completo"`
	Endereco         string   `json:"endereco"`
	Fone1            string   `json:"fone1"`
	Fone2            string   `json:"fone2"`
	Email            string   `json:"email"`
	Sigilo           bool     `json:"sigilo"`
	SituacaoID       uint64   `json:"situacao_id"`
	TipoOcorrenciaID *int64   `json:"tipo_ocorrencia_id"`
	ProgramaID       uint64   `json:"programa_id"`
	RegiaoID         uint64   `json:"regiao_id"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
}

type ocorrenciaResp struct {
	ID               uint64    `json:"id"`
	Protocolo        string    `json:"protocolo"`
	Assunto          string    `json:"assunto"`
	Mensagem         string    `json:"mensagem"`
	NomeCompleto     string    `json:"nome_completo,omitempty"`
	Endereco         string    `json:"endereco,omitempty"`
	Fone1            string    `json:"fone1,omitempty"`
	Fone2            string    `json:"fone2,omitempty"`
	Email            string    `json:"email,omitempty"`
	Sigilo           bool      `json:"sigilo"`
	SituacaoID       uint64    `json:"situacao_id"`
	TipoOcorrenciaID *int64    `json:"tipo_ocorrencia_id,omitempty"`
	ProgramaID       uint64    `json:"programa_id"`
	RegiaoID         uint64    `json:"regiao_id"`
	UserID           *int64    `json:"user_id,omitempty"`
	SistemaID        *int64    `json:"sistema_id,omitempty"`
	Latitude         *float64  `json:"latitude,omitempty"`
	Longitude        *float64  `json:"longitude,omitempty"`
	Arquivado        bool      `json:"arquivado"`
	CreatedAt        time.Time `json:"created_at"`
}

func toOcorrenciaResp(o repository.Ocorrencia) ocorrenciaResp {
	r := ocorrenciaResp{
		ID:         o.ID,
		Protocolo:  o.Protocolo,
		Assunto:    o.Assunto,
		Mensagem:   o.Mensagem,
		Sigilo:     o.Sigilo,
		SituacaoID: o.SituacaoID,
		ProgramaID: o.ProgramaID,
		RegiaoID:   o.RegiaoID,
		Arquivado:  o.Arquivado,
		CreatedAt:  o.CreatedAt,
	}
	r.NomeCompleto = o.NomeCompleto.String
	r.Endereco = o.Endereco.String
	r.Fone1 = o.Fone1.String
	r.Fone2 = o.Fone2.String
	r.Email = o.Email.String
	if o.TipoOcorrenciaID.Valid {
		v := o.TipoOcorrenciaID.Int64
		r.TipoOcorrenciaID = &v
	}
	if o.UserID.Valid {
		v := o.UserID.Int64
		r.UserID = &v
	}
	if o.SistemaID.Valid {
		v := o.SistemaID.Int64
		r.SistemaID = &v
	}
	if o.Latitude.Valid {
		v := o.Latitude.Float64
		r.Latitude = &v
	}
	if o.Longitude.Valid {
		v := o.Longitude.Float64
		r.Longitude = &v
	}
	return r
}

func nullStr(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

// newProtocolo builds a citizen-facing tracking number: YYYYMMDD plus six
// random digits. The protocolo column is unique; a collision surfaces as
// ErrDuplicateIdentity and the handler retries once.
func newProtocolo() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%06d", time.Now().UTC().Format("20060102"), n.Int64()), nil
}

// Create registers a new incident. Authorship is taken from whichever guard
// chain admitted the request: bearer fills user_id, API key fills sistema_id.
func (h *OcorrenciaHandler) Create(c echo.Context) error {
	var req ocorrenciaReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Assunto) == "" || strings.TrimSpace(req.Mensagem) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "assunto and mensagem are required"})
	}

	o := repository.Ocorrencia{
		Assunto:      strings.TrimSpace(req.Assunto),
		Mensagem:     strings.TrimSpace(req.Mensagem),
		NomeCompleto: nullStr(req.NomeCompleto),
		Endereco:     nullStr(req.Endereco),
		Fone1:        nullStr(req.Fone1),
		Fone2:        nullStr(req.Fone2),
		Email:        nullStr(req.Email),
		Sigilo:       req.Sigilo,
		SituacaoID:   req.SituacaoID,
		ProgramaID:   req.ProgramaID,
		RegiaoID:     req.RegiaoID,
	}
	if req.TipoOcorrenciaID != nil {
		o.TipoOcorrenciaID = sql.NullInt64{Int64: *req.TipoOcorrenciaID, Valid: true}
	}
	if req.Latitude != nil {
		o.Latitude = sql.NullFloat64{Float64: *req.Latitude, Valid: true}
	}
	if req.Longitude != nil {
		o.Longitude = sql.NullFloat64{Float64: *req.Longitude, Valid: true}
	}
	if u, ok := middleware.CurrentUser(c); ok {
		o.UserID = sql.NullInt64{Int64: int64(u.ID), Valid: true}
	}
	if s, ok := middleware.CurrentSistema(c); ok {
		o.SistemaID = sql.NullInt64{Int64: int64(s.ID), Valid: true}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var id uint64
	for attempt := 0; attempt < 2; attempt++ {
		proto, err := newProtocolo()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
		}
		o.Protocolo = proto
		id, err = h.Ocorrencias.Create(ctx, o)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrDuplicateIdentity) && attempt == 0 {
			continue
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}

	created, err := h.Ocorrencias.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"ocorrencia": toOcorrenciaResp(created)})
}

// List returns incidents with skip/limit paging. Archived records are hidden
// unless ?arquivado=true.
func (h *OcorrenciaHandler) List(c echo.Context) error {
	skip, limit := pageParams(c)
	includeArchived := c.QueryParam("arquivado") == "true"

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Ocorrencias.List(ctx, skip, limit, includeArchived)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]ocorrenciaResp, 0, len(items))
	for _, o := range items {
		out = append(out, toOcorrenciaResp(o))
	}
	return c.JSON(http.StatusOK, echo.Map{"ocorrencias": out})
}

// Get returns one incident by numeric ID.
func (h *OcorrenciaHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	o, err := h.Ocorrencias.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ocorrencia not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ocorrencia": toOcorrenciaResp(o)})
}

// GetByProtocolo looks an incident up by its tracking number.
func (h *OcorrenciaHandler) GetByProtocolo(c echo.Context) error {
	proto := strings.TrimSpace(c.Param("protocolo"))
	if proto == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid protocolo"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	o, err := h.Ocorrencias.GetByProtocolo(ctx, proto)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ocorrencia not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ocorrencia": toOcorrenciaResp(o)})
}

// Update rewrites the mutable fields of an incident. Protocolo, authorship
// and the arquivado flag are not touched here.
func (h *OcorrenciaHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req ocorrenciaReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Assunto) == "" || strings.TrimSpace(req.Mensagem) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "assunto and mensagem are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Ocorrencias.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ocorrencia not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	o := repository.Ocorrencia{
		Assunto:      strings.TrimSpace(req.Assunto),
		Mensagem:     strings.TrimSpace(req.Mensagem),
		NomeCompleto: nullStr(req.NomeCompleto),
		Endereco:     nullStr(req.Endereco),
		Fone1:        nullStr(req.Fone1),
		Fone2:        nullStr(req.Fone2),
		Email:        nullStr(req.Email),
		Sigilo:       req.Sigilo,
		SituacaoID:   req.SituacaoID,
		ProgramaID:   req.ProgramaID,
		RegiaoID:     req.RegiaoID,
	}
	if req.TipoOcorrenciaID != nil {
		o.TipoOcorrenciaID = sql.NullInt64{Int64: *req.TipoOcorrenciaID, Valid: true}
	}
	if req.Latitude != nil {
		o.Latitude = sql.NullFloat64{Float64: *req.Latitude, Valid: true}
	}
	if req.Longitude != nil {
		o.Longitude = sql.NullFloat64{Float64: *req.Longitude, Valid: true}
	}

	if err := h.Ocorrencias.Update(ctx, id, o); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	updated, err := h.Ocorrencias.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ocorrencia": toOcorrenciaResp(updated)})
}

// Archive flips the arquivado flag instead of deleting. Archiving an already
// archived record is a no-op 404 because the repo filters archived rows.
func (h *OcorrenciaHandler) Archive(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Ocorrencias.Archive(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ocorrencia not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "archive failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes a record outright. Records holding pareceres answer 409;
// archive is the usual path, hard delete is for intake mistakes.
func (h *OcorrenciaHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Ocorrencias.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "ocorrencia has pareceres"})
		}
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ocorrencia not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
