package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ouvidoria/ocorrencias-api/internal/repository"
)

// TipoStore lists the active incident categories.
type TipoStore interface {
	ListActive(ctx context.Context) ([]repository.TipoOcorrencia, error)
}

// TipoHandler serves the public category listing. The route sits behind the
// redis response cache; the table changes rarely.
type TipoHandler struct {
	Tipos TipoStore
}

func NewTipoHandler(tipos TipoStore) *TipoHandler {
	return &TipoHandler{Tipos: tipos}
}

type tipoResp struct {
	ID    uint64 `json:"id"`
	Nome  string `json:"nome"`
	Icone string `json:"icone,omitempty"`
}

// List returns every active tipo de ocorrência.
func (h *TipoHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tipos, err := h.Tipos.ListActive(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]tipoResp, 0, len(tipos))
	for _, t := range tipos {
		out = append(out, tipoResp{ID: t.ID, Nome: t.Nome, Icone: t.Icone.String})
	}
	return c.JSON(http.StatusOK, echo.Map{"tipos": out})
}
