package repository

import (
	"context"
	"database/sql"
)

// TipoOcorrencia mirrors the 'tipos_ocorrencia' lookup table used to
// classify incidents on the public intake form.
type TipoOcorrencia struct {
	ID    uint64
	Nome  string
	Icone sql.NullString
	Ativo bool
}

type TipoRepo struct{ DB *sql.DB }

func NewTipoRepo(db *sql.DB) *TipoRepo { return &TipoRepo{DB: db} }

// ListActive returns the active tipos ordered by name. This backs a public,
// cached endpoint; inactive tipos stay visible only to admins via the DB.
func (r *TipoRepo) ListActive(ctx context.Context) ([]TipoOcorrencia, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,nome,icone,ativo FROM tipos_ocorrencia WHERE ativo=1 ORDER BY nome")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TipoOcorrencia
	for rows.Next() {
		var t TipoOcorrencia
		if err := rows.Scan(&t.ID, &t.Nome, &t.Icone, &t.Ativo); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
