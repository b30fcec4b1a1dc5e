package repository

import (
	"context"
	"database/sql"
	"time"
)

// Parecer mirrors the 'pareceres' table: a resolution/opinion attached to an
// ocorrência. The public text is shown to the citizen; the private text stays
// internal.
type Parecer struct {
	ID             uint64
	OcorrenciaID   uint64
	SituacaoID     sql.NullInt64
	ParecerPublico sql.NullString
	ParecerPrivado sql.NullString
	UserID         uint64
	CreatedAt      time.Time
	UpdatedAt      sql.NullTime
}

type ParecerRepo struct{ DB *sql.DB }

func NewParecerRepo(db *sql.DB) *ParecerRepo { return &ParecerRepo{DB: db} }

const parecerColumns = `id,ocorrencia_id,situacao_id,parecer_publico,parecer_privado,
user_id,created_at,updated_at`

func scanParecer(sc interface{ Scan(...any) error }) (Parecer, error) {
	var p Parecer
	err := sc.Scan(&p.ID, &p.OcorrenciaID, &p.SituacaoID, &p.ParecerPublico, &p.ParecerPrivado,
		&p.UserID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Create inserts a parecer and returns its ID. A missing ocorrência or user
// trips the foreign keys and maps to ErrConflict.
func (r *ParecerRepo) Create(ctx context.Context, p Parecer) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO pareceres (ocorrencia_id, situacao_id, parecer_publico, parecer_privado, user_id)
		 VALUES (?,?,?,?,?)`,
		p.OcorrenciaID, p.SituacaoID, p.ParecerPublico, p.ParecerPrivado, p.UserID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a parecer by id.
func (r *ParecerRepo) GetByID(ctx context.Context, id uint64) (Parecer, error) {
	return scanParecer(r.DB.QueryRowContext(ctx,
		"SELECT "+parecerColumns+" FROM pareceres WHERE id=? LIMIT 1", id))
}

// ListByOcorrencia returns all pareceres of one ocorrência, oldest first.
func (r *ParecerRepo) ListByOcorrencia(ctx context.Context, ocorrenciaID uint64) ([]Parecer, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+parecerColumns+" FROM pareceres WHERE ocorrencia_id=? ORDER BY id", ocorrenciaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Parecer
	for rows.Next() {
		p, err := scanParecer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update rewrites the text fields and situação of a parecer.
func (r *ParecerRepo) Update(ctx context.Context, id uint64, p Parecer) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE pareceres SET situacao_id=?, parecer_publico=?, parecer_privado=?, updated_at=NOW()
		 WHERE id=?`,
		p.SituacaoID, p.ParecerPublico, p.ParecerPrivado, id)
	return err
}

// Delete removes a parecer row.
func (r *ParecerRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM pareceres WHERE id=?", id)
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
