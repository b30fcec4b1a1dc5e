package repository

import (
	"context"
	"database/sql"
	"time"
)

// Ocorrencia mirrors the 'ocorrencias' table: an incident/complaint record
// filed by a citizen or a partner system. Optional columns use Null types so
// a record can be filed anonymously (sigilo) or without contact data.
type Ocorrencia struct {
	ID               uint64
	Protocolo        string
	Assunto          string
	Mensagem         string
	NomeCompleto     sql.NullString
	Endereco         sql.NullString
	Fone1            sql.NullString
	Fone2            sql.NullString
	Email            sql.NullString
	Sigilo           bool
	SituacaoID       uint64
	TipoOcorrenciaID sql.NullInt64
	ProgramaID       uint64
	RegiaoID         uint64
	UserID           sql.NullInt64
	SistemaID        sql.NullInt64
	Latitude         sql.NullFloat64
	Longitude        sql.NullFloat64
	Arquivado        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type OcorrenciaRepo struct{ DB *sql.DB }

func NewOcorrenciaRepo(db *sql.DB) *OcorrenciaRepo { return &OcorrenciaRepo{DB: db} }

const ocorrenciaColumns = `id,protocolo,assunto,mensagem,nome_completo,endereco,fone1,fone2,email,
sigilo,situacao_id,tipo_ocorrencia_id,programa_id,regiao_id,user_id,sistema_id,
latitude,longitude,arquivado,created_at,updated_at`

func scanOcorrencia(sc interface{ Scan(...any) error }) (Ocorrencia, error) {
	var o Ocorrencia
	err := sc.Scan(&o.ID, &o.Protocolo, &o.Assunto, &o.Mensagem, &o.NomeCompleto, &o.Endereco,
		&o.Fone1, &o.Fone2, &o.Email, &o.Sigilo, &o.SituacaoID, &o.TipoOcorrenciaID,
		&o.ProgramaID, &o.RegiaoID, &o.UserID, &o.SistemaID,
		&o.Latitude, &o.Longitude, &o.Arquivado, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// Create inserts an ocorrência and returns its ID. Protocolo is generated by
// the handler and unique; a collision maps to ErrDuplicateIdentity.
func (r *OcorrenciaRepo) Create(ctx context.Context, o Ocorrencia) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO ocorrencias (protocolo, assunto, mensagem, nome_completo, endereco,
		   fone1, fone2, email, sigilo, situacao_id, tipo_ocorrencia_id, programa_id,
		   regiao_id, user_id, sistema_id, latitude, longitude, arquivado)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,0)`,
		o.Protocolo, o.Assunto, o.Mensagem, o.NomeCompleto, o.Endereco,
		o.Fone1, o.Fone2, o.Email, o.Sigilo, o.SituacaoID, o.TipoOcorrenciaID,
		o.ProgramaID, o.RegiaoID, o.UserID, o.SistemaID, o.Latitude, o.Longitude)
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

// GetByID fetches an ocorrência by id.
func (r *OcorrenciaRepo) GetByID(ctx context.Context, id uint64) (Ocorrencia, error) {
	return scanOcorrencia(r.DB.QueryRowContext(ctx,
		"SELECT "+ocorrenciaColumns+" FROM ocorrencias WHERE id=? LIMIT 1", id))
}

// GetByProtocolo fetches an ocorrência by its public protocol number.
func (r *OcorrenciaRepo) GetByProtocolo(ctx context.Context, protocolo string) (Ocorrencia, error) {
	return scanOcorrencia(r.DB.QueryRowContext(ctx,
		"SELECT "+ocorrenciaColumns+" FROM ocorrencias WHERE protocolo=? LIMIT 1", protocolo))
}

// List returns non-archived ocorrências newest first with skip/limit
// pagination. Pass includeArchived to also return archived ones.
func (r *OcorrenciaRepo) List(ctx context.Context, skip, limit int, includeArchived bool) ([]Ocorrencia, error) {
	q := "SELECT " + ocorrenciaColumns + " FROM ocorrencias"
	if !includeArchived {
		q += " WHERE arquivado=0"
	}
	q += " ORDER BY id DESC LIMIT ? OFFSET ?"

	rows, err := r.DB.QueryContext(ctx, q, limit, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ocorrencia
	for rows.Next() {
		o, err := scanOcorrencia(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Update rewrites the mutable fields of an ocorrência. Protocolo, authorship
// (user_id/sistema_id) and the arquivado flag are never part of the UPDATE.
func (r *OcorrenciaRepo) Update(ctx context.Context, id uint64, o Ocorrencia) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE ocorrencias SET assunto=?, mensagem=?, nome_completo=?, endereco=?,
		   fone1=?, fone2=?, email=?, sigilo=?, situacao_id=?, tipo_ocorrencia_id=?,
		   programa_id=?, regiao_id=?, latitude=?, longitude=?
		 WHERE id=?`,
		o.Assunto, o.Mensagem, o.NomeCompleto, o.Endereco, o.Fone1, o.Fone2, o.Email,
		o.Sigilo, o.SituacaoID, o.TipoOcorrenciaID, o.ProgramaID, o.RegiaoID,
		o.Latitude, o.Longitude, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Distinguish "row missing" from "values unchanged".
		var one int
		if err := r.DB.QueryRowContext(ctx,
			"SELECT 1 FROM ocorrencias WHERE id=?", id).Scan(&one); err != nil {
			return err
		}
	}
	return nil
}

// Archive soft-hides an ocorrência from default listings.
func (r *OcorrenciaRepo) Archive(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE ocorrencias SET arquivado=1 WHERE id=? AND arquivado=0", id)
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

// Delete removes an ocorrência. Rows with dependent pareceres are protected
// by the foreign key; that failure maps to ErrConflict.
func (r *OcorrenciaRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM ocorrencias WHERE id=?", id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrConflict
		}
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
