package repository

import (
	"context"
	"database/sql"
	"log"
	"time"
)

// Sistema mirrors the 'sistemas_autorizados' table: a trusted partner system
// that authenticates with a static API key instead of a user login. The key
// is minted once at creation and never regenerated by updates.
type Sistema struct {
	ID           uint64
	Name         string
	APIKey       string
	Active       bool
	Description  string
	CreatedAt    time.Time
	LastActivity sql.NullTime
}

type SistemaRepo struct{ DB *sql.DB }

func NewSistemaRepo(db *sql.DB) *SistemaRepo { return &SistemaRepo{DB: db} }

const sistemaColumns = "id,name,api_key,active,description,created_at,last_activity"

func scanSistema(row *sql.Row) (Sistema, error) {
	var s Sistema
	err := row.Scan(&s.ID, &s.Name, &s.APIKey, &s.Active, &s.Description, &s.CreatedAt, &s.LastActivity)
	return s, err
}

// Create inserts a sistema with its freshly generated key and returns the ID.
func (r *SistemaRepo) Create(ctx context.Context, name, apiKey, description string, active bool) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO sistemas_autorizados (name, api_key, active, description) VALUES (?,?,?,?)",
		name, apiKey, active, description)
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

// GetByID fetches a sistema by id.
func (r *SistemaRepo) GetByID(ctx context.Context, id uint64) (Sistema, error) {
	return scanSistema(r.DB.QueryRowContext(ctx,
		"SELECT "+sistemaColumns+" FROM sistemas_autorizados WHERE id=? LIMIT 1", id))
}

// GetByKey fetches a sistema by its API key regardless of active state.
func (r *SistemaRepo) GetByKey(ctx context.Context, apiKey string) (Sistema, error) {
	return scanSistema(r.DB.QueryRowContext(ctx,
		"SELECT "+sistemaColumns+" FROM sistemas_autorizados WHERE api_key=? LIMIT 1", apiKey))
}

// List returns sistemas ordered by id with skip/limit pagination.
func (r *SistemaRepo) List(ctx context.Context, skip, limit int) ([]Sistema, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+sistemaColumns+" FROM sistemas_autorizados ORDER BY id LIMIT ? OFFSET ?", limit, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sistema
	for rows.Next() {
		var s Sistema
		if err := rows.Scan(&s.ID, &s.Name, &s.APIKey, &s.Active, &s.Description, &s.CreatedAt, &s.LastActivity); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ValidateKey returns the sistema for apiKey only when it exists and is
// active; an unknown and an inactive key both come back as sql.ErrNoRows so
// the middleware cannot leak which of the two it was. On success the
// last-activity timestamp is touched; a failed touch is logged and never
// fails the validation itself.
func (r *SistemaRepo) ValidateKey(ctx context.Context, apiKey string) (Sistema, error) {
	s, err := r.GetByKey(ctx, apiKey)
	if err != nil {
		return Sistema{}, err
	}
	if !s.Active {
		return Sistema{}, sql.ErrNoRows
	}
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE sistemas_autorizados SET last_activity=NOW() WHERE id=?", s.ID); err != nil {
		log.Printf("sistema %d: last_activity update failed: %v", s.ID, err)
	}
	return s, nil
}

// Update changes name, description and the active flag. The API key is
// immutable; no update path touches it.
func (r *SistemaRepo) Update(ctx context.Context, id uint64, name, description string, active bool) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sistemas_autorizados SET name=?, description=?, active=? WHERE id=?",
		name, description, active, id)
	if err != nil && isDuplicateKey(err) {
		return ErrDuplicateIdentity
	}
	return err
}

// Deactivate soft-disables a sistema; its key stops authorizing immediately.
func (r *SistemaRepo) Deactivate(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sistemas_autorizados SET active=0 WHERE id=?", id)
	return err
}

// Delete removes a sistema row. Kept for administrative cleanup; normal
// operation prefers Deactivate. A sistema still referenced by ocorrências
// trips the foreign key and maps to ErrConflict.
func (r *SistemaRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM sistemas_autorizados WHERE id=?", id)
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
