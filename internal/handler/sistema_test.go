package handler

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouvidoria/ocorrencias-api/internal/repository"
)

// memSistemas is an in-memory SistemaStore.
type memSistemas struct {
	nextID uint64
	byID   map[uint64]*repository.Sistema
}

func newMemSistemas() *memSistemas {
	return &memSistemas{byID: map[uint64]*repository.Sistema{}}
}

func (m *memSistemas) Create(_ context.Context, name, apiKey, description string, active bool) (uint64, error) {
	m.nextID++
	m.byID[m.nextID] = &repository.Sistema{
		ID: m.nextID, Name: name, APIKey: apiKey,
		Active: active, Description: description, CreatedAt: time.Now().UTC(),
	}
	return m.nextID, nil
}

func (m *memSistemas) GetByID(_ context.Context, id uint64) (repository.Sistema, error) {
	s, ok := m.byID[id]
	if !ok {
		return repository.Sistema{}, sql.ErrNoRows
	}
	return *s, nil
}

func (m *memSistemas) List(_ context.Context, _, _ int) ([]repository.Sistema, error) {
	out := make([]repository.Sistema, 0, len(m.byID))
	for _, s := range m.byID {
		out = append(out, *s)
	}
	return out, nil
}

func (m *memSistemas) Update(_ context.Context, id uint64, name, description string, active bool) error {
	s, ok := m.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.Name, s.Description, s.Active = name, description, active
	return nil
}

func (m *memSistemas) Deactivate(_ context.Context, id uint64) error {
	s, ok := m.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.Active = false
	return nil
}

func (m *memSistemas) Delete(_ context.Context, id uint64) error {
	if _, ok := m.byID[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.byID, id)
	return nil
}

func TestSistemaCreateMintsKey(t *testing.T) {
	store := newMemSistemas()
	h := NewSistemaHandler(store)

	rec := call(t, h.Create, http.MethodPost, "/v1/sistemas",
		`{"name":"portal-prefeitura","description":"intake portal"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decode(t, rec)
	s := body["sistema"].(map[string]any)
	key, _ := s["api_key"].(string)
	require.NotEmpty(t, key)
	_, err := uuid.Parse(key)
	assert.NoError(t, err, "minted key must be a uuid")
	assert.Equal(t, true, s["active"])
}

func TestSistemaUpdateKeepsKey(t *testing.T) {
	store := newMemSistemas()
	h := NewSistemaHandler(store)

	call(t, h.Create, http.MethodPost, "/v1/sistemas", `{"name":"portal"}`)
	original := store.byID[1].APIKey

	rec := call(t, h.Update, http.MethodPut, "/v1/sistemas/1",
		`{"name":"portal-renamed","active":false}`, "id", "1")
	require.Equal(t, http.StatusOK, rec.Code)

	// Rename and deactivate went through; the key did not move.
	assert.Equal(t, "portal-renamed", store.byID[1].Name)
	assert.False(t, store.byID[1].Active)
	assert.Equal(t, original, store.byID[1].APIKey)
	// Update responses never echo the key.
	assert.NotContains(t, rec.Body.String(), original)
}

func TestSistemaListHidesKeys(t *testing.T) {
	store := newMemSistemas()
	h := NewSistemaHandler(store)
	call(t, h.Create, http.MethodPost, "/v1/sistemas", `{"name":"portal"}`)

	rec := call(t, h.List, http.MethodGet, "/v1/sistemas", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), store.byID[1].APIKey)
}

func TestSistemaGetNotFound(t *testing.T) {
	h := NewSistemaHandler(newMemSistemas())

	rec := call(t, h.Get, http.MethodGet, "/v1/sistemas/9", "", "id", "9")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
