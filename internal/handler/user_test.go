package handler

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouvidoria/ocorrencias-api/internal/repository"
	"github.com/ouvidoria/ocorrencias-api/internal/utils"
)

// adminStore extends memUsers with the admin-side methods.
type adminStore struct{ *memUsers }

func (m adminStore) GetByID(_ context.Context, id uint64) (repository.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return repository.User{}, sql.ErrNoRows
	}
	return *u, nil
}

func (m adminStore) List(_ context.Context, skip, limit int) ([]repository.User, error) {
	out := make([]repository.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, *u)
	}
	if skip >= len(out) {
		return nil, nil
	}
	out = out[skip:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m adminStore) Update(_ context.Context, id uint64, name, phone, role, passwordHash string) error {
	u, ok := m.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	if name != "" {
		u.Name = name
	}
	if phone != "" {
		u.Phone = phone
	}
	if role != "" {
		u.Role = role
	}
	if passwordHash != "" {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (m adminStore) Delete(_ context.Context, id uint64) error {
	if _, ok := m.byID[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.byID, id)
	return nil
}

func (m adminStore) ExistsByCPFPhone(_ context.Context, cpf, phone string) (bool, error) {
	for _, u := range m.byID {
		if u.CPF == cpf && u.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}

func seedUser(m *memUsers, email, cpf, phone, role string) {
	m.nextID++
	m.byID[m.nextID] = &repository.User{
		ID: m.nextID, Email: email, CPF: cpf, Phone: phone,
		Role: role, IsEmailVerified: true, PasswordHash: "x",
	}
}

func newUserEnv() (*UserHandler, *memUsers) {
	users := newMemUsers()
	return NewUserHandler(testCfg(), adminStore{users}), users
}

func TestUserCheckByCPFPhone(t *testing.T) {
	h, users := newUserEnv()
	seedUser(users, "maria@example.com", "52998224725", "61988887777", "client")

	// The stored CPF is bare digits; the request may arrive punctuated.
	rec := call(t, h.Check, http.MethodPost, "/v1/users/check",
		`{"cpf":"529.982.247-25","fone":"61988887777"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["exists"])

	// Same CPF, different phone: no match, no extra detail leaked.
	rec = call(t, h.Check, http.MethodPost, "/v1/users/check",
		`{"cpf":"52998224725","fone":"61900000000"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["exists"])
	assert.Len(t, body, 1)

	rec = call(t, h.Check, http.MethodPost, "/v1/users/check", `{"cpf":"52998224725"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserUpdatePartial(t *testing.T) {
	h, users := newUserEnv()
	seedUser(users, "maria@example.com", "52998224725", "61988887777", "client")

	rec := call(t, h.Update, http.MethodPut, "/v1/users/1",
		`{"name":"Maria Silva","role":"admin"}`, "id", "1")
	require.Equal(t, http.StatusOK, rec.Code)

	u := users.byID[1]
	assert.Equal(t, "Maria Silva", u.Name)
	assert.Equal(t, "admin", u.Role)
	assert.Equal(t, "61988887777", u.Phone, "empty fields stay untouched")
	assert.Equal(t, "x", u.PasswordHash)
}

func TestUserUpdateRehashesPassword(t *testing.T) {
	h, users := newUserEnv()
	seedUser(users, "maria@example.com", "52998224725", "61988887777", "client")

	rec := call(t, h.Update, http.MethodPut, "/v1/users/1",
		`{"password":"novaSenha123"}`, "id", "1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, utils.VerifyPassword(users.byID[1].PasswordHash, "novaSenha123"))

	rec = call(t, h.Update, http.MethodPut, "/v1/users/1",
		`{"password":"curta"}`, "id", "1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserUpdateRejectsUnknownRole(t *testing.T) {
	h, users := newUserEnv()
	seedUser(users, "maria@example.com", "52998224725", "61988887777", "client")

	rec := call(t, h.Update, http.MethodPut, "/v1/users/1",
		`{"role":"superuser"}`, "id", "1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "client", users.byID[1].Role)
}

func TestUserGetAndDelete(t *testing.T) {
	h, users := newUserEnv()
	seedUser(users, "maria@example.com", "52998224725", "61988887777", "client")

	rec := call(t, h.Get, http.MethodGet, "/v1/users/1", "", "id", "1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, h.Delete, http.MethodDelete, "/v1/users/1", "", "id", "1")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = call(t, h.Get, http.MethodGet, "/v1/users/1", "", "id", "1")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, h.Delete, http.MethodDelete, "/v1/users/1", "", "id", "1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
