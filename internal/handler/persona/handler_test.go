package persona

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/persona-studio/backend/internal/analysis/profile"
	"github.com/zhouzirui/persona-studio/backend/internal/model/persona"
	"github.com/zhouzirui/persona-studio/backend/internal/storage"
)

func setupRouter(t *testing.T) (*chi.Mux, *persona.PersistentStore) {
	t.Helper()
	store := persona.Open(context.Background(), storage.NewMemory(), "", nil)
	for _, seed := range persona.Seed() {
		_, err := store.Create(context.Background(), seed.Name, seed.Attributes)
		require.NoError(t, err)
	}

	r := chi.NewRouter()
	New(store, nil).RegisterRoutes(r)
	return r, store
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestListPersonas(t *testing.T) {
	r, store := setupRouter(t)

	resp := do(r, http.MethodGet, "/personas", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var got []persona.Persona
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Len(t, got, len(store.List()))
}

func TestCreatePersona(t *testing.T) {
	r, store := setupRouter(t)
	before := len(store.List())

	resp := do(r, http.MethodPost, "/personas",
		`{"name":"Kim","attributes":{"age":{"kind":"string","value":"30s"},"moistureLevel":{"kind":"number","value":40}}}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var created persona.Persona
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Kim", created.Name)
	assert.Equal(t, "40", created.Attributes.Text(persona.KeyMoistureLevel))
	assert.Len(t, store.List(), before+1)
}

func TestCreatePersonaValidation(t *testing.T) {
	r, store := setupRouter(t)
	before := len(store.List())

	cases := map[string]string{
		"empty name":   `{"name":"  "}`,
		"out of range": `{"name":"Kim","attributes":{"oilLevel":{"kind":"number","value":130}}}`,
		"bad json":     `{"name":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := do(r, http.MethodPost, "/personas", body)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
		})
	}
	assert.Len(t, store.List(), before)
}

func TestGetReplaceDeletePersona(t *testing.T) {
	r, store := setupRouter(t)
	id := store.List()[0].ID

	resp := do(r, http.MethodGet, "/personas/"+id, "")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = do(r, http.MethodPut, "/personas/"+id, `{"name":"Renamed"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	p, ok := store.FindByID(id)
	require.True(t, ok)
	assert.Equal(t, "Renamed", p.Name)

	resp = do(r, http.MethodDelete, "/personas/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.Code)
	_, ok = store.FindByID(id)
	assert.False(t, ok)

	resp = do(r, http.MethodDelete, "/personas/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.Code, "deleting an absent persona is a no-op")

	resp = do(r, http.MethodGet, "/personas/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = do(r, http.MethodPut, "/personas/"+id, `{"name":"Ghost"}`)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAnalyzePersona(t *testing.T) {
	r, store := setupRouter(t)
	p, err := store.Create(context.Background(), "Kim", persona.Attributes{
		persona.KeySkinType: persona.Labels("지성"),
		persona.KeyConcerns: persona.Labels("모공", "블랙헤드"),
	})
	require.NoError(t, err)

	resp := do(r, http.MethodGet, "/personas/"+p.ID+"/analysis", "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var got profile.Analysis
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, p.ID, got.PersonaID)
	assert.Equal(t, profile.CategoryPore, got.PrimaryCategory)
	assert.Contains(t, got.Search.IncludeTags, "피지조절")
	assert.NotEmpty(t, got.Guide.PainPoint)

	resp = do(r, http.MethodGet, "/personas/missing/analysis", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
