package message

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

	model "github.com/zhouzirui/persona-studio/backend/internal/model/message"
	"github.com/zhouzirui/persona-studio/backend/internal/model/persona"
	"github.com/zhouzirui/persona-studio/backend/internal/model/simulation"
	"github.com/zhouzirui/persona-studio/backend/internal/service/ai"
	messageService "github.com/zhouzirui/persona-studio/backend/internal/service/message"
	simulationService "github.com/zhouzirui/persona-studio/backend/internal/service/simulation"
	"github.com/zhouzirui/persona-studio/backend/internal/storage"
)

type fixture struct {
	router  *chi.Mux
	persona persona.Persona
}

func setupRouter(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	store := persona.Open(ctx, storage.NewMemory(), "", nil)
	kim, err := store.Create(ctx, "Kim", persona.Attributes{persona.KeyAge: persona.String("30s")})
	require.NoError(t, err)

	messages := messageService.NewService(store, ai.NewTemplateGenerator(0, 0), nil)
	simulations := simulationService.NewService(ai.NewScriptedReplier(ai.DefaultScript(), 0, 0), nil)
	t.Cleanup(func() {
		messages.Close()
		simulations.Close()
	})

	r := chi.NewRouter()
	New(messages, simulations).RegisterRoutes(r)
	return fixture{router: r, persona: kim}
}

func (f fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	return resp
}

func (f fixture) createSession(t *testing.T) string {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/messages", nil)
	require.Equal(t, http.StatusCreated, resp.Code)

	var snap model.Snapshot
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &snap))
	assert.Equal(t, model.StateIdle, snap.State)
	return snap.SessionID
}

func TestGenerateRefineHandoffFlow(t *testing.T) {
	f := setupRouter(t)
	id := f.createSession(t)

	resp := f.do(t, http.MethodPost, "/messages/"+id+"/generate?wait=true", model.Request{
		PersonaID: f.persona.ID,
		Goal:      model.GoalPromotion,
		Product:   "Water Bank Cream",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var first model.Generated
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &first))
	assert.Contains(t, first.Text, "Kim")
	assert.Contains(t, first.Text, "Water Bank Cream")

	resp = f.do(t, http.MethodPost, "/messages/"+id+"/refine?wait=true", map[string]string{"instruction": "shorter"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = f.do(t, http.MethodGet, "/messages/"+id+"/history", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var history []model.Generated
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].Version)
	assert.Equal(t, 2, history[1].Version)

	resp = f.do(t, http.MethodPost, "/messages/"+id+"/handoff", nil)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var sim simulation.Snapshot
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &sim))
	assert.Equal(t, "Kim/30s", sim.PersonaLabel)
	require.NotEmpty(t, sim.Turns)
	assert.Equal(t, history[1].Text, sim.Turns[0].Text)
}

func TestGenerateWithoutWaitReturnsAccepted(t *testing.T) {
	f := setupRouter(t)
	id := f.createSession(t)

	resp := f.do(t, http.MethodPost, "/messages/"+id+"/generate", model.Request{PersonaID: f.persona.ID, Category: "스킨케어"})
	require.Equal(t, http.StatusAccepted, resp.Code)

	var snap model.Snapshot
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &snap))
	assert.Equal(t, id, snap.SessionID)
}

func TestGenerateValidation(t *testing.T) {
	f := setupRouter(t)
	id := f.createSession(t)

	resp := f.do(t, http.MethodPost, "/messages/"+id+"/generate?wait=true", model.Request{PersonaID: f.persona.ID})
	assert.Equal(t, http.StatusBadRequest, resp.Code, "product or category is required")

	resp = f.do(t, http.MethodPost, "/messages/"+id+"/generate?wait=true", model.Request{PersonaID: "ghost", Product: "Cream"})
	assert.Equal(t, http.StatusBadRequest, resp.Code, "unknown persona")
}

func TestRefineBeforeGenerateIsRejected(t *testing.T) {
	f := setupRouter(t)
	id := f.createSession(t)

	resp := f.do(t, http.MethodPost, "/messages/"+id+"/refine", map[string]string{"instruction": "shorter"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandoffRequiresReadySession(t *testing.T) {
	f := setupRouter(t)
	id := f.createSession(t)

	resp := f.do(t, http.MethodPost, "/messages/"+id+"/handoff", nil)
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestCancelIdleSession(t *testing.T) {
	f := setupRouter(t)
	id := f.createSession(t)

	resp := f.do(t, http.MethodPost, "/messages/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"cancelled":false`)
}

func TestUnknownSession(t *testing.T) {
	f := setupRouter(t)

	for _, path := range []string{"/messages/nope", "/messages/nope/history"} {
		resp := f.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, resp.Code, path)
	}

	resp := f.do(t, http.MethodDelete, "/messages/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDeleteSession(t *testing.T) {
	f := setupRouter(t)
	id := f.createSession(t)

	resp := f.do(t, http.MethodDelete, "/messages/"+id, nil)
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = f.do(t, http.MethodGet, "/messages/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
