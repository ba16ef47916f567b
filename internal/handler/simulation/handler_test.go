package simulation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/zhouzirui/persona-studio/backend/internal/model/simulation"
	"github.com/zhouzirui/persona-studio/backend/internal/service/ai"
	simulationService "github.com/zhouzirui/persona-studio/backend/internal/service/simulation"
)

func setupRouter(t *testing.T) (*chi.Mux, *simulationService.Service) {
	t.Helper()
	simulations := simulationService.NewService(ai.NewScriptedReplier(ai.DefaultScript(), 0, 0), nil)
	t.Cleanup(simulations.Close)

	r := chi.NewRouter()
	New(simulations, nil).RegisterRoutes(r)
	return r, simulations
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func startSimulation(t *testing.T, r http.Handler) model.Snapshot {
	t.Helper()
	resp := do(r, http.MethodPost, "/simulations", `{"text":"Try our 20% off cream","personaLabel":"Kim"}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var snap model.Snapshot
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &snap))
	return snap
}

func TestStartAndRespond(t *testing.T) {
	r, simulations := setupRouter(t)
	snap := startSimulation(t, r)
	require.Len(t, snap.Turns, 1)
	assert.Equal(t, "Try our 20% off cream", snap.Turns[0].Text)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	session, err := simulations.Get(ctx, snap.SessionID)
	require.NoError(t, err)
	require.NoError(t, session.Await(ctx))

	resp := do(r, http.MethodPost, "/simulations/"+snap.SessionID+"/respond", `{"text":"시카 성분이에요"}`)
	require.Equal(t, http.StatusAccepted, resp.Code)
	require.NoError(t, session.Await(ctx))

	resp = do(r, http.MethodGet, "/simulations/"+snap.SessionID, "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &snap))
	require.Len(t, snap.Turns, 4)
	assert.Equal(t, model.SpeakerUser, snap.Turns[2].Speaker)
	assert.Equal(t, model.SpeakerVirtualCustomer, snap.Turns[3].Speaker)
}

func TestStartValidation(t *testing.T) {
	r, _ := setupRouter(t)

	resp := do(r, http.MethodPost, "/simulations", `{"text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(r, http.MethodPost, "/simulations", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRespondValidationAndNotFound(t *testing.T) {
	r, _ := setupRouter(t)
	snap := startSimulation(t, r)

	resp := do(r, http.MethodPost, "/simulations/"+snap.SessionID+"/respond", `{"text":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(r, http.MethodPost, "/simulations/nope/respond", `{"text":"hi"}`)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestEndSimulation(t *testing.T) {
	r, _ := setupRouter(t)
	snap := startSimulation(t, r)

	resp := do(r, http.MethodDelete, "/simulations/"+snap.SessionID, "")
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = do(r, http.MethodGet, "/simulations/"+snap.SessionID, "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestWebSocketPushesTurns(t *testing.T) {
	r, _ := setupRouter(t)
	snap := startSimulation(t, r)

	server := httptest.NewServer(r)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/simulations/" + snap.SessionID + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	readTurns := func(n int) []model.Turn {
		var turns []model.Turn
		for len(turns) < n {
			var msg struct {
				Type string          `json:"type"`
				Data json.RawMessage `json:"data"`
			}
			require.NoError(t, ws.ReadJSON(&msg))
			if msg.Type != "turn" {
				continue
			}
			var turn model.Turn
			require.NoError(t, json.Unmarshal(msg.Data, &turn))
			turns = append(turns, turn)
		}
		return turns
	}

	turns := readTurns(2)
	assert.Equal(t, "Try our 20% off cream", turns[0].Text)
	assert.Equal(t, model.SpeakerVirtualCustomer, turns[1].Speaker)

	require.NoError(t, ws.WriteJSON(map[string]any{
		"type": "respond",
		"data": map[string]string{"text": "링크 보내드릴게요"},
	}))

	turns = readTurns(2)
	assert.Equal(t, model.SpeakerUser, turns[0].Speaker)
	assert.Equal(t, "링크 보내드릴게요", turns[0].Text)
	assert.Equal(t, model.SpeakerVirtualCustomer, turns[1].Speaker)
}

func TestWebSocketUnknownSimulation(t *testing.T) {
	r, _ := setupRouter(t)
	server := httptest.NewServer(r)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/simulations/nope/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketClosesWhenSimulationEnds(t *testing.T) {
	r, _ := setupRouter(t)
	snap := startSimulation(t, r)

	server := httptest.NewServer(r)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/simulations/" + snap.SessionID + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first struct {
		Type string `json:"type"`
	}
	require.NoError(t, ws.ReadJSON(&first))

	resp := do(r, http.MethodDelete, "/simulations/"+snap.SessionID, "")
	require.Equal(t, http.StatusNoContent, resp.Code)

	sawClosed := false
	for {
		var msg struct {
			Type string `json:"type"`
		}
		err := ws.ReadJSON(&msg)
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected read error: %v", err)
			break
		}
		if msg.Type == "closed" {
			sawClosed = true
		}
	}
	assert.True(t, sawClosed)
}
