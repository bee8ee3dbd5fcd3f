package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"agentgames/internal/game"
	"agentgames/internal/render"
	"agentgames/internal/result"
	"agentgames/internal/session"
	"agentgames/internal/storage"
)

func TestHealth(t *testing.T) {
	env := setupTestEnv(t)
	resp := get(t, env.ts.URL+"/healthz")
	expectStatus(t, resp, http.StatusOK)
	var body map[string]string
	decode(t, resp, &body)
	if body["status"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestListGames(t *testing.T) {
	env := setupTestEnv(t)
	resp := get(t, env.ts.URL+"/api/games")
	expectStatus(t, resp, http.StatusOK)

	var games []game.Info
	decode(t, resp, &games)
	if len(games) != 2 || games[0].Name != "connect4" || games[1].Name != "greedy_pig" {
		t.Fatalf("expected [connect4 greedy_pig], got %v", games)
	}
	if games[1].Kind != game.KindDice {
		t.Fatalf("expected dice kind, got %s", games[1].Kind)
	}
}

func TestCreateAndGetResult(t *testing.T) {
	env := setupTestEnv(t)
	id := createResultViaAPI(t, env.ts, pigResult)
	if id != "r1" {
		t.Fatalf("expected supplied id to be kept, got %q", id)
	}

	resp := get(t, env.ts.URL+"/api/results/r1")
	expectStatus(t, resp, http.StatusOK)
	var res result.MatchResult
	decode(t, resp, &res)
	if res.Game != "greedy_pig" || res.NumSimulations != 1000 {
		t.Fatalf("unexpected result %+v", res)
	}

	createResultViaAPI(t, env.ts, `{"game":"connect4","total_points":{"a":1}}`)
	resp = get(t, env.ts.URL+"/api/results?game=greedy_pig")
	expectStatus(t, resp, http.StatusOK)
	var rows []storage.ResultRow
	decode(t, resp, &rows)
	if len(rows) != 1 || rows[0].ID != "r1" {
		t.Fatalf("expected only r1, got %+v", rows)
	}
}

func TestCreateResultInvalidBody(t *testing.T) {
	env := setupTestEnv(t)
	req, _ := http.NewRequest(http.MethodPost, env.ts.URL+"/api/results", strings.NewReader("not json"))
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /api/results: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)

	if got := resp.Header.Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
	var body map[string]string
	decode(t, resp, &body)
	if body["error"] == "" || body["requestId"] != "req-42" {
		t.Fatalf("unexpected error body %v", body)
	}
}

func TestGetResultNotFound(t *testing.T) {
	env := setupTestEnv(t)
	expectStatus(t, get(t, env.ts.URL+"/api/results/missing"), http.StatusNotFound)
	expectStatus(t, get(t, env.ts.URL+"/api/results/missing/table"), http.StatusNotFound)
}

func TestDeleteResult(t *testing.T) {
	env := setupTestEnv(t)
	createResultViaAPI(t, env.ts, pigResult)

	req, _ := http.NewRequest(http.MethodDelete, env.ts.URL+"/api/results/r1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	expectStatus(t, resp, http.StatusNoContent)
	expectStatus(t, get(t, env.ts.URL+"/api/results/r1"), http.StatusNotFound)
}

func TestDeleteResultDropsSessions(t *testing.T) {
	env := setupTestEnv(t)
	createResultViaAPI(t, env.ts, pigResult)
	code := createSessionViaAPI(t, env.ts, "r1").Info.Code

	req, _ := http.NewRequest(http.MethodDelete, env.ts.URL+"/api/results/r1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	expectStatus(t, resp, http.StatusNoContent)

	expectStatus(t, get(t, env.ts.URL+"/api/sessions/"+code), http.StatusNotFound)
	expectStatus(t, postJSON(t, env.ts.URL+"/api/sessions/"+code+"/intents", `{"type":"next"}`), http.StatusNotFound)
	rows, err := env.store.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected session rows removed, got %+v", rows)
	}
}

func TestResultTable(t *testing.T) {
	env := setupTestEnv(t)
	createResultViaAPI(t, env.ts, pigResult)

	resp := get(t, env.ts.URL+"/api/results/r1/table?self=bob&highlight=true")
	expectStatus(t, resp, http.StatusOK)
	var tv render.TableView
	decode(t, resp, &tv)
	if len(tv.Rows) != 2 || tv.Rows[0].Name != "alice" || tv.Rows[0].WinRate != "70.0" {
		t.Fatalf("unexpected table %+v", tv)
	}
	if !tv.Rows[1].Self || tv.Rows[0].Self {
		t.Fatalf("expected only bob highlighted, got %+v", tv.Rows)
	}

	id := createResultViaAPI(t, env.ts, `{"game":"greedy_pig","total_points":{}}`)
	expectStatus(t, get(t, env.ts.URL+"/api/results/"+id+"/table"), http.StatusNoContent)
}

func TestSessionLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	createResultViaAPI(t, env.ts, pigResult)

	created := createSessionViaAPI(t, env.ts, "r1")
	code := created.Info.Code
	if code == "" || created.Info.Kind != game.KindDice {
		t.Fatalf("unexpected session info %+v", created.Info)
	}
	if created.View.State.TotalEvents != 2 || created.View.State.CurrentEvent != 0 {
		t.Fatalf("unexpected initial state %+v", created.View.State)
	}

	resp := postJSON(t, env.ts.URL+"/api/sessions/"+code+"/intents", `{"type":"next"}`)
	expectStatus(t, resp, http.StatusOK)
	var view session.View
	decode(t, resp, &view)
	if view.State.CurrentEvent != 1 || view.Frame.Dice == nil || view.Frame.Dice.Roll != 6 {
		t.Fatalf("unexpected view after next %+v", view)
	}

	resp = get(t, env.ts.URL+"/api/sessions/"+code)
	expectStatus(t, resp, http.StatusOK)
	var got sessionResponse
	decode(t, resp, &got)
	if got.View.State.CurrentEvent != 1 || len(got.Log) == 0 {
		t.Fatalf("expected position and log to persist, got %+v", got)
	}

	resp = get(t, env.ts.URL+"/api/sessions")
	var infos []session.Info
	decode(t, resp, &infos)
	if len(infos) != 1 || infos[0].Code != code {
		t.Fatalf("unexpected session list %+v", infos)
	}

	req, _ := http.NewRequest(http.MethodDelete, env.ts.URL+"/api/sessions/"+code, nil)
	dresp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE session: %v", err)
	}
	dresp.Body.Close()
	expectStatus(t, dresp, http.StatusNoContent)
	expectStatus(t, get(t, env.ts.URL+"/api/sessions/"+code), http.StatusNotFound)
}

func TestIntentErrors(t *testing.T) {
	env := setupTestEnv(t)
	createResultViaAPI(t, env.ts, pigResult)
	code := createSessionViaAPI(t, env.ts, "r1").Info.Code

	tests := []struct {
		name   string
		code   string
		body   string
		status int
	}{
		{"match out of range", code, `{"type":"jump_to_match","match":9}`, http.StatusBadRequest},
		{"unknown intent", code, `{"type":"rewind"}`, http.StatusBadRequest},
		{"invalid body", code, `{`, http.StatusBadRequest},
		{"unknown session", "nope", `{"type":"next"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, env.ts.URL+"/api/sessions/"+tt.code+"/intents", tt.body)
			expectStatus(t, resp, tt.status)
		})
	}
	if snap := env.metrics.Snapshot(); snap.IntentErrors != 2 {
		t.Fatalf("expected 2 rejected intents, got %+v", snap)
	}
}

func TestCreateSessionErrors(t *testing.T) {
	env := setupTestEnv(t)
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"invalid body", `nope`, http.StatusBadRequest},
		{"missing result id", `{"resultId":"  "}`, http.StatusBadRequest},
		{"unknown result", `{"resultId":"missing"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, postJSON(t, env.ts.URL+"/api/sessions", tt.body), tt.status)
		})
	}
}

func TestRefreshResult(t *testing.T) {
	env := setupTestEnv(t)
	env.upstream.set("r1", pigResult)

	resp := postJSON(t, env.ts.URL+"/api/results/r1/refresh", "")
	expectStatus(t, resp, http.StatusOK)
	expectStatus(t, get(t, env.ts.URL+"/api/results/r1"), http.StatusOK)
	if snap := env.metrics.Snapshot(); snap.BackendFetches != 1 || snap.BackendErrors != 0 {
		t.Fatalf("unexpected fetch metrics %+v", snap)
	}
}

func TestRefreshStoresUnderRequestedID(t *testing.T) {
	env := setupTestEnv(t)
	env.upstream.set("r9", pigResult)

	resp := postJSON(t, env.ts.URL+"/api/results/r9/refresh", "")
	expectStatus(t, resp, http.StatusOK)
	var out createResultResponse
	decode(t, resp, &out)
	if out.ID != "r9" {
		t.Fatalf("expected r9, got %+v", out)
	}
	expectStatus(t, get(t, env.ts.URL+"/api/results/r9"), http.StatusOK)
	expectStatus(t, get(t, env.ts.URL+"/api/results/r1"), http.StatusNotFound)
}

func TestRefreshIntoSession(t *testing.T) {
	env := setupTestEnv(t)
	createResultViaAPI(t, env.ts, pigResult)
	code := createSessionViaAPI(t, env.ts, "r1").Info.Code
	postJSON(t, env.ts.URL+"/api/sessions/"+code+"/intents", `{"type":"next"}`)

	env.upstream.set("r1", `{"game":"greedy_pig","total_points":{"alice":1},"feedback":"Rematch pending."}`)
	resp := postJSON(t, env.ts.URL+"/api/results/r1/refresh?session="+code, "")
	expectStatus(t, resp, http.StatusOK)
	var view session.View
	decode(t, resp, &view)
	if view.State.CurrentEvent != 0 || view.Frame.Kind != game.KindNarrative {
		t.Fatalf("expected reset navigator on narrative feedback, got %+v", view)
	}

	expectStatus(t, postJSON(t, env.ts.URL+"/api/results/r1/refresh?session=nope", ""), http.StatusNotFound)
}

func TestRefreshUpstreamFailure(t *testing.T) {
	env := setupTestEnv(t)
	resp := postJSON(t, env.ts.URL+"/api/results/unknown/refresh", "")
	expectStatus(t, resp, http.StatusBadGateway)
	var body map[string]string
	decode(t, resp, &body)
	if !strings.Contains(body["error"], "500") {
		t.Fatalf("expected upstream status in error, got %v", body)
	}
}

func TestRefreshWithoutBackend(t *testing.T) {
	env := setupEnv(t, false)
	expectStatus(t, postJSON(t, env.ts.URL+"/api/results/r1/refresh", ""), http.StatusServiceUnavailable)
}

func TestHTMLPages(t *testing.T) {
	env := setupTestEnv(t)
	createResultViaAPI(t, env.ts, pigResult)
	code := createSessionViaAPI(t, env.ts, "r1").Info.Code

	resp := get(t, env.ts.URL+"/results/r1")
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Show Results") || !strings.Contains(string(body), "Greedy Pig") {
		t.Fatalf("unexpected result page:\n%s", body)
	}

	resp = get(t, env.ts.URL+"/sessions/"+code)
	expectStatus(t, resp, http.StatusOK)
	body, _ = io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `data-session="`+code+`"`) || !strings.Contains(string(body), "Step 0 of 2") {
		t.Fatalf("unexpected session page:\n%s", body)
	}

	expectStatus(t, get(t, env.ts.URL+"/results/missing"), http.StatusNotFound)
	expectStatus(t, get(t, env.ts.URL+"/sessions/missing"), http.StatusNotFound)
}

func TestStaticFiles(t *testing.T) {
	env := setupTestEnv(t)
	resp := get(t, env.ts.URL+"/static/css/style.css")
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "margin") {
		t.Fatalf("unexpected stylesheet %q", body)
	}
}
