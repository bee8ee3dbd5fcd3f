package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"nhooyr.io/websocket"

	"agentgames/internal/backend"
	"agentgames/internal/game"
	"agentgames/internal/game/connect4"
	"agentgames/internal/game/greedypig"
	"agentgames/internal/metrics"
	"agentgames/internal/render"
	"agentgames/internal/session"
	"agentgames/internal/storage"
)

const pigResult = `{
	"id": "r1",
	"game": "greedy_pig",
	"num_simulations": 1000,
	"total_points": {"bob": 4, "alice": 10},
	"table": {"wins": {"alice": 7, "bob": 3}, "losses": {"alice": 3, "bob": 7}},
	"feedback": {
		"rounds": [
			{"number": 1, "rolls": [
				{"roll_number": 1, "value": 4, "player_states": {
					"alice": {"unbanked_money": 4, "banked_money": 0, "action": "continue"},
					"bob": {"unbanked_money": 4, "banked_money": 0, "action": "continue"}
				}},
				{"roll_number": 2, "value": 6, "player_states": {
					"alice": {"unbanked_money": 0, "banked_money": 10, "action": "bank"},
					"bob": {"unbanked_money": 10, "banked_money": 0, "action": "continue"}
				}}
			], "final_scores": {"alice": 10, "bob": 4}}
		]
	}
}`

// --- Test environment ---

type testEnv struct {
	ts       *httptest.Server
	mgr      *session.Manager
	store    *storage.Store
	metrics  *metrics.Recorder
	upstream *upstream
}

// upstream is a fake results backend serving canned bodies by id.
type upstream struct {
	ts     *httptest.Server
	mu     sync.Mutex
	bodies map[string]string
}

func (u *upstream) set(id, body string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.bodies[id] = body
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{bodies: map[string]string{}}
	u.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/results/")
		u.mu.Lock()
		body, ok := u.bodies[id]
		u.mu.Unlock()
		if !ok {
			http.Error(w, "upstream exploded", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
	t.Cleanup(u.ts.Close)
	return u
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return setupEnv(t, true)
}

func setupEnv(t *testing.T, withBackend bool) *testEnv {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	reg := game.NewRegistry()
	reg.Register(greedypig.GreedyPig{})
	reg.Register(connect4.Connect4())
	rec := metrics.NewRecorder()
	mgr := session.NewManager(reg, store, rec, nil)

	renderer, err := render.NewRenderer()
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}

	env := &testEnv{mgr: mgr, store: store, metrics: rec}
	deps := Deps{
		Registry: reg,
		Manager:  mgr,
		Store:    store,
		Renderer: renderer,
		Metrics:  rec,
		Static: fstest.MapFS{
			"css/style.css": &fstest.MapFile{Data: []byte("body { margin: 0; }")},
		},
	}
	if withBackend {
		env.upstream = newUpstream(t)
		client := backend.NewClient(backend.Config{BaseURL: env.upstream.ts.URL, Timeout: 5 * time.Second})
		deps.Loader = backend.NewLoader(client, rec, nil)
	}
	env.ts = httptest.NewServer(New(deps))
	t.Cleanup(env.ts.Close)
	return env
}

// --- Context helpers ---

func timeoutCtx(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// --- REST API helpers ---

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body)
	}
}

func createResultViaAPI(t *testing.T, ts *httptest.Server, body string) string {
	t.Helper()
	resp := postJSON(t, ts.URL+"/api/results", body)
	expectStatus(t, resp, http.StatusCreated)
	var out createResultResponse
	decode(t, resp, &out)
	return out.ID
}

func createSessionViaAPI(t *testing.T, ts *httptest.Server, resultID string) sessionResponse {
	t.Helper()
	resp := postJSON(t, ts.URL+"/api/sessions", `{"resultId":"`+resultID+`"}`)
	expectStatus(t, resp, http.StatusCreated)
	var out sessionResponse
	decode(t, resp, &out)
	return out
}

// --- WebSocket helpers ---

func wsURL(ts *httptest.Server, code string) string {
	return strings.Replace(ts.URL, "http://", "ws://", 1) + "/api/sessions/" + code + "/ws"
}

// wsConnect dials a WebSocket and consumes the initial frame.
// The caller is responsible for closing the connection.
func wsConnect(t *testing.T, ctx context.Context, ts *httptest.Server, code string) (*websocket.Conn, session.View) {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, wsURL(ts, code), nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	return conn, readFrame(t, ctx, conn)
}

// wsSend marshals and writes a typed message, calling t.Fatal on error.
func wsSend(ctx context.Context, t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	if err := conn.Write(ctx, websocket.MessageText, encodeWSMsg(msgType, payload)); err != nil {
		t.Fatalf("ws write: %v", err)
	}
}

// wsRead reads and unmarshals a WebSocket message, calling t.Fatal on error.
func wsRead(ctx context.Context, t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("ws read: %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal ws message: %v", err)
	}
	return msg
}

// readFrame reads a WebSocket message and expects it to be a "frame" message.
func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) session.View {
	t.Helper()
	msg := wsRead(ctx, t, conn)
	if msg.Type != msgFrame {
		t.Fatalf("expected frame message, got %q: %s", msg.Type, string(msg.Payload))
	}
	var view session.View
	if err := json.Unmarshal(msg.Payload, &view); err != nil {
		t.Fatalf("unmarshal frame payload: %v", err)
	}
	return view
}

// readError reads a WebSocket message and expects it to be an "error" message.
func readError(t *testing.T, ctx context.Context, conn *websocket.Conn) string {
	t.Helper()
	msg := wsRead(ctx, t, conn)
	if msg.Type != msgError {
		t.Fatalf("expected error message, got %q: %s", msg.Type, string(msg.Payload))
	}
	var ep errorPayload
	if err := json.Unmarshal(msg.Payload, &ep); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	return ep.Message
}
