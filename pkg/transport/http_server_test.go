package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/raywall/hotmock/pkg/dispatch"
	"github.com/raywall/hotmock/pkg/handlers"
	"github.com/raywall/hotmock/pkg/loader"
	"github.com/raywall/hotmock/pkg/reload"
	"github.com/raywall/hotmock/pkg/routing"
	"github.com/raywall/hotmock/pkg/rules"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	srv   *httptest.Server
	coord *reload.Coordinator
	table *routing.Table
	dir   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	rm, err := rules.NewRuleManager()
	require.NoError(t, err)

	registry := handlers.NewRegistry(handlers.Deps{Rules: rm, Log: zerolog.Nop()})
	registry.RegisterFunc("echo-id", routing.HandlerFunc(func(w http.ResponseWriter, r *http.Request, _ http.Handler) {
		writeJSON(w, http.StatusOK, map[string]string{"id": mux.Vars(r)["id"], "via": "func"})
	}))

	table := routing.NewTable()
	coord := reload.NewCoordinator(table, loader.New(registry))
	server := NewServer(Options{
		Table:       table,
		Dispatcher:  dispatch.New(table),
		Coordinator: coord,
		Log:         zerolog.Nop(),
	})
	server.Router().HandleFunc("/host/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"host": mux.Vars(r)["id"]})
	})
	server.Router().HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"host": "orders"})
	}).Methods(http.MethodGet)

	h := &harness{srv: httptest.NewServer(server.Handler()), coord: coord, table: table, dir: t.TempDir()}
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (h *harness) apply(t *testing.T, kind reload.EventKind, path string) {
	t.Helper()
	require.NoError(t, h.coord.Handle(context.Background(), reload.Event{Kind: kind, Path: path}).Err)
}

func (h *harness) do(t *testing.T, method, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func TestServer_HotReloadScenarios(t *testing.T) {
	h := newHarness(t)

	users := h.write(t, "users.yaml", `
routes:
  - route: "GET /users/:id"
    static: {name: a}
`)
	h.apply(t, reload.EventAdd, users)

	resp, body := h.do(t, http.MethodGet, "/users/42", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]interface{}{"name": "a"}, body)
	assert.NotEmpty(t, resp.Header.Get(HeaderCorrelationID))
	assert.NotEmpty(t, resp.Header.Get(HeaderLatency))

	// estático vira handler: o valor antigo não pode mais responder
	h.write(t, "users.yaml", `
routes:
  - route: "GET /users/:id"
    handler: {kind: func, options: {name: echo-id}}
  - route: "POST /users"
    handler:
      kind: expression
      options: {status: 201, body: {created: "${body.name}"}}
`)
	h.apply(t, reload.EventChange, users)

	_, body = h.do(t, http.MethodGet, "/users/42", "")
	assert.Equal(t, map[string]interface{}{"id": "42", "via": "func"}, body)

	resp, body = h.do(t, http.MethodPost, "/users", `{"name": "Bia"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, map[string]interface{}{"created": "Bia"}, body)

	// unlink: as rotas do arquivo passam a cair no fallback
	h.apply(t, reload.EventUnlink, users)
	resp, body = h.do(t, http.MethodGet, "/users/42", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body["error"], "GET /users/42")
}

func TestServer_UnlinkKeepsOtherFiles(t *testing.T) {
	h := newHarness(t)
	f1 := h.write(t, "a.json", `{"routes": [{"route": "GET /a", "static": "A"}]}`)
	f2 := h.write(t, "b.json", `{"routes": [{"route": "GET /b", "static": {"v": "B"}}]}`)
	h.apply(t, reload.EventAdd, f1)
	h.apply(t, reload.EventAdd, f2)

	h.apply(t, reload.EventUnlink, f1)

	resp, _ := h.do(t, http.MethodGet, "/a", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, body := h.do(t, http.MethodGet, "/b", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]interface{}{"v": "B"}, body)
}

func TestServer_HostRoutes(t *testing.T) {
	h := newHarness(t)

	_, body := h.do(t, http.MethodGet, "/host/7", "")
	assert.Equal(t, map[string]interface{}{"host": "7"}, body, "sem mock a rota do host responde")

	f := h.write(t, "host.yaml", `
routes:
  - route: "GET /host/:id"
    handler: {kind: func, options: {name: echo-id}}
`)
	h.apply(t, reload.EventAdd, f)

	_, body = h.do(t, http.MethodGet, "/host/7", "")
	assert.Equal(t, map[string]interface{}{"id": "7", "via": "func"}, body, "o mock intercepta a rota do host")

	// o host só registra GET /orders; outro método cai no 405 do roteador
	resp, body := h.do(t, http.MethodPost, "/orders", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Contains(t, body["error"], "POST /orders")

	orders := h.write(t, "orders.yaml", `
routes:
  - route: "POST /orders"
    static: {created: true}
`)
	h.apply(t, reload.EventAdd, orders)

	resp, body = h.do(t, http.MethodPost, "/orders", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]interface{}{"created": true}, body, "o mock responde mesmo com o método recusado pelo host")
	assert.NotEmpty(t, resp.Header.Get(HeaderCorrelationID))

	_, body = h.do(t, http.MethodGet, "/orders", "")
	assert.Equal(t, map[string]interface{}{"host": "orders"}, body)

	resp, _ = h.do(t, http.MethodGet, "/__hotmock/reload", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_Admin(t *testing.T) {
	h := newHarness(t)
	f := h.write(t, "a.yaml", `
routes:
  - route: "GET /items/:id"
    static: []
  - route: "GET /items"
    static: []
`)
	h.apply(t, reload.EventAdd, f)

	resp, body := h.do(t, http.MethodGet, "/__hotmock/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(2), body["routes"])
	assert.Equal(t, "idle", body["reload_state"])

	resp, err := http.Get(h.srv.URL + "/__hotmock/routes")
	require.NoError(t, err)
	var routes []routing.RouteInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&routes))
	resp.Body.Close()
	require.Len(t, routes, 2)
	assert.Equal(t, "GET /items/:id", routes[0].Key)
	assert.Equal(t, f, routes[0].Owner)

	_, body = h.do(t, http.MethodGet, "/__hotmock/match?path=/items/9", "")
	assert.Equal(t, "GET /items/:id", body["key"])
	assert.Equal(t, map[string]interface{}{"id": "9"}, body["params"])

	resp, _ = h.do(t, http.MethodGet, "/__hotmock/match?path=/nada", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = h.do(t, http.MethodPost, "/__hotmock/reload", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestObservabilityMiddleware_KeepsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	handler := ObservabilityMiddleware(base, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("dentro do handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderCorrelationID, "abc-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "abc-123", rr.Header().Get(HeaderCorrelationID))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"correlation_id":"abc-123"`)
	assert.Contains(t, lines[1], `"status":418`)
}
