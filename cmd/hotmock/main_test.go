package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/raywall/hotmock/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunServe_Bootstrap(t *testing.T) {
	mocks := t.TempDir()
	writeFile(t, mocks, "users.yaml", `
routes:
  - route: "GET /users/:id"
    static: {name: boot}
`)
	cfgPath := writeFile(t, t.TempDir(), "hotmock.yaml", fmt.Sprintf(`
version: "1.0"
server:
  name: "boot-test"
  port: 9999
  handler_timeout: "1s"
  logging: {enabled: false}
watch:
  paths: ["%s"]
`, mocks))

	errStop := errors.New("stop")
	originalStarter := serverStarter
	defer func() { serverStarter = originalStarter }()

	var served bool
	// Substitui a função real por um Mock: espera o arquivo ser carregado
	// pelo watcher e consulta o handler sem abrir porta.
	serverStarter = func(ctx context.Context, srv *transport.Server, addr string) error {
		assert.Equal(t, ":9999", addr)
		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			rr := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/1", nil))
			if rr.Code == http.StatusOK {
				served = assert.JSONEq(t, `{"name":"boot"}`, rr.Body.String())
				return errStop
			}
			time.Sleep(20 * time.Millisecond)
		}
		return errors.New("rota não carregada a tempo")
	}

	err := runServe(context.Background(), cfgPath)
	assert.ErrorIs(t, err, errStop)
	assert.True(t, served, "o mock do arquivo deveria ter sido servido")
}

func TestRunServe_InvalidConfig(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "hotmock.yaml", "version: \"1.0\"\n")
	err := runServe(context.Background(), cfgPath)
	assert.ErrorContains(t, err, "validação")
}

func TestCheckCmd(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yaml", `
routes:
  - route: "GET /a"
    static: 1
  - route: "POST /a"
    handler: {kind: expression, options: {status: 201}}
`)
	bad := writeFile(t, dir, "bad.yaml", "routes:\n  - route: sem-metodo\n")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check", good})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "2 rota(s)")
	assert.Contains(t, out.String(), "expression")

	out.Reset()
	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check", good, bad})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "❌ "+bad)
}

func TestCheckCmd_Examples(t *testing.T) {
	t.Setenv("YAPI_HOST", "http://yapi.local")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"check", "-c", "../../examples/hotmock.yaml",
		"../../examples/mocks/users.yaml",
		"../../examples/mocks/orders/orders.json",
		"../../examples/mocks/flags.toml",
	})
	require.NoError(t, cmd.ExecuteContext(context.Background()), out.String())
	assert.Contains(t, out.String(), "users.yaml: 3 rota(s)")
	assert.Contains(t, out.String(), "orders.json: 2 rota(s)")
	assert.Contains(t, out.String(), "flags.toml: 2 rota(s)")
	assert.NotContains(t, out.String(), "❌")
}

func TestSchemaCmd(t *testing.T) {
	yapi := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/interface/get", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`{"data": {"res_body_is_json_schema": true, "res_body": "{\"type\":\"object\",\"properties\":{\"code\":{\"type\":\"integer\"}}}"}}`))
	}))
	defer yapi.Close()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"schema", "--host", yapi.URL, "--id", "42", "--override", `{"msg": "ok"}`})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.JSONEq(t, `{"code": 0, "msg": "ok"}`, out.String())

	cmd = newRootCmd()
	cmd.SetArgs([]string{"schema", "--host", yapi.URL, "--id", "42", "--override", "{"})
	assert.ErrorContains(t, cmd.ExecuteContext(context.Background()), "override")
}
