package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/raywall/hotmock/pkg/dispatch"
	"github.com/raywall/hotmock/pkg/routing"
	"github.com/raywall/hotmock/pkg/rules"
	"github.com/raywall/hotmock/pkg/schemamock"
	"github.com/raywall/hotmock/pkg/sources"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSchemaClient struct {
	mock.Mock
}

func (m *MockSchemaClient) FetchSchemaMock(ctx context.Context, d schemamock.Descriptor, override interface{}) (interface{}, error) {
	args := m.Called(ctx, d, override)
	return args.Get(0), args.Error(1)
}

func (m *MockSchemaClient) Forward(ctx context.Context, req schemamock.ForwardRequest, target schemamock.ProxyTarget) (*schemamock.ProxyResponse, error) {
	args := m.Called(ctx, req, target)
	resp, _ := args.Get(0).(*schemamock.ProxyResponse)
	return resp, args.Error(1)
}

func newTestRegistry(t *testing.T, schema SchemaClient) *Registry {
	t.Helper()
	rm, err := rules.NewRuleManager()
	require.NoError(t, err)
	return NewRegistry(Deps{
		Rules:      rm,
		Sources:    sources.NewResolver(),
		Schema:     schema,
		SchemaHost: "http://yapi.local",
		Proxy:      schemamock.ProxyTarget{Host: "http://yapi.local", ProjectID: 7},
		Log:        zerolog.Nop(),
	})
}

// serve executa a Entry como o despachante faria: variáveis de rota e corpo
// já anexados à requisição.
func serve(t *testing.T, entry routing.Entry, r *http.Request, params map[string]string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	require.True(t, entry.IsHandler())
	if params != nil {
		r = mux.SetURLVars(r, params)
	}
	r = r.WithContext(dispatch.WithBody(r.Context(), dispatch.Body{Strategy: dispatch.StrategyJSON, Value: body}))

	rr := httptest.NewRecorder()
	entry.Handler().ServeMock(rr, r, http.NotFoundHandler())
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) interface{} {
	t.Helper()
	var out interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func fromJSON(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func TestRegistry_Build(t *testing.T) {
	reg := newTestRegistry(t, nil)

	_, err := reg.Build(Spec{Kind: "inexistente"})
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = reg.Build(Spec{})
	assert.Error(t, err)

	_, err = reg.Build(Spec{Kind: KindFunc, Options: map[string]interface{}{"name": "nada"}})
	assert.ErrorContains(t, err, "não registrada")

	_, err = reg.Build(Spec{Kind: KindSchema, Options: map[string]interface{}{"id": "1"}})
	assert.ErrorContains(t, err, "schemamock", "kind schema sem cliente deve falhar no carregamento")

	assert.Equal(t, []string{"emulator", "expression", "func", "proxy", "schema", "source"}, reg.Kinds())
}

func TestRegistry_Func(t *testing.T) {
	reg := newTestRegistry(t, nil)
	reg.RegisterFunc("teapot", routing.HandlerFunc(func(w http.ResponseWriter, r *http.Request, _ http.Handler) {
		w.WriteHeader(http.StatusTeapot)
	}))

	entry, err := reg.Build(Spec{Kind: KindFunc, Options: map[string]interface{}{"name": "teapot"}})
	require.NoError(t, err)
	assert.Equal(t, KindFunc, entry.Kind())

	rr := serve(t, entry, httptest.NewRequest(http.MethodGet, "/", nil), nil, nil)
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestRegistry_CustomKind(t *testing.T) {
	reg := newTestRegistry(t, nil)
	reg.Register("echo", func(options map[string]interface{}) (routing.Handler, error) {
		return routing.HandlerFunc(func(w http.ResponseWriter, r *http.Request, _ http.Handler) {
			sendResponse(w, http.StatusOK, options)
		}), nil
	})

	entry, err := reg.Build(Spec{Kind: "echo", Options: map[string]interface{}{"a": 1}})
	require.NoError(t, err)
	rr := serve(t, entry, httptest.NewRequest(http.MethodGet, "/", nil), nil, nil)
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, decode(t, rr))
}

func TestEmulator(t *testing.T) {
	reg := newTestRegistry(t, nil)
	entry, err := reg.Build(Spec{Kind: KindEmulator, Options: fromJSON(t, `{
		"data": [
			{"id": 1, "name": "Ana", "team": "a"},
			{"id": 2, "name": "Bia", "team": "a"},
			{"id": 3, "name": "Caio", "team": "b"}
		],
		"path_params": [{"name": "id", "maps_to": "id"}],
		"query_params": [{"name": "team", "maps_to": "team"}],
		"response_on_no_match": {"status": 404, "body": {"error": "usuário não encontrado"}}
	}`)})
	require.NoError(t, err)

	tests := []struct {
		name   string
		target string
		params map[string]string
		status int
		want   interface{}
	}{
		{
			name: "Por parametro de rota", target: "/users/2", params: map[string]string{"id": "2"},
			status: 200, want: map[string]interface{}{"id": float64(2), "name": "Bia", "team": "a"},
		},
		{
			name: "Por query devolve lista", target: "/users?team=a",
			status: 200, want: []interface{}{
				map[string]interface{}{"id": float64(1), "name": "Ana", "team": "a"},
				map[string]interface{}{"id": float64(2), "name": "Bia", "team": "a"},
			},
		},
		{
			name: "Sem correspondencia", target: "/users/9", params: map[string]string{"id": "9"},
			status: 404, want: map[string]interface{}{"error": "usuário não encontrado"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(t, entry, httptest.NewRequest(http.MethodGet, tt.target, nil), tt.params, nil)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.want, decode(t, rr))
		})
	}
}

func TestEmulator_FromSourceWithSelect(t *testing.T) {
	reg := newTestRegistry(t, nil)
	entry, err := reg.Build(Spec{Kind: KindEmulator, Options: fromJSON(t, `{
		"source": {"type": "fixed", "value": [{"sku": "x1", "price": 10}, {"sku": "x2", "price": 20}]},
		"query_params": [{"name": "sku", "maps_to": "sku"}],
		"select": "$.price",
		"headers": {"X-Mock": "emulator"}
	}`)})
	require.NoError(t, err)

	rr := serve(t, entry, httptest.NewRequest(http.MethodGet, "/products?sku=x2", nil), nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "emulator", rr.Header().Get("X-Mock"))
	assert.Equal(t, float64(20), decode(t, rr))
}

func TestValuesMatch(t *testing.T) {
	assert.True(t, valuesMatch("a", "a"))
	assert.True(t, valuesMatch(float64(2), "2"))
	assert.True(t, valuesMatch(int64(3), "3"))
	assert.True(t, valuesMatch(true, "TRUE"))
	assert.False(t, valuesMatch(float64(2), "dois"))
	assert.False(t, valuesMatch([]interface{}{}, "x"))
}

func TestExpression(t *testing.T) {
	reg := newTestRegistry(t, nil)
	entry, err := reg.Build(Spec{Kind: KindExpression, Options: fromJSON(t, `{
		"headers": {"X-User": "${params.id}", "X-Fixed": "sim"},
		"body": {
			"id": "${int(params.id)}",
			"greeting": "olá ${body.name}, via ${method}",
			"tags": ["fixo", "${query.tag}"]
		},
		"cases": [
			{"when": "params.id == '0'", "status": 404, "body": {"error": "id ${params.id} inválido"}}
		]
	}`)})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/users/42?tag=vip", nil)
	rr := serve(t, entry, r, map[string]string{"id": "42"}, map[string]interface{}{"name": "Ana"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "42", rr.Header().Get("X-User"))
	assert.Equal(t, "sim", rr.Header().Get("X-Fixed"))
	assert.Equal(t, map[string]interface{}{
		"id":       float64(42),
		"greeting": "olá Ana, via POST",
		"tags":     []interface{}{"fixo", "vip"},
	}, decode(t, rr))

	r = httptest.NewRequest(http.MethodPost, "/users/0?tag=vip", nil)
	rr = serve(t, entry, r, map[string]string{"id": "0"}, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, map[string]interface{}{"error": "id 0 inválido"}, decode(t, rr))
}

func TestExpression_DerivedVars(t *testing.T) {
	reg := newTestRegistry(t, nil)
	entry, err := reg.Build(Spec{Kind: KindExpression, Options: fromJSON(t, `{
		"vars": [
			{"name": "tier", "condition": "int(params.id) > 100", "value": "'gold'", "else_value": "'basic'"},
			{"name": "label", "value": "vars.tier + '-' + params.id"}
		],
		"body": {"tier": "${vars.tier}", "label": "${vars.label}"}
	}`)})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/users/500", nil)
	rr := serve(t, entry, r, map[string]string{"id": "500"}, nil)
	assert.Equal(t, map[string]interface{}{"tier": "gold", "label": "gold-500"}, decode(t, rr))

	r = httptest.NewRequest(http.MethodGet, "/users/7", nil)
	rr = serve(t, entry, r, map[string]string{"id": "7"}, nil)
	assert.Equal(t, map[string]interface{}{"tier": "basic", "label": "basic-7"}, decode(t, rr))

	_, err = reg.Build(Spec{Kind: KindExpression, Options: fromJSON(t, `{"vars": [{"value": "1"}]}`)})
	assert.ErrorContains(t, err, "nome obrigatório")
}

func TestExpression_InvalidExpressionFailsOnBuild(t *testing.T) {
	reg := newTestRegistry(t, nil)
	_, err := reg.Build(Spec{Kind: KindExpression, Options: map[string]interface{}{"body": "${params.}"}})
	assert.Error(t, err)

	_, err = reg.Build(Spec{Kind: KindExpression, Options: map[string]interface{}{"delay": "depois"}})
	assert.ErrorContains(t, err, "delay inválido")
}

func TestExpression_DelayRespectsContext(t *testing.T) {
	reg := newTestRegistry(t, nil)
	entry, err := reg.Build(Spec{Kind: KindExpression, Options: map[string]interface{}{"delay": "1h", "body": "tarde"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		serve(t, entry, r, nil, nil)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("delay ignorou o cancelamento da requisição")
	}
}

func TestProxy(t *testing.T) {
	client := new(MockSchemaClient)
	reg := newTestRegistry(t, client)

	entry, err := reg.Build(Spec{Kind: KindProxy, Options: map[string]interface{}{"path_rewrite": "^/api/"}})
	require.NoError(t, err)

	want := schemamock.ProxyTarget{Host: "http://yapi.local", ProjectID: 7, PathRewrite: "^/api/"}
	client.On("Forward", mock.Anything, mock.MatchedBy(func(req schemamock.ForwardRequest) bool {
		return req.Method == http.MethodPost && req.Path == "/api/orders" && req.Query.Get("x") == "1"
	}), want).Return(&schemamock.ProxyResponse{StatusCode: 201, Body: map[string]interface{}{"ok": true}}, nil).Once()

	rr := serve(t, entry, httptest.NewRequest(http.MethodPost, "/api/orders?x=1", nil), nil, map[string]interface{}{"a": 1})
	assert.Equal(t, http.StatusCreated, rr.Code, "o status do remoto é preservado")
	assert.Equal(t, map[string]interface{}{"ok": true}, decode(t, rr))

	client.On("Forward", mock.Anything, mock.Anything, want).
		Return(nil, errors.Join(schemamock.ErrTransport, errors.New("conexão recusada"))).Once()
	rr = serve(t, entry, httptest.NewRequest(http.MethodGet, "/api/x", nil), nil, nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	client.AssertExpectations(t)

	_, err = reg.Build(Spec{Kind: KindProxy, Options: map[string]interface{}{"path_rewrite": "("}})
	assert.ErrorContains(t, err, "path_rewrite inválido")
}

func TestSchema(t *testing.T) {
	client := new(MockSchemaClient)
	reg := newTestRegistry(t, client)

	entry, err := reg.Build(Spec{Kind: KindSchema, Options: fromJSON(t, `{
		"id": "123",
		"override": {"data": {"id": "${params.id}"}}
	}`)})
	require.NoError(t, err)

	d := schemamock.Descriptor{Host: "http://yapi.local", ID: "123"}
	override := map[string]interface{}{"data": map[string]interface{}{"id": "9"}}
	client.On("FetchSchemaMock", mock.Anything, d, override).
		Return(map[string]interface{}{"code": float64(0), "data": map[string]interface{}{"id": "9"}}, nil).Once()

	rr := serve(t, entry, httptest.NewRequest(http.MethodGet, "/items/9", nil), map[string]string{"id": "9"}, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]interface{}{"code": float64(0), "data": map[string]interface{}{"id": "9"}}, decode(t, rr))

	client.On("FetchSchemaMock", mock.Anything, d, mock.Anything).Return(nil, schemamock.ErrSchemaUnavailable).Once()
	rr = serve(t, entry, httptest.NewRequest(http.MethodGet, "/items/1", nil), map[string]string{"id": "1"}, nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	client.AssertExpectations(t)
}

func TestSource(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/42") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id": 42, "status": "active"}`))
	}))
	defer upstream.Close()

	reg := newTestRegistry(t, nil)
	entry, err := reg.Build(Spec{Kind: KindSource, Options: map[string]interface{}{
		"source": map[string]interface{}{"type": "rest", "url": upstream.URL + "/accounts/${params.id}"},
		"select": "$.status",
	}})
	require.NoError(t, err)

	rr := serve(t, entry, httptest.NewRequest(http.MethodGet, "/a/42", nil), map[string]string{"id": "42"}, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "active", decode(t, rr))

	rr = serve(t, entry, httptest.NewRequest(http.MethodGet, "/a/1", nil), map[string]string{"id": "1"}, nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestSource_StaticSpecValidatedOnBuild(t *testing.T) {
	reg := newTestRegistry(t, nil)
	_, err := reg.Build(Spec{Kind: KindSource, Options: map[string]interface{}{
		"source": map[string]interface{}{"type": "sql"},
	}})
	assert.ErrorContains(t, err, "source inválido")

	entry, err := reg.Build(Spec{Kind: KindSource, Options: map[string]interface{}{
		"source": map[string]interface{}{"type": "fixed", "value": map[string]interface{}{"ok": true}},
		"status": 202,
	}})
	require.NoError(t, err)
	rr := serve(t, entry, httptest.NewRequest(http.MethodGet, "/", nil), nil, nil)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, map[string]interface{}{"ok": true}, decode(t, rr))
}
