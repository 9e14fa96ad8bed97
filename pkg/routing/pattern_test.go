package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Key
		wantErr bool
	}{
		{name: "Simples", raw: "GET /users", want: Key{Method: "GET", Path: "/users"}},
		{name: "Metodo minusculo", raw: "post   /users/:id", want: Key{Method: "POST", Path: "/users/:id"}},
		{name: "ALL vira curinga", raw: "ALL /health", want: Key{Method: AnyMethod, Path: "/health"}},
		{name: "Sem metodo", raw: "/users", wantErr: true},
		{name: "Caminho relativo", raw: "GET users", wantErr: true},
		{name: "Vazia", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKey(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKey_IsPattern(t *testing.T) {
	assert.False(t, Key{Method: "GET", Path: "/users"}.IsPattern())
	assert.True(t, Key{Method: "GET", Path: "/users/:id"}.IsPattern())
	assert.True(t, Key{Method: "GET", Path: "/files/*"}.IsPattern())
	assert.True(t, Key{Method: AnyMethod, Path: "/users"}.IsPattern())
}

func TestCompile_Match(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		method     string
		path       string
		wantMatch  bool
		wantParams Params
	}{
		{
			name: "Parametro nomeado", key: "GET /users/:id",
			method: "GET", path: "/users/42",
			wantMatch: true, wantParams: Params{"id": "42"},
		},
		{
			name: "Parametro nao atravessa segmentos", key: "GET /users/:id",
			method: "GET", path: "/users/42/posts",
		},
		{
			name: "Metodo diferente", key: "GET /users/:id",
			method: "POST", path: "/users/42",
		},
		{
			name: "Dois parametros", key: "GET /monako_api/:id/:page",
			method: "GET", path: "/monako_api/7/2",
			wantMatch: true, wantParams: Params{"id": "7", "page": "2"},
		},
		{
			name: "Parametro seguido de literal", key: "GET /users/:id/posts",
			method: "GET", path: "/users/abc/posts",
			wantMatch: true, wantParams: Params{"id": "abc"},
		},
		{
			name: "Cauda nomeada atravessa segmentos", key: "GET /static/:file*",
			method: "GET", path: "/static/css/app/main.css",
			wantMatch: true, wantParams: Params{"file": "css/app/main.css"},
		},
		{
			name: "Curinga anonimo para antes do literal", key: "GET /repos/*/raw",
			method: "GET", path: "/repos/a/b/raw",
			wantMatch: true, wantParams: Params{"0": "a/b"},
		},
		{
			name: "Curinga exige o literal seguinte", key: "GET /repos/*/raw",
			method: "GET", path: "/repos/a/b/blob",
		},
		{
			name: "Parametro com extensao", key: "GET /files/:name.json",
			method: "GET", path: "/files/report.json",
			wantMatch: true, wantParams: Params{"name": "report"},
		},
		{
			name: "Literal com caractere especial", key: "GET /v1.0/:id",
			method: "GET", path: "/v1x0/1",
		},
		{
			name: "Qualquer metodo", key: "ALL /ping/:n",
			method: "delete", path: "/ping/3",
			wantMatch: true, wantParams: Params{"n": "3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseKey(tt.key)
			require.NoError(t, err)
			p, err := Compile(key)
			require.NoError(t, err)

			params, ok := p.Match(tt.method, tt.path)
			assert.Equal(t, tt.wantMatch, ok)
			if tt.wantMatch {
				assert.Equal(t, tt.wantParams, params)
			}
		})
	}
}

func TestCompile_DuplicateParam(t *testing.T) {
	_, err := Compile(Key{Method: "GET", Path: "/a/:id/b/:id"})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestPattern_LiteralPrefix(t *testing.T) {
	p, err := Compile(Key{Method: "GET", Path: "/users/:id"})
	require.NoError(t, err)
	assert.Equal(t, len("/users/"), p.LiteralPrefix())

	p, err = Compile(Key{Method: "GET", Path: "/*"})
	require.NoError(t, err)
	assert.Equal(t, 1, p.LiteralPrefix())
}
