// Package schemamock gera dados de exemplo a partir do JSON Schema de
// resposta cadastrado num serviço de documentação de APIs (YApi) e
// encaminha requisições para o mock avançado do projeto remoto.
package schemamock

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/raywall/hotmock/pkg/proxy"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DefaultTimeout limita cada chamada ao serviço remoto.
const DefaultTimeout = 10 * time.Second

// Descriptor identifica a interface cujo schema será buscado.
type Descriptor struct {
	Host  string `json:"host"`
	ID    string `json:"id" validate:"required"`
	Token string `json:"token"`
}

// ForwardRequest é a requisição de entrada a ser encaminhada.
type ForwardRequest struct {
	Method string
	Path   string
	Header http.Header
	Query  url.Values
	Body   interface{}
}

// ProxyTarget é o projeto remoto que responde o mock avançado.
type ProxyTarget struct {
	Host        string `json:"host"`
	ProjectID   int    `json:"project_id"`
	PathRewrite string `json:"path_rewrite"` // Ex: '^/api/'
}

// ProxyResponse é a resposta do mock avançado, já interpretada.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       interface{}
}

type envelope struct {
	Data *struct {
		ResBodyIsJSONSchema bool   `json:"res_body_is_json_schema"`
		ResBody             string `json:"res_body"`
	} `json:"data"`
}

// Client conversa com o serviço de documentação.
type Client struct {
	http      proxy.Doer
	forwarder *proxy.Forwarder
	cache     Cache
	timeout   time.Duration
	log       zerolog.Logger
}

// Option configura o Client.
type Option func(*Client)

func WithHTTPClient(c proxy.Doer) Option {
	return func(cl *Client) { cl.http = c }
}

func WithCache(c Cache) Option {
	return func(cl *Client) {
		if c != nil {
			cl.cache = c
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.timeout = d }
}

func WithLogger(log zerolog.Logger) Option {
	return func(cl *Client) { cl.log = log.With().Str("component", "schemamock").Logger() }
}

// NewClient cria o Client. Sem cache configurado, toda chamada vai ao serviço.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{},
		cache:   noopCache{},
		timeout: DefaultTimeout,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.forwarder = proxy.NewForwarder(c.http)
	return c
}

// FetchSchemaMock busca o schema da interface, sintetiza um exemplo e, se
// override não for nil, mescla override sobre ele.
func (c *Client) FetchSchemaMock(ctx context.Context, d Descriptor, override interface{}) (interface{}, error) {
	raw, err := c.schema(ctx, d)
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: schema da interface %s: %v", ErrParse, d.ID, err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("%w: schema da interface %s: %v", ErrParse, d.ID, err)
	}

	data := normalize(Synthesize(schema))
	if override != nil {
		data = Merge(data, override)
	}
	return data, nil
}

// cacheKey separa as entradas por token; o token entra só como hash para não
// aparecer em chaves do Redis.
func (d Descriptor) cacheKey() string {
	sum := sha256.Sum256([]byte(d.Token))
	return d.Host + "|" + d.ID + "|" + hex.EncodeToString(sum[:8])
}

// schema devolve o res_body da interface, do cache quando possível.
func (c *Client) schema(ctx context.Context, d Descriptor) ([]byte, error) {
	cacheKey := d.cacheKey()
	if raw, ok := c.cache.Get(ctx, cacheKey); ok {
		c.log.Debug().Str("interface", d.ID).Msg("schema servido do cache")
		return raw, nil
	}

	endpoint := fmt.Sprintf("%s/api/interface/get?%s", strings.TrimRight(d.Host, "/"),
		url.Values{"id": {d.ID}, "token": {d.Token}}.Encode())

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: status %d do serviço de documentação", ErrTransport, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", ErrParse, err)
	}
	if env.Data == nil || !env.Data.ResBodyIsJSONSchema {
		return nil, fmt.Errorf("%w: interface %s", ErrSchemaUnavailable, d.ID)
	}

	raw := []byte(env.Data.ResBody)
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: res_body da interface %s não é JSON", ErrParse, d.ID)
	}
	c.cache.Set(ctx, cacheKey, raw)
	return raw, nil
}

// ProxyForward encaminha a requisição para {host}/mock/{projectId}/... e
// devolve o JSON da resposta.
func (c *Client) ProxyForward(ctx context.Context, req ForwardRequest, target ProxyTarget) (interface{}, error) {
	resp, err := c.Forward(ctx, req, target)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Forward é o ProxyForward preservando status e headers da resposta.
func (c *Client) Forward(ctx context.Context, req ForwardRequest, target ProxyTarget) (*ProxyResponse, error) {
	path, err := RewritePath(req.Path, target)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(target.Host, "/") + path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var payload []byte
	if req.Body != nil {
		if payload, err = json.Marshal(req.Body); err != nil {
			return nil, fmt.Errorf("%w: corpo da requisição: %v", ErrParse, err)
		}
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.forwarder.Forward(ctx, req.Method, endpoint, payload, req.Header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	var body interface{}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: resposta do mock remoto (status %d): %v", ErrParse, resp.StatusCode, err)
	}
	return &ProxyResponse{StatusCode: resp.StatusCode, Header: resp.Headers, Body: body}, nil
}

// RewritePath troca o trecho casado por PathRewrite por /mock/{projectId}/.
func RewritePath(path string, target ProxyTarget) (string, error) {
	if target.PathRewrite == "" {
		return fmt.Sprintf("/mock/%d", target.ProjectID) + path, nil
	}
	re, err := regexp.Compile(target.PathRewrite)
	if err != nil {
		return "", fmt.Errorf("path_rewrite inválido '%s': %w", target.PathRewrite, err)
	}
	// Só a primeira ocorrência é trocada
	loc := re.FindStringIndex(path)
	if loc == nil {
		return path, nil
	}
	return path[:loc[0]] + fmt.Sprintf("/mock/%d/", target.ProjectID) + path[loc[1]:], nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// normalize converte o exemplo sintetizado (que pode conter json.Number
// vindo do schema) em tipos JSON padrão, para que o merge compare tipos iguais.
func normalize(v interface{}) interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
