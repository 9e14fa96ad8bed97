// Package handlers constrói os handlers dinâmicos declarados nos arquivos de
// definição de mocks.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/raywall/hotmock/pkg/routing"
	"github.com/raywall/hotmock/pkg/rules"
	"github.com/raywall/hotmock/pkg/schemamock"
	"github.com/raywall/hotmock/pkg/sources"
	"github.com/rs/zerolog"
)

// Kinds embutidos.
const (
	KindFunc       = routing.KindFunc
	KindEmulator   = "emulator"
	KindExpression = "expression"
	KindProxy      = "proxy"
	KindSchema     = "schema"
	KindSource     = "source"
)

// ErrUnknownKind indica um kind sem factory registrada.
var ErrUnknownKind = errors.New("tipo de handler desconhecido")

// Spec é a declaração de um handler no arquivo de definição.
type Spec struct {
	Kind    string                 `json:"kind" yaml:"kind" toml:"kind" validate:"required"`
	Options map[string]interface{} `json:"options" yaml:"options" toml:"options"`
}

// Factory cria um handler a partir das opções já decodificadas do arquivo.
type Factory func(options map[string]interface{}) (routing.Handler, error)

// SchemaClient é o cliente do serviço de documentação usado pelos kinds
// schema e proxy.
type SchemaClient interface {
	FetchSchemaMock(ctx context.Context, d schemamock.Descriptor, override interface{}) (interface{}, error)
	Forward(ctx context.Context, req schemamock.ForwardRequest, target schemamock.ProxyTarget) (*schemamock.ProxyResponse, error)
}

// Deps são as dependências compartilhadas pelos handlers.
type Deps struct {
	Rules   *rules.RuleManager
	Sources *sources.Resolver
	Schema  SchemaClient
	// Valores padrão de host/token/projeto vindos da configuração do servidor.
	SchemaHost  string
	SchemaToken string
	Proxy       schemamock.ProxyTarget
	Log         zerolog.Logger
}

// Registry mapeia kinds para factories e nomes para funções Go registradas.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	funcs     map[string]routing.Handler
	deps      Deps
	validate  *validator.Validate
}

// NewRegistry cria o registro com os kinds embutidos.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		funcs:     make(map[string]routing.Handler),
		deps:      deps,
		validate:  validator.New(),
	}
	r.deps.Log = deps.Log.With().Str("component", "handlers").Logger()

	r.Register(KindFunc, r.buildFunc)
	r.Register(KindEmulator, r.buildEmulator)
	r.Register(KindExpression, r.buildExpression)
	r.Register(KindProxy, r.buildProxy)
	r.Register(KindSchema, r.buildSchema)
	r.Register(KindSource, r.buildSource)
	return r
}

// Register adiciona ou substitui a factory de um kind.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// RegisterFunc publica um handler Go com um nome referenciável pelo kind func.
func (r *Registry) RegisterFunc(name string, h routing.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = h
}

// Kinds lista os kinds registrados.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Build cria a Entry dinâmica descrita pela Spec.
func (r *Registry) Build(spec Spec) (routing.Entry, error) {
	if err := r.validate.Struct(spec); err != nil {
		return routing.Entry{}, fmt.Errorf("handler inválido: %w", err)
	}

	r.mu.RLock()
	factory, ok := r.factories[spec.Kind]
	r.mu.RUnlock()
	if !ok {
		return routing.Entry{}, fmt.Errorf("%w: '%s'", ErrUnknownKind, spec.Kind)
	}

	h, err := factory(spec.Options)
	if err != nil {
		return routing.Entry{}, fmt.Errorf("handler '%s': %w", spec.Kind, err)
	}
	return routing.Dynamic(h, spec.Kind), nil
}

// decodeOptions converte as opções genéricas na struct tipada e valida.
func (r *Registry) decodeOptions(input map[string]interface{}, output interface{}) error {
	data, err := json.Marshal(sanitizeMap(input))
	if err != nil {
		return fmt.Errorf("opções inválidas: %w", err)
	}
	if err := json.Unmarshal(data, output); err != nil {
		return fmt.Errorf("opções inválidas: %w", err)
	}
	if err := r.validate.Struct(output); err != nil {
		return fmt.Errorf("opções inválidas: %w", err)
	}
	return nil
}

// sanitizeMap converte map[interface{}]interface{} (YAML) em map[string]interface{}.
func sanitizeMap(input interface{}) interface{} {
	switch x := input.(type) {
	case map[interface{}]interface{}:
		m := map[string]interface{}{}
		for k, v := range x {
			m[fmt.Sprintf("%v", k)] = sanitizeMap(v)
		}
		return m
	case map[string]interface{}:
		m := map[string]interface{}{}
		for k, v := range x {
			m[k] = sanitizeMap(v)
		}
		return m
	case []interface{}:
		l := make([]interface{}, len(x))
		for i, v := range x {
			l[i] = sanitizeMap(v)
		}
		return l
	default:
		return input
	}
}

type funcOptions struct {
	Name string `json:"name" validate:"required"`
}

func (r *Registry) buildFunc(options map[string]interface{}) (routing.Handler, error) {
	var opts funcOptions
	if err := r.decodeOptions(options, &opts); err != nil {
		return nil, err
	}

	r.mu.RLock()
	h, ok := r.funcs[opts.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("função '%s' não registrada", opts.Name)
	}
	return h, nil
}
