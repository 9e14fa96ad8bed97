// Package loader lê arquivos de definição de mocks (JSON, YAML ou TOML) e os
// converte no mapeamento de rotas de um arquivo.
package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/raywall/hotmock/pkg/config/injector"
	"github.com/raywall/hotmock/pkg/handlers"
	"github.com/raywall/hotmock/pkg/routing"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat indica uma extensão de arquivo sem decodificador.
var ErrUnsupportedFormat = errors.New("formato de definição não suportado")

// Definition é o conteúdo de um arquivo de definição.
type Definition struct {
	Routes []RouteDef `json:"routes" yaml:"routes" toml:"routes" validate:"dive"`
}

// RouteDef declara uma rota: valor estático ou handler, nunca os dois.
type RouteDef struct {
	Route   string         `json:"route" yaml:"route" toml:"route" validate:"required"`
	Static  interface{}    `json:"static,omitempty" yaml:"static,omitempty" toml:"static,omitempty"`
	Handler *handlers.Spec `json:"handler,omitempty" yaml:"handler,omitempty" toml:"handler,omitempty"`
}

// Builder cria a Entry de um handler declarado.
type Builder interface {
	Build(spec handlers.Spec) (routing.Entry, error)
}

// Injector resolve ${env.X}, ${ssm./p} e ${secret.id} nas opções.
type Injector interface {
	InjectValue(ctx context.Context, value interface{}) (interface{}, error)
}

// FileLoader implementa reload.ModuleLoader sobre o sistema de arquivos.
type FileLoader struct {
	builder  Builder
	injector Injector
	validate *validator.Validate
}

// Option configura o FileLoader.
type Option func(*FileLoader)

// WithInjector troca o injetor de variáveis (nil desativa).
func WithInjector(i Injector) Option {
	return func(l *FileLoader) { l.injector = i }
}

// New cria o loader. Sem builder, rotas com handler são rejeitadas.
func New(builder Builder, opts ...Option) *FileLoader {
	l := &FileLoader{
		builder:  builder,
		injector: injector.New(),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Supported indica se a extensão do arquivo tem decodificador.
func Supported(path string) bool {
	_, err := formatOf(path)
	return err == nil
}

// Load lê e decodifica o arquivo e constrói o mapeamento na ordem declarada.
func (l *FileLoader) Load(ctx context.Context, path string) (routing.Mapping, error) {
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("falha ao ler '%s': %w", path, err)
	}

	def, err := Decode(format, data)
	if err != nil {
		return nil, fmt.Errorf("'%s': %w", path, err)
	}
	return l.Build(ctx, def)
}

// Build converte uma Definition já decodificada em Mapping.
func (l *FileLoader) Build(ctx context.Context, def *Definition) (routing.Mapping, error) {
	if err := l.validate.Struct(def); err != nil {
		return nil, fmt.Errorf("definição inválida: %w", err)
	}

	mapping := make(routing.Mapping, 0, len(def.Routes))
	for i, rd := range def.Routes {
		if _, err := routing.ParseKey(rd.Route); err != nil {
			return nil, fmt.Errorf("routes[%d]: %w", i, err)
		}
		entry, err := l.entry(ctx, rd)
		if err != nil {
			return nil, fmt.Errorf("routes[%d] '%s': %w", i, rd.Route, err)
		}
		mapping = append(mapping, routing.Route{Key: rd.Route, Entry: entry})
	}
	return mapping, nil
}

func (l *FileLoader) entry(ctx context.Context, rd RouteDef) (routing.Entry, error) {
	if rd.Handler == nil {
		return routing.Static(normalize(rd.Static)), nil
	}
	if rd.Static != nil {
		return routing.Entry{}, errors.New("static e handler são mutuamente exclusivos")
	}
	if l.builder == nil {
		return routing.Entry{}, errors.New("nenhum registro de handlers configurado")
	}

	spec := *rd.Handler
	if l.injector != nil && spec.Options != nil {
		resolved, err := l.injector.InjectValue(ctx, normalize(spec.Options))
		if err != nil {
			return routing.Entry{}, fmt.Errorf("falha na injeção de variáveis: %w", err)
		}
		spec.Options, _ = resolved.(map[string]interface{})
	}
	return l.builder.Build(spec)
}

// Decode interpreta o conteúdo segundo o formato ("json", "yaml" ou "toml").
func Decode(format string, data []byte) (*Definition, error) {
	var def Definition
	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("JSON malformado: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("YAML malformado: %w", err)
		}
	case "toml":
		if err := toml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("TOML malformado: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnsupportedFormat, format)
	}
	return &def, nil
}

func formatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json", nil
	case ".yaml", ".yml":
		return "yaml", nil
	case ".toml":
		return "toml", nil
	default:
		return "", fmt.Errorf("%w: '%s'", ErrUnsupportedFormat, path)
	}
}

// normalize leva valores de YAML/TOML (map[interface{}]interface{}, inteiros,
// datas) ao formato JSON genérico servido nas respostas.
func normalize(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(sanitize(v))
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func sanitize(input interface{}) interface{} {
	switch x := input.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(x))
		for k, v := range x {
			m[fmt.Sprintf("%v", k)] = sanitize(v)
		}
		return m
	case map[string]interface{}:
		m := make(map[string]interface{}, len(x))
		for k, v := range x {
			m[k] = sanitize(v)
		}
		return m
	case []interface{}:
		l := make([]interface{}, len(x))
		for i, v := range x {
			l[i] = sanitize(v)
		}
		return l
	default:
		return input
	}
}
