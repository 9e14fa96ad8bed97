package injector

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/raywall/hotmock/pkg/sources"
)

// Regex para capturar padrões ${tipo.chave}
// Ex: ${env.YAPI_TOKEN}, ${ssm./mock/token}, ${secret.yapi}
var pattern = regexp.MustCompile(`\$\{(env|ssm|secret)\.([^}]+)\}`)

// Fetcher resolve uma chave de uma origem (env, ssm, secret).
type Fetcher func(ctx context.Context, key string) (interface{}, error)

type Injector struct {
	fetchers map[string]Fetcher
}

// New cria um Injector com as origens padrão: variáveis de ambiente,
// AWS Parameter Store e AWS Secrets Manager.
func New() *Injector {
	region := os.Getenv("AWS_REGION")
	return &Injector{
		fetchers: map[string]Fetcher{
			"env": func(_ context.Context, key string) (interface{}, error) {
				return os.Getenv(key), nil // Variável ausente vira vazio
			},
			"ssm": func(ctx context.Context, key string) (interface{}, error) {
				return sources.ProcessAWSParameterStore(ctx, region, key, true)
			},
			"secret": func(ctx context.Context, key string) (interface{}, error) {
				return sources.ProcessAWSSecretsManager(ctx, region, key)
			},
		},
	}
}

// WithFetcher substitui a origem informada (usado em testes).
func (i *Injector) WithFetcher(source string, f Fetcher) *Injector {
	i.fetchers[source] = f
	return i
}

// Inject percorre structs, ponteiros, slices e mapas resolvendo as
// interpolações "${...}" em strings e as tags env:"...".
func (i *Injector) Inject(ctx context.Context, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("target deve ser um ponteiro não nulo")
	}
	return i.injectRecursive(ctx, v.Elem())
}

// InjectValue resolve interpolações em um valor dinâmico (map/slice/string)
// e devolve a cópia resolvida.
func (i *Injector) InjectValue(ctx context.Context, value interface{}) (interface{}, error) {
	switch x := value.(type) {
	case string:
		return i.interpolateString(ctx, x)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, v := range x {
			resolved, err := i.InjectValue(ctx, v)
			if err != nil {
				return nil, fmt.Errorf("campo '%s': %w", k, err)
			}
			out[k] = resolved
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(x))
		for idx, v := range x {
			resolved, err := i.InjectValue(ctx, v)
			if err != nil {
				return nil, err
			}
			out[idx] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

func (i *Injector) injectRecursive(ctx context.Context, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for k := 0; k < t.NumField(); k++ {
			field := t.Field(k)
			value := v.Field(k)

			// 1. Processa Tags (env:"...")
			if err := processStructTags(field, value); err != nil {
				return err
			}

			// 2. Processa Strings com Interpolação "${...}"
			if value.Kind() == reflect.String && value.CanSet() {
				newValue, err := i.interpolateString(ctx, value.String())
				if err != nil {
					return err
				}
				value.SetString(newValue)
				continue
			}

			// 3. Recursão
			if value.CanSet() {
				if err := i.injectRecursive(ctx, value); err != nil {
					return err
				}
			}
		}

	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && !v.IsNil() {
			return i.injectMap(ctx, v)
		}

	case reflect.Ptr, reflect.Interface:
		if !v.IsNil() {
			return i.injectRecursive(ctx, v.Elem())
		}

	case reflect.Slice:
		for j := 0; j < v.Len(); j++ {
			elem := v.Index(j)
			if elem.Kind() == reflect.String && elem.CanSet() {
				newValue, err := i.interpolateString(ctx, elem.String())
				if err != nil {
					return err
				}
				elem.SetString(newValue)
				continue
			}
			if err := i.injectRecursive(ctx, elem); err != nil {
				return err
			}
		}
	}
	return nil
}

// injectMap lida com mapas dinâmicos (map[string]interface{} e map[string]string)
func (i *Injector) injectMap(ctx context.Context, v reflect.Value) error {
	iter := v.MapRange()
	updates := make(map[string]reflect.Value)

	for iter.Next() {
		key := iter.Key().String()
		val := iter.Value()
		if val.Kind() == reflect.Interface && !val.IsNil() {
			val = val.Elem()
		}
		if !val.IsValid() {
			continue
		}

		switch val.Kind() {
		case reflect.String:
			newVal, err := i.interpolateString(ctx, val.String())
			if err != nil {
				return fmt.Errorf("chave '%s': %w", key, err)
			}
			if nv := reflect.ValueOf(newVal); nv.Type().AssignableTo(v.Type().Elem()) {
				updates[key] = nv
			}
		default:
			resolved, err := i.InjectValue(ctx, val.Interface())
			if err != nil {
				return fmt.Errorf("chave '%s': %w", key, err)
			}
			if resolved != nil && reflect.TypeOf(resolved).AssignableTo(v.Type().Elem()) {
				updates[key] = reflect.ValueOf(resolved)
			}
		}
	}

	for k, val := range updates {
		v.SetMapIndex(reflect.ValueOf(k), val)
	}
	return nil
}

// interpolateString realiza a substituição baseada em Regex
func (i *Injector) interpolateString(ctx context.Context, input string) (string, error) {
	if !strings.Contains(input, "${") {
		return input, nil
	}

	var err error
	result := pattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := pattern.FindStringSubmatch(match)
		fetch, ok := i.fetchers[groups[1]]
		if !ok {
			return match
		}

		val, resolveErr := fetch(ctx, groups[2])
		if resolveErr != nil {
			err = resolveErr
			return match
		}
		return fmt.Sprintf("%v", val)
	})

	return result, err
}

// processStructTags mantém a lógica legado de tags
func processStructTags(field reflect.StructField, value reflect.Value) error {
	if !value.CanSet() || value.Kind() != reflect.String {
		return nil
	}
	if tag := field.Tag.Get("env"); tag != "" {
		if val, exists := os.LookupEnv(tag); exists {
			value.SetString(val)
		}
	}
	return nil
}
