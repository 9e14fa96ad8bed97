package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
)

// RuntimeEnv reúne as variáveis de ambiente que sobrepõem o arquivo de configuração.
type RuntimeEnv struct {
	ConfigSource string `env:"MOCKSERVER_CONFIG" envDefault:"hotmock.yaml"`
	Port         int    `env:"MOCKSERVER_PORT"`
	LogLevel     string `env:"MOCKSERVER_LOG_LEVEL"`
	Watch        string `env:"MOCKSERVER_WATCH"` // Lista separada por vírgula
	Datadog      struct {
		Enabled bool   `env:"DD_ENABLED"`
		Addr    string `env:"DD_AGENT_HOST"`
	}
}

// ReadRuntimeEnv lê o ambiente atual.
func ReadRuntimeEnv() (RuntimeEnv, error) {
	var env RuntimeEnv
	err := LoadEnv(&env)
	return env, err
}

// Apply sobrepõe no cfg os valores definidos no ambiente.
func (e RuntimeEnv) Apply(cfg *ServerConfig) {
	if e.Port > 0 {
		cfg.Server.Port = e.Port
	}
	if e.LogLevel != "" {
		cfg.Server.Logging.Enabled = true
		cfg.Server.Logging.Level = e.LogLevel
	}
	if e.Watch != "" {
		var paths []string
		for _, p := range strings.Split(e.Watch, ",") {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		cfg.Watch.Paths = paths
	}
	if e.Datadog.Enabled {
		cfg.Server.Metrics.Datadog.Enabled = true
	}
	if e.Datadog.Addr != "" {
		cfg.Server.Metrics.Datadog.Addr = e.Datadog.Addr
	}
}

// LoadEnv preenche uma struct com valores de variáveis de ambiente
// baseado nas tags "env" e "envDefault".
func LoadEnv(target interface{}) error {
	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return &InvalidConfigError{Value: val.Type()}
	}
	return loadEnvStruct(val.Elem())
}

func loadEnvStruct(val reflect.Value) error {
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := loadEnvStruct(field); err != nil {
				return err
			}
			continue
		}

		if field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct {
			if field.IsNil() {
				field.Set(reflect.New(field.Type().Elem()))
			}
			if err := loadEnvStruct(field.Elem()); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := os.Getenv(envTag)
		if envValue == "" {
			envValue = fieldType.Tag.Get("envDefault")
		}
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return &FieldError{
				FieldName: fieldType.Name,
				EnvVar:    envTag,
				Value:     envValue,
				Err:       err,
			}
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		uintValue, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(uintValue)

	case reflect.Bool:
		boolValue, err := strconv.ParseBool(strings.ToLower(value))
		if err != nil {
			return err
		}
		field.SetBool(boolValue)

	case reflect.Float32, reflect.Float64:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)

	default:
		return &UnsupportedTypeError{Type: field.Type()}
	}

	return nil
}

// InvalidConfigError é retornado quando LoadEnv não recebe um ponteiro para struct.
type InvalidConfigError struct {
	Value reflect.Type
}

func (e *InvalidConfigError) Error() string {
	if e.Value == nil {
		return "config: target must be a pointer to struct, got nil"
	}
	if e.Value.Kind() != reflect.Ptr {
		return fmt.Sprintf("config: target must be a pointer to struct, got %s", e.Value.Kind())
	}
	return fmt.Sprintf("config: target must be a pointer to struct, got pointer to %s", e.Value.Elem().Kind())
}

// FieldError encapsula a falha de conversão de uma variável para o campo.
type FieldError struct {
	FieldName string
	EnvVar    string
	Value     string
	Err       error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: error setting field %s from env %s=%s: %v",
		e.FieldName, e.EnvVar, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// UnsupportedTypeError indica um campo com tag env de tipo não suportado.
type UnsupportedTypeError struct {
	Type reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("config: unsupported type %s", e.Type)
}
