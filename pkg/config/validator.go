package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
)

type ConfigValidator struct {
	validate *validator.Validate
}

// NewValidator cria uma nova instância do validador
func NewValidator() *ConfigValidator {
	return &ConfigValidator{
		validate: validator.New(),
	}
}

// Validate realiza validações estruturais (tags) e semânticas (lógica)
func (cv *ConfigValidator) Validate(cfg *ServerConfig) error {
	// 1. Validação Estrutural (Tags do struct: required, oneof, etc)
	if err := cv.validate.Struct(cfg); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var errMsgs []string
			for _, e := range validationErrors {
				errMsgs = append(errMsgs, fmt.Sprintf("Campo '%s' falhou na regra '%s'", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("erros de validação estrutural:\n- %s", strings.Join(errMsgs, "\n- "))
		}
		return fmt.Errorf("erro de validação estrutural: %w", err)
	}

	// 2. Validação Semântica
	if err := cv.validateSemantics(cfg); err != nil {
		return fmt.Errorf("erro de validação semântica: %w", err)
	}

	return nil
}

func (cv *ConfigValidator) validateSemantics(cfg *ServerConfig) error {
	// 1. Durações
	durations := map[string]string{
		"server.handler_timeout": cfg.Server.HandlerTimeout,
		"schema_mock.timeout":    cfg.SchemaMock.Timeout,
		"schema_mock.cache.ttl":  cfg.SchemaMock.Cache.TTL,
	}
	for field, raw := range durations {
		if raw == "" {
			continue
		}
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			return fmt.Errorf("duração inválida em '%s': '%s'", field, raw)
		}
	}

	// 2. Globs de inclusão/exclusão
	for _, pattern := range append(append([]string{}, cfg.Watch.Include...), cfg.Watch.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("glob inválido em 'watch': '%s'", pattern)
		}
	}

	// 3. Proxy exige host e regex válida
	proxy := cfg.SchemaMock.Proxy
	if proxy.PathRewrite != "" {
		if _, err := regexp.Compile(proxy.PathRewrite); err != nil {
			return fmt.Errorf("path_rewrite inválido: %w", err)
		}
		if cfg.SchemaMock.Host == "" {
			return fmt.Errorf("schema_mock.proxy exige 'schema_mock.host'")
		}
	}

	return nil
}
