package config

import "time"

// ServerConfig representa a estrutura raiz do arquivo YAML do servidor de mocks.
type ServerConfig struct {
	Version    string         `yaml:"version" validate:"required"`
	Server     ServerDetails  `yaml:"server" validate:"required"`
	Watch      WatchConf      `yaml:"watch"`
	SchemaMock SchemaMockConf `yaml:"schema_mock"`
}

// ServerDetails contém as configurações de runtime do servidor HTTP.
type ServerDetails struct {
	Name           string      `yaml:"name" validate:"required,hostname_rfc1123"`
	Port           int         `yaml:"port" validate:"required,gt=0,lt=65536"`
	UploadsDir     string      `yaml:"uploads_dir"`
	HandlerTimeout string      `yaml:"handler_timeout"` // Ex: "500ms", "10s"
	MatchPriority  string      `yaml:"match_priority" validate:"omitempty,oneof=insertion longest_prefix"`
	MaxBodyBytes   int64       `yaml:"max_body_bytes" validate:"gte=0"`
	Logging        LoggingConf `yaml:"logging"`
	Metrics        MetricsConf `yaml:"metrics"`
}

// WatchConf define quais arquivos de definição são observados.
type WatchConf struct {
	Paths          []string `yaml:"paths" validate:"required,min=1,dive,required"`
	Include        []string `yaml:"include"`
	Exclude        []string `yaml:"exclude"`
	SQSReloadQueue string   `yaml:"sqs_reload_queue"`
}

// SchemaMockConf configura o cliente do serviço de documentação (YApi).
type SchemaMockConf struct {
	Host    string    `yaml:"host" validate:"omitempty,url"`
	Token   string    `yaml:"token"`
	Timeout string    `yaml:"timeout"`
	Cache   CacheConf `yaml:"cache"`
	Proxy   ProxyConf `yaml:"proxy"`
}

// CacheConf seleciona o backend de cache dos schemas remotos.
type CacheConf struct {
	Type          string `yaml:"type" validate:"omitempty,oneof=none memory redis"`
	Size          int    `yaml:"size" validate:"gte=0"`
	TTL           string `yaml:"ttl"`
	RedisAddr     string `yaml:"redis_addr" validate:"required_if=Type redis"`
	RedisPassword string `yaml:"redis_password"`
}

// ProxyConf define o encaminhamento para o mock avançado do projeto remoto.
type ProxyConf struct {
	ProjectID   int    `yaml:"project_id" validate:"gte=0"`
	PathRewrite string `yaml:"path_rewrite"` // Ex: '^/api/'
}

type LoggingConf struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format  string `yaml:"format" validate:"omitempty,oneof=json console"`
}

type MetricsConf struct {
	Datadog DatadogConf `yaml:"datadog"`
}

type DatadogConf struct {
	Enabled   bool   `yaml:"enabled" env:"DD_ENABLED"`
	Addr      string `yaml:"addr" env:"DD_AGENT_HOST" validate:"required_if=Enabled true"`
	Namespace string `yaml:"namespace"`
}

// Defaults
const (
	DefaultHandlerTimeout = 30 * time.Second
	DefaultSchemaTimeout  = 10 * time.Second
	DefaultCacheTTL       = 5 * time.Minute
	DefaultUploadsDir     = "./public"
)

// GetHandlerTimeout devolve o prazo por requisição despachada.
func (s ServerDetails) GetHandlerTimeout() time.Duration {
	return parseDuration(s.HandlerTimeout, DefaultHandlerTimeout)
}

// GetUploadsDir devolve o diretório servido para requisições multipart.
func (s ServerDetails) GetUploadsDir() string {
	if s.UploadsDir == "" {
		return DefaultUploadsDir
	}
	return s.UploadsDir
}

func (s SchemaMockConf) GetTimeout() time.Duration {
	return parseDuration(s.Timeout, DefaultSchemaTimeout)
}

func (c CacheConf) GetTTL() time.Duration {
	return parseDuration(c.TTL, DefaultCacheTTL)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
