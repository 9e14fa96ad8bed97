// Package sources resolve os dados que alimentam um mock dinâmico: valores
// fixos, APIs REST, Redis, SQL e serviços da AWS (S3, DynamoDB, SSM e
// Secrets Manager).
package sources

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/redis/go-redis/v9"
)

// Tipos de fonte suportados.
const (
	TypeFixed    = "fixed"
	TypeRest     = "rest"
	TypeRedis    = "redis"
	TypeSQL      = "sql"
	TypeS3       = "s3"
	TypeDynamoDB = "dynamodb"
	TypeSSM      = "ssm"
	TypeSecret   = "secret"
)

// ErrUnknownType indica um tipo de fonte não suportado.
var ErrUnknownType = errors.New("tipo de fonte desconhecido")

// Spec descreve uma fonte de dados. Os campos usados dependem de Type.
type Spec struct {
	Type   string `json:"type" validate:"required,oneof=fixed rest redis sql s3 dynamodb ssm secret"`
	Region string `json:"region"`

	// fixed
	Value interface{} `json:"value"`

	// rest
	URL     string            `json:"url" validate:"required_if=Type rest"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    interface{}       `json:"body"`

	// redis
	Addr     string `json:"addr" validate:"required_if=Type redis"`
	Password string `json:"password"`
	Command  string `json:"command" validate:"omitempty,oneof=get hgetall lrange"`

	// redis e s3
	Key string `json:"key"`

	// sql
	Driver string        `json:"driver"`
	DSN    string        `json:"dsn" validate:"required_if=Type sql"`
	Query  string        `json:"query" validate:"required_if=Type sql"`
	Args   []interface{} `json:"args"`

	// s3
	Bucket string `json:"bucket" validate:"required_if=Type s3"`
	Format string `json:"format"`

	// dynamodb
	Table  string                 `json:"table" validate:"required_if=Type dynamodb"`
	KeyMap map[string]interface{} `json:"key_map"`

	// ssm e secret
	Path     string `json:"path" validate:"required_if=Type ssm"`
	Decrypt  bool   `json:"decrypt"`
	SecretID string `json:"secret_id" validate:"required_if=Type secret"`
}

// Resolver executa Specs. Clients não definidos são criados sob demanda a
// partir da configuração padrão da AWS.
type Resolver struct {
	HTTP    HTTPClient
	S3      S3Client
	Dynamo  DynamoClient
	SSM     SSMClient
	Secrets SecretsClient

	// NewRedis cria o client para um endereço; padrão redis.NewClient.
	NewRedis func(addr, password string) RedisClient
	// OpenDB abre a conexão SQL; padrão sql.Open.
	OpenDB func(driver, dsn string) (*sql.DB, error)

	mu     sync.Mutex
	redis  map[string]RedisClient
	dbs    map[string]*sql.DB
	awsS3  map[string]S3Client
	awsDDB map[string]DynamoClient
}

// NewResolver cria um Resolver com os clients reais.
func NewResolver() *Resolver {
	return &Resolver{
		HTTP: &http.Client{Timeout: 10 * time.Second},
	}
}

// Resolve devolve o dado descrito pela Spec.
func (r *Resolver) Resolve(ctx context.Context, spec Spec) (interface{}, error) {
	switch spec.Type {
	case TypeFixed:
		return spec.Value, nil

	case TypeRest:
		client := r.HTTP
		if client == nil {
			client = http.DefaultClient
		}
		return callRest(ctx, client, spec.Method, spec.URL, spec.Headers, spec.Body)

	case TypeRedis:
		return readRedis(ctx, r.redisClient(spec.Addr, spec.Password), spec.Command, spec.Key)

	case TypeSQL:
		db, err := r.db(spec.Driver, spec.DSN)
		if err != nil {
			return nil, err
		}
		return querySQL(ctx, db, spec.Query, spec.Args)

	case TypeS3:
		client, err := r.s3Client(ctx, spec.Region)
		if err != nil {
			return nil, err
		}
		return getS3Object(ctx, client, spec.Bucket, spec.Key, spec.Format)

	case TypeDynamoDB:
		client, err := r.dynamoClient(ctx, spec.Region)
		if err != nil {
			return nil, err
		}
		return getDynamoItem(ctx, client, spec.Table, spec.KeyMap)

	case TypeSSM:
		if r.SSM != nil {
			return getParameter(ctx, r.SSM, spec.Path, spec.Decrypt)
		}
		return ProcessAWSParameterStore(ctx, spec.Region, spec.Path, spec.Decrypt)

	case TypeSecret:
		if r.Secrets != nil {
			return getSecret(ctx, r.Secrets, spec.SecretID)
		}
		return ProcessAWSSecretsManager(ctx, spec.Region, spec.SecretID)

	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownType, spec.Type)
	}
}

// Close libera as conexões abertas.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, db := range r.dbs {
		errs = append(errs, db.Close())
	}
	for _, c := range r.redis {
		if closer, ok := c.(interface{ Close() error }); ok {
			errs = append(errs, closer.Close())
		}
	}
	r.dbs, r.redis = nil, nil
	return errors.Join(errs...)
}

func (r *Resolver) redisClient(addr, password string) RedisClient {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := addr + "|" + password
	if client, ok := r.redis[key]; ok {
		return client
	}
	var client RedisClient
	if r.NewRedis != nil {
		client = r.NewRedis(addr, password)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr, Password: password})
	}
	if r.redis == nil {
		r.redis = make(map[string]RedisClient)
	}
	r.redis[key] = client
	return client
}

func (r *Resolver) db(driver, dsn string) (*sql.DB, error) {
	if driver == "" {
		driver = "postgres"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := driver + "|" + dsn
	if db, ok := r.dbs[key]; ok {
		return db, nil
	}
	open := r.OpenDB
	if open == nil {
		open = sql.Open
	}
	db, err := open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir conexão SQL: %w", err)
	}
	if r.dbs == nil {
		r.dbs = make(map[string]*sql.DB)
	}
	r.dbs[key] = db
	return db, nil
}

func (r *Resolver) s3Client(ctx context.Context, region string) (S3Client, error) {
	if r.S3 != nil {
		return r.S3, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.awsS3[region]; ok {
		return c, nil
	}
	cfg, err := GetAWSConfig(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("erro config aws: %w", err)
	}
	c := s3.NewFromConfig(cfg)
	if r.awsS3 == nil {
		r.awsS3 = make(map[string]S3Client)
	}
	r.awsS3[region] = c
	return c, nil
}

func (r *Resolver) dynamoClient(ctx context.Context, region string) (DynamoClient, error) {
	if r.Dynamo != nil {
		return r.Dynamo, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.awsDDB[region]; ok {
		return c, nil
	}
	cfg, err := GetAWSConfig(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("erro config aws: %w", err)
	}
	c := dynamodb.NewFromConfig(cfg)
	if r.awsDDB == nil {
		r.awsDDB = make(map[string]DynamoClient)
	}
	r.awsDDB[region] = c
	return c, nil
}

var (
	_ SSMClient     = (*ssm.Client)(nil)
	_ SecretsClient = (*secretsmanager.Client)(nil)
	_ RedisClient   = (*redis.Client)(nil)
)
