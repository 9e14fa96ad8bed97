package config

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/raywall/hotmock/pkg/config/injector"
	"gopkg.in/yaml.v3"
)

// --- Interfaces para Mocking ---

type S3Downloader interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type DynamoGetter interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// UniversalLoader carrega o ServerConfig de múltiplas fontes (Local, S3, DynamoDB).
type UniversalLoader struct {
	validator *ConfigValidator
	injector  *injector.Injector
	s3        S3Downloader
	dynamo    DynamoGetter
}

// NewUniversalLoader cria uma nova instância.
func NewUniversalLoader() *UniversalLoader {
	return &UniversalLoader{
		validator: NewValidator(),
		injector:  injector.New(),
	}
}

// Load é o atalho usado pelo cmd na inicialização.
func Load(ctx context.Context, source string) (*ServerConfig, error) {
	return NewUniversalLoader().Load(ctx, source)
}

// Load detecta o esquema da fonte e carrega a configuração.
func (ul *UniversalLoader) Load(ctx context.Context, source string) (*ServerConfig, error) {
	var rawData []byte
	var err error

	switch {
	case strings.HasPrefix(source, "s3://"):
		client := ul.s3
		if client == nil {
			cfg, cfgErr := awsconfig.LoadDefaultConfig(ctx)
			if cfgErr != nil {
				return nil, fmt.Errorf("falha config aws: %w", cfgErr)
			}
			client = s3.NewFromConfig(cfg)
		}
		rawData, err = ul.loadFromS3(ctx, client, source)

	case strings.HasPrefix(source, "dynamodb://"):
		client := ul.dynamo
		if client == nil {
			cfg, cfgErr := awsconfig.LoadDefaultConfig(ctx)
			if cfgErr != nil {
				return nil, fmt.Errorf("falha config aws: %w", cfgErr)
			}
			client = dynamodb.NewFromConfig(cfg)
		}
		rawData, err = ul.loadFromDynamoDB(ctx, client, source)

	default:
		// Suporta tanto "file://hotmock.yaml" quanto apenas "hotmock.yaml"
		rawData, err = os.ReadFile(strings.TrimPrefix(source, "file://"))
	}

	if err != nil {
		return nil, fmt.Errorf("falha leitura config (%s): %w", source, err)
	}

	return ul.parseAndValidate(ctx, rawData)
}

func (ul *UniversalLoader) loadFromS3(ctx context.Context, client S3Downloader, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("URL S3 inválida: %w", err)
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

// loadFromDynamoDB lê dynamodb://tabela/chave?col=config&pk=id
func (ul *UniversalLoader) loadFromDynamoDB(ctx context.Context, client DynamoGetter, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("URL DynamoDB inválida: %w", err)
	}

	tableName := u.Host
	pkValue := strings.TrimPrefix(u.Path, "/")

	colName := u.Query().Get("col")
	if colName == "" {
		colName = "config" // Coluna padrão onde o YAML está salvo
	}

	pkName := u.Query().Get("pk")
	if pkName == "" {
		pkName = "id"
	}

	out, err := client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &tableName,
		Key: map[string]types.AttributeValue{
			pkName: &types.AttributeValueMemberS{Value: pkValue},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("item não encontrado no DynamoDB")
	}

	var itemMap map[string]interface{}
	if err := attributevalue.UnmarshalMap(out.Item, &itemMap); err != nil {
		return nil, err
	}

	content, ok := itemMap[colName].(string)
	if !ok {
		return nil, fmt.Errorf("coluna '%s' inválida ou vazia no DynamoDB", colName)
	}
	return []byte(content), nil
}

func (ul *UniversalLoader) parseAndValidate(ctx context.Context, data []byte) (*ServerConfig, error) {
	var cfg ServerConfig

	// 1. Unmarshal (YAML -> Struct)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("YAML malformado: %w", err)
	}

	// 2. Injection (Env/Secrets/SSM)
	if err := ul.injector.Inject(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("falha na injeção de variáveis: %w", err)
	}

	// 3. Validation
	if err := ul.validator.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validação da configuração falhou: %w", err)
	}

	return &cfg, nil
}
