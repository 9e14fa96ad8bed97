package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

var (
	awsMu   sync.Mutex
	awsCfgs = make(map[string]aws.Config)
)

// GetAWSConfig carrega a configuração da AWS (env vars, profile, IAM role),
// uma vez por região.
func GetAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	awsMu.Lock()
	defer awsMu.Unlock()

	if cfg, ok := awsCfgs[region]; ok {
		return cfg, nil
	}

	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}
	awsCfgs[region] = cfg
	return cfg, nil
}

// Interfaces para abstrair o SDK da AWS (Permite Mocking)
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type SecretsClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// ProcessAWSParameterStore lê um parâmetro do SSM com o client real.
func ProcessAWSParameterStore(ctx context.Context, region, path string, decrypt bool) (interface{}, error) {
	cfg, err := GetAWSConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return getParameter(ctx, ssm.NewFromConfig(cfg), path, decrypt)
}

func getParameter(ctx context.Context, client SSMClient, path string, decrypt bool) (interface{}, error) {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &path,
		WithDecryption: &decrypt,
	})
	if err != nil {
		return nil, fmt.Errorf("erro no SSM GetParameter: %w", err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, fmt.Errorf("parâmetro '%s' sem valor", path)
	}
	return *out.Parameter.Value, nil
}

// ProcessAWSSecretsManager lê um segredo com o client real.
func ProcessAWSSecretsManager(ctx context.Context, region, secretID string) (interface{}, error) {
	cfg, err := GetAWSConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return getSecret(ctx, secretsmanager.NewFromConfig(cfg), secretID)
}

func getSecret(ctx context.Context, client SecretsClient, secretID string) (interface{}, error) {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &secretID,
	})
	if err != nil {
		return nil, fmt.Errorf("erro no SecretsManager: %w", err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("segredo '%s' sem SecretString", secretID)
	}

	val := *out.SecretString

	// Segredos em JSON viram mapa
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(val), &data); err == nil {
		return data, nil
	}
	return val, nil
}
