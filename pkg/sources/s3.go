package sources

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// S3Client interface para Mock
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// getS3Object baixa o objeto e faz o parse conforme o formato. Sem formato
// explícito, a extensão da chave decide.
func getS3Object(ctx context.Context, client S3Client, bucket, key, format string) (interface{}, error) {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("erro ao baixar do S3: %w", err)
	}
	defer out.Body.Close()

	bodyBytes, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}

	if format == "" {
		format = strings.TrimPrefix(path.Ext(key), ".")
	}
	return decodeDocument(bodyBytes, format)
}

func decodeDocument(data []byte, format string) (interface{}, error) {
	switch strings.ToLower(format) {
	case "json":
		var result interface{}
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("erro parse JSON: %w", err)
		}
		return result, nil
	case "yaml", "yml":
		var result interface{}
		if err := yaml.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("erro parse YAML: %w", err)
		}
		return result, nil
	case "toml":
		var result map[string]interface{}
		if err := toml.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("erro parse TOML: %w", err)
		}
		return result, nil
	case "csv":
		records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		if err != nil {
			return nil, fmt.Errorf("erro parse CSV: %w", err)
		}
		return parseCSVToMap(records), nil
	default:
		return string(data), nil
	}
}

func parseCSVToMap(records [][]string) []map[string]interface{} {
	if len(records) < 1 {
		return nil
	}
	headers := records[0]
	result := make([]map[string]interface{}, 0, len(records)-1)

	for _, row := range records[1:] {
		item := make(map[string]interface{})
		for i, val := range row {
			if i < len(headers) {
				item[headers[i]] = val
			}
		}
		result = append(result, item)
	}
	return result
}
