package sources

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoClient define a interface para operações do DynamoDB (permite Mock)
type DynamoClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

func getDynamoItem(ctx context.Context, client DynamoClient, table string, keyMap map[string]interface{}) (interface{}, error) {
	if len(keyMap) == 0 {
		return nil, fmt.Errorf("dynamodb: key_map vazio para a tabela '%s'", table)
	}

	// Chaves compostas são sempre enviadas como string
	dbKey := make(map[string]types.AttributeValue, len(keyMap))
	for k, v := range keyMap {
		if s, ok := v.(string); ok {
			dbKey[k] = &types.AttributeValueMemberS{Value: s}
		} else {
			dbKey[k] = &types.AttributeValueMemberS{Value: fmt.Sprintf("%v", v)}
		}
	}

	out, err := client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       dbKey,
	})
	if err != nil {
		return nil, fmt.Errorf("operation error DynamoDB: GetItem, %w", err)
	}

	if out.Item == nil {
		return nil, nil // Not Found
	}

	var item map[string]interface{}
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("dynamodb: falha ao converter item: %w", err)
	}
	return item, nil
}
