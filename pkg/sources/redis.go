package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisClient é o subconjunto do go-redis usado pelas fontes.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

func readRedis(ctx context.Context, client RedisClient, command, key string) (interface{}, error) {
	switch strings.ToLower(command) {
	case "", "get":
		val, err := client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil // Key not found
		} else if err != nil {
			return nil, err
		}
		return decodeJSONOrString(val), nil

	case "hgetall":
		val, err := client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		result := make(map[string]interface{}, len(val))
		for k, v := range val {
			result[k] = decodeJSONOrString(v)
		}
		return result, nil

	case "lrange":
		val, err := client.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, err
		}
		result := make([]interface{}, len(val))
		for i, v := range val {
			result[i] = decodeJSONOrString(v)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("comando redis não suportado: %s", command)
	}
}

func decodeJSONOrString(val string) interface{} {
	var data interface{}
	if err := json.Unmarshal([]byte(val), &data); err == nil {
		return data
	}
	return val
}
