package checker

import (
	"context"
	"errors"
	"fmt"

	"github.com/saaga0h/jeeves-autolight/e2e/internal/scenario"
	"github.com/saaga0h/jeeves-autolight/pkg/redis"
)

// CheckRedisExpectation validates one field of a Redis hash
func CheckRedisExpectation(ctx context.Context, client redis.Client, exp scenario.Expectation) (bool, string, interface{}) {
	value, err := client.HGet(ctx, exp.RedisKey, exp.RedisField)
	if errors.Is(err, redis.ErrNotFound) {
		return false, fmt.Sprintf("key %q field %q not found in Redis", exp.RedisKey, exp.RedisField), nil
	}
	if err != nil {
		return false, fmt.Sprintf("Redis error: %v", err), nil
	}

	if matches, reason := MatchesExpectation(value, exp.Expected); !matches {
		return false, reason, value
	}
	return true, "", value
}
