package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Cache stores JSON encoded values under string keys.
type Cache interface {
	// Get decodes the value stored under key into dst. It returns ErrCacheMiss
	// when the key is absent.
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPattern removes every key matching a glob style pattern.
	DeleteByPattern(ctx context.Context, pattern string) error
}

var ErrCacheMiss = errors.New("cache miss")

const OrdersPattern = "orders:*"

func OrderKey(id string) string {
	return fmt.Sprintf("order:%s", id)
}

func UserOrdersKey(userID string, page, limit int) string {
	return fmt.Sprintf("user:%s:orders:%d:%d", userID, page, limit)
}

func UserOrdersPattern(userID string) string {
	return fmt.Sprintf("user:%s:orders:*", userID)
}

func StatusOrdersKey(status string, page, limit int) string {
	return fmt.Sprintf("orders:status:%s:%d:%d", status, page, limit)
}

func SummaryKey(start, end *time.Time) string {
	return fmt.Sprintf("orders:summary:%s:%s", boundKey(start), boundKey(end))
}

func CartKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

func boundKey(t *time.Time) string {
	if t == nil {
		return "all"
	}
	return strconv.FormatInt(t.UTC().Unix(), 10)
}
