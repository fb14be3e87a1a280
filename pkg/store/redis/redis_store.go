package redis

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"github.com/Avi18971911/spangrouper/pkg/store"
	"github.com/redis/go-redis/v9"
)

const (
	scanCount   = 256
	indexSuffix = ":index"
	// hexUpperBound sorts after every hex digit, so "(" + prefix + hexUpperBound
	// closes the lex range of fields starting with prefix.
	hexUpperBound = "g"
)

// RedisStore keeps one store in a redis hash whose fields are the hex form of
// the key. A sorted set with every field at score zero indexes the hash in
// lex order, so a prefix scan reads only the matching range.
type RedisStore struct {
	client redis.UniversalClient
	hash   string
	index  string
}

func NewRedisStore(client redis.UniversalClient, hash string) *RedisStore {
	return &RedisStore{client: client, hash: hash, index: hash + indexSuffix}
}

// HashName is the redis key holding the named store of one task.
func HashName(keyPrefix string, task int, storeName string) string {
	return fmt.Sprintf("%s:task-%d:%s", keyPrefix, task, storeName)
}

// OpenTaskStores returns the span and trace state stores of one task. The
// client is shared between tasks and is closed by its owner.
func OpenTaskStores(client redis.UniversalClient, keyPrefix string, task int) *store.Stores {
	return store.NewStores(
		NewRedisStore(client, HashName(keyPrefix, task, store.SpanStoreName)),
		NewRedisStore(client, HashName(keyPrefix, task, store.TraceStateStoreName)),
	)
}

func (r *RedisStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	value, err := r.client.HGet(ctx, r.hash, hex.EncodeToString(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return value, nil
}

func (r *RedisStore) Put(ctx context.Context, key []byte, value []byte) error {
	field := hex.EncodeToString(key)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.hash, field, value)
		pipe.ZAdd(ctx, r.index, redis.Z{Score: 0, Member: field})
		return nil
	})
	return translate(err)
}

func (r *RedisStore) Delete(ctx context.Context, keys ...[]byte) error {
	if len(keys) == 0 {
		return nil
	}
	fields := make([]string, len(keys))
	members := make([]interface{}, len(keys))
	for i, key := range keys {
		fields[i] = hex.EncodeToString(key)
		members[i] = fields[i]
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, r.hash, fields...)
		pipe.ZRem(ctx, r.index, members...)
		return nil
	})
	return translate(err)
}

// Scan reads every matching entry before calling fn. A nil prefix walks the
// whole hash; any other prefix reads its lex range of the index and fetches
// only those fields.
func (r *RedisStore) Scan(ctx context.Context, prefix []byte, fn func(key []byte, value []byte) error) error {
	var entries map[string]string
	var err error
	if len(prefix) == 0 {
		entries, err = r.scanAll(ctx)
	} else {
		entries, err = r.scanRange(ctx, hex.EncodeToString(prefix))
	}
	if err != nil {
		return translate(err)
	}

	for field, value := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		key, err := hex.DecodeString(field)
		if err != nil {
			return fmt.Errorf("field %q of %s is not hex: %w", field, r.hash, err)
		}
		if err := fn(key, []byte(value)); err != nil {
			return err
		}
	}
	return nil
}

// scanAll pages through the hash with HSCAN, dropping fields repeated across
// pages.
func (r *RedisStore) scanAll(ctx context.Context) (map[string]string, error) {
	entries := make(map[string]string)
	var cursor uint64
	for {
		page, next, err := r.client.HScan(ctx, r.hash, cursor, "", scanCount).Result()
		if err != nil {
			return nil, err
		}
		for i := 0; i+1 < len(page); i += 2 {
			entries[page[i]] = page[i+1]
		}
		cursor = next
		if cursor == 0 {
			return entries, nil
		}
	}
}

func (r *RedisStore) scanRange(ctx context.Context, hexPrefix string) (map[string]string, error) {
	fields, err := r.client.ZRangeByLex(ctx, r.index, &redis.ZRangeBy{
		Min: "[" + hexPrefix,
		Max: "(" + hexPrefix + hexUpperBound,
	}).Result()
	if err != nil {
		return nil, err
	}
	entries := make(map[string]string, len(fields))
	if len(fields) == 0 {
		return entries, nil
	}
	values, err := r.client.HMGet(ctx, r.hash, fields...).Result()
	if err != nil {
		return nil, err
	}
	for i, value := range values {
		if s, ok := value.(string); ok {
			entries[fields[i]] = s
		}
	}
	return entries, nil
}

func (r *RedisStore) Close() error {
	return nil
}

func translate(err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return store.ErrClosed
	}
	return err
}
