package docstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	docsKeyPrefix    = "docs:"
	revsKeyPrefix    = "revs:"
	updatedKeyPrefix = "updated:"
	seqKeyPrefix     = "seq:"
)

// KEYS: docs, revs, updated. ARGV: id, data, now.
var createScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[2], ARGV[1], 1)
redis.call('HSET', KEYS[3], ARGV[1], ARGV[3])
return 1
`)

// KEYS: docs, revs, updated. ARGV: id, data, expected rev, now.
// Returns the new revision, -1 when missing, -2 on revision mismatch.
var updateScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return -1
end
local current = tonumber(redis.call('HGET', KEYS[2], ARGV[1]) or '0')
local expected = tonumber(ARGV[3])
if expected > 0 and current ~= expected then
	return -2
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[3], ARGV[1], ARGV[4])
return redis.call('HINCRBY', KEYS[2], ARGV[1], 1)
`)

// Redis keeps each collection in three hashes (data, revision, update time)
// and allocates ids with INCR. Writes run as Lua scripts so the revision
// check and the write are atomic.
type Redis struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedis wraps a go-redis client.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client, now: time.Now}
}

func keys(collection string) []string {
	return []string{
		docsKeyPrefix + collection,
		revsKeyPrefix + collection,
		updatedKeyPrefix + collection,
	}
}

func (r *Redis) NextID(ctx context.Context, collection string) (int64, error) {
	id, err := r.client.Incr(ctx, seqKeyPrefix+collection).Result()
	if err != nil {
		return 0, fmt.Errorf("next id %s: %w", collection, err)
	}
	return id, nil
}

func (r *Redis) Create(ctx context.Context, collection string, id int64, data []byte) (Record, error) {
	now := r.now()
	ok, err := createScript.Run(ctx, r.client, keys(collection),
		strconv.FormatInt(id, 10), data, now.UnixMilli()).Int()
	if err != nil {
		return Record{}, fmt.Errorf("create %s/%d: %w", collection, id, err)
	}
	if ok != 1 {
		return Record{}, ErrExists
	}
	return Record{ID: id, Rev: 1, Data: cloneBytes(data), UpdatedAt: time.UnixMilli(now.UnixMilli())}, nil
}

func (r *Redis) Update(ctx context.Context, collection string, id int64, data []byte, rev int64) (Record, error) {
	now := r.now()
	newRev, err := updateScript.Run(ctx, r.client, keys(collection),
		strconv.FormatInt(id, 10), data, rev, now.UnixMilli()).Int64()
	if err != nil {
		return Record{}, fmt.Errorf("update %s/%d: %w", collection, id, err)
	}
	switch newRev {
	case -1:
		return Record{}, ErrNotFound
	case -2:
		return Record{}, ErrConflict
	}
	return Record{ID: id, Rev: newRev, Data: cloneBytes(data), UpdatedAt: time.UnixMilli(now.UnixMilli())}, nil
}

func (r *Redis) List(ctx context.Context, collection string) ([]Record, error) {
	k := keys(collection)
	var docs, revs, updated *redis.MapStringStringCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		docs = pipe.HGetAll(ctx, k[0])
		revs = pipe.HGetAll(ctx, k[1])
		updated = pipe.HGetAll(ctx, k[2])
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	revMap, updMap := revs.Val(), updated.Val()
	out := make([]Record, 0, len(docs.Val()))
	for field, data := range docs.Val() {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("list %s: bad id %q: %w", collection, field, err)
		}
		rev, _ := strconv.ParseInt(revMap[field], 10, 64)
		ms, _ := strconv.ParseInt(updMap[field], 10, 64)
		out = append(out, Record{ID: id, Rev: rev, Data: []byte(data), UpdatedAt: time.UnixMilli(ms)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Redis) Delete(ctx context.Context, collection string, id int64) error {
	k := keys(collection)
	field := strconv.FormatInt(id, 10)
	var removed *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.HDel(ctx, k[0], field)
		pipe.HDel(ctx, k[1], field)
		pipe.HDel(ctx, k[2], field)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s/%d: %w", collection, id, err)
	}
	if removed.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Redis) DeleteAll(ctx context.Context, collection string) error {
	if err := r.client.Del(ctx, keys(collection)...).Err(); err != nil {
		return fmt.Errorf("delete all %s: %w", collection, err)
	}
	return nil
}
