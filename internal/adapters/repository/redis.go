package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/okian/ecell/pkg/logger"
)

// Hash fields of a stored document.
const (
	fieldData      = "data"
	fieldVersion   = "version"
	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"
)

// RedisStore keeps each document in a hash and the creation order of a
// collection in a sorted set. Writes run in WATCH/MULTI transactions and
// announce themselves on a per-collection pub/sub channel.
//
// Keys:
//
//	<prefix>:<collection>:doc:<id>   hash {data, version, createdAt, updatedAt}
//	<prefix>:<collection>:order      zset id -> creation sequence
//	<prefix>:<collection>:seq        creation sequence counter
//	<prefix>:<collection>:changes    pub/sub channel
type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	maxRetries int
	log        logger.Logger
}

// NewRedisStore wraps an existing client. The caller owns the client unless
// Close is called on the store.
func NewRedisStore(client redis.UniversalClient, opts ...Option) *RedisStore {
	o := newStoreOptions(opts)
	return &RedisStore{client: client, prefix: o.prefix, maxRetries: o.maxRetries, log: o.logger}
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(ctx context.Context, addr string, db int, opts ...Option) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedisStore(client, opts...), nil
}

func (s *RedisStore) docKey(collection, id string) string {
	return s.prefix + ":" + collection + ":doc:" + id
}

func (s *RedisStore) orderKey(collection string) string {
	return s.prefix + ":" + collection + ":order"
}

func (s *RedisStore) seqKey(collection string) string {
	return s.prefix + ":" + collection + ":seq"
}

func (s *RedisStore) channel(collection string) string {
	return s.prefix + ":" + collection + ":changes"
}

func parseHash(id string, h map[string]string) (Document, error) {
	data, err := decode([]byte(h[fieldData]))
	if err != nil {
		return Document{}, err
	}
	version, err := strconv.ParseInt(h[fieldVersion], 10, 64)
	if err != nil {
		return Document{}, fmt.Errorf("decode document %s version: %w", id, err)
	}
	return Document{
		ID:        id,
		Version:   version,
		Data:      data,
		CreatedAt: parseNanos(h[fieldCreatedAt]),
		UpdatedAt: parseNanos(h[fieldUpdatedAt]),
	}, nil
}

func parseNanos(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// Fetch implements Store.
func (s *RedisStore) Fetch(ctx context.Context, collection string, filters ...Filter) (docs []Document, err error) {
	defer observe("fetch", collection, time.Now(), &err)

	ids, err := s.client.ZRange(ctx, s.orderKey(collection), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", collection, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.StringStringMapCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.docKey(collection, id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", collection, err)
	}

	for i, cmd := range cmds {
		h := cmd.Val()
		if len(h) == 0 {
			// deleted between ZRANGE and HGETALL
			continue
		}
		doc, err := parseHash(ids[i], h)
		if err != nil {
			return nil, err
		}
		if matches(doc.Data, filters) {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, collection, id string) (doc Document, err error) {
	defer observe("get", collection, time.Now(), &err)

	h, err := s.client.HGetAll(ctx, s.docKey(collection, id)).Result()
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if len(h) == 0 {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return parseHash(id, h)
}

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, collection, id string, data map[string]any) (doc Document, err error) {
	defer observe("create", collection, time.Now(), &err)

	raw, err := encode(data)
	if err != nil {
		return Document{}, err
	}
	if id == "" {
		id = uuid.NewString()
	}
	seq, err := s.client.Incr(ctx, s.seqKey(collection)).Result()
	if err != nil {
		return Document{}, fmt.Errorf("create %s/%s: %w", collection, id, err)
	}

	key := s.docKey(collection, id)
	now := time.Now().UTC()
	nanos := strconv.FormatInt(now.UnixNano(), 10)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrAlreadyExists)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldData, string(raw),
				fieldVersion, "1",
				fieldCreatedAt, nanos,
				fieldUpdatedAt, nanos,
			)
			pipe.ZAdd(ctx, s.orderKey(collection), &redis.Z{Score: float64(seq), Member: id})
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrAlreadyExists)
		}
		return Document{}, wrapRedis("create", collection, id, err)
	}

	s.publish(ctx, collection, id)
	return Document{ID: id, Version: 1, Data: mustDecode(raw), CreatedAt: parseNanos(nanos), UpdatedAt: parseNanos(nanos)}, nil
}

// Update implements Store. Unconditional updates that lose a WATCH race are
// retried; conditional ones report ErrVersionConflict instead.
func (s *RedisStore) Update(ctx context.Context, collection, id string, fields map[string]any, opts ...UpdateOption) (doc Document, err error) {
	defer observe("update", collection, time.Now(), &err)
	o := applyUpdateOptions(opts)
	key := s.docKey(collection, id)

	txf := func(tx *redis.Tx) error {
		h, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(h) == 0 {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		current, err := parseHash(id, h)
		if err != nil {
			return err
		}
		if o.checkVersion && current.Version != o.version {
			return fmt.Errorf("%s/%s at version %d, expected %d: %w", collection, id, current.Version, o.version, ErrVersionConflict)
		}
		raw, err := merge([]byte(h[fieldData]), fields)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		nanos := strconv.FormatInt(now.UnixNano(), 10)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldData, string(raw),
				fieldVersion, strconv.FormatInt(current.Version+1, 10),
				fieldUpdatedAt, nanos,
			)
			return nil
		})
		if err != nil {
			return err
		}
		doc = Document{
			ID:        id,
			Version:   current.Version + 1,
			Data:      mustDecode(raw),
			CreatedAt: current.CreatedAt,
			UpdatedAt: parseNanos(nanos),
		}
		return nil
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err = s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
		if o.checkVersion {
			return Document{}, fmt.Errorf("%s/%s changed concurrently: %w", collection, id, ErrVersionConflict)
		}
	}
	if err != nil {
		return Document{}, wrapRedis("update", collection, id, err)
	}

	s.publish(ctx, collection, id)
	return doc, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, collection, id string) (err error) {
	defer observe("delete", collection, time.Now(), &err)

	var del *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.docKey(collection, id))
		pipe.ZRem(ctx, s.orderKey(collection), id)
		return nil
	})
	if err != nil {
		return wrapRedis("delete", collection, id, err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	s.publish(ctx, collection, id)
	return nil
}

// Subscribe implements Store using the collection's change channel.
func (s *RedisStore) Subscribe(ctx context.Context, collection string, filters []Filter, fn func([]Document)) (func(), error) {
	ps := s.client.Subscribe(ctx, s.channel(collection))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}

	sub := newSubscription(ctx, s, collection, filters, fn, s.log)
	go func() {
		msgs := ps.Channel()
		for {
			select {
			case <-sub.ctx.Done():
				_ = ps.Close()
				return
			case _, ok := <-msgs:
				if !ok {
					sub.stop()
					return
				}
				sub.notify()
			}
		}
	}()
	go sub.run()
	return sub.stop, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) publish(ctx context.Context, collection, id string) {
	if err := s.client.Publish(ctx, s.channel(collection), id).Err(); err != nil {
		s.log.Warn(ctx, "change publish failed",
			logger.String("collection", collection), logger.String("id", id), logger.Error(err))
	}
}

// wrapRedis keeps store sentinels intact and tags transport failures.
func wrapRedis(op, collection, id string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrAlreadyExists) {
		return err
	}
	return fmt.Errorf("%s %s/%s: %w", op, collection, id, err)
}

// mustDecode decodes bytes this package just encoded.
func mustDecode(raw []byte) map[string]any {
	data, err := decode(raw)
	if err != nil {
		return map[string]any{}
	}
	return data
}
