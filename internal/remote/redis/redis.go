// Package redis keeps each document as a JSON string and maintains sorted-set
// indexes, scored by insertion sequence, for the collection and for selected
// string fields.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"expenses/internal/remote"
)

var _ remote.Collection = (*Store)(nil)

const maxTxRetries = 5

type Store struct {
	rdb     *goredis.Client
	prefix  string
	indexed []string
	now     func() time.Time
	newID   func() string
}

// New uses rdb with keys under prefix. Equality queries on an indexed field
// read only that field's index.
func New(rdb *goredis.Client, prefix string, indexed ...string) *Store {
	return &Store{
		rdb:     rdb,
		prefix:  prefix,
		indexed: indexed,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int, prefix string, indexed ...string) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return New(rdb, prefix, indexed...), nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) docKey(coll, id string) string { return fmt.Sprintf("%s:%s:doc:%s", s.prefix, coll, id) }
func (s *Store) allKey(coll string) string     { return fmt.Sprintf("%s:%s:all", s.prefix, coll) }
func (s *Store) seqKey(coll string) string     { return fmt.Sprintf("%s:%s:seq", s.prefix, coll) }

func (s *Store) indexKey(coll, field, value string) string {
	return fmt.Sprintf("%s:%s:idx:%s:%s", s.prefix, coll, field, value)
}

// indexEntries returns the index keys doc belongs to.
func (s *Store) indexEntries(coll string, doc remote.Document) []string {
	var keys []string
	for _, field := range s.indexed {
		if v, ok := doc[field].(string); ok {
			keys = append(keys, s.indexKey(coll, field, v))
		}
	}
	return keys
}

// scanKey picks the narrowest sorted set that holds every match of q.
func (s *Store) scanKey(coll string, q remote.Query) string {
	for _, field := range s.indexed {
		if v, ok := q.EqualityValue(field); ok {
			if str, ok := v.(string); ok {
				return s.indexKey(coll, field, str)
			}
		}
	}
	return s.allKey(coll)
}

func (s *Store) Insert(ctx context.Context, coll string, doc remote.Document) (string, error) {
	doc = remote.ResolveServerTimestamps(doc, s.now())
	data, err := remote.EncodeDocument(doc)
	if err != nil {
		return "", err
	}
	seq, err := s.rdb.Incr(ctx, s.seqKey(coll)).Result()
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", coll, err)
	}

	id := s.newID()
	member := goredis.Z{Score: float64(seq), Member: id}
	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(coll, id), data, 0)
		pipe.ZAdd(ctx, s.allKey(coll), member)
		for _, key := range s.indexEntries(coll, doc) {
			pipe.ZAdd(ctx, key, member)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", coll, err)
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, coll, id string) (remote.Document, error) {
	data, err := s.rdb.Get(ctx, s.docKey(coll, id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("get %s/%s: %w", coll, id, remote.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", coll, id, err)
	}
	return remote.DecodeDocument(data)
}

// Update reads, merges and writes the document under WATCH so a concurrent
// writer forces a retry instead of a lost update.
func (s *Store) Update(ctx context.Context, coll, id string, patch remote.Document) error {
	key := s.docKey(coll, id)
	patch = remote.ResolveServerTimestamps(patch, s.now())

	txf := func(tx *goredis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return remote.ErrNotFound
		}
		if err != nil {
			return err
		}
		current, err := remote.DecodeDocument(data)
		if err != nil {
			return err
		}
		merged := current.Merge(patch)
		encoded, err := remote.EncodeDocument(merged)
		if err != nil {
			return err
		}
		score, err := tx.ZScore(ctx, s.allKey(coll), id).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			for _, old := range s.indexEntries(coll, current) {
				pipe.ZRem(ctx, old, id)
			}
			for _, next := range s.indexEntries(coll, merged) {
				pipe.ZAdd(ctx, next, goredis.Z{Score: score, Member: id})
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("update %s/%s: %w", coll, id, err)
		}
		return nil
	}
	return fmt.Errorf("update %s/%s: too much contention", coll, id)
}

func (s *Store) Delete(ctx context.Context, coll, id string) error {
	current, err := s.Get(ctx, coll, id)
	if errors.Is(err, remote.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", coll, id, err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.docKey(coll, id))
		pipe.ZRem(ctx, s.allKey(coll), id)
		for _, key := range s.indexEntries(coll, current) {
			pipe.ZRem(ctx, key, id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", coll, id, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, coll string, q remote.Query) ([]remote.Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	ids, err := s.rdb.ZRange(ctx, s.scanKey(coll, q), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(coll, id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll, err)
	}

	snaps := make([]remote.Snapshot, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			// deleted between ZRANGE and MGET
			continue
		}
		doc, err := remote.DecodeDocument([]byte(str))
		if err != nil {
			return nil, fmt.Errorf("query %s/%s: %w", coll, ids[i], err)
		}
		snaps = append(snaps, remote.Snapshot{ID: ids[i], Data: doc})
	}
	return q.Apply(snaps), nil
}
