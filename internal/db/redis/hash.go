package redis

import (
	"context"
	"fmt"
	"slices"

	"github.com/redis/rueidis"

	"github.com/v0idness/archipanion-ve/internal/db"
)

// HSet sets hash fields.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := s.do(ctx, s.hset(key, fields)).Error(); err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	return nil
}

// HSetMulti stores multiple hashes inside one MULTI/EXEC block sent as a single round-trip.
// Either every item is applied or, on a queueing error, none are.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, 0, len(items)+2)
	cmds = append(cmds, s.b().Multi().Build())
	for _, item := range items {
		cmds = append(cmds, s.hset(item.Key, item.Fields))
	}
	cmds = append(cmds, s.b().Exec().Build())

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			if i > 0 && i <= len(items) {
				return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", items[i-1].Key, err)}
			}
			return &db.Error{Op: db.OpExec, Err: err}
		}
	}
	return nil
}

func (s *Store) hset(key string, fields map[string]string) rueidis.Completed {
	cmd := s.b().Hset().Key(key).FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	return cmd.Build()
}

// HGetAll returns all fields of a hash. A missing key yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.do(ctx, s.b().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return m, nil
}

// HGetAllMulti fetches all fields for multiple hashes in a single DoMulti round-trip.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Hgetall().Key(key).Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	out := make([]map[string]string, len(results))
	for i, res := range results {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		out[i] = m
	}
	return out, nil
}

// Del deletes a key.
func (s *Store) Del(ctx context.Context, key string) error {
	if err := s.do(ctx, s.b().Del().Key(key).Build()).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// delBatch caps the keys sent in one DEL.
const delBatch = 256

// DelMulti deletes keys in batched DELs sent as one round-trip and returns
// how many existed.
func (s *Store) DelMulti(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	cmds := make([]rueidis.Completed, 0, (len(keys)+delBatch-1)/delBatch)
	for chunk := range slices.Chunk(keys, delBatch) {
		cmds = append(cmds, s.b().Del().Key(chunk...).Build())
	}
	deleted := 0
	for _, res := range s.client.DoMulti(ctx, cmds...) {
		n, err := res.AsInt64()
		if err != nil {
			return deleted, &db.Error{Op: db.OpDel, Err: err}
		}
		deleted += int(n)
	}
	return deleted, nil
}

// Exists checks if a key exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	count, err := s.do(ctx, s.b().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	return count > 0, nil
}

// Scan iterates keys matching a pattern.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		keys = append(keys, res.Elements...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}
