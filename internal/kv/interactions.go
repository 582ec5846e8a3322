package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"abaquest/internal/models"

	goredis "github.com/redis/go-redis/v9"
)

// InteractionKeyPrefix namespaces per-learner interaction lists in Redis
const InteractionKeyPrefix = "abaquest_interactions:"

// MemoryInteractionLog keeps interaction lists in process memory
type MemoryInteractionLog struct {
	mu      sync.Mutex
	entries map[string][]models.Interaction
}

// NewMemoryInteractionLog creates an empty log
func NewMemoryInteractionLog() *MemoryInteractionLog {
	return &MemoryInteractionLog{entries: map[string][]models.Interaction{}}
}

func (l *MemoryInteractionLog) Append(ctx context.Context, studentID string, entry models.Interaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[studentID] = append(l.entries[studentID], entry)
	return nil
}

func (l *MemoryInteractionLog) List(ctx context.Context, studentID string) ([]models.Interaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Interaction{}, l.entries[studentID]...), nil
}

// StudentIDs lists learners with at least one logged interaction
func (l *MemoryInteractionLog) StudentIDs(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.entries))
	for id, entries := range l.entries {
		if len(entries) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (l *MemoryInteractionLog) Clear(ctx context.Context, studentID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, studentID)
	return nil
}

// RedisInteractionLog stores each learner's interactions as a Redis list of JSON entries
type RedisInteractionLog struct {
	rdb *goredis.Client
}

// NewRedisInteractionLog shares the store's connection
func NewRedisInteractionLog(store *RedisStore) *RedisInteractionLog {
	return &RedisInteractionLog{rdb: store.Client()}
}

func (l *RedisInteractionLog) Append(ctx context.Context, studentID string, entry models.Interaction) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode interaction: %w", err)
	}
	if err := l.rdb.RPush(ctx, InteractionKeyPrefix+studentID, raw).Err(); err != nil {
		return fmt.Errorf("redis rpush: %w", err)
	}
	return nil
}

func (l *RedisInteractionLog) List(ctx context.Context, studentID string) ([]models.Interaction, error) {
	raws, err := l.rdb.LRange(ctx, InteractionKeyPrefix+studentID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	out := make([]models.Interaction, 0, len(raws))
	for i, raw := range raws {
		var entry models.Interaction
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode interaction %d: %w", i, err)
		}
		out = append(out, entry)
	}
	return out, nil
}

// StudentIDs lists learners that have an interaction list
func (l *RedisInteractionLog) StudentIDs(ctx context.Context) ([]string, error) {
	keys, err := scanKeys(ctx, l.rdb, InteractionKeyPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if id := strings.TrimPrefix(key, InteractionKeyPrefix); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (l *RedisInteractionLog) Clear(ctx context.Context, studentID string) error {
	if err := l.rdb.Del(ctx, InteractionKeyPrefix+studentID).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
