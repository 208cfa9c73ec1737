package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"langaccessor/logger"
	"langaccessor/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisSuffixSettings = "settings:"
	redisSuffixRules    = "installed_rules"
	redisSuffixChanges  = "changes"

	redisMaxTxRetries = 5
)

// RedisStore keeps settings as plain string keys, installed rules in a hash, and
// announces changes on a Pub/Sub channel so every process sharing the server sees them.
type RedisStore struct {
	rdb      *redis.Client
	prefix   string
	instance string
	notifier
}

// ChangeMessage is published on the changes channel after every committed Set.
type ChangeMessage struct {
	Keys      []string `json:"keys"`
	Origin    string   `json:"origin"`
	Timestamp int64    `json:"timestamp"`
}

// NewRedisStore wraps client. prefix namespaces every key, e.g. "langaccessor:".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if len(prefix) > 0 && prefix[len(prefix)-1] != ':' {
		prefix += ":"
	}
	return &RedisStore{rdb: client, prefix: prefix, instance: uuid.NewString()}
}

func (r *RedisStore) keySetting(key string) string {
	return r.prefix + redisSuffixSettings + key
}

func (r *RedisStore) keyRules() string {
	return r.prefix + redisSuffixRules
}

func (r *RedisStore) keyChanges() string {
	return r.prefix + redisSuffixChanges
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

func (r *RedisStore) Get(ctx context.Context, keys ...string) (map[string]string, error) {
	return r.mget(ctx, r.rdb, keys)
}

// mgetter is the part of *redis.Client and *redis.Tx that mget needs.
type mgetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

func (r *RedisStore) mget(ctx context.Context, c mgetter, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = r.keySetting(k)
	}
	vals, err := c.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis MGET settings: %w", err)
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[keys[i]] = s
		}
	}
	return out, nil
}

// Set writes values under WATCH so a concurrent writer forces a retry instead of a lost update.
func (r *RedisStore) Set(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	watched := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
		watched = append(watched, r.keySetting(k))
	}

	var changed []string
	txf := func(tx *redis.Tx) error {
		current, err := r.mget(ctx, tx, keys)
		if err != nil {
			return err
		}
		changed = changed[:0]
		for _, k := range keys {
			if old, ok := current[k]; ok && old == values[k] {
				continue
			}
			changed = append(changed, k)
		}
		if len(changed) == 0 {
			return nil
		}
		msg, err := json.Marshal(ChangeMessage{Keys: changed, Origin: r.instance, Timestamp: time.Now().UnixMilli()})
		if err != nil {
			return fmt.Errorf("marshalling change message: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, k := range changed {
				pipe.Set(ctx, r.keySetting(k), values[k], 0)
			}
			pipe.Publish(ctx, r.keyChanges(), string(msg))
			return nil
		})
		return err
	}

	for attempt := 0; attempt < redisMaxTxRetries; attempt++ {
		err := r.rdb.Watch(ctx, txf, watched...)
		if err == nil {
			r.notify(changed)
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			logger.Debug("RedisStore: optimistic lock failed on attempt %d, retrying", attempt+1)
			continue
		}
		return fmt.Errorf("redis set settings: %w", err)
	}
	return fmt.Errorf("redis set settings: %w after %d attempts", redis.TxFailedErr, redisMaxTxRetries)
}

func (r *RedisStore) Subscribe(fn ChangeListener) func() {
	return r.subscribe(fn)
}

// Listen relays change messages published by other processes to local listeners.
// It blocks until ctx is cancelled.
func (r *RedisStore) Listen(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.keyChanges())
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", r.keyChanges(), err)
	}
	logger.Info("RedisStore: listening for changes on %s", r.keyChanges())

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg ChangeMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				logger.Error("RedisStore: ignoring malformed change message: %v", err)
				continue
			}
			if msg.Origin == r.instance {
				continue
			}
			logger.Debug("RedisStore: change from %s for keys %v", msg.Origin, msg.Keys)
			r.notify(msg.Keys)
		}
	}
}

func (r *RedisStore) LoadRules(ctx context.Context) ([]models.Rule, error) {
	raw, err := r.rdb.HGetAll(ctx, r.keyRules()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis HGETALL rules: %w", err)
	}
	rules := make([]models.Rule, 0, len(raw))
	for field, v := range raw {
		id, err := strconv.Atoi(field)
		if err != nil || id <= 0 {
			logger.Error("LoadRules: dropping rule with bad id field %q", field)
			continue
		}
		var rule models.Rule
		if err := json.Unmarshal([]byte(v), &rule); err != nil {
			logger.Error("LoadRules: dropping unreadable rule %d: %v", id, err)
			continue
		}
		rule.ID = id
		rules = append(rules, rule)
	}
	sortRules(rules)
	return rules, nil
}

func (r *RedisStore) SaveRules(ctx context.Context, rules []models.Rule) error {
	fields := make([]interface{}, 0, len(rules)*2)
	for _, rule := range rules {
		raw, err := json.Marshal(rule)
		if err != nil {
			return fmt.Errorf("marshalling rule %d: %w", rule.ID, err)
		}
		fields = append(fields, strconv.Itoa(rule.ID), string(raw))
	}
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.keyRules())
		if len(fields) > 0 {
			pipe.HSet(ctx, r.keyRules(), fields...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save rules: %w", err)
	}
	return nil
}
