package notify

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// dayTTL keeps a day's sets long enough to survive midnight in any zone.
const dayTTL = 48 * time.Hour

// RedisDayStore shares fired and dismissed sets between sessions of the same
// user. Each day is a pair of Redis sets that expire on their own.
type RedisDayStore struct {
	client *redis.Client
	prefix string
}

// NewRedisDayStore connects to redisURL. scope separates users.
func NewRedisDayStore(redisURL, scope string) (*RedisDayStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisDayStoreWithClient(client, scope), nil
}

// NewRedisDayStoreWithClient creates a store from an existing client.
func NewRedisDayStoreWithClient(client *redis.Client, scope string) *RedisDayStore {
	prefix := "cic:reminders:"
	if scope != "" {
		prefix += scope + ":"
	}
	return &RedisDayStore{client: client, prefix: prefix}
}

func (s *RedisDayStore) key(day, set string) string {
	return s.prefix + day + ":" + set
}

// Load reads day's sets. Missing keys are empty sets.
func (s *RedisDayStore) Load(ctx context.Context, day string) (DayState, error) {
	fired, err := s.client.SMembers(ctx, s.key(day, "fired")).Result()
	if err != nil && err != redis.Nil {
		return DayState{Day: day}, fmt.Errorf("load fired reminders: %w", err)
	}
	dismissed, err := s.client.SMembers(ctx, s.key(day, "dismissed")).Result()
	if err != nil && err != redis.Nil {
		return DayState{Day: day}, fmt.Errorf("load dismissed reminders: %w", err)
	}
	sort.Strings(fired)
	sort.Strings(dismissed)
	return DayState{Day: day, Fired: fired, Dismissed: dismissed}, nil
}

// Save replaces day's sets atomically.
func (s *RedisDayStore) Save(ctx context.Context, st DayState) error {
	if st.Day == "" {
		return fmt.Errorf("save reminder day state: empty day")
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for set, keys := range map[string][]string{"fired": st.Fired, "dismissed": st.Dismissed} {
			k := s.key(st.Day, set)
			pipe.Del(ctx, k)
			if len(keys) == 0 {
				continue
			}
			members := make([]any, len(keys))
			for i, v := range keys {
				members[i] = v
			}
			pipe.SAdd(ctx, k, members...)
			pipe.Expire(ctx, k, dayTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save reminder day state: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *RedisDayStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisDayStore) Close() error {
	return s.client.Close()
}
