// Package history keeps the recent-outcomes feed for each shared
// table in Redis as a capped list, newest first.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// keep is how many outcomes are retained per table.
const keep = 25

// Entry is one recorded outcome.
type Entry struct {
	Winner     string    `json:"winner"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Service records winners per table. With no Redis configured it
// degrades to an in-memory ring so the engine never depends on Redis
// being up.
type Service struct {
	client *redis.Client

	mu  sync.Mutex
	mem map[string][]Entry
}

// New connects to Redis at addr. An empty addr selects the in-memory
// fallback.
func New(addr, password string, db int) (*Service, error) {
	if addr == "" {
		log.Warn("no redis address configured, outcome history is in-memory only")
		return &Service{mem: make(map[string][]Entry)}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Service{client: client}, nil
}

func key(tableID string) string {
	return fmt.Sprintf("history:%s", tableID)
}

// Record prepends a winner to the table's feed and trims it to the cap.
func (s *Service) Record(ctx context.Context, tableID, winner string) error {
	e := Entry{Winner: winner, RecordedAt: time.Now().UTC()}

	if s.client == nil {
		s.mu.Lock()
		s.mem[tableID] = append([]Entry{e}, s.mem[tableID]...)
		if len(s.mem[tableID]) > keep {
			s.mem[tableID] = s.mem[tableID][:keep]
		}
		s.mu.Unlock()
		return nil
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.LPush(ctx, key(tableID), data)
	pipe.LTrim(ctx, key(tableID), 0, keep-1)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to n outcomes for a table, newest first.
func (s *Service) Recent(ctx context.Context, tableID string, n int) ([]Entry, error) {
	if n <= 0 || n > keep {
		n = keep
	}

	if s.client == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		entries := s.mem[tableID]
		if len(entries) > n {
			entries = entries[:n]
		}
		return entries, nil
	}

	raw, err := s.client.LRange(ctx, key(tableID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Close releases the Redis connection.
func (s *Service) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
