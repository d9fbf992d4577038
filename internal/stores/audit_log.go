package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// AuditRecord is one persisted audit log entry. CreatedAt is unix milliseconds.
type AuditRecord struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	Details   string `json:"details,omitempty"`
	Actor     string `json:"actor,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// AuditLogStore keeps entries in a Redis list, newest at the head.
type AuditLogStore struct {
	redis     redis.UniversalClient
	key       string
	maxLength int64
}

// NewAuditLogStore creates the store. maxLength caps retained entries; 0 keeps everything.
func NewAuditLogStore(redisClient redis.UniversalClient, prefix string, maxLength int) *AuditLogStore {
	if prefix == "" {
		prefix = "kg"
	}
	if maxLength < 0 {
		maxLength = 0
	}
	return &AuditLogStore{
		redis:     redisClient,
		key:       prefix + ":audit",
		maxLength: int64(maxLength),
	}
}

func (s *AuditLogStore) Append(ctx context.Context, record AuditRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.key, data)
		if s.maxLength > 0 {
			pipe.LTrim(ctx, s.key, 0, s.maxLength-1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// List returns at most limit entries, newest first.
func (s *AuditLogStore) List(ctx context.Context, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		return []AuditRecord{}, nil
	}
	raw, err := s.redis.LRange(ctx, s.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	out := make([]AuditRecord, 0, len(raw))
	for _, item := range raw {
		var rec AuditRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Clear removes every entry and leaves marker as the only record.
func (s *AuditLogStore) Clear(ctx context.Context, marker AuditRecord) error {
	data, err := json.Marshal(marker)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		pipe.LPush(ctx, s.key, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
