package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Invite is the persisted form of an invitation token. Times are unix milliseconds.
type Invite struct {
	Token          string
	RecipientLabel string
	CreatedAt      int64
	ExpiresAt      int64
	Consumed       bool
}

const createInviteScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1],
  "label", ARGV[1],
  "created_at", ARGV[2],
  "expires_at", ARGV[3],
  "consumed", "0")
redis.call("PEXPIREAT", KEYS[1], ARGV[4])
return 1
`

var createInviteLua = redis.NewScript(createInviteScript)

// InviteStore keeps one Redis hash per invite token. Consumption happens in
// the credential store's registration script so it is atomic with the
// credential write.
type InviteStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewInviteStore(redisClient redis.UniversalClient, prefix string) *InviteStore {
	if prefix == "" {
		prefix = "kg"
	}
	return &InviteStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *InviteStore) key(token string) string {
	return inviteKey(s.prefix, token)
}

func inviteKey(prefix, token string) string {
	return prefix + ":inv:" + token
}

// Create stores inv unless the token already exists. The Redis key outlives
// ExpiresAt by grace so late lookups still report "expired" rather than "not found".
func (s *InviteStore) Create(ctx context.Context, inv *Invite, grace time.Duration) error {
	if inv == nil || inv.Token == "" {
		return errors.New("invite token is required")
	}
	if grace < 0 {
		grace = 0
	}
	evictAt := inv.ExpiresAt + grace.Milliseconds()

	created, err := createInviteLua.Run(ctx, s.redis, []string{s.key(inv.Token)},
		inv.RecipientLabel,
		inv.CreatedAt,
		inv.ExpiresAt,
		evictAt,
	).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if created == 0 {
		return ErrInviteExists
	}
	return nil
}

// Get returns the invite without mutating it. Expiry is judged by the caller.
func (s *InviteStore) Get(ctx context.Context, token string) (*Invite, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrInviteNotFound
	}

	inv := &Invite{
		Token:          token,
		RecipientLabel: fields["label"],
		Consumed:       fields["consumed"] == "1",
	}
	if inv.CreatedAt, err = strconv.ParseInt(fields["created_at"], 10, 64); err != nil {
		return nil, fmt.Errorf("invite %s: bad created_at: %w", token, err)
	}
	if inv.ExpiresAt, err = strconv.ParseInt(fields["expires_at"], 10, 64); err != nil {
		return nil, fmt.Errorf("invite %s: bad expires_at: %w", token, err)
	}
	return inv, nil
}
