package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Credential is the persisted principal with its single passkey. Times are
// unix milliseconds; LockedUntil of 0 means not locked.
type Credential struct {
	PrincipalID    string
	DisplayName    string
	CredentialID   string
	PublicKey      []byte
	SignCount      uint32
	Attributes     []byte
	FailedAttempts int
	LockedUntil    int64
	CreatedAt      int64
}

// FailureResult is returned by RecordFailure.
type FailureResult struct {
	FailedAttempts int
	Locked         bool
}

const (
	commitStatusOK int64 = iota
	commitStatusInviteNotFound
	commitStatusInviteConsumed
	commitStatusInviteExpired
	commitStatusDuplicateCredential
	commitStatusPrincipalExists
	commitStatusCeremonyMissing
)

// KEYS: invite, credential, credential index, registration ceremony
// ARGV: now_ms, principal, display name, credential id, public key, sign count, attributes
const commitRegistrationScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 1
end
if redis.call("HGET", KEYS[1], "consumed") == "1" then
  return 2
end
local expires_at = tonumber(redis.call("HGET", KEYS[1], "expires_at") or "0")
if tonumber(ARGV[1]) > expires_at then
  return 3
end
if redis.call("EXISTS", KEYS[4]) == 0 then
  return 6
end
if redis.call("EXISTS", KEYS[3]) == 1 then
  return 4
end
if redis.call("EXISTS", KEYS[2]) == 1 then
  return 5
end
redis.call("HSET", KEYS[2],
  "principal_id", ARGV[2],
  "display_name", ARGV[3],
  "credential_id", ARGV[4],
  "public_key", ARGV[5],
  "sign_count", ARGV[6],
  "attributes", ARGV[7],
  "failed_attempts", "0",
  "locked_until", "0",
  "created_at", ARGV[1])
redis.call("SET", KEYS[3], ARGV[2])
redis.call("HSET", KEYS[1], "consumed", "1")
redis.call("DEL", KEYS[4])
return 0
`

// KEYS: credential. ARGV: threshold, lock deadline ms
const recordFailureScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return {-1, 0}
end
local n = redis.call("HINCRBY", KEYS[1], "failed_attempts", 1)
if n >= tonumber(ARGV[1]) then
  redis.call("HSET", KEYS[1], "locked_until", ARGV[2])
  return {n, 1}
end
return {n, 0}
`

// KEYS: credential. ARGV: new sign count, attributes
const recordSuccessScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local current = tonumber(redis.call("HGET", KEYS[1], "sign_count") or "0")
local next_count = tonumber(ARGV[1])
if (current ~= 0 or next_count ~= 0) and next_count <= current then
  return 0
end
redis.call("HSET", KEYS[1],
  "failed_attempts", "0",
  "locked_until", "0",
  "sign_count", ARGV[1],
  "attributes", ARGV[2])
return 1
`

var (
	commitRegistrationLua = redis.NewScript(commitRegistrationScript)
	recordFailureLua      = redis.NewScript(recordFailureScript)
	recordSuccessLua      = redis.NewScript(recordSuccessScript)
)

// CredentialStore persists principals keyed by id with a unique index from
// credential id to principal id.
type CredentialStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewCredentialStore(redisClient redis.UniversalClient, prefix string) *CredentialStore {
	if prefix == "" {
		prefix = "kg"
	}
	return &CredentialStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *CredentialStore) key(principalID string) string {
	return s.prefix + ":cred:" + principalID
}

func (s *CredentialStore) indexKey(credentialID string) string {
	return s.prefix + ":credidx:" + credentialID
}

// CommitRegistration atomically re-validates the invite and its pending
// registration ceremony, creates the credential and its index entry, marks
// the invite consumed and drops the ceremony. Nothing is written unless
// every check passes. A consumed invite is reported before a missing
// ceremony, so every loser of a concurrent redemption sees ErrInviteConsumed.
func (s *CredentialStore) CommitRegistration(ctx context.Context, inviteToken string, cred *Credential, nowMillis int64) error {
	if cred == nil || cred.PrincipalID == "" || cred.CredentialID == "" {
		return errors.New("credential principal and id are required")
	}

	status, err := commitRegistrationLua.Run(ctx, s.redis,
		[]string{
			inviteKey(s.prefix, inviteToken),
			s.key(cred.PrincipalID),
			s.indexKey(cred.CredentialID),
			ceremonyKey(s.prefix, CeremonyRegistration, inviteToken),
		},
		nowMillis,
		cred.PrincipalID,
		cred.DisplayName,
		cred.CredentialID,
		cred.PublicKey,
		cred.SignCount,
		cred.Attributes,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	switch status {
	case commitStatusOK:
		cred.CreatedAt = nowMillis
		cred.FailedAttempts = 0
		cred.LockedUntil = 0
		return nil
	case commitStatusInviteNotFound:
		return ErrInviteNotFound
	case commitStatusInviteConsumed:
		return ErrInviteConsumed
	case commitStatusInviteExpired:
		return ErrInviteExpired
	case commitStatusDuplicateCredential:
		return ErrCredentialDuplicate
	case commitStatusPrincipalExists:
		return ErrPrincipalExists
	case commitStatusCeremonyMissing:
		return ErrCeremonyNotFound
	default:
		return fmt.Errorf("%w: unexpected commit status %d", ErrBackendUnavailable, status)
	}
}

// GetByCredentialID resolves the unique index and loads the credential.
func (s *CredentialStore) GetByCredentialID(ctx context.Context, credentialID string) (*Credential, error) {
	principalID, err := s.redis.Get(ctx, s.indexKey(credentialID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return s.Get(ctx, principalID)
}

// Get loads a credential by principal id.
func (s *CredentialStore) Get(ctx context.Context, principalID string) (*Credential, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(principalID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrCredentialNotFound
	}
	return decodeCredential(fields)
}

// RecordFailure increments the failure counter and, once it reaches
// threshold, sets LockedUntil to lockUntilMillis.
func (s *CredentialStore) RecordFailure(ctx context.Context, principalID string, threshold int, lockUntilMillis int64) (FailureResult, error) {
	res, err := recordFailureLua.Run(ctx, s.redis, []string{s.key(principalID)}, threshold, lockUntilMillis).Int64Slice()
	if err != nil {
		return FailureResult{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if len(res) != 2 {
		return FailureResult{}, fmt.Errorf("%w: unexpected failure reply", ErrBackendUnavailable)
	}
	if res[0] < 0 {
		return FailureResult{}, ErrCredentialNotFound
	}
	return FailureResult{FailedAttempts: int(res[0]), Locked: res[1] == 1}, nil
}

// RecordSuccess resets the failure counters and stores the new signature
// counter. It fails with ErrCounterRegression when the counter does not advance.
func (s *CredentialStore) RecordSuccess(ctx context.Context, principalID string, signCount uint32, attributes []byte) error {
	status, err := recordSuccessLua.Run(ctx, s.redis, []string{s.key(principalID)}, signCount, attributes).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	switch status {
	case 1:
		return nil
	case 0:
		return ErrCounterRegression
	default:
		return ErrCredentialNotFound
	}
}

func decodeCredential(fields map[string]string) (*Credential, error) {
	cred := &Credential{
		PrincipalID:  fields["principal_id"],
		DisplayName:  fields["display_name"],
		CredentialID: fields["credential_id"],
		PublicKey:    []byte(fields["public_key"]),
		Attributes:   []byte(fields["attributes"]),
	}

	signCount, err := strconv.ParseUint(fields["sign_count"], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("credential %s: bad sign_count: %w", cred.PrincipalID, err)
	}
	cred.SignCount = uint32(signCount)

	failed, err := strconv.Atoi(fields["failed_attempts"])
	if err != nil {
		return nil, fmt.Errorf("credential %s: bad failed_attempts: %w", cred.PrincipalID, err)
	}
	cred.FailedAttempts = failed

	if cred.LockedUntil, err = strconv.ParseInt(fields["locked_until"], 10, 64); err != nil {
		return nil, fmt.Errorf("credential %s: bad locked_until: %w", cred.PrincipalID, err)
	}
	if cred.CreatedAt, err = strconv.ParseInt(fields["created_at"], 10, 64); err != nil {
		return nil, fmt.Errorf("credential %s: bad created_at: %w", cred.PrincipalID, err)
	}
	return cred, nil
}
