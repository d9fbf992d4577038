package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const ceremonyRecordVersion1 = 1

// CeremonyKind separates registration and sign-in ceremonies in the key space.
type CeremonyKind string

const (
	CeremonyRegistration   CeremonyKind = "reg"
	CeremonyAuthentication CeremonyKind = "auth"
)

// Ceremony is the server-held half of a pending WebAuthn exchange.
type Ceremony struct {
	PrincipalID string
	DisplayName string
	Challenge   string
	State       []byte
	ExpiresAt   int64
}

const takeCeremonyScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return false
end
redis.call("DEL", KEYS[1])
return data
`

var takeCeremonyLua = redis.NewScript(takeCeremonyScript)

// CeremonyStore keeps pending ceremonies until they are taken, committed or
// expire. A challenge can be redeemed at most once.
type CeremonyStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewCeremonyStore(redisClient redis.UniversalClient, prefix string) *CeremonyStore {
	if prefix == "" {
		prefix = "kg"
	}
	return &CeremonyStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *CeremonyStore) key(kind CeremonyKind, id string) string {
	return ceremonyKey(s.prefix, kind, id)
}

func ceremonyKey(prefix string, kind CeremonyKind, id string) string {
	return prefix + ":cer:" + string(kind) + ":" + id
}

// Save stores record under (kind, id), replacing any pending ceremony there.
func (s *CeremonyStore) Save(ctx context.Context, kind CeremonyKind, id string, record *Ceremony, ttl time.Duration) error {
	encoded, err := encodeCeremony(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(kind, id), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Take atomically reads and deletes the ceremony. Records past ExpiresAt
// are reported as not found.
func (s *CeremonyStore) Take(ctx context.Context, kind CeremonyKind, id string, now time.Time) (*Ceremony, error) {
	data, err := takeCeremonyLua.Run(ctx, s.redis, []string{s.key(kind, id)}).Text()
	return s.decode(data, err, now)
}

// Get reads the ceremony without consuming it. Registration ceremonies are
// removed by CredentialStore.CommitRegistration or by Delete.
func (s *CeremonyStore) Get(ctx context.Context, kind CeremonyKind, id string, now time.Time) (*Ceremony, error) {
	data, err := s.redis.Get(ctx, s.key(kind, id)).Result()
	return s.decode(data, err, now)
}

// Delete drops a pending ceremony. Deleting a missing one is not an error.
func (s *CeremonyStore) Delete(ctx context.Context, kind CeremonyKind, id string) error {
	if err := s.redis.Del(ctx, s.key(kind, id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (s *CeremonyStore) decode(data string, err error, now time.Time) (*Ceremony, error) {
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCeremonyNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	record, err := decodeCeremony([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCeremonyCorrupt, err)
	}
	if now.UnixMilli() > record.ExpiresAt {
		return nil, ErrCeremonyNotFound
	}
	return record, nil
}

func encodeCeremony(record *Ceremony) ([]byte, error) {
	if record == nil {
		return nil, errors.New("nil ceremony record")
	}

	var buf bytes.Buffer
	buf.WriteByte(ceremonyRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	for _, field := range []string{record.PrincipalID, record.DisplayName, record.Challenge} {
		if len(field) > 65535 {
			return nil, errors.New("ceremony field length exceeded")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(record.State))); err != nil {
		return nil, err
	}
	buf.Write(record.State)

	return buf.Bytes(), nil
}

func decodeCeremony(data []byte) (*Ceremony, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != ceremonyRecordVersion1 {
		return nil, errors.New("invalid ceremony version")
	}

	record := &Ceremony{}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	fields := make([]string, 3)
	for i := range fields {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		fields[i] = string(raw)
	}
	record.PrincipalID, record.DisplayName, record.Challenge = fields[0], fields[1], fields[2]

	var stateLen uint32
	if err := binary.Read(reader, binary.BigEndian, &stateLen); err != nil {
		return nil, err
	}
	if int64(stateLen) > int64(reader.Len()) {
		return nil, errors.New("ceremony state truncated")
	}
	record.State = make([]byte, stateLen)
	if _, err := io.ReadFull(reader, record.State); err != nil {
		return nil, err
	}

	return record, nil
}
