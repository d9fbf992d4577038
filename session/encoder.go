package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const sessionFormatVersionCurrent = 1

// Encode serializes s into the compact binary record stored in Redis.
// The session id is the key and is not part of the record.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	if s.Kind != KindUser && s.Kind != KindAdmin {
		return nil, errors.New("invalid session kind")
	}

	var buf bytes.Buffer
	buf.Grow(2 + len(s.PrincipalID) + 1 + 16)

	buf.WriteByte(sessionFormatVersionCurrent)
	buf.WriteByte(byte(s.Kind))

	if len(s.PrincipalID) > 255 {
		return nil, errors.New("principalID too long")
	}
	buf.WriteByte(byte(len(s.PrincipalID)))
	buf.WriteString(s.PrincipalID)

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, errors.New("invalid session version")
	}

	s := &Session{}

	kind, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	s.Kind = Kind(kind)
	if s.Kind != KindUser && s.Kind != KindAdmin {
		return nil, errors.New("invalid session kind")
	}

	principalLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	principalID := make([]byte, principalLen)
	if _, err := io.ReadFull(reader, principalID); err != nil {
		return nil, err
	}
	s.PrincipalID = string(principalID)

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing session bytes")
	}

	return s, nil
}
