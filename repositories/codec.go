package repositories

import (
	"fmt"
	"time"

	"kutter/domain"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the stored message record.
// The layout is wire compatible with:
//
//	message Message {
//	  int64  id         = 1;
//	  string user_id    = 2;
//	  string email      = 3;
//	  string username   = 4;
//	  string body       = 5;
//	  int64  created_at = 6; // unix nanoseconds
//	}
const (
	fieldID        protowire.Number = 1
	fieldUserID    protowire.Number = 2
	fieldEmail     protowire.Number = 3
	fieldUsername  protowire.Number = 4
	fieldBody      protowire.Number = 5
	fieldCreatedAt protowire.Number = 6
)

func marshalMessage(m domain.Message) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.ID))
	b = appendString(b, fieldUserID, m.Author.UserID)
	b = appendString(b, fieldEmail, m.Author.Email)
	b = appendString(b, fieldUsername, m.Author.Username)
	b = appendString(b, fieldBody, m.Body)
	b = protowire.AppendTag(b, fieldCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.CreatedAt.UnixNano()))
	return b
}

func appendString(b []byte, num protowire.Number, value string) []byte {
	if value == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, value)
}

func unmarshalMessage(b []byte) (domain.Message, error) {
	var m domain.Message
	var createdAt int64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return domain.Message{}, fmt.Errorf("decode tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return domain.Message{}, fmt.Errorf("decode id: %w", protowire.ParseError(n))
			}
			m.ID = domain.MessageID(v)
			b = b[n:]
		case num == fieldCreatedAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return domain.Message{}, fmt.Errorf("decode created_at: %w", protowire.ParseError(n))
			}
			createdAt = int64(v)
			b = b[n:]
		case typ == protowire.BytesType && num >= fieldUserID && num <= fieldBody:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return domain.Message{}, fmt.Errorf("decode field %d: %w", num, protowire.ParseError(n))
			}
			switch num {
			case fieldUserID:
				m.Author.UserID = v
			case fieldEmail:
				m.Author.Email = v
			case fieldUsername:
				m.Author.Username = v
			case fieldBody:
				m.Body = v
			}
			b = b[n:]
		default:
			// Unknown fields are skipped
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return domain.Message{}, fmt.Errorf("skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	m.CreatedAt = time.Unix(0, createdAt).UTC()
	return m, nil
}
