package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers for the VadPacket schema. Kept stable across versions —
// anything reading an older stream must still decode timestamp_ms and the
// oneof correctly.
const (
	fieldTimestampMs = 1
	fieldAudio       = 2
	fieldStatus      = 3

	audioFieldSampleRate = 1
	audioFieldChannels   = 2
	audioFieldSequence   = 3
	audioFieldData       = 4
)

// Encode serializes a VadPacket into its schema-encoded payload (the bytes
// that follow the 4-byte length prefix on the wire — see Framer).
func Encode(p VadPacket) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldTimestampMs, protowire.VarintType)
	b = protowire.AppendVarint(b, p.TimestampMs)

	if p.HasAudio {
		b = protowire.AppendTag(b, fieldAudio, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeAudio(p.Audio))
	} else {
		b = protowire.AppendTag(b, fieldStatus, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p.Status))
	}
	return b
}

func encodeAudio(a Audio) []byte {
	var b []byte
	b = protowire.AppendTag(b, audioFieldSampleRate, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(a.SampleRate))
	b = protowire.AppendTag(b, audioFieldChannels, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(a.Channels))
	b = protowire.AppendTag(b, audioFieldSequence, protowire.VarintType)
	b = protowire.AppendVarint(b, a.Sequence)
	b = protowire.AppendTag(b, audioFieldData, protowire.BytesType)
	b = protowire.AppendBytes(b, a.Data)
	return b
}

// Decode parses a schema-encoded VadPacket payload. Unknown fields are
// skipped (forward compatible); a malformed payload returns an error so the
// caller can log-and-discard per the malformed-input error taxonomy.
func Decode(payload []byte) (VadPacket, error) {
	var p VadPacket
	var sawOneof bool

	b := payload
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return VadPacket{}, fmt.Errorf("wire: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldTimestampMs:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return VadPacket{}, fmt.Errorf("wire: bad timestamp_ms: %w", protowire.ParseError(n))
			}
			p.TimestampMs = v
			b = b[n:]
		case fieldAudio:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return VadPacket{}, fmt.Errorf("wire: bad audio: %w", protowire.ParseError(n))
			}
			audio, err := decodeAudio(v)
			if err != nil {
				return VadPacket{}, err
			}
			p.HasAudio = true
			p.Audio = audio
			sawOneof = true
			b = b[n:]
		case fieldStatus:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return VadPacket{}, fmt.Errorf("wire: bad status: %w", protowire.ParseError(n))
			}
			p.Status = Status(v)
			sawOneof = true
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return VadPacket{}, fmt.Errorf("wire: bad field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if !sawOneof {
		return VadPacket{}, ErrMissingPayload
	}
	return p, nil
}

func decodeAudio(payload []byte) (Audio, error) {
	var a Audio
	b := payload
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Audio{}, fmt.Errorf("wire: bad audio tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case audioFieldSampleRate:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Audio{}, fmt.Errorf("wire: bad sample_rate: %w", protowire.ParseError(n))
			}
			a.SampleRate = uint32(v)
			b = b[n:]
		case audioFieldChannels:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Audio{}, fmt.Errorf("wire: bad channels: %w", protowire.ParseError(n))
			}
			a.Channels = uint32(v)
			b = b[n:]
		case audioFieldSequence:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Audio{}, fmt.Errorf("wire: bad sequence: %w", protowire.ParseError(n))
			}
			a.Sequence = v
			b = b[n:]
		case audioFieldData:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Audio{}, fmt.Errorf("wire: bad data: %w", protowire.ParseError(n))
			}
			a.Data = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Audio{}, fmt.Errorf("wire: bad audio field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return a, nil
}
