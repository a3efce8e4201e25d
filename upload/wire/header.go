// Package wire implements the protobuf wire encoding of the upload chunk
// header:
//
//	message UploadChunkHeader {
//	  bytes  upload_session_id = 1; // UUID, 16 bytes
//	  uint64 chunk_bytes_offset = 2;
//	  uint32 chunk_length       = 3;
//	  bytes  chunk_sha1         = 4; // 20 bytes
//	}
//
// The message is small and fixed-shape enough that hand-coding it against
// protowire avoids pulling in protoc-generated code for a single type.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ChunkHeader is the decoded form of UploadChunkHeader.
type ChunkHeader struct {
	SessionID        []byte // 16 bytes
	ChunkBytesOffset uint64
	ChunkLength      uint32
	ChunkSha1        []byte // 20 bytes
}

// Marshal encodes h using protobuf wire format, field numbers per the schema
// above.
func (h ChunkHeader) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, h.SessionID)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, h.ChunkBytesOffset)
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.ChunkLength))
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendBytes(b, h.ChunkSha1)
	return b
}

// UnmarshalChunkHeader decodes a wire-encoded UploadChunkHeader. Unknown
// fields are skipped, matching protobuf's forward-compatibility rule.
func UnmarshalChunkHeader(b []byte) (ChunkHeader, error) {
	var h ChunkHeader
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return ChunkHeader{}, fmt.Errorf("wire: invalid tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return ChunkHeader{}, fmt.Errorf("wire: invalid upload_session_id: %w", protowire.ParseError(n))
			}
			h.SessionID = append([]byte(nil), v...)
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return ChunkHeader{}, fmt.Errorf("wire: invalid chunk_bytes_offset: %w", protowire.ParseError(n))
			}
			h.ChunkBytesOffset = v
			b = b[n:]
		case 3:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return ChunkHeader{}, fmt.Errorf("wire: invalid chunk_length: %w", protowire.ParseError(n))
			}
			h.ChunkLength = uint32(v)
			b = b[n:]
		case 4:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return ChunkHeader{}, fmt.Errorf("wire: invalid chunk_sha1: %w", protowire.ParseError(n))
			}
			h.ChunkSha1 = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return ChunkHeader{}, fmt.Errorf("wire: invalid field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return h, nil
}
