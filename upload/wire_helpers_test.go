package upload

import (
	"encoding/binary"

	"github.com/pk5ls20/echo/upload/wire"
)

// encodeFrameStream builds the raw "qwq" | head_len | body_len | head | body
// byte stream AcceptChunkStream and Decoder consume, given an already
// protobuf-encoded header and the chunk's plaintext body.
func encodeFrameStream(header wire.ChunkHeader, body []byte) []byte {
	headBytes := header.Marshal()

	var out []byte
	out = append(out, magic[:]...)

	var headLen, bodyLen [4]byte
	binary.BigEndian.PutUint32(headLen[:], uint32(len(headBytes)))
	binary.BigEndian.PutUint32(bodyLen[:], uint32(len(body)))
	out = append(out, headLen[:]...)
	out = append(out, bodyLen[:]...)
	out = append(out, headBytes...)
	out = append(out, body...)
	return out
}
