package upload

import (
	"bytes"
	"testing"

	"github.com/pk5ls20/echo/upload/wire"
)

func drainFrames(t *testing.T, dec *Decoder, stream []byte) []Frame {
	t.Helper()
	dec.Push(stream)
	var frames []Frame
	for {
		f, ok, err := dec.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		frames = append(frames, f)
	}
	return frames
}

func TestCodecFramingTotality(t *testing.T) {
	header := wire.ChunkHeader{
		SessionID:        bytes.Repeat([]byte{0x01}, 16),
		ChunkBytesOffset: 0,
		ChunkLength:      10,
		ChunkSha1:        bytes.Repeat([]byte{0x02}, 20),
	}
	body := []byte("0123456789")
	stream := encodeFrameStream(header, body)

	limits := Limits{FlushStreamSize: 8192, MaxHeadSize: 1024, MaxBodySize: 8192}
	dec := NewDecoder(limits)
	frames := drainFrames(t, dec, stream)

	if len(frames) < 3 {
		t.Fatalf("expected at least header/body/end frames, got %d", len(frames))
	}
	if frames[0].Kind != FrameHeader {
		t.Fatalf("expected first frame to be FrameHeader, got %v", frames[0].Kind)
	}
	last := frames[len(frames)-1]
	if last.Kind != FrameEnd {
		t.Fatalf("expected last frame to be FrameEnd, got %v", last.Kind)
	}

	var gotBody []byte
	for _, f := range frames[1 : len(frames)-1] {
		if f.Kind != FrameBody {
			t.Fatalf("expected FrameBody in the middle, got %v", f.Kind)
		}
		gotBody = append(gotBody, f.Data...)
	}
	if !bytes.Equal(gotBody, body) {
		t.Fatalf("reassembled body = %q, want %q", gotBody, body)
	}
}

func TestCodecFramingByteAtATime(t *testing.T) {
	header := wire.ChunkHeader{
		SessionID:        bytes.Repeat([]byte{0xaa}, 16),
		ChunkBytesOffset: 0,
		ChunkLength:      5,
		ChunkSha1:        bytes.Repeat([]byte{0xbb}, 20),
	}
	body := []byte("hello")
	stream := encodeFrameStream(header, body)

	limits := Limits{FlushStreamSize: 8192, MaxHeadSize: 1024, MaxBodySize: 8192}
	dec := NewDecoder(limits)

	var frames []Frame
	for _, b := range stream {
		dec.Push([]byte{b})
		for {
			f, ok, err := dec.Next()
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if !ok {
				break
			}
			frames = append(frames, f)
		}
	}

	if len(frames) < 3 || frames[0].Kind != FrameHeader || frames[len(frames)-1].Kind != FrameEnd {
		t.Fatalf("unexpected frame sequence fed byte at a time: %+v", frames)
	}
}

func TestCodecRejectsBadMagic(t *testing.T) {
	stream := append([]byte("xyq"), make([]byte, 8)...)
	dec := NewDecoder(Limits{FlushStreamSize: 8192, MaxHeadSize: 1024, MaxBodySize: 8192})
	dec.Push(stream)
	_, _, err := dec.Next()
	if err == nil {
		t.Fatal("expected invalid magic error")
	}
	pe, ok := err.(*ProtocolError)
	if !ok || pe.Kind != ProtoErrInvalidMagic {
		t.Fatalf("expected ProtoErrInvalidMagic, got %v", err)
	}
}
