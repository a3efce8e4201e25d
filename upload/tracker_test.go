package upload

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/pk5ls20/echo/upload/wire"
)

const testChunkSize = 5

func sha1Hex(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}

func mustSha1Raw(b []byte) []byte {
	sum := sha1.Sum(b)
	return sum[:]
}

// newTestSession assembles a session fixture: a freshly generated session id,
// tracker metadata derived from fileContent, and scratch tmp/final dirs.
func newTestSession(t *testing.T, fileContent []byte) (*Session, uuid.UUID) {
	t.Helper()
	sessionID := uuid.New()
	meta := SessionMeta{
		FileName:     "note.txt",
		FileMimeType: "text/plain; charset=utf-8",
		FileSize:     uint64(len(fileContent)),
		FileSha1Hex:  sha1Hex(fileContent),
	}
	sess, err := NewSession(meta, sessionID, testChunkSize, t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return sess, sessionID
}

func submitChunk(t *testing.T, sess *Session, sessionID uuid.UUID, offset uint64, body []byte) error {
	t.Helper()
	header := wire.ChunkHeader{
		SessionID:        sessionID[:],
		ChunkBytesOffset: offset,
		ChunkLength:      uint32(len(body)),
		ChunkSha1:        mustSha1Raw(body),
	}
	stream := encodeFrameStream(header, body)
	limits := Limits{FlushStreamSize: 8192, MaxHeadSize: 1024, MaxBodySize: 8192}
	return sess.AcceptChunkStream(context.Background(), bytes.NewReader(stream), limits)
}

func TestUploadRoundTrip(t *testing.T) {
	content := []byte("abcdefghij") // two 5-byte chunks
	sess, sessionID := newTestSession(t, content)

	if err := submitChunk(t, sess, sessionID, 0, content[0:5]); err != nil {
		t.Fatalf("submit chunk 0: %v", err)
	}
	if err := submitChunk(t, sess, sessionID, 5, content[5:10]); err != nil {
		t.Fatalf("submit chunk 1: %v", err)
	}
	if err := sess.Merge(); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	fileName, _, err := sess.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if fileName != "note.txt" {
		t.Fatalf("expected file name note.txt, got %q", fileName)
	}
}

func TestUploadChunkRetryIdempotent(t *testing.T) {
	content := []byte("abcdefghij")
	sess, sessionID := newTestSession(t, content)

	if err := submitChunk(t, sess, sessionID, 0, content[0:5]); err != nil {
		t.Fatalf("submit chunk 0 first time: %v", err)
	}
	// Retry the same chunk (e.g. after a client-side timeout and resend).
	if err := submitChunk(t, sess, sessionID, 0, content[0:5]); err != nil {
		t.Fatalf("submit chunk 0 retry: %v", err)
	}
	if err := submitChunk(t, sess, sessionID, 5, content[5:10]); err != nil {
		t.Fatalf("submit chunk 1: %v", err)
	}

	if got, want := sess.receivedBytes.Load(), uint64(len(content)); got != want {
		t.Fatalf("receivedBytes must not double count a retried chunk: got %d want %d", got, want)
	}

	if err := sess.Merge(); err != nil {
		t.Fatalf("Merge: %v", err)
	}
}

func TestUploadMergeFailsWhenChunkMissing(t *testing.T) {
	content := []byte("abcdefghij")
	sess, sessionID := newTestSession(t, content)

	if err := submitChunk(t, sess, sessionID, 0, content[0:5]); err != nil {
		t.Fatalf("submit chunk 0: %v", err)
	}
	if err := sess.Merge(); err == nil {
		t.Fatal("expected Merge to fail with one chunk missing")
	}
}

func TestUploadChunkSessionIDMismatchRejected(t *testing.T) {
	content := []byte("abcdefghij")
	sess, _ := newTestSession(t, content)
	wrongID := uuid.New()

	if err := submitChunk(t, sess, wrongID, 0, content[0:5]); err == nil {
		t.Fatal("expected session id mismatch error")
	}
}

func TestUploadChunkBadSha1Rejected(t *testing.T) {
	content := []byte("abcdefghij")
	sess, sessionID := newTestSession(t, content)

	header := wire.ChunkHeader{
		SessionID:        sessionID[:],
		ChunkBytesOffset: 0,
		ChunkLength:      5,
		ChunkSha1:        bytes.Repeat([]byte{0xff}, 20),
	}
	stream := encodeFrameStream(header, content[0:5])
	limits := Limits{FlushStreamSize: 8192, MaxHeadSize: 1024, MaxBodySize: 8192}
	if err := sess.AcceptChunkStream(context.Background(), bytes.NewReader(stream), limits); err == nil {
		t.Fatal("expected chunk sha1 mismatch error")
	}
}

func TestSessionTempFileExistsBeforeCommit(t *testing.T) {
	content := []byte("abcdefghij")
	sess, sessionID := newTestSession(t, content)
	if err := submitChunk(t, sess, sessionID, 0, content[0:5]); err != nil {
		t.Fatalf("submit chunk 0: %v", err)
	}
	if err := submitChunk(t, sess, sessionID, 5, content[5:10]); err != nil {
		t.Fatalf("submit chunk 1: %v", err)
	}
	if err := sess.Merge(); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if _, err := os.Stat(sess.tmpFile.Name()); err != nil {
		t.Fatalf("expected temp file to still exist before Commit: %v", err)
	}
}
