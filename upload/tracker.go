package upload

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/pk5ls20/echo/upload/wire"
)

var (
	errUnreachableState = errors.New("upload: unreachable state transition")
	errUnexpectedEOF    = errors.New("upload: unexpected end of chunk stream")
)

// SessionMeta describes the file an upload session was created for, as
// declared by the client at upload/create time.
type SessionMeta struct {
	FileName     string
	FileMimeType string
	FileSize     uint64
	FileSha1Hex  string // hex-encoded 20-byte sha1
}

// acState is the per-chunk state machine AcceptChunkStream drives.
type acState int

const (
	acWaitingHeader acState = iota
	acReceivingBody
	acDone
)

// Session is a single upload's tracked state. It is safe for concurrent
// use: distinct chunk indices proceed in parallel, each
// gated by its own semaphore, while merge/commit take an exclusive lock.
type Session struct {
	sessionID    uuid.UUID
	fileName     string
	fileMimeType string // declared MIME, normalized to its bare media type
	fileSize     uint64
	fileSha1     [20]byte
	chunkSize    uint32

	tmpFile         *os.File
	finalStorageDir string

	fileExtMu sync.Mutex
	fileExt   string

	seen          []atomic.Bool
	chunkGuards   []*semaphore.Weighted
	receivedBytes atomic.Uint64

	exclusiveLock sync.Mutex
}

// NewSession creates a named temporary file in tmpDir sized to meta.FileSize
// (sparse), and allocates the per-chunk bookkeeping structures.
func NewSession(meta SessionMeta, sessionID uuid.UUID, chunkSize uint32, tmpDir, finalStorageDir string) (*Session, error) {
	fileSha1Bytes, err := hex.DecodeString(meta.FileSha1Hex)
	if err != nil {
		return nil, fmt.Errorf("upload: decode declared sha1: %w", err)
	}
	if len(fileSha1Bytes) != 20 {
		return nil, fmt.Errorf("upload: declared sha1 must be 20 bytes, got %d", len(fileSha1Bytes))
	}

	declaredMime := meta.FileMimeType
	if mt, _, err := mime.ParseMediaType(declaredMime); err == nil {
		declaredMime = mt
	}

	f, err := os.CreateTemp(tmpDir, "echo-upload-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("upload: create temp file: %w", err)
	}
	if err := f.Truncate(int64(meta.FileSize)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("upload: size temp file: %w", err)
	}

	numChunks := (meta.FileSize + uint64(chunkSize) - 1) / uint64(chunkSize)
	if meta.FileSize == 0 {
		numChunks = 0
	}

	s := &Session{
		sessionID:       sessionID,
		fileName:        meta.FileName,
		fileMimeType:    declaredMime,
		fileSize:        meta.FileSize,
		chunkSize:       chunkSize,
		tmpFile:         f,
		finalStorageDir: finalStorageDir,
		seen:            make([]atomic.Bool, numChunks),
		chunkGuards:     make([]*semaphore.Weighted, numChunks),
	}
	copy(s.fileSha1[:], fileSha1Bytes)
	for i := range s.chunkGuards {
		s.chunkGuards[i] = semaphore.NewWeighted(1)
	}
	return s, nil
}

func (s *Session) chunkIdx(offset uint64) (int, error) {
	if offset >= s.fileSize {
		return 0, &ConsistencyError{Kind: ConsistencyErrChunkOffsetOutOfBounds, Offset: offset, Size: s.fileSize}
	}
	cs := uint64(s.chunkSize)
	if offset%cs != 0 {
		return 0, &ConsistencyError{Kind: ConsistencyErrChunkNotAligned, Offset: offset}
	}
	return int(offset / cs), nil
}

func (s *Session) expectedChunkLen(offset uint64) uint64 {
	remaining := s.fileSize - offset
	if uint64(s.chunkSize) < remaining {
		return uint64(s.chunkSize)
	}
	return remaining
}

// AcceptChunkStream drives the per-chunk state machine (Header -> one or
// more BodyChunk -> End) for exactly one chunk, reading raw framed bytes
// from r. It acquires the chunk's semaphore before mutating any shared
// state and releases it before returning, success or failure.
func (s *Session) AcceptChunkStream(ctx context.Context, r io.Reader, limits Limits) error {
	dec := NewDecoder(limits)
	state := acWaitingHeader

	var (
		header   wire.ChunkHeader
		idx      int
		hasher   = sha1.New()
		innerOff uint64
		acquired bool
	)
	release := func() {
		if acquired {
			s.chunkGuards[idx].Release(1)
			acquired = false
		}
	}
	defer release()

	buf := make([]byte, 32*1024)
	for {
		frame, ok, err := dec.Next()
		if err != nil {
			return wrapTracker("accept_chunk_stream", err)
		}
		if !ok {
			n, rerr := r.Read(buf)
			if n > 0 {
				dec.Push(buf[:n])
			}
			if rerr != nil {
				if errors.Is(rerr, io.EOF) {
					if n > 0 {
						continue
					}
					if state == acDone {
						return nil
					}
					return wrapTracker("accept_chunk_stream", errUnexpectedEOF)
				}
				return wrapTracker("accept_chunk_stream", rerr)
			}
			continue
		}

		switch frame.Kind {
		case FrameHeader:
			if state != acWaitingHeader {
				return wrapTracker("accept_chunk_stream", errUnreachableState)
			}
			h, err := wire.UnmarshalChunkHeader(frame.Data)
			if err != nil {
				return wrapTracker("accept_chunk_stream", err)
			}
			if !bytes.Equal(h.SessionID, s.sessionID[:]) {
				got, _ := uuid.FromBytes(h.SessionID)
				return wrapTracker("accept_chunk_stream", &ConsistencyError{
					Kind: ConsistencyErrSessionIDMismatch, Expected: s.sessionID.String(), Got: got.String(),
				})
			}
			if h.ChunkLength == 0 {
				return wrapTracker("accept_chunk_stream", &ConsistencyError{Kind: ConsistencyErrInvalidChunkLength, Offset: h.ChunkBytesOffset})
			}
			if h.ChunkBytesOffset+uint64(h.ChunkLength) > s.fileSize {
				return wrapTracker("accept_chunk_stream", &ConsistencyError{
					Kind: ConsistencyErrChunkOffsetOutOfBounds, Offset: h.ChunkBytesOffset + uint64(h.ChunkLength), Size: s.fileSize,
				})
			}
			if uint64(h.ChunkLength) != s.expectedChunkLen(h.ChunkBytesOffset) {
				return wrapTracker("accept_chunk_stream", &ConsistencyError{Kind: ConsistencyErrInvalidChunkLength, Offset: h.ChunkBytesOffset})
			}
			ci, err := s.chunkIdx(h.ChunkBytesOffset)
			if err != nil {
				return wrapTracker("accept_chunk_stream", err)
			}
			if err := s.chunkGuards[ci].Acquire(ctx, 1); err != nil {
				return wrapTracker("accept_chunk_stream", err)
			}
			acquired = true
			idx = ci
			header = h
			innerOff = 0
			hasher.Reset()
			state = acReceivingBody

		case FrameBody:
			if state != acReceivingBody {
				return wrapTracker("accept_chunk_stream", errUnreachableState)
			}
			if idx == 0 && innerOff == 0 {
				if err := s.inferAndCheckMime(frame.Data); err != nil {
					return wrapTracker("accept_chunk_stream", err)
				}
			}
			hasher.Write(frame.Data)
			if _, err := s.tmpFile.WriteAt(frame.Data, int64(header.ChunkBytesOffset+innerOff)); err != nil {
				return wrapTracker("accept_chunk_stream", err)
			}
			innerOff += uint64(len(frame.Data))

		case FrameEnd:
			if state != acReceivingBody {
				return wrapTracker("accept_chunk_stream", errUnreachableState)
			}
			if innerOff != uint64(header.ChunkLength) {
				return wrapTracker("accept_chunk_stream", &ConsistencyError{Kind: ConsistencyErrInvalidChunkLength, Offset: header.ChunkBytesOffset})
			}
			sum := hasher.Sum(nil)
			if !bytes.Equal(sum, header.ChunkSha1) {
				return wrapTracker("accept_chunk_stream", &ConsistencyError{
					Kind: ConsistencyErrChunkSha1Mismatch, Offset: header.ChunkBytesOffset,
					Expected: hex.EncodeToString(header.ChunkSha1), Got: hex.EncodeToString(sum),
				})
			}
			if s.seen[idx].CompareAndSwap(false, true) {
				s.receivedBytes.Add(uint64(header.ChunkLength))
			}
			state = acDone
			release()
		}
	}
}

// inferAndCheckMime sniffs the file's MIME type from the first bytes of the
// first chunk. net/http.DetectContentType has no "inconclusive" result of
// its own; its generic fallback "application/octet-stream" is treated as
// the inconclusive case, since nothing more specific matched any signature.
func (s *Session) inferAndCheckMime(prefix []byte) error {
	detected := http.DetectContentType(prefix)
	mediaType, _, err := mime.ParseMediaType(detected)
	if err != nil {
		mediaType = detected
	}
	if mediaType == "application/octet-stream" {
		return &ConsistencyError{Kind: ConsistencyErrFailedInferMimeType}
	}
	if mediaType != s.fileMimeType {
		return &ConsistencyError{Kind: ConsistencyErrInvalidMimeType, Expected: s.fileMimeType, Got: mediaType}
	}
	exts, _ := mime.ExtensionsByType(mediaType)
	ext := ""
	if len(exts) > 0 {
		ext = strings.TrimPrefix(exts[0], ".")
	}
	s.fileExtMu.Lock()
	s.fileExt = ext
	s.fileExtMu.Unlock()
	return nil
}

// Merge verifies that every chunk has been received and that the whole
// file's SHA-1 matches the declared value. It holds the tracker's exclusive
// lock for its duration.
func (s *Session) Merge() error {
	s.exclusiveLock.Lock()
	defer s.exclusiveLock.Unlock()

	var undone []int
	for i := range s.seen {
		if !s.seen[i].Load() {
			undone = append(undone, i)
		}
	}
	if len(undone) > 0 {
		return wrapTracker("merge", &ConsistencyError{Kind: ConsistencyErrSeenBytesRetained, Undone: undone})
	}
	received := s.receivedBytes.Load()
	if received != s.fileSize {
		return wrapTracker("merge", &ConsistencyError{Kind: ConsistencyErrBytesRetained, ReceivedBytes: received})
	}

	if err := s.tmpFile.Sync(); err != nil {
		return wrapTracker("merge", err)
	}
	if _, err := s.tmpFile.Seek(0, io.SeekStart); err != nil {
		return wrapTracker("merge", err)
	}
	hasher := sha1.New()
	if _, err := io.Copy(hasher, s.tmpFile); err != nil {
		return wrapTracker("merge", err)
	}
	sum := hasher.Sum(nil)
	if !bytes.Equal(sum, s.fileSha1[:]) {
		return wrapTracker("merge", &ConsistencyError{
			Kind: ConsistencyErrFileSha1Mismatch, Expected: hex.EncodeToString(s.fileSha1[:]), Got: hex.EncodeToString(sum),
		})
	}
	return nil
}

// Commit copies the temp file into its final location and closes/removes
// the temp file. It consumes the tracker: callers must not use s again.
func (s *Session) Commit() (fileName, ext string, err error) {
	s.exclusiveLock.Lock()
	defer s.exclusiveLock.Unlock()

	s.fileExtMu.Lock()
	ext = s.fileExt
	s.fileExtMu.Unlock()

	finalPath := filepath.Join(s.finalStorageDir, s.sessionID.String())
	if ext != "" {
		finalPath += "." + ext
	}
	if err := os.MkdirAll(s.finalStorageDir, 0o755); err != nil {
		return "", "", wrapTracker("commit", err)
	}

	if _, err := s.tmpFile.Seek(0, io.SeekStart); err != nil {
		return "", "", wrapTracker("commit", err)
	}
	out, err := os.Create(finalPath)
	if err != nil {
		return "", "", wrapTracker("commit", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, s.tmpFile); err != nil {
		return "", "", wrapTracker("commit", err)
	}

	tmpName := s.tmpFile.Name()
	s.tmpFile.Close()
	os.Remove(tmpName)

	return s.fileName, ext, nil
}

// Cleanup discards an abandoned session's temp file. The store's TTL sweep
// calls it for evicted sessions; committed sessions clean up in Commit.
func (s *Session) Cleanup() {
	s.exclusiveLock.Lock()
	defer s.exclusiveLock.Unlock()

	tmpName := s.tmpFile.Name()
	s.tmpFile.Close()
	os.Remove(tmpName)
}
