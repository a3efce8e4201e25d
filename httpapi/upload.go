package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pk5ls20/echo/upload"
)

var (
	errUploadSessionNotFound = errors.New("upload: session not found")
	errFileTooLarge          = errors.New("upload: file_size exceeds max_file_size")
	errMimeTypeNotAllowed    = errors.New("upload: file_mime_type not in allow list")
)

// UploadConfig is the subset of config.UploadConfig/ResourceConfig the
// upload handlers need at request time, kept narrow so httpapi doesn't
// import the config package directly.
type UploadConfig struct {
	ChunkSize      uint32
	TmpDir         string
	FinalDir       string
	FlushSize      uint32
	MaxHead        uint32
	MaxBody        uint32
	MaxFileSize    uint64
	AllowMimeTypes []string
}

func (c UploadConfig) mimeAllowed(mimeType string) bool {
	for _, allowed := range c.AllowMimeTypes {
		if allowed == mimeType {
			return true
		}
	}
	return false
}

// UploadHandlers groups the dependencies the /upload routes need.
type UploadHandlers struct {
	Store  *upload.Store
	Config UploadConfig
	Logger *slog.Logger
}

type createUploadRequest struct {
	FileName     string `json:"file_name"`
	FileMimeType string `json:"file_mime_type"`
	FileSize     uint64 `json:"file_size"`
	FileSha1Hex  string `json:"file_sha1_hex"`
}

type createUploadResponse struct {
	SessionID string `json:"session_id"`
	ChunkSize uint32 `json:"chunk_size"`
}

// PostUploadCreate opens a new upload session and returns the session id the
// client must attach to every subsequent chunk.
func (h *UploadHandlers) PostUploadCreate(w http.ResponseWriter, r *http.Request) {
	var req createUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.FileSize > h.Config.MaxFileSize {
		writeError(w, http.StatusBadRequest, errFileTooLarge)
		return
	}
	if !h.Config.mimeAllowed(req.FileMimeType) {
		writeError(w, http.StatusBadRequest, errMimeTypeNotAllowed)
		return
	}

	meta := upload.SessionMeta{
		FileName:     req.FileName,
		FileMimeType: req.FileMimeType,
		FileSize:     req.FileSize,
		FileSha1Hex:  req.FileSha1Hex,
	}
	sessionID, _, err := h.Store.Create(meta, h.Config.ChunkSize, h.Config.TmpDir, h.Config.FinalDir)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusCreated, createUploadResponse{
		SessionID: sessionID.String(),
		ChunkSize: h.Config.ChunkSize,
	})
}

// PostUploadChunk feeds one raw "qwq"-framed chunk stream from the request
// body into the session's tracker.
func (h *UploadHandlers) PostUploadChunk(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sess, ok := h.Store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, errUploadSessionNotFound)
		return
	}

	limits := upload.Limits{
		FlushStreamSize: h.Config.FlushSize,
		MaxHeadSize:     h.Config.MaxHead,
		MaxBodySize:     h.Config.MaxBody,
	}
	if err := sess.AcceptChunkStream(r.Context(), r.Body, limits); err != nil {
		writeAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

type commitUploadResponse struct {
	FileName string `json:"file_name"`
	Ext      string `json:"ext"`
}

// PostUploadCommit merges and verifies all chunks, then moves the assembled
// file to its final storage location, removing the session from the store
// first so no chunk can race the merge/commit sequence.
func (h *UploadHandlers) PostUploadCommit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sess, ok := h.Store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, errUploadSessionNotFound)
		return
	}
	h.Store.Remove(id)

	if err := sess.Merge(); err != nil {
		writeAPIError(w, err)
		return
	}
	fileName, ext, err := sess.Commit()
	if err != nil {
		writeAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, commitUploadResponse{FileName: fileName, Ext: ext})
}
