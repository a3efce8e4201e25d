package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pk5ls20/echo/gladiator"
	"github.com/pk5ls20/echo/gladiator/consumers"
	"github.com/pk5ls20/echo/gladiator/ext"
	"github.com/pk5ls20/echo/sanitize"
)

var errEchoNotFound = errors.New("echo: not found")

// EchoStore persists sanitized echo HTML keyed by id. This interface is the
// abstract contract the HTTP handlers depend on; a relational implementation
// slots in behind it.
type EchoStore interface {
	Put(id string, authorID int64, html string)
	Get(id string) (html string, authorID int64, ok bool)
}

// MemEchoStore is an in-process EchoStore, sufficient to exercise the
// ingress/egress pipeline end to end without a database.
type MemEchoStore struct {
	mu    sync.RWMutex
	posts map[string]memPost
}

type memPost struct {
	html     string
	authorID int64
}

func NewMemEchoStore() *MemEchoStore {
	return &MemEchoStore{posts: make(map[string]memPost)}
}

func (s *MemEchoStore) Put(id string, authorID int64, html string) {
	s.mu.Lock()
	s.posts[id] = memPost{html: html, authorID: authorID}
	s.mu.Unlock()
}

func (s *MemEchoStore) Get(id string) (string, int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	return p.html, p.authorID, ok
}

// EchoHandlers groups the dependencies the /echo routes need.
type EchoHandlers struct {
	Sanitizer *sanitize.Policy
	Registry  *ext.Registry
	Signer    ext.ResourceSigner
	Store     EchoStore
	Logger    *slog.Logger
}

type createEchoRequest struct {
	HTML         string   `json:"html"`
	Permissions  []string `json:"permissions"`
	ExtIDs       []string `json:"ext_ids"`
	AuthorUserID int64    `json:"author_user_id"`
}

type createEchoResponse struct {
	ID     string  `json:"id"`
	ResIDs []int64 `json:"res_ids,omitempty"`
}

// PostEcho implements ingress: sanitize once, run IncomingCheck +
// ResourceIDExtractor + NoopEnd, reject on latched error, persist the
// sanitized HTML verbatim.
func (h *EchoHandlers) PostEcho(w http.ResponseWriter, r *http.Request) {
	var req createEchoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	safe := h.Sanitizer.Sanitize(req.HTML)
	viewer := viewerFromSets(req.Permissions, req.ExtIDs)

	checker := &consumers.IncomingCheck{Registry: h.Registry}
	resIDs := &consumers.ResourceIDExtractor{}
	chain := gladiator.Chain[struct{}]{
		Consumers: []gladiator.Consumer{checker, resIDs},
		End:       consumers.NoopEnd{},
	}
	if _, err := gladiator.Transform(safe, viewer, chain, h.Logger); err != nil {
		writeAPIError(w, err)
		return
	}
	if checker.Err() != nil {
		writeAPIError(w, checker.Err())
		return
	}

	id := uuid.New().String()
	h.Store.Put(id, req.AuthorUserID, safe)

	writeJSON(w, http.StatusCreated, createEchoResponse{ID: id, ResIDs: resIDs.ResIDs})
}

// GetEcho implements egress: sanitize again, run OutgoingFilter +
// OutgoingSSR + CollectEnd to prune unpermitted subtrees and inline rendered
// extension HTML, then serialize.
func (h *EchoHandlers) GetEcho(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	storedHTML, authorID, ok := h.Store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, errEchoNotFound)
		return
	}

	permissions := r.URL.Query()["permission"]
	extIDs := r.URL.Query()["ext_id"]
	userID := queryInt64(r, "user_id", 0)

	safe := h.Sanitizer.Sanitize(storedHTML)
	viewer := viewerFromSets(permissions, extIDs)

	filter := &consumers.OutgoingFilter{Registry: h.Registry}
	ssr := &consumers.OutgoingSSR{
		Registry: h.Registry,
		RC: &ext.RenderContext{
			Context: r.Context(),
			UserID:  userID,
			Signer:  h.Signer,
		},
	}
	chain := gladiator.Chain[string]{
		Consumers: []gladiator.Consumer{filter, ssr},
		End:       consumers.CollectEnd{},
	}
	output, err := gladiator.Transform(safe, viewer, chain, h.Logger)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if ssr.Err() != nil {
		writeAPIError(w, ssr.Err())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":        id,
		"author_id": authorID,
		"html":      output,
	})
}

func viewerFromSets(permissions, extIDs []string) gladiator.Viewer {
	v := gladiator.Viewer{
		PermissionIDs: make(map[string]struct{}, len(permissions)),
		ExtIDs:        make(map[string]struct{}, len(extIDs)),
	}
	for _, p := range permissions {
		v.PermissionIDs[p] = struct{}{}
	}
	for _, e := range extIDs {
		v.ExtIDs[e] = struct{}{}
	}
	return v
}

// queryInt64 reads an int64 query parameter, falling back to def.
func queryInt64(r *http.Request, key string, def int64) int64 {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return v
}
