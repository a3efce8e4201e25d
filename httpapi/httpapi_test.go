package httpapi

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pk5ls20/echo/gladiator/ext"
	"github.com/pk5ls20/echo/sanitize"
)

func newTestEchoHandlers(t *testing.T) *EchoHandlers {
	t.Helper()
	registry, err := ext.New(ext.ResourceHandler{}, ext.BilibiliHandler{}, ext.NetEaseMusicHandler{})
	if err != nil {
		t.Fatalf("ext.New: %v", err)
	}
	return &EchoHandlers{
		Sanitizer: sanitize.New(),
		Registry:  registry,
		Signer:    ext.NewHMACResourceSigner([]byte("secret"), "/api/v1/resource"),
		Store:     NewMemEchoStore(),
		Logger:    slog.Default(),
	}
}

func TestEchoCreateAndFetchRoundTrip(t *testing.T) {
	h := newTestEchoHandlers(t)
	router := NewRouter(h, &UploadHandlers{Logger: slog.Default()}, slog.Default())

	body, _ := json.Marshal(createEchoRequest{
		HTML:         `<p>hi <span echo-pm="read">secret</span></p>`,
		Permissions:  []string{"read"},
		AuthorUserID: 1,
	})
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /echo status = %d, body=%s", rec.Code, rec.Body.String())
	}

	var created createEchoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected non-empty echo id")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/echo/"+created.ID+"?permission=read", nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("GET /echo/{id} status = %d, body=%s", getRec.Code, getRec.Body.String())
	}
	if !bytes.Contains(getRec.Body.Bytes(), []byte("secret")) {
		t.Fatalf("expected permitted viewer to see content, got %s", getRec.Body.String())
	}
}

func TestEchoFetchWithoutPermissionFuzzesContent(t *testing.T) {
	h := newTestEchoHandlers(t)
	router := NewRouter(h, &UploadHandlers{Logger: slog.Default()}, slog.Default())

	body, _ := json.Marshal(createEchoRequest{
		HTML:        `<span echo-pm="read">secret</span>`,
		Permissions: []string{"read"},
	})
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var created createEchoResponse
	json.Unmarshal(rec.Body.Bytes(), &created)

	getReq := httptest.NewRequest(http.MethodGet, "/echo/"+created.ID, nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("GET /echo/{id} status = %d, body=%s", getRec.Code, getRec.Body.String())
	}
	if bytes.Contains(getRec.Body.Bytes(), []byte("secret")) {
		t.Fatalf("expected unpermitted viewer to not see content, got %s", getRec.Body.String())
	}
}

func TestEchoFetchUnknownIDNotFound(t *testing.T) {
	h := newTestEchoHandlers(t)
	router := NewRouter(h, &UploadHandlers{Logger: slog.Default()}, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/echo/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUploadCreateRejectsDisallowedMimeType(t *testing.T) {
	uh := &UploadHandlers{
		Config: UploadConfig{
			ChunkSize:      4096,
			MaxFileSize:    1024,
			AllowMimeTypes: []string{"image/png"},
		},
		Logger: slog.Default(),
	}
	h := newTestEchoHandlers(t)
	router := NewRouter(h, uh, slog.Default())

	body, _ := json.Marshal(createUploadRequest{
		FileName:     "a.txt",
		FileMimeType: "text/plain",
		FileSize:     10,
		FileSha1Hex:  "0000000000000000000000000000000000000000",
	})
	req := httptest.NewRequest(http.MethodPost, "/upload/create", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for disallowed mime type, got %d: %s", rec.Code, rec.Body.String())
	}
}
