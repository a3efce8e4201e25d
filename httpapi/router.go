package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the full chi router over the echo content pipeline
// and the chunked upload protocol. Middleware: request id, structured
// request logging, panic recovery, per-request timeout.
func NewRouter(echoH *EchoHandlers, uploadH *UploadHandlers, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Post("/echo", echoH.PostEcho)
	r.Get("/echo/{id}", echoH.GetEcho)

	r.Post("/upload/create", uploadH.PostUploadCreate)
	r.Post("/upload/chunk/{id}", uploadH.PostUploadChunk)
	r.Post("/upload/commit/{id}", uploadH.PostUploadCommit)

	return r
}

// requestLogger logs each request's method, path, status, and duration via
// slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
