// Command echod serves the echo content pipeline and chunked upload
// protocol over HTTP.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pk5ls20/echo/config"
	"github.com/pk5ls20/echo/gladiator/ext"
	"github.com/pk5ls20/echo/httpapi"
	"github.com/pk5ls20/echo/sanitize"
	"github.com/pk5ls20/echo/upload"
)

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config overlay")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	registry, err := ext.New(
		ext.ResourceHandler{},
		ext.BilibiliHandler{},
		ext.NetEaseMusicHandler{},
	)
	if err != nil {
		slog.Error("extension registry", "error", err)
		os.Exit(1)
	}

	signer := ext.NewHMACResourceSigner([]byte(cfg.ResourceSignerSecret), "/api/v1/resource")
	store := upload.NewStore(time.Duration(cfg.Upload.SessionTTLMins)*time.Minute, logger)
	defer store.Close()

	echoHandlers := &httpapi.EchoHandlers{
		Sanitizer: sanitize.New(),
		Registry:  registry,
		Signer:    signer,
		Store:     httpapi.NewMemEchoStore(),
		Logger:    logger,
	}
	uploadHandlers := &httpapi.UploadHandlers{
		Store: store,
		Config: httpapi.UploadConfig{
			ChunkSize:      cfg.Upload.UploadChunkSize,
			TmpDir:         cfg.Resource.TmpFilePath,
			FinalDir:       cfg.Resource.LocalStoragePath,
			FlushSize:      cfg.Resource.FlushStreamSize,
			MaxHead:        cfg.Upload.MaxHeadSize,
			MaxBody:        cfg.Upload.MaxBodySize,
			MaxFileSize:    cfg.Upload.MaxFileSize,
			AllowMimeTypes: cfg.Upload.AllowMimeTypes,
		},
		Logger: logger,
	}

	router := httpapi.NewRouter(echoHandlers, uploadHandlers, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}
