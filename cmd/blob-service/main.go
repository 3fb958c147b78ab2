package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourorg/go-blob-kit/pkg/blobclient"
	"github.com/yourorg/go-blob-kit/pkg/config"
	"github.com/yourorg/go-blob-kit/pkg/httpservice"
	"github.com/yourorg/go-blob-kit/pkg/logging"
)

// App exposes a blob container over a small REST surface.
type App struct {
	config *config.Config
	logger logging.Logger
	blobs  *blobclient.Client
}

func main() {
	cfg, err := config.LoadConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync(logger)

	logger.Info("Starting blob service", logging.NewField("version", cfg.AppVersion))

	blobs, err := buildClient(cfg, logger)
	if err != nil {
		logger.Error("Failed to create blob client", logging.NewField("error", err))
		os.Exit(1)
	}

	app := &App{config: cfg, logger: logger, blobs: blobs}

	server, err := httpservice.NewServer(httpservice.ServerConfig{
		Port:           cfg.HTTPPort,
		ReadTimeout:    time.Duration(cfg.HTTPReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.HTTPWriteTimeout) * time.Second,
		IdleTimeout:    time.Duration(cfg.HTTPIdleTimeout) * time.Second,
		Logger:         logger,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, app)
	if err != nil {
		logger.Error("Failed to create server", logging.NewField("error", err))
		os.Exit(1)
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("Server error", logging.NewField("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", logging.NewField("error", err))
	}
}

// buildClient resolves the configured storage endpoint, falling back to the
// in-memory backend when no connection descriptor is configured.
func buildClient(cfg *config.Config, logger logging.Logger) (*blobclient.Client, error) {
	opts := &blobclient.Options{
		CreateContainerIfNotExists: cfg.CreateContainer,
		AllowPathStyleEndpoints:    cfg.AllowPathStyle,
		Logger:                     logger,
	}

	if cfg.StorageConnection == "" {
		logger.Info("Using in-memory blob backend (no storage connection configured)")
		backend := blobclient.NewMemoryBackend(cfg.StorageContainer)
		return blobclient.NewWithBackend(backend, cfg.StorageContainer, opts), nil
	}

	if cfg.StorageAccountKey != "" {
		cred, err := blobclient.NewSharedKeyCredential(cfg.StorageConnection, cfg.StorageAccountKey)
		if err != nil {
			return nil, err
		}
		opts.Credential = cred
	}

	return blobclient.New(cfg.StorageConnection, cfg.StorageContainer, opts)
}

// Register implements the httpservice.Handler interface.
func (a *App) Register(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/blobs", a.handleList)
		api.PUT("/blobs/*name", a.handleUpload)
		api.GET("/blobs/*name", a.handleDownload)
		api.HEAD("/blobs/*name", a.handleExists)
		api.DELETE("/blobs/*name", a.handleDelete)
		api.GET("/metadata/*name", a.handleGetMetadata)
		api.PUT("/metadata/*name", a.handleSetMetadata)
	}
}

func blobName(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("name"), "/")
}

type listQuery struct {
	Prefix   string `form:"prefix"`
	Max      int    `form:"max" validate:"gte=0"`
	Metadata bool   `form:"metadata"`
}

func (a *App) handleList(c *gin.Context) {
	var q listQuery
	if !httpservice.ValidateQuery(c, &q) {
		return
	}
	items, err := a.blobs.List(c.Request.Context(), q.Prefix, &blobclient.ListOptions{
		MaxResults:      q.Max,
		IncludeMetadata: q.Metadata,
	})
	if err != nil {
		httpservice.HandleError(c, err)
		return
	}
	httpservice.SuccessResponse(c, gin.H{"blobs": items, "count": len(items)})
}

func (a *App) handleUpload(c *gin.Context) {
	name := blobName(c)
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		httpservice.HandleError(c, err)
		return
	}
	opts := &blobclient.UploadOptions{
		ContentType: c.ContentType(),
		IfNotExists: c.Query("ifNotExists") == "true",
	}
	if err := a.blobs.UploadBuffer(c.Request.Context(), name, data, opts); err != nil {
		httpservice.HandleError(c, err)
		return
	}
	httpservice.CreatedResponse(c, gin.H{"name": name, "url": a.blobs.URL(name), "size": len(data)})
}

func (a *App) handleDownload(c *gin.Context) {
	name := blobName(c)
	data, err := a.blobs.DownloadBuffer(c.Request.Context(), name, nil)
	if err != nil {
		httpservice.HandleError(c, err)
		return
	}
	contentType, ok := blobclient.ContentTypeForName(name)
	if !ok {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, data)
}

func (a *App) handleExists(c *gin.Context) {
	ok, err := a.blobs.Exists(c.Request.Context(), blobName(c))
	if err != nil {
		c.AbortWithStatus(httpservice.StatusForError(err))
		return
	}
	if !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	c.Status(http.StatusOK)
}

func (a *App) handleDelete(c *gin.Context) {
	if err := a.blobs.Delete(c.Request.Context(), blobName(c)); err != nil {
		httpservice.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *App) handleGetMetadata(c *gin.Context) {
	md, err := a.blobs.GetMetadata(c.Request.Context(), blobName(c), &blobclient.MetadataOptions{
		IncludeTags: c.Query("tags") == "true",
	})
	if err != nil {
		httpservice.HandleError(c, err)
		return
	}
	httpservice.SuccessResponse(c, md)
}

type setMetadataRequest struct {
	Metadata map[string]string `json:"metadata" binding:"required"`
}

func (a *App) handleSetMetadata(c *gin.Context) {
	var req setMetadataRequest
	if !httpservice.ValidateJSON(c, &req) {
		return
	}
	if err := a.blobs.SetMetadata(c.Request.Context(), blobName(c), req.Metadata); err != nil {
		httpservice.HandleError(c, err)
		return
	}
	httpservice.SuccessResponse(c, gin.H{"name": blobName(c)})
}
