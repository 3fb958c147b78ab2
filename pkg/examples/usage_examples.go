package examples

import (
	"context"
	"fmt"

	"github.com/yourorg/go-blob-kit/pkg/blobclient"
	"github.com/yourorg/go-blob-kit/pkg/config"
	"github.com/yourorg/go-blob-kit/pkg/logging"
)

// ExampleBlobClientUsage demonstrates how to create a blob client from
// configuration.
func ExampleBlobClientUsage(cfg *config.Config, logger logging.Logger) (*blobclient.Client, error) {
	opts := &blobclient.Options{
		CreateContainerIfNotExists: cfg.CreateContainer,
		AllowPathStyleEndpoints:    cfg.AllowPathStyle,
		Logger:                     logger,
	}

	// The descriptor can be a connection string, a bare account name, or an
	// account/container URL (optionally carrying a SAS token).
	if cfg.StorageAccountKey != "" {
		cred, err := blobclient.NewSharedKeyCredential(cfg.StorageConnection, cfg.StorageAccountKey)
		if err != nil {
			return nil, err
		}
		opts.Credential = cred
	}

	client, err := blobclient.New(cfg.StorageConnection, cfg.StorageContainer, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	// For testing, you can use the in-memory backend instead:
	// client := blobclient.NewWithBackend(blobclient.NewMemoryBackend(cfg.StorageContainer), cfg.StorageContainer, opts)

	return client, nil
}

// ExampleUploadWithProgress demonstrates uploading a document with metadata
// and observing transfer progress.
func ExampleUploadWithProgress(ctx context.Context, client *blobclient.Client, name string, data []byte) error {
	err := client.UploadBuffer(ctx, name, data, &blobclient.UploadOptions{
		Metadata: map[string]string{"source": "example"},
		Progress: func(p blobclient.Progress) {
			fmt.Printf("uploaded %d/%d bytes (%d%%)\n", p.LoadedBytes, p.TotalBytes, p.Percent)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload blob: %w", err)
	}
	fmt.Println("blob available at", client.URL(name))
	return nil
}

// ExampleDownloadRange demonstrates downloading an inclusive byte range.
func ExampleDownloadRange(ctx context.Context, client *blobclient.Client, name string) ([]byte, error) {
	data, err := client.DownloadBuffer(ctx, name, &blobclient.DownloadOptions{
		Range: &blobclient.Range{Start: 0, End: 1023},
	})
	if err != nil {
		// React to specific failure categories via the error code.
		if blobclient.IsCode(err, blobclient.CodeBlobNotFound) {
			return nil, fmt.Errorf("blob %q is missing: %w", name, err)
		}
		return nil, err
	}
	return data, nil
}

// ExampleWireComponents demonstrates how to wire all components together.
func ExampleWireComponents() error {
	cfg, err := config.LoadConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logging.Sync(logger)

	client, err := ExampleBlobClientUsage(cfg, logger)
	if err != nil {
		return err
	}

	// Use the client...
	_ = client

	return nil
}
