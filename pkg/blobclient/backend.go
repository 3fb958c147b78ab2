package blobclient

import (
	"context"
	"io"
	"os"
	"time"
)

// Backend is the storage collaborator the Client drives. The production
// implementation wraps the Azure Blob Storage SDK; MemoryBackend provides an
// in-process substitute for tests and local development.
//
// Implementations return either raw SDK errors (translated at the Client
// boundary) or already-typed *Error values (passed through unchanged).
type Backend interface {
	// BlobURL returns the address of a blob within the resolved container.
	BlobURL(name string) string

	// EnsureContainer creates the container if it does not exist. It is
	// idempotent; an already-existing container is not an error.
	EnsureContainer(ctx context.Context) error

	UploadBuffer(ctx context.Context, name string, data []byte, params UploadParams) error
	UploadFile(ctx context.Context, name string, f *os.File, params UploadParams) error

	// Download opens the blob, optionally restricted to an inclusive byte range.
	Download(ctx context.Context, name string, rng *Range) (*DownloadInfo, error)

	Exists(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) error

	Properties(ctx context.Context, name string) (*BlobMetadata, error)
	SetMetadata(ctx context.Context, name string, metadata map[string]string) error
	Tags(ctx context.Context, name string) (map[string]string, error)

	List(ctx context.Context, params ListParams) ([]BlobItem, error)
}

// UploadParams carries the backend-level knobs for a single upload.
type UploadParams struct {
	ContentType string
	Metadata    map[string]string
	Tags        map[string]string
	// IfNoneMatch requests a conditional write that fails when the blob
	// already exists.
	IfNoneMatch bool
	// Progress, when set, receives the cumulative number of bytes transferred.
	Progress func(bytesTransferred int64)
}

// Range selects an inclusive byte range of a blob.
type Range struct {
	Start int64
	End   int64
}

func (r *Range) validate() error {
	if r.Start < 0 || r.End < 0 {
		return newConfigError("range bounds must be non-negative")
	}
	if r.End < r.Start {
		return newConfigError("range end must be greater than or equal to range start")
	}
	return nil
}

// DownloadInfo is an open download stream plus the properties the backend
// reported alongside it.
type DownloadInfo struct {
	Body          io.ReadCloser
	ContentLength int64 // TotalUnknown when not reported
	ContentType   string
	ETag          string
	LastModified  time.Time
	Metadata      map[string]string
}

// ListParams controls a container enumeration.
type ListParams struct {
	Prefix string
	// MaxResults caps the collected result count; zero means unbounded.
	MaxResults      int
	IncludeMetadata bool
	IncludeTags     bool
}

// BlobItem is a read-only summary of one blob in a listing, constructed
// fresh per call.
type BlobItem struct {
	Name         string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
	Metadata     map[string]string
	Tags         map[string]string
}

// BlobMetadata is a read-only projection of a blob's backend-reported
// properties. Tags are populated only when explicitly requested, since they
// cost a second round trip.
type BlobMetadata struct {
	Name         string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
	Metadata     map[string]string
	Tags         map[string]string
}
