package blobclient

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/yourorg/go-blob-kit/pkg/logging"
)

// Options configures a Client at construction. The zero value means: no
// credential (anonymous, SAS-in-URL, or ambient default for bare account
// names), no container auto-creation, host-style endpoints, no-op logger.
type Options struct {
	// Credential authenticates requests. Leave zero to rely on a SAS token
	// embedded in the descriptor URL, or on the ambient default credential
	// for bare account names.
	Credential Credential
	// CreateContainerIfNotExists makes every upload ensure the container
	// exists before writing.
	CreateContainerIfNotExists bool
	// AllowPathStyleEndpoints forces path-style URL interpretation even for
	// non-loopback hostnames.
	AllowPathStyleEndpoints bool
	Logger                  logging.Logger
}

// UploadOptions carries the optional parameters for upload operations.
type UploadOptions struct {
	// ContentType overrides the type detected from the blob name's extension.
	ContentType string
	Metadata    map[string]string
	Tags        map[string]string
	// IfNotExists fails the upload when the blob already exists instead of
	// overwriting it.
	IfNotExists bool
	Progress    ProgressFunc
}

// DownloadOptions carries the optional parameters for download operations.
type DownloadOptions struct {
	// Range restricts the download to an inclusive byte range.
	Range    *Range
	Progress ProgressFunc
}

// ListOptions carries the optional parameters for List.
type ListOptions struct {
	// MaxResults caps the number of returned items; zero means all.
	MaxResults      int
	IncludeMetadata bool
	IncludeTags     bool
}

// MetadataOptions carries the optional parameters for GetMetadata.
type MetadataOptions struct {
	// IncludeTags fetches index tags as well, at the cost of a second
	// backend round trip.
	IncludeTags bool
}

// Client is a convenience layer over a single blob container. The endpoint
// is resolved once at construction and never re-resolved; a Client is safe
// for concurrent use, but concurrent operations have no ordering guarantee
// relative to each other.
type Client struct {
	backend         Backend
	containerName   string
	createContainer bool
	logger          logging.Logger
}

// New resolves the connection descriptor (connection string, bare account
// name, or account/container URL) and returns a client scoped to
// containerName. Resolution happens locally; no network call is made.
func New(descriptor, containerName string, opts *Options) (*Client, error) {
	if opts == nil {
		opts = &Options{}
	}
	if descriptor == "" {
		return nil, newConfigError("connection descriptor is required")
	}
	if containerName == "" {
		return nil, newConfigError("container name is required")
	}
	backend, err := newAzureBackend(descriptor, containerName, opts.Credential, opts.AllowPathStyleEndpoints)
	if err != nil {
		return nil, err
	}
	return NewWithBackend(backend, containerName, opts), nil
}

// NewWithBackend builds a client over an explicit Backend. Use this with
// MemoryBackend for tests and local development.
func NewWithBackend(backend Backend, containerName string, opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		backend:         backend,
		containerName:   containerName,
		createContainer: opts.CreateContainerIfNotExists,
		logger:          logger,
	}
}

// ContainerName returns the container this client is scoped to.
func (c *Client) ContainerName() string {
	return c.containerName
}

// URL returns the address of a blob within the container.
func (c *Client) URL(name string) string {
	return c.backend.BlobURL(name)
}

func (c *Client) opLogger(operation, name string) logging.Logger {
	return c.logger.With(
		logging.NewField("operation", operation),
		logging.NewField("container", c.containerName),
		logging.NewField("blob", name),
	)
}

// ensureContainer runs the idempotent create-if-absent when configured.
// A failure here is a container operation error, not an upload error.
func (c *Client) ensureContainer(ctx context.Context) error {
	if !c.createContainer {
		return nil
	}
	if err := c.backend.EnsureContainer(ctx); err != nil {
		return translate(err, opContainer, "create", "", c.containerName)
	}
	return nil
}

// wrapProgress adapts a backend byte counter into Progress events scaled
// against the known payload size. Zero-byte payloads get no backend callback;
// their single 100% event is emitted by the caller after the upload succeeds.
func wrapProgress(cb ProgressFunc, total int64) func(int64) {
	if cb == nil || total == 0 {
		return nil
	}
	return func(transferred int64) {
		cb(newProgress(transferred, total))
	}
}

// reportEmptyUpload emits the terminal 100% event for a zero-byte payload.
// It runs only after the backend confirmed the write.
func reportEmptyUpload(cb ProgressFunc, total int64) {
	if cb != nil && total == 0 {
		cb(newProgress(0, 0))
	}
}

func (c *Client) uploadBuffer(ctx context.Context, name string, data []byte, opts *UploadOptions, fallbackContentType string) error {
	if opts == nil {
		opts = &UploadOptions{}
	}
	if err := c.ensureContainer(ctx); err != nil {
		return err
	}
	logger := c.opLogger("upload", name)
	params := UploadParams{
		ContentType: resolveContentType(name, opts.ContentType, fallbackContentType),
		Metadata:    opts.Metadata,
		Tags:        opts.Tags,
		IfNoneMatch: opts.IfNotExists,
		Progress:    wrapProgress(opts.Progress, int64(len(data))),
	}
	if err := c.backend.UploadBuffer(ctx, name, data, params); err != nil {
		logger.Error("Blob upload failed", logging.NewField("error", err))
		return translate(err, opUpload, "upload", name, c.containerName)
	}
	reportEmptyUpload(opts.Progress, int64(len(data)))
	logger.Debug("Blob uploaded", logging.NewField("bytes", int64(len(data))))
	return nil
}

// UploadString uploads text content. The content type is detected from the
// blob name's extension, defaulting to text/plain.
func (c *Client) UploadString(ctx context.Context, name, content string, opts *UploadOptions) error {
	return c.uploadBuffer(ctx, name, []byte(content), opts, "text/plain")
}

// UploadBuffer uploads binary content. The content type is detected from the
// blob name's extension, defaulting to application/octet-stream.
func (c *Client) UploadBuffer(ctx context.Context, name string, data []byte, opts *UploadOptions) error {
	return c.uploadBuffer(ctx, name, data, opts, "application/octet-stream")
}

// UploadJSON serializes v to indented JSON and uploads it. A value that
// cannot be serialized is a configuration error, not an upload error.
func (c *Client) UploadJSON(ctx context.Context, name string, v any, opts *UploadOptions) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return wrapConfigError(fmt.Sprintf("value for blob %q cannot be serialized to JSON", name), err)
	}
	return c.uploadBuffer(ctx, name, data, opts, "application/json")
}

// UploadFile streams the file at path into the blob. The content type is
// detected from the blob name's extension.
func (c *Client) UploadFile(ctx context.Context, name, path string, opts *UploadOptions) error {
	if opts == nil {
		opts = &UploadOptions{}
	}
	if err := c.ensureContainer(ctx); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return wrapConfigError(fmt.Sprintf("cannot open source file %q", path), err)
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return wrapConfigError(fmt.Sprintf("cannot stat source file %q", path), err)
	}
	logger := c.opLogger("upload", name)
	params := UploadParams{
		ContentType: resolveContentType(name, opts.ContentType, "application/octet-stream"),
		Metadata:    opts.Metadata,
		Tags:        opts.Tags,
		IfNoneMatch: opts.IfNotExists,
		Progress:    wrapProgress(opts.Progress, stat.Size()),
	}
	if err := c.backend.UploadFile(ctx, name, f, params); err != nil {
		logger.Error("Blob upload failed", logging.NewField("error", err))
		return translate(err, opUpload, "upload", name, c.containerName)
	}
	reportEmptyUpload(opts.Progress, stat.Size())
	logger.Debug("Blob uploaded", logging.NewField("bytes", stat.Size()))
	return nil
}

// open validates the range locally and starts the download. Range
// validation failures are configuration errors raised before any network
// call.
func (c *Client) open(ctx context.Context, name string, opts *DownloadOptions) (*DownloadInfo, *DownloadOptions, error) {
	if opts == nil {
		opts = &DownloadOptions{}
	}
	if opts.Range != nil {
		if err := opts.Range.validate(); err != nil {
			return nil, nil, err
		}
	}
	info, err := c.backend.Download(ctx, name, opts.Range)
	if err != nil {
		return nil, nil, translate(err, opDownload, "download", name, c.containerName)
	}
	return info, opts, nil
}

// DownloadBuffer downloads the blob (or a byte range of it) into memory.
func (c *Client) DownloadBuffer(ctx context.Context, name string, opts *DownloadOptions) ([]byte, error) {
	info, opts, err := c.open(ctx, name, opts)
	if err != nil {
		return nil, err
	}
	defer info.Body.Close()
	data, err := accumulate(info.Body, info.ContentLength, opts.Progress)
	if err != nil {
		return nil, translate(err, opDownload, "download", name, c.containerName)
	}
	c.opLogger("download", name).Debug("Blob downloaded", logging.NewField("bytes", int64(len(data))))
	return data, nil
}

// DownloadString downloads the blob and returns it as a string.
func (c *Client) DownloadString(ctx context.Context, name string, opts *DownloadOptions) (string, error) {
	data, err := c.DownloadBuffer(ctx, name, opts)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DownloadJSON downloads the blob and unmarshals it into v. Content that is
// not valid JSON surfaces as a download error rather than a raw syntax error.
func (c *Client) DownloadJSON(ctx context.Context, name string, v any, opts *DownloadOptions) error {
	data, err := c.DownloadBuffer(ctx, name, opts)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &Error{
			Code:          CodeBlobDownload,
			Message:       fmt.Sprintf("blob %q does not contain valid JSON", name),
			BlobName:      name,
			ContainerName: c.containerName,
			Operation:     "download",
			Err:           err,
		}
	}
	return nil
}

// DownloadToFile streams the blob into the file at path, creating parent
// directories as needed.
func (c *Client) DownloadToFile(ctx context.Context, name, path string, opts *DownloadOptions) error {
	info, opts, err := c.open(ctx, name, opts)
	if err != nil {
		return err
	}
	defer info.Body.Close()
	if err := drainToFile(path, info.Body, info.ContentLength, opts.Progress); err != nil {
		return translate(err, opDownload, "download", name, c.containerName)
	}
	c.opLogger("download", name).Debug("Blob downloaded to file", logging.NewField("path", path))
	return nil
}

// Exists reports whether the blob exists. An absent blob (or container) is
// false, not an error.
func (c *Client) Exists(ctx context.Context, name string) (bool, error) {
	ok, err := c.backend.Exists(ctx, name)
	if err != nil {
		terr := translate(err, opBlob, "exists", name, c.containerName)
		if terr.Code == CodeBlobNotFound || terr.Code == CodeContainerNotFound {
			return false, nil
		}
		return false, terr
	}
	return ok, nil
}

// Delete removes the blob. Deleting an absent blob is a BlobNotFound error.
func (c *Client) Delete(ctx context.Context, name string) error {
	if err := c.backend.Delete(ctx, name); err != nil {
		return translate(err, opBlob, "delete", name, c.containerName)
	}
	c.opLogger("delete", name).Debug("Blob deleted")
	return nil
}

// List enumerates blobs with the given name prefix, in backend-reported
// (lexicographic) order. Paging stops early once MaxResults is reached; the
// result is a collected slice, not a restartable iterator.
func (c *Client) List(ctx context.Context, prefix string, opts *ListOptions) ([]BlobItem, error) {
	if opts == nil {
		opts = &ListOptions{}
	}
	if opts.MaxResults < 0 {
		return nil, newConfigError("MaxResults must not be negative")
	}
	items, err := c.backend.List(ctx, ListParams{
		Prefix:          prefix,
		MaxResults:      opts.MaxResults,
		IncludeMetadata: opts.IncludeMetadata,
		IncludeTags:     opts.IncludeTags,
	})
	if err != nil {
		return nil, translate(err, opContainer, "list", "", c.containerName)
	}
	c.opLogger("list", "").Debug("Blobs listed",
		logging.NewField("prefix", prefix),
		logging.NewField("count", len(items)))
	return items, nil
}

// GetMetadata returns the blob's properties and custom metadata. Index tags
// are fetched only when requested, as a second backend round trip.
func (c *Client) GetMetadata(ctx context.Context, name string, opts *MetadataOptions) (*BlobMetadata, error) {
	md, err := c.backend.Properties(ctx, name)
	if err != nil {
		return nil, translate(err, opBlob, "getMetadata", name, c.containerName)
	}
	if opts != nil && opts.IncludeTags {
		tags, err := c.backend.Tags(ctx, name)
		if err != nil {
			return nil, translate(err, opBlob, "getTags", name, c.containerName)
		}
		md.Tags = tags
	}
	return md, nil
}

// SetMetadata replaces the blob's custom metadata map.
func (c *Client) SetMetadata(ctx context.Context, name string, metadata map[string]string) error {
	if err := c.backend.SetMetadata(ctx, name, metadata); err != nil {
		return translate(err, opBlob, "setMetadata", name, c.containerName)
	}
	return nil
}
