package blobclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBackend is an in-process Backend for tests and local development.
// It returns the same typed errors the Azure backend would after
// translation, so Client behavior is identical against either.
type MemoryBackend struct {
	containerName string

	mu    sync.RWMutex
	blobs map[string]*memoryBlob
}

type memoryBlob struct {
	data         []byte
	contentType  string
	metadata     map[string]string
	tags         map[string]string
	lastModified time.Time
	etag         string
}

// NewMemoryBackend creates an empty in-memory backend for the named container.
func NewMemoryBackend(containerName string) *MemoryBackend {
	return &MemoryBackend{
		containerName: containerName,
		blobs:         make(map[string]*memoryBlob),
	}
}

func (m *MemoryBackend) BlobURL(name string) string {
	return fmt.Sprintf("memory://%s/%s", m.containerName, name)
}

func (m *MemoryBackend) EnsureContainer(ctx context.Context) error {
	return nil
}

func (m *MemoryBackend) notFound(name string) *Error {
	return &Error{
		Code:          CodeBlobNotFound,
		Message:       fmt.Sprintf("blob %q not found in container %q", name, m.containerName),
		BlobName:      name,
		ContainerName: m.containerName,
	}
}

func (m *MemoryBackend) put(name string, data []byte, params UploadParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if params.IfNoneMatch {
		if _, exists := m.blobs[name]; exists {
			return &Error{
				Code:          CodeBlobUpload,
				Message:       fmt.Sprintf("blob %q already exists in container %q", name, m.containerName),
				BlobName:      name,
				ContainerName: m.containerName,
			}
		}
	}
	m.blobs[name] = &memoryBlob{
		data:         append([]byte(nil), data...),
		contentType:  params.ContentType,
		metadata:     copyMap(params.Metadata),
		tags:         copyMap(params.Tags),
		lastModified: time.Now().UTC(),
		etag:         uuid.NewString(),
	}
	return nil
}

func (m *MemoryBackend) UploadBuffer(ctx context.Context, name string, data []byte, params UploadParams) error {
	if err := m.put(name, data, params); err != nil {
		return err
	}
	if params.Progress != nil {
		params.Progress(int64(len(data)))
	}
	return nil
}

func (m *MemoryBackend) UploadFile(ctx context.Context, name string, f *os.File, params UploadParams) error {
	data, err := io.ReadAll(f)
	if err != nil {
		return &Error{
			Code:          CodeBlobUpload,
			Message:       fmt.Sprintf("cannot read source file for blob %q", name),
			BlobName:      name,
			ContainerName: m.containerName,
			Err:           err,
		}
	}
	return m.UploadBuffer(ctx, name, data, params)
}

func (m *MemoryBackend) Download(ctx context.Context, name string, rng *Range) (*DownloadInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[name]
	if !ok {
		return nil, m.notFound(name)
	}
	data := b.data
	if rng != nil {
		if rng.Start >= int64(len(data)) && len(data) > 0 {
			return nil, &Error{
				Code:          CodeBlobDownload,
				Message:       fmt.Sprintf("range start %d is beyond the size of blob %q", rng.Start, name),
				BlobName:      name,
				ContainerName: m.containerName,
			}
		}
		end := rng.End + 1
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		start := rng.Start
		if start > int64(len(data)) {
			start = int64(len(data))
		}
		data = data[start:end]
	}
	return &DownloadInfo{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: int64(len(data)),
		ContentType:   b.contentType,
		ETag:          b.etag,
		LastModified:  b.lastModified,
		Metadata:      copyMap(b.metadata),
	}, nil
}

func (m *MemoryBackend) Exists(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[name]
	return ok, nil
}

func (m *MemoryBackend) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[name]; !ok {
		return m.notFound(name)
	}
	delete(m.blobs, name)
	return nil
}

func (m *MemoryBackend) Properties(ctx context.Context, name string) (*BlobMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[name]
	if !ok {
		return nil, m.notFound(name)
	}
	return &BlobMetadata{
		Name:         name,
		Size:         int64(len(b.data)),
		ContentType:  b.contentType,
		LastModified: b.lastModified,
		ETag:         b.etag,
		Metadata:     copyMap(b.metadata),
	}, nil
}

func (m *MemoryBackend) SetMetadata(ctx context.Context, name string, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[name]
	if !ok {
		return m.notFound(name)
	}
	b.metadata = copyMap(metadata)
	b.etag = uuid.NewString()
	return nil
}

func (m *MemoryBackend) Tags(ctx context.Context, name string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[name]
	if !ok {
		return nil, m.notFound(name)
	}
	return copyMap(b.tags), nil
}

func (m *MemoryBackend) List(ctx context.Context, params ListParams) ([]BlobItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.blobs))
	for name := range m.blobs {
		if params.Prefix == "" || strings.HasPrefix(name, params.Prefix) {
			names = append(names, name)
		}
	}
	// The real backend reports blobs in lexicographic order.
	sort.Strings(names)

	var items []BlobItem
	for _, name := range names {
		if params.MaxResults > 0 && len(items) >= params.MaxResults {
			break
		}
		b := m.blobs[name]
		item := BlobItem{
			Name:         name,
			Size:         int64(len(b.data)),
			ContentType:  b.contentType,
			LastModified: b.lastModified,
			ETag:         b.etag,
		}
		if params.IncludeMetadata {
			item.Metadata = copyMap(b.metadata)
		}
		if params.IncludeTags {
			item.Tags = copyMap(b.tags)
		}
		items = append(items, item)
	}
	return items, nil
}

func copyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
