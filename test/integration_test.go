package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/yourorg/go-blob-kit/pkg/blobclient"
	"github.com/yourorg/go-blob-kit/pkg/httpservice"
	"github.com/yourorg/go-blob-kit/pkg/logging"
)

// SetupTestClient creates a blob client over the in-memory backend.
func SetupTestClient(container string) *blobclient.Client {
	backend := blobclient.NewMemoryBackend(container)
	return blobclient.NewWithBackend(backend, container, &blobclient.Options{
		Logger: SetupTestLogger(),
	})
}

// SetupTestLogger creates a test logger.
func SetupTestLogger() logging.Logger {
	logger, err := logging.NewLogger("debug", "console")
	if err != nil {
		panic(err)
	}
	return logger
}

// TestIntegration_BlobLifecycle runs a full blob lifecycle against the
// in-memory backend: upload, existence check, metadata, download, delete.
func TestIntegration_BlobLifecycle(t *testing.T) {
	ctx := context.Background()
	client := SetupTestClient("reports")

	csvData := "name,age,city\nJohn,30,New York\nJane,25,San Francisco"
	err := client.UploadString(ctx, "exports/people.csv", csvData, &blobclient.UploadOptions{
		Metadata: map[string]string{"source": "integration"},
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	exists, err := client.Exists(ctx, "exports/people.csv")
	if err != nil {
		t.Fatalf("Exists check failed: %v", err)
	}
	if !exists {
		t.Error("Blob should exist after upload")
	}

	md, err := client.GetMetadata(ctx, "exports/people.csv", nil)
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if md.ContentType != "text/csv" {
		t.Errorf("Expected text/csv content type, got %q", md.ContentType)
	}
	if md.Metadata["source"] != "integration" {
		t.Errorf("Expected custom metadata to survive, got %v", md.Metadata)
	}

	got, err := client.DownloadString(ctx, "exports/people.csv", nil)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if got != csvData {
		t.Errorf("Downloaded content mismatch: %q", got)
	}

	if err := client.Delete(ctx, "exports/people.csv"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	exists, err = client.Exists(ctx, "exports/people.csv")
	if err != nil {
		t.Fatalf("Exists check after delete failed: %v", err)
	}
	if exists {
		t.Error("Blob should be gone after delete")
	}
}

// TestIntegration_JSONRoundTripAndListing uploads structured documents and
// verifies prefix listing picks out the right subset.
func TestIntegration_JSONRoundTripAndListing(t *testing.T) {
	ctx := context.Background()
	client := SetupTestClient("documents")

	type report struct {
		Title string `json:"title"`
		Rows  int    `json:"rows"`
	}

	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("reports/%d.json", i)
		if err := client.UploadJSON(ctx, name, report{Title: "Report", Rows: i}, nil); err != nil {
			t.Fatalf("UploadJSON failed: %v", err)
		}
	}
	if err := client.UploadString(ctx, "notes/readme.txt", "unrelated", nil); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	items, err := client.List(ctx, "reports/", nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Expected 3 reports, got %d", len(items))
	}

	var got report
	if err := client.DownloadJSON(ctx, items[2].Name, &got, nil); err != nil {
		t.Fatalf("DownloadJSON failed: %v", err)
	}
	if got.Rows != 2 {
		t.Errorf("Expected rows=2, got %d", got.Rows)
	}
}

// blobAPI registers a minimal REST surface over a blob client, mirroring the
// service wiring in cmd/blob-service.
type blobAPI struct {
	blobs *blobclient.Client
}

func (a *blobAPI) Register(router *gin.Engine) {
	router.PUT("/blobs/*name", func(c *gin.Context) {
		name := c.Param("name")[1:]
		data, err := c.GetRawData()
		if err != nil {
			httpservice.HandleError(c, err)
			return
		}
		if err := a.blobs.UploadBuffer(c.Request.Context(), name, data, &blobclient.UploadOptions{
			ContentType: c.ContentType(),
		}); err != nil {
			httpservice.HandleError(c, err)
			return
		}
		httpservice.CreatedResponse(c, gin.H{"name": name})
	})
	router.GET("/blobs/*name", func(c *gin.Context) {
		name := c.Param("name")[1:]
		data, err := a.blobs.DownloadBuffer(c.Request.Context(), name, nil)
		if err != nil {
			httpservice.HandleError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/octet-stream", data)
	})
}

// TestIntegration_HTTPFlow drives the HTTP server end to end over the
// in-memory backend: health check, upload, download, and a not-found path.
func TestIntegration_HTTPFlow(t *testing.T) {
	client := SetupTestClient("uploads")

	server, err := httpservice.NewServer(httpservice.ServerConfig{
		Port:   0,
		Logger: SetupTestLogger(),
	}, &blobAPI{blobs: client})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	router := server.Router()

	// Health endpoint comes with the server.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Health check returned %d", w.Code)
	}

	// Upload through the API.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/blobs/files/hello.txt", bytes.NewReader([]byte("hello over http")))
	req.Header.Set("Content-Type", "text/plain")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("Upload returned %d: %s", w.Code, w.Body.String())
	}

	// Download it back.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/blobs/files/hello.txt", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Download returned %d", w.Code)
	}
	if w.Body.String() != "hello over http" {
		t.Errorf("Download body mismatch: %q", w.Body.String())
	}

	// Missing blobs surface as 404 with the storage error code.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/blobs/files/absent.txt", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 for absent blob, got %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Error response is not JSON: %v", err)
	}
	if body["code"] != string(blobclient.CodeBlobNotFound) {
		t.Errorf("Expected BlobNotFound code, got %v", body["code"])
	}
}

// TestIntegration_ConditionalWrite verifies that if-not-exists uploads refuse
// to overwrite while plain uploads replace content.
func TestIntegration_ConditionalWrite(t *testing.T) {
	ctx := context.Background()
	client := SetupTestClient("locks")

	if err := client.UploadString(ctx, "state.json", `{"v":1}`, nil); err != nil {
		t.Fatalf("Initial upload failed: %v", err)
	}

	err := client.UploadString(ctx, "state.json", `{"v":2}`, &blobclient.UploadOptions{IfNotExists: true})
	if err == nil {
		t.Fatal("Conditional upload over an existing blob should fail")
	}
	if !blobclient.IsCode(err, blobclient.CodeBlobUpload) {
		t.Errorf("Expected BlobUploadError, got %v", err)
	}

	// The original content must be intact.
	got, err := client.DownloadString(ctx, "state.json", nil)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if got != `{"v":1}` {
		t.Errorf("Conditional upload must not clobber content, got %q", got)
	}
}
