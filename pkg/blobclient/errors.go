package blobclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// Code identifies a category of storage failure.
type Code string

const (
	// CodeConfiguration indicates caller misuse detected locally, before any
	// network call (bad URL shape, container name mismatch, invalid range,
	// non-serializable JSON).
	CodeConfiguration Code = "ConfigurationError"
	// CodeBlobNotFound indicates the backend reported a missing blob.
	CodeBlobNotFound Code = "BlobNotFound"
	// CodeContainerNotFound indicates the backend reported a missing container.
	CodeContainerNotFound Code = "ContainerNotFound"
	// CodeAuthentication indicates the backend rejected the credentials.
	CodeAuthentication Code = "AuthenticationError"
	// CodeBlobUpload indicates an upload failed for a reason other than the above.
	CodeBlobUpload Code = "BlobUploadError"
	// CodeBlobDownload indicates a download failed for a reason other than the above.
	CodeBlobDownload Code = "BlobDownloadError"
	// CodeContainerOperation indicates a container-scoped call failed.
	CodeContainerOperation Code = "ContainerOperationError"
	// CodeStorage is the fallback for blob-scoped calls with no dedicated code.
	CodeStorage Code = "StorageError"
)

// Error is the single error type surfaced by this package. Raw backend
// failures never escape; they are wrapped here with enough context for the
// caller to react programmatically.
type Error struct {
	Code          Code
	Message       string
	BlobName      string
	ContainerName string
	Operation     string
	Err           error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the originating low-level failure, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether err is (or wraps) a blobclient Error with the given code.
func IsCode(err error, code Code) bool {
	var typed *Error
	return errors.As(err, &typed) && typed.Code == code
}

func newConfigError(message string) *Error {
	return &Error{Code: CodeConfiguration, Message: message}
}

func wrapConfigError(message string, err error) *Error {
	return &Error{Code: CodeConfiguration, Message: message, Err: err}
}

// opCategory is the operation category in flight when a backend call failed.
// It selects the fallback code for failures that are not 404/401/403.
type opCategory int

const (
	opUpload opCategory = iota
	opDownload
	opContainer
	opBlob
)

func (c opCategory) fallbackCode() Code {
	switch c {
	case opUpload:
		return CodeBlobUpload
	case opDownload:
		return CodeBlobDownload
	case opContainer:
		return CodeContainerOperation
	default:
		return CodeStorage
	}
}

// translate maps a backend failure into a typed Error. Errors that are
// already typed (for example a download failure raised while draining a
// stream, or anything produced by the in-memory backend) pass through
// unchanged rather than being re-wrapped.
func translate(err error, category opCategory, operation, blobName, containerName string) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	out := &Error{
		BlobName:      blobName,
		ContainerName: containerName,
		Operation:     operation,
		Err:           err,
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch {
		case respErr.StatusCode == http.StatusNotFound && category == opContainer:
			// Container-scoped calls cannot distinguish further.
			out.Code = CodeContainerNotFound
			out.Message = fmt.Sprintf("container %q not found", containerName)
			return out
		case respErr.StatusCode == http.StatusNotFound:
			if respErr.ErrorCode == string(bloberror.ContainerNotFound) {
				out.Code = CodeContainerNotFound
				out.Message = fmt.Sprintf("container %q not found", containerName)
				return out
			}
			out.Code = CodeBlobNotFound
			out.Message = fmt.Sprintf("blob %q not found in container %q", blobName, containerName)
			return out
		case respErr.StatusCode == http.StatusUnauthorized || respErr.StatusCode == http.StatusForbidden:
			out.Code = CodeAuthentication
			out.Message = fmt.Sprintf(
				"authentication failed for %s on container %q: check that the credential (account key, SAS token, or identity) is valid and has not expired",
				operation, containerName)
			return out
		}
	}

	out.Code = category.fallbackCode()
	switch category {
	case opUpload:
		out.Message = fmt.Sprintf("failed to upload blob %q to container %q", blobName, containerName)
	case opDownload:
		out.Message = fmt.Sprintf("failed to download blob %q from container %q", blobName, containerName)
	case opContainer:
		out.Message = fmt.Sprintf("container operation %q failed on container %q", operation, containerName)
	default:
		out.Message = fmt.Sprintf("operation %q failed for blob %q in container %q", operation, blobName, containerName)
	}
	return out
}
