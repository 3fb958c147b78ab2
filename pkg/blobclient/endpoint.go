package blobclient

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"
)

// Credential selects how the client authenticates. It is an explicit tagged
// union over token, shared-key, and none; the zero value means "no
// credential" (anonymous access or a SAS carried in the URL).
type Credential struct {
	token     azcore.TokenCredential
	sharedKey *azblob.SharedKeyCredential
}

// NewTokenCredential wraps an azcore token credential (for example one built
// with azidentity).
func NewTokenCredential(tc azcore.TokenCredential) Credential {
	return Credential{token: tc}
}

// NewSharedKeyCredential builds a shared-key credential from an account name
// and base64-encoded account key.
func NewSharedKeyCredential(accountName, accountKey string) (Credential, error) {
	sk, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return Credential{}, wrapConfigError("invalid shared key credential", err)
	}
	return Credential{sharedKey: sk}, nil
}

func (c Credential) isZero() bool {
	return c.token == nil && c.sharedKey == nil
}

// Hostnames that imply a path-style endpoint, where the account name rides
// as the first URL path segment (Azurite and other local emulators).
var pathStyleHosts = map[string]bool{
	"localhost":            true,
	"127.0.0.1":            true,
	"::1":                  true,
	"0.0.0.0":              true,
	"host.docker.internal": true,
}

// The Go SDK does not expand the UseDevelopmentStorage shorthand, so it is
// rewritten to the well-known Azurite connection string.
const devStorageConnectionString = "DefaultEndpointsProtocol=http;" +
	"AccountName=devstoreaccount1;" +
	"AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;" +
	"BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;"

func isDevStorageMarker(descriptor string) bool {
	return strings.Contains(strings.ToLower(descriptor), "usedevelopmentstorage=true")
}

func isConnectionString(descriptor string) bool {
	return strings.Contains(strings.ToLower(descriptor), "accountname=") || isDevStorageMarker(descriptor)
}

func isURL(descriptor string) bool {
	return strings.Contains(descriptor, "://")
}

func pathSegments(p string) []string {
	var segments []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// resolveContainerClient classifies the connection descriptor and builds a
// container-level handle for it. Classification order: connection string,
// URL, bare account name; first match wins. This stage never calls the
// network, and every rejection is a ConfigurationError.
func resolveContainerClient(descriptor, containerName string, cred Credential, allowPathStyle bool) (*container.Client, error) {
	switch {
	case isConnectionString(descriptor):
		cs := descriptor
		if isDevStorageMarker(descriptor) {
			cs = devStorageConnectionString
		}
		svc, err := service.NewClientFromConnectionString(cs, nil)
		if err != nil {
			return nil, wrapConfigError("invalid connection string", err)
		}
		return svc.NewContainerClient(containerName), nil

	case isURL(descriptor):
		return resolveFromURL(descriptor, containerName, cred, allowPathStyle)

	default:
		// Bare account name. Fall back to the ambient default credential
		// when none was supplied.
		serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", descriptor)
		if cred.isZero() {
			dc, err := azidentity.NewDefaultAzureCredential(nil)
			if err != nil {
				return nil, wrapConfigError("no credential supplied and the default Azure credential is unavailable", err)
			}
			cred = NewTokenCredential(dc)
		}
		svc, err := newServiceClient(serviceURL, cred)
		if err != nil {
			return nil, err
		}
		return svc.NewContainerClient(containerName), nil
	}
}

func resolveFromURL(descriptor, containerName string, cred Credential, allowPathStyle bool) (*container.Client, error) {
	u, err := url.Parse(descriptor)
	if err != nil {
		return nil, wrapConfigError(fmt.Sprintf("invalid endpoint URL %q", descriptor), err)
	}

	segments := pathSegments(u.Path)
	pathStyle := allowPathStyle || pathStyleHosts[u.Hostname()]
	maxSegments, containerIndex := 1, 0
	if pathStyle {
		maxSegments, containerIndex = 2, 1
	}

	switch {
	case len(segments) > maxSegments:
		return nil, newConfigError(
			"blob-level URLs are not supported: pass an account or container URL and address blobs by name")

	case len(segments) == maxSegments:
		// Container-level URL; the embedded name must agree with the caller.
		if embedded := segments[containerIndex]; embedded != containerName {
			return nil, newConfigError(fmt.Sprintf(
				"container name mismatch: URL addresses container %q but %q was requested", embedded, containerName))
		}
		// The full URL is kept so that any SAS in the query string rides along.
		return newContainerClient(descriptor, cred)

	default:
		// Account-root URL, with or without a SAS.
		svc, err := newServiceClient(descriptor, cred)
		if err != nil {
			return nil, err
		}
		return svc.NewContainerClient(containerName), nil
	}
}

func newServiceClient(serviceURL string, cred Credential) (*service.Client, error) {
	var (
		svc *service.Client
		err error
	)
	switch {
	case cred.token != nil:
		svc, err = service.NewClient(serviceURL, cred.token, nil)
	case cred.sharedKey != nil:
		svc, err = service.NewClientWithSharedKeyCredential(serviceURL, cred.sharedKey, nil)
	default:
		svc, err = service.NewClientWithNoCredential(serviceURL, nil)
	}
	if err != nil {
		return nil, wrapConfigError(fmt.Sprintf("cannot build service client for %q", serviceURL), err)
	}
	return svc, nil
}

func newContainerClient(containerURL string, cred Credential) (*container.Client, error) {
	var (
		cc  *container.Client
		err error
	)
	switch {
	case cred.token != nil:
		cc, err = container.NewClient(containerURL, cred.token, nil)
	case cred.sharedKey != nil:
		cc, err = container.NewClientWithSharedKeyCredential(containerURL, cred.sharedKey, nil)
	default:
		cc, err = container.NewClientWithNoCredential(containerURL, nil)
	}
	if err != nil {
		return nil, wrapConfigError(fmt.Sprintf("cannot build container client for %q", containerURL), err)
	}
	return cc, nil
}
