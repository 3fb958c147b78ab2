package blobclient

import (
	"context"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

// azureBackend implements Backend over an Azure Blob Storage container
// client. It returns raw SDK errors; translation happens at the Client
// boundary.
type azureBackend struct {
	container *container.Client
}

func newAzureBackend(descriptor, containerName string, cred Credential, allowPathStyle bool) (*azureBackend, error) {
	cc, err := resolveContainerClient(descriptor, containerName, cred, allowPathStyle)
	if err != nil {
		return nil, err
	}
	return &azureBackend{container: cc}, nil
}

func (b *azureBackend) BlobURL(name string) string {
	return b.container.NewBlobClient(name).URL()
}

func (b *azureBackend) EnsureContainer(ctx context.Context) error {
	_, err := b.container.Create(ctx, nil)
	if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil
	}
	return err
}

func uploadAccessConditions(ifNoneMatch bool) *blob.AccessConditions {
	if !ifNoneMatch {
		return nil
	}
	return &blob.AccessConditions{
		ModifiedAccessConditions: &blob.ModifiedAccessConditions{
			IfNoneMatch: to.Ptr(azcore.ETag("*")),
		},
	}
}

func (b *azureBackend) UploadBuffer(ctx context.Context, name string, data []byte, params UploadParams) error {
	opts := &blockblob.UploadBufferOptions{
		HTTPHeaders:      &blob.HTTPHeaders{BlobContentType: to.Ptr(params.ContentType)},
		Metadata:         toAzureMetadata(params.Metadata),
		Tags:             params.Tags,
		AccessConditions: uploadAccessConditions(params.IfNoneMatch),
		Progress:         params.Progress,
	}
	_, err := b.container.NewBlockBlobClient(name).UploadBuffer(ctx, data, opts)
	return err
}

func (b *azureBackend) UploadFile(ctx context.Context, name string, f *os.File, params UploadParams) error {
	opts := &blockblob.UploadFileOptions{
		HTTPHeaders:      &blob.HTTPHeaders{BlobContentType: to.Ptr(params.ContentType)},
		Metadata:         toAzureMetadata(params.Metadata),
		Tags:             params.Tags,
		AccessConditions: uploadAccessConditions(params.IfNoneMatch),
		Progress:         params.Progress,
	}
	_, err := b.container.NewBlockBlobClient(name).UploadFile(ctx, f, opts)
	return err
}

func (b *azureBackend) Download(ctx context.Context, name string, rng *Range) (*DownloadInfo, error) {
	opts := &blob.DownloadStreamOptions{}
	if rng != nil {
		opts.Range = blob.HTTPRange{Offset: rng.Start, Count: rng.End - rng.Start + 1}
	}
	resp, err := b.container.NewBlobClient(name).DownloadStream(ctx, opts)
	if err != nil {
		return nil, err
	}
	info := &DownloadInfo{
		Body:          resp.Body,
		ContentLength: TotalUnknown,
		Metadata:      fromAzureMetadata(resp.Metadata),
	}
	if resp.ContentLength != nil {
		info.ContentLength = *resp.ContentLength
	}
	if resp.ContentType != nil {
		info.ContentType = *resp.ContentType
	}
	if resp.ETag != nil {
		info.ETag = string(*resp.ETag)
	}
	if resp.LastModified != nil {
		info.LastModified = *resp.LastModified
	}
	return info, nil
}

func (b *azureBackend) Exists(ctx context.Context, name string) (bool, error) {
	_, err := b.container.NewBlobClient(name).GetProperties(ctx, nil)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *azureBackend) Delete(ctx context.Context, name string) error {
	_, err := b.container.NewBlobClient(name).Delete(ctx, nil)
	return err
}

func (b *azureBackend) Properties(ctx context.Context, name string) (*BlobMetadata, error) {
	resp, err := b.container.NewBlobClient(name).GetProperties(ctx, nil)
	if err != nil {
		return nil, err
	}
	md := &BlobMetadata{
		Name:     name,
		Metadata: fromAzureMetadata(resp.Metadata),
	}
	if resp.ContentLength != nil {
		md.Size = *resp.ContentLength
	}
	if resp.ContentType != nil {
		md.ContentType = *resp.ContentType
	}
	if resp.ETag != nil {
		md.ETag = string(*resp.ETag)
	}
	if resp.LastModified != nil {
		md.LastModified = *resp.LastModified
	}
	return md, nil
}

func (b *azureBackend) SetMetadata(ctx context.Context, name string, metadata map[string]string) error {
	_, err := b.container.NewBlobClient(name).SetMetadata(ctx, toAzureMetadata(metadata), nil)
	return err
}

func (b *azureBackend) Tags(ctx context.Context, name string) (map[string]string, error) {
	resp, err := b.container.NewBlobClient(name).GetTags(ctx, nil)
	if err != nil {
		return nil, err
	}
	tags := make(map[string]string, len(resp.BlobTagSet))
	for _, t := range resp.BlobTagSet {
		if t != nil && t.Key != nil && t.Value != nil {
			tags[*t.Key] = *t.Value
		}
	}
	return tags, nil
}

func (b *azureBackend) List(ctx context.Context, params ListParams) ([]BlobItem, error) {
	opts := &container.ListBlobsFlatOptions{
		Include: container.ListBlobsInclude{
			Metadata: params.IncludeMetadata,
			Tags:     params.IncludeTags,
		},
	}
	if params.Prefix != "" {
		opts.Prefix = to.Ptr(params.Prefix)
	}
	if params.MaxResults > 0 {
		opts.MaxResults = to.Ptr(int32(params.MaxResults))
	}

	pager := b.container.NewListBlobsFlatPager(opts)
	var items []BlobItem
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, it := range page.Segment.BlobItems {
			if it == nil || it.Name == nil {
				continue
			}
			item := BlobItem{
				Name:     *it.Name,
				Metadata: fromAzureMetadata(it.Metadata),
			}
			if it.Properties != nil {
				if it.Properties.ContentLength != nil {
					item.Size = *it.Properties.ContentLength
				}
				if it.Properties.ContentType != nil {
					item.ContentType = *it.Properties.ContentType
				}
				if it.Properties.LastModified != nil {
					item.LastModified = *it.Properties.LastModified
				}
				if it.Properties.ETag != nil {
					item.ETag = string(*it.Properties.ETag)
				}
			}
			if it.BlobTags != nil {
				tags := make(map[string]string, len(it.BlobTags.BlobTagSet))
				for _, t := range it.BlobTags.BlobTagSet {
					if t != nil && t.Key != nil && t.Value != nil {
						tags[*t.Key] = *t.Value
					}
				}
				item.Tags = tags
			}
			items = append(items, item)
			// Stop paging early once the caller's cap is reached.
			if params.MaxResults > 0 && len(items) >= params.MaxResults {
				return items, nil
			}
		}
	}
	return items, nil
}

func toAzureMetadata(m map[string]string) map[string]*string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]*string, len(m))
	for k, v := range m {
		out[k] = to.Ptr(v)
	}
	return out
}

func fromAzureMetadata(m map[string]*string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}
