package source

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/shankscript/skale-engine/ports"
)

// AzureBlobStore implements ports.BlobStore over an Azure Blob Storage
// client, backing the azblob:// URI scheme (spec §6 `lib.azure`).
type AzureBlobStore struct {
	Client *azblob.Client
}

func (a *AzureBlobStore) List(ctx context.Context, bucket, prefix, glob string, maxFiles int) ([]string, error) {
	var keys []string
	pager := a.Client.NewListBlobsFlatPager(bucket, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("skale/source: azblob: list %s/%s: %w", bucket, prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			key := *item.Name
			if glob != "" {
				if ok, _ := path.Match(glob, path.Base(key)); !ok {
					continue
				}
			}
			keys = append(keys, key)
			if maxFiles > 0 && len(keys) >= maxFiles {
				return keys, nil
			}
		}
	}
	return keys, nil
}

func (a *AzureBlobStore) Open(ctx context.Context, bucket, key string) (ports.ReadCloser, error) {
	resp, err := a.Client.DownloadStream(ctx, bucket, key, nil)
	if err != nil {
		return nil, fmt.Errorf("skale/source: azblob: download %s/%s: %w", bucket, key, err)
	}
	return resp.Body, nil
}

// Create buffers the whole payload before uploading: unlike S3's streaming
// Body reader, azblob's UploadBuffer wants the complete byte slice up
// front, so Close is where the actual network call happens.
func (a *AzureBlobStore) Create(ctx context.Context, bucket, key string) (ports.WriteCloser, error) {
	return &azblobBufferWriter{ctx: ctx, client: a.Client, bucket: bucket, key: key}, nil
}

type azblobBufferWriter struct {
	ctx    context.Context
	client *azblob.Client
	bucket string
	key    string
	buf    bytes.Buffer
}

func (w *azblobBufferWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *azblobBufferWriter) Close() error {
	_, err := w.client.UploadBuffer(w.ctx, w.bucket, w.key, w.buf.Bytes(), nil)
	if err != nil {
		return fmt.Errorf("skale/source: azblob: upload %s/%s: %w", w.bucket, w.key, err)
	}
	return nil
}
