package source

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/shankscript/skale-engine/ports"
)

// S3BlobStore implements ports.BlobStore over an AWS S3 client, backing
// the s3:// URI scheme (spec §6 `lib.AWS`).
type S3BlobStore struct {
	Client *s3.Client
}

func (s *S3BlobStore) List(ctx context.Context, bucket, prefix, glob string, maxFiles int) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(s.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("skale/source: s3: list %s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
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

func (s *S3BlobStore) Open(ctx context.Context, bucket, key string) (ports.ReadCloser, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("skale/source: s3: get %s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}

// Create returns a pipe-backed WriteCloser: data written to it streams into
// a background PutObject call, so callers never need to buffer the whole
// object in memory before upload (spec §6 save-to-s3 path).
func (s *S3BlobStore) Create(ctx context.Context, bucket, key string) (ports.WriteCloser, error) {
	pr, pw := io.Pipe()
	errCh := make(chan error, 1)
	go func() {
		_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   pr,
		})
		errCh <- err
		pr.CloseWithError(err)
	}()
	return &s3PipeWriter{pw: pw, errCh: errCh}, nil
}

type s3PipeWriter struct {
	pw    *io.PipeWriter
	errCh chan error
}

func (w *s3PipeWriter) Write(p []byte) (int, error) { return w.pw.Write(p) }

func (w *s3PipeWriter) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}
	if err := <-w.errCh; err != nil {
		return fmt.Errorf("skale/source: s3: put: %w", err)
	}
	return nil
}
