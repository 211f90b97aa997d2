package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// minPartSize is the S3 lower bound for multipart parts.
const minPartSize int64 = 5 * 1024 * 1024

// Writer implements domain.BlobWriter.
type Writer struct {
	client *s3.Client
	bucket string
}

func NewWriter(c *Client) *Writer {
	return &Writer{client: c.s3, bucket: c.bucket}
}

func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(path),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put %s: %w", path, err)
	}
	return nil
}

// PutMultipart streams data through the upload manager. partSize is raised
// to the S3 minimum when smaller.
func (w *Writer) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	partSize = max(partSize, minPartSize)
	uploader := manager.NewUploader(w.client, func(u *manager.Uploader) {
		u.PartSize = partSize
	})
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(path),
		Body:        data,
		ContentType: aws.String(archiveContentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: multipart upload %s: %w", path, err)
	}
	return nil
}

var _ domain.BlobWriter = (*Writer)(nil)
