package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// Reader implements domain.BlobReader.
type Reader struct {
	client *s3.Client
	bucket string
}

func NewReader(c *Client) *Reader {
	return &Reader{client: c.s3, bucket: c.bucket}
}

// Get returns the object body; the caller closes it. A missing key yields
// domain.ErrNotFound.
func (r *Reader) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3blob: get %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3blob: get %s: %w", path, err)
	}
	return out.Body, nil
}

// List pages through every object under prefix.
func (r *Reader) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo
	pages := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3blob: list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			info := domain.BlobInfo{
				Path: aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			infos = append(infos, info)
		}
	}
	return infos, nil
}

func (r *Reader) Exists(ctx context.Context, path string) (bool, error) {
	_, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(path),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("s3blob: head %s: %w", path, err)
}

// isNotFound matches NoSuchKey, the bare 404 HeadObject returns, and any
// provider response carrying HTTP 404.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == http.StatusNotFound
}

var _ domain.BlobReader = (*Reader)(nil)
