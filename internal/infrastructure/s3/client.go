package s3infra

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/claytile-api/internal/config"
	"github.com/claytile-api/internal/domain"
	"github.com/claytile-api/internal/infrastructure/awscfg"
)

// Store issues presigned upload URLs and finalizes objects in one bucket.
type Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	region    string
	publicURL string
}

// ObjectInfo is what HeadObject reports for a finished upload.
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// NewClient creates an S3 client. When cfg.AWSEndpointURL is set (LocalStack),
// it overrides the endpoint and enables path-style addressing.
func NewClient(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	awsCfg, err := awscfg.Load(ctx, cfg, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}

	clientOpts := []func(*s3.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

// NewStore creates a Store for bucket. publicBaseURL overrides the
// virtual-hosted URL used for finished objects (CDN or LocalStack).
func NewStore(client *s3.Client, bucket, region, publicBaseURL string) *Store {
	return &Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		region:    region,
		publicURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// PresignPut returns a URL the client can PUT the whole object to.
func (s *Store) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign put object: %w", err)
	}
	return req.URL, nil
}

// CreateMultipart starts a multipart upload and returns its id.
func (s *Store) CreateMultipart(ctx context.Context, key, contentType string) (string, error) {
	out, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 create multipart upload: %w", err)
	}
	return aws.ToString(out.UploadId), nil
}

// PresignPart returns a URL for one part of a multipart upload.
func (s *Store) PresignPart(ctx context.Context, key, uploadID string, number int32, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignUploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(number),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign upload part %d: %w", number, err)
	}
	return req.URL, nil
}

// CompleteMultipart stitches the uploaded parts together. Parts may arrive
// in any order; S3 requires them ascending.
func (s *Store) CompleteMultipart(ctx context.Context, key, uploadID string, parts []domain.UploadPart) error {
	if len(parts) == 0 {
		return fmt.Errorf("no parts for multipart upload: %w", domain.ErrBadRequest)
	}
	completed := make([]types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, types.CompletedPart{
			PartNumber: aws.Int32(p.Number),
			ETag:       aws.String(p.ETag),
		})
	}
	sort.Slice(completed, func(i, j int) bool {
		return aws.ToInt32(completed[i].PartNumber) < aws.ToInt32(completed[j].PartNumber)
	})

	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return fmt.Errorf("s3 complete multipart upload: %w", err)
	}
	return nil
}

// AbortMultipart discards the parts of an upload that will not complete.
func (s *Store) AbortMultipart(ctx context.Context, key, uploadID string) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	return err
}

// Head confirms the object exists. A missing object maps to ErrNotFound.
func (s *Store) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, fmt.Errorf("object %q: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3 head object: %w", err)
	}
	return &ObjectInfo{
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}, nil
}

// PublicURL is the address a finished object is served from.
func (s *Store) PublicURL(key string) string {
	return PublicURL(s.publicURL, s.bucket, s.region, key)
}

// PublicURL builds the object address from a base URL, falling back to the
// virtual-hosted S3 form when base is empty.
func PublicURL(base, bucket, region, key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if base != "" {
		return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(escaped, "/")
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, strings.TrimLeft(escaped, "/"))
}
