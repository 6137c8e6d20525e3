package upload

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/claytile-api/internal/domain"
	jwtinfra "github.com/claytile-api/internal/infrastructure/jwt"
	s3infra "github.com/claytile-api/internal/infrastructure/s3"
	"github.com/claytile-api/internal/pkg/id"
	"github.com/claytile-api/internal/pkg/mediatype"
	"github.com/claytile-api/internal/pkg/size"
	"github.com/claytile-api/internal/pkg/validate"
	"go.uber.org/zap"
)

// maxParts is the S3 limit on parts per multipart upload.
const maxParts = 10000

type AuthorizeRequest struct {
	Filename      string `json:"filename" validate:"required,max=255"`
	ContentType   string `json:"content_type" validate:"omitempty,max=255"`
	Size          int64  `json:"size" validate:"gte=0"`
	ClientPayload string `json:"client_payload" validate:"max=4096"`
}

type CompleteRequest struct {
	Token string              `json:"token" validate:"required"`
	Parts []domain.UploadPart `json:"parts"`
}

type Service interface {
	Authorize(ctx context.Context, req AuthorizeRequest, uploadedBy string) (*domain.UploadAuthorization, error)
	Complete(ctx context.Context, req CompleteRequest) (*domain.UploadedFile, error)
}

// ObjectStore issues presigned URLs and finalizes objects.
type ObjectStore interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	CreateMultipart(ctx context.Context, key, contentType string) (string, error)
	PresignPart(ctx context.Context, key, uploadID string, number int32, ttl time.Duration) (string, error)
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []domain.UploadPart) error
	AbortMultipart(ctx context.Context, key, uploadID string) error
	Head(ctx context.Context, key string) (*s3infra.ObjectInfo, error)
	PublicURL(key string) string
}

type GrantSigner interface {
	Sign(claims jwtinfra.UploadClaims) (string, time.Time, error)
	Verify(token string) (*jwtinfra.UploadClaims, error)
}

type FileStore interface {
	Put(ctx context.Context, f *domain.File) error
}

type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// Policy is the server-side rule set for delegated uploads.
type Policy struct {
	AllowedContentTypes []string
	MaxBytes            int64
	PartSize            int64
	RandomSuffix        bool
	URLExpiry           time.Duration
}

type ServiceDeps struct {
	Store     ObjectStore
	Signer    GrantSigner
	Files     FileStore
	Publisher Publisher
	Policy    Policy
	Now       func() time.Time
}

type service struct {
	store     ObjectStore
	signer    GrantSigner
	files     FileStore
	publisher Publisher
	policy    Policy
	now       func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:     deps.Store,
		signer:    deps.Signer,
		files:     deps.Files,
		publisher: deps.Publisher,
		policy:    deps.Policy,
		now:       deps.Now,
	}
	if s.policy.PartSize <= 0 {
		s.policy.PartSize = 5 << 20
	}
	if s.policy.URLExpiry <= 0 {
		s.policy.URLExpiry = 15 * time.Minute
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) configured() bool {
	return s.store != nil && s.signer != nil
}

func (s *service) Authorize(ctx context.Context, req AuthorizeRequest, uploadedBy string) (*domain.UploadAuthorization, error) {
	if !s.configured() {
		return nil, domain.ErrStorageUnavailable
	}
	if err := validate.Struct(req); err != nil {
		return nil, domain.Invalid(err.Error())
	}

	name := sanitizeFilename(req.Filename)
	contentType := mediatype.Normalize(req.ContentType)
	if contentType == "" {
		contentType = mediatype.FromName(name)
	}
	if !mediatype.Allowed(s.policy.AllowedContentTypes, contentType) {
		return nil, domain.Invalid(fmt.Sprintf("content type %s is not allowed", contentType))
	}
	if s.policy.MaxBytes > 0 && req.Size > s.policy.MaxBytes {
		return nil, domain.Invalid(fmt.Sprintf("file exceeds the %s limit", size.Format(s.policy.MaxBytes)))
	}

	key := s.objectKey(name)
	auth := &domain.UploadAuthorization{
		Pathname:    key,
		PublicURL:   s.store.PublicURL(key),
		ContentType: contentType,
	}

	if req.Size > s.policy.PartSize {
		if err := s.presignParts(ctx, auth, req.Size); err != nil {
			return nil, err
		}
	} else {
		url, err := s.store.PresignPut(ctx, key, contentType, s.policy.URLExpiry)
		if err != nil {
			return nil, err
		}
		auth.URL = url
	}

	token, expiresAt, err := s.signer.Sign(jwtinfra.UploadClaims{
		Key:           key,
		UploadID:      auth.UploadID,
		Filename:      name,
		ContentType:   contentType,
		Size:          req.Size,
		ClientPayload: req.ClientPayload,
		UploadedBy:    uploadedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("sign upload grant: %w", err)
	}
	auth.Token = token
	auth.ExpiresAt = expiresAt
	return auth, nil
}

func (s *service) presignParts(ctx context.Context, auth *domain.UploadAuthorization, size int64) error {
	count := (size + s.policy.PartSize - 1) / s.policy.PartSize
	if count > maxParts {
		return domain.Invalid(fmt.Sprintf("file needs more than %d parts", maxParts))
	}
	uploadID, err := s.store.CreateMultipart(ctx, auth.Pathname, auth.ContentType)
	if err != nil {
		return err
	}
	auth.UploadID = uploadID
	auth.PartSize = s.policy.PartSize
	auth.Parts = make([]domain.UploadPart, 0, count)
	for n := int32(1); int64(n) <= count; n++ {
		url, err := s.store.PresignPart(ctx, auth.Pathname, uploadID, n, s.policy.URLExpiry)
		if err != nil {
			s.abort(auth.Pathname, uploadID)
			return err
		}
		auth.Parts = append(auth.Parts, domain.UploadPart{Number: n, URL: url})
	}
	return nil
}

func (s *service) Complete(ctx context.Context, req CompleteRequest) (*domain.UploadedFile, error) {
	if !s.configured() {
		return nil, domain.ErrStorageUnavailable
	}
	if err := validate.Struct(req); err != nil {
		return nil, domain.Invalid("token is required")
	}
	claims, err := s.signer.Verify(req.Token)
	if err != nil {
		return nil, fmt.Errorf("upload grant: %v: %w", err, domain.ErrUnauthorized)
	}

	if claims.UploadID != "" {
		if len(req.Parts) == 0 {
			return nil, domain.Invalid("parts are required for a multipart upload")
		}
		if err := s.store.CompleteMultipart(ctx, claims.Key, claims.UploadID, req.Parts); err != nil {
			return nil, err
		}
	}

	info, err := s.store.Head(ctx, claims.Key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Invalid("object has not been uploaded")
		}
		return nil, err
	}
	if claims.Size > 0 && info.Size != claims.Size {
		return nil, domain.Invalid(fmt.Sprintf("uploaded size %d does not match authorized size %d", info.Size, claims.Size))
	}

	now := s.now().UTC()
	f := &domain.File{
		FileID:        id.NewAt(now),
		Object:        claims.Key,
		URL:           s.store.PublicURL(claims.Key),
		Size:          info.Size,
		ContentType:   claims.ContentType,
		Name:          claims.Filename,
		ClientPayload: claims.ClientPayload,
		UploadedBy:    claims.UploadedBy,
		CreatedAt:     now,
	}
	if s.files != nil {
		if err := s.files.Put(ctx, f); err != nil {
			return nil, err
		}
	}

	if s.publisher != nil {
		ev := domain.Event{
			Subject:    domain.EventUploadCompleted,
			OccurredAt: now,
			Attributes: map[string]string{
				"file_id":      f.FileID,
				"pathname":     f.Object,
				"content_type": f.ContentType,
				"size":         strconv.FormatInt(f.Size, 10),
			},
		}
		if err := s.publisher.Publish(ctx, ev); err != nil {
			zap.L().Warn("event not published", zap.String("subject", ev.Subject), zap.Error(err))
		}
	}

	return &domain.UploadedFile{
		URL:         f.URL,
		Pathname:    f.Object,
		Size:        f.Size,
		ContentType: f.ContentType,
		Filename:    f.Name,
	}, nil
}

func (s *service) abort(key, uploadID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.AbortMultipart(ctx, key, uploadID); err != nil {
		zap.L().Warn("abort multipart upload", zap.String("key", key), zap.Error(err))
	}
}

func (s *service) objectKey(name string) string {
	if !s.policy.RandomSuffix {
		return "uploads/" + name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("uploads/%s-%s%s", base, id.NewAt(s.now()), ext)
}

// sanitizeFilename strips directory components and keeps only safe characters
// (alphanumeric, dot, dash, underscore) to prevent path traversal in S3 keys.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if result := b.String(); result != "" && result != "." && result != ".." {
		return result
	}
	return "_"
}
