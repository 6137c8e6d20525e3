package postgres

import (
	"context"
	"fmt"

	"github.com/claytile-api/internal/domain"
)

type FileRepo struct {
	db DB
}

func NewFileRepo(db DB) *FileRepo {
	return &FileRepo{db: db}
}

func (r *FileRepo) Put(ctx context.Context, f *domain.File) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO files (file_id, object, url, size, content_type, name, client_payload, uploaded_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		f.FileID, f.Object, f.URL, f.Size, f.ContentType, f.Name, f.ClientPayload, f.UploadedBy, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}
