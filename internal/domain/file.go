package domain

import "time"

// File records an object that finished a delegated upload.
type File struct {
	FileID        string    `json:"id" dynamodbav:"file_id"`
	Object        string    `json:"pathname" dynamodbav:"object"`
	URL           string    `json:"url" dynamodbav:"url"`
	Size          int64     `json:"size" dynamodbav:"size"`
	ContentType   string    `json:"content_type" dynamodbav:"content_type"`
	Name          string    `json:"filename" dynamodbav:"name"`
	ClientPayload string    `json:"-" dynamodbav:"client_payload"`
	UploadedBy    string    `json:"-" dynamodbav:"uploaded_by"` // session identifier, empty for anonymous uploads
	CreatedAt     time.Time `json:"created" dynamodbav:"created_at"`
}

// UploadedFile is the descriptor handed back to upload clients.
type UploadedFile struct {
	URL         string `json:"url"`
	Pathname    string `json:"pathname"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
}

// UploadPart is one presigned part of a multipart upload.
type UploadPart struct {
	Number int32  `json:"number"`
	URL    string `json:"url,omitempty"`
	ETag   string `json:"etag,omitempty"`
}

// UploadAuthorization is the delegated credential a client needs to push bytes
// straight to object storage. Exactly one of URL or Parts is set.
type UploadAuthorization struct {
	Token       string       `json:"token"`
	Pathname    string       `json:"pathname"`
	PublicURL   string       `json:"public_url"`
	ContentType string       `json:"content_type"`
	URL         string       `json:"url,omitempty"`
	UploadID    string       `json:"upload_id,omitempty"`
	PartSize    int64        `json:"part_size,omitempty"`
	Parts       []UploadPart `json:"parts,omitempty"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// Multipart reports whether the authorization uses presigned parts.
func (a *UploadAuthorization) Multipart() bool {
	return a.UploadID != ""
}
