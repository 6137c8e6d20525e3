package uploader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/claytile-api/internal/pkg/mediatype"
	"github.com/gabriel-vasile/mimetype"
)

// File is a payload waiting to be uploaded.
type File struct {
	Name        string
	Size        int64
	ContentType string
	// Path is the local file the payload came from, if any.
	Path string
	// Open returns a fresh reader over the payload; it is called once per attempt.
	Open func() (io.ReadCloser, error)
}

// FromPath describes a local file, sniffing its content type from its bytes.
func FromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return File{}, fmt.Errorf("detect content type of %s: %w", path, err)
	}
	return File{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: mediatype.Normalize(mt.String()),
		Path:        path,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// FromBytes wraps an in-memory payload.
func FromBytes(name, contentType string, data []byte) File {
	return File{
		Name:        name,
		Size:        int64(len(data)),
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}
