package s3infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name, base, key, want string
	}{
		{"virtual hosted", "", "uploads/roof.jpg", "https://tiles.s3.us-east-1.amazonaws.com/uploads/roof.jpg"},
		{"base url", "https://cdn.example.com/", "uploads/roof.jpg", "https://cdn.example.com/uploads/roof.jpg"},
		{"escapes spaces", "http://localhost:4566/tiles", "uploads/ridge cap.png", "http://localhost:4566/tiles/uploads/ridge%20cap.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PublicURL(tt.base, "tiles", "us-east-1", tt.key))
		})
	}
}
