package size

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{4_200_000, "4.2 MB"},
		{52_428_800, "52.4 MB"},
		{1_500_000_000, "1.5 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(tt.in))
	}
}
