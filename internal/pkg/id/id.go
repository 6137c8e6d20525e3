package id

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs sort by creation time, which keeps
// upload keys and file records in arrival order.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// NewAt generates a ULID whose timestamp component is t.
func NewAt(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}
