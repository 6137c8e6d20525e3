package domain

import "time"

// Session is an opaque bearer credential issued after a successful passcode check.
// PK: token. ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type Session struct {
	Token      string    `json:"-" dynamodbav:"token"`
	Identifier string    `json:"identifier" dynamodbav:"identifier"`
	CreatedAt  time.Time `json:"created" dynamodbav:"created_at"`
	ExpiresAt  int64     `json:"expires_at" dynamodbav:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt <= now.Unix()
}
