package domain

import "time"

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Identifier is the subject of a login attempt. After normalization exactly
// one of Email or Phone is populated.
type Identifier struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Key is the upsert key for verification codes: "email:<addr>" or "phone:<e164>".
func (i Identifier) Key() string {
	if i.Email != "" {
		return "email:" + i.Email
	}
	return "phone:" + i.Phone
}

// Kind reports "email" or "phone".
func (i Identifier) Kind() string {
	if i.Email != "" {
		return "email"
	}
	return "phone"
}

func (i Identifier) String() string {
	if i.Email != "" {
		return i.Email
	}
	return i.Phone
}

// VerificationCode stores a passcode hash for one identifier.
// PK: identifier. ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type VerificationCode struct {
	Identifier string    `json:"identifier" dynamodbav:"identifier"`
	Email      string    `json:"email" dynamodbav:"email"`
	Phone      string    `json:"phone" dynamodbav:"phone"`
	CodeHash   string    `json:"-" dynamodbav:"code_hash"`
	ExpiresAt  int64     `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
	CreatedAt  time.Time `json:"created" dynamodbav:"created_at"`
}

// Expired reports whether the code is past its expiry at now.
func (v *VerificationCode) Expired(now time.Time) bool {
	return v.ExpiresAt <= now.Unix()
}
