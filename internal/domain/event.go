package domain

import "time"

// Event subjects published on the message bus.
const (
	EventCodeRequested   = "auth.code.requested"
	EventSessionCreated  = "auth.session.created"
	EventUploadCompleted = "upload.completed"
)

// Event is the envelope for everything published on the message bus.
// Payloads never carry passcodes or session tokens.
type Event struct {
	Subject    string            `json:"subject"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes"`
}
