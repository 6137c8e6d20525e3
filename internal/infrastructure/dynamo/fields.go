package dynamo

// DynamoDB attribute names used in keys and expressions across all stores.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldIdentifier = "identifier"
	fieldToken      = "token"
	fieldFileID     = "file_id"
	fieldCodeHash   = "code_hash"
	fieldExpiresAt  = "expires_at"
)
