package abac

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Effect is the outcome a policy contributes when its condition matches
type Effect string

const (
	EffectAllow Effect = "ALLOW"
	EffectDeny  Effect = "DENY"
)

// Policy is a named conditional rule evaluated against the attribute context
// of a permission check. Condition holds the raw JSON of the condition tree;
// it is parsed at evaluation time and a malformed tree degrades to non-match.
type Policy struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Effect    Effect          `json:"effect"`
	Condition json.RawMessage `json:"condition"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
