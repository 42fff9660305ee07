package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/victoralfred/authz_sys/internal/domain/principal"
)

// DecisionRecord is the persisted trail of one authorization check: who asked
// for what, the outcome, and the attribute context the policies saw.
type DecisionRecord struct {
	ID            uuid.UUID              `json:"id"`
	Timestamp     time.Time              `json:"timestamp"`
	PrincipalType principal.Type         `json:"principal_type"`
	SubjectID     uuid.UUID              `json:"subject_id"`
	Permission    string                 `json:"permission"`
	Allowed       bool                   `json:"allowed"`
	Reason        string                 `json:"reason"`
	Attributes    map[string]interface{} `json:"attributes,omitempty"`
	RequestID     string                 `json:"request_id,omitempty"`
}

// DecisionRecorder persists decision records. Recording is best-effort: a
// recorder failure never changes or blocks the decision itself.
type DecisionRecorder interface {
	Record(ctx context.Context, record *DecisionRecord) error
}
