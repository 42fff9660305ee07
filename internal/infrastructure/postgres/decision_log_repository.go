package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victoralfred/authz_sys/internal/domain/audit"
	"github.com/victoralfred/authz_sys/internal/domain/principal"
)

// DecisionLogRepository persists authorization decision records
type DecisionLogRepository struct {
	db *pgxpool.Pool
}

func NewDecisionLogRepository(db *pgxpool.Pool) *DecisionLogRepository {
	return &DecisionLogRepository{
		db: db,
	}
}

// Record writes one decision record
func (r *DecisionLogRepository) Record(ctx context.Context, record *audit.DecisionRecord) error {
	query := `
		INSERT INTO decision_log (
			id, timestamp, principal_type, subject_id, permission,
			allowed, reason, attributes, request_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	var attributesJSON []byte
	var err error

	if record.Attributes != nil {
		attributesJSON, err = json.Marshal(record.Attributes)
		if err != nil {
			return fmt.Errorf("failed to marshal attributes: %w", err)
		}
	}

	var requestID interface{}
	if record.RequestID != "" {
		requestID = record.RequestID
	}

	_, err = r.db.Exec(ctx, query,
		record.ID,
		record.Timestamp,
		string(record.PrincipalType),
		record.SubjectID,
		record.Permission,
		record.Allowed,
		record.Reason,
		attributesJSON,
		requestID,
	)

	if err != nil {
		return fmt.Errorf("failed to create decision record: %w", err)
	}

	return nil
}

// ListForSubject retrieves the most recent decision records for a subject,
// newest first.
func (r *DecisionLogRepository) ListForSubject(ctx context.Context, subjectID uuid.UUID, limit int) ([]*audit.DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, timestamp, principal_type, subject_id, permission,
			   allowed, reason, attributes, request_id
		FROM decision_log
		WHERE subject_id = $1
		ORDER BY timestamp DESC, id
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list decision records: %w", err)
	}
	defer rows.Close()

	var records []*audit.DecisionRecord
	for rows.Next() {
		record := &audit.DecisionRecord{}
		var kind string
		var attributesJSON []byte
		var requestID *string

		err := rows.Scan(
			&record.ID, &record.Timestamp, &kind, &record.SubjectID,
			&record.Permission, &record.Allowed, &record.Reason,
			&attributesJSON, &requestID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision record: %w", err)
		}

		record.PrincipalType = principal.Type(kind)
		if len(attributesJSON) > 0 {
			if err := json.Unmarshal(attributesJSON, &record.Attributes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
			}
		}
		if requestID != nil {
			record.RequestID = *requestID
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

// PurgeBefore deletes records older than the cutoff and reports how many
// rows were removed.
func (r *DecisionLogRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM decision_log WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge decision records: %w", err)
	}
	return result.RowsAffected(), nil
}
