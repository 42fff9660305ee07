package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victoralfred/authz_sys/internal/domain/abac"
)

// PolicyRepository implements abac.PolicyRepository on Postgres
type PolicyRepository struct {
	db *pgxpool.Pool
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *pgxpool.Pool) abac.PolicyRepository {
	return &PolicyRepository{db: db}
}

// Create creates a new policy
func (r *PolicyRepository) Create(ctx context.Context, policy *abac.Policy) error {
	if policy.ID == uuid.Nil {
		policy.ID = uuid.New()
	}
	now := time.Now()
	policy.CreatedAt = now
	policy.UpdatedAt = now

	query := `
		INSERT INTO abac_policies (id, name, effect, condition, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		policy.ID, policy.Name, string(policy.Effect), []byte(policy.Condition),
		policy.IsActive, policy.CreatedAt, policy.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "abac_policies_name_key") {
			return abac.ErrPolicyNameAlreadyExists
		}
		return fmt.Errorf("failed to create policy: %w", err)
	}
	return nil
}

// GetByID retrieves a policy by ID
func (r *PolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*abac.Policy, error) {
	query := `
		SELECT id, name, effect, condition, is_active, created_at, updated_at
		FROM abac_policies WHERE id = $1`

	p, err := scanPolicy(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, abac.ErrPolicyNotFound
		}
		return nil, fmt.Errorf("failed to get policy by id: %w", err)
	}
	return p, nil
}

// Update updates a policy
func (r *PolicyRepository) Update(ctx context.Context, policy *abac.Policy) error {
	policy.UpdatedAt = time.Now()

	query := `
		UPDATE abac_policies SET
			name = $2, effect = $3, condition = $4, is_active = $5, updated_at = $6
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		policy.ID, policy.Name, string(policy.Effect), []byte(policy.Condition),
		policy.IsActive, policy.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "abac_policies_name_key") {
			return abac.ErrPolicyNameAlreadyExists
		}
		return fmt.Errorf("failed to update policy: %w", err)
	}
	if result.RowsAffected() == 0 {
		return abac.ErrPolicyNotFound
	}
	return nil
}

// Delete deletes a policy
func (r *PolicyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM abac_policies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}
	if result.RowsAffected() == 0 {
		return abac.ErrPolicyNotFound
	}
	return nil
}

// List retrieves all policies
func (r *PolicyRepository) List(ctx context.Context) ([]*abac.Policy, error) {
	query := `
		SELECT id, name, effect, condition, is_active, created_at, updated_at
		FROM abac_policies ORDER BY name`
	return r.queryPolicies(ctx, query)
}

// FindActivePolicies retrieves the policies the engine must evaluate
func (r *PolicyRepository) FindActivePolicies(ctx context.Context) ([]*abac.Policy, error) {
	query := `
		SELECT id, name, effect, condition, is_active, created_at, updated_at
		FROM abac_policies WHERE is_active ORDER BY name`
	return r.queryPolicies(ctx, query)
}

func (r *PolicyRepository) queryPolicies(ctx context.Context, query string) ([]*abac.Policy, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	var policies []*abac.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func scanPolicy(row pgx.Row) (*abac.Policy, error) {
	p := &abac.Policy{}
	var effect string
	var condition []byte
	err := row.Scan(&p.ID, &p.Name, &effect, &condition, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Effect = abac.Effect(effect)
	p.Condition = condition
	return p, nil
}
