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

	"github.com/victoralfred/authz_sys/internal/domain/principal"
	"github.com/victoralfred/authz_sys/internal/domain/rbac"
)

// PrincipalRepository implements principal.Repository on Postgres
type PrincipalRepository struct {
	db *pgxpool.Pool
}

// NewPrincipalRepository creates a new principal repository
func NewPrincipalRepository(db *pgxpool.Pool) principal.Repository {
	return &PrincipalRepository{db: db}
}

// Create creates a principal row
func (r *PrincipalRepository) Create(ctx context.Context, entity *principal.Entity) error {
	query := `
		INSERT INTO service_principals (id, external_id, principal_type, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		entity.ID, entity.ExternalID, string(entity.Type),
		entity.Enabled, entity.CreatedAt, entity.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "service_principals_external_id_key") ||
			strings.Contains(err.Error(), "service_principals_pkey") {
			return principal.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create principal: %w", err)
	}
	return nil
}

// FindByExternalID retrieves a principal by its external id
func (r *PrincipalRepository) FindByExternalID(ctx context.Context, externalID string) (*principal.Entity, error) {
	e := &principal.Entity{}
	var kind string

	query := `
		SELECT id, external_id, principal_type, enabled, created_at, updated_at
		FROM service_principals WHERE external_id = $1`

	err := r.db.QueryRow(ctx, query, externalID).Scan(
		&e.ID, &e.ExternalID, &kind, &e.Enabled, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, principal.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find principal: %w", err)
	}
	e.Type = principal.Type(kind)
	return e, nil
}

// SetEnabled toggles the enabled flag on a principal
func (r *PrincipalRepository) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	query := `UPDATE service_principals SET enabled = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id, enabled, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set principal enabled: %w", err)
	}
	if result.RowsAffected() == 0 {
		return principal.ErrNotFound
	}
	return nil
}

// GrantPermission directly grants a permission to a principal; duplicate
// grants are no-ops
func (r *PrincipalRepository) GrantPermission(ctx context.Context, principalID, permissionID uuid.UUID) error {
	query := `
		INSERT INTO principal_permissions (principal_id, permission_id, granted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (principal_id, permission_id) DO NOTHING`

	_, err := r.db.Exec(ctx, query, principalID, permissionID, time.Now())
	if err != nil {
		if strings.Contains(err.Error(), "foreign key") {
			return rbac.ErrInvalidReference
		}
		return fmt.Errorf("failed to grant principal permission: %w", err)
	}
	return nil
}

// RevokePermission removes a direct permission grant
func (r *PrincipalRepository) RevokePermission(ctx context.Context, principalID, permissionID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM principal_permissions WHERE principal_id = $1 AND permission_id = $2`,
		principalID, permissionID)
	if err != nil {
		return fmt.Errorf("failed to revoke principal permission: %w", err)
	}
	return nil
}

// FindPermissions retrieves the permissions directly granted to a principal
func (r *PrincipalRepository) FindPermissions(ctx context.Context, principalID uuid.UUID) ([]*rbac.Permission, error) {
	query := `
		SELECT p.id, p.name, p.created_at
		FROM permissions p
		JOIN principal_permissions pp ON pp.permission_id = p.id
		WHERE pp.principal_id = $1`

	rows, err := r.db.Query(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to find principal permissions: %w", err)
	}
	defer rows.Close()

	var permissions []*rbac.Permission
	for rows.Next() {
		p := &rbac.Permission{}
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		permissions = append(permissions, p)
	}
	return permissions, rows.Err()
}
