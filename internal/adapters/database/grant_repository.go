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

	"github.com/victoralfred/authz_sys/internal/domain/identity"
	"github.com/victoralfred/authz_sys/internal/domain/rbac"
)

// GrantRepository implements rbac.GrantRepository on Postgres
type GrantRepository struct {
	db *pgxpool.Pool
}

// NewGrantRepository creates a new grant repository
func NewGrantRepository(db *pgxpool.Pool) rbac.GrantRepository {
	return &GrantRepository{db: db}
}

// CreateRole creates a new role
func (r *GrantRepository) CreateRole(ctx context.Context, role *rbac.Role) error {
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	now := time.Now()
	role.CreatedAt = now
	role.UpdatedAt = now

	query := `INSERT INTO roles (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.Exec(ctx, query, role.ID, role.Name, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "roles_name_key") {
			return rbac.ErrRoleNameAlreadyExists
		}
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

// GetRoleByID retrieves a role by ID
func (r *GrantRepository) GetRoleByID(ctx context.Context, id uuid.UUID) (*rbac.Role, error) {
	role := &rbac.Role{}
	query := `SELECT id, name, created_at, updated_at FROM roles WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rbac.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role by id: %w", err)
	}
	return role, nil
}

// GetRoleByName retrieves a role by name
func (r *GrantRepository) GetRoleByName(ctx context.Context, name string) (*rbac.Role, error) {
	role := &rbac.Role{}
	query := `SELECT id, name, created_at, updated_at FROM roles WHERE name = $1`
	err := r.db.QueryRow(ctx, query, name).Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rbac.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role by name: %w", err)
	}
	return role, nil
}

// DeleteRole deletes a role and every link and grant that references it
func (r *GrantRepository) DeleteRole(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, q := range []string{
		`DELETE FROM role_permissions WHERE role_id = $1`,
		`DELETE FROM user_roles WHERE role_id = $1`,
		`DELETE FROM group_roles WHERE role_id = $1`,
	} {
		if _, err := tx.Exec(ctx, q, id); err != nil {
			return fmt.Errorf("failed to delete role links: %w", err)
		}
	}

	result, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return rbac.ErrRoleNotFound
	}

	return tx.Commit(ctx)
}

// SearchRoles retrieves one page of roles plus the total filtered count
func (r *GrantRepository) SearchRoles(ctx context.Context, params identity.SearchParams) ([]*rbac.Role, int64, error) {
	rows, total, err := r.searchNamed(ctx, "roles", "id, name, created_at, updated_at", params)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var roles []*rbac.Role
	for rows.Next() {
		role := &rbac.Role{}
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate roles: %w", err)
	}
	return roles, total, nil
}

// CreatePermission creates a new permission
func (r *GrantRepository) CreatePermission(ctx context.Context, permission *rbac.Permission) error {
	if permission.ID == uuid.Nil {
		permission.ID = uuid.New()
	}
	permission.CreatedAt = time.Now()

	query := `INSERT INTO permissions (id, name, created_at) VALUES ($1, $2, $3)`
	_, err := r.db.Exec(ctx, query, permission.ID, permission.Name, permission.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "permissions_name_key") {
			return rbac.ErrPermissionNameAlreadyExists
		}
		return fmt.Errorf("failed to create permission: %w", err)
	}
	return nil
}

// GetPermissionByName retrieves a permission by name
func (r *GrantRepository) GetPermissionByName(ctx context.Context, name string) (*rbac.Permission, error) {
	p := &rbac.Permission{}
	query := `SELECT id, name, created_at FROM permissions WHERE name = $1`
	err := r.db.QueryRow(ctx, query, name).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rbac.ErrPermissionNotFound
		}
		return nil, fmt.Errorf("failed to get permission by name: %w", err)
	}
	return p, nil
}

// SearchPermissions retrieves one page of permissions plus the total filtered
// count
func (r *GrantRepository) SearchPermissions(ctx context.Context, params identity.SearchParams) ([]*rbac.Permission, int64, error) {
	rows, total, err := r.searchNamed(ctx, "permissions", "id, name, created_at", params)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var permissions []*rbac.Permission
	for rows.Next() {
		p := &rbac.Permission{}
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan permission: %w", err)
		}
		permissions = append(permissions, p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate permissions: %w", err)
	}
	return permissions, total, nil
}

// searchNamed runs the shared count-then-page query pair for tables sorted by
// a unique name column.
func (r *GrantRepository) searchNamed(ctx context.Context, table, selectList string, params identity.SearchParams) (pgx.Rows, int64, error) {
	var conditions []string
	var args []interface{}

	if params.Query != "" {
		args = append(args, "%"+params.Query+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE LOWER($%d)", len(args)))
	}

	filterClause := ""
	if len(conditions) > 0 {
		filterClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s %s", table, filterClause), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", table, err)
	}

	if params.After != nil {
		predicate, keysetArgs := keysetPredicate(params.OrderBy, namedColumns, params.After, "id", len(args))
		conditions = append(conditions, predicate)
		args = append(args, keysetArgs...)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 1
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM %s %s %s LIMIT $%d`,
		selectList, table, whereClause, orderByClause(params.OrderBy, namedColumns, "id"), len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search %s: %w", table, err)
	}
	return rows, total, nil
}

// LinkPermission grants a permission to a role; duplicate links are no-ops
func (r *GrantRepository) LinkPermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	query := `
		INSERT INTO role_permissions (role_id, permission_id, granted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (role_id, permission_id) DO NOTHING`

	_, err := r.db.Exec(ctx, query, roleID, permissionID, time.Now())
	if err != nil {
		if strings.Contains(err.Error(), "foreign key") {
			return rbac.ErrInvalidReference
		}
		return fmt.Errorf("failed to link permission: %w", err)
	}
	return nil
}

// UnlinkPermission revokes a permission from a role
func (r *GrantRepository) UnlinkPermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	if err != nil {
		return fmt.Errorf("failed to unlink permission: %w", err)
	}
	return nil
}

// AssignRole directly grants a role to a user. Re-assigning an existing
// grant refreshes the validity window rather than failing.
func (r *GrantRepository) AssignRole(ctx context.Context, assignment *rbac.RoleAssignment) error {
	assignment.GrantedAt = time.Now()

	query := `
		INSERT INTO user_roles (user_id, role_id, valid_from, valid_until, granted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, role_id) DO UPDATE SET
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			granted_at = EXCLUDED.granted_at`

	_, err := r.db.Exec(ctx, query,
		assignment.UserID, assignment.RoleID,
		assignment.ValidFrom, assignment.ValidUntil, assignment.GrantedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "foreign key") {
			return rbac.ErrInvalidReference
		}
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

// RevokeRole removes a direct role grant from a user
func (r *GrantRepository) RevokeRole(ctx context.Context, userID, roleID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	return nil
}

// AssignGroupRole grants a role to a group; duplicate grants are no-ops
func (r *GrantRepository) AssignGroupRole(ctx context.Context, groupID, roleID uuid.UUID) error {
	query := `
		INSERT INTO group_roles (group_id, role_id, granted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id, role_id) DO NOTHING`

	_, err := r.db.Exec(ctx, query, groupID, roleID, time.Now())
	if err != nil {
		if strings.Contains(err.Error(), "foreign key") {
			return rbac.ErrInvalidReference
		}
		return fmt.Errorf("failed to assign group role: %w", err)
	}
	return nil
}

// RevokeGroupRole removes a role grant from a group
func (r *GrantRepository) RevokeGroupRole(ctx context.Context, groupID, roleID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM group_roles WHERE group_id = $1 AND role_id = $2`, groupID, roleID)
	if err != nil {
		return fmt.Errorf("failed to revoke group role: %w", err)
	}
	return nil
}

// validityWindow filters assignments to those effective at the given instant.
// An open bound (NULL) never excludes a row.
const validityWindow = `(valid_from IS NULL OR valid_from <= %[1]s) AND (valid_until IS NULL OR valid_until > %[1]s)`

// FindValidRoleAssignments retrieves the direct assignments for a user whose
// validity window contains now
func (r *GrantRepository) FindValidRoleAssignments(ctx context.Context, userID uuid.UUID, now time.Time) ([]*rbac.RoleAssignment, error) {
	query := `
		SELECT user_id, role_id, valid_from, valid_until, granted_at
		FROM user_roles
		WHERE user_id = $1 AND ` + fmt.Sprintf(validityWindow, "$2")

	rows, err := r.db.Query(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find role assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*rbac.RoleAssignment
	for rows.Next() {
		a := &rbac.RoleAssignment{}
		if err := rows.Scan(&a.UserID, &a.RoleID, &a.ValidFrom, &a.ValidUntil, &a.GrantedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// FindRolesForGroup retrieves the roles assigned to a group
func (r *GrantRepository) FindRolesForGroup(ctx context.Context, groupID uuid.UUID) ([]*rbac.Role, error) {
	query := `
		SELECT ro.id, ro.name, ro.created_at, ro.updated_at
		FROM roles ro
		JOIN group_roles gr ON gr.role_id = ro.id
		WHERE gr.group_id = $1`

	rows, err := r.db.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to find roles for group: %w", err)
	}
	defer rows.Close()
	return collectRoles(rows)
}

// FindPermissionsForRole retrieves the permissions linked to a role
func (r *GrantRepository) FindPermissionsForRole(ctx context.Context, roleID uuid.UUID) ([]*rbac.Permission, error) {
	query := `
		SELECT p.id, p.name, p.created_at
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1`

	rows, err := r.db.Query(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to find permissions for role: %w", err)
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

// FindUsersForRole retrieves every user holding the role directly or through
// a group. The validity window is ignored on purpose: the caller invalidates
// cached permission sets, and a not-yet-valid grant still names a future
// holder.
func (r *GrantRepository) FindUsersForRole(ctx context.Context, roleID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT user_id FROM user_roles WHERE role_id = $1
		UNION
		SELECT gm.user_id
		FROM group_members gm
		JOIN group_roles gr ON gr.group_id = gm.group_id
		WHERE gr.role_id = $1`

	rows, err := r.db.Query(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to find users for role: %w", err)
	}
	defer rows.Close()

	var userIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}

// FindRolesForUsers bulk-loads the currently-effective roles for a set of
// users in a single query, combining direct grants inside their validity
// window with roles inherited through group membership. A role reachable
// both ways appears once.
func (r *GrantRepository) FindRolesForUsers(ctx context.Context, userIDs []uuid.UUID, now time.Time) (map[uuid.UUID][]*rbac.Role, error) {
	result := make(map[uuid.UUID][]*rbac.Role, len(userIDs))
	for _, id := range userIDs {
		result[id] = nil
	}
	if len(userIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT DISTINCT src.user_id, ro.id, ro.name, ro.created_at, ro.updated_at
		FROM (
			SELECT ur.user_id, ur.role_id
			FROM user_roles ur
			WHERE ur.user_id = ANY($1) AND ` + fmt.Sprintf(validityWindow, "$2") + `
			UNION
			SELECT gm.user_id, gr.role_id
			FROM group_members gm
			JOIN group_roles gr ON gr.group_id = gm.group_id
			WHERE gm.user_id = ANY($1)
		) src
		JOIN roles ro ON ro.id = src.role_id`

	rows, err := r.db.Query(ctx, query, userIDs, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find roles for users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID uuid.UUID
		role := &rbac.Role{}
		if err := rows.Scan(&userID, &role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		result[userID] = append(result[userID], role)
	}
	return result, rows.Err()
}

// FindPermissionsForRoles bulk-loads permissions for a set of roles in a
// single query
func (r *GrantRepository) FindPermissionsForRoles(ctx context.Context, roleIDs []uuid.UUID) (map[uuid.UUID][]*rbac.Permission, error) {
	result := make(map[uuid.UUID][]*rbac.Permission, len(roleIDs))
	for _, id := range roleIDs {
		result[id] = nil
	}
	if len(roleIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT rp.role_id, p.id, p.name, p.created_at
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = ANY($1)`

	rows, err := r.db.Query(ctx, query, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to find permissions for roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var roleID uuid.UUID
		p := &rbac.Permission{}
		if err := rows.Scan(&roleID, &p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		result[roleID] = append(result[roleID], p)
	}
	return result, rows.Err()
}

func collectRoles(rows pgx.Rows) ([]*rbac.Role, error) {
	var roles []*rbac.Role
	for rows.Next() {
		role := &rbac.Role{}
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
