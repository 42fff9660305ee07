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
)

var userColumns = map[string]columnSpec{
	"display_name": {expr: "COALESCE(display_name, '')"},
	"email":        {expr: "email"},
	"created_at":   {expr: "created_at", cast: "::timestamptz"},
}

// namedColumns serves every directory entity sorted by a unique name:
// groups, roles, and permissions.
var namedColumns = map[string]columnSpec{
	"name":       {expr: "name"},
	"created_at": {expr: "created_at", cast: "::timestamptz"},
}

// IdentityRepository implements identity.Repository on Postgres
type IdentityRepository struct {
	db *pgxpool.Pool
}

// NewIdentityRepository creates a new identity repository
func NewIdentityRepository(db *pgxpool.Pool) identity.Repository {
	return &IdentityRepository{db: db}
}

// Create creates a new user
func (r *IdentityRepository) Create(ctx context.Context, u *identity.User) error {
	if u == nil {
		return identity.ErrUserNil
	}

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	query := `
		INSERT INTO users (
			id, email, display_name, password_hash,
			password_reset_token, password_reset_expiry, enabled,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		u.ID, u.Email, u.DisplayName, u.PasswordHash,
		nullableString(u.PasswordResetToken), u.PasswordResetExpiry, u.Enabled,
		u.CreatedAt, u.UpdatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "users_email_key") {
			return identity.ErrEmailAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

const userSelectColumns = `
	id, email, display_name, password_hash,
	COALESCE(password_reset_token, ''), password_reset_expiry, enabled,
	created_at, updated_at`

func scanUser(row pgx.Row) (*identity.User, error) {
	u := &identity.User{}
	err := row.Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash,
		&u.PasswordResetToken, &u.PasswordResetExpiry, &u.Enabled,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByID retrieves a user by ID
func (r *IdentityRepository) GetByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	if id == uuid.Nil {
		return nil, identity.ErrInvalidUserID
	}

	query := `SELECT` + userSelectColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return u, nil
}

// GetByEmail retrieves a user by email
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	if email == "" {
		return nil, identity.ErrEmailRequired
	}

	query := `SELECT` + userSelectColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	u, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

// GetByResetToken retrieves a user by password reset token
func (r *IdentityRepository) GetByResetToken(ctx context.Context, token string) (*identity.User, error) {
	if token == "" {
		return nil, identity.ErrInvalidResetToken
	}

	query := `SELECT` + userSelectColumns + ` FROM users WHERE password_reset_token = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrInvalidResetToken
		}
		return nil, fmt.Errorf("failed to get user by reset token: %w", err)
	}
	return u, nil
}

// Update updates an existing user
func (r *IdentityRepository) Update(ctx context.Context, u *identity.User) error {
	if u == nil {
		return identity.ErrUserNil
	}

	u.UpdatedAt = time.Now()

	query := `
		UPDATE users SET
			email = $2, display_name = $3, password_hash = $4,
			password_reset_token = $5, password_reset_expiry = $6,
			enabled = $7, updated_at = $8
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		u.ID, u.Email, u.DisplayName, u.PasswordHash,
		nullableString(u.PasswordResetToken), u.PasswordResetExpiry,
		u.Enabled, u.UpdatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "users_email_key") {
			return identity.ErrEmailAlreadyExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}

	return nil
}

// SetEnabled toggles the soft-disable flag on a user
func (r *IdentityRepository) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	if id == uuid.Nil {
		return identity.ErrInvalidUserID
	}

	query := `UPDATE users SET enabled = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id, enabled, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set user enabled: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

// Search retrieves one page of users in composite sort order plus the total
// filtered count. The substring filter matches display name and email; the
// keyset predicate excludes rows at or before the cursor position.
func (r *IdentityRepository) Search(ctx context.Context, params identity.SearchParams) ([]*identity.User, int64, error) {
	var conditions []string
	var args []interface{}

	if params.Query != "" {
		args = append(args, "%"+params.Query+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(email) LIKE LOWER($%d) OR LOWER(COALESCE(display_name, '')) LIKE LOWER($%d))", n, n))
	}

	filterClause := ""
	if len(conditions) > 0 {
		filterClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM users " + filterClause
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	if params.After != nil {
		predicate, keysetArgs := keysetPredicate(params.OrderBy, userColumns, params.After, "id", len(args))
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

	query := fmt.Sprintf(`SELECT%s FROM users %s %s LIMIT $%d`,
		userSelectColumns, whereClause, orderByClause(params.OrderBy, userColumns, "id"), len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	var users []*identity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, total, nil
}

// CreateGroup creates a new group
func (r *IdentityRepository) CreateGroup(ctx context.Context, g *identity.Group) error {
	query := `INSERT INTO groups (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.Exec(ctx, query, g.ID, g.Name, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "groups_name_key") {
			return identity.ErrGroupNameAlreadyExists
		}
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

// DeleteGroup deletes a group and its memberships in one transaction, so a
// concurrent read never observes a membership without its group.
func (r *IdentityRepository) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete group memberships: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM group_roles WHERE group_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete group role grants: %w", err)
	}

	result, err := tx.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrGroupNotFound
	}

	return tx.Commit(ctx)
}

// GetGroupByID retrieves a group by ID
func (r *IdentityRepository) GetGroupByID(ctx context.Context, id uuid.UUID) (*identity.Group, error) {
	g := &identity.Group{}
	query := `SELECT id, name, created_at, updated_at FROM groups WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(&g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group by id: %w", err)
	}
	return g, nil
}

// SearchGroups retrieves one page of groups plus the total filtered count
func (r *IdentityRepository) SearchGroups(ctx context.Context, params identity.SearchParams) ([]*identity.Group, int64, error) {
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
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM groups "+filterClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count groups: %w", err)
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

	query := fmt.Sprintf(`SELECT id, name, created_at, updated_at FROM groups %s %s LIMIT $%d`,
		whereClause, orderByClause(params.OrderBy, namedColumns, "id"), len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search groups: %w", err)
	}
	defer rows.Close()

	var groups []*identity.Group
	for rows.Next() {
		g := &identity.Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate groups: %w", err)
	}

	return groups, total, nil
}

// AddGroupMember adds a user to a group. The unique constraint makes a
// duplicate insert a no-op rather than a read-then-write race.
func (r *IdentityRepository) AddGroupMember(ctx context.Context, userID, groupID uuid.UUID) error {
	query := `
		INSERT INTO group_members (user_id, group_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, group_id) DO NOTHING`

	_, err := r.db.Exec(ctx, query, userID, groupID, time.Now())
	if err != nil {
		if strings.Contains(err.Error(), "foreign key") {
			return identity.ErrUserNotFound
		}
		return fmt.Errorf("failed to add group member: %w", err)
	}
	return nil
}

// RemoveGroupMember removes a user from a group
func (r *IdentityRepository) RemoveGroupMember(ctx context.Context, userID, groupID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM group_members WHERE user_id = $1 AND group_id = $2`, userID, groupID)
	if err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	return nil
}

// FindGroupMembers retrieves the ids of a group's current members
func (r *IdentityRepository) FindGroupMembers(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id FROM group_members WHERE group_id = $1`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to find group members: %w", err)
	}
	defer rows.Close()

	var members []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member id: %w", err)
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

// FindGroupsForUser retrieves the groups a user currently belongs to
func (r *IdentityRepository) FindGroupsForUser(ctx context.Context, userID uuid.UUID) ([]*identity.Group, error) {
	query := `
		SELECT g.id, g.name, g.created_at, g.updated_at
		FROM groups g
		JOIN group_members gm ON gm.group_id = g.id
		WHERE gm.user_id = $1`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find groups for user: %w", err)
	}
	defer rows.Close()

	var groups []*identity.Group
	for rows.Next() {
		g := &identity.Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// FindGroupsForUsers bulk-loads group memberships for a set of users in one
// query. Every requested id gets an entry, possibly empty.
func (r *IdentityRepository) FindGroupsForUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID][]*identity.Group, error) {
	result := make(map[uuid.UUID][]*identity.Group, len(userIDs))
	for _, id := range userIDs {
		result[id] = nil
	}
	if len(userIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT gm.user_id, g.id, g.name, g.created_at, g.updated_at
		FROM groups g
		JOIN group_members gm ON gm.group_id = g.id
		WHERE gm.user_id = ANY($1)`

	rows, err := r.db.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to find groups for users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID uuid.UUID
		g := &identity.Group{}
		if err := rows.Scan(&userID, &g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		result[userID] = append(result[userID], g)
	}
	return result, rows.Err()
}

// nullableString maps the empty string onto SQL NULL
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
