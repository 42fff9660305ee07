package services_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/victoralfred/authz_sys/internal/domain/abac"
	"github.com/victoralfred/authz_sys/internal/domain/audit"
	"github.com/victoralfred/authz_sys/internal/domain/identity"
	"github.com/victoralfred/authz_sys/internal/domain/principal"
	"github.com/victoralfred/authz_sys/internal/domain/rbac"
)

// MockIdentityRepository is a mock implementation of identity.Repository for testing
type MockIdentityRepository struct {
	mock.Mock
}

func (m *MockIdentityRepository) Create(ctx context.Context, u *identity.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockIdentityRepository) GetByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockIdentityRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockIdentityRepository) GetByResetToken(ctx context.Context, token string) (*identity.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockIdentityRepository) Update(ctx context.Context, u *identity.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockIdentityRepository) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	args := m.Called(ctx, id, enabled)
	return args.Error(0)
}

func (m *MockIdentityRepository) Search(ctx context.Context, params identity.SearchParams) ([]*identity.User, int64, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*identity.User), args.Get(1).(int64), args.Error(2)
}

func (m *MockIdentityRepository) CreateGroup(ctx context.Context, g *identity.Group) error {
	args := m.Called(ctx, g)
	return args.Error(0)
}

func (m *MockIdentityRepository) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockIdentityRepository) GetGroupByID(ctx context.Context, id uuid.UUID) (*identity.Group, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Group), args.Error(1)
}

func (m *MockIdentityRepository) SearchGroups(ctx context.Context, params identity.SearchParams) ([]*identity.Group, int64, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*identity.Group), args.Get(1).(int64), args.Error(2)
}

func (m *MockIdentityRepository) AddGroupMember(ctx context.Context, userID, groupID uuid.UUID) error {
	args := m.Called(ctx, userID, groupID)
	return args.Error(0)
}

func (m *MockIdentityRepository) RemoveGroupMember(ctx context.Context, userID, groupID uuid.UUID) error {
	args := m.Called(ctx, userID, groupID)
	return args.Error(0)
}

func (m *MockIdentityRepository) FindGroupMembers(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockIdentityRepository) FindGroupsForUser(ctx context.Context, userID uuid.UUID) ([]*identity.Group, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*identity.Group), args.Error(1)
}

func (m *MockIdentityRepository) FindGroupsForUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID][]*identity.Group, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID][]*identity.Group), args.Error(1)
}

// MockGrantRepository is a mock implementation of rbac.GrantRepository for testing
type MockGrantRepository struct {
	mock.Mock
}

func (m *MockGrantRepository) CreateRole(ctx context.Context, role *rbac.Role) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}

func (m *MockGrantRepository) GetRoleByID(ctx context.Context, id uuid.UUID) (*rbac.Role, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rbac.Role), args.Error(1)
}

func (m *MockGrantRepository) GetRoleByName(ctx context.Context, name string) (*rbac.Role, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rbac.Role), args.Error(1)
}

func (m *MockGrantRepository) DeleteRole(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockGrantRepository) SearchRoles(ctx context.Context, params identity.SearchParams) ([]*rbac.Role, int64, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*rbac.Role), args.Get(1).(int64), args.Error(2)
}

func (m *MockGrantRepository) CreatePermission(ctx context.Context, permission *rbac.Permission) error {
	args := m.Called(ctx, permission)
	return args.Error(0)
}

func (m *MockGrantRepository) GetPermissionByName(ctx context.Context, name string) (*rbac.Permission, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rbac.Permission), args.Error(1)
}

func (m *MockGrantRepository) SearchPermissions(ctx context.Context, params identity.SearchParams) ([]*rbac.Permission, int64, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*rbac.Permission), args.Get(1).(int64), args.Error(2)
}

func (m *MockGrantRepository) LinkPermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	args := m.Called(ctx, roleID, permissionID)
	return args.Error(0)
}

func (m *MockGrantRepository) UnlinkPermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	args := m.Called(ctx, roleID, permissionID)
	return args.Error(0)
}

func (m *MockGrantRepository) AssignRole(ctx context.Context, assignment *rbac.RoleAssignment) error {
	args := m.Called(ctx, assignment)
	return args.Error(0)
}

func (m *MockGrantRepository) RevokeRole(ctx context.Context, userID, roleID uuid.UUID) error {
	args := m.Called(ctx, userID, roleID)
	return args.Error(0)
}

func (m *MockGrantRepository) AssignGroupRole(ctx context.Context, groupID, roleID uuid.UUID) error {
	args := m.Called(ctx, groupID, roleID)
	return args.Error(0)
}

func (m *MockGrantRepository) RevokeGroupRole(ctx context.Context, groupID, roleID uuid.UUID) error {
	args := m.Called(ctx, groupID, roleID)
	return args.Error(0)
}

func (m *MockGrantRepository) FindValidRoleAssignments(ctx context.Context, userID uuid.UUID, now time.Time) ([]*rbac.RoleAssignment, error) {
	args := m.Called(ctx, userID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*rbac.RoleAssignment), args.Error(1)
}

func (m *MockGrantRepository) FindRolesForGroup(ctx context.Context, groupID uuid.UUID) ([]*rbac.Role, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*rbac.Role), args.Error(1)
}

func (m *MockGrantRepository) FindPermissionsForRole(ctx context.Context, roleID uuid.UUID) ([]*rbac.Permission, error) {
	args := m.Called(ctx, roleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*rbac.Permission), args.Error(1)
}

func (m *MockGrantRepository) FindUsersForRole(ctx context.Context, roleID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, roleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockGrantRepository) FindRolesForUsers(ctx context.Context, userIDs []uuid.UUID, now time.Time) (map[uuid.UUID][]*rbac.Role, error) {
	args := m.Called(ctx, userIDs, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID][]*rbac.Role), args.Error(1)
}

func (m *MockGrantRepository) FindPermissionsForRoles(ctx context.Context, roleIDs []uuid.UUID) (map[uuid.UUID][]*rbac.Permission, error) {
	args := m.Called(ctx, roleIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID][]*rbac.Permission), args.Error(1)
}

// MockPolicyRepository is a mock implementation of abac.PolicyRepository for testing
type MockPolicyRepository struct {
	mock.Mock
}

func (m *MockPolicyRepository) Create(ctx context.Context, policy *abac.Policy) error {
	args := m.Called(ctx, policy)
	return args.Error(0)
}

func (m *MockPolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*abac.Policy, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*abac.Policy), args.Error(1)
}

func (m *MockPolicyRepository) Update(ctx context.Context, policy *abac.Policy) error {
	args := m.Called(ctx, policy)
	return args.Error(0)
}

func (m *MockPolicyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPolicyRepository) List(ctx context.Context) ([]*abac.Policy, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*abac.Policy), args.Error(1)
}

func (m *MockPolicyRepository) FindActivePolicies(ctx context.Context) ([]*abac.Policy, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*abac.Policy), args.Error(1)
}

// MockPrincipalRepository is a mock implementation of principal.Repository for testing
type MockPrincipalRepository struct {
	mock.Mock
}

func (m *MockPrincipalRepository) Create(ctx context.Context, entity *principal.Entity) error {
	args := m.Called(ctx, entity)
	return args.Error(0)
}

func (m *MockPrincipalRepository) FindByExternalID(ctx context.Context, externalID string) (*principal.Entity, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*principal.Entity), args.Error(1)
}

func (m *MockPrincipalRepository) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	args := m.Called(ctx, id, enabled)
	return args.Error(0)
}

func (m *MockPrincipalRepository) GrantPermission(ctx context.Context, principalID, permissionID uuid.UUID) error {
	args := m.Called(ctx, principalID, permissionID)
	return args.Error(0)
}

func (m *MockPrincipalRepository) RevokePermission(ctx context.Context, principalID, permissionID uuid.UUID) error {
	args := m.Called(ctx, principalID, permissionID)
	return args.Error(0)
}

func (m *MockPrincipalRepository) FindPermissions(ctx context.Context, principalID uuid.UUID) ([]*rbac.Permission, error) {
	args := m.Called(ctx, principalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*rbac.Permission), args.Error(1)
}

// MockPermissionCache is a mock implementation of rbac.PermissionCache for testing
type MockPermissionCache struct {
	mock.Mock
}

func (m *MockPermissionCache) GetUserPermissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockPermissionCache) SetUserPermissions(ctx context.Context, userID uuid.UUID, permissions []string) error {
	args := m.Called(ctx, userID, permissions)
	return args.Error(0)
}

func (m *MockPermissionCache) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// MockDecisionRecorder is a mock implementation of audit.DecisionRecorder for testing
type MockDecisionRecorder struct {
	mock.Mock
}

func (m *MockDecisionRecorder) Record(ctx context.Context, record *audit.DecisionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}
