package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/victoralfred/authz_sys/internal/domain/abac"
	"github.com/victoralfred/authz_sys/internal/domain/principal"
	"github.com/victoralfred/authz_sys/internal/domain/rbac"
	"github.com/victoralfred/authz_sys/internal/services"
)

type grantFixture struct {
	grants       *MockGrantRepository
	identityRepo *MockIdentityRepository
	principals   *MockPrincipalRepository
	policies     *MockPolicyRepository
	cache        *MockPermissionCache
	service      *services.GrantService
}

func newGrantFixture() *grantFixture {
	f := &grantFixture{
		grants:       new(MockGrantRepository),
		identityRepo: new(MockIdentityRepository),
		principals:   new(MockPrincipalRepository),
		policies:     new(MockPolicyRepository),
		cache:        new(MockPermissionCache),
	}
	f.service = services.NewGrantService(f.grants, f.identityRepo, f.principals, f.policies, nil)
	f.service.SetPermissionCache(f.cache)
	return f
}

func TestGrantService_CreateRoleAndPermission(t *testing.T) {
	f := newGrantFixture()
	ctx := context.Background()

	f.grants.On("CreateRole", ctx, mock.AnythingOfType("*rbac.Role")).Return(nil)
	f.grants.On("CreatePermission", ctx, mock.AnythingOfType("*rbac.Permission")).Return(nil)

	role, err := f.service.CreateRole(ctx, "auditor")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, role.ID)
	assert.Equal(t, "auditor", role.Name)
	assert.False(t, role.CreatedAt.IsZero())

	perm, err := f.service.CreatePermission(ctx, "transaction:read")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, perm.ID)
	assert.Equal(t, "transaction:read", perm.Name)

	f.grants.AssertExpectations(t)
}

func TestGrantService_CreateRole_StoreError(t *testing.T) {
	f := newGrantFixture()
	ctx := context.Background()

	f.grants.On("CreateRole", ctx, mock.Anything).Return(rbac.ErrRoleNameAlreadyExists)

	role, err := f.service.CreateRole(ctx, "auditor")
	assert.ErrorIs(t, err, rbac.ErrRoleNameAlreadyExists)
	assert.Nil(t, role)
}

func TestGrantService_AssignRole(t *testing.T) {
	f := newGrantFixture()
	ctx := context.Background()
	userID := uuid.New()
	roleID := uuid.New()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := from.AddDate(0, 3, 0)

	var captured *rbac.RoleAssignment
	f.grants.On("AssignRole", ctx, mock.AnythingOfType("*rbac.RoleAssignment")).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*rbac.RoleAssignment)
		}).Return(nil)
	f.cache.On("InvalidateUser", ctx, userID).Return(nil)

	err := f.service.AssignRole(ctx, userID, roleID, &from, &until)
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, userID, captured.UserID)
	assert.Equal(t, roleID, captured.RoleID)
	assert.Equal(t, &from, captured.ValidFrom)
	assert.Equal(t, &until, captured.ValidUntil)
	assert.False(t, captured.GrantedAt.IsZero())
	f.cache.AssertExpectations(t)
}

func TestGrantService_AssignRole_OpenEndedWindow(t *testing.T) {
	f := newGrantFixture()
	ctx := context.Background()
	userID := uuid.New()

	var captured *rbac.RoleAssignment
	f.grants.On("AssignRole", ctx, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*rbac.RoleAssignment)
		}).Return(nil)
	f.cache.On("InvalidateUser", ctx, userID).Return(nil)

	err := f.service.AssignRole(ctx, userID, uuid.New(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, captured.ValidFrom)
	assert.Nil(t, captured.ValidUntil)
}

func TestGrantService_AssignRole_StoreErrorSkipsInvalidation(t *testing.T) {
	f := newGrantFixture()
	ctx := context.Background()
	userID := uuid.New()

	f.grants.On("AssignRole", ctx, mock.Anything).Return(rbac.ErrInvalidReference)

	err := f.service.AssignRole(ctx, userID, uuid.New(), nil, nil)
	assert.ErrorIs(t, err, rbac.ErrInvalidReference)
	f.cache.AssertNotCalled(t, "InvalidateUser", mock.Anything, mock.Anything)
}

func TestGrantService_LinkPermission_InvalidatesRoleHolders(t *testing.T) {
	f := newGrantFixture()
	ctx := context.Background()
	roleID := uuid.New()
	permissionID := uuid.New()
	holders := []uuid.UUID{uuid.New(), uuid.New()}

	f.grants.On("LinkPermission", ctx, roleID, permissionID).Return(nil)
	f.grants.On("FindUsersForRole", ctx, roleID).Return(holders, nil)
	for _, userID := range holders {
		f.cache.On("InvalidateUser", ctx, userID).Return(nil)
	}

	err := f.service.LinkPermission(ctx, roleID, permissionID)
	require.NoError(t, err)
	f.cache.AssertExpectations(t)
	f.cache.AssertNumberOfCalls(t, "InvalidateUser", len(holders))
}

func TestGrantService_UnlinkPermission_InvalidatesRoleHolders(t *testing.T) {
	f := newGrantFixture()
	ctx := context.Background()
	roleID := uuid.New()
	permissionID := uuid.New()
	holder := uuid.New()

	f.grants.On("UnlinkPermission", ctx, roleID, permissionID).Return(nil)
	f.grants.On("FindUsersForRole", ctx, roleID).Return([]uuid.UUID{holder}, nil)
	f.cache.On("InvalidateUser", ctx, holder).Return(nil)

	err := f.service.UnlinkPermission(ctx, roleID, permissionID)
	require.NoError(t, err)
	f.cache.AssertExpectations(t)
}

func TestGrantService_LinkPermission_StoreErrorSkipsInvalidation(t *testing.T) {
	f := newGrantFixture()
	ctx := context.Background()

	f.grants.On("LinkPermission", ctx, mock.Anything, mock.Anything).Return(rbac.ErrInvalidReference)

	err := f.service.LinkPermission(ctx, uuid.New(), uuid.New())
	assert.ErrorIs(t, err, rbac.ErrInvalidReference)
	f.cache.AssertNotCalled(t, "InvalidateUser", mock.Anything, mock.Anything)
}

func TestGrantService_RevokeRole_InvalidatesCache(t *testing.T) {
	f := newGrantFixture()
	ctx := context.Background()
	userID := uuid.New()
	roleID := uuid.New()

	f.grants.On("RevokeRole", ctx, userID, roleID).Return(nil)
	f.cache.On("InvalidateUser", ctx, userID).Return(nil)

	err := f.service.RevokeRole(ctx, userID, roleID)
	require.NoError(t, err)
	f.cache.AssertExpectations(t)
}

func TestGrantService_CacheInvalidationFailureIsNotFatal(t *testing.T) {
	f := newGrantFixture()
	ctx := context.Background()
	userID := uuid.New()
	roleID := uuid.New()

	f.grants.On("RevokeRole", ctx, userID, roleID).Return(nil)
	f.cache.On("InvalidateUser", ctx, userID).Return(errors.New("redis down"))

	err := f.service.RevokeRole(ctx, userID, roleID)
	assert.NoError(t, err)
}

func TestGrantService_GroupRoleInvalidatesEveryMember(t *testing.T) {
	f := newGrantFixture()
	ctx := context.Background()
	groupID := uuid.New()
	roleID := uuid.New()
	members := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	f.grants.On("AssignGroupRole", ctx, groupID, roleID).Return(nil)
	f.identityRepo.On("FindGroupMembers", ctx, groupID).Return(members, nil)
	for _, userID := range members {
		f.cache.On("InvalidateUser", ctx, userID).Return(nil)
	}

	err := f.service.AssignGroupRole(ctx, groupID, roleID)
	require.NoError(t, err)
	f.cache.AssertExpectations(t)
	f.cache.AssertNumberOfCalls(t, "InvalidateUser", len(members))
}

func TestGrantService_RevokeGroupRole_MemberLookupFailureIsNotFatal(t *testing.T) {
	f := newGrantFixture()
	ctx := context.Background()
	groupID := uuid.New()
	roleID := uuid.New()

	f.grants.On("RevokeGroupRole", ctx, groupID, roleID).Return(nil)
	f.identityRepo.On("FindGroupMembers", ctx, groupID).Return(nil, errors.New("db gone"))

	err := f.service.RevokeGroupRole(ctx, groupID, roleID)
	assert.NoError(t, err)
	f.cache.AssertNotCalled(t, "InvalidateUser", mock.Anything, mock.Anything)
}

func TestGrantService_CreateServicePrincipal(t *testing.T) {
	f := newGrantFixture()
	ctx := context.Background()
	serviceID := uuid.New()

	f.principals.On("Create", ctx, mock.AnythingOfType("*principal.Entity")).Return(nil)

	entity, err := f.service.CreateServicePrincipal(ctx, serviceID)
	require.NoError(t, err)
	assert.Equal(t, serviceID, entity.ID)
	assert.Equal(t, serviceID.String(), entity.ExternalID)
	assert.Equal(t, principal.TypeService, entity.Type)
	assert.True(t, entity.Enabled)
}

func TestGrantService_GrantServicePermission(t *testing.T) {
	f := newGrantFixture()
	ctx := context.Background()
	principalID := uuid.New()
	permissionID := uuid.New()

	f.principals.On("GrantPermission", ctx, principalID, permissionID).Return(nil)

	err := f.service.GrantServicePermission(ctx, principalID, permissionID)
	assert.NoError(t, err)
	f.principals.AssertExpectations(t)
}

func TestGrantService_CreatePolicy(t *testing.T) {
	f := newGrantFixture()
	ctx := context.Background()

	f.policies.On("Create", ctx, mock.AnythingOfType("*abac.Policy")).Return(nil)

	policy := &abac.Policy{
		Name:      "deny frozen resources",
		Effect:    abac.EffectDeny,
		Condition: json.RawMessage(`{"op":"eq","path":"resource.frozen","value":true}`),
		IsActive:  true,
	}
	err := f.service.CreatePolicy(ctx, policy)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, policy.ID)
	assert.False(t, policy.CreatedAt.IsZero())
	assert.Equal(t, policy.CreatedAt, policy.UpdatedAt)
}

func TestGrantService_CreatePolicy_InvalidEffect(t *testing.T) {
	f := newGrantFixture()
	ctx := context.Background()

	policy := &abac.Policy{
		Name:      "broken effect",
		Effect:    abac.Effect("AUDIT"),
		Condition: json.RawMessage(`{"op":"eq","path":"a","value":1}`),
	}
	err := f.service.CreatePolicy(ctx, policy)
	assert.ErrorIs(t, err, abac.ErrInvalidEffect)
	f.policies.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGrantService_CreatePolicy_MalformedCondition(t *testing.T) {
	f := newGrantFixture()
	ctx := context.Background()

	cases := []json.RawMessage{
		nil,
		json.RawMessage(`not json`),
		json.RawMessage(`[1,2,3]`),
		json.RawMessage(`"just a string"`),
	}
	for _, condition := range cases {
		policy := &abac.Policy{Name: "bad", Effect: abac.EffectDeny, Condition: condition}
		err := f.service.CreatePolicy(ctx, policy)
		assert.ErrorIs(t, err, abac.ErrMalformedCondition, "condition %s", condition)
	}
	f.policies.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGrantService_UpdatePolicy(t *testing.T) {
	f := newGrantFixture()
	ctx := context.Background()
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	f.policies.On("Update", ctx, mock.AnythingOfType("*abac.Policy")).Return(nil)

	policy := &abac.Policy{
		ID:        uuid.New(),
		Name:      "deny contractors",
		Effect:    abac.EffectDeny,
		Condition: json.RawMessage(`{"op":"eq","path":"subject.contractor","value":true}`),
		CreatedAt: created,
		UpdatedAt: created,
	}
	err := f.service.UpdatePolicy(ctx, policy)
	require.NoError(t, err)
	assert.Equal(t, created, policy.CreatedAt)
	assert.True(t, policy.UpdatedAt.After(created))
}
