package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/victoralfred/authz_sys/internal/domain/abac"
	"github.com/victoralfred/authz_sys/internal/domain/identity"
	"github.com/victoralfred/authz_sys/internal/domain/principal"
	"github.com/victoralfred/authz_sys/internal/domain/rbac"
)

// GrantService owns grant administration: roles, permissions, their links,
// direct and group role assignments, service principals, and ABAC policies.
// Grant mutations invalidate the affected users' cached permission sets.
type GrantService struct {
	grants       rbac.GrantRepository
	identityRepo identity.Repository
	principals   principal.Repository
	policies     abac.PolicyRepository
	cache        rbac.PermissionCache
	logger       *zap.Logger
}

// NewGrantService creates a grant service. Cache is optional.
func NewGrantService(
	grants rbac.GrantRepository,
	identityRepo identity.Repository,
	principals principal.Repository,
	policies abac.PolicyRepository,
	logger *zap.Logger,
) *GrantService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GrantService{
		grants:       grants,
		identityRepo: identityRepo,
		principals:   principals,
		policies:     policies,
		logger:       logger,
	}
}

// SetPermissionCache installs the cache invalidated on grant mutations.
func (s *GrantService) SetPermissionCache(cache rbac.PermissionCache) {
	s.cache = cache
}

// CreateRole creates a named role.
func (s *GrantService) CreateRole(ctx context.Context, name string) (*rbac.Role, error) {
	now := time.Now()
	role := &rbac.Role{ID: uuid.New(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := s.grants.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// CreatePermission creates a named permission.
func (s *GrantService) CreatePermission(ctx context.Context, name string) (*rbac.Permission, error) {
	perm := &rbac.Permission{ID: uuid.New(), Name: name, CreatedAt: time.Now()}
	if err := s.grants.CreatePermission(ctx, perm); err != nil {
		return nil, err
	}
	return perm, nil
}

// LinkPermission grants a permission to a role; re-linking is a no-op.
// Every user holding the role gets its cached permission set dropped.
func (s *GrantService) LinkPermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	if err := s.grants.LinkPermission(ctx, roleID, permissionID); err != nil {
		return err
	}
	s.invalidateRole(ctx, roleID)
	return nil
}

// UnlinkPermission revokes a permission from a role. Invalidation matters
// most on this path: a stale cached set keeps allowing until the TTL runs
// out.
func (s *GrantService) UnlinkPermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	if err := s.grants.UnlinkPermission(ctx, roleID, permissionID); err != nil {
		return err
	}
	s.invalidateRole(ctx, roleID)
	return nil
}

// AssignRole directly grants a role to a user with an optional validity
// window.
func (s *GrantService) AssignRole(ctx context.Context, userID, roleID uuid.UUID, validFrom, validUntil *time.Time) error {
	assignment := &rbac.RoleAssignment{
		UserID:     userID,
		RoleID:     roleID,
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
		GrantedAt:  time.Now(),
	}
	if err := s.grants.AssignRole(ctx, assignment); err != nil {
		return err
	}
	s.invalidateUser(ctx, userID)
	return nil
}

// RevokeRole removes a direct role grant.
func (s *GrantService) RevokeRole(ctx context.Context, userID, roleID uuid.UUID) error {
	if err := s.grants.RevokeRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.invalidateUser(ctx, userID)
	return nil
}

// AssignGroupRole grants a role to every current member of a group;
// re-granting is a no-op.
func (s *GrantService) AssignGroupRole(ctx context.Context, groupID, roleID uuid.UUID) error {
	if err := s.grants.AssignGroupRole(ctx, groupID, roleID); err != nil {
		return err
	}
	s.invalidateGroup(ctx, groupID)
	return nil
}

// RevokeGroupRole removes a role grant from a group.
func (s *GrantService) RevokeGroupRole(ctx context.Context, groupID, roleID uuid.UUID) error {
	if err := s.grants.RevokeGroupRole(ctx, groupID, roleID); err != nil {
		return err
	}
	s.invalidateGroup(ctx, groupID)
	return nil
}

// CreateServicePrincipal registers a service principal keyed by its
// service id.
func (s *GrantService) CreateServicePrincipal(ctx context.Context, serviceID uuid.UUID) (*principal.Entity, error) {
	entity := principal.NewServiceEntity(serviceID)
	if err := s.principals.Create(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// SetServicePrincipalEnabled toggles a service principal. A disabled
// principal is denied on every check regardless of its grants.
func (s *GrantService) SetServicePrincipalEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	return s.principals.SetEnabled(ctx, id, enabled)
}

// GrantServicePermission directly grants a permission to a service
// principal; re-granting is a no-op.
func (s *GrantService) GrantServicePermission(ctx context.Context, principalID, permissionID uuid.UUID) error {
	return s.principals.GrantPermission(ctx, principalID, permissionID)
}

// CreatePolicy creates an ABAC policy after validating its condition tree
// and effect. Evaluation would degrade a malformed condition to non-match;
// rejecting it here keeps broken definitions out of the store entirely.
func (s *GrantService) CreatePolicy(ctx context.Context, policy *abac.Policy) error {
	if policy.Effect != abac.EffectAllow && policy.Effect != abac.EffectDeny {
		return abac.ErrInvalidEffect
	}
	if _, err := abac.ParseCondition(policy.Condition); err != nil {
		return err
	}
	if policy.ID == uuid.Nil {
		policy.ID = uuid.New()
	}
	now := time.Now()
	policy.CreatedAt = now
	policy.UpdatedAt = now
	return s.policies.Create(ctx, policy)
}

// UpdatePolicy updates an ABAC policy with the same validation as creation.
func (s *GrantService) UpdatePolicy(ctx context.Context, policy *abac.Policy) error {
	if policy.Effect != abac.EffectAllow && policy.Effect != abac.EffectDeny {
		return abac.ErrInvalidEffect
	}
	if _, err := abac.ParseCondition(policy.Condition); err != nil {
		return err
	}
	policy.UpdatedAt = time.Now()
	return s.policies.Update(ctx, policy)
}

// DeletePolicy deletes an ABAC policy.
func (s *GrantService) DeletePolicy(ctx context.Context, id uuid.UUID) error {
	return s.policies.Delete(ctx, id)
}

func (s *GrantService) invalidateUser(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		s.logger.Warn("failed to invalidate permission cache",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}
}

func (s *GrantService) invalidateRole(ctx context.Context, roleID uuid.UUID) {
	if s.cache == nil {
		return
	}
	holders, err := s.grants.FindUsersForRole(ctx, roleID)
	if err != nil {
		s.logger.Warn("failed to resolve role holders for cache invalidation",
			zap.String("role_id", roleID.String()),
			zap.Error(err))
		return
	}
	for _, userID := range holders {
		s.invalidateUser(ctx, userID)
	}
}

func (s *GrantService) invalidateGroup(ctx context.Context, groupID uuid.UUID) {
	if s.cache == nil {
		return
	}
	members, err := s.identityRepo.FindGroupMembers(ctx, groupID)
	if err != nil {
		s.logger.Warn("failed to resolve group members for cache invalidation",
			zap.String("group_id", groupID.String()),
			zap.Error(err))
		return
	}
	for _, userID := range members {
		s.invalidateUser(ctx, userID)
	}
}
