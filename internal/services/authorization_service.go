package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/victoralfred/authz_sys/internal/domain/abac"
	"github.com/victoralfred/authz_sys/internal/domain/audit"
	"github.com/victoralfred/authz_sys/internal/domain/identity"
	"github.com/victoralfred/authz_sys/internal/domain/principal"
	"github.com/victoralfred/authz_sys/internal/domain/rbac"
)

// AuthorizationService is the hybrid RBAC+ABAC decision engine. It is
// stateless between calls: every check is an independent read against the
// shared store, so concurrent checks interleave freely.
//
// The decision protocol is RBAC first, ABAC second. An RBAC deny is
// authoritative and cheaper than policy evaluation, so ABAC is never
// consulted in that branch. When RBAC allows, active policies are evaluated
// with deny-overrides combining: any matching DENY wins.
type AuthorizationService struct {
	identityRepo identity.Repository
	grants       rbac.GrantRepository
	policies     abac.PolicyRepository
	principals   principal.Repository
	cache        rbac.PermissionCache
	recorder     audit.DecisionRecorder
	logger       *zap.Logger
	now          func() time.Time
}

// NewAuthorizationService creates the engine. Cache and recorder are
// optional; pass nil to run without them.
func NewAuthorizationService(
	identityRepo identity.Repository,
	grants rbac.GrantRepository,
	policies abac.PolicyRepository,
	principals principal.Repository,
	logger *zap.Logger,
) *AuthorizationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthorizationService{
		identityRepo: identityRepo,
		grants:       grants,
		policies:     policies,
		principals:   principals,
		logger:       logger,
		now:          time.Now,
	}
}

// SetPermissionCache installs an effective-permission cache.
func (s *AuthorizationService) SetPermissionCache(cache rbac.PermissionCache) {
	s.cache = cache
}

// SetDecisionRecorder installs a best-effort decision audit recorder.
func (s *AuthorizationService) SetDecisionRecorder(recorder audit.DecisionRecorder) {
	s.recorder = recorder
}

// SetClock overrides the engine clock; used by tests.
func (s *AuthorizationService) SetClock(now func() time.Time) {
	s.now = now
}

// CheckPermission decides whether a user holds a permission, optionally under
// an ABAC attribute context. A disabled or unknown user is denied before any
// grant is resolved. Access denied is a normal return value, never an error;
// errors are reserved for store failures.
func (s *AuthorizationService) CheckPermission(ctx context.Context, userID uuid.UUID, permission string, attributes map[string]interface{}) (rbac.Decision, error) {
	user, err := s.identityRepo.GetByID(ctx, userID)
	if err != nil {
		if err == identity.ErrUserNotFound {
			decision := rbac.Deny(rbac.ReasonNoPermission)
			s.finish(ctx, principal.TypeUser, userID, permission, decision, attributes)
			return decision, nil
		}
		return rbac.Decision{}, fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.Enabled {
		decision := rbac.Deny(rbac.ReasonUserDisabled)
		s.finish(ctx, principal.TypeUser, userID, permission, decision, attributes)
		return decision, nil
	}

	permSet, err := s.effectivePermissionSet(ctx, userID)
	if err != nil {
		return rbac.Decision{}, err
	}

	if _, ok := permSet[permission]; !ok {
		decision := rbac.Deny(rbac.ReasonNoPermission)
		s.finish(ctx, principal.TypeUser, userID, permission, decision, attributes)
		return decision, nil
	}

	decision, err := s.evaluatePolicies(ctx, userID, attributes)
	if err != nil {
		return rbac.Decision{}, err
	}

	s.finish(ctx, principal.TypeUser, userID, permission, decision, attributes)
	return decision, nil
}

// CheckServicePermission decides whether a service principal holds a
// permission. A disabled principal is denied before its grants are looked
// at. Services do not participate in RBAC groups and no ABAC phase runs for
// service checks.
func (s *AuthorizationService) CheckServicePermission(ctx context.Context, serviceID uuid.UUID, permission string) (rbac.Decision, error) {
	entity, err := s.principals.FindByExternalID(ctx, serviceID.String())
	if err != nil {
		if err == principal.ErrNotFound {
			decision := rbac.Deny(rbac.ReasonServiceNotFound)
			s.finish(ctx, principal.TypeService, serviceID, permission, decision, nil)
			return decision, nil
		}
		return rbac.Decision{}, fmt.Errorf("failed to look up service principal: %w", err)
	}

	if !entity.Enabled {
		decision := rbac.Deny(rbac.ReasonServiceDisabled)
		s.finish(ctx, principal.TypeService, serviceID, permission, decision, nil)
		return decision, nil
	}

	granted, err := s.principals.FindPermissions(ctx, entity.ID)
	if err != nil {
		return rbac.Decision{}, fmt.Errorf("failed to load principal permissions: %w", err)
	}

	decision := rbac.Deny(rbac.ReasonServiceNoPermission)
	for _, p := range granted {
		if p.Name == permission {
			decision = rbac.Allow()
			break
		}
	}

	s.finish(ctx, principal.TypeService, serviceID, permission, decision, nil)
	return decision, nil
}

// CheckPrincipal is the principal-polymorphic entry point. For service
// tokens carrying delegated user context it enforces both the calling
// service's entitlement (against the store) and the end-user's entitlement
// (against the token-embedded permission set), without a second store
// round-trip for the user.
func (s *AuthorizationService) CheckPrincipal(ctx context.Context, p principal.Principal, permission string, attributes map[string]interface{}) (rbac.Decision, error) {
	switch v := p.(type) {
	case principal.UserPrincipal:
		return s.CheckPermission(ctx, v.UserID, permission, attributes)

	case principal.ServicePrincipal:
		decision, err := s.CheckServicePermission(ctx, v.ServiceID, permission)
		if err != nil || !decision.Allowed {
			return decision, err
		}
		if v.OnBehalfOfUser() {
			for _, name := range v.UserPermissions {
				if name == permission {
					return decision, nil
				}
			}
			return rbac.Deny(rbac.ReasonNoPermission), nil
		}
		return decision, nil

	default:
		return rbac.Deny(rbac.ReasonNoPermission), nil
	}
}

// GetUserPermissions returns the user's effective permission set: the union
// of permissions reachable through currently-valid direct assignments and
// group-inherited roles, deduplicated by name.
func (s *AuthorizationService) GetUserPermissions(ctx context.Context, userID uuid.UUID) ([]*rbac.Permission, error) {
	roles, err := s.effectiveRoles(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var permissions []*rbac.Permission
	for _, role := range roles {
		perms, err := s.grants.FindPermissionsForRole(ctx, role.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load permissions for role %s: %w", role.ID, err)
		}
		for _, p := range perms {
			if _, ok := seen[p.Name]; ok {
				continue
			}
			seen[p.Name] = struct{}{}
			permissions = append(permissions, p)
		}
	}

	return permissions, nil
}

// GetUserRoles returns the user's effective roles from direct and
// group-inherited assignments, deduplicated by id.
func (s *AuthorizationService) GetUserRoles(ctx context.Context, userID uuid.UUID) ([]*rbac.Role, error) {
	return s.effectiveRoles(ctx, userID)
}

func (s *AuthorizationService) effectiveRoles(ctx context.Context, userID uuid.UUID) ([]*rbac.Role, error) {
	now := s.now()

	assignments, err := s.grants.FindValidRoleAssignments(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load role assignments: %w", err)
	}

	seen := make(map[uuid.UUID]struct{})
	var roles []*rbac.Role

	for _, assignment := range assignments {
		role, err := s.grants.GetRoleByID(ctx, assignment.RoleID)
		if err != nil {
			if err == rbac.ErrRoleNotFound {
				// dangling reference, cannot contribute a permission
				continue
			}
			return nil, fmt.Errorf("failed to load role %s: %w", assignment.RoleID, err)
		}
		if _, ok := seen[role.ID]; ok {
			continue
		}
		seen[role.ID] = struct{}{}
		roles = append(roles, role)
	}

	groups, err := s.identityRepo.FindGroupsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load groups: %w", err)
	}

	for _, group := range groups {
		groupRoles, err := s.grants.FindRolesForGroup(ctx, group.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load roles for group %s: %w", group.ID, err)
		}
		for _, role := range groupRoles {
			if _, ok := seen[role.ID]; ok {
				continue
			}
			seen[role.ID] = struct{}{}
			roles = append(roles, role)
		}
	}

	return roles, nil
}

func (s *AuthorizationService) effectivePermissionSet(ctx context.Context, userID uuid.UUID) (map[string]struct{}, error) {
	if s.cache != nil {
		names, err := s.cache.GetUserPermissions(ctx, userID)
		if err == nil && names != nil {
			set := make(map[string]struct{}, len(names))
			for _, name := range names {
				set[name] = struct{}{}
			}
			return set, nil
		}
		if err != nil {
			s.logger.Warn("permission cache read failed", zap.Error(err))
		}
	}

	permissions, err := s.GetUserPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(permissions))
	names := make([]string, 0, len(permissions))
	for _, p := range permissions {
		set[p.Name] = struct{}{}
		names = append(names, p.Name)
	}

	if s.cache != nil {
		if err := s.cache.SetUserPermissions(ctx, userID, names); err != nil {
			s.logger.Warn("permission cache write failed", zap.Error(err))
		}
	}

	return set, nil
}

// evaluatePolicies runs the ABAC phase. A matching DENY policy overrides
// everything else; a policy whose condition is malformed or does not match
// simply does not apply. With no applicable denial the RBAC grant stands.
func (s *AuthorizationService) evaluatePolicies(ctx context.Context, userID uuid.UUID, attributes map[string]interface{}) (rbac.Decision, error) {
	policies, err := s.policies.FindActivePolicies(ctx)
	if err != nil {
		return rbac.Decision{}, fmt.Errorf("failed to load active policies: %w", err)
	}

	if len(policies) == 0 {
		return rbac.Allow(), nil
	}

	attrs := mergeSubjectContext(userID, attributes)

	for _, policy := range policies {
		if policy.Effect != abac.EffectDeny {
			continue
		}
		cond, err := abac.ParseCondition(policy.Condition)
		if err != nil {
			// fail closed: a broken policy does not apply
			s.logger.Warn("skipping malformed policy condition",
				zap.String("policy", policy.Name),
				zap.Error(err))
			continue
		}
		if cond.Evaluate(attrs) {
			return rbac.Deny(rbac.ReasonAbacDeny), nil
		}
	}

	return rbac.Allow(), nil
}

// mergeSubjectContext overlays caller attributes onto the implicit subject
// context, so policies can always reference subject.userId.
func mergeSubjectContext(userID uuid.UUID, attributes map[string]interface{}) map[string]interface{} {
	subject := map[string]interface{}{
		"userId": userID.String(),
	}
	merged := map[string]interface{}{
		"subject": subject,
	}

	for key, value := range attributes {
		if key == "subject" {
			if extra, ok := value.(map[string]interface{}); ok {
				for k, v := range extra {
					subject[k] = v
				}
				continue
			}
		}
		merged[key] = value
	}

	return merged
}

func (s *AuthorizationService) finish(ctx context.Context, kind principal.Type, subjectID uuid.UUID, permission string, decision rbac.Decision, attributes map[string]interface{}) {
	if decision.Allowed {
		s.logger.Debug("permission granted",
			zap.String("subject", subjectID.String()),
			zap.String("permission", permission))
	} else {
		// expected outcome, not a fault
		s.logger.Info("permission denied",
			zap.String("subject", subjectID.String()),
			zap.String("permission", permission),
			zap.String("reason", decision.Reason))
	}

	if s.recorder == nil {
		return
	}

	record := &audit.DecisionRecord{
		ID:            uuid.New(),
		Timestamp:     s.now(),
		PrincipalType: kind,
		SubjectID:     subjectID,
		Permission:    permission,
		Allowed:       decision.Allowed,
		Reason:        decision.Reason,
		Attributes:    attributes,
		RequestID:     audit.RequestIDFromContext(ctx),
	}
	if err := s.recorder.Record(ctx, record); err != nil {
		s.logger.Warn("failed to record decision", zap.Error(err))
	}
}
