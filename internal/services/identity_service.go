package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/victoralfred/authz_sys/internal/domain/identity"
	"github.com/victoralfred/authz_sys/internal/domain/rbac"
)

const passwordResetTTL = 1 * time.Hour

// IdentityService owns user and group administration: provisioning, profile
// updates, password reset flows, enable/disable, and group membership.
// Membership changes invalidate the member's cached permission set.
type IdentityService struct {
	repo   identity.Repository
	hasher PasswordHasher
	cache  rbac.PermissionCache
	logger *zap.Logger
}

// NewIdentityService creates an identity service. Cache is optional.
func NewIdentityService(repo identity.Repository, hasher PasswordHasher, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{
		repo:   repo,
		hasher: hasher,
		logger: logger,
	}
}

// SetPermissionCache installs the cache invalidated on membership changes.
func (s *IdentityService) SetPermissionCache(cache rbac.PermissionCache) {
	s.cache = cache
}

// CreateUser provisions a new enabled user.
func (s *IdentityService) CreateUser(ctx context.Context, email, displayName, password string) (*identity.User, error) {
	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u, err := identity.NewUser(email, hash)
	if err != nil {
		return nil, err
	}
	if displayName != "" {
		u.DisplayName = &displayName
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user created", zap.String("user_id", u.ID.String()))
	return u, nil
}

// GetUser retrieves a user by id.
func (s *IdentityService) GetUser(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateDisplayName updates a user's display name.
func (s *IdentityService) UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName *string) (*identity.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.DisplayName = displayName
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// SetUserEnabled soft-disables or re-enables a user. A disabled user keeps
// all grants but the engine denies every check until re-enabled.
func (s *IdentityService) SetUserEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	if err := s.repo.SetEnabled(ctx, id, enabled); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// RequestPasswordReset issues a reset token for the user with the given
// email. The token is returned for delivery by the out-of-scope mail layer.
func (s *IdentityService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if !u.Enabled {
		return "", identity.ErrUserDisabled
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	expiry := time.Now().Add(passwordResetTTL)
	u.PasswordResetToken = token
	u.PasswordResetExpiry = &expiry
	if err := s.repo.Update(ctx, u); err != nil {
		return "", err
	}

	return token, nil
}

// ResetPassword consumes a reset token and sets a new password.
func (s *IdentityService) ResetPassword(ctx context.Context, token, newPassword string) error {
	u, err := s.repo.GetByResetToken(ctx, token)
	if err != nil {
		return err
	}
	if !u.CanResetPassword() {
		return identity.ErrInvalidResetToken
	}

	hash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	u.PasswordHash = hash
	u.PasswordResetToken = ""
	u.PasswordResetExpiry = nil
	return s.repo.Update(ctx, u)
}

// CreateGroup creates a named group.
func (s *IdentityService) CreateGroup(ctx context.Context, name string) (*identity.Group, error) {
	g := identity.NewGroup(name)
	if err := s.repo.CreateGroup(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// DeleteGroup deletes a group. Members lose the group's inherited roles at
// the next check; their cached permission sets are dropped.
func (s *IdentityService) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	if s.cache != nil {
		// invalidate before the membership rows disappear
		members, err := s.repo.FindGroupMembers(ctx, id)
		if err == nil {
			for _, userID := range members {
				s.invalidate(ctx, userID)
			}
		}
	}
	return s.repo.DeleteGroup(ctx, id)
}

// AddGroupMember adds a user to a group; re-adding is a no-op.
func (s *IdentityService) AddGroupMember(ctx context.Context, userID, groupID uuid.UUID) error {
	if err := s.repo.AddGroupMember(ctx, userID, groupID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// RemoveGroupMember removes a user from a group.
func (s *IdentityService) RemoveGroupMember(ctx context.Context, userID, groupID uuid.UUID) error {
	if err := s.repo.RemoveGroupMember(ctx, userID, groupID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *IdentityService) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		s.logger.Warn("failed to invalidate permission cache",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}
}
