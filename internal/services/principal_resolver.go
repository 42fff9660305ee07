package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/victoralfred/authz_sys/internal/domain/auth"
	"github.com/victoralfred/authz_sys/internal/domain/principal"
)

// PrincipalResolver turns a bearer token into a Principal. Discrimination is
// by claim shape: a service_id claim produces a ServicePrincipal (optionally
// carrying delegated user context), anything else a UserPrincipal.
//
// The resolver verifies the HMAC signature and expiry, then trusts the claim
// bag as-is; it fails closed with ErrAuthenticationRequired when the token
// does not verify.
type PrincipalResolver struct {
	secretKey []byte
	issuer    string
}

// NewPrincipalResolver creates a resolver for tokens signed with the given
// shared secret.
func NewPrincipalResolver(secretKey, issuer string) *PrincipalResolver {
	return &PrincipalResolver{
		secretKey: []byte(secretKey),
		issuer:    issuer,
	}
}

// FromToken resolves a principal from a signed token string.
func (r *PrincipalResolver) FromToken(tokenString string) (principal.Principal, error) {
	claims, err := r.parseClaims(tokenString)
	if err != nil {
		return nil, auth.ErrAuthenticationRequired
	}

	if claims.IsService() {
		serviceID, err := uuid.Parse(claims.ServiceID)
		if err != nil {
			return nil, auth.ErrAuthenticationRequired
		}

		sp := principal.ServicePrincipal{
			ServiceID:       serviceID,
			Permissions:     claims.Permissions,
			UserPermissions: claims.UserPermissions,
		}

		if claims.UserID != "" {
			userID, err := uuid.Parse(claims.UserID)
			if err != nil {
				return nil, auth.ErrAuthenticationRequired
			}
			sp.UserID = &userID
		}

		return sp, nil
	}

	subject := claims.UserID
	if subject == "" {
		subject = claims.Subject
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return nil, auth.ErrAuthenticationRequired
	}

	return principal.UserPrincipal{
		UserID:      userID,
		Permissions: claims.Permissions,
	}, nil
}

// parseClaims verifies the token and maps its claims onto auth.Claims.
func (r *PrincipalResolver) parseClaims(tokenString string) (*auth.Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return r.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, auth.ErrInvalidToken
	}

	claims := &auth.Claims{}

	if sub, ok := mapClaims["sub"].(string); ok {
		claims.Subject = sub
	}
	if serviceID, ok := mapClaims["service_id"].(string); ok {
		claims.ServiceID = serviceID
	}
	if userID, ok := mapClaims["user_id"].(string); ok {
		claims.UserID = userID
	}
	claims.Permissions = stringSlice(mapClaims["permissions"])
	claims.UserPermissions = stringSlice(mapClaims["user_permissions"])

	if iss, ok := mapClaims["iss"].(string); ok {
		claims.Issuer = iss
	}
	if jti, ok := mapClaims["jti"].(string); ok {
		claims.JTI = jti
	}
	if aud, ok := mapClaims["aud"].([]interface{}); ok {
		for _, a := range aud {
			if s, ok := a.(string); ok {
				claims.Audience = append(claims.Audience, s)
			}
		}
	}

	exp, ok := mapClaims["exp"].(float64)
	if !ok {
		return nil, fmt.Errorf("invalid exp in token")
	}
	claims.ExpiresAt = time.Unix(int64(exp), 0)
	if time.Now().After(claims.ExpiresAt) {
		return nil, auth.ErrTokenExpired
	}

	if iat, ok := mapClaims["iat"].(float64); ok {
		claims.IssuedAt = time.Unix(int64(iat), 0)
	}

	return claims, nil
}

func stringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
