// Package loaders provides per-request batched entity loaders. One loader
// instance answers "give me X for each of these N ids" with a single bulk
// store query and memoizes the results, so nested resolution over a page of
// entities costs one query per relation instead of one per row.
//
// Loaders hold request-scoped mutable state and are not safe for concurrent
// use; create a fresh RequestLoaders per inbound request and never share one
// across requests.
package loaders

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/victoralfred/authz_sys/internal/domain/identity"
	"github.com/victoralfred/authz_sys/internal/domain/rbac"
)

// BatchFunc bulk-fetches values for a set of keys. Implementations must
// return an entry for every requested key that exists; missing keys are
// filled in by the loader with the zero value.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) (map[K]V, error)

// Loader memoizes a BatchFunc within one request.
type Loader[K comparable, V any] struct {
	fetch BatchFunc[K, V]
	cache map[K]V
}

// NewLoader creates a loader over a batch fetch function.
func NewLoader[K comparable, V any](fetch BatchFunc[K, V]) *Loader[K, V] {
	return &Loader[K, V]{
		fetch: fetch,
		cache: make(map[K]V),
	}
}

// Load returns a value for every requested key. Keys already resolved within
// this request are served from the cache; only the remainder hits the store,
// in one batch. A key the store knows nothing about maps to the zero value.
func (l *Loader[K, V]) Load(ctx context.Context, keys []K) (map[K]V, error) {
	result := make(map[K]V, len(keys))

	var missing []K
	for _, key := range keys {
		if v, ok := l.cache[key]; ok {
			result[key] = v
		} else {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		fetched, err := l.fetch(ctx, dedupe(missing))
		if err != nil {
			return nil, err
		}
		for _, key := range missing {
			v := fetched[key]
			l.cache[key] = v
			result[key] = v
		}
	}

	return result, nil
}

// LoadOne resolves a single key through the batch cache.
func (l *Loader[K, V]) LoadOne(ctx context.Context, key K) (V, error) {
	values, err := l.Load(ctx, []K{key})
	if err != nil {
		var zero V
		return zero, err
	}
	return values[key], nil
}

func dedupe[K comparable](keys []K) []K {
	seen := make(map[K]struct{}, len(keys))
	out := keys[:0]
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

// RequestLoaders bundles the loaders one request needs to resolve nested
// directory fields without N+1 query storms.
type RequestLoaders struct {
	RolesForUser       *Loader[uuid.UUID, []*rbac.Role]
	GroupsForUser      *Loader[uuid.UUID, []*identity.Group]
	PermissionsForRole *Loader[uuid.UUID, []*rbac.Permission]
}

// NewRequestLoaders creates a fresh loader set for one request. The roles
// loader resolves the currently-effective roles, so the validity snapshot is
// taken once at loader construction.
func NewRequestLoaders(identityRepo identity.Repository, grants rbac.GrantRepository) *RequestLoaders {
	now := time.Now()

	return &RequestLoaders{
		RolesForUser: NewLoader(func(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID][]*rbac.Role, error) {
			return grants.FindRolesForUsers(ctx, userIDs, now)
		}),
		GroupsForUser: NewLoader(func(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID][]*identity.Group, error) {
			return identityRepo.FindGroupsForUsers(ctx, userIDs)
		}),
		PermissionsForRole: NewLoader(func(ctx context.Context, roleIDs []uuid.UUID) (map[uuid.UUID][]*rbac.Permission, error) {
			return grants.FindPermissionsForRoles(ctx, roleIDs)
		}),
	}
}
