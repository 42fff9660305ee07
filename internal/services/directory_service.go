package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/victoralfred/authz_sys/internal/domain/identity"
	"github.com/victoralfred/authz_sys/internal/domain/rbac"
	"github.com/victoralfred/authz_sys/internal/pagination"
)

// Page size limits for the administrative directory. A request for more than
// MaxPageSize rows is clamped, not rejected.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// SearchRequest is one page request against a directory connection.
// OrderBy semantics: nil means the entity's default sort; an empty slice
// means the id tiebreaker only.
type SearchRequest struct {
	Query   string
	First   int
	After   *string
	OrderBy []pagination.OrderSpec
}

// DirectoryService answers cursor-paged administrative searches over users,
// groups, roles, and permissions.
type DirectoryService struct {
	identityRepo identity.Repository
	grants       rbac.GrantRepository
	logger       *zap.Logger
}

// NewDirectoryService creates a directory service.
func NewDirectoryService(identityRepo identity.Repository, grants rbac.GrantRepository, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{
		identityRepo: identityRepo,
		grants:       grants,
		logger:       logger,
	}
}

var (
	userSortFields   = map[string]bool{"display_name": true, "email": true, "created_at": true}
	namedSortFields  = map[string]bool{"name": true, "created_at": true}
	defaultUserOrder = []pagination.OrderSpec{{Field: "display_name"}}
	defaultNameOrder = []pagination.OrderSpec{{Field: "name"}}
)

// SearchUsers pages through users filtered by a substring match on display
// name and email.
func (s *DirectoryService) SearchUsers(ctx context.Context, req SearchRequest) (*pagination.Connection[*identity.User], error) {
	params, spec, first, err := s.prepare(req, defaultUserOrder, userSortFields)
	if err != nil {
		return nil, err
	}

	users, total, err := s.identityRepo.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}

	return buildConnection(users, total, spec, first,
		func(u *identity.User) uuid.UUID { return u.ID },
		func(u *identity.User, field string) string {
			switch field {
			case "display_name":
				if u.DisplayName == nil {
					return ""
				}
				return *u.DisplayName
			case "email":
				return u.Email
			case "created_at":
				return u.CreatedAt.UTC().Format(time.RFC3339Nano)
			}
			return ""
		}), nil
}

// SearchGroups pages through groups filtered by a substring match on name.
func (s *DirectoryService) SearchGroups(ctx context.Context, req SearchRequest) (*pagination.Connection[*identity.Group], error) {
	params, spec, first, err := s.prepare(req, defaultNameOrder, namedSortFields)
	if err != nil {
		return nil, err
	}

	groups, total, err := s.identityRepo.SearchGroups(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search groups: %w", err)
	}

	return buildConnection(groups, total, spec, first,
		func(g *identity.Group) uuid.UUID { return g.ID },
		func(g *identity.Group, field string) string {
			switch field {
			case "name":
				return g.Name
			case "created_at":
				return g.CreatedAt.UTC().Format(time.RFC3339Nano)
			}
			return ""
		}), nil
}

// SearchRoles pages through roles filtered by a substring match on name.
func (s *DirectoryService) SearchRoles(ctx context.Context, req SearchRequest) (*pagination.Connection[*rbac.Role], error) {
	params, spec, first, err := s.prepare(req, defaultNameOrder, namedSortFields)
	if err != nil {
		return nil, err
	}

	roles, total, err := s.grants.SearchRoles(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search roles: %w", err)
	}

	return buildConnection(roles, total, spec, first,
		func(r *rbac.Role) uuid.UUID { return r.ID },
		func(r *rbac.Role, field string) string {
			switch field {
			case "name":
				return r.Name
			case "created_at":
				return r.CreatedAt.UTC().Format(time.RFC3339Nano)
			}
			return ""
		}), nil
}

// SearchPermissions pages through permissions filtered by a substring match
// on name.
func (s *DirectoryService) SearchPermissions(ctx context.Context, req SearchRequest) (*pagination.Connection[*rbac.Permission], error) {
	params, spec, first, err := s.prepare(req, defaultNameOrder, namedSortFields)
	if err != nil {
		return nil, err
	}

	permissions, total, err := s.grants.SearchPermissions(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search permissions: %w", err)
	}

	return buildConnection(permissions, total, spec, first,
		func(p *rbac.Permission) uuid.UUID { return p.ID },
		func(p *rbac.Permission, field string) string {
			switch field {
			case "name":
				return p.Name
			case "created_at":
				return p.CreatedAt.UTC().Format(time.RFC3339Nano)
			}
			return ""
		}), nil
}

// prepare validates the sort spec, clamps the page size, and decodes the
// resume cursor against that spec.
func (s *DirectoryService) prepare(req SearchRequest, defaultOrder []pagination.OrderSpec, validFields map[string]bool) (identity.SearchParams, []pagination.OrderSpec, int, error) {
	spec := req.OrderBy
	if spec == nil {
		spec = defaultOrder
	}
	for _, o := range spec {
		if !validFields[o.Field] {
			return identity.SearchParams{}, nil, 0, identity.ErrInvalidSortField
		}
	}

	first := req.First
	if first <= 0 {
		first = DefaultPageSize
	}
	if first > MaxPageSize {
		first = MaxPageSize
	}

	var after *pagination.Position
	if req.After != nil && *req.After != "" {
		pos, err := pagination.DecodeCursor(*req.After, spec)
		if err != nil {
			return identity.SearchParams{}, nil, 0, err
		}
		after = pos
	}

	params := identity.SearchParams{
		Query:   req.Query,
		OrderBy: spec,
		After:   after,
		Limit:   first + 1,
	}
	return params, spec, first, nil
}

// buildConnection assembles a page from limit+1 fetched rows: the extra row,
// when present, only signals a next page and is dropped.
func buildConnection[T any](rows []T, total int64, spec []pagination.OrderSpec, first int,
	idOf func(T) uuid.UUID, valueOf func(T, string) string) *pagination.Connection[T] {

	hasNext := len(rows) > first
	if hasNext {
		rows = rows[:first]
	}

	conn := &pagination.Connection[T]{
		Edges:      make([]pagination.Edge[T], 0, len(rows)),
		TotalCount: total,
		PageInfo: pagination.PageInfo{
			HasNextPage:     hasNext,
			HasPreviousPage: false,
		},
	}

	for _, row := range rows {
		values := make([]string, len(spec))
		for i, o := range spec {
			values[i] = valueOf(row, o.Field)
		}
		conn.Edges = append(conn.Edges, pagination.Edge[T]{
			Node:   row,
			Cursor: pagination.EncodeCursor(spec, values, idOf(row)),
		})
	}

	if len(conn.Edges) > 0 {
		conn.PageInfo.StartCursor = &conn.Edges[0].Cursor
		conn.PageInfo.EndCursor = &conn.Edges[len(conn.Edges)-1].Cursor
	}

	return conn
}
