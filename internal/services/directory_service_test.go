package services_test

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victoralfred/authz_sys/internal/domain/identity"
	"github.com/victoralfred/authz_sys/internal/domain/rbac"
	"github.com/victoralfred/authz_sys/internal/pagination"
	"github.com/victoralfred/authz_sys/internal/services"
)

// fakeDirectoryStore is an in-memory identity.Repository implementing the
// same keyset paging contract as the SQL store: composite sort with an id
// tiebreaker, rows strictly after the cursor position, total counted before
// paging. Only the directory methods are live.
type fakeDirectoryStore struct {
	identity.Repository

	users      []*identity.User
	lastParams identity.SearchParams
}

func userSortValue(u *identity.User, field string) string {
	switch field {
	case "display_name":
		if u.DisplayName == nil {
			return ""
		}
		return *u.DisplayName
	case "email":
		return u.Email
	}
	return ""
}

// lessUsers orders by the composite spec, id ascending last
func lessUsers(a, b *identity.User, spec []pagination.OrderSpec) bool {
	for _, o := range spec {
		av, bv := userSortValue(a, o.Field), userSortValue(b, o.Field)
		if av == bv {
			continue
		}
		if o.Desc {
			return av > bv
		}
		return av < bv
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

// userAfterPosition reports whether the row sorts strictly after the cursor
// position under the composite spec with the id tiebreaker.
func userAfterPosition(u *identity.User, spec []pagination.OrderSpec, pos *pagination.Position) bool {
	for j, o := range spec {
		v := userSortValue(u, o.Field)
		if v == pos.Values[j] {
			continue
		}
		if o.Desc {
			return v < pos.Values[j]
		}
		return v > pos.Values[j]
	}
	return bytes.Compare(u.ID[:], pos.ID[:]) > 0
}

func (f *fakeDirectoryStore) Search(_ context.Context, params identity.SearchParams) ([]*identity.User, int64, error) {
	f.lastParams = params

	var filtered []*identity.User
	for _, u := range f.users {
		if params.Query != "" &&
			!strings.Contains(strings.ToLower(u.Email), strings.ToLower(params.Query)) &&
			!strings.Contains(strings.ToLower(userSortValue(u, "display_name")), strings.ToLower(params.Query)) {
			continue
		}
		filtered = append(filtered, u)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return lessUsers(filtered[i], filtered[j], params.OrderBy)
	})

	total := int64(len(filtered))

	if params.After != nil {
		// keep only rows strictly after the cursor position
		start := len(filtered)
		for i, candidate := range filtered {
			if userAfterPosition(candidate, params.OrderBy, params.After) {
				start = i
				break
			}
		}
		filtered = filtered[start:]
	}

	if params.Limit > 0 && len(filtered) > params.Limit {
		filtered = filtered[:params.Limit]
	}

	return filtered, total, nil
}

func seedUsers(n int) *fakeDirectoryStore {
	store := &fakeDirectoryStore{}
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("user-%03d", i)
		email := name + "@example.com"
		display := name
		store.users = append(store.users, &identity.User{
			ID:          uuid.New(),
			Email:       email,
			DisplayName: &display,
			Enabled:     true,
		})
	}
	return store
}

func newDirectory(store identity.Repository) *services.DirectoryService {
	return services.NewDirectoryService(store, nil, nil)
}

func TestSearchUsers_DefaultPageSize(t *testing.T) {
	store := seedUsers(25)
	directory := newDirectory(store)

	conn, err := directory.SearchUsers(context.Background(), services.SearchRequest{})
	require.NoError(t, err)

	assert.Len(t, conn.Edges, services.DefaultPageSize)
	assert.Equal(t, int64(25), conn.TotalCount)
	assert.True(t, conn.PageInfo.HasNextPage)
	assert.False(t, conn.PageInfo.HasPreviousPage)
}

func TestSearchUsers_WalkAllPages(t *testing.T) {
	store := seedUsers(25)
	directory := newDirectory(store)
	ctx := context.Background()

	var seen []string
	var after *string
	pages := 0

	for {
		conn, err := directory.SearchUsers(ctx, services.SearchRequest{First: 10, After: after})
		require.NoError(t, err)
		pages++

		assert.Equal(t, int64(25), conn.TotalCount)
		for _, u := range conn.Items() {
			seen = append(seen, *u.DisplayName)
		}
		if !conn.PageInfo.HasNextPage {
			assert.Len(t, conn.Edges, 5)
			break
		}
		assert.Len(t, conn.Edges, 10)
		require.NotNil(t, conn.PageInfo.EndCursor)
		after = conn.PageInfo.EndCursor
	}

	assert.Equal(t, 3, pages)
	require.Len(t, seen, 25)
	assert.True(t, sort.StringsAreSorted(seen), "default order is display_name ascending")

	// no row visited twice
	unique := make(map[string]struct{}, len(seen))
	for _, name := range seen {
		unique[name] = struct{}{}
	}
	assert.Len(t, unique, 25)
}

func TestSearchUsers_ClampsPageSize(t *testing.T) {
	store := seedUsers(5)
	directory := newDirectory(store)

	conn, err := directory.SearchUsers(context.Background(), services.SearchRequest{First: 100000})
	require.NoError(t, err)

	assert.Len(t, conn.Edges, 5)
	// the store was asked for max+1 rows to detect a next page
	assert.Equal(t, services.MaxPageSize+1, store.lastParams.Limit)
}

func TestSearchUsers_DuplicateSortValuesDoNotSkipOrRepeat(t *testing.T) {
	store := &fakeDirectoryStore{}
	shared := "same-name"
	for i := 0; i < 4; i++ {
		store.users = append(store.users, &identity.User{
			ID:          uuid.New(),
			Email:       fmt.Sprintf("dup-%d@example.com", i),
			DisplayName: &shared,
		})
	}
	directory := newDirectory(store)
	ctx := context.Background()

	seen := make(map[uuid.UUID]struct{})
	var after *string
	for {
		conn, err := directory.SearchUsers(ctx, services.SearchRequest{First: 1, After: after})
		require.NoError(t, err)
		for _, u := range conn.Items() {
			_, dup := seen[u.ID]
			require.False(t, dup, "row %s visited twice", u.ID)
			seen[u.ID] = struct{}{}
		}
		if !conn.PageInfo.HasNextPage {
			break
		}
		after = conn.PageInfo.EndCursor
	}

	assert.Len(t, seen, 4)
}

func TestSearchUsers_SubstringFilter(t *testing.T) {
	store := seedUsers(25)
	directory := newDirectory(store)

	conn, err := directory.SearchUsers(context.Background(), services.SearchRequest{Query: "user-01"})
	require.NoError(t, err)

	// user-010 through user-019
	assert.Equal(t, int64(10), conn.TotalCount)
	assert.Len(t, conn.Edges, 10)
}

func TestSearchUsers_ExplicitSort(t *testing.T) {
	store := seedUsers(5)
	directory := newDirectory(store)

	conn, err := directory.SearchUsers(context.Background(), services.SearchRequest{
		OrderBy: []pagination.OrderSpec{{Field: "email", Desc: true}},
	})
	require.NoError(t, err)

	items := conn.Items()
	require.Len(t, items, 5)
	assert.Equal(t, "user-004@example.com", items[0].Email)
	assert.Equal(t, "user-000@example.com", items[4].Email)
}

func TestSearchUsers_InvalidSortField(t *testing.T) {
	directory := newDirectory(seedUsers(1))

	_, err := directory.SearchUsers(context.Background(), services.SearchRequest{
		OrderBy: []pagination.OrderSpec{{Field: "password_hash"}},
	})
	assert.ErrorIs(t, err, identity.ErrInvalidSortField)
}

func TestSearchUsers_MalformedCursor(t *testing.T) {
	directory := newDirectory(seedUsers(1))

	bad := "!!!not-base64!!!"
	_, err := directory.SearchUsers(context.Background(), services.SearchRequest{After: &bad})
	assert.ErrorIs(t, err, pagination.ErrMalformedCursor)
}

func TestSearchUsers_CursorSortMismatch(t *testing.T) {
	store := seedUsers(5)
	directory := newDirectory(store)
	ctx := context.Background()

	conn, err := directory.SearchUsers(ctx, services.SearchRequest{First: 2})
	require.NoError(t, err)
	require.NotNil(t, conn.PageInfo.EndCursor)

	// cursor was minted under display_name order, resumed under email order
	_, err = directory.SearchUsers(ctx, services.SearchRequest{
		After:   conn.PageInfo.EndCursor,
		OrderBy: []pagination.OrderSpec{{Field: "email"}},
	})
	assert.ErrorIs(t, err, pagination.ErrCursorSortMismatch)
}

// fakeGrantStore backs the role and permission directory searches
type fakeGrantStore struct {
	rbac.GrantRepository

	roles []*rbac.Role
}

func (f *fakeGrantStore) SearchRoles(_ context.Context, params identity.SearchParams) ([]*rbac.Role, int64, error) {
	var filtered []*rbac.Role
	for _, r := range f.roles {
		if params.Query != "" && !strings.Contains(r.Name, params.Query) {
			continue
		}
		filtered = append(filtered, r)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Name < filtered[j].Name })

	total := int64(len(filtered))
	if params.Limit > 0 && len(filtered) > params.Limit {
		filtered = filtered[:params.Limit]
	}
	return filtered, total, nil
}

func TestSearchRoles_DefaultNameOrder(t *testing.T) {
	store := &fakeGrantStore{roles: []*rbac.Role{
		{ID: uuid.New(), Name: "viewer"},
		{ID: uuid.New(), Name: "admin"},
		{ID: uuid.New(), Name: "operator"},
	}}
	directory := services.NewDirectoryService(nil, store, nil)

	conn, err := directory.SearchRoles(context.Background(), services.SearchRequest{})
	require.NoError(t, err)

	items := conn.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "admin", items[0].Name)
	assert.Equal(t, "operator", items[1].Name)
	assert.Equal(t, "viewer", items[2].Name)
	assert.Equal(t, int64(3), conn.TotalCount)
}
