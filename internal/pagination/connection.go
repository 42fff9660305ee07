package pagination

// PageInfo carries paging state for one page of a connection. Paging is
// forward-only, so HasPreviousPage is always false.
type PageInfo struct {
	HasNextPage     bool    `json:"has_next_page"`
	HasPreviousPage bool    `json:"has_previous_page"`
	StartCursor     *string `json:"start_cursor,omitempty"`
	EndCursor       *string `json:"end_cursor,omitempty"`
}

// Edge pairs an item with the cursor that resumes the walk immediately
// after it.
type Edge[T any] struct {
	Node   T      `json:"node"`
	Cursor string `json:"cursor"`
}

// Connection is one page of a filtered, sorted result set. TotalCount is the
// size of the full filtered set and is identical across every page of the
// same query.
type Connection[T any] struct {
	Edges      []Edge[T] `json:"edges"`
	PageInfo   PageInfo  `json:"page_info"`
	TotalCount int64     `json:"total_count"`
}

// Items returns the page's nodes in order.
func (c *Connection[T]) Items() []T {
	items := make([]T, 0, len(c.Edges))
	for _, e := range c.Edges {
		items = append(items, e.Node)
	}
	return items
}
