package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/victoralfred/authz_sys/internal/domain/identity"
	"github.com/victoralfred/authz_sys/internal/pagination"
	"github.com/victoralfred/authz_sys/internal/services"
)

// ErrorResponse is the common error envelope
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PageInfoResponse mirrors pagination.PageInfo on the wire
type PageInfoResponse struct {
	HasNextPage     bool    `json:"has_next_page"`
	HasPreviousPage bool    `json:"has_previous_page"`
	StartCursor     *string `json:"start_cursor"`
	EndCursor       *string `json:"end_cursor"`
}

// EdgeResponse is one node plus its resume cursor
type EdgeResponse struct {
	Node   interface{} `json:"node"`
	Cursor string      `json:"cursor"`
}

// ConnectionResponse is a cursor-paged result set
type ConnectionResponse struct {
	Edges      []EdgeResponse   `json:"edges"`
	PageInfo   PageInfoResponse `json:"page_info"`
	TotalCount int64            `json:"total_count"`
}

// connectionResponse flattens a typed connection for JSON, mapping each node
// through project.
func connectionResponse[T any](conn *pagination.Connection[T], project func(T) interface{}) ConnectionResponse {
	edges := make([]EdgeResponse, 0, len(conn.Edges))
	for _, edge := range conn.Edges {
		edges = append(edges, EdgeResponse{
			Node:   project(edge.Node),
			Cursor: edge.Cursor,
		})
	}
	return ConnectionResponse{
		Edges: edges,
		PageInfo: PageInfoResponse{
			HasNextPage:     conn.PageInfo.HasNextPage,
			HasPreviousPage: conn.PageInfo.HasPreviousPage,
			StartCursor:     conn.PageInfo.StartCursor,
			EndCursor:       conn.PageInfo.EndCursor,
		},
		TotalCount: conn.TotalCount,
	}
}

// searchRequestFromQuery parses the shared directory query parameters. The
// sort parameter is comma-separated field names, "-" prefixed for
// descending, e.g. "sort=-created_at,email".
func searchRequestFromQuery(c *gin.Context) (services.SearchRequest, error) {
	req := services.SearchRequest{
		Query: c.Query("q"),
	}

	if firstStr := c.Query("first"); firstStr != "" {
		first, err := strconv.Atoi(firstStr)
		if err != nil {
			return req, errors.New("first must be an integer")
		}
		req.First = first
	}

	if after := c.Query("after"); after != "" {
		req.After = &after
	}

	if sortStr := c.Query("sort"); sortStr != "" {
		for _, field := range strings.Split(sortStr, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			spec := pagination.OrderSpec{Field: field}
			if strings.HasPrefix(field, "-") {
				spec = pagination.OrderSpec{Field: field[1:], Desc: true}
			}
			req.OrderBy = append(req.OrderBy, spec)
		}
	}

	return req, nil
}

// writeSearchError maps directory search failures onto status codes. A bad
// cursor or sort field is the caller's fault; everything else is ours.
func writeSearchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pagination.ErrMalformedCursor):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "MALFORMED_CURSOR",
			Message: "The after cursor could not be decoded",
		})
	case errors.Is(err, pagination.ErrCursorSortMismatch):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "CURSOR_SORT_MISMATCH",
			Message: "The after cursor was issued for a different sort order",
		})
	case errors.Is(err, identity.ErrInvalidSortField):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_SORT_FIELD",
			Message: "One of the requested sort fields is not sortable",
		})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "SEARCH_FAILED",
			Message: "Failed to execute search",
		})
	}
}
