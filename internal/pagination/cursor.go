// Package pagination implements cursor-based, forward-only, composite-sort
// paging for the administrative directory surface.
//
// A cursor is an opaque, versioned token encoding the last-seen values of the
// sort fields plus a unique tiebreaker id. Because the tiebreaker is always
// part of the sort, the total order is strict and page walks neither skip nor
// repeat rows, even when page boundaries fall inside a run of duplicate
// primary sort values.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const cursorVersion = 1

var (
	// ErrMalformedCursor is returned when a cursor token cannot be decoded
	ErrMalformedCursor = fmt.Errorf("malformed cursor")

	// ErrCursorSortMismatch is returned when a cursor was issued for a
	// different sort specification than the one it is presented with
	ErrCursorSortMismatch = fmt.Errorf("cursor does not match sort specification")
)

// OrderSpec describes one component of a composite sort
type OrderSpec struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc"`
}

// Fingerprint returns a stable identifier for a sort specification. Cursors
// carry the fingerprint so a token minted under one ordering is rejected when
// presented under another instead of silently misordering results.
func Fingerprint(spec []OrderSpec) string {
	parts := make([]string, 0, len(spec))
	for _, s := range spec {
		dir := "asc"
		if s.Desc {
			dir = "desc"
		}
		parts = append(parts, s.Field+":"+dir)
	}
	return strings.Join(parts, ",")
}

// Position is the decoded resume point of a page walk: the last-seen value
// for each sort field (excluding the tiebreaker) and the tiebreaker id.
type Position struct {
	Values []string
	ID     uuid.UUID
}

type cursorPayload struct {
	Version int      `json:"v"`
	Sort    string   `json:"s"`
	Values  []string `json:"k"`
	ID      string   `json:"id"`
}

// EncodeCursor produces an opaque token for the row identified by the given
// sort-field values and tiebreaker id under the given sort specification.
func EncodeCursor(spec []OrderSpec, values []string, id uuid.UUID) string {
	payload := cursorPayload{
		Version: cursorVersion,
		Sort:    Fingerprint(spec),
		Values:  values,
		ID:      id.String(),
	}
	data, _ := json.Marshal(payload)
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeCursor parses a token and validates it against the sort specification
// it is being resumed under. A token from an incompatible version or sort
// spec is rejected rather than applied.
func DecodeCursor(token string, spec []OrderSpec) (*Position, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCursor, err)
	}

	var payload cursorPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCursor, err)
	}

	if payload.Version != cursorVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedCursor, payload.Version)
	}
	if payload.Sort != Fingerprint(spec) {
		return nil, ErrCursorSortMismatch
	}
	if len(payload.Values) != len(spec) {
		return nil, fmt.Errorf("%w: expected %d sort values, got %d", ErrMalformedCursor, len(spec), len(payload.Values))
	}

	id, err := uuid.Parse(payload.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid tiebreaker id", ErrMalformedCursor)
	}

	return &Position{Values: payload.Values, ID: id}, nil
}
