package database

import (
	"fmt"
	"strings"

	"github.com/victoralfred/authz_sys/internal/pagination"
)

// columnSpec maps a sort field name onto its SQL expression and the cast
// applied to cursor values bound against it. Text columns that may be NULL
// use a COALESCE expression so NULLs sort as the empty string and compare
// deterministically against cursor values.
type columnSpec struct {
	expr string
	cast string
}

// keysetPredicate builds the resume predicate for a composite sort: the row
// set strictly after the cursor position in (f1, f2, ..., id) order. The
// expanded OR form supports mixed sort directions; the id tiebreaker is
// always ascending. It is a pure comparison, so a cursor pointing at a
// deleted row still resumes correctly.
//
// Returns the SQL fragment and the bound args, numbering placeholders from
// argOffset+1.
func keysetPredicate(spec []pagination.OrderSpec, columns map[string]columnSpec, after *pagination.Position, idExpr string, argOffset int) (string, []interface{}) {
	var terms []string
	var args []interface{}

	arg := func(value interface{}, cast string) string {
		args = append(args, value)
		return fmt.Sprintf("$%d%s", argOffset+len(args), cast)
	}

	for i := 0; i <= len(spec); i++ {
		var conds []string
		for j := 0; j < i; j++ {
			col := columns[spec[j].Field]
			conds = append(conds, fmt.Sprintf("%s = %s", col.expr, arg(after.Values[j], col.cast)))
		}
		if i < len(spec) {
			col := columns[spec[i].Field]
			op := ">"
			if spec[i].Desc {
				op = "<"
			}
			conds = append(conds, fmt.Sprintf("%s %s %s", col.expr, op, arg(after.Values[i], col.cast)))
		} else {
			conds = append(conds, fmt.Sprintf("%s > %s", idExpr, arg(after.ID, "")))
		}
		terms = append(terms, "("+strings.Join(conds, " AND ")+")")
	}

	return "(" + strings.Join(terms, " OR ") + ")", args
}

// orderByClause renders the composite sort with the id tiebreaker appended.
func orderByClause(spec []pagination.OrderSpec, columns map[string]columnSpec, idExpr string) string {
	var parts []string
	for _, o := range spec {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts = append(parts, columns[o.Field].expr+" "+dir)
	}
	parts = append(parts, idExpr+" ASC")
	return "ORDER BY " + strings.Join(parts, ", ")
}
