package internal

import (
	"strings"
)

// reportSortColumns whitelists the keys accepted by the sort query parameter.
var reportSortColumns = map[string]string{
	"id":         "id",
	"no_rep":     "no_rep",
	"no_seri":    "no_seri",
	"kd_cus":     "kd_cus",
	"call_at":    "call_at",
	"status":     "status",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// buildOrderBy builds a safe ORDER BY clause using a whitelist of allowed keys.
// Input sort is comma-separated; prefix with '-' for DESC.
// Unknown keys are ignored. Defaults to " ORDER BY id DESC".
func buildOrderBy(sortParam string, allowed map[string]string) string {
	const fallback = " ORDER BY id DESC"

	parts := strings.Split(sortParam, ",")
	clauses := make([]string, 0, len(parts))
	for _, raw := range parts {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		desc := false
		if strings.HasPrefix(s, "-") {
			desc = true
			s = strings.TrimPrefix(s, "-")
		}
		col, ok := allowed[s]
		if !ok {
			continue
		}
		if desc {
			clauses = append(clauses, col+" DESC")
		} else {
			clauses = append(clauses, col+" ASC")
		}
	}
	if len(clauses) == 0 {
		return fallback
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}
