package repo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/orderstack/order-agent/internal/models"
)

const (
	defaultRunsPageSize = 20
	maxRunsPageSize     = 100
)

// pageWindow resolves page size and offset from a list request.
func pageWindow(req models.ListRunsRequest) (limit, offset int) {
	limit = req.PageSize
	if limit <= 0 || limit > maxRunsPageSize {
		limit = defaultRunsPageSize
	}
	if req.PageToken != "" {
		if v, err := strconv.Atoi(req.PageToken); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

func nextPageToken(offset, limit, returned int) string {
	if returned < limit {
		return ""
	}
	return strconv.Itoa(offset + returned)
}

// buildRunsQuery renders the history listing statement and its positional arguments.
func buildRunsQuery(table string, req models.ListRunsRequest, limit, offset int) (string, []any) {
	var (
		where []string
		args  []any
	)
	if !req.Since.IsZero() {
		args = append(args, req.Since.UTC())
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if req.OnlyFails {
		where = append(where, "success = false")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT run_id, query, success, error, total_parsed, total_matched, response, created_at FROM %s", table)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	args = append(args, limit, offset)
	fmt.Fprintf(&b, " ORDER BY created_at DESC, run_id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return b.String(), args
}
