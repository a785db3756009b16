// Package utils holds small helpers for query parsing and paging shared by
// the handlers and services. Pages are 1-based.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s as a base-10 int, surrounding spaces allowed, and
// returns def when s is blank or malformed.
func AtoiDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

// Clamp bounds n to [lo, hi].
func Clamp(n, lo, hi int) int {
	return max(lo, min(n, hi))
}

// TotalPages is the number of pageSize pages needed for total items.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total-1)/int64(pageSize)) + 1
}

// Offset is the row offset of a page; pages below 1 start at row 0.
func Offset(page, pageSize int) int {
	if page <= 1 || pageSize <= 0 {
		return 0
	}
	return (page - 1) * pageSize
}
