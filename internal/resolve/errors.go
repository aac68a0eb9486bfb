package resolve

import (
	"errors"
	"fmt"

	"github.com/jward/cq/internal/query"
)

var (
	// ErrInvalidLine is returned for line 0, a line past the end of the
	// source, or a symbolic line other than EOF.
	ErrInvalidLine = errors.New("invalid line reference")

	// ErrUnknownOperator is returned for a call whose callee is neither a
	// built-in nor a registered operator.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrInvalidArgument is returned for malformed calls: a missing inner
	// query, missing or non-numeric parameters, or a bare number.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmptyQuery is returned when an empty list of queries is resolved.
	ErrEmptyQuery = errors.New("empty query")
)

// NoMatchError reports that no candidate node satisfied an identifier or
// string query. It is the only error the resolver recovers from, and only
// while backtracking over candidates for nested children.
type NoMatchError struct {
	Query *query.Query
	// Index is the candidate index that was requested.
	Index int
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no node found for query %s (match %d)", e.Query, e.Index)
}

// IsNoMatch reports whether err is or wraps a *NoMatchError.
func IsNoMatch(err error) bool {
	var nm *NoMatchError
	return errors.As(err, &nm)
}
