package cq

import (
	"errors"

	"github.com/jward/cq/internal/engine"
	"github.com/jward/cq/internal/query"
	"github.com/jward/cq/internal/resolve"
)

// Public type aliases for the internal types that appear in the cq API.
// They are identical to the internal types, so no conversion is needed.

type Query = query.Query
type Match = resolve.Match
type Result = resolve.Result
type Engine = engine.Engine
type ParserOptions = engine.ParserOptions
type Operator = resolve.Operator
type OperatorFunc = resolve.OperatorFunc
type NoMatchError = resolve.NoMatchError
type ParseError = query.ParseError

var (
	ErrInvalidLine     = resolve.ErrInvalidLine
	ErrUnknownOperator = resolve.ErrUnknownOperator
	ErrInvalidArgument = resolve.ErrInvalidArgument
	ErrEmptyQuery      = resolve.ErrEmptyQuery

	// ErrUnknownEngine is returned when an engine name is not registered.
	ErrUnknownEngine = errors.New("unknown engine")
)

// IsNoMatch reports whether err is or wraps a *NoMatchError.
func IsNoMatch(err error) bool {
	return resolve.IsNoMatch(err)
}
