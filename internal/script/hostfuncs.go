package script

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/risor-io/risor/object"

	"github.com/jward/cq/internal/textpos"
)

// makeNextNewlineFn creates "next_newline".
//
// next_newline(pos) → offset of the first newline at or after pos
func makeNextNewlineFn(src string) *object.Builtin {
	return object.NewBuiltin("next_newline", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("next_newline", 1, len(args))
		}
		pos, err := toInt(args[0])
		if err != nil {
			return object.Errorf("next_newline: pos %v", err)
		}
		return object.NewInt(int64(textpos.NextNewline(src, pos)))
	})
}

// makeMoveLinesFn creates "move_lines".
//
// move_lines(n, pos, trim) → pos moved by n whole lines
func makeMoveLinesFn(src string) *object.Builtin {
	return object.NewBuiltin("move_lines", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("move_lines", 3, len(args))
		}
		n, err := toInt(args[0])
		if err != nil {
			return object.Errorf("move_lines: n %v", err)
		}
		pos, err := toInt(args[1])
		if err != nil {
			return object.Errorf("move_lines: pos %v", err)
		}
		trim, ok := args[2].(*object.Bool)
		if !ok {
			return object.Errorf("move_lines: trim must be a bool, got %s", args[2].Type())
		}
		return object.NewInt(int64(textpos.MoveByLines(src, n, pos, trim.Value())))
	})
}

// makeLineOfFn creates "line_of".
//
// line_of(pos) → 1-based line number holding pos
func makeLineOfFn(src string) *object.Builtin {
	return object.NewBuiltin("line_of", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("line_of", 1, len(args))
		}
		pos, err := toInt(args[0])
		if err != nil {
			return object.Errorf("line_of: pos %v", err)
		}
		return object.NewInt(int64(textpos.LineOf(src, pos)))
	})
}

func toInt(obj object.Object) (int, error) {
	switch n := obj.(type) {
	case *object.Int:
		return int(n.Value()), nil
	case *object.Float:
		return int(n.Value()), nil
	default:
		return 0, fmt.Errorf("must be an integer, got %s", obj.Type())
	}
}

// logObject provides log.Info/Warn/Error methods for operator scripts.
type logObject struct {
	logger   *slog.Logger
	operator string
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg, "operator", l.operator)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg, "operator", l.operator)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg, "operator", l.operator)
}
