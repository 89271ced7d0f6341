package harness

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/strictfetch/internal/ir"
	"github.com/roach88/strictfetch/internal/orm"
	"github.com/roach88/strictfetch/internal/schema"
)

type opKind int

const (
	opIndex opKind = iota
	opField
	opCall
)

// accessOp is one element of a parsed access expression.
type accessOp struct {
	kind  opKind
	name  string
	arg   string
	index int
}

func (op accessOp) String() string {
	switch op.kind {
	case opIndex:
		return fmt.Sprintf("[%d]", op.index)
	case opCall:
		return fmt.Sprintf("%s(%s)", op.name, op.arg)
	default:
		return op.name
	}
}

// parseAccess splits an expression like "[0].pizzas[1].toppings.all()" into
// operations.
func parseAccess(expr string) ([]accessOp, error) {
	var ops []accessOp
	s := expr
	for len(s) > 0 {
		switch s[0] {
		case '[':
			end := strings.IndexByte(s, ']')
			if end < 0 {
				return nil, fmt.Errorf("access %q: unclosed [", expr)
			}
			n, err := strconv.Atoi(s[1:end])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("access %q: bad index %q", expr, s[1:end])
			}
			ops = append(ops, accessOp{kind: opIndex, index: n})
			s = s[end+1:]

		case '.':
			if len(s) == 1 || s[1] == '.' || s[1] == '[' {
				return nil, fmt.Errorf("access %q: empty name", expr)
			}
			s = s[1:]

		default:
			end := strings.IndexAny(s, ".[(")
			if end < 0 {
				end = len(s)
			}
			name := s[:end]
			if name == "" {
				return nil, fmt.Errorf("access %q: unexpected %q", expr, s[:1])
			}
			s = s[end:]
			if !strings.HasPrefix(s, "(") {
				ops = append(ops, accessOp{kind: opField, name: name})
				continue
			}
			closing := strings.IndexByte(s, ')')
			if closing < 0 {
				return nil, fmt.Errorf("access %q: unclosed (", expr)
			}
			ops = append(ops, accessOp{kind: opCall, name: name, arg: strings.TrimSpace(s[1:closing])})
			s = s[closing+1:]
		}
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("access is empty")
	}
	for _, op := range ops {
		if op.kind != opCall {
			continue
		}
		if _, ok := calls[op.name]; !ok {
			return nil, fmt.Errorf("access %q: unknown call %s()", expr, op.name)
		}
	}
	return ops, nil
}

// evaluator applies access operations to orm values: *orm.QuerySet,
// []*orm.Record, *orm.Record, ir.Value, bool and int.
type evaluator struct {
	db *orm.DB
}

type callFunc func(ctx context.Context, e *evaluator, cur any, arg string) (any, error)

var calls = map[string]callFunc{
	"all": func(_ context.Context, _ *evaluator, cur any, _ string) (any, error) {
		qs, err := asQuerySet(cur, "all")
		if err != nil {
			return nil, err
		}
		return qs.All(), nil
	},
	"filter": func(_ context.Context, _ *evaluator, cur any, arg string) (any, error) {
		qs, err := asQuerySet(cur, "filter")
		if err != nil {
			return nil, err
		}
		field, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("filter(%s): want field=value", arg)
		}
		return qs.Filter(strings.TrimSpace(field), parseLiteral(strings.TrimSpace(raw))), nil
	},
	"prefetch": func(_ context.Context, _ *evaluator, cur any, arg string) (any, error) {
		qs, err := asQuerySet(cur, "prefetch")
		if err != nil {
			return nil, err
		}
		var paths []string
		for _, p := range strings.Split(arg, ",") {
			paths = append(paths, strings.TrimSpace(p))
		}
		return qs.PrefetchRelated(orm.Prefetches(paths...)...), nil
	},
	"first": func(ctx context.Context, _ *evaluator, cur any, _ string) (any, error) {
		qs, err := asQuerySet(cur, "first")
		if err != nil {
			return nil, err
		}
		return qs.First(ctx)
	},
	"exists": func(ctx context.Context, _ *evaluator, cur any, _ string) (any, error) {
		qs, err := asQuerySet(cur, "exists")
		if err != nil {
			return nil, err
		}
		return qs.Exists(ctx)
	},
	"count": func(ctx context.Context, _ *evaluator, cur any, _ string) (any, error) {
		qs, err := asQuerySet(cur, "count")
		if err != nil {
			return nil, err
		}
		return qs.Count(ctx)
	},
	"attr": func(_ context.Context, _ *evaluator, cur any, arg string) (any, error) {
		rec, err := asRecord(cur, "attr")
		if err != nil {
			return nil, err
		}
		records, ok := rec.Attr(arg)
		if !ok {
			return nil, fmt.Errorf("%s has no attribute %q", describe(rec), arg)
		}
		return records, nil
	},
}

// evaluate walks ops from root. A QuerySet left at the end is fetched.
func (e *evaluator) evaluate(ctx context.Context, root *orm.QuerySet, ops []accessOp) (any, error) {
	var cur any = root
	for _, op := range ops {
		next, err := e.apply(ctx, cur, op)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	if qs, ok := cur.(*orm.QuerySet); ok {
		return qs.Fetch(ctx)
	}
	return cur, nil
}

func (e *evaluator) apply(ctx context.Context, cur any, op accessOp) (any, error) {
	switch op.kind {
	case opIndex:
		records, err := asRecords(ctx, cur)
		if err != nil {
			return nil, err
		}
		if op.index >= len(records) {
			return nil, fmt.Errorf("index %d out of range (%d records)", op.index, len(records))
		}
		return records[op.index], nil

	case opField:
		rec, err := asRecord(cur, op.name)
		if err != nil {
			return nil, err
		}
		f, err := e.db.Registry().Resolve(rec.Model(), op.name)
		if err != nil {
			return nil, err
		}
		switch f.Kind {
		case schema.ToOne:
			return rec.One(ctx, op.name)
		case schema.ToMany:
			return rec.Many(op.name), nil
		default:
			return rec.Value(ctx, op.name)
		}

	default:
		return calls[op.name](ctx, e, cur, op.arg)
	}
}

func asQuerySet(cur any, op string) (*orm.QuerySet, error) {
	qs, ok := cur.(*orm.QuerySet)
	if !ok {
		return nil, fmt.Errorf("%s() needs a collection, got %s", op, describe(cur))
	}
	return qs, nil
}

func asRecord(cur any, op string) (*orm.Record, error) {
	rec, ok := cur.(*orm.Record)
	if !ok || rec == nil {
		return nil, fmt.Errorf("cannot read %s from %s", op, describe(cur))
	}
	return rec, nil
}

func asRecords(ctx context.Context, cur any) ([]*orm.Record, error) {
	switch v := cur.(type) {
	case *orm.QuerySet:
		return v.Fetch(ctx)
	case []*orm.Record:
		return v, nil
	default:
		return nil, fmt.Errorf("cannot index %s", describe(cur))
	}
}

// parseLiteral reads a filter value: null, true, false, an integer, or a
// string (optionally quoted).
func parseLiteral(raw string) ir.Value {
	switch raw {
	case "null":
		return ir.Null{}
	case "true":
		return ir.Bool(true)
	case "false":
		return ir.Bool(false)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ir.Int(n)
	}
	if s, err := strconv.Unquote(raw); err == nil {
		return ir.String(s)
	}
	return ir.String(raw)
}

// render formats a step result. Strings are unquoted, records are Model#id
// and collections are bracketed.
func render(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case *orm.Record:
		if val == nil {
			return "null"
		}
		return fmt.Sprintf("%s#%d", val.Model(), val.ID())
	case []*orm.Record:
		parts := make([]string, len(val))
		for i, r := range val {
			parts[i] = render(r)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case ir.String:
		return string(val)
	case ir.Value:
		return ir.Format(val)
	default:
		return fmt.Sprint(val)
	}
}

func describe(v any) string {
	switch val := v.(type) {
	case *orm.QuerySet:
		return val.Model() + " collection"
	case []*orm.Record:
		return fmt.Sprintf("%d records", len(val))
	default:
		return render(v)
	}
}
