package querysql

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/strictfetch/internal/ir"
	"github.com/roach88/strictfetch/internal/queryir"
	"github.com/roach88/strictfetch/internal/schema"
)

// OwnerColumn is the result alias of the owner key in collection fetches.
const OwnerColumn = "__owner"

// Column describes one result column of a compiled statement.
type Column struct {
	// Path is the join path the column belongs to ("" for the root model).
	Path string

	// Field is the scalar field name. Empty for the owner key column.
	Field string
}

// Statement is a compiled SELECT.
type Statement struct {
	SQL    string
	Params []any

	// Columns is the result layout in select-list order.
	Columns []Column

	// Loaded lists the root scalars the statement selects.
	Loaded []string

	// HasOwner marks that the last column is the owner key.
	HasOwner bool
}

// SQLCompiler compiles queryir.Select to parameterized SQL for SQLite.
//
// CRITICAL: ALL queries include ORDER BY for deterministic results.
// CRITICAL: All values are parameterized (never interpolated).
type SQLCompiler struct {
	reg *schema.Registry
}

// NewSQLCompiler creates a compiler resolving tables and columns via reg.
func NewSQLCompiler(reg *schema.Registry) *SQLCompiler {
	return &SQLCompiler{reg: reg}
}

// Compile converts a Select to parameterized SQL with its column layout.
//
// MANDATORY: Every query includes ORDER BY with the root primary key.
// MANDATORY: All values are parameterized (never interpolated).
func (c *SQLCompiler) Compile(sel queryir.Select) (*Statement, error) {
	if err := queryir.Validate(c.reg, sel); err != nil {
		return nil, err
	}

	root, err := c.reg.Model(sel.Model)
	if err != nil {
		return nil, err
	}

	b := &builder{aliases: map[string]string{"": "t0"}}

	// Root columns
	loaded := loadedScalars(root, sel)
	for _, name := range loaded {
		f, _ := root.Field(name)
		b.addColumn("t0", "", f)
	}

	// Inline joins, parents before children so aliases are stable
	var from strings.Builder
	fmt.Fprintf(&from, "%s AS t0", quoteIdent(root.Table))

	for _, path := range orderedJoins(sel.Joins) {
		parentPath, name := splitLast(path)
		parentAlias := b.aliases[parentPath]
		parentModel, err := c.modelAt(root, parentPath)
		if err != nil {
			return nil, err
		}
		f, err := c.reg.Resolve(parentModel.Name, name)
		if err != nil {
			return nil, err
		}
		target, err := c.reg.Model(f.Target)
		if err != nil {
			return nil, err
		}

		alias := fmt.Sprintf("t%d", len(b.aliases))
		b.aliases[path] = alias

		fmt.Fprintf(&from, " LEFT JOIN %s AS %s ON %s", quoteIdent(target.Table), alias, joinCondition(f, alias, parentAlias))

		for _, tf := range target.Scalars() {
			b.addColumn(alias, path, tf)
		}
	}

	// WHERE clause and collect parameters
	var where []string
	var params []any
	if sel.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate("t0", sel.Filter)
		if err != nil {
			return nil, fmt.Errorf("compile filter: %w", err)
		}
		where = append(where, filterSQL)
		params = append(params, filterParams...)
	}

	hasOwner := false
	if sel.Owner != nil {
		ownerExpr, throughJoin, ownerSQL, ownerParams, err := c.compileOwner(*sel.Owner)
		if err != nil {
			return nil, fmt.Errorf("compile owner: %w", err)
		}
		from.WriteString(throughJoin)
		where = append(where, ownerSQL)
		params = append(params, ownerParams...)
		b.selectList = append(b.selectList, fmt.Sprintf("%s AS %s", ownerExpr, quoteIdent(OwnerColumn)))
		b.columns = append(b.columns, Column{})
		hasOwner = true
	}

	var sql strings.Builder
	fmt.Fprintf(&sql, "SELECT %s FROM %s", strings.Join(b.selectList, ", "), from.String())
	if len(where) > 0 {
		sql.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	// MANDATORY: Always add ORDER BY
	sql.WriteString(" ORDER BY " + stableOrderKey(hasOwner))

	if sel.Limit > 0 {
		sql.WriteString(" LIMIT ?")
		params = append(params, int64(sel.Limit))
	}

	return &Statement{
		SQL:      sql.String(),
		Params:   params,
		Columns:  b.columns,
		Loaded:   loaded,
		HasOwner: hasOwner,
	}, nil
}

// Bind collects the parameters of sel in the order Compile emits them.
// Two selects with the same Shape have interchangeable SQL, so a cached
// statement only needs fresh parameters.
func Bind(sel queryir.Select) []any {
	var params []any
	if sel.Filter != nil {
		params = append(params, bindPredicate(sel.Filter)...)
	}
	if sel.Owner != nil {
		for _, k := range sel.Owner.Keys {
			params = append(params, ir.ToParam(k))
		}
	}
	if sel.Limit > 0 {
		params = append(params, int64(sel.Limit))
	}
	return params
}

func bindPredicate(p queryir.Predicate) []any {
	switch pred := p.(type) {
	case queryir.Equals:
		if ir.IsNull(pred.Value) {
			return nil
		}
		return []any{ir.ToParam(pred.Value)}
	case queryir.In:
		out := make([]any, 0, len(pred.Values))
		for _, v := range pred.Values {
			out = append(out, ir.ToParam(v))
		}
		return out
	case queryir.And:
		var out []any
		for _, sub := range pred.Predicates {
			out = append(out, bindPredicate(sub)...)
		}
		return out
	}
	return nil
}

// Shape returns a key identifying the SQL text Compile would produce for
// sel, independent of literal values.
func Shape(sel queryir.Select) string {
	var sb strings.Builder
	sb.WriteString(sel.Model)
	sb.WriteString("|j:")
	sb.WriteString(strings.Join(orderedJoins(sel.Joins), ","))
	sb.WriteString("|o:")
	sb.WriteString(strings.Join(sel.Only, ","))
	sb.WriteString("|d:")
	sb.WriteString(strings.Join(sel.Defer, ","))
	sb.WriteString("|f:")
	shapePredicate(&sb, sel.Filter)
	if sel.Owner != nil {
		fmt.Fprintf(&sb, "|w:%s.%s#%d", sel.Owner.OwnerModel, sel.Owner.Field, len(sel.Owner.Keys))
	}
	if sel.Limit > 0 {
		sb.WriteString("|l")
	}
	return sb.String()
}

func shapePredicate(sb *strings.Builder, p queryir.Predicate) {
	switch pred := p.(type) {
	case queryir.Equals:
		if ir.IsNull(pred.Value) {
			fmt.Fprintf(sb, "%s=null", pred.Field)
		} else {
			fmt.Fprintf(sb, "%s=?", pred.Field)
		}
	case queryir.In:
		fmt.Fprintf(sb, "%s in #%d", pred.Field, len(pred.Values))
	case queryir.And:
		sb.WriteString("(")
		for i, sub := range pred.Predicates {
			if i > 0 {
				sb.WriteString("&")
			}
			shapePredicate(sb, sub)
		}
		sb.WriteString(")")
	}
}

type builder struct {
	aliases    map[string]string
	selectList []string
	columns    []Column
}

func (b *builder) addColumn(alias, path string, f schema.Field) {
	b.selectList = append(b.selectList, alias+"."+quoteIdent(f.Column))
	b.columns = append(b.columns, Column{Path: path, Field: f.Name})
}

// loadedScalars returns the root scalars to select, in declaration order.
// The primary key is always loaded, as is every foreign key column an
// inline join needs.
func loadedScalars(m *schema.Model, sel queryir.Select) []string {
	want := make(map[string]bool)
	if len(sel.Only) > 0 {
		for _, f := range sel.Only {
			want[f] = true
		}
	} else {
		for _, f := range m.Scalars() {
			want[f.Name] = true
		}
	}
	for _, f := range sel.Defer {
		delete(want, f)
	}
	want[schema.PrimaryKey] = true

	for _, path := range sel.Joins {
		if strings.Contains(path, ".") {
			continue
		}
		if f, ok := m.Field(path); ok && f.Link.Kind == schema.LinkForeignKey {
			want[f.Link.LocalColumn] = true
		}
	}

	var out []string
	for _, f := range m.Scalars() {
		if want[f.Name] {
			out = append(out, f.Name)
		}
	}
	return out
}

func (c *SQLCompiler) modelAt(root *schema.Model, path string) (*schema.Model, error) {
	m := root
	if path == "" {
		return m, nil
	}
	for _, seg := range strings.Split(path, ".") {
		f, err := c.reg.Resolve(m.Name, seg)
		if err != nil {
			return nil, err
		}
		m, err = c.reg.Model(f.Target)
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// joinCondition renders the ON clause of a to-one join. For a forward
// foreign key the parent holds the key; for a reverse one-to-one the target
// does. Both reduce to target.remote = parent.local.
func joinCondition(f schema.Field, alias, parentAlias string) string {
	return fmt.Sprintf("%s.%s = %s.%s", alias, quoteIdent(f.Link.RemoteColumn), parentAlias, quoteIdent(f.Link.LocalColumn))
}

// compileOwner renders the link from the collected rows back to their owners.
// Returns (owner key expression, extra FROM clause, WHERE fragment, params).
func (c *SQLCompiler) compileOwner(o queryir.Owner) (string, string, string, []any, error) {
	f, err := c.reg.Resolve(o.OwnerModel, o.Field)
	if err != nil {
		return "", "", "", nil, err
	}

	var keyExpr, from string
	switch f.Link.Kind {
	case schema.LinkForeignKey:
		// Forward to-one: owners hold the target's primary key
		keyExpr = "t0." + quoteIdent(f.Link.RemoteColumn)
	case schema.LinkReverse:
		// Reverse FK / reverse one-to-one: targets hold the owner's key
		keyExpr = "t0." + quoteIdent(f.Link.RemoteColumn)
	case schema.LinkThrough:
		from = fmt.Sprintf(" INNER JOIN %s AS tt ON tt.%s = t0.%s",
			quoteIdent(f.Link.Through), quoteIdent(f.Link.ThroughRemote), quoteIdent(f.Link.RemoteColumn))
		keyExpr = "tt." + quoteIdent(f.Link.ThroughLocal)
	default:
		return "", "", "", nil, fmt.Errorf("unsupported link kind %d on %s.%s", f.Link.Kind, o.OwnerModel, o.Field)
	}

	whereSQL, params := inList(keyExpr, o.Keys)
	return keyExpr, from, whereSQL, params, nil
}

// stableOrderKey returns the ORDER BY clause for a query.
// MANDATORY: Every query MUST call this function.
// Uses COLLATE BINARY for deterministic text ordering.
func stableOrderKey(hasOwner bool) string {
	key := "t0." + quoteIdent(schema.PrimaryKey) + " ASC"
	if hasOwner {
		key += ", " + quoteIdent(OwnerColumn) + " ASC"
	}
	return key
}

// compilePredicate compiles a queryir.Predicate to SQL WHERE clause fragment.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(alias string, p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		col := alias + "." + quoteIdent(pred.Field)
		if ir.IsNull(pred.Value) {
			return col + " IS NULL", nil, nil
		}
		return col + " = ?", []any{ir.ToParam(pred.Value)}, nil

	case queryir.In:
		sql, params := inList(alias+"."+quoteIdent(pred.Field), pred.Values)
		return sql, params, nil

	case queryir.And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil // Always true (vacuous truth)
		}
		var parts []string
		var params []any
		for _, sub := range pred.Predicates {
			sql, subParams, err := c.compilePredicate(alias, sub)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			params = append(params, subParams...)
		}
		return "(" + strings.Join(parts, " AND ") + ")", params, nil

	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// inList renders "<expr> IN (?, ?, ...)". An empty list matches nothing.
func inList(expr string, values []ir.Value) (string, []any) {
	if len(values) == 0 {
		return "0 = 1", nil
	}
	params := make([]any, len(values))
	for i, v := range values {
		params[i] = ir.ToParam(v)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	return fmt.Sprintf("%s IN (%s)", expr, placeholders), params
}

// orderedJoins sorts join paths by depth, then lexicographically.
func orderedJoins(joins []string) []string {
	out := slices.Clone(joins)
	slices.SortFunc(out, func(a, b string) int {
		da, db := strings.Count(a, "."), strings.Count(b, ".")
		if da != db {
			return da - db
		}
		return strings.Compare(a, b)
	})
	return slices.Compact(out)
}

func splitLast(path string) (string, string) {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

// quoteIdent quotes an SQL identifier. Table names such as "user" collide
// with keywords.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
