package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/strictfetch/internal/schema"
)

// TableInfo is one row of the table catalog.
type TableInfo struct {
	Name string

	// Model is the owning model name; for join tables, the owning model's table.
	Model string

	Kind string // "model" or "through"
}

// Migrate creates the tables of every model and many-to-many relation in
// reg and remembers reg for Create and AddLinks. Existing tables are left
// untouched, so Migrate is idempotent.
func (s *Store) Migrate(ctx context.Context, reg *schema.Registry) error {
	if err := reg.Finalize(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	tables := make(map[string]string)
	for _, m := range reg.Models() {
		tables[m.Name] = m.Table
	}

	for _, m := range reg.Models() {
		ddl, err := modelDDL(m, tables)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("migrate: create %s: %w", m.Table, err)
		}
		if err := recordTable(ctx, tx, m.Table, m.Name, "model"); err != nil {
			return err
		}
	}

	for _, tt := range reg.ThroughTables() {
		if _, err := tx.ExecContext(ctx, throughDDL(tt)); err != nil {
			return fmt.Errorf("migrate: create %s: %w", tt.Name, err)
		}
		if err := recordTable(ctx, tx, tt.Name, tt.LeftTable, "through"); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit: %w", err)
	}

	s.reg = reg
	return nil
}

func recordTable(ctx context.Context, tx *sql.Tx, name, model, kind string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO strictfetch_tables (name, model, kind)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, model, kind)
	if err != nil {
		return fmt.Errorf("migrate: record %s: %w", name, err)
	}
	return nil
}

// Tables lists the catalog in name order.
func (s *Store) Tables(ctx context.Context) ([]TableInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, model, kind FROM strictfetch_tables
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var out []TableInfo
	for rows.Next() {
		var ti TableInfo
		if err := rows.Scan(&ti.Name, &ti.Model, &ti.Kind); err != nil {
			return nil, fmt.Errorf("list tables: scan: %w", err)
		}
		out = append(out, ti)
	}
	return out, rows.Err()
}

// modelDDL renders CREATE TABLE for a model. tables maps model names to
// table names for foreign key references.
func modelDDL(m *schema.Model, tables map[string]string) (string, error) {
	refs := make(map[string]string) // fk column -> referenced table
	for _, f := range m.Relations() {
		if f.Link.Kind == schema.LinkForeignKey {
			refs[f.Link.LocalColumn] = tables[f.Target]
		}
	}

	var cols []string
	for _, f := range m.Scalars() {
		if f.Name == schema.PrimaryKey {
			cols = append(cols, quoteIdent(f.Column)+" INTEGER PRIMARY KEY")
			continue
		}
		sqlType, err := columnType(f.Type)
		if err != nil {
			return "", fmt.Errorf("model %s: field %s: %w", m.Name, f.Name, err)
		}
		col := quoteIdent(f.Column) + " " + sqlType
		if !f.Nullable {
			col += " NOT NULL"
		}
		if f.Unique {
			col += " UNIQUE"
		}
		if ref, ok := refs[f.Column]; ok {
			col += fmt.Sprintf(" REFERENCES %s(%s)", quoteIdent(ref), quoteIdent(schema.PrimaryKey))
		}
		cols = append(cols, col)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", quoteIdent(m.Table), strings.Join(cols, ",\n  ")), nil
}

// throughDDL renders CREATE TABLE for a many-to-many join table.
func throughDDL(tt schema.ThroughTable) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  %s INTEGER NOT NULL REFERENCES %s(%s),
  %s INTEGER NOT NULL REFERENCES %s(%s),
  PRIMARY KEY (%s, %s)
)`,
		quoteIdent(tt.Name),
		quoteIdent(tt.LeftColumn), quoteIdent(tt.LeftTable), quoteIdent(schema.PrimaryKey),
		quoteIdent(tt.RightColumn), quoteIdent(tt.RightTable), quoteIdent(schema.PrimaryKey),
		quoteIdent(tt.LeftColumn), quoteIdent(tt.RightColumn))
}

// columnType maps a column type to its SQLite storage type.
func columnType(t schema.ColumnType) (string, error) {
	switch t {
	case schema.TypeInt, schema.TypeBool:
		return "INTEGER", nil
	case schema.TypeString:
		return "TEXT", nil
	default:
		return "", fmt.Errorf("unknown column type %q", t)
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
