package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/strictfetch/internal/ir"
	"github.com/roach88/strictfetch/internal/schema"
)

// Create inserts one record of model and returns its primary key.
//
// Keys of fields are scalar field names, or the name of a forward to-one
// relation as shorthand for its foreign key column ("location" for
// "location_id"). An explicit "id" is honoured; otherwise SQLite assigns the
// next id.
func (s *Store) Create(ctx context.Context, model string, fields map[string]ir.Value) (int64, error) {
	if s.reg == nil {
		return 0, fmt.Errorf("create %s: store has not been migrated", model)
	}
	m, err := s.reg.Model(model)
	if err != nil {
		return 0, fmt.Errorf("create: %w", err)
	}

	values := make(map[string]any, len(fields))
	for name, v := range fields {
		f, ok := m.Field(name)
		if !ok {
			return 0, fmt.Errorf("create %s: %w", model, &schema.UnknownFieldError{Model: model, Field: name})
		}
		switch {
		case f.Kind == schema.Scalar:
			values[f.Column] = ir.ToParam(v)
		case f.Kind == schema.ToOne && f.Link.Kind == schema.LinkForeignKey:
			values[f.Link.LocalColumn] = ir.ToParam(v)
		default:
			return 0, fmt.Errorf("create %s: %s is a %s relation, use AddLinks", model, name, f.Kind)
		}
	}

	// Sort columns for deterministic SQL
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	var sql string
	args := make([]any, 0, len(cols))
	if len(cols) == 0 {
		sql = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quoteIdent(m.Table))
	} else {
		quoted := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = quoteIdent(c)
			args = append(args, values[c])
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
		sql = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(m.Table), strings.Join(quoted, ", "), placeholders)
	}

	result, err := s.db.ExecContext(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("create %s: insert: %w", model, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create %s: last insert id: %w", model, err)
	}
	return id, nil
}

// AddLinks relates ownerID to each target through a many-to-many relation.
// relation may be the forward field or its reverse accessor. Existing links
// are kept (ON CONFLICT DO NOTHING), so AddLinks is idempotent.
func (s *Store) AddLinks(ctx context.Context, model, relation string, ownerID int64, targetIDs ...int64) error {
	if s.reg == nil {
		return fmt.Errorf("add links %s.%s: store has not been migrated", model, relation)
	}
	f, err := s.reg.Resolve(model, relation)
	if err != nil {
		return fmt.Errorf("add links: %w", err)
	}
	if f.Link.Kind != schema.LinkThrough {
		return fmt.Errorf("add links: %s.%s is not a many_to_many relation", model, relation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("add links: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	sql := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?) ON CONFLICT DO NOTHING",
		quoteIdent(f.Link.Through), quoteIdent(f.Link.ThroughLocal), quoteIdent(f.Link.ThroughRemote))

	for _, target := range targetIDs {
		if _, err := tx.ExecContext(ctx, sql, ownerID, target); err != nil {
			return fmt.Errorf("add links %s.%s: insert %d -> %d: %w", model, relation, ownerID, target, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("add links: commit: %w", err)
	}
	return nil
}
