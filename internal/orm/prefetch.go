package orm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/strictfetch/internal/ir"
	"github.com/roach88/strictfetch/internal/lookup"
	"github.com/roach88/strictfetch/internal/queryir"
	"github.com/roach88/strictfetch/internal/schema"
)

// prefetch runs each prefetch over owners, in attachment order. The caller
// holds the root state's prefetch mark.
func (db *DB) prefetch(ctx context.Context, model string, owners []*Record, prefetches []*Prefetch) error {
	for _, pf := range prefetches {
		if err := db.prefetchOne(ctx, model, owners, pf); err != nil {
			return err
		}
	}
	return nil
}

// prefetchOne walks pf.Path from owners. Intermediate segments are read from
// the owners' caches, fetching any level nobody cached yet; the final
// segment is fetched with pf.Query.
func (db *DB) prefetchOne(ctx context.Context, model string, owners []*Record, pf *Prefetch) error {
	p, err := lookup.ParsePath(pf.Path)
	if err != nil {
		return err
	}

	level := owners
	for i, seg := range p.Segments() {
		f, err := db.reg.Resolve(model, seg)
		if err != nil {
			return fmt.Errorf("prefetch %q: %w", pf.Path, err)
		}
		if !f.IsRelation() {
			return fmt.Errorf("prefetch %q: %s.%s is not a relation", pf.Path, model, seg)
		}

		if i == p.Len()-1 {
			return db.fetchInto(ctx, level, f, pf.Query, pf.ToAttr)
		}

		var missing []*Record
		for _, r := range level {
			if !r.IsCached(seg) {
				missing = append(missing, r)
			}
		}
		if len(missing) > 0 {
			if err := db.fetchInto(ctx, missing, f, nil, ""); err != nil {
				return err
			}
		}

		level = descend(level, f)
		model = f.Target
		if len(level) == 0 {
			return nil
		}
	}
	return nil
}

// descend collects the cached related records of f across level.
func descend(level []*Record, f schema.Field) []*Record {
	var next []*Record
	for _, r := range level {
		if f.Kind == schema.ToOne {
			if related := r.toOne[f.Name]; related != nil {
				next = append(next, related)
			}
			continue
		}
		next = append(next, r.toMany[f.Name]...)
	}
	return next
}

// fetchInto issues one statement for relation f of every owner and
// distributes the rows by owner key. sub is the prefetch's custom QuerySet
// (nil for the target's default).
//
// The sub-query is strict when the owners are strict or when sub itself is
// strict; its state derives from the first owner so that its records share
// the owners' root.
func (db *DB) fetchInto(ctx context.Context, owners []*Record, f schema.Field, sub *QuerySet, toAttr string) error {
	if len(owners) == 0 {
		return nil
	}

	var keys []ir.Value
	seen := make(map[ir.Value]bool)
	for _, r := range owners {
		if f.Link.Kind == schema.LinkForeignKey {
			if _, ok := r.values[f.Link.LocalColumn]; !ok {
				return fmt.Errorf("prefetch %s.%s: column %s is deferred", f.Model, f.Name, f.Link.LocalColumn)
			}
		}
		k := r.ownerKey(f)
		if ir.IsNull(k) || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}

	if sub == nil {
		sub = db.Objects(f.Target)
	}
	if sub.err != nil {
		return fmt.Errorf("prefetch %s.%s: %w", f.Model, f.Name, sub.err)
	}
	if sub.model != f.Target {
		return fmt.Errorf("prefetch %s.%s: query returns %s, not %s", f.Model, f.Name, sub.model, f.Target)
	}

	q := sub.clone()
	parent := owners[0].state
	*q.state = parent.Derive(f.Model, f.Name).WithEnabled(parent.LocallyEnabled() || sub.state.LocallyEnabled())
	q.owner = &queryir.Owner{OwnerModel: f.Model, Field: f.Name, Keys: keys}
	q.check = nil

	var related []*Record
	if len(keys) > 0 {
		var err error
		related, err = q.Fetch(ctx)
		if err != nil {
			return fmt.Errorf("prefetch %s.%s: %w", f.Model, f.Name, err)
		}
	}

	groups := make(map[ir.Value][]*Record)
	for _, rec := range related {
		groups[rec.link] = append(groups[rec.link], rec)
	}

	for _, r := range owners {
		var group []*Record
		if k := r.ownerKey(f); !ir.IsNull(k) {
			group = groups[k]
		}
		switch {
		case toAttr != "":
			r.attrs[toAttr] = group
		case f.Kind == schema.ToOne:
			var one *Record
			if len(group) > 0 {
				one = group[0]
			}
			r.toOne[f.Name] = one
		default:
			if group == nil {
				group = []*Record{}
			}
			r.toMany[f.Name] = group
		}
	}

	slog.Debug("prefetched",
		"relation", f.Model+"."+f.Name,
		"owners", len(owners),
		"records", len(related),
		"strict", q.state.Enabled())

	return nil
}

// copyPrefetches deep-copies a prefetch tree attached to model. Default
// prefetches get an explicit QuerySet for their target. owned collects the
// copies by full dotted path; to_attr prefetches are left out since their
// records never fill the relation cache.
func (db *DB) copyPrefetches(model, prefix string, prefetches []*Prefetch, owned map[string]*Prefetch) []*Prefetch {
	out := make([]*Prefetch, len(prefetches))
	for i, pf := range prefetches {
		c := *pf
		out[i] = &c

		p, err := lookup.ParsePath(pf.Path)
		if err != nil {
			continue
		}
		full := p.String()
		if prefix != "" {
			full = prefix + "." + full
		}

		if c.Query == nil {
			target := db.targetOf(model, p.String())
			if target == "?" {
				continue
			}
			c.Query = db.Objects(target)
		} else {
			sub := c.Query.clone()
			sub.prefetches = db.copyPrefetches(sub.model, full, sub.prefetches, owned)
			c.Query = sub
		}
		if c.ToAttr == "" {
			owned[full] = &c
		}
	}
	return out
}
