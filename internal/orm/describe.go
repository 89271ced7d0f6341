package orm

import (
	"slices"
	"strings"
)

// PlanNode is a printable view of a QuerySet and its prefetch tree.
type PlanNode struct {
	Model  string `json:"model" yaml:"model"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	ToAttr string `json:"to_attr,omitempty" yaml:"to_attr,omitempty"`
	Strict bool   `json:"strict" yaml:"strict"`

	Joins []string `json:"joins,omitempty" yaml:"joins,omitempty"`
	Only  []string `json:"only,omitempty" yaml:"only,omitempty"`
	Defer []string `json:"defer,omitempty" yaml:"defer,omitempty"`

	Prefetches []*PlanNode `json:"prefetches,omitempty" yaml:"prefetches,omitempty"`
}

// Describe returns the plan tree of qs. Strict on a prefetch node reports
// the sub-query's own flag; propagation from strict owners happens at fetch
// time.
func (qs *QuerySet) Describe() *PlanNode {
	n := &PlanNode{
		Model:  qs.model,
		Strict: qs.state.LocallyEnabled(),
		Joins:  sortedJoins(qs.joins),
		Only:   slices.Clone(qs.only),
		Defer:  slices.Clone(qs.deferred),
	}
	for _, pf := range qs.prefetches {
		var child *PlanNode
		if pf.Query != nil {
			child = pf.Query.Describe()
		} else {
			child = &PlanNode{Model: qs.db.targetOf(qs.model, pf.Path)}
		}
		child.Path = pf.Path
		child.ToAttr = pf.ToAttr
		n.Prefetches = append(n.Prefetches, child)
	}
	return n
}

// String renders the tree one node per line, children indented.
func (n *PlanNode) String() string {
	var sb strings.Builder
	n.write(&sb, 0)
	return sb.String()
}

func (n *PlanNode) write(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	if n.Path != "" {
		sb.WriteString(n.Path + " -> ")
	}
	sb.WriteString(n.Model)
	if n.Strict {
		sb.WriteString(" strict")
	}
	if n.ToAttr != "" {
		sb.WriteString(" to_attr=" + n.ToAttr)
	}
	if len(n.Joins) > 0 {
		sb.WriteString(" join=[" + strings.Join(n.Joins, " ") + "]")
	}
	if len(n.Only) > 0 {
		sb.WriteString(" only=[" + strings.Join(n.Only, " ") + "]")
	}
	if len(n.Defer) > 0 {
		sb.WriteString(" defer=[" + strings.Join(n.Defer, " ") + "]")
	}
	sb.WriteString("\n")
	for _, c := range n.Prefetches {
		c.write(sb, depth+1)
	}
}

func sortedJoins(joins []string) []string {
	out := slices.Clone(joins)
	slices.Sort(out)
	return out
}

// targetOf resolves the model a dotted path from model ends at. It returns
// "?" when the path does not resolve.
func (db *DB) targetOf(model, path string) string {
	for _, seg := range strings.Split(strings.ReplaceAll(path, "__", "."), ".") {
		f, err := db.reg.Resolve(model, seg)
		if err != nil || !f.IsRelation() {
			return "?"
		}
		model = f.Target
	}
	return model
}
