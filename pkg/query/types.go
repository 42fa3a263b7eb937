// Package query implements the tiny Cypher-subset pattern language of
// lexer, parser, a selectivity-driven planner with plan
// memoization, and an executor that walks pkg/store indexes.
//
// Supported shapes: MATCH (v), MATCH (v {k: "val"}), MATCH (a)-[r]->(b)
// with optional [r:LABEL] and property filters, a WHERE clause of
// comparisons joined by AND/OR, and RETURN projecting the matched
// bindings. CREATE/FIND/TRAVERSE/PATH/SHOW/VISUALIZE are accepted
// top-level verbs that delegate directly to the graph store, traversal
// kernel, or stats — anything else fails with InvalidQuerySyntax.
package query

import "github.com/emberql/emberql/pkg/graph"

// Binding is one matched row: variable name -> bound node or edge.
type Binding map[string]any

// Result is what Execute returns for any accepted query verb.
type Result struct {
	Columns []string
	Rows    []Binding
}

// nodePattern is a MATCH pattern endpoint: a variable name plus optional
// property-equality filters.
type nodePattern struct {
	Var   string
	Props map[string]any
}

// relPattern is the optional [r] or [r:LABEL] segment of a pair-expansion
// MATCH, plus its own optional property filters.
type relPattern struct {
	Var   string
	Label string
	Props map[string]any
}

// comparisonOp enumerates WHERE clause operators.
type comparisonOp string

const (
	opEq  comparisonOp = "="
	opNeq comparisonOp = "!="
	opGt  comparisonOp = ">"
	opLt  comparisonOp = "<"
	opGte comparisonOp = ">="
	opLte comparisonOp = "<="
)

// comparison is one WHERE predicate: <var>.<key> <op> <value>.
type comparison struct {
	Variable string
	Key      string
	Op       comparisonOp
	Value    any
}

// whereClause is a disjunction of conjunctions: each group is AND'd
// internally, groups are OR'd together. This matches the grammar's
// "conjunction of comparisons (=, >, <, >=, <=, !=, AND, OR)" without
// needing full operator-precedence parsing — AND binds tighter than OR
// is the one ambiguity left silent by the grammar, so we resolve it the
// conventional way: AND groups clauses, OR separates groups.
type whereClause struct {
	Groups [][]comparison
}

func (w *whereClause) matches(b Binding) bool {
	if w == nil || len(w.Groups) == 0 {
		return true
	}
	for _, group := range w.Groups {
		if allMatch(group, b) {
			return true
		}
	}
	return false
}

func allMatch(group []comparison, b Binding) bool {
	for _, c := range group {
		if !c.matches(b) {
			return false
		}
	}
	return true
}

func (c comparison) matches(b Binding) bool {
	bound, ok := b[c.Variable]
	if !ok {
		return false
	}
	var actual any
	switch v := bound.(type) {
	case *graph.Node:
		actual, ok = v.Properties[c.Key]
	case *graph.Edge:
		actual, ok = v.Properties[c.Key]
	}
	if !ok {
		return false
	}
	return compare(actual, c.Op, c.Value)
}

// matchQuery is the parsed form of a MATCH statement.
type matchQuery struct {
	Start   nodePattern
	Rel     *relPattern
	End     *nodePattern
	Where   *whereClause
	Returns []string
}
