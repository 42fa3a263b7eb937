package query

import (
	"strconv"
	"strings"

	"github.com/emberql/emberql/pkg/errs"
	"github.com/emberql/emberql/pkg/graph"
	"github.com/emberql/emberql/pkg/store"
	"github.com/emberql/emberql/pkg/traversal"
)

// Engine executes query strings against a Store, memoizing MATCH plans.
type Engine struct {
	cache *planCache
}

// NewEngine constructs a query engine with a bounded plan cache.
func NewEngine() *Engine {
	return &Engine{cache: newPlanCache(defaultCacheSize)}
}

// Execute parses and runs a single query-language statement against s.
// It dispatches on the leading keyword (case-insensitive); anything else
// returns errs.ErrInvalidQuerySyntax.
func (e *Engine) Execute(s *store.Store, q string) (Result, error) {
	trimmed := strings.TrimSpace(q)
	if trimmed == "" {
		return Result{}, errs.ErrInvalidQuerySyntax
	}
	fields := strings.Fields(trimmed)
	verb := strings.ToUpper(fields[0])

	switch verb {
	case "MATCH":
		return e.executeMatch(s, trimmed)
	case "CREATE":
		return executeCreate(s, fields[1:])
	case "FIND":
		return executeFind(s, fields[1:])
	case "TRAVERSE":
		return executeTraverse(s, fields[1:])
	case "PATH":
		return executePath(s, fields[1:])
	case "SHOW":
		return executeShow(s, fields[1:])
	case "VISUALIZE":
		return executeVisualize(s)
	default:
		return Result{}, errs.ErrInvalidQuerySyntax
	}
}

// executeMatch plans (with memoization) and runs a MATCH statement.
func (e *Engine) executeMatch(s *store.Store, q string) (Result, error) {
	fp := fingerprint(q)

	p, hit := e.cache.get(fp)
	if !hit {
		toks := lex(strings.TrimSpace(q[len("MATCH"):]))
		mq, err := parseMatch(toks)
		if err != nil {
			return Result{}, err
		}
		p = choosePlan(mq)
		e.cache.put(fp, p)
	}

	return runMatch(s, p)
}

func runMatch(s *store.Store, p plan) (Result, error) {
	q := p.query

	var candidates []*graph.Node
	switch p.kind {
	case planPropertyIndex:
		for _, id := range s.FindNodesByProperty(p.propKey, p.propVal) {
			if n, err := s.GetNode(id); err == nil {
				candidates = append(candidates, n)
			}
		}
	default:
		candidates = s.ListNodes()
	}

	var rows []Binding
	if q.Rel == nil {
		for _, n := range candidates {
			if !nodeMatchesProps(n, q.Start.Props) {
				continue
			}
			b := Binding{q.Start.Var: n}
			if q.Where.matches(b) {
				rows = append(rows, b)
			}
		}
		return project(q, rows), nil
	}

	// Pair expansion: a-[r]->b. If the planner chose the label index, the
	// label filter already selects a small edge set; otherwise walk every
	// candidate node's outgoing edges.
	if p.kind == planLabelIndex {
		for _, eid := range s.FindEdgesByLabel(q.Rel.Label) {
			edge, err := s.GetEdge(eid)
			if err != nil {
				continue
			}
			from, err := s.GetNode(edge.From)
			if err != nil {
				continue
			}
			to, err := s.GetNode(edge.To)
			if err != nil {
				continue
			}
			if row, ok := matchPair(q, from, edge, to); ok {
				rows = append(rows, row)
			}
		}
		return project(q, rows), nil
	}

	for _, from := range candidates {
		if !nodeMatchesProps(from, q.Start.Props) {
			continue
		}
		for _, eid := range s.GetEdgesFrom(from.ID) {
			edge, err := s.GetEdge(eid)
			if err != nil {
				continue
			}
			if q.Rel.Label != "" && edge.Label != q.Rel.Label {
				continue
			}
			to, err := s.GetNode(edge.To)
			if err != nil {
				continue
			}
			if row, ok := matchPair(q, from, edge, to); ok {
				rows = append(rows, row)
			}
		}
	}
	return project(q, rows), nil
}

func matchPair(q *matchQuery, from *graph.Node, edge *graph.Edge, to *graph.Node) (Binding, bool) {
	if q.Rel.Label != "" && edge.Label != q.Rel.Label {
		return nil, false
	}
	if !nodeMatchesProps(from, q.Start.Props) {
		return nil, false
	}
	if q.End != nil && !nodeMatchesProps(to, q.End.Props) {
		return nil, false
	}
	if !edgeMatchesProps(edge, q.Rel.Props) {
		return nil, false
	}

	b := Binding{q.Start.Var: from}
	if q.Rel.Var != "" {
		b[q.Rel.Var] = edge
	}
	if q.End != nil {
		b[q.End.Var] = to
	}
	if !q.Where.matches(b) {
		return nil, false
	}
	return b, true
}

func nodeMatchesProps(n *graph.Node, want map[string]any) bool {
	for k, v := range want {
		if actual, ok := n.Properties[k]; !ok || !compare(actual, opEq, v) {
			return false
		}
	}
	return true
}

func edgeMatchesProps(e *graph.Edge, want map[string]any) bool {
	for k, v := range want {
		if actual, ok := e.Properties[k]; !ok || !compare(actual, opEq, v) {
			return false
		}
	}
	return true
}

func project(q *matchQuery, rows []Binding) Result {
	cols := q.Returns
	if len(cols) == 0 {
		cols = []string{q.Start.Var}
		if q.Rel != nil && q.Rel.Var != "" {
			cols = append(cols, q.Rel.Var)
		}
		if q.End != nil {
			cols = append(cols, q.End.Var)
		}
	}
	return Result{Columns: cols, Rows: rows}
}

// executeCreate implements the CLI-surface `CREATE NODE {props}` and
// `CREATE EDGE (from)-[label {props}]->(to)` shapes when
// issued through the query engine rather than the CLI directly.
func executeCreate(s *store.Store, args []string) (Result, error) {
	if len(args) == 0 {
		return Result{}, errs.ErrInvalidQuerySyntax
	}
	switch strings.ToUpper(args[0]) {
	case "NODE":
		rest := strings.Join(args[1:], " ")
		toks := lex(rest)
		p := &parser{toks: toks}
		var props map[string]any
		if p.peek().text == "{" {
			parsed, err := p.parseProps()
			if err != nil {
				return Result{}, err
			}
			props = parsed
		}
		id, err := s.CreateNode(props)
		if err != nil {
			return Result{}, err
		}
		n, _ := s.GetNode(id)
		return Result{Columns: []string{"node"}, Rows: []Binding{{"node": n}}}, nil

	case "EDGE":
		rest := strings.Join(args[1:], " ")
		toks := lex(rest)
		p := &parser{toks: toks}
		from, err := p.parseNodePattern()
		if err != nil {
			return Result{}, err
		}
		if err := p.expect("-"); err != nil {
			return Result{}, err
		}
		if err := p.expect("["); err != nil {
			return Result{}, err
		}
		lbl := p.next()
		if lbl.kind != tokIdent {
			return Result{}, errs.New(errs.CodeInvalidQuerySyntax, "expected edge label, got %q", lbl.text)
		}
		var props map[string]any
		if p.peek().text == "{" {
			props, err = p.parseProps()
			if err != nil {
				return Result{}, err
			}
		}
		if err := p.expect("]"); err != nil {
			return Result{}, err
		}
		if err := p.expect("->"); err != nil {
			return Result{}, err
		}
		to, err := p.parseNodePattern()
		if err != nil {
			return Result{}, err
		}

		fromID, err := idFromVar(from.Var)
		if err != nil {
			return Result{}, err
		}
		toID, err := idFromVar(to.Var)
		if err != nil {
			return Result{}, err
		}

		eid, err := s.CreateEdge(graph.NodeID(fromID), graph.NodeID(toID), lbl.text, props)
		if err != nil {
			return Result{}, err
		}
		e, _ := s.GetEdge(eid)
		return Result{Columns: []string{"edge"}, Rows: []Binding{{"edge": e}}}, nil

	default:
		return Result{}, errs.ErrInvalidQuerySyntax
	}
}

func idFromVar(v string) (uint64, error) {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, errs.New(errs.CodeInvalidID, "expected numeric node id, got %q", v)
	}
	return n, nil
}

// executeFind implements `FIND NODES <k> <v>` / `FIND EDGES <label>`.
func executeFind(s *store.Store, args []string) (Result, error) {
	if len(args) < 2 {
		return Result{}, errs.ErrInvalidQuerySyntax
	}
	switch strings.ToUpper(args[0]) {
	case "NODES":
		if len(args) < 3 {
			return Result{}, errs.ErrInvalidQuerySyntax
		}
		k, v := args[1], strings.Join(args[2:], " ")
		var rows []Binding
		for _, id := range s.FindNodesByProperty(k, v) {
			if n, err := s.GetNode(id); err == nil {
				rows = append(rows, Binding{"node": n})
			}
		}
		return Result{Columns: []string{"node"}, Rows: rows}, nil

	case "EDGES":
		label := strings.Join(args[1:], " ")
		var rows []Binding
		for _, id := range s.FindEdgesByLabel(label) {
			if e, err := s.GetEdge(id); err == nil {
				rows = append(rows, Binding{"edge": e})
			}
		}
		return Result{Columns: []string{"edge"}, Rows: rows}, nil

	default:
		return Result{}, errs.ErrInvalidQuerySyntax
	}
}

// executeTraverse implements `TRAVERSE <id> [depth]`.
func executeTraverse(s *store.Store, args []string) (Result, error) {
	if len(args) < 1 {
		return Result{}, errs.ErrInvalidQuerySyntax
	}
	id, err := idFromVar(args[0])
	if err != nil {
		return Result{}, err
	}
	depth := traversal.MaxDepth
	if len(args) > 1 {
		d, err := strconv.Atoi(args[1])
		if err != nil {
			return Result{}, errs.New(errs.CodeInvalidQuerySyntax, "invalid depth %q", args[1])
		}
		depth = d
	}
	reached, err := traversal.Traverse(s, graph.NodeID(id), traversal.Out, depth)
	if err != nil {
		return Result{}, err
	}
	var rows []Binding
	for nid := range reached {
		if n, err := s.GetNode(nid); err == nil {
			rows = append(rows, Binding{"node": n})
		}
	}
	return Result{Columns: []string{"node"}, Rows: rows}, nil
}

// executePath implements `PATH <from> <to>`.
func executePath(s *store.Store, args []string) (Result, error) {
	if len(args) < 2 {
		return Result{}, errs.ErrInvalidQuerySyntax
	}
	from, err := idFromVar(args[0])
	if err != nil {
		return Result{}, err
	}
	to, err := idFromVar(args[1])
	if err != nil {
		return Result{}, err
	}
	path, err := traversal.FindPath(s, graph.NodeID(from), graph.NodeID(to), traversal.MaxDepth)
	if err != nil {
		return Result{}, err
	}
	var rows []Binding
	for _, nid := range path {
		if n, err := s.GetNode(nid); err == nil {
			rows = append(rows, Binding{"node": n})
		}
	}
	return Result{Columns: []string{"node"}, Rows: rows}, nil
}

// executeShow implements `SHOW STATS`, returning the store's size summary.
func executeShow(s *store.Store, args []string) (Result, error) {
	stats := s.Stats()
	return Result{
		Columns: []string{"total_nodes", "total_edges", "labels"},
		Rows: []Binding{{
			"total_nodes": stats.TotalNodes,
			"total_edges": stats.TotalEdges,
			"labels":      stats.Labels,
		}},
	}, nil
}

// executeVisualize dumps every node and edge so a caller can render a
// diagram; the rendering itself is intentionally minimal.
func executeVisualize(s *store.Store) (Result, error) {
	var rows []Binding
	for _, n := range s.ListNodes() {
		rows = append(rows, Binding{"node": n})
	}
	for _, e := range s.ListEdges() {
		rows = append(rows, Binding{"edge": e})
	}
	return Result{Columns: []string{"node", "edge"}, Rows: rows}, nil
}
