package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberql/emberql/pkg/errs"
	"github.com/emberql/emberql/pkg/graph"
	"github.com/emberql/emberql/pkg/query"
	"github.com/emberql/emberql/pkg/store"
)

func buildSocialNetwork(t *testing.T) (*store.Store, map[string]graph.NodeID) {
	t.Helper()
	s := store.New()
	ids := map[string]graph.NodeID{}

	a, _ := s.CreateNode(map[string]any{"name": "Alice", "role": "Engineer", "age": int64(30)})
	b, _ := s.CreateNode(map[string]any{"name": "Bob", "role": "Manager", "age": int64(45)})
	c, _ := s.CreateNode(map[string]any{"name": "Carol", "role": "Engineer", "age": int64(28)})
	d, _ := s.CreateNode(map[string]any{"name": "David", "role": "Director"})
	ids["A"], ids["B"], ids["C"], ids["D"] = a, b, c, d

	_, err := s.CreateEdge(a, b, "reports_to", nil)
	require.NoError(t, err)
	_, err = s.CreateEdge(c, b, "reports_to", nil)
	require.NoError(t, err)
	_, err = s.CreateEdge(b, d, "reports_to", nil)
	require.NoError(t, err)
	_, err = s.CreateEdge(a, c, "collaborates", nil)
	require.NoError(t, err)

	return s, ids
}

func TestMatchAllNodes(t *testing.T) {
	s, _ := buildSocialNetwork(t)
	e := query.NewEngine()

	res, err := e.Execute(s, "MATCH (v) RETURN v")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 4)
	assert.Equal(t, []string{"v"}, res.Columns)
}

func TestMatchPropertyFilter(t *testing.T) {
	s, _ := buildSocialNetwork(t)
	e := query.NewEngine()

	res, err := e.Execute(s, `MATCH (v {role: "Engineer"}) RETURN v`)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
	for _, row := range res.Rows {
		n := row["v"].(*graph.Node)
		assert.Equal(t, "Engineer", n.Properties["role"])
	}
}

func TestMatchPairExpansionWithLabel(t *testing.T) {
	s, _ := buildSocialNetwork(t)
	e := query.NewEngine()

	res, err := e.Execute(s, "MATCH (a)-[r:reports_to]->(b) RETURN a, r, b")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 3)
	for _, row := range res.Rows {
		edge := row["r"].(*graph.Edge)
		assert.Equal(t, "reports_to", edge.Label)
	}
}

func TestMatchWhereAndOr(t *testing.T) {
	s, _ := buildSocialNetwork(t)
	e := query.NewEngine()

	res, err := e.Execute(s, `MATCH (v) WHERE v.role = "Engineer" AND v.age > 29 RETURN v`)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Alice", res.Rows[0]["v"].(*graph.Node).Properties["name"])

	res, err = e.Execute(s, `MATCH (v) WHERE v.role = "Director" OR v.role = "Manager" RETURN v`)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
}

func TestMatchPlanIsMemoized(t *testing.T) {
	s, _ := buildSocialNetwork(t)
	e := query.NewEngine()

	q1 := `MATCH (v {role: "Engineer"})   RETURN v`
	q2 := `MATCH   (v {role: "Engineer"}) RETURN v`

	res1, err := e.Execute(s, q1)
	require.NoError(t, err)
	res2, err := e.Execute(s, q2)
	require.NoError(t, err)
	assert.Equal(t, len(res1.Rows), len(res2.Rows))
}

func TestFindNodesVerb(t *testing.T) {
	s, _ := buildSocialNetwork(t)
	e := query.NewEngine()

	res, err := e.Execute(s, "FIND NODES role Engineer")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
}

func TestTraverseVerb(t *testing.T) {
	s, ids := buildSocialNetwork(t)
	e := query.NewEngine()

	res, err := e.Execute(s, "TRAVERSE 1 2")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Rows)
	_ = ids
}

func TestPathVerb(t *testing.T) {
	s, _ := buildSocialNetwork(t)
	e := query.NewEngine()

	res, err := e.Execute(s, "PATH 1 4")
	require.NoError(t, err)
	assert.Equal(t, 3, len(res.Rows))
}

func TestCreateNodeAndEdgeVerbs(t *testing.T) {
	s := store.New()
	e := query.NewEngine()

	res, err := e.Execute(s, `CREATE NODE {name: "Eve"}`)
	require.NoError(t, err)
	n := res.Rows[0]["node"].(*graph.Node)
	assert.Equal(t, "Eve", n.Properties["name"])

	res2, err := e.Execute(s, `CREATE NODE {name: "Frank"}`)
	require.NoError(t, err)
	n2 := res2.Rows[0]["node"].(*graph.Node)

	fromID := uint64(n.ID)
	toID := uint64(n2.ID)
	createEdgeQuery := queryFmt(fromID, toID)
	res3, err := e.Execute(s, createEdgeQuery)
	require.NoError(t, err)
	edge := res3.Rows[0]["edge"].(*graph.Edge)
	assert.Equal(t, "knows", edge.Label)
}

func queryFmt(from, to uint64) string {
	return "CREATE EDGE (" + itoa(from) + ")-[knows]->(" + itoa(to) + ")"
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestShowStats(t *testing.T) {
	s, _ := buildSocialNetwork(t)
	e := query.NewEngine()

	res, err := e.Execute(s, "SHOW STATS")
	require.NoError(t, err)
	assert.Equal(t, 4, res.Rows[0]["total_nodes"])
}

func TestVisualizeDumpsGraph(t *testing.T) {
	s, _ := buildSocialNetwork(t)
	e := query.NewEngine()

	res, err := e.Execute(s, "VISUALIZE")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 8) // 4 nodes + 4 edges
}

func TestInvalidVerbRejected(t *testing.T) {
	s := store.New()
	e := query.NewEngine()

	_, err := e.Execute(s, "DROP EVERYTHING")
	assert.True(t, errs.Is(err, errs.CodeInvalidQuerySyntax))

	_, err = e.Execute(s, "")
	assert.True(t, errs.Is(err, errs.CodeInvalidQuerySyntax))
}
