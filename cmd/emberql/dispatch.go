package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emberql/emberql/pkg/analytics"
	"github.com/emberql/emberql/pkg/cluster"
	"github.com/emberql/emberql/pkg/errs"
	"github.com/emberql/emberql/pkg/lifecycle"
	"github.com/emberql/emberql/pkg/orchestrator"
	"github.com/emberql/emberql/pkg/placement"
	"github.com/emberql/emberql/pkg/query"
	"github.com/emberql/emberql/pkg/replication"
)

// dispatch routes one CLI statement to the graph query engine or to one
// of the four admin verb families: CLUSTER,
// LIFECYCLE, REPLICA, ANALYTICS. Anything else falls through to the
// query engine, which already accepts CREATE/MATCH/FIND/TRAVERSE/PATH.
func dispatch(a *app, statement string) (string, error) {
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return "", errs.New(errs.CodeInvalidQuerySyntax, "empty statement")
	}

	switch strings.ToUpper(fields[0]) {
	case "CLUSTER":
		return dispatchCluster(a, fields[1:])
	case "LIFECYCLE":
		return dispatchLifecycle(a, fields[1:])
	case "REPLICA":
		return dispatchReplica(a, fields[1:])
	case "ANALYTICS":
		return dispatchAnalytics(a, fields[1:])
	default:
		result, err := a.query.Execute(a.store, statement)
		if err != nil {
			return "", err
		}
		return formatResult(result.Columns, result.Rows), nil
	}
}

func dispatchCluster(a *app, args []string) (string, error) {
	if len(args) == 0 {
		return "", errs.New(errs.CodeInvalidQuerySyntax, "CLUSTER requires a subcommand")
	}
	switch strings.ToUpper(args[0]) {
	case "STATUS":
		info := a.cluster.Info()
		var b strings.Builder
		fmt.Fprintf(&b, "local=%s partitions=%d members=%d\n", info.Local, info.Partitions, len(info.Members))
		for _, m := range info.Members {
			fmt.Fprintf(&b, "  %s %s\n", m.ID, m.Address)
		}
		return strings.TrimRight(b.String(), "\n"), nil

	case "HEALTH":
		return string(a.health.Classify()), nil

	case "JOIN":
		if len(args) < 2 {
			return "", errs.New(errs.CodeInvalidQuerySyntax, "CLUSTER JOIN requires a member id")
		}
		a.cluster.Join(cluster.Member{ID: args[1]})
		return fmt.Sprintf("joined %s", args[1]), nil

	case "SHUTDOWN":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		report := a.orch.Shutdown(ctx, orchestrator.ModePlanned)
		if report.Err != nil {
			return "", report.Err
		}
		return fmt.Sprintf("shutdown complete, %d phases", len(report.Phases)), nil

	case "STARTUP":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		report := a.orch.Startup(ctx, orchestrator.ModeStandard)
		if report.Err != nil {
			return "", report.Err
		}
		return fmt.Sprintf("startup complete, %d phases", len(report.Phases)), nil

	default:
		return "", errs.New(errs.CodeInvalidQuerySyntax, "unknown CLUSTER subcommand %q", args[0])
	}
}

func dispatchLifecycle(a *app, args []string) (string, error) {
	if len(args) == 0 {
		return "", errs.New(errs.CodeInvalidQuerySyntax, "LIFECYCLE requires a subcommand")
	}
	switch strings.ToUpper(args[0]) {
	case "CLASSIFY":
		if len(args) < 3 {
			return "", errs.New(errs.CodeInvalidQuerySyntax, "LIFECYCLE CLASSIFY requires <key> <tag>")
		}
		placement, err := a.lifecycle.Classify(args[1], lifecycle.Tag(args[2]), nil)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("primary=%s replicas=%s", placement.Primary, strings.Join(placement.Replicas, ",")), nil

	case "STATS":
		keys := a.lifecycle.Keys()
		counts := map[lifecycle.Tag]int{}
		for _, k := range keys {
			if rec, ok := a.lifecycle.Get(k); ok {
				counts[rec.Tag]++
			}
		}
		var b strings.Builder
		fmt.Fprintf(&b, "total=%d\n", len(keys))
		for tag, n := range counts {
			fmt.Fprintf(&b, "  %s=%d\n", tag, n)
		}
		return strings.TrimRight(b.String(), "\n"), nil

	case "POLICIES":
		policies := lifecycle.DefaultPolicies()
		tags := make([]string, 0, len(policies))
		for t := range policies {
			tags = append(tags, string(t))
		}
		sort.Strings(tags)
		var b strings.Builder
		for _, t := range tags {
			p := policies[lifecycle.Tag(t)]
			fmt.Fprintf(&b, "%s: ttl=%s replicas=%d tier=%s\n", t, p.TTL, p.Replicas, p.Tier)
		}
		return strings.TrimRight(b.String(), "\n"), nil

	case "MIGRATE":
		if len(args) < 3 {
			return "", errs.New(errs.CodeInvalidQuerySyntax, "LIFECYCLE MIGRATE requires <key> <tier>")
		}
		from, to, err := tierStores(a, args[2])
		if err != nil {
			return "", err
		}
		if err := placement.Migrate(from, to, args[1]); err != nil {
			return "", err
		}
		return fmt.Sprintf("migrated %s to %s", args[1], args[2]), nil

	case "OPTIMIZE":
		n := a.lifecycle.CleanupExpired()
		return fmt.Sprintf("expired %d records", n), nil

	default:
		return "", errs.New(errs.CodeInvalidQuerySyntax, "unknown LIFECYCLE subcommand %q", args[0])
	}
}

// tierStores resolves the (from, to) store pair for a LIFECYCLE MIGRATE
// target tier name. Migration always moves from whichever of hot/warm is
// not the target into the target; cold is the far end of every move.
func tierStores(a *app, target string) (from, to placement.Store, err error) {
	switch strings.ToLower(target) {
	case "hot":
		return a.warm, a.hot, nil
	case "warm":
		return a.hot, a.warm, nil
	case "cold":
		return a.warm, a.cold, nil
	default:
		return nil, nil, errs.New(errs.CodeInvalidQuerySyntax, "unknown tier %q", target)
	}
}

func dispatchReplica(a *app, args []string) (string, error) {
	if len(args) == 0 {
		return "", errs.New(errs.CodeInvalidQuerySyntax, "REPLICA requires a subcommand")
	}
	switch strings.ToUpper(args[0]) {
	case "CREATE":
		if len(args) < 3 {
			return "", errs.New(errs.CodeInvalidQuerySyntax, "REPLICA CREATE requires <key> <policy>")
		}
		members := a.cluster.Members()
		rs, err := a.replication.CreateSet(args[1], replication.Policy(args[2]), members)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("replica set %s: primary=%s members=%d", rs.Key, rs.PrimaryMember, len(rs.Replicas)), nil

	case "STATUS":
		if len(args) < 2 {
			return "", errs.New(errs.CodeInvalidQuerySyntax, "REPLICA STATUS requires <key>")
		}
		rs, ok := a.replication.Get(args[1])
		if !ok {
			return "", errs.New(errs.CodeNodeNotFound, "no replica set for %q", args[1])
		}
		inconsistent, versions := rs.ConsistencyCheck()
		return fmt.Sprintf("strategy=%s primary=%s replicas=%d inconsistent=%t distinct_versions=%d",
			rs.Strategy, rs.PrimaryMember, len(rs.Replicas), inconsistent, versions), nil

	case "PROPAGATE":
		if len(args) < 3 {
			return "", errs.New(errs.CodeInvalidQuerySyntax, "REPLICA PROPAGATE requires <key> <target-member>")
		}
		rs, ok := a.replication.Get(args[1])
		if !ok {
			return "", errs.New(errs.CodeNodeNotFound, "no replica set for %q", args[1])
		}
		local, ok := rs.Replicas[a.cluster.Local()]
		if !ok {
			return "", errs.New(errs.CodeNodeNotFound, "local node holds no replica for %q", args[1])
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := a.sendRPC(ctx, args[2], "replication.apply", replicaUpdate{Key: args[1], Replica: *local}); err != nil {
			return "", err
		}
		return fmt.Sprintf("propagated %s to %s", args[1], args[2]), nil

	default:
		return "", errs.New(errs.CodeInvalidQuerySyntax, "unknown REPLICA subcommand %q", args[0])
	}
}

func dispatchAnalytics(a *app, args []string) (string, error) {
	if len(args) == 0 {
		return "", errs.New(errs.CodeInvalidQuerySyntax, "ANALYTICS requires a subcommand")
	}
	s := a.store
	switch strings.ToUpper(args[0]) {
	case "PAGERANK":
		return formatFloatMap(analytics.PageRank(s, analytics.DefaultPageRankOptions())), nil
	case "EIGENVECTOR":
		return formatFloatMap(analytics.EigenvectorCentrality(s, 100, 1e-6)), nil
	case "BETWEENNESS":
		return formatFloatMap(analytics.Betweenness(s)), nil
	case "CLOSENESS":
		return formatFloatMap(analytics.Closeness(s)), nil
	case "COMPONENTS":
		comps := analytics.ConnectedComponents(s)
		var b strings.Builder
		for i, c := range comps {
			fmt.Fprintf(&b, "component %d: %v\n", i, c)
		}
		return strings.TrimRight(b.String(), "\n"), nil
	case "LOUVAIN":
		return formatUintMap(analytics.Louvain(s)), nil
	case "KCORE":
		return formatIntMap(analytics.KCore(s)), nil
	case "TRIANGLES":
		perNode, total := analytics.TriangleCount(s)
		return fmt.Sprintf("total=%d\n%s", total, formatIntMap(perNode)), nil
	case "CLUSTERING":
		global, local := analytics.ClusteringCoefficients(s)
		return fmt.Sprintf("global=%.4f\n%s", global, formatFloatMap(local)), nil
	case "DENSITY":
		return fmt.Sprintf("%.6f", analytics.Density(s)), nil
	case "DIAMETER":
		return strconv.Itoa(analytics.Diameter(s)), nil
	case "DEGREES":
		stats := analytics.DegreeDistribution(s)
		return fmt.Sprintf("%+v", stats), nil
	case "SUMMARY":
		stats := s.Stats()
		return fmt.Sprintf("nodes=%d edges=%d labels=%d density=%.6f diameter=%d",
			stats.TotalNodes, stats.TotalEdges, stats.Labels, analytics.Density(s), analytics.Diameter(s)), nil
	default:
		return "", errs.New(errs.CodeInvalidQuerySyntax, "unknown ANALYTICS subcommand %q", args[0])
	}
}

func formatResult(columns []string, rows []query.Binding) string {
	var b strings.Builder
	fmt.Fprintln(&b, strings.Join(columns, " | "))
	for _, row := range rows {
		parts := make([]string, len(columns))
		for i, c := range columns {
			parts[i] = fmt.Sprintf("%v", row[c])
		}
		fmt.Fprintln(&b, strings.Join(parts, " | "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatFloatMap(m map[uint64]float64) string {
	ids := sortedUintKeys(m)
	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "%d: %.6f\n", id, m[id])
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatIntMap(m map[uint64]int) string {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "%d: %d\n", id, m[id])
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatUintMap(m map[uint64]uint64) string {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "%d: %d\n", id, m[id])
	}
	return strings.TrimRight(b.String(), "\n")
}

func sortedUintKeys(m map[uint64]float64) []uint64 {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
