package query

import "strings"

// planKind names the selectivity-driven starting point the planner picks
// for a MATCH: property index if the leftmost variable has a property
// filter, label index if the relationship has a label filter, else a
// full node scan.
type planKind int

const (
	planScan planKind = iota
	planPropertyIndex
	planLabelIndex
)

// plan is the memoized, fully-parsed form of a MATCH query.
type plan struct {
	query *matchQuery
	kind  planKind
	// propKey/propVal are set when kind == planPropertyIndex, taken from
	// the single (first) property filter on the start pattern.
	propKey string
	propVal any
}

// choosePlan implements the §4.3 planning rule: drive from the most
// selective index-backed starting point available.
func choosePlan(q *matchQuery) plan {
	p := plan{query: q, kind: planScan}

	if len(q.Start.Props) > 0 {
		for k, v := range q.Start.Props {
			p.kind = planPropertyIndex
			p.propKey = k
			p.propVal = v
			break
		}
		return p
	}

	if q.Rel != nil && q.Rel.Label != "" {
		p.kind = planLabelIndex
		return p
	}

	return p
}

// fingerprint normalizes whitespace so queries differing only in spacing
// share a cached plan ("memoized by query fingerprint
// (string after whitespace normalization)").
func fingerprint(q string) string {
	fields := strings.Fields(q)
	return strings.Join(fields, " ")
}
