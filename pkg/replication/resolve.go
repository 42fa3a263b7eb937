package replication

import "sort"

// LastWriteWins picks the replica with the greatest LastUpdated, ties
// broken by lexicographically smallest member id.
func LastWriteWins(replicas []Replica) Replica {
	best := replicas[0]
	for _, r := range replicas[1:] {
		if r.LastUpdated.After(best.LastUpdated) {
			best = r
			continue
		}
		if r.LastUpdated.Equal(best.LastUpdated) && r.Member < best.Member {
			best = r
		}
	}
	return best
}

// VectorClockResolve picks the dominating replica if one exists. If none
// dominates and every conflicting payload is a plain map, the fallback
// merges them field-by-field (the same rule the update protocol applies
// to a single writer's own replica), with later-last_updated values
// winning per key, matching a balanced-policy
// conflict yielding "the union of keys, values drawn from the writer
// with the greater last_updated". Non-map payloads fall back to
// last-write-wins wholesale.
func VectorClockResolve(replicas []Replica) Replica {
	best := replicas[0]
	allDominated := true
	for _, r := range replicas[1:] {
		switch Compare(r.VectorClock, best.VectorClock) {
		case Dominates:
			best = r
		case Concurrent:
			allDominated = false
		}
	}
	if allDominated {
		return best
	}

	if allMapPayloads(replicas) {
		return mergeByRecency(replicas)
	}
	return LastWriteWins(replicas)
}

func allMapPayloads(replicas []Replica) bool {
	for _, r := range replicas {
		if _, ok := r.Payload.(map[string]any); !ok {
			return false
		}
	}
	return true
}

// mergeByRecency unions every replica's map keys, each key's value taken
// from whichever replica carrying that key has the greatest LastUpdated.
func mergeByRecency(replicas []Replica) Replica {
	ordered := append([]Replica{}, replicas...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].LastUpdated.Before(ordered[j].LastUpdated) })

	merged := map[string]any{}
	for _, r := range ordered {
		m := r.Payload.(map[string]any)
		for k, v := range m {
			merged[k] = v
		}
	}

	winner := ordered[len(ordered)-1]
	winner.Payload = merged
	return winner
}

// Consensus picks the payload with a strict majority of equal-payload
// votes; with no majority, falls back to last-write-wins.
func Consensus(replicas []Replica) Replica {
	type group struct {
		rep   Replica
		count int
	}
	var groups []group

outer:
	for _, r := range replicas {
		for i := range groups {
			if payloadsEqual(groups[i].rep.Payload, r.Payload) {
				groups[i].count++
				continue outer
			}
		}
		groups = append(groups, group{rep: r, count: 1})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].count > groups[j].count })
	if len(groups) > 0 && groups[0].count*2 > len(replicas) {
		return groups[0].rep
	}
	return LastWriteWins(replicas)
}

// SmartMerge detects payload shape: node-shaped payloads ({id,
// properties}) merge property maps last-writer-wins per key; edge-shaped
// payloads ({from,to,label,properties}) require from/to/label agreement
// and merge properties, otherwise fall back to last-write-wins.
func SmartMerge(replicas []Replica) Replica {
	sample := replicas[0].Payload
	switch {
	case isNodeShaped(sample):
		return mergeNodeShaped(replicas)
	case isEdgeShaped(sample):
		return mergeEdgeShaped(replicas)
	default:
		return LastWriteWins(replicas)
	}
}

func isNodeShaped(payload any) bool {
	m, ok := payload.(map[string]any)
	if !ok {
		return false
	}
	_, hasID := m["id"]
	_, hasProps := m["properties"]
	_, hasFrom := m["from"]
	return hasID && hasProps && !hasFrom
}

func isEdgeShaped(payload any) bool {
	m, ok := payload.(map[string]any)
	if !ok {
		return false
	}
	_, hasFrom := m["from"]
	_, hasTo := m["to"]
	_, hasLabel := m["label"]
	return hasFrom && hasTo && hasLabel
}

func mergeNodeShaped(replicas []Replica) Replica {
	ordered := append([]Replica{}, replicas...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].LastUpdated.Before(ordered[j].LastUpdated) })

	merged := map[string]any{}
	for k, v := range ordered[0].Payload.(map[string]any) {
		merged[k] = v
	}
	mergedProps := map[string]any{}
	for _, r := range ordered {
		m, ok := r.Payload.(map[string]any)
		if !ok {
			continue
		}
		merged["id"] = m["id"]
		if props, ok := m["properties"].(map[string]any); ok {
			for k, v := range props {
				mergedProps[k] = v
			}
		}
	}
	merged["properties"] = mergedProps

	winner := ordered[len(ordered)-1]
	winner.Payload = merged
	return winner
}

func mergeEdgeShaped(replicas []Replica) Replica {
	first, ok := replicas[0].Payload.(map[string]any)
	if !ok {
		return LastWriteWins(replicas)
	}
	for _, r := range replicas[1:] {
		m, ok := r.Payload.(map[string]any)
		if !ok || m["from"] != first["from"] || m["to"] != first["to"] || m["label"] != first["label"] {
			return LastWriteWins(replicas)
		}
	}

	ordered := append([]Replica{}, replicas...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].LastUpdated.Before(ordered[j].LastUpdated) })

	mergedProps := map[string]any{}
	for _, r := range ordered {
		m := r.Payload.(map[string]any)
		if props, ok := m["properties"].(map[string]any); ok {
			for k, v := range props {
				mergedProps[k] = v
			}
		}
	}

	winner := ordered[len(ordered)-1]
	merged := map[string]any{
		"from":       first["from"],
		"to":         first["to"],
		"label":      first["label"],
		"properties": mergedProps,
	}
	winner.Payload = merged
	return winner
}

// mergePayload implements the update-protocol merge rule: map payloads
// merge field-by-field (new values win), anything else replaces
// wholesale.
func mergePayload(existing, incoming any) any {
	existingMap, existingIsMap := existing.(map[string]any)
	incomingMap, incomingIsMap := incoming.(map[string]any)
	if !existingIsMap || !incomingIsMap {
		return incoming
	}
	merged := make(map[string]any, len(existingMap)+len(incomingMap))
	for k, v := range existingMap {
		merged[k] = v
	}
	for k, v := range incomingMap {
		merged[k] = v
	}
	return merged
}

func payloadsEqual(a, b any) bool {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if aok && bok {
		if len(am) != len(bm) {
			return false
		}
		for k, v := range am {
			if bm[k] != v {
				return false
			}
		}
		return true
	}
	return a == b
}
