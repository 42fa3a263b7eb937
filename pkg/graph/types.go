// Package graph defines EmberQL's core data model: nodes, edges, and the
// validation rules every mutation must satisfy before it reaches the
// store. Identities are process-local monotonic uint64s, never pointers —
// this lets adjacency lists reference nodes and edges by id without
// creating ownership cycles, and lets deletion reclaim memory by simply
// removing map entries (see pkg/store).
package graph

import (
	"fmt"
	"regexp"

	"github.com/emberql/emberql/pkg/errs"
)

// NodeID and EdgeID are distinct identity spaces; a node and an edge may
// share a numeric value without colliding.
type NodeID uint64
type EdgeID uint64

var (
	propertyKeyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	labelPattern        = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
)

const (
	maxPropertyKeyLen   = 255
	maxStringValueLen   = 10000
	maxPropertiesPerNode = 1000
	maxLabelLen         = 255
)

// Node is a graph vertex: an identity plus an unordered property map.
// Properties are validated at creation/update time (see ValidateProperties)
// and are never nil-valued.
type Node struct {
	ID         NodeID
	Properties map[string]any
}

// Edge is a directed graph relationship between two live nodes, carrying a
// single label and its own property map. Undirected traversal semantics
// are obtained by walking both Outgoing and Incoming adjacency at the
// store layer — Edge itself is always directed.
type Edge struct {
	ID         EdgeID
	From       NodeID
	To         NodeID
	Label      string
	Properties map[string]any
}

// ValidateProperties enforces the property rules: identifier-like
// keys (≤255 chars, not starting with "_"), values restricted to string
// (≤10000 chars), int, float, bool, atom, or a list of those, no nulls, and
// at most 1000 properties total.
func ValidateProperties(props map[string]any) error {
	if len(props) > maxPropertiesPerNode {
		return errs.New(errs.CodeInvalidProperties, "too many properties: %d > %d", len(props), maxPropertiesPerNode)
	}
	for k, v := range props {
		if err := validateKey(k); err != nil {
			return err
		}
		if v == nil {
			return errs.New(errs.CodeInvalidProperties, "property %q is nil", k)
		}
		if err := validateValue(k, v); err != nil {
			return err
		}
	}
	return nil
}

func validateKey(k string) error {
	if len(k) > maxPropertyKeyLen || !propertyKeyPattern.MatchString(k) {
		return errs.New(errs.CodeInvalidProperties, "invalid property key %q", k)
	}
	if k[0] == '_' {
		return errs.New(errs.CodeInvalidProperties, "property key %q must not start with _", k)
	}
	return nil
}

func validateValue(k string, v any) error {
	switch val := v.(type) {
	case string:
		if len(val) > maxStringValueLen {
			return errs.New(errs.CodeInvalidProperties, "property %q string value exceeds %d chars", k, maxStringValueLen)
		}
	case int, int32, int64, float32, float64, bool:
		// scalar types accepted as-is
	case []any:
		for i, item := range val {
			if item == nil {
				return errs.New(errs.CodeInvalidProperties, "property %q list item %d is nil", k, i)
			}
			if err := validateValue(k, item); err != nil {
				return err
			}
		}
	default:
		return errs.New(errs.CodeInvalidProperties, "property %q has unsupported type %T", k, v)
	}
	return nil
}

// ValidateLabel enforces the edge-label rule: non-empty,
// identifier-like with hyphens allowed, ≤255 chars.
func ValidateLabel(label string) error {
	if label == "" || len(label) > maxLabelLen || !labelPattern.MatchString(label) {
		return errs.New(errs.CodeInvalidLabel, "invalid label %q", label)
	}
	return nil
}

// CopyProperties returns a shallow copy of props, sufficient to prevent a
// caller from mutating a stored node/edge's map through an aliased
// reference (property values themselves are treated as immutable scalars
// or lists of scalars, never further mutated in place).
func CopyProperties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

func (id NodeID) String() string { return fmt.Sprintf("%d", uint64(id)) }
func (id EdgeID) String() string { return fmt.Sprintf("%d", uint64(id)) }
