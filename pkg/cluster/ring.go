// Package cluster implements the partition ring and membership manager
// consistent hashing over a fixed-size ring, peer
// join/departure reconciliation, and the info()/owner() queries.
package cluster

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
)

// RingSize is the default partition count P.
const RingSize = 256

// VirtualPointsPerMember is the number of ring points each member
// contributes (P_per_node).
const VirtualPointsPerMember = 64

// ringPoint is one (hash, member) entry on the sorted ring.
type ringPoint struct {
	hash   uint64
	member string
}

// Ring is the consistent-hash ring used for key ownership. It is
// rebuilt wholesale on every membership change rather than updated
// incrementally — the ring is reconstructed on arrival and
// departure, and at this scale a full rebuild is cheap and simple.
type Ring struct {
	points []ringPoint
}

// hashPoint reproduces the common pattern of hashing a composite key with
// a cryptographic hash truncated to 64 bits for ring placement — good
// enough distribution without pulling in a dedicated consistent-hash
// library the example pack does not otherwise exercise.
func hashPoint(parts ...string) uint64 {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

// BuildRing constructs a ring from the given member ids, each contributing
// VirtualPointsPerMember points hashed from (member_id, i).
func BuildRing(members []string) *Ring {
	r := &Ring{}
	for _, m := range members {
		for i := 0; i < VirtualPointsPerMember; i++ {
			r.points = append(r.points, ringPoint{
				hash:   hashPoint(m, fmt.Sprintf("%d", i)),
				member: m,
			})
		}
	}
	sort.Slice(r.points, func(i, j int) bool { return r.points[i].hash < r.points[j].hash })
	return r
}

// Owner returns the member owning key: the first ring entry whose hash is
// >= hash(key), wrapping at the end of the ring.
func (r *Ring) Owner(key string) (string, bool) {
	if len(r.points) == 0 {
		return "", false
	}
	target := hashPoint(key)
	idx := sort.Search(len(r.points), func(i int) bool { return r.points[i].hash >= target })
	if idx == len(r.points) {
		idx = 0
	}
	return r.points[idx].member, true
}

// OwnerAt is Owner but for the i-th hash variant of key, used by the
// lifecycle manager to place replicas by hashing (key, i).
func (r *Ring) OwnerAt(key string, i int) (string, bool) {
	if len(r.points) == 0 {
		return "", false
	}
	target := hashPoint(key, fmt.Sprintf("%d", i))
	idx := sort.Search(len(r.points), func(j int) bool { return r.points[j].hash >= target })
	if idx == len(r.points) {
		idx = 0
	}
	return r.points[idx].member, true
}

// Size returns the number of ring points (not distinct members).
func (r *Ring) Size() int { return len(r.points) }
