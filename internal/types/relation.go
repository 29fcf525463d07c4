package types

import (
	"fmt"
	"time"
)

// RelationKind categorizes the relationship between two work items
type RelationKind string

// Relation kind constants. The first group is what gets stored; the second
// group names the same edges read from the other end.
const (
	RelRelates    RelationKind = "relates"
	RelDuplicates RelationKind = "duplicates"
	RelBlocks     RelationKind = "blocks"
	RelPrecedes   RelationKind = "precedes"

	RelDuplicated RelationKind = "duplicated"
	RelBlocked    RelationKind = "blocked"
	RelFollows    RelationKind = "follows"
)

var inverseKinds = map[RelationKind]RelationKind{
	RelRelates:    RelRelates,
	RelDuplicates: RelDuplicated,
	RelDuplicated: RelDuplicates,
	RelBlocks:     RelBlocked,
	RelBlocked:    RelBlocks,
	RelPrecedes:   RelFollows,
	RelFollows:    RelPrecedes,
}

// AllRelationKinds lists every accepted kind in display order.
func AllRelationKinds() []RelationKind {
	return []RelationKind{
		RelRelates, RelDuplicates, RelDuplicated,
		RelBlocks, RelBlocked, RelPrecedes, RelFollows,
	}
}

// IsValid checks if the relation kind value is valid
func (k RelationKind) IsValid() bool {
	_, ok := inverseKinds[k]
	return ok
}

// Inverse returns the name of the same edge read from the other endpoint.
func (k RelationKind) Inverse() RelationKind {
	if inv, ok := inverseKinds[k]; ok {
		return inv
	}
	return k
}

// IsSymmetric reports whether the kind reads the same from both ends.
func (k RelationKind) IsSymmetric() bool {
	return k == RelRelates
}

// IsCanonical reports whether relations of this kind are stored as given.
func (k RelationKind) IsCanonical() bool {
	switch k {
	case RelRelates, RelDuplicates, RelBlocks, RelPrecedes:
		return true
	}
	return false
}

// Canonical maps a (kind, reverse) traversal onto the stored kind and the
// direction to read it in. Asking for items an item "follows" is the same as
// reading stored precedes edges backwards.
func (k RelationKind) Canonical(reverse bool) (RelationKind, bool) {
	if k.IsCanonical() {
		return k, reverse
	}
	return k.Inverse(), !reverse
}

// Relation is a typed, directed edge between two work items
type Relation struct {
	ID        int64        `json:"id"`
	FromID    int64        `json:"from_id"`
	ToID      int64        `json:"to_id"`
	Kind      RelationKind `json:"kind"`
	Delay     *int         `json:"delay,omitempty"` // Days, precedes only
	CreatedAt time.Time    `json:"created_at"`
	CreatedBy string       `json:"created_by,omitempty"`
}

// Normalize rewrites an inverse kind into its stored form by swapping the
// endpoints, so "B follows A" is kept as "A precedes B".
func (r *Relation) Normalize() {
	if r.Kind.IsCanonical() || !r.Kind.IsValid() {
		return
	}
	r.FromID, r.ToID = r.ToID, r.FromID
	r.Kind = r.Kind.Inverse()
}

// Validate checks if the relation has valid field values
func (r *Relation) Validate() error {
	if !r.Kind.IsValid() {
		return fmt.Errorf("invalid relation kind: %s", r.Kind)
	}
	if r.FromID == 0 || r.ToID == 0 {
		return fmt.Errorf("relation requires both endpoints")
	}
	if r.FromID == r.ToID {
		return fmt.Errorf("item %d cannot relate to itself", r.FromID)
	}
	if r.Delay != nil {
		if *r.Delay < 0 {
			return fmt.Errorf("delay cannot be negative (got %d)", *r.Delay)
		}
		if r.Kind != RelPrecedes && r.Kind != RelFollows {
			return fmt.Errorf("delay is only supported for precedes relations")
		}
	}
	return nil
}

// DelayDays returns the delay in days, zero when unset.
func (r *Relation) DelayDays() int {
	if r.Delay == nil {
		return 0
	}
	return *r.Delay
}

// Other returns the endpoint opposite to id.
func (r *Relation) Other(id int64) int64 {
	if r.FromID == id {
		return r.ToID
	}
	return r.FromID
}

func (r *Relation) String() string {
	if r.Delay != nil && *r.Delay > 0 {
		return fmt.Sprintf("#%d %s #%d (+%dd)", r.FromID, r.Kind, r.ToID, *r.Delay)
	}
	return fmt.Sprintf("#%d %s #%d", r.FromID, r.Kind, r.ToID)
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}
