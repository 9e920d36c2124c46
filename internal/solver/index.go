package solver

import (
	"github.com/cespare/xxhash/v2"

	"github.com/roach88/strata/internal/ir"
)

// patternIndex is the derived lookup structure for one bound-column pattern
// of one symbol. It is rebuildable from the arena and never authoritative:
// buckets map a join key (xxhash of the canonical encodings of the bound
// columns) to candidate row indices, which the caller re-verifies by value.
//
// Indexes are built lazily the first time a pattern is queried and extended
// append-only as the arena grows.
type patternIndex struct {
	mask    uint32
	buckets map[uint64][]int
}

// index returns the cached index for a mask, building it from the arena on
// first use.
func (t *table) index(mask uint32) (*patternIndex, error) {
	if pi, ok := t.indexes[mask]; ok {
		return pi, nil
	}
	pi := &patternIndex{mask: mask, buckets: make(map[uint64][]int)}
	for idx, row := range t.rows {
		if err := pi.add(idx, row); err != nil {
			return nil, err
		}
	}
	t.indexes[mask] = pi
	return pi, nil
}

func (pi *patternIndex) add(rowIdx int, row []ir.Value) error {
	jk, err := joinKey(row, pi.mask)
	if err != nil {
		return err
	}
	pi.buckets[jk] = append(pi.buckets[jk], rowIdx)
	return nil
}

// joinKey hashes the columns selected by mask. A NUL separator after each
// column prevents boundary ambiguity between adjacent encodings.
func joinKey(row []ir.Value, mask uint32) (uint64, error) {
	h := xxhash.New()
	for i, v := range row {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		canonical, err := ir.MarshalCanonical(v)
		if err != nil {
			return 0, err
		}
		_, _ = h.Write(canonical)
		_, _ = h.Write([]byte{0x00})
	}
	return h.Sum64(), nil
}

// hashRow hashes a full row (all columns bound).
func hashRow(row []ir.Value) (uint64, error) {
	return joinKey(row, maskBits(len(row)))
}

// maskOf computes the bound-column bitmask of a lookup pattern.
func maskOf(bound []ir.Value) uint32 {
	var mask uint32
	for i, v := range bound {
		if v != nil {
			mask |= 1 << uint(i)
		}
	}
	return mask
}

// maskBits returns a mask with the low n bits set.
func maskBits(n int) uint32 {
	return (1 << uint(n)) - 1
}
