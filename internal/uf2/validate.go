package uf2

import (
	"errors"
	"fmt"
)

// Validation failure variants. Each names one violated invariant; all
// are fatal and the checked image must be discarded.
var (
	ErrBlockNumbering   = errors.New("block numbering not contiguous")
	ErrDuplicateAddress = errors.New("duplicate target address")
	ErrRegionBlockCount = errors.New("wrong reserved-region block count")
	ErrRegionStride     = errors.New("reserved-region addresses not contiguous")
	ErrMissingFamily    = errors.New("reserved-region block missing family identifier")
)

// Validate re-checks a merged container against the full invariant set
// before it may be released. Checks run in a fixed order: sequencing,
// address uniqueness, region coverage and stride, family tagging.
func Validate(c Container, l Layout) error {
	total := uint32(len(c.Blocks))
	for i, b := range c.Blocks {
		if b.BlockNo != uint32(i) {
			return fmt.Errorf("%w: block %d carries index %d", ErrBlockNumbering, i, b.BlockNo)
		}
		if b.NumBlocks != total {
			return fmt.Errorf("%w: block %d declares total %d, container has %d", ErrBlockNumbering, i, b.NumBlocks, total)
		}
	}

	seen := make(map[uint32]int, len(c.Blocks))
	for i, b := range c.Blocks {
		if prev, dup := seen[b.TargetAddr]; dup {
			return fmt.Errorf("%w: 0x%08X in blocks %d and %d", ErrDuplicateAddress, b.TargetAddr, prev, i)
		}
		seen[b.TargetAddr] = i
	}

	want := l.RegionBlocks()
	var region []Block
	for _, b := range c.Blocks {
		if l.InRegion(b.TargetAddr) {
			region = append(region, b)
		}
	}
	if len(region) != want {
		return fmt.Errorf("%w: found %d, want %d", ErrRegionBlockCount, len(region), want)
	}
	for i, b := range region {
		wantAddr := l.RegionStart() + uint32(i)*l.BlockPayload
		if b.TargetAddr != wantAddr {
			return fmt.Errorf("%w: block %d targets 0x%08X, want 0x%08X", ErrRegionStride, i, b.TargetAddr, wantAddr)
		}
		if !b.HasFamilyID() {
			return fmt.Errorf("%w: block at 0x%08X has no family flag", ErrMissingFamily, b.TargetAddr)
		}
		if b.FamilyID != l.FamilyID {
			return fmt.Errorf("%w: block at 0x%08X carries 0x%08X, want 0x%08X", ErrMissingFamily, b.TargetAddr, b.FamilyID, l.FamilyID)
		}
	}
	return nil
}
