package uf2

import (
	"errors"
	"testing"
)

func TestExcludeRange(t *testing.T) {
	l, err := LayoutFor("rp2040")
	if err != nil {
		t.Fatalf("LayoutFor failed: %v", err)
	}
	c := Container{}
	for i := uint32(0); i < 8; i++ {
		c.Blocks = append(c.Blocks, testBlock(l.BaseAddr+i*256, i, 8, 0))
	}
	// Four stale blocks inside the reserved range.
	for i := uint32(0); i < 4; i++ {
		c.Blocks = append(c.Blocks, testBlock(l.RegionStart()+i*256, 8+i, 12, 0xEE))
	}

	got := c.ExcludeRange(l.RegionStart(), l.RegionEnd())
	if got.Len() != 8 {
		t.Fatalf("survivors = %d, want 8", got.Len())
	}
	for i, b := range got.Blocks {
		if l.InRegion(b.TargetAddr) {
			t.Fatalf("block %d still targets the reserved range (0x%08X)", i, b.TargetAddr)
		}
	}

	empty := Container{}.ExcludeRange(l.RegionStart(), l.RegionEnd())
	if empty.Len() != 0 {
		t.Fatalf("empty input should yield empty result")
	}
}

func TestMergeRenumbering(t *testing.T) {
	base := Container{}
	for i := uint32(0); i < 3; i++ {
		base.Blocks = append(base.Blocks, testBlock(0x10000000+i*256, 99, 7, 0))
	}
	extra := Container{}
	for i := uint32(0); i < 2; i++ {
		extra.Blocks = append(extra.Blocks, testBlock(0x10100000+i*256, 0, 0, 0))
	}

	merged, err := Merge(base, extra)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if merged.Len() != 5 {
		t.Fatalf("merged length = %d, want 5", merged.Len())
	}
	for i, b := range merged.Blocks {
		if b.BlockNo != uint32(i) {
			t.Fatalf("block %d numbered %d", i, b.BlockNo)
		}
		if b.NumBlocks != 5 {
			t.Fatalf("block %d declares total %d, want 5", i, b.NumBlocks)
		}
	}
}

func TestMergeEmpty(t *testing.T) {
	_, err := Merge(Container{}, Container{})
	if !errors.Is(err, ErrEmptyMerge) {
		t.Fatalf("expected ErrEmptyMerge, got %v", err)
	}
}
