package uf2

import (
	"errors"
	"testing"
)

func validRegionContainer(t *testing.T, l Layout) Container {
	t.Helper()
	c := Container{}
	for i := 0; i < l.RegionBlocks(); i++ {
		b := Block{
			Flags:       FlagFamilyIDPresent,
			TargetAddr:  l.RegionStart() + uint32(i)*l.BlockPayload,
			PayloadSize: l.BlockPayload,
			FamilyID:    l.FamilyID,
		}
		c.Blocks = append(c.Blocks, b)
	}
	merged, err := Merge(Container{}, c)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	return merged
}

func TestValidateOK(t *testing.T) {
	l, _ := LayoutFor(DefaultDevice)
	if err := Validate(validRegionContainer(t, l), l); err != nil {
		t.Fatalf("Validate failed on a well-formed container: %v", err)
	}
}

func TestValidateVariants(t *testing.T) {
	l, _ := LayoutFor(DefaultDevice)
	tests := []struct {
		name   string
		mutate func(*Container)
		want   error
	}{
		{
			name:   "gap in numbering",
			mutate: func(c *Container) { c.Blocks[5].BlockNo = 42 },
			want:   ErrBlockNumbering,
		},
		{
			name:   "wrong declared total",
			mutate: func(c *Container) { c.Blocks[0].NumBlocks = 1 },
			want:   ErrBlockNumbering,
		},
		{
			name: "duplicate address",
			mutate: func(c *Container) {
				c.Blocks[3].TargetAddr = c.Blocks[2].TargetAddr
			},
			want: ErrDuplicateAddress,
		},
		{
			name: "region block missing",
			mutate: func(c *Container) {
				c.Blocks[7].TargetAddr = l.BaseAddr
			},
			want: ErrRegionBlockCount,
		},
		{
			name: "broken stride",
			mutate: func(c *Container) {
				a := c.Blocks[1].TargetAddr
				c.Blocks[1].TargetAddr = c.Blocks[2].TargetAddr
				c.Blocks[2].TargetAddr = a
			},
			want: ErrRegionStride,
		},
		{
			name: "family flag clear",
			mutate: func(c *Container) {
				c.Blocks[0].Flags &^= FlagFamilyIDPresent
			},
			want: ErrMissingFamily,
		},
		{
			name: "wrong family id",
			mutate: func(c *Container) {
				c.Blocks[0].FamilyID = 0x12345678
			},
			want: ErrMissingFamily,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := validRegionContainer(t, l)
			tc.mutate(&c)
			err := Validate(c, l)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Validate = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestLayoutGeometry(t *testing.T) {
	l, err := LayoutFor("rp2040")
	if err != nil {
		t.Fatalf("LayoutFor failed: %v", err)
	}
	if l.RegionStart() != 0x101FC000 {
		t.Fatalf("RegionStart = 0x%08X, want 0x101FC000", l.RegionStart())
	}
	if l.RegionEnd() != 0x101FFFFF {
		t.Fatalf("RegionEnd = 0x%08X, want 0x101FFFFF", l.RegionEnd())
	}
	if l.RegionBlocks() != 64 {
		t.Fatalf("RegionBlocks = %d, want 64", l.RegionBlocks())
	}
	if _, err := LayoutFor("unknown-device"); err == nil {
		t.Fatalf("expected error for unknown device")
	}
}
