package uf2

import (
	"errors"
)

// ErrEmptyMerge signals that a merge would produce a container with no
// blocks, which indicates an empty or garbage base image.
var ErrEmptyMerge = errors.New("merge would produce an empty container")

// ExcludeRange returns a new container omitting every block whose
// target address lies within [start, end] inclusive. Survivors keep
// their original sequencing fields; renumbering happens at merge time.
func (c Container) ExcludeRange(start, end uint32) Container {
	out := Container{}
	for _, b := range c.Blocks {
		if b.TargetAddr >= start && b.TargetAddr <= end {
			continue
		}
		out.Blocks = append(out.Blocks, b)
	}
	return out
}

// Merge concatenates base and extra and assigns contiguous sequencing:
// blockNo = position, numBlocks = total, for every block. Block order
// matters only for determinism; each block is self-addressing.
func Merge(base, extra Container) (Container, error) {
	total := len(base.Blocks) + len(extra.Blocks)
	if total == 0 {
		return Container{}, ErrEmptyMerge
	}
	out := Container{Blocks: make([]Block, 0, total)}
	out.Blocks = append(out.Blocks, base.Blocks...)
	out.Blocks = append(out.Blocks, extra.Blocks...)
	for i := range out.Blocks {
		out.Blocks[i].BlockNo = uint32(i)
		out.Blocks[i].NumBlocks = uint32(total)
	}
	return out, nil
}
