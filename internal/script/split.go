package script

import (
	"errors"
	"fmt"

	"example.com/uf2forge/internal/uf2"
)

// ErrRegionSizeMismatch signals a region image whose length does not
// divide evenly into layout blocks. This is an internal invariant
// violation, not a user-facing condition.
var ErrRegionSizeMismatch = errors.New("region image size mismatch")

// SplitImage slices a region image into block-payload-sized chunks and
// wraps each as a UF2 block addressed into the reserved region. The
// sequencing fields are left zero; the merge step assigns them.
func SplitImage(img []byte, l uf2.Layout) ([]uf2.Block, error) {
	payload := int(l.BlockPayload)
	if payload <= 0 || len(img)%payload != 0 {
		return nil, fmt.Errorf("%w: %d bytes does not divide into %d-byte blocks", ErrRegionSizeMismatch, len(img), payload)
	}
	if uint32(len(img)) != l.RegionSize {
		return nil, fmt.Errorf("%w: image is %d bytes, region is %d", ErrRegionSizeMismatch, len(img), l.RegionSize)
	}
	blocks := make([]uf2.Block, 0, len(img)/payload)
	for i := 0; i*payload < len(img); i++ {
		b := uf2.Block{
			Flags:       uf2.FlagFamilyIDPresent,
			TargetAddr:  l.RegionStart() + uint32(i)*l.BlockPayload,
			PayloadSize: l.BlockPayload,
			FamilyID:    l.FamilyID,
		}
		copy(b.Payload[:], img[i*payload:(i+1)*payload])
		blocks = append(blocks, b)
	}
	return blocks, nil
}
