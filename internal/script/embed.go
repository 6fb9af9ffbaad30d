package script

import (
	"errors"
	"fmt"
	"sort"

	"example.com/uf2forge/internal/uf2"
)

// ErrNoScript reports an image whose reserved region does not carry a
// present script.
var ErrNoScript = errors.New("no script present in reserved region")

// Embed merges scriptBytes into the reserved region of the base UF2
// image and returns the finished container bytes. The base may be nil
// or empty, in which case the output carries only the region blocks.
// The result is validated against the full invariant set before it is
// returned; a validation failure discards the image.
func Embed(baseImage, scriptBytes []byte, l uf2.Layout) ([]byte, error) {
	img, err := BuildImage(scriptBytes, DeriveName(scriptBytes))
	if err != nil {
		return nil, err
	}
	return embedImage(baseImage, img, l)
}

// Clear writes a cleared region image into the base UF2 image so the
// boot loader treats the script slot as intentionally empty.
func Clear(baseImage []byte, l uf2.Layout) ([]byte, error) {
	return embedImage(baseImage, BuildClearedImage(), l)
}

func embedImage(baseImage, regionImage []byte, l uf2.Layout) ([]byte, error) {
	var base uf2.Container
	if len(baseImage) > 0 {
		parsed, err := uf2.ParseContainer(baseImage)
		if err != nil {
			return nil, fmt.Errorf("base image: %w", err)
		}
		base = parsed
	}
	base = base.ExcludeRange(l.RegionStart(), l.RegionEnd())

	blocks, err := SplitImage(regionImage, l)
	if err != nil {
		return nil, err
	}
	merged, err := uf2.Merge(base, uf2.Container{Blocks: blocks})
	if err != nil {
		return nil, err
	}

	out := merged.Serialize()
	reparsed, err := uf2.ParseContainer(out)
	if err != nil {
		return nil, err
	}
	if err := uf2.Validate(reparsed, l); err != nil {
		return nil, err
	}
	return out, nil
}

// Info describes the script found in an image's reserved region.
type Info struct {
	Name    string
	Script  []byte
	Magic   uint8
	Version uint16
	Present bool
	Cleared bool
}

// Extract reassembles the reserved-region image from a UF2 container
// and decodes the script it carries. The container need not be a full
// flash image; only the region blocks are consulted.
func Extract(image []byte, l uf2.Layout) (Info, error) {
	c, err := uf2.ParseContainer(image)
	if err != nil {
		return Info{}, err
	}
	var region []uf2.Block
	for _, b := range c.Blocks {
		if l.InRegion(b.TargetAddr) {
			region = append(region, b)
		}
	}
	if len(region) == 0 {
		return Info{}, ErrNoScript
	}
	sort.Slice(region, func(i, j int) bool { return region[i].TargetAddr < region[j].TargetAddr })

	img := make([]byte, l.RegionSize)
	for i := range img {
		img[i] = erasedByte
	}
	for _, b := range region {
		off := b.TargetAddr - l.RegionStart()
		copy(img[off:], b.Data())
	}
	if uint32(len(img)) < scriptOffset {
		return Info{}, ErrNoScript
	}

	magic, version, scriptLen := UnpackStatus(readStatus(img))
	info := Info{Magic: magic, Version: version}
	switch magic {
	case StatusCleared:
		info.Cleared = true
		return info, nil
	case StatusPresent, StatusDefault:
		info.Present = true
	default:
		return info, ErrNoScript
	}
	if scriptLen > MaxScriptLen {
		scriptLen = MaxScriptLen
	}
	info.Name = readName(img)
	info.Script = append([]byte(nil), img[scriptOffset:scriptOffset+scriptLen]...)
	return info, nil
}
