package uf2

import (
	"fmt"
	"sort"
	"strings"
)

// Layout describes a target device's flash geometry and the reserved
// script region the boot loader reads on startup. All values are fixed
// by the hardware; presets below are the supported devices.
type Layout struct {
	// FlashSize is the total flash size in bytes.
	FlashSize uint32
	// BaseAddr is the device address at which flash is mapped.
	BaseAddr uint32
	// RegionSize is the size of the reserved script region in bytes.
	// The region sits at the very end of flash.
	RegionSize uint32
	// BlockPayload is the payload size used for region UF2 blocks.
	BlockPayload uint32
	// FamilyID is the UF2 family identifier the boot loader requires.
	FamilyID uint32
}

// RegionStart returns the first device address of the reserved region.
func (l Layout) RegionStart() uint32 {
	return l.BaseAddr + l.FlashSize - l.RegionSize
}

// RegionEnd returns the last device address of the reserved region
// (inclusive).
func (l Layout) RegionEnd() uint32 {
	return l.RegionStart() + l.RegionSize - 1
}

// RegionBlocks returns how many UF2 blocks a full region image splits
// into.
func (l Layout) RegionBlocks() int {
	return int(l.RegionSize / l.BlockPayload)
}

// InRegion reports whether addr falls inside the reserved region.
func (l Layout) InRegion(addr uint32) bool {
	return addr >= l.RegionStart() && addr <= l.RegionEnd()
}

var layouts = map[string]Layout{
	"rp2040": {
		FlashSize:    0x200000,
		BaseAddr:     0x10000000,
		RegionSize:   0x4000,
		BlockPayload: 256,
		FamilyID:     0xE48BFF56,
	},
	"rp2350": {
		FlashSize:    0x400000,
		BaseAddr:     0x10000000,
		RegionSize:   0x4000,
		BlockPayload: 256,
		FamilyID:     0xE48BFF59,
	},
}

// DefaultDevice is the device preset used when none is specified.
const DefaultDevice = "rp2040"

// LayoutFor resolves a device preset name to its flash layout.
func LayoutFor(device string) (Layout, error) {
	l, ok := layouts[strings.ToLower(strings.TrimSpace(device))]
	if !ok {
		return Layout{}, fmt.Errorf("unknown device %q (supported: %s)", device, strings.Join(Devices(), ", "))
	}
	return l, nil
}

// Devices lists the supported device preset names in sorted order.
func Devices() []string {
	names := make([]string, 0, len(layouts))
	for name := range layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
