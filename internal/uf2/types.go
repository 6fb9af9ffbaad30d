package uf2

// BlockSize is the fixed on-wire size of a UF2 block.
const BlockSize = 512

// PayloadCapacity is the number of payload bytes a block can carry.
const PayloadCapacity = 476

// Block field offsets within a 512-byte UF2 block. All fields are
// little-endian 32-bit words.
const (
	offMagicStart0 = 0
	offMagicStart1 = 4
	offFlags       = 8
	offTargetAddr  = 12
	offPayloadSize = 16
	offBlockNo     = 20
	offNumBlocks   = 24
	offFamilyID    = 28
	offPayload     = 32
	offMagicEnd    = 508
)

// UF2 magic words. Fixed by the bootloader contract; never derived.
const (
	MagicStart0 = 0x0A324655
	MagicStart1 = 0x9E5D5157
	MagicEnd    = 0x0AB16F30
)

// Block flag bits.
const (
	FlagNotMainFlash    = 0x00000001
	FlagFileContainer   = 0x00001000
	FlagFamilyIDPresent = 0x00002000
	FlagMD5Present      = 0x00004000
	FlagExtensionTags   = 0x00008000
)

// Block is one decoded 512-byte UF2 unit. Payload always holds
// PayloadCapacity bytes; only the first PayloadSize of them carry data.
type Block struct {
	Flags       uint32
	TargetAddr  uint32
	PayloadSize uint32
	BlockNo     uint32
	NumBlocks   uint32
	FamilyID    uint32
	Payload     [PayloadCapacity]byte
}

// HasFamilyID reports whether the family identifier field is meaningful.
func (b *Block) HasFamilyID() bool {
	return b.Flags&FlagFamilyIDPresent != 0
}

// Data returns the meaningful portion of the payload.
func (b *Block) Data() []byte {
	n := b.PayloadSize
	if n > PayloadCapacity {
		n = PayloadCapacity
	}
	return b.Payload[:n]
}

// Container is an ordered sequence of UF2 blocks.
type Container struct {
	Blocks []Block
}

// Len returns the number of blocks in the container.
func (c Container) Len() int {
	return len(c.Blocks)
}
