package uf2

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrMalformedContainer covers structural defects in a UF2 byte
	// buffer: misaligned length, bad magic words, payload overflow.
	ErrMalformedContainer = errors.New("malformed UF2 container")
)

// DecodeBlock decodes one 512-byte slice into a Block. The offset is
// used only for error reporting and names the block's position within
// the enclosing buffer.
func DecodeBlock(buf []byte, offset int) (Block, error) {
	var b Block
	if len(buf) < BlockSize {
		return b, fmt.Errorf("%w: short block (%d bytes) at offset %d", ErrMalformedContainer, len(buf), offset)
	}
	if m := binary.LittleEndian.Uint32(buf[offMagicStart0:]); m != MagicStart0 {
		return b, fmt.Errorf("%w: bad magic 0x%08X at offset %d", ErrMalformedContainer, m, offset+offMagicStart0)
	}
	if m := binary.LittleEndian.Uint32(buf[offMagicStart1:]); m != MagicStart1 {
		return b, fmt.Errorf("%w: bad magic 0x%08X at offset %d", ErrMalformedContainer, m, offset+offMagicStart1)
	}
	if m := binary.LittleEndian.Uint32(buf[offMagicEnd:]); m != MagicEnd {
		return b, fmt.Errorf("%w: bad magic 0x%08X at offset %d", ErrMalformedContainer, m, offset+offMagicEnd)
	}
	b.Flags = binary.LittleEndian.Uint32(buf[offFlags:])
	b.TargetAddr = binary.LittleEndian.Uint32(buf[offTargetAddr:])
	b.PayloadSize = binary.LittleEndian.Uint32(buf[offPayloadSize:])
	b.BlockNo = binary.LittleEndian.Uint32(buf[offBlockNo:])
	b.NumBlocks = binary.LittleEndian.Uint32(buf[offNumBlocks:])
	if b.PayloadSize > PayloadCapacity {
		return Block{}, fmt.Errorf("%w: payload size %d exceeds %d at offset %d", ErrMalformedContainer, b.PayloadSize, PayloadCapacity, offset)
	}
	if b.Flags&FlagFamilyIDPresent != 0 {
		b.FamilyID = binary.LittleEndian.Uint32(buf[offFamilyID:])
	}
	copy(b.Payload[:], buf[offPayload:offPayload+PayloadCapacity])
	return b, nil
}

// Encode serializes the block into its 512-byte wire form.
func (b *Block) Encode() []byte {
	buf := make([]byte, BlockSize)
	binary.LittleEndian.PutUint32(buf[offMagicStart0:], MagicStart0)
	binary.LittleEndian.PutUint32(buf[offMagicStart1:], MagicStart1)
	binary.LittleEndian.PutUint32(buf[offFlags:], b.Flags)
	binary.LittleEndian.PutUint32(buf[offTargetAddr:], b.TargetAddr)
	binary.LittleEndian.PutUint32(buf[offPayloadSize:], b.PayloadSize)
	binary.LittleEndian.PutUint32(buf[offBlockNo:], b.BlockNo)
	binary.LittleEndian.PutUint32(buf[offNumBlocks:], b.NumBlocks)
	if b.Flags&FlagFamilyIDPresent != 0 {
		binary.LittleEndian.PutUint32(buf[offFamilyID:], b.FamilyID)
	}
	copy(buf[offPayload:], b.Payload[:])
	binary.LittleEndian.PutUint32(buf[offMagicEnd:], MagicEnd)
	return buf
}

// ParseContainer decodes a byte buffer into an ordered block sequence.
// The buffer length must be an exact multiple of BlockSize and every
// block must carry the fixed magic words.
func ParseContainer(data []byte) (Container, error) {
	if len(data)%BlockSize != 0 {
		return Container{}, fmt.Errorf("%w: length %d not a multiple of %d", ErrMalformedContainer, len(data), BlockSize)
	}
	blocks := make([]Block, 0, len(data)/BlockSize)
	for off := 0; off < len(data); off += BlockSize {
		b, err := DecodeBlock(data[off:off+BlockSize], off)
		if err != nil {
			return Container{}, err
		}
		blocks = append(blocks, b)
	}
	return Container{Blocks: blocks}, nil
}

// Serialize writes every block back to its wire form, in order.
func (c Container) Serialize() []byte {
	out := make([]byte, 0, len(c.Blocks)*BlockSize)
	for i := range c.Blocks {
		out = append(out, c.Blocks[i].Encode()...)
	}
	return out
}
