package uf2

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

func testBlock(addr, blockNo, numBlocks uint32, fill byte) Block {
	b := Block{
		Flags:       FlagFamilyIDPresent,
		TargetAddr:  addr,
		PayloadSize: 256,
		BlockNo:     blockNo,
		NumBlocks:   numBlocks,
		FamilyID:    0xE48BFF56,
	}
	for i := 0; i < int(b.PayloadSize); i++ {
		b.Payload[i] = fill
	}
	return b
}

func TestBlockRoundTrip(t *testing.T) {
	want := testBlock(0x10004000, 3, 8, 0x5A)
	got, err := DecodeBlock(want.Encode(), 0)
	if err != nil {
		t.Fatalf("DecodeBlock failed: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestContainerRoundTrip(t *testing.T) {
	c := Container{}
	for i := uint32(0); i < 5; i++ {
		c.Blocks = append(c.Blocks, testBlock(0x10000000+i*256, i, 5, byte(i)))
	}
	got, err := ParseContainer(c.Serialize())
	if err != nil {
		t.Fatalf("ParseContainer failed: %v", err)
	}
	if len(got.Blocks) != len(c.Blocks) {
		t.Fatalf("block count = %d, want %d", len(got.Blocks), len(c.Blocks))
	}
	for i := range c.Blocks {
		if got.Blocks[i] != c.Blocks[i] {
			t.Fatalf("block %d mismatch after round trip", i)
		}
	}
}

func TestParseContainerMisaligned(t *testing.T) {
	_, err := ParseContainer(make([]byte, 513))
	if !errors.Is(err, ErrMalformedContainer) {
		t.Fatalf("expected ErrMalformedContainer, got %v", err)
	}
	if !strings.Contains(err.Error(), "513") {
		t.Fatalf("error should cite the misaligned length: %v", err)
	}
}

func TestDecodeBlockBadMagic(t *testing.T) {
	tests := []struct {
		name   string
		offset int
	}{
		{name: "start0", offset: 0},
		{name: "start1", offset: 4},
		{name: "end", offset: 508},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := testBlock(0x10000000, 0, 1, 0)
			raw := b.Encode()
			binary.LittleEndian.PutUint32(raw[tc.offset:], 0xDEADBEEF)
			_, err := DecodeBlock(raw, 1024)
			if !errors.Is(err, ErrMalformedContainer) {
				t.Fatalf("expected ErrMalformedContainer, got %v", err)
			}
			if !strings.Contains(err.Error(), "offset") {
				t.Fatalf("error should name the offending offset: %v", err)
			}
		})
	}
}

func TestDecodeBlockPayloadOverflow(t *testing.T) {
	b := testBlock(0x10000000, 0, 1, 0)
	raw := b.Encode()
	binary.LittleEndian.PutUint32(raw[16:], PayloadCapacity+1)
	_, err := DecodeBlock(raw, 0)
	if !errors.Is(err, ErrMalformedContainer) {
		t.Fatalf("expected ErrMalformedContainer, got %v", err)
	}
}

func TestDecodeBlockFamilyAbsent(t *testing.T) {
	b := testBlock(0x10000000, 0, 1, 0)
	b.Flags = 0
	got, err := DecodeBlock(b.Encode(), 0)
	if err != nil {
		t.Fatalf("DecodeBlock failed: %v", err)
	}
	if got.HasFamilyID() {
		t.Fatalf("family flag should be clear")
	}
	if got.FamilyID != 0 {
		t.Fatalf("FamilyID = 0x%08X, want 0 when flag clear", got.FamilyID)
	}
}

func TestBlockData(t *testing.T) {
	b := testBlock(0x10000000, 0, 1, 0x33)
	b.PayloadSize = 10
	if !bytes.Equal(b.Data(), b.Payload[:10]) {
		t.Fatalf("Data should expose the first PayloadSize bytes")
	}
}
