// Package script builds and dissects the reserved-region image that
// carries a user script at the end of device flash.
package script

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Region image geometry. The boot loader reads the status word first
// and only touches the rest when the presence magic matches.
const (
	ImageSize      = 16384
	statusWordSize = 4
	nameFieldSize  = 32
	scriptOffset   = statusWordSize + nameFieldSize

	// MaxScriptLen is the largest script the region can hold.
	MaxScriptLen = ImageSize - statusWordSize - nameFieldSize

	// erasedByte is the flash-erased fill value.
	erasedByte = 0xFF
)

// Status word presence magics (low nibble).
const (
	StatusPresent = 0xA
	StatusCleared = 0x5
	StatusDefault = 0xD
)

// statusVersion occupies bits 4..15 of the status word. Carried
// through unvalidated by readers.
const statusVersion = 0x001

// NameMarker prefixes a first line that names the script.
const NameMarker = "---"

// ErrScriptTooLarge reports a script that cannot fit the region.
var ErrScriptTooLarge = errors.New("script too large for reserved region")

// PackStatus packs a status word from a presence magic and the exact
// script byte length.
func PackStatus(magic uint8, scriptLen int) uint32 {
	return uint32(magic&0xF) | uint32(statusVersion&0xFFF)<<4 | uint32(scriptLen&0xFFFF)<<16
}

// UnpackStatus splits a status word into presence magic, version field
// and script length.
func UnpackStatus(word uint32) (magic uint8, version uint16, scriptLen int) {
	return uint8(word & 0xF), uint16(word >> 4 & 0xFFF), int(word >> 16 & 0xFFFF)
}

// DeriveName applies the first-line marker rule: when the script's
// first line begins with NameMarker, the remainder of that line with
// surrounding whitespace trimmed is the script's name. Anything else
// yields an empty name.
func DeriveName(scriptText []byte) string {
	line := scriptText
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if !bytes.HasPrefix(line, []byte(NameMarker)) {
		return ""
	}
	return strings.TrimSpace(string(line[len(NameMarker):]))
}

// truncateName shortens name to at most max bytes without splitting a
// UTF-8 rune.
func truncateName(name string, max int) string {
	if len(name) <= max {
		return name
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}

// BuildImage encodes a script and its name into a full region image:
// status word, NUL-terminated name field, script bytes, 0xFF fill.
func BuildImage(scriptBytes []byte, name string) ([]byte, error) {
	if len(scriptBytes) > MaxScriptLen {
		return nil, fmt.Errorf("%w: %d bytes, maximum %d", ErrScriptTooLarge, len(scriptBytes), MaxScriptLen)
	}
	img := make([]byte, ImageSize)
	for i := range img {
		img[i] = erasedByte
	}
	putStatus(img, PackStatus(StatusPresent, len(scriptBytes)))
	writeName(img, name)
	copy(img[scriptOffset:], scriptBytes)
	return img, nil
}

// BuildClearedImage encodes a region image that marks the script slot
// as deliberately cleared. Name and script fields stay erased.
func BuildClearedImage() []byte {
	img := make([]byte, ImageSize)
	for i := range img {
		img[i] = erasedByte
	}
	putStatus(img, PackStatus(StatusCleared, 0))
	return img
}

func putStatus(img []byte, word uint32) {
	img[0] = byte(word)
	img[1] = byte(word >> 8)
	img[2] = byte(word >> 16)
	img[3] = byte(word >> 24)
}

func readStatus(img []byte) uint32 {
	return uint32(img[0]) | uint32(img[1])<<8 | uint32(img[2])<<16 | uint32(img[3])<<24
}

// writeName stores the name truncated to the field capacity minus the
// terminating NUL. The rest of the field stays erased so readers stop
// at the first NUL.
func writeName(img []byte, name string) {
	name = truncateName(name, nameFieldSize-1)
	copy(img[statusWordSize:], name)
	img[statusWordSize+len(name)] = 0
}

// readName decodes the NUL-terminated name field. An erased field
// (leading 0xFF) reads as empty.
func readName(img []byte) string {
	field := img[statusWordSize:scriptOffset]
	if field[0] == erasedByte {
		return ""
	}
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}
