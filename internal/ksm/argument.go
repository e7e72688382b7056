// Package ksm implements the in-memory container for the executable/
// shared load format ("KSM") that the linker emits: a deduplicated
// argument section, one or more code sections, and a debug section,
// plus a writer that frames them into the on-disk container (optionally
// gzip-compressed, which the CLI layer controls).
package ksm

import (
	"fmt"

	"github.com/kos-tools/klinker/internal/objval"
)

// headerSize is the byte cost of the argument section's own framing: the
// two-byte "%A" delimiter plus the one-byte address-width field. It is
// folded into the running size so the first real value's address accounts
// for the header preceding it, exactly like the bytes a VM reader would
// skip before reaching the pool.
const headerSize = 3

// ArgumentSection is the KSM load format's deduplicated pool of typed
// values. Every instruction operand in the final code section is a byte
// offset into this pool.
type ArgumentSection struct {
	values     []objval.Value
	hashToAddr map[uint64]uint32
	size       uint64
}

// NewArgumentSection creates an empty argument section.
func NewArgumentSection() *ArgumentSection {
	return &ArgumentSection{
		hashToAddr: make(map[uint64]uint32),
		size:       headerSize,
	}
}

// Add interns v by content hash, returning the byte offset it occupies. A
// value already present at that hash is reused; its existing offset is
// returned without growing the section.
func (a *ArgumentSection) Add(v objval.Value) uint32 {
	h := v.Hash()
	if addr, ok := a.hashToAddr[h]; ok {
		return addr
	}
	addr := uint32(a.size)
	a.size += uint64(v.SizeBytes())
	a.values = append(a.values, v)
	a.hashToAddr[h] = addr
	return addr
}

// Values returns the interned values in insertion order.
func (a *ArgumentSection) Values() []objval.Value {
	return a.values
}

// Size returns the section's total byte size, including its header.
func (a *ArgumentSection) Size() uint64 {
	return a.size
}

// ErrDataIndexOverflow is returned by AddrBytes when the section has grown
// beyond what a 4-byte address can index.
var ErrDataIndexOverflow = fmt.Errorf("ksm: argument section exceeds the maximum 4-byte address width")

// AddrBytes returns the number of bytes needed to address any offset in
// the section: 1 up to 255 bytes, 2 up to 65535, 3 up to 16777215, 4
// beyond that. A section too large even for 4 bytes is a link failure.
func (a *ArgumentSection) AddrBytes() (byte, error) {
	switch {
	case a.size > 0xFFFFFFFF:
		return 0, ErrDataIndexOverflow
	case a.size > 16777215:
		return 4, nil
	case a.size > 65535:
		return 3, nil
	case a.size > 255:
		return 2, nil
	default:
		return 1, nil
	}
}

// Write frames the section as "%A" + addr-width byte + each value's
// tagged encoding, in interning order.
func (a *ArgumentSection) Write(w *Writer) error {
	addrBytes, err := a.AddrBytes()
	if err != nil {
		return err
	}

	w.writeByte('%')
	w.writeByte('A')
	w.writeU8(addrBytes)

	for _, v := range a.values {
		writeValue(w, v)
	}
	return w.err
}

func writeValue(w *Writer, v objval.Value) {
	switch v.Tag {
	case objval.TagNull:
		w.writeU8(0)
	case objval.TagBool:
		w.writeU8(1)
		w.writeBool(v.Bool)
	case objval.TagByte:
		w.writeU8(2)
		w.writeByte(v.Byte)
	case objval.TagInt16:
		w.writeU8(3)
		w.writeI16(v.Int16)
	case objval.TagInt32:
		w.writeU8(4)
		w.writeI32(v.Int32)
	case objval.TagFloat:
		w.writeU8(5)
		w.writeF32(v.Float)
	case objval.TagDouble:
		w.writeU8(6)
		w.writeF64(v.Double)
	case objval.TagString:
		w.writeU8(7)
		w.writeKOSString(v.Str)
	case objval.TagArgMarker:
		w.writeU8(8)
	case objval.TagScalarInt:
		w.writeU8(9)
		w.writeI32(v.Int32)
	case objval.TagScalarDouble:
		w.writeU8(10)
		w.writeF64(v.Double)
	case objval.TagBoolValue:
		w.writeU8(11)
		w.writeBool(v.Bool)
	case objval.TagStringValue:
		w.writeU8(12)
		w.writeKOSString(v.Str)
	default:
		if w.err == nil {
			w.err = fmt.Errorf("ksm: unknown value tag %v", v.Tag)
		}
	}
}
