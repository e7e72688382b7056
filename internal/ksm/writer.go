package ksm

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// MagicNumber identifies a KSM container. 'k' 0x03 'X' 'E' read as a
// little-endian uint32, matching the byte order every other multi-byte
// field in the container uses.
const MagicNumber uint32 = 0x4558036b

// Writer accumulates the little-endian primitive writes the KSM container
// format is built from. Every write is a no-op once err is set, so
// callers can chain calls and check err once at the end.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) writeByte(b byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write([]byte{b})
}

func (w *Writer) writeBool(b bool) {
	if b {
		w.writeByte(1)
	} else {
		w.writeByte(0)
	}
}

func (w *Writer) writeU8(b byte) { w.writeByte(b) }

func (w *Writer) writeU16(v uint16) {
	if w.err != nil {
		return
	}
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, w.err = w.w.Write(buf[:])
}

func (w *Writer) writeI16(v int16) { w.writeU16(uint16(v)) }

func (w *Writer) writeU32(v uint32) {
	if w.err != nil {
		return
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, w.err = w.w.Write(buf[:])
}

func (w *Writer) writeI32(v int32) { w.writeU32(uint32(v)) }

func (w *Writer) writeF32(v float32) { w.writeU32(math.Float32bits(v)) }

func (w *Writer) writeF64(v float64) {
	if w.err != nil {
		return
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	_, w.err = w.w.Write(buf[:])
}

// writeVariable writes v using the low n bytes, little-endian. It backs
// both argument-section operand addresses and debug-entry range bounds,
// whose width is computed once per section rather than fixed at 4 bytes.
func (w *Writer) writeVariable(n byte, v uint32) {
	if w.err != nil {
		return
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, w.err = w.w.Write(buf[:n])
}

// writeKOSString writes a single-byte length prefix followed by the raw
// bytes of s. The VM's string values never exceed 255 bytes; a longer
// string is a caller bug, not a runtime condition, so this panics rather
// than threading another error path through every value writer.
func (w *Writer) writeKOSString(s string) {
	if len(s) > math.MaxUint8 {
		panic(fmt.Sprintf("ksm: string value %q exceeds 255 bytes", s))
	}
	w.writeU8(byte(len(s)))
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}

// File is a complete KSM load module: one argument section, the three
// code sections in FUNCTION, INITIALIZATION, MAIN order, and a debug
// section.
type File struct {
	Argument *ArgumentSection
	Function *CodeSection
	Init     *CodeSection
	Main     *CodeSection
	Debug    *DebugSection
}

// New builds a File around the given sections.
func New(argument *ArgumentSection, function, init, main *CodeSection, debug *DebugSection) *File {
	return &File{Argument: argument, Function: function, Init: init, Main: main, Debug: debug}
}

// WriteTo writes the container's magic number followed by each section in
// turn. Compression is not applied here: per the core's scope, gzip
// wrapping is an output-transport concern handled by the caller.
func (f *File) WriteTo(w io.Writer) error {
	kw := NewWriter(w)
	kw.writeU32(MagicNumber)
	if kw.err != nil {
		return fmt.Errorf("ksm: write magic number: %w", kw.err)
	}

	if err := f.Argument.Write(kw); err != nil {
		return err
	}
	for _, section := range []*CodeSection{f.Function, f.Init, f.Main} {
		if err := section.Write(kw); err != nil {
			return err
		}
	}
	return f.Debug.Write(kw)
}

// WriteGzip writes the container to w gzip-compressed at best-compression
// level, matching the on-disk representation the target VM expects.
func (f *File) WriteGzip(w io.Writer) error {
	gz, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("ksm: create gzip writer: %w", err)
	}
	if err := f.WriteTo(gz); err != nil {
		_ = gz.Close()
		return err
	}
	return gz.Close()
}
