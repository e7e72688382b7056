package ko

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/kos-tools/klinker/internal/objval"
)

// magic identifies a KO object module on disk. Kept little-endian like the
// rest of the container family this linker interoperates with, so its
// bytes are a format version byte (1), 'K', 'O' and a zero byte.
const magic uint32 = 0x004f4b01

// sectionKind tags each section record in the on-disk stream so a reader
// can dispatch without a separate section-header table.
type sectionKind byte

const (
	kindData sectionKind = iota
	kindFunc
	kindSymTab
	kindStrTab
	kindReld
)

// ReadFile reads a KO module from path.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ko: open %s: %w", path, err)
	}
	defer f.Close()
	return Read(bufio.NewReader(f))
}

// Write serializes f to w in this package's binary container format.
func (f *File) Write(w io.Writer) error {
	bw := &byteWriter{w: w}
	bw.u32(magic)
	bw.u32(uint32(len(f.sectionOrder)))

	for idx, name := range f.sectionOrder {
		if ds, ok := f.dataSectionAt(idx); ok {
			bw.u8(byte(kindData))
			bw.str(name)
			bw.u32(uint32(len(ds.values)))
			for _, v := range ds.values {
				writeValue(bw, v)
			}
			continue
		}
		if fs, ok := f.funcSectionAt(idx); ok {
			bw.u8(byte(kindFunc))
			bw.str(name)
			bw.u32(uint32(len(fs.Instructions)))
			for _, instr := range fs.Instructions {
				bw.u8(byte(instr.Arity))
				bw.u8(byte(instr.Op))
				switch instr.Arity {
				case OneOp:
					bw.u32(uint32(instr.Op0))
				case TwoOp:
					bw.u32(uint32(instr.Op0))
					bw.u32(uint32(instr.Op1))
				}
			}
			continue
		}
		if st, ok := f.symTabAt(name); ok {
			bw.u8(byte(kindSymTab))
			bw.str(name)
			bw.u32(uint32(len(st.symbols)))
			for _, sym := range st.symbols {
				bw.u32(uint32(sym.NameIdx))
				bw.u32(uint32(sym.ValueIdx))
				bw.u32(uint32(sym.Size))
				bw.u8(byte(sym.Bind))
				bw.u8(byte(sym.Type))
				bw.u32(uint32(sym.SectionIdx))
			}
			continue
		}
		if tt, ok := f.strTabAt(name); ok {
			bw.u8(byte(kindStrTab))
			bw.str(name)
			bw.u32(uint32(len(tt.strings)))
			for _, s := range tt.strings {
				bw.str(s)
			}
			continue
		}
		if rt, ok := f.reldSectionAt(name); ok {
			bw.u8(byte(kindReld))
			bw.str(name)
			bw.u32(uint32(len(rt.Entries)))
			for _, e := range rt.Entries {
				bw.u32(uint32(e.SectionIndex))
				bw.u32(uint32(e.InstrIndex))
				bw.u32(uint32(e.OperandIndex))
				bw.u32(uint32(e.SymbolIndex))
			}
			continue
		}
		return fmt.Errorf("ko: internal error: section %q not found in any table", name)
	}
	return bw.err
}

// Read deserializes a KO module from r.
func Read(r io.Reader) (*File, error) {
	br := &byteReader{r: r}
	got := br.u32()
	if br.err != nil {
		return nil, fmt.Errorf("ko: read header: %w", br.err)
	}
	if got != magic {
		return nil, fmt.Errorf("ko: bad magic number %#x", got)
	}

	sectionCount := br.u32()
	f := New()
	for i := uint32(0); i < sectionCount && br.err == nil; i++ {
		kind := sectionKind(br.u8())
		name := br.str()
		switch kind {
		case kindData:
			ds := f.NewDataSection(name)
			n := br.u32()
			for j := uint32(0); j < n; j++ {
				ds.Add(readValue(br))
			}
		case kindFunc:
			fs := f.NewFuncSection(name)
			n := br.u32()
			for j := uint32(0); j < n; j++ {
				arity := Arity(br.u8())
				op := Opcode(br.u8())
				switch arity {
				case ZeroOp:
					fs.Add(NewZeroOp(op))
				case OneOp:
					fs.Add(NewOneOp(op, int(br.u32())))
				case TwoOp:
					op0 := int(br.u32())
					op1 := int(br.u32())
					fs.Add(NewTwoOp(op, op0, op1))
				}
			}
		case kindSymTab:
			st := f.NewSymTab(name)
			n := br.u32()
			for j := uint32(0); j < n; j++ {
				st.Add(Symbol{
					NameIdx:    int(br.u32()),
					ValueIdx:   int(br.u32()),
					Size:       int(br.u32()),
					Bind:       SymBind(br.u8()),
					Type:       SymType(br.u8()),
					SectionIdx: int(br.u32()),
				})
			}
		case kindStrTab:
			tt := f.NewStrTab(name)
			n := br.u32()
			for j := uint32(0); j < n; j++ {
				tt.Add(br.str())
			}
		case kindReld:
			rt := f.NewReldSection(name)
			n := br.u32()
			for j := uint32(0); j < n; j++ {
				rt.Add(NewReldEntry(int(br.u32()), int(br.u32()), int(br.u32()), int(br.u32())))
			}
		default:
			return nil, fmt.Errorf("ko: unknown section kind %d", kind)
		}
	}
	if br.err != nil && br.err != io.EOF {
		return nil, fmt.Errorf("ko: read sections: %w", br.err)
	}
	return f, nil
}

func (f *File) dataSectionAt(idx int) (*DataSection, bool) {
	for _, s := range f.dataSections {
		if s.sectionIndex == idx {
			return s, true
		}
	}
	return nil, false
}

func (f *File) funcSectionAt(idx int) (*FuncSection, bool) {
	for _, s := range f.funcSections {
		if s.sectionIndex == idx {
			return s, true
		}
	}
	return nil, false
}

func (f *File) symTabAt(name string) (*SymbolTable, bool) {
	for _, s := range f.symTabs {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

func (f *File) strTabAt(name string) (*StringTable, bool) {
	for _, s := range f.strTabs {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

func (f *File) reldSectionAt(name string) (*ReldSection, bool) {
	for _, s := range f.reldSections {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

func writeValue(bw *byteWriter, v objval.Value) {
	bw.u8(byte(v.Tag))
	switch v.Tag {
	case objval.TagNull, objval.TagArgMarker:
	case objval.TagBool, objval.TagBoolValue:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		bw.u8(b)
	case objval.TagByte:
		bw.u8(v.Byte)
	case objval.TagInt16:
		bw.i16(v.Int16)
	case objval.TagInt32, objval.TagScalarInt:
		bw.i32(v.Int32)
	case objval.TagFloat:
		bw.f32(v.Float)
	case objval.TagDouble, objval.TagScalarDouble:
		bw.f64(v.Double)
	case objval.TagString, objval.TagStringValue:
		bw.str(v.Str)
	}
}

func readValue(br *byteReader) objval.Value {
	tag := objval.Tag(br.u8())
	switch tag {
	case objval.TagNull:
		return objval.Null()
	case objval.TagArgMarker:
		return objval.ArgMarker()
	case objval.TagBool:
		return objval.Bool(br.u8() != 0)
	case objval.TagBoolValue:
		return objval.BoolValue(br.u8() != 0)
	case objval.TagByte:
		return objval.Byte(br.u8())
	case objval.TagInt16:
		return objval.Int16(br.i16())
	case objval.TagInt32:
		return objval.Int32(br.i32())
	case objval.TagScalarInt:
		return objval.ScalarInt(br.i32())
	case objval.TagFloat:
		return objval.Float(br.f32())
	case objval.TagDouble:
		return objval.Double(br.f64())
	case objval.TagScalarDouble:
		return objval.ScalarDouble(br.f64())
	case objval.TagString:
		return objval.String(br.str())
	case objval.TagStringValue:
		return objval.StringValue(br.str())
	default:
		if br.err == nil {
			br.err = fmt.Errorf("ko: unknown value tag %d", tag)
		}
		return objval.Null()
	}
}

// byteWriter and byteReader are small little-endian primitive helpers in
// the style of a hand-rolled wire-format writer: every call is a no-op
// once the first error occurs, so callers can chain writes and check err
// only at the end.
type byteWriter struct {
	w   io.Writer
	err error
}

func (bw *byteWriter) u8(b byte) {
	if bw.err != nil {
		return
	}
	_, bw.err = bw.w.Write([]byte{b})
}

func (bw *byteWriter) u32(v uint32) {
	if bw.err != nil {
		return
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, bw.err = bw.w.Write(buf[:])
}

func (bw *byteWriter) i16(v int16) {
	if bw.err != nil {
		return
	}
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(v))
	_, bw.err = bw.w.Write(buf[:])
}

func (bw *byteWriter) i32(v int32) { bw.u32(uint32(v)) }

func (bw *byteWriter) f32(v float32) { bw.u32(math.Float32bits(v)) }

func (bw *byteWriter) f64(v float64) {
	if bw.err != nil {
		return
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	_, bw.err = bw.w.Write(buf[:])
}

// str writes a 4-byte length prefix followed by the raw bytes. Unlike the
// single-byte length prefix the KSM argument section uses for VM-visible
// strings, module-container strings have no practical size limit.
func (bw *byteWriter) str(s string) {
	if bw.err != nil {
		return
	}
	bw.u32(uint32(len(s)))
	if bw.err != nil {
		return
	}
	_, bw.err = io.WriteString(bw.w, s)
}

type byteReader struct {
	r   io.Reader
	err error
}

func (br *byteReader) u8() byte {
	if br.err != nil {
		return 0
	}
	var buf [1]byte
	_, br.err = io.ReadFull(br.r, buf[:])
	return buf[0]
}

func (br *byteReader) u32() uint32 {
	if br.err != nil {
		return 0
	}
	var buf [4]byte
	_, br.err = io.ReadFull(br.r, buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}

func (br *byteReader) i16() int16 {
	if br.err != nil {
		return 0
	}
	var buf [2]byte
	_, br.err = io.ReadFull(br.r, buf[:])
	return int16(binary.LittleEndian.Uint16(buf[:]))
}

func (br *byteReader) i32() int32 { return int32(br.u32()) }

func (br *byteReader) f32() float32 { return math.Float32frombits(br.u32()) }

func (br *byteReader) f64() float64 {
	if br.err != nil {
		return 0
	}
	var buf [8]byte
	_, br.err = io.ReadFull(br.r, buf[:])
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:]))
}

func (br *byteReader) str() string {
	n := br.u32()
	if br.err != nil || n == 0 {
		return ""
	}
	buf := make([]byte, n)
	_, br.err = io.ReadFull(br.r, buf)
	return string(buf)
}
