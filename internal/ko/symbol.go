package ko

import "fmt"

// SymBind describes the linkage visibility of a symbol.
type SymBind byte

const (
	// SymBindLocal symbols are private to the module that defines them and
	// are never promoted into the master symbol table.
	SymBindLocal SymBind = iota
	// SymBindGlobal symbols are exported for other modules to reference.
	SymBindGlobal
	// SymBindExtern symbols are references to a definition expected to live
	// in another module.
	SymBindExtern
)

func (b SymBind) String() string {
	switch b {
	case SymBindLocal:
		return "Local"
	case SymBindGlobal:
		return "Global"
	case SymBindExtern:
		return "Extern"
	default:
		panic("unreachable")
	}
}

// SymType describes what kind of entity a symbol names.
type SymType byte

const (
	SymTypeNoType SymType = iota
	SymTypeFile
	SymTypeFunc
	SymTypeObject
)

func (t SymType) String() string {
	switch t {
	case SymTypeNoType:
		return "NoType"
	case SymTypeFile:
		return "File"
	case SymTypeFunc:
		return "Func"
	case SymTypeObject:
		return "Object"
	default:
		panic("unreachable")
	}
}

// Symbol is a single entry of a module's .symtab section.
//
// NameIdx indexes into the string table named by the owning symbol table's
// companion .symstrtab. ValueIdx means different things depending on Type:
// for a NoType symbol it is the 0-based index of the symbol's value in the
// module's .data section; for a Func symbol it is unused (kept at 0).
type Symbol struct {
	NameIdx    int
	ValueIdx   int
	Size       int
	Bind       SymBind
	Type       SymType
	SectionIdx int
}

func (s Symbol) String() string {
	return fmt.Sprintf("Symbol{name_idx=%d, value_idx=%d, size=%d, bind=%v, type=%v, section=%d}",
		s.NameIdx, s.ValueIdx, s.Size, s.Bind, s.Type, s.SectionIdx)
}

// SymbolTable is a module's .symtab section: an ordered, indexable list of
// symbols. Symbol indices are 0-based and correspond to relocation and
// cross-reference entries elsewhere in the module.
type SymbolTable struct {
	Name    string
	symbols []Symbol
}

// NewSymbolTable creates an empty symbol table section named name.
func NewSymbolTable(name string) *SymbolTable {
	return &SymbolTable{Name: name}
}

// Add appends a symbol and returns its 0-based index.
func (t *SymbolTable) Add(sym Symbol) int {
	t.symbols = append(t.symbols, sym)
	return len(t.symbols) - 1
}

// Symbols returns all symbols in table order.
func (t *SymbolTable) Symbols() []Symbol {
	return t.symbols
}

// Get returns the symbol at idx, or false if idx is out of range.
func (t *SymbolTable) Get(idx int) (Symbol, bool) {
	if idx < 0 || idx >= len(t.symbols) {
		return Symbol{}, false
	}
	return t.symbols[idx], true
}

// FindByNameIdx returns the first symbol whose NameIdx matches nameIdx,
// along with its table index.
func (t *SymbolTable) FindByNameIdx(nameIdx int) (Symbol, int, bool) {
	for i, sym := range t.symbols {
		if sym.NameIdx == nameIdx {
			return sym, i, true
		}
	}
	return Symbol{}, 0, false
}

// StringTable is a module's string table section (e.g. .symstrtab). It is a
// simple append-only sequence; indices are 0-based offsets into it.
type StringTable struct {
	Name    string
	strings []string
}

// NewStringTable creates an empty string table section named name.
func NewStringTable(name string) *StringTable {
	return &StringTable{Name: name}
}

// Add appends s and returns its 0-based index.
func (t *StringTable) Add(s string) int {
	t.strings = append(t.strings, s)
	return len(t.strings) - 1
}

// Get returns the string at idx, or false if idx is out of range.
func (t *StringTable) Get(idx int) (string, bool) {
	if idx < 0 || idx >= len(t.strings) {
		return "", false
	}
	return t.strings[idx], true
}

// Find returns the index of the first occurrence of s, or false if absent.
func (t *StringTable) Find(s string) (int, bool) {
	for i, v := range t.strings {
		if v == s {
			return i, true
		}
	}
	return 0, false
}

// Entries returns every string in the table, in order.
func (t *StringTable) Entries() []string {
	return t.strings
}
