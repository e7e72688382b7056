// Package ko implements the in-memory container for the relocatable
// object-module format ("KO") that the linker consumes: symbol and string
// tables, data pools, function sections, and relocation tables, plus a
// builder API for constructing modules and a simple binary codec for
// reading them back off disk.
package ko

import (
	"fmt"

	"github.com/kos-tools/klinker/internal/objval"
)

// DataValue is the typed value stored in a module's data section.
type DataValue = objval.Value

// File is a single KO object module, held as a flat collection of named
// sections. Sections are addressed by name (for the builder and for
// symbol/section lookups) and by the 0-based index they were registered
// under (for relocation entries and symbol section references).
type File struct {
	dataSections []*DataSection
	funcSections []*FuncSection
	symTabs      []*SymbolTable
	strTabs      []*StringTable
	reldSections []*ReldSection

	sectionOrder []string // section name in registration order, indexed by section index
}

// New creates an empty KO module.
func New() *File {
	return &File{}
}

func (f *File) nextSectionIndex() int {
	return len(f.sectionOrder)
}

// NewDataSection allocates and registers a new data section named name.
func (f *File) NewDataSection(name string) *DataSection {
	s := &DataSection{Name: name, sectionIndex: f.nextSectionIndex()}
	f.sectionOrder = append(f.sectionOrder, name)
	f.dataSections = append(f.dataSections, s)
	return s
}

// NewFuncSection allocates and registers a new function section named name.
func (f *File) NewFuncSection(name string) *FuncSection {
	s := &FuncSection{Name: name, sectionIndex: f.nextSectionIndex()}
	f.sectionOrder = append(f.sectionOrder, name)
	f.funcSections = append(f.funcSections, s)
	return s
}

// NewSymTab allocates and registers a new symbol table named name.
func (f *File) NewSymTab(name string) *SymbolTable {
	f.sectionOrder = append(f.sectionOrder, name)
	s := NewSymbolTable(name)
	f.symTabs = append(f.symTabs, s)
	return s
}

// NewStrTab allocates and registers a new string table named name.
func (f *File) NewStrTab(name string) *StringTable {
	f.sectionOrder = append(f.sectionOrder, name)
	s := NewStringTable(name)
	f.strTabs = append(f.strTabs, s)
	return s
}

// NewReldSection allocates and registers a new relocation section named
// name.
func (f *File) NewReldSection(name string) *ReldSection {
	f.sectionOrder = append(f.sectionOrder, name)
	s := &ReldSection{Name: name}
	f.reldSections = append(f.reldSections, s)
	return s
}

// DataSections returns every data section in registration order.
func (f *File) DataSections() []*DataSection { return f.dataSections }

// FuncSections returns every function section in registration order.
func (f *File) FuncSections() []*FuncSection { return f.funcSections }

// SymTabs returns every symbol table in registration order.
func (f *File) SymTabs() []*SymbolTable { return f.symTabs }

// StrTabs returns every string table in registration order.
func (f *File) StrTabs() []*StringTable { return f.strTabs }

// ReldSections returns every relocation section in registration order.
func (f *File) ReldSections() []*ReldSection { return f.reldSections }

// SectionName returns the name a section was registered under, given its
// 0-based section index.
func (f *File) SectionName(index int) (string, bool) {
	if index < 0 || index >= len(f.sectionOrder) {
		return "", false
	}
	return f.sectionOrder[index], true
}

// DataSectionByIndex returns the data section registered under index.
func (f *File) DataSectionByIndex(index int) (*DataSection, bool) {
	for _, s := range f.dataSections {
		if s.sectionIndex == index {
			return s, true
		}
	}
	return nil, false
}

// StrTabByName returns the string table named name.
func (f *File) StrTabByName(name string) (*StringTable, bool) {
	for _, s := range f.strTabs {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// SymTabByName returns the symbol table named name.
func (f *File) SymTabByName(name string) (*SymbolTable, bool) {
	for _, s := range f.symTabs {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// String returns a short single-line debug rendering of the module.
func (f *File) String() string {
	return fmt.Sprintf("File{data=%d, func=%d, sym=%d, str=%d, reld=%d}",
		len(f.dataSections), len(f.funcSections), len(f.symTabs), len(f.strTabs), len(f.reldSections))
}

// RelocationFor looks up an overriding symbol index for a given
// (sectionIdx, instrIdx, operandIdx) slot across all of the module's
// relocation sections. It returns false if no relocation targets that slot.
func (f *File) RelocationFor(sectionIdx, instrIdx, operandIdx int) (int, bool) {
	for _, reld := range f.reldSections {
		for _, e := range reld.Entries {
			if e.SectionIndex == sectionIdx && e.InstrIndex == instrIdx && e.OperandIndex == operandIdx {
				return e.SymbolIndex, true
			}
		}
	}
	return 0, false
}
