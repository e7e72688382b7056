package kolink

import "github.com/kos-tools/klinker/internal/ko"

// MasterSymbolEntry is a symbol as it lives in the cross-module master
// table once resolved: the raw symbol record, the name hash of the
// function or file it belongs to, and the input file that first defined
// it. DefiningFile is tracked independently of whichever module is
// currently being merged, so a later duplicate report always names the
// true original definer rather than whichever module the merge loop
// happens to be looking at when the collision is noticed.
type MasterSymbolEntry struct {
	Internal      ko.Symbol
	Context       uint64
	ContextIsFunc bool
	DefiningFile  string
}

// masterTables accumulates the cross-module state resolution produces:
// every module's exported symbols merged into one table, every module's
// data pool merged into one deduplicated pool, and the .comment string of
// whichever module defines the entry point function.
type masterTables struct {
	Symbols    *NameTable[MasterSymbolEntry]
	Data       *DataTable
	Comment    string
	HasComment bool
}

func newMasterTables() *masterTables {
	return &masterTables{
		Symbols: NewNameTable[MasterSymbolEntry](),
		Data:    NewDataTable(),
	}
}

// resolveModule merges one module's ObjectData into the master tables:
// its data pool, by content hash, and its exported symbols, by name hash.
// A Global symbol whose name hash is already taken by another Global
// definition is a DuplicateSymbol error; a Global symbol whose name hash
// was previously only an Extern placeholder replaces that placeholder.
// An Extern symbol is recorded only if no definition, global or extern,
// already claims its name. entryPointHash identifies the entry point
// function by name hash; the module that defines it supplies the master
// comment, matching the convention that a program's top-level comment
// belongs to whichever module owns its entry point.
func resolveModule(m *masterTables, obj *ObjectData, entryPointHash uint64) error {
	dataIdx := make(map[int]int, obj.DataTable.Len())
	for i, v := range obj.DataTable.Values() {
		dataIdx[i+1] = m.Data.Add(v)
	}

	// Local NoType symbols never enter the master table, but emit reads
	// their value_idx against the master data pool, so rebase it here.
	for _, hash := range obj.LocalSymbolTable.hashesInOrder() {
		entry, _ := obj.LocalSymbolTable.get(hash)
		if entry.Internal.Type != ko.SymTypeNoType {
			continue
		}
		newIdx, ok := dataIdx[entry.Internal.ValueIdx+1]
		if !ok {
			return errInvalidSymbolDataIndex(funcContext{InputFileName: obj.InputFileName, SourceFileName: obj.SourceFileName}, entry.Name, entry.Internal.ValueIdx)
		}
		entry.Internal.ValueIdx = newIdx - 1
		obj.LocalSymbolTable.insert(entry)
	}

	for _, hash := range obj.SymbolTable.hashesInOrder() {
		entry, _ := obj.SymbolTable.get(hash)
		sym := entry.Internal

		if sym.Bind != ko.SymBindLocal && sym.Type == ko.SymTypeFunc && hash == entryPointHash {
			m.Comment = obj.Comment
			m.HasComment = obj.HasComment
		}

		if sym.Type == ko.SymTypeNoType && sym.Bind != ko.SymBindExtern {
			newIdx, ok := dataIdx[sym.ValueIdx+1]
			if !ok {
				return errInvalidSymbolDataIndex(funcContext{InputFileName: obj.InputFileName, SourceFileName: obj.SourceFileName}, entry.Name, sym.ValueIdx)
			}
			sym.ValueIdx = newIdx - 1
		} else if sym.Type == ko.SymTypeFunc {
			// A function symbol's value_idx is never a data index; zero
			// it so a stray insert can't be misread as one downstream.
			sym.ValueIdx = 0
		}

		existing, found := m.Symbols.GetByHash(hash)

		switch {
		case !found:
			// First mention of this name, whatever its bind.
			m.Symbols.RawInsert(entry.Name, hash, MasterSymbolEntry{
				Internal:      sym,
				Context:       entry.Context,
				ContextIsFunc: entry.ContextIsFunc,
				DefiningFile:  obj.InputFileName,
			})

		case sym.Bind == ko.SymBindExtern:
			// Already defined or already externed elsewhere; this
			// mention adds nothing new.

		case existing.Internal.Bind == ko.SymBindExtern:
			// A prior module only declared this name external; this
			// module supplies the real definition. The defining file
			// becomes this module's, since this is the first actual
			// definition seen.
			m.Symbols.ReplaceByHash(hash, MasterSymbolEntry{
				Internal:      sym,
				Context:       entry.Context,
				ContextIsFunc: entry.ContextIsFunc,
				DefiningFile:  obj.InputFileName,
			})

		default:
			// Two real definitions of the same global name.
			return errDuplicateSymbol(entry.Name, existing.DefiningFile, obj.InputFileName)
		}
	}

	return nil
}

// resolveExterns checks that every symbol left in the master table is a
// real definition, not a dangling Extern placeholder nobody ever
// supplied.
func resolveExterns(m *masterTables) error {
	var failure error
	m.Symbols.Each(func(_ int, name string, _ uint64, entry MasterSymbolEntry) {
		if failure != nil {
			return
		}
		if entry.Internal.Bind == ko.SymBindExtern {
			failure = errUnresolvedExternalSymbol(name)
		}
	})
	return failure
}
