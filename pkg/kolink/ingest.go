package kolink

import (
	"github.com/kos-tools/klinker/internal/ko"
)

// dataMapping is the result of interning one of a module's own .data
// entries into that module's local data table: its new 1-based index
// alongside the content hash a TempOperand would carry for it.
type dataMapping struct {
	Hash  uint64
	Index int
}

// relocMap is the per-module relocation table built from .reld: for a
// given function section, instruction, and operand position, the symbol
// index that should override a literal data-index read of that operand.
type relocMap map[int]map[int][2]int // sectionIdx -> instrIdx -> [op0SymIdx+1, op1SymIdx+1], 0 meaning absent

func (m relocMap) set(sectionIdx, instrIdx, operandIdx, symIdx int) {
	funcMap, ok := m[sectionIdx]
	if !ok {
		funcMap = make(map[int][2]int)
		m[sectionIdx] = funcMap
	}
	slot := funcMap[instrIdx]
	slot[operandIdx] = symIdx + 1
	funcMap[instrIdx] = slot
}

func (m relocMap) get(sectionIdx, instrIdx, operandIdx int) (int, bool) {
	funcMap, ok := m[sectionIdx]
	if !ok {
		return 0, false
	}
	slot, ok := funcMap[instrIdx]
	if !ok {
		return 0, false
	}
	v := slot[operandIdx]
	if v == 0 {
		return 0, false
	}
	return v - 1, true
}

func buildRelocMap(file *ko.File) relocMap {
	m := make(relocMap)
	for _, reld := range file.ReldSections() {
		for _, e := range reld.Entries {
			m.set(e.SectionIndex, e.InstrIndex, e.OperandIndex, e.SymbolIndex)
		}
	}
	return m
}

// ingestState carries the mutable scratch state threaded through one
// module's ingest pass: the memoization map that ensures each source
// symbol index is translated at most once, and the handles into the raw
// KO sections being read.
type ingestState struct {
	file    *ko.File
	symtab  *ko.SymbolTable
	strtab  *ko.StringTable
	reld    relocMap
	dataIdx map[int]dataMapping // source .data index -> interned mapping

	referenced map[int]uint64 // source symbol index -> its name hash, once ingested

	obj *ObjectData

	fileCtx funcContext
}

// Ingest reads one KO module into an ObjectData. It is a pure function of
// its inputs and is safe to call concurrently for distinct modules.
func Ingest(inputFileName string, file *ko.File) (*ObjectData, error) {
	symtab, ok := file.SymTabByName(".symtab")
	if !ok {
		return nil, errMissingSection(inputFileName, ".symtab")
	}
	strtab, ok := file.StrTabByName(".symstrtab")
	if !ok {
		return nil, errMissingSection(inputFileName, ".symstrtab")
	}
	dataSection, ok := findDataSectionByName(file, ".data")
	if !ok {
		return nil, errMissingSection(inputFileName, ".data")
	}

	var comment string
	var hasComment bool
	if commentTab, ok := file.StrTabByName(".comment"); ok {
		for _, s := range commentTab.Entries() {
			if s != "" {
				comment, hasComment = s, true
				break
			}
		}
	}

	var fileSymbol ko.Symbol
	foundFileSymbol := false
	for _, sym := range symtab.Symbols() {
		if sym.Type == ko.SymTypeFile {
			fileSymbol = sym
			foundFileSymbol = true
			break
		}
	}
	if !foundFileSymbol {
		return nil, errMissingFileSymbol(inputFileName)
	}
	sourceFileName, ok := strtab.Get(fileSymbol.NameIdx)
	if !ok {
		return nil, errMissingFileSymbolName(inputFileName)
	}

	obj := newObjectData(inputFileName)
	obj.SourceFileName = sourceFileName
	obj.Comment = comment
	obj.HasComment = hasComment

	st := &ingestState{
		file:       file,
		symtab:     symtab,
		strtab:     strtab,
		reld:       buildRelocMap(file),
		dataIdx:    make(map[int]dataMapping),
		referenced: make(map[int]uint64),
		obj:        obj,
		fileCtx:    funcContext{InputFileName: inputFileName, SourceFileName: sourceFileName},
	}

	for i, v := range dataSection.Values() {
		idx := obj.DataTable.Add(v)
		st.dataIdx[i] = dataMapping{Hash: v.Hash(), Index: idx}
	}

	fileNameHash := NameHash(inputFileName)

	for _, funcSection := range file.FuncSections() {
		name, ok := file.SectionName(funcSection.SectionIndex())
		if !ok || name == "" {
			return nil, errMissingFunctionName(inputFileName, funcSection.SectionIndex())
		}

		ctx := funcContext{InputFileName: inputFileName, SourceFileName: sourceFileName, FuncName: name}

		funcNameIdx, ok := strtab.Find(name)
		if !ok {
			return nil, errFuncMissingSymbol(inputFileName, name)
		}
		funcSymbol, _, ok := symtab.FindByNameIdx(funcNameIdx)
		if !ok {
			return nil, errFuncMissingSymbol(inputFileName, name)
		}
		if funcSymbol.Type != ko.SymTypeFunc {
			return nil, errFuncSymbolInvalidType(inputFileName, name)
		}

		funcNameHash := NameHash(name)
		isGlobal := funcSymbol.Bind == ko.SymBindGlobal
		fn := &Function{Name: name, NameHash: funcNameHash, IsGlobal: isGlobal, ObjectDataIndex: 0}

		for i, instr := range funcSection.Instructions {
			temp := TempInstr{Arity: instr.Arity, Op: instr.Op}
			switch instr.Arity {
			case ko.ZeroOp:
				// no operands to translate
			case ko.OneOp:
				op, err := st.operand(ctx, funcSection.SectionIndex(), funcNameHash, i, 0, instr.Op0)
				if err != nil {
					return nil, err
				}
				temp.Op0 = op
			case ko.TwoOp:
				op0, err := st.operand(ctx, funcSection.SectionIndex(), funcNameHash, i, 0, instr.Op0)
				if err != nil {
					return nil, err
				}
				op1, err := st.operand(ctx, funcSection.SectionIndex(), funcNameHash, i, 1, instr.Op1)
				if err != nil {
					return nil, err
				}
				temp.Op0, temp.Op1 = op0, op1
			}
			fn.Instructions = append(fn.Instructions, temp)
		}

		if isGlobal {
			obj.FunctionTable.insert(fn)
		} else {
			obj.LocalFunctionTable.insert(fn)
		}
	}

	for i, sym := range symtab.Symbols() {
		if _, ok := st.referenced[i]; ok {
			continue
		}
		if sym.Bind != ko.SymBindGlobal || sym.Type == ko.SymTypeFile {
			continue
		}
		name, ok := strtab.Get(sym.NameIdx)
		if !ok {
			return nil, makeError(ErrMissingSymbolName, "%s: symbol %d has unresolved name index %d", inputFileName, i, sym.NameIdx)
		}
		nameHash := NameHash(name)

		newSym := sym
		if sym.Type == ko.SymTypeNoType && sym.Bind != ko.SymBindExtern {
			dm, ok := st.dataIdx[sym.ValueIdx]
			if !ok {
				return nil, errInvalidSymbolDataIndex(st.fileCtx, name, sym.ValueIdx)
			}
			newSym.ValueIdx = dm.Index - 1
		} else if sym.Type == ko.SymTypeFunc {
			// A function symbol's value_idx is never a data index; zero
			// it so a stray insert can't be misread as one downstream.
			newSym.ValueIdx = 0
		}

		obj.SymbolTable.insert(SymbolEntry{
			Name:          name,
			NameHash:      nameHash,
			Internal:      newSym,
			Context:       fileNameHash,
			ContextIsFunc: false,
		})
	}

	return obj, nil
}

// operand translates one instruction operand, checking the relocation
// map first and falling back to a literal data-index read.
func (st *ingestState) operand(ctx funcContext, sectionIdx int, funcNameHash uint64, instrIdx, operandIdx int, raw int) (TempOperand, error) {
	if symIdx, ok := st.reld.get(sectionIdx, instrIdx, operandIdx); ok {
		return st.symbolOperand(ctx, funcNameHash, instrIdx, symIdx)
	}
	return st.dataOperand(ctx, instrIdx, raw)
}

func (st *ingestState) dataOperand(ctx funcContext, instrIdx, dataIdx int) (TempOperand, error) {
	dm, ok := st.dataIdx[dataIdx]
	if !ok {
		return TempOperand{}, errInvalidDataIndex(ctx, instrIdx, dataIdx)
	}
	return TempOperand{Kind: DataHash, Hash: dm.Hash}, nil
}

// symbolOperand translates a relocation-resolved symbol reference,
// memoized per source symbol index so a symbol referenced by many
// instructions is only copied into the symbol table once.
func (st *ingestState) symbolOperand(ctx funcContext, funcNameHash uint64, instrIdx, symIdx int) (TempOperand, error) {
	if nameHash, ok := st.referenced[symIdx]; ok {
		return TempOperand{Kind: SymNameHash, Hash: nameHash}, nil
	}

	sym, ok := st.symtab.Get(symIdx)
	if !ok {
		return TempOperand{}, errInvalidSymbolIndex(ctx, instrIdx, symIdx)
	}
	name, ok := st.strtab.Get(sym.NameIdx)
	if !ok {
		return TempOperand{}, errMissingSymbolName(ctx, symIdx, sym.NameIdx)
	}

	if sym.Type == ko.SymTypeNoType && sym.Bind != ko.SymBindExtern {
		dm, ok := st.dataIdx[sym.ValueIdx]
		if !ok {
			return TempOperand{}, errInvalidSymbolDataIndex(ctx, name, sym.ValueIdx)
		}
		sym.ValueIdx = dm.Index - 1
	}

	nameHash := NameHash(name)
	entry := SymbolEntry{Name: name, NameHash: nameHash, Internal: sym, Context: funcNameHash, ContextIsFunc: true}

	if sym.Bind == ko.SymBindLocal {
		st.obj.LocalSymbolTable.insert(entry)
	} else {
		st.obj.SymbolTable.insert(entry)
	}
	st.referenced[symIdx] = nameHash

	return TempOperand{Kind: SymNameHash, Hash: nameHash}, nil
}

func findDataSectionByName(file *ko.File, name string) (*ko.DataSection, bool) {
	for _, s := range file.DataSections() {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}
