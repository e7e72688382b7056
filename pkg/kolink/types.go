package kolink

import (
	"github.com/kos-tools/klinker/internal/ko"
	"github.com/kos-tools/klinker/internal/objval"
)

// TempOperandKind distinguishes the two ways a not-yet-lowered instruction
// operand can resolve.
type TempOperandKind byte

const (
	// DataHash operands name a value in the (eventual) master data pool.
	DataHash TempOperandKind = iota
	// SymNameHash operands resolve through a symbol, local or global.
	SymNameHash
)

// TempOperand is an instruction operand whose final argument-section
// address cannot be computed until all modules have been ingested. It
// carries a content or name hash instead of a concrete offset.
type TempOperand struct {
	Kind TempOperandKind
	Hash uint64
}

// TempInstr is an instruction whose operands have been translated out of
// module-local data/symbol indices into hashes, but not yet lowered into
// argument-section byte offsets. The three-arity shape mirrors ko.Instr.
type TempInstr struct {
	Arity ko.Arity
	Op    ko.Opcode
	Op0   TempOperand
	Op1   TempOperand
}

// NumOperands reports how many operand slots this instruction has.
func (i TempInstr) NumOperands() int {
	switch i.Arity {
	case ko.ZeroOp:
		return 0
	case ko.OneOp:
		return 1
	case ko.TwoOp:
		return 2
	default:
		panic("unreachable")
	}
}

// Operands returns the instruction's operands, up to NumOperands of them.
func (i TempInstr) Operands() []TempOperand {
	switch i.Arity {
	case ko.ZeroOp:
		return nil
	case ko.OneOp:
		return []TempOperand{i.Op0}
	case ko.TwoOp:
		return []TempOperand{i.Op0, i.Op1}
	default:
		panic("unreachable")
	}
}

// Function is a fully-ingested function body: its call-by-name identity
// plus the module that owns it and its translated instruction stream.
type Function struct {
	Name            string
	NameHash        uint64
	IsGlobal        bool
	ObjectDataIndex int
	Instructions    []TempInstr
}

// SymbolEntry is a symbol as carried between ingest and resolution: its
// name hash, the raw symbol record from the KO container, and the scope
// it is attached to (a function, for a function-local symbol, or a file,
// for a file-scoped one).
type SymbolEntry struct {
	Name     string
	NameHash uint64
	Internal ko.Symbol
	// Context is the name-hash of the owning function (ContextIsFunc
	// true) or the owning file (ContextIsFunc false).
	Context       uint64
	ContextIsFunc bool
}

// DataTable is a deduplicated pool of typed values, keyed by content
// hash. Add(), Get() and IndexOfHash() use 1-based positions so that 0 can mean
// "no value" at call sites that store an index.
type DataTable struct {
	values     []objval.Value
	hashIndex  map[uint64]int // hash -> 1-based index
}

// NewDataTable creates an empty data table.
func NewDataTable() *DataTable {
	return &DataTable{hashIndex: make(map[uint64]int)}
}

// Add interns v, returning its 1-based index. A value with an equal
// content hash already present is reused.
func (d *DataTable) Add(v objval.Value) int {
	h := v.Hash()
	if idx, ok := d.hashIndex[h]; ok {
		return idx
	}
	d.values = append(d.values, v)
	idx := len(d.values)
	d.hashIndex[h] = idx
	return idx
}

// Get returns the value at 1-based index idx.
func (d *DataTable) Get(idx int) (objval.Value, bool) {
	if idx < 1 || idx > len(d.values) {
		return objval.Value{}, false
	}
	return d.values[idx-1], true
}

// IndexOfHash returns the 1-based index of the value hashing to h, or 0.
func (d *DataTable) IndexOfHash(h uint64) int {
	return d.hashIndex[h]
}

// GetByHash looks up the value with content hash h directly.
func (d *DataTable) GetByHash(h uint64) (objval.Value, bool) {
	idx, ok := d.hashIndex[h]
	if !ok {
		return objval.Value{}, false
	}
	return d.values[idx-1], true
}

// Len returns the number of distinct values interned.
func (d *DataTable) Len() int { return len(d.values) }

// Values returns every interned value, in insertion order.
func (d *DataTable) Values() []objval.Value { return d.values }

// symbolSet is a per-module, map-keyed collection of symbols consumed
// during resolve/emit. Unlike NameTable it supports deletion, modelling
// the "drained" ownership semantics: a symbol is considered only once.
type symbolSet struct {
	byHash map[uint64]SymbolEntry
	order  []uint64
}

func newSymbolSet() *symbolSet {
	return &symbolSet{byHash: make(map[uint64]SymbolEntry)}
}

func (s *symbolSet) insert(e SymbolEntry) {
	if _, exists := s.byHash[e.NameHash]; !exists {
		s.order = append(s.order, e.NameHash)
	}
	s.byHash[e.NameHash] = e
}

func (s *symbolSet) get(hash uint64) (SymbolEntry, bool) {
	e, ok := s.byHash[hash]
	return e, ok
}

func (s *symbolSet) delete(hash uint64) {
	delete(s.byHash, hash)
}

func (s *symbolSet) hashesInOrder() []uint64 {
	out := make([]uint64, 0, len(s.order))
	for _, h := range s.order {
		if _, ok := s.byHash[h]; ok {
			out = append(out, h)
		}
	}
	return out
}

// functionSet is the function-table analog of symbolSet.
type functionSet struct {
	byHash map[uint64]*Function
	order  []uint64
}

func newFunctionSet() *functionSet {
	return &functionSet{byHash: make(map[uint64]*Function)}
}

func (s *functionSet) insert(f *Function) {
	if _, exists := s.byHash[f.NameHash]; !exists {
		s.order = append(s.order, f.NameHash)
	}
	s.byHash[f.NameHash] = f
}

func (s *functionSet) get(hash uint64) (*Function, bool) {
	f, ok := s.byHash[hash]
	return f, ok
}

func (s *functionSet) delete(hash uint64) {
	delete(s.byHash, hash)
}

func (s *functionSet) hashesInOrder() []uint64 {
	out := make([]uint64, 0, len(s.order))
	for _, h := range s.order {
		if _, ok := s.byHash[h]; ok {
			out = append(out, h)
		}
	}
	return out
}

// ObjectData is the per-module result of ingest: everything resolution,
// reachability and emit need from one input file, with the module's
// exported (global) and file-private (local) tables kept separate.
type ObjectData struct {
	InputFileName  string
	SourceFileName string
	Comment        string
	HasComment     bool

	SymbolTable      *symbolSet
	LocalSymbolTable *symbolSet

	FunctionTable      *functionSet
	LocalFunctionTable *functionSet

	DataTable      *DataTable
	LocalDataTable *DataTable
}

func newObjectData(inputFileName string) *ObjectData {
	return &ObjectData{
		InputFileName:      inputFileName,
		SymbolTable:        newSymbolSet(),
		LocalSymbolTable:   newSymbolSet(),
		FunctionTable:      newFunctionSet(),
		LocalFunctionTable: newFunctionSet(),
		DataTable:          NewDataTable(),
		LocalDataTable:     NewDataTable(),
	}
}
