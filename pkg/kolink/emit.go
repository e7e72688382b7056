package kolink

import (
	"fmt"

	"github.com/kos-tools/klinker/internal/ko"
	"github.com/kos-tools/klinker/internal/ksm"
	"github.com/kos-tools/klinker/internal/objval"
)

// emitModule lowers a reachability-ordered function list into a complete
// KSM file: every operand becomes a concrete argument-section byte
// offset, functions become a single MAIN code section (FUNCTION and
// INITIALIZATION are written out empty, matching the container's format
// even though this linker never populates them), and a single debug
// entry spans the whole image.
func emitModule(r *reachability, master *masterTables, objectData []*ObjectData) (*ksm.File, error) {
	arg := ksm.NewArgumentSection()
	if master.HasComment {
		arg.Add(objval.String(master.Comment))
	}

	lowered := make([]ksm.Instr, 0, len(r.Order))
	for _, fn := range r.Order {
		for i, instr := range fn.Instructions {
			li, err := lowerInstr(arg, master, objectData, r, fn, i, instr)
			if err != nil {
				return nil, err
			}
			lowered = append(lowered, li)
		}
	}

	addrBytes, err := arg.AddrBytes()
	if err != nil {
		return nil, errDataIndexOverflow(arg.Size())
	}

	function := ksm.NewCodeSection(ksm.SectionFunction, addrBytes)
	init := ksm.NewCodeSection(ksm.SectionInitialization, addrBytes)
	main := ksm.NewCodeSection(ksm.SectionMain, addrBytes)
	for _, instr := range lowered {
		main.Add(instr)
	}

	debug := ksm.NewDebugSection(4)
	debug.Add(ksm.NewDebugEntry(1, [][2]uint32{{0, main.Size()}}))

	return ksm.New(arg, function, init, main, debug), nil
}

func lowerInstr(arg *ksm.ArgumentSection, master *masterTables, objectData []*ObjectData, r *reachability, fn *Function, instrIdx int, instr TempInstr) (ksm.Instr, error) {
	switch instr.Arity {
	case ko.ZeroOp:
		return ksm.NewZeroOpInstr(byte(instr.Op)), nil
	case ko.OneOp:
		a0, err := lowerOperand(arg, master, objectData, r, fn, instrIdx, instr.Op0)
		if err != nil {
			return ksm.Instr{}, err
		}
		return ksm.NewOneOpInstr(byte(instr.Op), a0), nil
	case ko.TwoOp:
		a0, err := lowerOperand(arg, master, objectData, r, fn, instrIdx, instr.Op0)
		if err != nil {
			return ksm.Instr{}, err
		}
		a1, err := lowerOperand(arg, master, objectData, r, fn, instrIdx, instr.Op1)
		if err != nil {
			return ksm.Instr{}, err
		}
		return ksm.NewTwoOpInstr(byte(instr.Op), a0, a1), nil
	default:
		panic("unreachable")
	}
}

func lowerOperand(arg *ksm.ArgumentSection, master *masterTables, objectData []*ObjectData, r *reachability, fn *Function, instrIdx int, op TempOperand) (uint32, error) {
	switch op.Kind {
	case DataHash:
		v, ok := master.Data.GetByHash(op.Hash)
		if !ok {
			return 0, errInternal("%s: instruction %d references data hash %#x absent from the master data pool", fn.Name, instrIdx, op.Hash)
		}
		return arg.Add(v), nil

	case SymNameHash:
		owner := objectData[fn.ObjectDataIndex]
		if sym, ok := owner.LocalSymbolTable.get(op.Hash); ok {
			return lowerSymbolOperand(arg, master, fn, instrIdx, sym.Internal, op.Hash, fn.ObjectDataIndex, false, r)
		}
		if sym, ok := master.Symbols.GetByHash(op.Hash); ok {
			return lowerSymbolOperand(arg, master, fn, instrIdx, sym.Internal, op.Hash, fn.ObjectDataIndex, true, r)
		}
		return 0, errInvalidSymbolRef(fn.Name, instrIdx, op.Hash)

	default:
		panic("unreachable")
	}
}

func lowerSymbolOperand(arg *ksm.ArgumentSection, master *masterTables, fn *Function, instrIdx int, sym ko.Symbol, hash uint64, ownerModuleIdx int, isGlobalSym bool, r *reachability) (uint32, error) {
	switch sym.Type {
	case ko.SymTypeFunc:
		var offset int
		var ok bool
		if isGlobalSym {
			offset, ok = r.GlobalOffsets[hash]
		} else if r.LocalOffsets[ownerModuleIdx] != nil {
			offset, ok = r.LocalOffsets[ownerModuleIdx][hash]
		}
		if !ok {
			return 0, errInternal("%s: instruction %d: function hash %#x was never assigned an offset", fn.Name, instrIdx, hash)
		}
		return arg.Add(objval.String(fmt.Sprintf("@%04d", offset))), nil

	case ko.SymTypeNoType:
		v, ok := master.Data.Get(sym.ValueIdx + 1)
		if !ok {
			return 0, errInternal("%s: instruction %d: symbol data index %d out of range", fn.Name, instrIdx, sym.ValueIdx)
		}
		return arg.Add(v), nil

	default:
		return 0, errInternal("%s: instruction %d: symbol type %v cannot appear in an operand position", fn.Name, instrIdx, sym.Type)
	}
}
