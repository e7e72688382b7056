package kolink

import "github.com/kos-tools/klinker/internal/ko"

// reachability is the result of the mark phase: the ordered list of
// functions to emit, and the instruction-offset each one was assigned.
type reachability struct {
	Order          []*Function
	GlobalOffsets  map[uint64]int
	LocalOffsets   []map[uint64]int // indexed by ObjectDataIndex
}

// findRoots locates the link's root functions among every module's global
// function table: the module initializer "_init" and the configured entry
// point. _init is a root whenever it exists and is required when shared
// is true. The entry point is a root only for a non-shared (executable)
// build, where it is always required.
func findRoots(byHash map[uint64]*Function, initHash, entryPointHash uint64, entryPointName string, shared bool) (init, start *Function, err error) {
	init, hasInit := byHash[initHash]
	if !hasInit && shared {
		return nil, nil, errMissingInitFunction()
	}
	if !hasInit {
		init = nil
	}

	if shared {
		return init, nil, nil
	}

	start, hasStart := byHash[entryPointHash]
	if !hasStart {
		return nil, nil, errMissingEntryPoint(entryPointName)
	}
	return init, start, nil
}

// resolveReachability runs the mark phase from the link's roots and
// assigns every reachable function an instruction offset. It returns the
// functions to emit in the spec's emission order: _init first if present,
// then the entry point if present, then every other reachable global in
// first-discovery order, then every reachable local grouped by owning
// module in module-input order.
func resolveReachability(objectData []*ObjectData, globalByHash map[uint64]*Function, init, start *Function) *reachability {
	visitedGlobal := make(map[uint64]bool)
	var globalOrder []uint64

	localVisited := make([]map[uint64]bool, len(objectData))
	localOrder := make([][]uint64, len(objectData))

	if init != nil {
		visitedGlobal[init.NameHash] = true
	}
	if start != nil {
		visitedGlobal[start.NameHash] = true
	}

	var mark func(fn *Function)
	mark = func(fn *Function) {
		for _, instr := range fn.Instructions {
			for _, op := range instr.Operands() {
				if op.Kind != SymNameHash {
					continue
				}

				owner := objectData[fn.ObjectDataIndex]
				if sym, ok := owner.LocalSymbolTable.get(op.Hash); ok && sym.Internal.Type == ko.SymTypeFunc {
					modIdx := fn.ObjectDataIndex
					if localVisited[modIdx] == nil {
						localVisited[modIdx] = make(map[uint64]bool)
					}
					if localVisited[modIdx][op.Hash] {
						continue
					}
					localVisited[modIdx][op.Hash] = true
					localOrder[modIdx] = append(localOrder[modIdx], op.Hash)
					if target, ok := owner.LocalFunctionTable.get(op.Hash); ok {
						mark(target)
					}
					continue
				}

				if visitedGlobal[op.Hash] {
					continue
				}
				if target, ok := globalByHash[op.Hash]; ok {
					visitedGlobal[op.Hash] = true
					globalOrder = append(globalOrder, op.Hash)
					mark(target)
				}
			}
		}
	}

	if init != nil {
		mark(init)
	}
	if start != nil && start != init {
		mark(start)
	}

	var order []*Function
	if init != nil {
		order = append(order, init)
	}
	if start != nil && start != init {
		order = append(order, start)
	}
	for _, hash := range globalOrder {
		if fn, ok := globalByHash[hash]; ok {
			order = append(order, fn)
		}
	}
	for modIdx := range objectData {
		for _, hash := range localOrder[modIdx] {
			if fn, ok := objectData[modIdx].LocalFunctionTable.get(hash); ok {
				order = append(order, fn)
			}
		}
	}

	globalOffsets := make(map[uint64]int)
	localOffsets := make([]map[uint64]int, len(objectData))
	offset := 0
	for _, fn := range order {
		if fn.IsGlobal {
			globalOffsets[fn.NameHash] = offset
		} else {
			if localOffsets[fn.ObjectDataIndex] == nil {
				localOffsets[fn.ObjectDataIndex] = make(map[uint64]int)
			}
			localOffsets[fn.ObjectDataIndex][fn.NameHash] = offset
		}
		offset += len(fn.Instructions)
	}

	return &reachability{Order: order, GlobalOffsets: globalOffsets, LocalOffsets: localOffsets}
}
