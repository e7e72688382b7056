package kolink

// NameTable is an ordered mapping from name to value T, keyed for O(n)
// hash lookup by a parallel slice of 64-bit name hashes. Indices returned
// by Insert are 1-based so that 0 can serve as a "no entry" sentinel at
// call sites that store an index rather than carrying the table around.
//
// Invariant: hashes[i] == NameHash(names[i]) for every i.
type NameTable[T any] struct {
	names  []string
	hashes []uint64
	values []T
}

// NewNameTable creates an empty name table.
func NewNameTable[T any]() *NameTable[T] {
	return &NameTable[T]{}
}

// Len returns the number of entries.
func (t *NameTable[T]) Len() int { return len(t.names) }

// Insert adds name/value if name is not already present, hashing name
// itself. It is idempotent by name: re-inserting an existing name returns
// its existing 1-based index without modifying the stored value.
func (t *NameTable[T]) Insert(name string, value T) int {
	return t.RawInsert(name, NameHash(name), value)
}

// RawInsert is Insert but trusts a caller-supplied hash instead of
// recomputing it. Used on ingest hot paths where the hash is already
// available from a prior lookup.
func (t *NameTable[T]) RawInsert(name string, hash uint64, value T) int {
	for i, h := range t.hashes {
		if h == hash {
			return i + 1
		}
	}
	t.names = append(t.names, name)
	t.hashes = append(t.hashes, hash)
	t.values = append(t.values, value)
	return len(t.names)
}

// Get returns the value stored at 1-based index idx.
func (t *NameTable[T]) Get(idx int) (T, bool) {
	var zero T
	if idx < 1 || idx > len(t.values) {
		return zero, false
	}
	return t.values[idx-1], true
}

// GetByHash looks up the value whose name hashes to hash.
func (t *NameTable[T]) GetByHash(hash uint64) (T, bool) {
	var zero T
	for i, h := range t.hashes {
		if h == hash {
			return t.values[i], true
		}
	}
	return zero, false
}

// IndexOfHash returns the 1-based index of the entry whose name hashes to
// hash, or 0 if absent.
func (t *NameTable[T]) IndexOfHash(hash uint64) int {
	for i, h := range t.hashes {
		if h == hash {
			return i + 1
		}
	}
	return 0
}

// NameAt returns the name stored at 1-based index idx.
func (t *NameTable[T]) NameAt(idx int) (string, bool) {
	if idx < 1 || idx > len(t.names) {
		return "", false
	}
	return t.names[idx-1], true
}

// ReplaceByHash overwrites the value of the entry whose name hashes to
// hash, leaving its name and position untouched. Reports whether an entry
// was found.
func (t *NameTable[T]) ReplaceByHash(hash uint64, value T) bool {
	for i, h := range t.hashes {
		if h == hash {
			t.values[i] = value
			return true
		}
	}
	return false
}

// Set overwrites the value at 1-based index idx in place, leaving its
// name and hash untouched. Used when a later stage needs to rewrite an
// entry (e.g. a NoType symbol's value_idx) without disturbing its
// position.
func (t *NameTable[T]) Set(idx int, value T) bool {
	if idx < 1 || idx > len(t.values) {
		return false
	}
	t.values[idx-1] = value
	return true
}

// Each calls fn for every entry in insertion order, with its 1-based
// index.
func (t *NameTable[T]) Each(fn func(idx int, name string, hash uint64, value T)) {
	for i := range t.names {
		fn(i+1, t.names[i], t.hashes[i], t.values[i])
	}
}

// Values returns every stored value, in insertion order.
func (t *NameTable[T]) Values() []T {
	return t.values
}
