package kolink

import "github.com/cespare/xxhash/v2"

// NameHash hashes a name (symbol name, function name, file name, comment
// string...) into the 64-bit space every name table and cross-module
// reference is keyed by.
func NameHash(name string) uint64 {
	return xxhash.Sum64String(name)
}
