package kolink

import (
	"fmt"

	"github.com/kos-tools/klinker/pkg/utils"
)

// Error is a sentinel error value identifying a class of link failure.
// Wrapping it with fmt.Errorf("%w: ...", err, ...) preserves errors.Is
// against the sentinel while attaching file/function/argument context.
type Error error

func makeError(err Error, message string, args ...interface{}) Error {
	return utils.MakeError(err, message, args...)
}

// Structural input errors. These surface before a module's contents can
// even be interpreted.
var (
	ErrInvalidPath           Error = fmt.Errorf("invalid input path")
	ErrStringConversion      Error = fmt.Errorf("string conversion failure")
	ErrIOError               Error = fmt.Errorf("I/O error")
	ErrFileReadError         Error = fmt.Errorf("file read error")
	ErrMissingSection        Error = fmt.Errorf("missing required section")
	ErrMissingFileSymbol     Error = fmt.Errorf("missing FILE symbol")
	ErrMissingFileSymbolName Error = fmt.Errorf("FILE symbol has no name")
	ErrMissingFunctionName   Error = fmt.Errorf("function section has no name")
)

// Per-module processing errors, wrapped with file or function context by
// the ingest pass that discovers them.
var (
	ErrMissingName             Error = fmt.Errorf("missing name")
	ErrInvalidDataIndex        Error = fmt.Errorf("invalid data index")
	ErrInvalidSymbolIndex      Error = fmt.Errorf("invalid symbol index")
	ErrMissingSymbolName       Error = fmt.Errorf("symbol has no name")
	ErrInvalidSymbolDataIndex  Error = fmt.Errorf("invalid symbol data index")
	ErrDuplicateSymbol         Error = fmt.Errorf("duplicate symbol")
	ErrFuncMissingSymbol       Error = fmt.Errorf("function has no matching symbol")
	ErrFuncSymbolInvalidType   Error = fmt.Errorf("function symbol has the wrong type")
)

// Global link errors, surfaced during resolution, reachability, or emit.
var (
	ErrUnresolvedExternalSymbol Error = fmt.Errorf("unresolved external symbol")
	ErrMissingEntryPoint        Error = fmt.Errorf("missing entry point")
	ErrMissingInitFunction      Error = fmt.Errorf("missing _init function")
	ErrInvalidSymbolRef         Error = fmt.Errorf("invalid symbol reference")
	ErrDataIndexOverflow        Error = fmt.Errorf("argument section address overflow")
)

// ErrInternal marks an invariant violation: a state the core's own logic
// should make unreachable. It is never caught or retried by the driver.
var ErrInternal Error = fmt.Errorf("internal linker error")

func errInvalidPath(path string, cause error) error {
	return makeError(ErrInvalidPath, "%s: %v", path, cause)
}

func errIOError(path string, cause error) error {
	return makeError(ErrIOError, "%s: %v", path, cause)
}

func errMissingSection(file, section string) error {
	return makeError(ErrMissingSection, "%s: missing %s section", file, section)
}

func errMissingFileSymbol(file string) error {
	return makeError(ErrMissingFileSymbol, "%s: no FILE-type symbol found in .symtab", file)
}

func errMissingFileSymbolName(file string) error {
	return makeError(ErrMissingFileSymbolName, "%s: FILE symbol's name_idx does not resolve", file)
}

func errMissingFunctionName(file string, sectionIdx int) error {
	return makeError(ErrMissingFunctionName, "%s: function section %d has no section name", file, sectionIdx)
}

// funcContext identifies where in a module a per-instruction error
// occurred, matching the {input_file_name, source_file_name, func_name}
// context the spec requires on instruction-level errors.
type funcContext struct {
	InputFileName  string
	SourceFileName string
	FuncName       string
}

func (c funcContext) String() string {
	return fmt.Sprintf("%s (%s), function %s", c.InputFileName, c.SourceFileName, c.FuncName)
}

func errInvalidDataIndex(ctx funcContext, instrIdx, dataIdx int) error {
	return makeError(ErrInvalidDataIndex, "%s: instruction %d references invalid data index %d", ctx, instrIdx, dataIdx)
}

func errInvalidSymbolIndex(ctx funcContext, instrIdx, symIdx int) error {
	return makeError(ErrInvalidSymbolIndex, "%s: instruction %d references invalid symbol index %d", ctx, instrIdx, symIdx)
}

func errMissingSymbolName(ctx funcContext, symIdx, nameIdx int) error {
	return makeError(ErrMissingSymbolName, "%s: symbol %d has unresolved name index %d", ctx, symIdx, nameIdx)
}

func errInvalidSymbolDataIndex(ctx funcContext, name string, idx int) error {
	return makeError(ErrInvalidSymbolDataIndex, "%s: symbol %q has invalid data index %d", ctx, name, idx)
}

func errDuplicateSymbol(name, originalFile, duplicateFile string) error {
	return makeError(ErrDuplicateSymbol, "%q already defined in %s, duplicate definition in %s", name, originalFile, duplicateFile)
}

func errFuncMissingSymbol(file, funcName string) error {
	return makeError(ErrFuncMissingSymbol, "%s: no symbol named %q found for function section", file, funcName)
}

func errFuncSymbolInvalidType(file, funcName string) error {
	return makeError(ErrFuncSymbolInvalidType, "%s: symbol %q for function section is not of type Func", file, funcName)
}

func errUnresolvedExternalSymbol(name string) error {
	return makeError(ErrUnresolvedExternalSymbol, "%q has no definition in any input module", name)
}

func errMissingEntryPoint(name string) error {
	return makeError(ErrMissingEntryPoint, "entry point %q not found in any input module", name)
}

func errMissingInitFunction() error {
	return makeError(ErrMissingInitFunction, "shared build requires an _init function but none was found")
}

func errInvalidSymbolRef(funcName string, instrIdx int, hash uint64) error {
	return makeError(ErrInvalidSymbolRef, "function %s, instruction %d: symbol hash %#x did not resolve during emit", funcName, instrIdx, hash)
}

func errDataIndexOverflow(size uint64) error {
	return makeError(ErrDataIndexOverflow, "argument section size %d bytes requires more than 4 address bytes", size)
}

func errInternal(message string, args ...interface{}) error {
	return makeError(ErrInternal, message, args...)
}
