package kolink_test

import (
	"context"
	"testing"

	"github.com/kos-tools/klinker/internal/ko"
	"github.com/kos-tools/klinker/internal/objval"
	"github.com/kos-tools/klinker/pkg/kolink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// moduleBuilder assembles a minimal, well-formed KO module through the
// internal/ko builder API, the same way a real compiler front end would,
// so each scenario only has to describe what differs.
type moduleBuilder struct {
	file   *ko.File
	strtab *ko.StringTable
	symtab *ko.SymbolTable
	data   *ko.DataSection
	reld   *ko.ReldSection
}

func newModule(sourceFile string) *moduleBuilder {
	f := ko.New()
	strtab := f.NewStrTab(".symstrtab")
	symtab := f.NewSymTab(".symtab")
	data := f.NewDataSection(".data")
	reld := f.NewReldSection(".reld")

	nameIdx := strtab.Add(sourceFile)
	symtab.Add(ko.Symbol{NameIdx: nameIdx, Type: ko.SymTypeFile, Bind: ko.SymBindLocal})

	return &moduleBuilder{file: f, strtab: strtab, symtab: symtab, data: data, reld: reld}
}

func (m *moduleBuilder) addData(v objval.Value) int {
	return m.data.Add(v)
}

// addDataSymbol registers a NoType symbol bound to the data value at
// dataIdx, returning its 0-based symtab index.
func (m *moduleBuilder) addDataSymbol(name string, bind ko.SymBind, dataIdx int) int {
	nameIdx := m.strtab.Add(name)
	return m.symtab.Add(ko.Symbol{NameIdx: nameIdx, Type: ko.SymTypeNoType, Bind: bind, ValueIdx: dataIdx})
}

// addExternSymbol registers a forward-declaration placeholder, returning
// its 0-based symtab index.
func (m *moduleBuilder) addExternSymbol(name string, typ ko.SymType) int {
	nameIdx := m.strtab.Add(name)
	return m.symtab.Add(ko.Symbol{NameIdx: nameIdx, Type: typ, Bind: ko.SymBindExtern})
}

// addFunc registers a function section and its matching Func symbol,
// returning the section to append instructions to and the symbol's
// 0-based symtab index for use in relocations.
func (m *moduleBuilder) addFunc(name string, bind ko.SymBind) (*ko.FuncSection, int) {
	fs := m.file.NewFuncSection(name)
	nameIdx := m.strtab.Add(name)
	idx := m.symtab.Add(ko.Symbol{NameIdx: nameIdx, Type: ko.SymTypeFunc, Bind: bind, SectionIdx: fs.SectionIndex()})
	return fs, idx
}

func (m *moduleBuilder) relocate(sectionIdx, instrIdx, operandIdx, symIdx int) {
	m.reld.Add(ko.NewReldEntry(sectionIdx, instrIdx, operandIdx, symIdx))
}

// S1: main.ko defines _start and references the extern number; lib.ko
// defines number and only declares _start extern. Both push instructions
// in _start resolve to the same deduplicated argument-section offset.
func TestLinkResolvesGlobalAcrossModules(t *testing.T) {
	main := newModule("main.c")
	numberExtern := main.addExternSymbol("number", ko.SymTypeNoType)
	start, _ := main.addFunc("_start", ko.SymBindGlobal)
	i0 := start.Add(ko.NewOneOp(ko.OpPush, 0))
	i1 := start.Add(ko.NewOneOp(ko.OpPush, 0))
	start.Add(ko.NewZeroOp(ko.OpRet))
	main.relocate(start.SectionIndex(), i0, 0, numberExtern)
	main.relocate(start.SectionIndex(), i1, 0, numberExtern)

	lib := newModule("lib.c")
	dataIdx := lib.addData(objval.ScalarInt(32))
	lib.addDataSymbol("number", ko.SymBindGlobal, dataIdx)
	lib.addExternSymbol("_start", ko.SymTypeFunc)

	d := kolink.NewDriver(kolink.Config{})
	require.NoError(t, d.Add("main.ko", main.file))
	require.NoError(t, d.Add("lib.ko", lib.file))

	out, err := d.Link(context.Background())
	require.NoError(t, err)

	require.Len(t, out.Argument.Values(), 1)
	assert.Equal(t, objval.ScalarInt(32), out.Argument.Values()[0])

	instrs := out.Main.Instructions()
	require.Len(t, instrs, 3)
	assert.Equal(t, instrs[0].Operand[0], instrs[1].Operand[0])
}

// S2: no input module defines the configured entry point.
func TestLinkFailsOnMissingEntryPoint(t *testing.T) {
	m := newModule("m.c")
	init, _ := m.addFunc("_init", ko.SymBindGlobal)
	init.Add(ko.NewZeroOp(ko.OpRet))

	d := kolink.NewDriver(kolink.Config{})
	require.NoError(t, d.Add("m.ko", m.file))

	_, err := d.Link(context.Background())
	require.ErrorIs(t, err, kolink.ErrMissingEntryPoint)
}

// S3: a shared build requires _init; without one the link fails even
// though _start is present.
func TestLinkFailsOnMissingInitForSharedBuild(t *testing.T) {
	m := newModule("m.c")
	start, _ := m.addFunc("_start", ko.SymBindGlobal)
	start.Add(ko.NewZeroOp(ko.OpRet))

	d := kolink.NewDriver(kolink.Config{Shared: true})
	require.NoError(t, d.Add("m.ko", m.file))

	_, err := d.Link(context.Background())
	require.ErrorIs(t, err, kolink.ErrMissingInitFunction)
}

// S4: two modules both supply a real (non-extern) definition of the same
// global name. The error must name the true first definer, not whichever
// module the merge loop happened to be processing.
func TestLinkFailsOnDuplicateSymbolNamingFirstDefiner(t *testing.T) {
	a := newModule("a.c")
	a.addDataSymbol("foo", ko.SymBindGlobal, a.addData(objval.Int32(1)))

	b := newModule("b.c")
	b.addDataSymbol("foo", ko.SymBindGlobal, b.addData(objval.Int32(2)))

	d := kolink.NewDriver(kolink.Config{})
	require.NoError(t, d.Add("a.ko", a.file))
	require.NoError(t, d.Add("b.ko", b.file))

	_, err := d.Link(context.Background())
	require.ErrorIs(t, err, kolink.ErrDuplicateSymbol)
	assert.Contains(t, err.Error(), "a.ko")
	assert.Contains(t, err.Error(), "b.ko")
}

// S5: two modules each define a Local function under the same name. Since
// Local symbols never enter the master table, both bodies link and emit
// without collision.
func TestLinkPermitsLocalNameCollisionAcrossModules(t *testing.T) {
	a := newModule("a.c")
	addA, addAIdx := a.addFunc("_add", ko.SymBindLocal)
	addA.Add(ko.NewZeroOp(ko.OpRet))
	helperExtern := a.addExternSymbol("helper", ko.SymTypeFunc)
	start, _ := a.addFunc("_start", ko.SymBindGlobal)
	c0 := start.Add(ko.NewOneOp(ko.OpCall, 0))
	c1 := start.Add(ko.NewOneOp(ko.OpCall, 0))
	start.Add(ko.NewZeroOp(ko.OpRet))
	a.relocate(start.SectionIndex(), c0, 0, addAIdx)
	a.relocate(start.SectionIndex(), c1, 0, helperExtern)

	b := newModule("b.c")
	addB, addBIdx := b.addFunc("_add", ko.SymBindLocal)
	addB.Add(ko.NewZeroOp(ko.OpRet))
	helper, _ := b.addFunc("helper", ko.SymBindGlobal)
	hc := helper.Add(ko.NewOneOp(ko.OpCall, 0))
	helper.Add(ko.NewZeroOp(ko.OpRet))
	b.relocate(helper.SectionIndex(), hc, 0, addBIdx)

	d := kolink.NewDriver(kolink.Config{})
	require.NoError(t, d.Add("a.ko", a.file))
	require.NoError(t, d.Add("b.ko", b.file))

	out, err := d.Link(context.Background())
	require.NoError(t, err)

	// _start(3) + helper(2) + a._add(1) + b._add(1)
	assert.Len(t, out.Main.Instructions(), 7)
}

// S6: a module references an extern that no other module ever defines.
func TestLinkFailsOnUnresolvedExternalSymbol(t *testing.T) {
	m := newModule("m.c")
	barExtern := m.addExternSymbol("bar", ko.SymTypeNoType)
	start, _ := m.addFunc("_start", ko.SymBindGlobal)
	i0 := start.Add(ko.NewOneOp(ko.OpPush, 0))
	start.Add(ko.NewZeroOp(ko.OpRet))
	m.relocate(start.SectionIndex(), i0, 0, barExtern)

	d := kolink.NewDriver(kolink.Config{})
	require.NoError(t, d.Add("m.ko", m.file))

	_, err := d.Link(context.Background())
	require.ErrorIs(t, err, kolink.ErrUnresolvedExternalSymbol)
	assert.Contains(t, err.Error(), "bar")
}

// S7: a global function unreachable from the entry point is excluded
// from the emitted code entirely.
func TestLinkEliminatesDeadCode(t *testing.T) {
	m := newModule("m.c")
	foo, fooIdx := m.addFunc("foo", ko.SymBindGlobal)
	foo.Add(ko.NewZeroOp(ko.OpRet))
	bar, _ := m.addFunc("bar", ko.SymBindGlobal)
	bar.Add(ko.NewZeroOp(ko.OpRet))
	start, _ := m.addFunc("_start", ko.SymBindGlobal)
	c0 := start.Add(ko.NewOneOp(ko.OpCall, 0))
	start.Add(ko.NewZeroOp(ko.OpRet))
	m.relocate(start.SectionIndex(), c0, 0, fooIdx)

	d := kolink.NewDriver(kolink.Config{})
	require.NoError(t, d.Add("m.ko", m.file))

	out, err := d.Link(context.Background())
	require.NoError(t, err)

	// _start(2) + foo(1); bar is never marked reachable and is dropped.
	assert.Len(t, out.Main.Instructions(), 3)
}
