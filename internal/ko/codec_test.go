package ko

import (
	"bytes"
	"testing"

	"github.com/kos-tools/klinker/internal/objval"
	"github.com/stretchr/testify/require"
)

func buildSampleFile() *File {
	f := New()

	data := f.NewDataSection(".data")
	data.Add(objval.ScalarInt(32))
	data.Add(objval.String("hello"))

	strtab := f.NewStrTab(".symstrtab")
	nameFile := strtab.Add("main.ko")
	nameNumber := strtab.Add("number")
	nameStart := strtab.Add("_start")

	symtab := f.NewSymTab(".symtab")
	symtab.Add(Symbol{NameIdx: nameFile, Type: SymTypeFile, Bind: SymBindLocal})
	symtab.Add(Symbol{NameIdx: nameNumber, Type: SymTypeNoType, Bind: SymBindGlobal, ValueIdx: 0})

	start := f.NewFuncSection("_start")
	start.Add(NewOneOp(OpPush, 0))
	start.Add(NewZeroOp(OpRet))
	symtab.Add(Symbol{NameIdx: nameStart, Type: SymTypeFunc, Bind: SymBindGlobal})

	reld := f.NewReldSection(".reld")
	reld.Add(NewReldEntry(start.SectionIndex(), 0, 0, 1))

	return f
}

func TestWriteReadRoundTrip(t *testing.T) {
	f := buildSampleFile()

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	got, err := Read(&buf)
	require.NoError(t, err)

	require.Len(t, got.DataSections(), 1)
	require.Equal(t, []objval.Value{objval.ScalarInt(32), objval.String("hello")}, got.DataSections()[0].Values())

	require.Len(t, got.StrTabs(), 1)
	name, ok := got.StrTabs()[0].Get(1)
	require.True(t, ok)
	require.Equal(t, "number", name)

	require.Len(t, got.FuncSections(), 1)
	require.Len(t, got.FuncSections()[0].Instructions, 2)

	require.Len(t, got.ReldSections(), 1)
	require.Equal(t, 1, got.ReldSections()[0].Entries[0].SymbolIndex)
}

func TestReadRejectsBadMagic(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte{0, 0, 0, 0}))
	require.Error(t, err)
}
