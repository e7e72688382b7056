package ksm

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"testing"

	"github.com/kos-tools/klinker/internal/objval"
	"github.com/stretchr/testify/require"
)

func buildSampleFile() *File {
	arg := NewArgumentSection()
	arg.Add(objval.ScalarInt(32))

	function := NewCodeSection(SectionFunction, 1)
	init := NewCodeSection(SectionInitialization, 1)
	main := NewCodeSection(SectionMain, 1)
	main.Add(NewOneOpInstr(0x01, 3))

	debug := NewDebugSection(4)
	debug.Add(NewDebugEntry(1, [][2]uint32{{0, 1}}))

	return New(arg, function, init, main, debug)
}

func TestWriteToStartsWithMagicNumber(t *testing.T) {
	f := buildSampleFile()

	var buf bytes.Buffer
	require.NoError(t, f.WriteTo(&buf))

	got := binary.LittleEndian.Uint32(buf.Bytes()[:4])
	require.Equal(t, MagicNumber, got)
}

func TestWriteGzipRoundTripsThroughDecompression(t *testing.T) {
	f := buildSampleFile()

	var compressed bytes.Buffer
	require.NoError(t, f.WriteGzip(&compressed))

	gz, err := gzip.NewReader(&compressed)
	require.NoError(t, err)
	defer gz.Close()

	decompressed, err := io.ReadAll(gz)
	require.NoError(t, err)

	var plain bytes.Buffer
	require.NoError(t, f.WriteTo(&plain))

	require.Equal(t, plain.Bytes(), decompressed)
}

func TestWriteKOSStringPanicsOnOversizedString(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	long := make([]byte, 256)
	require.Panics(t, func() { w.writeKOSString(string(long)) })
}
