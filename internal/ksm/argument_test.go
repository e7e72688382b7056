package ksm

import (
	"bytes"
	"testing"

	"github.com/kos-tools/klinker/internal/objval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgumentSectionDedupesByContentHash(t *testing.T) {
	arg := NewArgumentSection()

	a := arg.Add(objval.ScalarInt(32))
	b := arg.Add(objval.ScalarInt(32))
	c := arg.Add(objval.String("other"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, arg.Values(), 2)
}

func TestArgumentSectionAddrBytesThresholds(t *testing.T) {
	small := NewArgumentSection()
	b, err := small.AddrBytes()
	require.NoError(t, err)
	assert.Equal(t, byte(1), b)

	big := &ArgumentSection{hashToAddr: map[uint64]uint32{}, size: 70000}
	b, err = big.AddrBytes()
	require.NoError(t, err)
	assert.Equal(t, byte(3), b)

	overflowing := &ArgumentSection{hashToAddr: map[uint64]uint32{}, size: 0x1_0000_0001}
	_, err = overflowing.AddrBytes()
	require.ErrorIs(t, err, ErrDataIndexOverflow)
}

func TestArgumentSectionWriteFramesDelimiterAndAddrByte(t *testing.T) {
	arg := NewArgumentSection()
	arg.Add(objval.Bool(true))

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, arg.Write(w))

	b := buf.Bytes()
	require.GreaterOrEqual(t, len(b), 4)
	assert.Equal(t, byte('%'), b[0])
	assert.Equal(t, byte('A'), b[1])
	assert.Equal(t, byte(1), b[2]) // addr width
}
