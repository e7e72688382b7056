package ksm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugSectionWriteFramesDelimiterAndRangeSize(t *testing.T) {
	d := NewDebugSection(4)
	d.Add(NewDebugEntry(1, [][2]uint32{{0, 10}}))

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, d.Write(w))

	b := buf.Bytes()
	assert.Equal(t, byte('%'), b[0])
	assert.Equal(t, byte('D'), b[1])
	assert.Equal(t, byte(4), b[2])
}
