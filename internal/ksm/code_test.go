package ksm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeSectionSizeTracksOperandWidth(t *testing.T) {
	c := NewCodeSection(SectionMain, 2)
	c.Add(NewZeroOpInstr(0x10))
	c.Add(NewOneOpInstr(0x11, 5))
	c.Add(NewTwoOpInstr(0x12, 5, 7))

	// 1 + (1 + 2) + (1 + 4) = 9
	assert.Equal(t, uint32(9), c.Size())
}

func TestCodeSectionWriteFramesDelimiter(t *testing.T) {
	c := NewCodeSection(SectionMain, 1)
	c.Add(NewOneOpInstr(0x42, 3))

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, c.Write(w))

	b := buf.Bytes()
	require.Len(t, b, 4)
	assert.Equal(t, []byte{'%', 'M', 0x42, 3}, b)
}

func TestSectionTypeDelimiters(t *testing.T) {
	cases := map[SectionType][2]byte{
		SectionFunction:       {'%', 'F'},
		SectionInitialization: {'%', 'I'},
		SectionMain:           {'%', 'M'},
	}
	for st, want := range cases {
		a, b := st.delimiter()
		assert.Equal(t, want[0], a)
		assert.Equal(t, want[1], b)
	}
}
