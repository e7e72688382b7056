package objval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueHashStableAcrossEqualValues(t *testing.T) {
	a := ScalarInt(32)
	b := ScalarInt(32)
	assert.Equal(t, a.Hash(), b.Hash())
	assert.True(t, a.Equal(b))
}

func TestValueHashDistinguishesTagFromPayload(t *testing.T) {
	// Int32(5) and ScalarInt(5) share a payload but are different tags and
	// must hash differently, since the argument section must not conflate
	// the two kinds of 32-bit integer value.
	assert.NotEqual(t, Int32(5).Hash(), ScalarInt(5).Hash())
}

func TestValueHashDistinguishesPayload(t *testing.T) {
	assert.NotEqual(t, String("foo").Hash(), String("bar").Hash())
	assert.NotEqual(t, Int16(1).Hash(), Int16(2).Hash())
}

func TestValueSizeBytes(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want int
	}{
		{"null", Null(), 1},
		{"bool", Bool(true), 2},
		{"byte", Byte(9), 2},
		{"int16", Int16(1), 3},
		{"int32", Int32(1), 5},
		{"float", Float(1), 5},
		{"double", Double(1), 9},
		{"string", String("abc"), 5},
		{"argmarker", ArgMarker(), 1},
		{"scalarint", ScalarInt(1), 5},
		{"scalardouble", ScalarDouble(1), 9},
		{"boolvalue", BoolValue(false), 2},
		{"stringvalue", StringValue("hi"), 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.v.SizeBytes())
		})
	}
}

func TestValueStringDoesNotPanic(t *testing.T) {
	require.NotPanics(t, func() {
		_ = String("hello").String()
		_ = ScalarDouble(3.5).String()
		_ = Null().String()
	})
}
