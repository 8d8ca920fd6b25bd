package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantity_String(t *testing.T) {
	assert.Equal(t, "0.0000", Quantity(0).String())
	assert.Equal(t, "1.0000", NewQuantityFromInt(1).String())
	assert.Equal(t, "12.5000", NewQuantityFromFloat64(12.5).String())
	assert.Equal(t, "0.0001", Quantity(1).String())
	assert.Equal(t, "-3.2500", NewQuantityFromFloat64(-3.25).String())
}

func TestQuantity_UnmarshalJSON(t *testing.T) {
	cases := []struct {
		in   string
		want Quantity
	}{
		{`10`, NewQuantityFromInt(10)},
		{`10.5`, NewQuantityFromFloat64(10.5)},
		{`"10.5"`, NewQuantityFromFloat64(10.5)},
		{`-2.25`, NewQuantityFromFloat64(-2.25)},
		{`0.00015`, Quantity(1)}, // extra digits truncated
		{`1e2`, NewQuantityFromInt(100)},
		{`null`, 0},
	}

	for _, tc := range cases {
		var q Quantity
		require.NoError(t, json.Unmarshal([]byte(tc.in), &q), tc.in)
		assert.Equal(t, tc.want, q, tc.in)
	}
}

func TestQuantity_UnmarshalJSON_Invalid(t *testing.T) {
	var q Quantity
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &q))
	assert.Error(t, json.Unmarshal([]byte(`""`), &q))
}

func TestQuantity_MarshalRoundTrip(t *testing.T) {
	q := NewQuantityFromFloat64(7.1234)
	data, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Equal(t, "7.1234", string(data))

	var back Quantity
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, q, back)
}

func TestQuantity_MinAbsNeg(t *testing.T) {
	a := NewQuantityFromInt(3)
	b := NewQuantityFromInt(5)
	assert.Equal(t, a, a.Min(b))
	assert.Equal(t, a, b.Min(a))
	assert.Equal(t, a, a.Neg().Abs())
	assert.True(t, a.Neg().IsNegative())
}
