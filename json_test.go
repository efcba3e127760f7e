package formula_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	formula "github.com/njchilds90/goformula"
)

// ============================================================
// JSON tests
// ============================================================

func TestJSON_Constant(t *testing.T) {
	s, err := formula.ToJSON[int](formula.C(2))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"constant","value":2}`, s)
}

func TestJSON_RoundTrip(t *testing.T) {
	tree := formula.NewSum[float64](
		formula.NewProduct[float64](formula.C(2.5), formula.V[float64]("x")),
		formula.NewRatio[float64](formula.V[float64]("y"), formula.NewPower[float64](formula.V[float64]("z"), formula.C(2.0))),
		formula.NewFunction[float64]("sin", formula.V[float64]("x")),
	)
	s, err := formula.ToJSON[float64](tree)
	require.NoError(t, err)

	back, err := formula.ParseJSON[float64]([]byte(s))
	require.NoError(t, err)
	assert.Equal(t, tree.Key(), back.Key())
	assert.Nil(t, back.Owner())
}

func TestJSON_ParseShape(t *testing.T) {
	n, err := formula.ParseJSON[int]([]byte(`{
		"type": "product",
		"factors": [
			{"type": "constant", "value": "3"},
			{"type": "power", "base": {"type": "variable", "name": "x"}, "exponent": {"type": "constant", "value": 2}}
		]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "3*{x}^{2}", n.String())
}

func TestJSON_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not an object", `[1,2]`},
		{"missing type", `{"name":"x"}`},
		{"unknown type", `{"type":"integral"}`},
		{"missing name", `{"type":"variable"}`},
		{"fractional int", `{"type":"constant","value":1.5}`},
		{"bad value", `{"type":"constant","value":"abc"}`},
		{"terms not array", `{"type":"sum","terms":{}}`},
		{"nested error", `{"type":"ratio","numerator":{"type":"variable","name":"x"},"denominator":{"type":"bogus"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := formula.ParseJSON[int]([]byte(tt.in))
			assert.ErrorIs(t, err, formula.ErrInvalidJSON)
		})
	}
}
