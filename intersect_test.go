package formula_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	formula "github.com/njchilds90/goformula"
)

func TestIntersect_Addition(t *testing.T) {
	tests := []struct {
		name       string
		a, b       formula.Node[int]
		common     string
		remainder1 string
		remainder2 string
	}{
		{
			name:       "shared factor",
			a:          formula.NewProduct(sym("x"), sym("y")),
			b:          formula.NewProduct(sym("x"), sym("z")),
			common:     "x",
			remainder1: "y",
			remainder2: "z",
		},
		{
			name:       "coefficients stay in remainders",
			a:          formula.NewProduct(num(2), sym("x")),
			b:          formula.NewProduct(num(3), sym("x")),
			common:     "x",
			remainder1: "2",
			remainder2: "3",
		},
		{
			name:       "identical atoms",
			a:          sym("x"),
			b:          sym("x"),
			common:     "x",
			remainder1: "1",
			remainder2: "1",
		},
		{
			name:       "several shared factors",
			a:          formula.NewProduct(sym("x"), sym("y"), sym("z")),
			b:          formula.NewProduct(sym("y"), sym("x")),
			common:     "x*y",
			remainder1: "z",
			remainder2: "1",
		},
		{
			name:       "factor common to every term of a sum",
			a:          formula.NewSum[int](formula.NewProduct(sym("x"), sym("y")), formula.NewProduct(sym("x"), sym("z"))),
			b:          sym("x"),
			common:     "x",
			remainder1: "y+z",
			remainder2: "1",
		},
		{
			name:       "identical sums",
			a:          formula.NewSum(sym("x"), num(1)),
			b:          formula.NewSum(sym("x"), num(1)),
			common:     "x+1",
			remainder1: "1",
			remainder2: "1",
		},
		{
			name:       "ratio as a factor",
			a:          formula.NewProduct(num(2), formula.NewRatio(sym("x"), sym("y"))),
			b:          formula.NewRatio(sym("x"), sym("y")),
			common:     "\\frac{x}{y}",
			remainder1: "2",
			remainder2: "1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.a.String()
			res, err := formula.Intersect(tt.a, tt.b, formula.Addition)
			require.NoError(t, err)
			require.NotNil(t, res.Common)
			assert.Equal(t, tt.common, res.Common.String())
			assert.Equal(t, tt.remainder1, res.Remainder1.String())
			assert.Equal(t, tt.remainder2, res.Remainder2.String())
			assert.Equal(t, before, tt.a.String())
			assert.Nil(t, res.Common.Owner())
		})
	}
}

func TestIntersect_Multiplication(t *testing.T) {
	tests := []struct {
		name       string
		a, b       formula.Node[int]
		common     string
		remainder1 string
		remainder2 string
	}{
		{
			name:       "powers of one base",
			a:          formula.NewPower(sym("x"), num(2)),
			b:          formula.NewPower(sym("x"), num(3)),
			common:     "x",
			remainder1: "2",
			remainder2: "3",
		},
		{
			name:       "bare base",
			a:          sym("x"),
			b:          formula.NewPower(sym("x"), sym("n")),
			common:     "x",
			remainder1: "1",
			remainder2: "n",
		},
		{
			name:       "identical products",
			a:          formula.NewProduct(sym("x"), sym("y")),
			b:          formula.NewProduct(sym("x"), sym("y")),
			common:     "x*y",
			remainder1: "1",
			remainder2: "1",
		},
		{
			name:       "identical sums",
			a:          formula.NewSum(sym("x"), num(1)),
			b:          formula.NewSum(sym("x"), num(1)),
			common:     "x+1",
			remainder1: "1",
			remainder2: "1",
		},
		{
			name:       "identical functions",
			a:          formula.NewFunction("f", sym("x")),
			b:          formula.NewFunction("f", sym("x")),
			common:     "f(x)",
			remainder1: "1",
			remainder2: "1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := formula.Intersect(tt.a, tt.b, formula.Multiplication)
			require.NoError(t, err)
			require.NotNil(t, res.Common)
			assert.Equal(t, tt.common, res.Common.String())
			assert.Equal(t, tt.remainder1, res.Remainder1.String())
			assert.Equal(t, tt.remainder2, res.Remainder2.String())
		})
	}
}

func TestIntersect_Disjoint(t *testing.T) {
	tests := []struct {
		name string
		a, b formula.Node[int]
		c    formula.Combiner
	}{
		{"different variables", sym("x"), sym("y"), formula.Addition},
		{"constant operand", num(2), sym("x"), formula.Addition},
		{"two constants", num(2), num(2), formula.Multiplication},
		{"different bases", formula.NewPower(sym("x"), num(2)), sym("y"), formula.Multiplication},
		{"different products", formula.NewProduct(sym("x"), sym("y")), sym("x"), formula.Multiplication},
		{"different sums", formula.NewSum(sym("x"), num(1)), formula.NewSum(sym("x"), num(2)), formula.Addition},
		{"no common term factor", formula.NewSum[int](formula.NewProduct(sym("x"), sym("y")), sym("z")), sym("x"), formula.Addition},
		{"sums sharing a term", formula.NewSum(sym("x"), sym("y")), formula.NewSum(sym("x"), sym("z")), formula.Multiplication},
		{"ratio and function", formula.NewRatio(sym("x"), sym("y")), formula.NewFunction("f", sym("x")), formula.Addition},
		{"power and function", formula.NewPower(sym("x"), num(2)), formula.NewFunction("f", sym("x")), formula.Multiplication},
		{"functions of different arguments", formula.NewFunction("f", sym("x")), formula.NewFunction("f", sym("y")), formula.Addition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := formula.Intersect(tt.a, tt.b, tt.c)
			require.NoError(t, err)
			assert.Nil(t, res.Common)
			assert.Equal(t, tt.a.String(), res.Remainder1.String())
			assert.Equal(t, tt.b.String(), res.Remainder2.String())
		})
	}
}

func TestIntersect_Malformed(t *testing.T) {
	_, err := formula.Intersect(nil, sym("x"), formula.Addition)
	assert.ErrorIs(t, err, formula.ErrMalformedIntersect)

	_, err = formula.Intersect(sym("x"), sym("x"), formula.Combiner(9))
	assert.ErrorIs(t, err, formula.ErrMalformedIntersect)
}

func TestCollect_ProductOfSumsSharingATerm(t *testing.T) {
	f := formula.NewFormula[int](formula.NewProduct[int](
		formula.NewSum(sym("x"), num(1)),
		formula.NewSum(sym("x"), num(2)),
	))
	require.NoError(t, f.Collect())
	assert.Equal(t, "(1+x)*(2+x)", f.String())

	v, err := f.NEvaluate(map[string]int{"x": 3})
	require.NoError(t, err)
	assert.Equal(t, 20, v)
}
