package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmarlen/aurora/pkg/types"
)

func TestBlackScholes_PutCallParity(t *testing.T) {
	cases := []struct {
		S, K, t, r, sigma float64
	}{
		{450, 450, 1.0 / 252, 0.05, 0.25},
		{450, 455, 30.0 / 365, 0.05, 0.18},
		{100, 90, 0.5, 0.03, 0.40},
		{100, 120, 1.0, 0.00, 0.60},
		{50, 50, 2.0, 0.07, 0.10},
	}
	for _, c := range cases {
		call := BlackScholes(c.S, c.K, c.t, c.r, c.sigma, types.Call)
		put := BlackScholes(c.S, c.K, c.t, c.r, c.sigma, types.Put)
		parity := c.S - c.K*math.Exp(-c.r*c.t)
		assert.InDelta(t, parity, call-put, 1e-3,
			"parity violated for S=%v K=%v t=%v", c.S, c.K, c.t)
	}
}

func TestBlackScholes_DegenerateInputs(t *testing.T) {
	// zero time collapses to intrinsic
	assert.Equal(t, 10.0, BlackScholes(110, 100, 0, 0.05, 0.25, types.Call))
	assert.Equal(t, 0.0, BlackScholes(110, 100, 0, 0.05, 0.25, types.Put))
	assert.Equal(t, 5.0, BlackScholes(95, 100, 0, 0.05, 0.25, types.Put))

	// zero vol likewise
	assert.Equal(t, 10.0, BlackScholes(110, 100, 0.5, 0.05, 0, types.Call))
}

func TestBSGreeks_Bounds(t *testing.T) {
	g := BSGreeks(450, 450, 30.0/365, 0.05, 0.25, types.Call)
	assert.Greater(t, g.Delta, 0.0)
	assert.Less(t, g.Delta, 1.0)
	assert.InDelta(t, 0.5, g.Delta, 0.1) // ATM call delta sits near one half
	assert.Greater(t, g.Gamma, 0.0)
	assert.Greater(t, g.Vega, 0.0)
	assert.Less(t, g.Theta, 0.0)

	p := BSGreeks(450, 450, 30.0/365, 0.05, 0.25, types.Put)
	assert.Less(t, p.Delta, 0.0)
	assert.Greater(t, p.Delta, -1.0)
	assert.InDelta(t, g.Gamma, p.Gamma, 1e-12) // gamma is type-free
}

func TestImpliedVol_RoundTrip(t *testing.T) {
	const sigma = 0.32
	price := BlackScholes(450, 455, 30.0/365, 0.05, sigma, types.Call)
	iv, err := ImpliedVol(price, 450, 455, 30.0/365, 0.05, types.Call)
	require.NoError(t, err)
	assert.InDelta(t, sigma, iv, 1e-2)
}

func TestImpliedVol_OutOfBracket(t *testing.T) {
	// price above the sigma=5 ceiling has no solution in the bracket
	_, err := ImpliedVol(449, 450, 455, 1.0/252, 0.05, types.Call)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = ImpliedVol(0, 450, 455, 1.0/252, 0.05, types.Call)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestExpectedMove(t *testing.T) {
	move := ExpectedMove(450, 0.25, 1.0/252)
	assert.InDelta(t, 450*0.25*math.Sqrt(1.0/252), move, 1e-12)
	assert.Zero(t, ExpectedMove(450, 0.25, 0))
	assert.Zero(t, ExpectedMove(450, 0, 1))
}

func TestNormCDF_Symmetry(t *testing.T) {
	assert.InDelta(t, 0.5, normCDF(0), 1e-7)
	for _, x := range []float64{0.5, 1, 1.96, 3} {
		assert.InDelta(t, 1.0, normCDF(x)+normCDF(-x), 1e-7)
	}
	assert.InDelta(t, 0.975, normCDF(1.96), 1e-3)
}
