package indicators

import (
	"math"

	"github.com/tmarlen/aurora/pkg/types"
)

// Greeks are the standard Black-Scholes sensitivities. Theta is per calendar
// day; Vega and Rho are per 1% move in vol and rate respectively.
type Greeks struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64
}

// BlackScholes prices a European option with the textbook closed form.
// S spot, K strike, t years to expiry, r risk-free rate, sigma volatility.
// Degenerate inputs (t<=0 or sigma<=0) collapse to intrinsic value.
func BlackScholes(S, K, t, r, sigma float64, optType types.OptionType) float64 {
	if t <= 0 || sigma <= 0 {
		if optType == types.Call {
			return math.Max(0, S-K)
		}
		return math.Max(0, K-S)
	}

	d1 := (math.Log(S/K) + (r+sigma*sigma/2)*t) / (sigma * math.Sqrt(t))
	d2 := d1 - sigma*math.Sqrt(t)

	if optType == types.Call {
		return S*normCDF(d1) - K*math.Exp(-r*t)*normCDF(d2)
	}
	return K*math.Exp(-r*t)*normCDF(-d2) - S*normCDF(-d1)
}

// BSGreeks computes delta, gamma, theta, vega and rho for the contract.
func BSGreeks(S, K, t, r, sigma float64, optType types.OptionType) Greeks {
	if t <= 0 || sigma <= 0 {
		return Greeks{}
	}

	sqrtT := math.Sqrt(t)
	d1 := (math.Log(S/K) + (r+sigma*sigma/2)*t) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	pdf := normPDF(d1)

	g := Greeks{
		Gamma: pdf / (S * sigma * sqrtT),
		Vega:  S * pdf * sqrtT / 100,
	}

	if optType == types.Call {
		g.Delta = normCDF(d1)
		g.Theta = (-S*pdf*sigma/(2*sqrtT) - r*K*math.Exp(-r*t)*normCDF(d2)) / 365
		g.Rho = K * t * math.Exp(-r*t) * normCDF(d2) / 100
	} else {
		g.Delta = normCDF(d1) - 1
		g.Theta = (-S*pdf*sigma/(2*sqrtT) + r*K*math.Exp(-r*t)*normCDF(-d2)) / 365
		g.Rho = -K * t * math.Exp(-r*t) * normCDF(-d2) / 100
	}
	return g
}

// ImpliedVol backs out the volatility that reproduces a market price via
// bisection on [0.01, 5.0], tolerance 1e-4, at most 100 iterations.
// Returns ErrInsufficientData when the price sits outside the bracket.
func ImpliedVol(price, S, K, t, r float64, optType types.OptionType) (float64, error) {
	if price <= 0 || t <= 0 {
		return 0, ErrInsufficientData
	}

	lo, hi := 0.01, 5.0
	pLo := BlackScholes(S, K, t, r, lo, optType)
	pHi := BlackScholes(S, K, t, r, hi, optType)
	if price < pLo || price > pHi {
		return 0, ErrInsufficientData
	}

	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2
		p := BlackScholes(S, K, t, r, mid, optType)
		if math.Abs(p-price) < 1e-4 {
			return mid, nil
		}
		if p < price {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2, nil
}

// ExpectedMove is the one-sigma underlying move over horizon t in years.
func ExpectedMove(S, sigma, t float64) float64 {
	if t <= 0 || sigma <= 0 {
		return 0
	}
	return S * sigma * math.Sqrt(t)
}

// normCDF is the standard normal CDF via the Abramowitz & Stegun 26.2.17
// polynomial approximation (|error| < 7.5e-8).
func normCDF(x float64) float64 {
	if x < 0 {
		return 1 - normCDF(-x)
	}
	k := 1 / (1 + 0.2316419*x)
	poly := k * (0.319381530 + k*(-0.356563782+k*(1.781477937+k*(-1.821255978+k*1.330274429))))
	return 1 - normPDF(x)*poly
}

func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}
