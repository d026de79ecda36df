package decay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntensity_Exponential(t *testing.T) {
	r := Rates{Type: Exponential, Rho: 0.1, IntensityMin: 0.01}
	got := Intensity(1.0, r)
	require.InDelta(t, 0.9, got, 1e-9)
}

func TestIntensity_Linear(t *testing.T) {
	r := Rates{Type: Linear, Rho: 0.1, IntensityMin: 0.01}
	got := Intensity(0.5, r)
	require.InDelta(t, 0.4, got, 1e-9)
}

func TestIntensity_ClampsToFloor(t *testing.T) {
	r := Rates{Type: Linear, Rho: 0.5, IntensityMin: 0.1}
	got := Intensity(0.15, r)
	require.Equal(t, 0.1, got)
}

func TestIntensity_AtOrBelowFloorIsNoop(t *testing.T) {
	r := Rates{Type: Exponential, Rho: 0.5, IntensityMin: 0.2}
	require.Equal(t, 0.2, Intensity(0.2, r))
	require.Equal(t, 0.1, Intensity(0.1, r))
}

func TestInhibition_DecaysTowardZero(t *testing.T) {
	r := Rates{KGamma: 0.2}
	got := Inhibition(1.0, r)
	require.InDelta(t, 0.8, got, 1e-9)
}

func TestInhibition_NeverNegative(t *testing.T) {
	r := Rates{KGamma: 1.5}
	require.Equal(t, 0.0, Inhibition(1.0, r))
}

func TestDefaultRates(t *testing.T) {
	r := DefaultRates()
	require.Equal(t, Exponential, r.Type)
	require.Equal(t, 0.05, r.Rho)
	require.Equal(t, 0.08, r.KGamma)
	require.Equal(t, 0.01, r.IntensityMin)
}
