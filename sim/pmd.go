package sim

import (
	"math"
)

// Physical constants used by the PMD sensor model.
const (
	// SpeedOfLight in m/s.
	SpeedOfLight = 299792458.0
	// PlanckTimesC is the Planck constant times the speed of light, in J*m.
	PlanckTimesC = 1.98644586e-25
)

// UnambiguousRange returns the maximum distance a PMD camera with the given
// modulation frequency can measure without phase wrapping.
func UnambiguousRange(modulationFrequency float64) float64 {
	return SpeedOfLight / (2 * modulationFrequency)
}

// PhaseShift returns the phase difference between emitted and received
// modulated light for a round-trip optical path of the given length in
// meters.
func PhaseShift(pathLength, modulationFrequency float64) float64 {
	return 2 * math.Pi * pathLength * modulationFrequency / SpeedOfLight
}

// PhaseEnergies splits received energy into the two quadrature components
// (A, B) accumulated by a PMD pixel during subframe phaseIndex in {0,1,2,3}.
// The demodulation phase offset is phaseIndex*pi/2; contrast is the device's
// achievable demodulation contrast in [0,1].
func PhaseEnergies(energy, contrast float64, phaseIndex int, phaseShift float64) (a, b float64) {
	tau := float64(phaseIndex) * math.Pi / 2
	c := contrast * math.Cos(tau+phaseShift)
	a = energy / 2 * (1 + c)
	b = energy / 2 * (1 - c)
	return a, b
}

// Electrons converts received energy in Joule to a photoelectron count for
// light of the given wavelength in nanometers and the given quantum
// efficiency.
func Electrons(energy, wavelengthNM, quantumEfficiency float64) float64 {
	return quantumEfficiency * wavelengthNM * 1e-9 * energy / PlanckTimesC
}

// ClampElectrons limits an electron count to the sensor's full well
// capacity.
func ClampElectrons(electrons float64, maxElectrons int) float64 {
	if electrons > float64(maxElectrons) {
		return float64(maxElectrons)
	}
	if electrons < 0 {
		return 0
	}
	return electrons
}

// ShotNoise perturbs an electron count with an approximate shot-noise term:
// sqrt(electrons) times a unit-normal sample. The result is clamped to
// [0, maxElectrons].
func ShotNoise(electrons float64, maxElectrons int, normalSample float64) float64 {
	return ClampElectrons(electrons+math.Sqrt(electrons)*normalSample, maxElectrons)
}

// PMDResult is the demodulated per-pixel output of a four-phase PMD
// measurement.
type PMDResult struct {
	// Range in meters, wrapped into [0, UnambiguousRange).
	Range float64
	// Amplitude of the correlation signal.
	Amplitude float64
	// Mean incident intensity.
	Intensity float64
}

// Demodulate combines the four phase measurements of one pixel into range,
// amplitude and intensity using the standard four-phase AMCW combination.
// dAB holds the A-B digital numbers and dApB the A+B digital numbers per
// phase index.
func Demodulate(dAB, dApB [4]float64, modulationFrequency float64) PMDResult {
	phase := math.Atan2(dAB[3]-dAB[1], dAB[0]-dAB[2])
	if phase < 0 {
		phase += 2 * math.Pi
	}
	rng := phase / (2 * math.Pi) * UnambiguousRange(modulationFrequency)
	amplitude := math.Hypot(dAB[3]-dAB[1], dAB[0]-dAB[2]) / 2
	intensity := (dApB[0] + dApB[1] + dApB[2] + dApB[3]) / 4
	return PMDResult{Range: rng, Amplitude: amplitude, Intensity: intensity}
}

// lightIntensity converts a light source power in Watt to an intensity in
// mW/sr, dividing by the solid angle the light emits into: the outer cone
// for spot lights, the full sphere otherwise.
func lightIntensity(power float64, isSpot bool, outerConeAngleDegrees float64) float64 {
	intensity := power * 1e3
	if isSpot {
		apertureAngle := outerConeAngleDegrees * math.Pi / 180
		solidAngle := 2 * math.Pi * (1 - math.Cos(apertureAngle/2))
		return intensity / solidAngle
	}
	return intensity / (4 * math.Pi)
}
