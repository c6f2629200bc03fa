package sim

import (
	"math"
	"testing"
)

// roundTrip simulates the full four phase measurement of a target at
// distance d and demodulates the result.
func roundTrip(d, energy, contrast, modFreq float64) PMDResult {
	var dAB, dApB [4]float64
	shift := PhaseShift(2*d, modFreq)
	for phase := 0; phase < 4; phase++ {
		a, b := PhaseEnergies(energy, contrast, phase, shift)
		ea := Electrons(a, 880, 0.8)
		eb := Electrons(b, 880, 0.8)
		dAB[phase] = ea - eb
		dApB[phase] = ea + eb
	}
	return Demodulate(dAB, dApB, modFreq)
}

func TestUnambiguousRange(t *testing.T) {
	got := UnambiguousRange(10e6)
	want := SpeedOfLight / 2e7
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("UnambiguousRange(10MHz) = %v, want %v", got, want)
	}
	if want < 14.98 || want > 15.0 {
		t.Fatalf("UnambiguousRange(10MHz) = %v, expected just below 15m", want)
	}
}

func TestDemodulateRoundTrip(t *testing.T) {
	result := roundTrip(5, 1e-12, 0.75, 10e6)
	if math.Abs(result.Range-5) > 1e-9 {
		t.Fatalf("range = %.12f, want 5", result.Range)
	}
	if result.Amplitude <= 0 {
		t.Fatalf("amplitude = %v, want > 0", result.Amplitude)
	}
	if result.Intensity <= 0 {
		t.Fatalf("intensity = %v, want > 0", result.Intensity)
	}
}

func TestDemodulatePhaseWrapping(t *testing.T) {
	// A target beyond the unambiguous range aliases back into it.
	result := roundTrip(20, 1e-12, 0.75, 10e6)
	want := 20 - UnambiguousRange(10e6)
	if math.Abs(result.Range-want) > 1e-9 {
		t.Fatalf("range = %.12f, want %.12f", result.Range, want)
	}
	if want < 5.0 || want > 5.02 {
		t.Fatalf("wrapped range %v outside expected window around 5.01m", want)
	}
}

func TestPhaseEnergiesConserveEnergy(t *testing.T) {
	for phase := 0; phase < 4; phase++ {
		a, b := PhaseEnergies(2.0, 0.75, phase, 1.234)
		if math.Abs(a+b-2.0) > 1e-12 {
			t.Fatalf("phase %d: a+b = %v, want 2", phase, a+b)
		}
		if a < 0 || b < 0 {
			t.Fatalf("phase %d: negative energy a=%v b=%v", phase, a, b)
		}
	}
}

func TestClampElectrons(t *testing.T) {
	if got := ClampElectrons(2e5, 100000); got != 100000 {
		t.Fatalf("ClampElectrons(2e5) = %v, want full well 100000", got)
	}
	if got := ClampElectrons(-3, 100000); got != 0 {
		t.Fatalf("ClampElectrons(-3) = %v, want 0", got)
	}
	if got := ClampElectrons(42, 100000); got != 42 {
		t.Fatalf("ClampElectrons(42) = %v, want 42", got)
	}
}

func TestShotNoiseStaysInWell(t *testing.T) {
	for _, sample := range []float64{-10, -1, 0, 1, 10} {
		got := ShotNoise(99990, 100000, sample)
		if got < 0 || got > 100000 {
			t.Fatalf("ShotNoise sample %v escaped [0, full well]: %v", sample, got)
		}
	}
}

func TestLightIntensity(t *testing.T) {
	// A 1W isotropic point light emits into 4 pi steradians.
	got := lightIntensity(1, false, 0)
	want := 1e3 / (4 * math.Pi)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("point light intensity = %v, want %v", got, want)
	}
	// A spot light concentrates the same power into its cone.
	spot := lightIntensity(1, true, 90)
	if spot <= got {
		t.Fatalf("spot intensity %v should exceed isotropic %v", spot, got)
	}
}
