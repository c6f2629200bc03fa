package sim

import "testing"

func TestNewPipelineDefaults(t *testing.T) {
	p := NewPipeline()
	if p.SpatialSamplesX != 1 || p.SpatialSamplesY != 1 {
		t.Fatalf("default spatial samples = %dx%d, want 1x1", p.SpatialSamplesX, p.SpatialSamplesY)
	}
	if p.TemporalSamples != 1 {
		t.Fatalf("default temporal samples = %d, want 1", p.TemporalSamples)
	}
	if !p.SubFrameTemporalSampling {
		t.Fatal("subframe temporal sampling should default to on")
	}
	if p.NearClippingPlane <= 0 || p.FarClippingPlane <= p.NearClippingPlane {
		t.Fatalf("invalid default clipping planes %v..%v", p.NearClippingPlane, p.FarClippingPlane)
	}
}

func TestNewOutputDefaults(t *testing.T) {
	o := NewOutput()
	if !o.RGB {
		t.Fatal("default output should enable RGB")
	}
	if o.PMD || o.anyGeometry() || o.anyFlow() {
		t.Fatal("default output should enable nothing besides RGB")
	}
}

func TestOutputAnyGeometry(t *testing.T) {
	for _, o := range []Output{
		{EyeSpacePositions: true},
		{CustomSpacePositions: true},
		{EyeSpaceNormals: true},
		{CustomSpaceNormals: true},
		{DepthAndRange: true},
		{Indices: true},
	} {
		if !o.anyGeometry() {
			t.Fatalf("anyGeometry() = false for %+v", o)
		}
		if o.anyFlow() {
			t.Fatalf("anyFlow() = true for %+v", o)
		}
	}
}

func TestOutputAnyFlow(t *testing.T) {
	for _, o := range []Output{
		{ForwardFlow3D: true},
		{ForwardFlow2D: true},
		{BackwardFlow3D: true},
		{BackwardFlow2D: true},
	} {
		if !o.anyFlow() {
			t.Fatalf("anyFlow() = false for %+v", o)
		}
		if o.anyGeometry() {
			t.Fatalf("anyGeometry() = true for %+v", o)
		}
	}
}

func TestNewPMDDefaults(t *testing.T) {
	pmd := NewPMD()
	if pmd.ModulationFrequency != 10e6 {
		t.Fatalf("default modulation frequency = %v, want 10MHz", pmd.ModulationFrequency)
	}
	if pmd.PixelContrast <= 0 || pmd.PixelContrast > 1 {
		t.Fatalf("default pixel contrast %v out of (0,1]", pmd.PixelContrast)
	}
	if pmd.QuantumEfficiency <= 0 || pmd.QuantumEfficiency > 1 {
		t.Fatalf("default quantum efficiency %v out of (0,1]", pmd.QuantumEfficiency)
	}
	if pmd.MaxElectrons <= 0 {
		t.Fatalf("default full well capacity %d must be positive", pmd.MaxElectrons)
	}
}
