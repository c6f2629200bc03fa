package sim

import (
	"strings"
	"testing"
)

func TestGenerateVariantResolvesAllMarkers(t *testing.T) {
	key := VariantKey{
		LightSources:        2,
		OutputRGB:           true,
		OutputPMD:           true,
		OutputDepthAndRange: true,
		NormalMapping:       true,
		SubFrames:           4,
		WeightsWidth:        3,
		WeightsHeight:       3,
	}
	for kind := programShadowMap; kind <= programPostprocLensDistortion; kind++ {
		src := generateVariant(kind, key)
		if src.vertex == "" || src.fragment == "" {
			t.Fatalf("%s: empty generated source", kind)
		}
		if strings.Contains(src.vertex, "$") {
			t.Errorf("%s: unresolved marker in vertex shader", kind)
		}
		if strings.Contains(src.fragment, "$") {
			t.Errorf("%s: unresolved marker in fragment shader", kind)
		}
	}
}

func TestGenerateVariantIsDeterministic(t *testing.T) {
	key := VariantKey{OutputRGB: true, SubFrames: 1}
	a := generateVariant(programLight, key)
	b := generateVariant(programLight, key)
	if a.vertex != b.vertex || a.fragment != b.fragment {
		t.Fatal("identical keys produced different sources")
	}
}

func TestOutputLocationsAreSequential(t *testing.T) {
	key := VariantKey{
		OutputRGB:           true,
		OutputPMD:           true,
		OutputDepthAndRange: true,
	}
	subs := key.substitutions()
	if subs["$OUTPUT_RGB_LOCATION$"] != "0" {
		t.Errorf("rgb location = %s, want 0", subs["$OUTPUT_RGB_LOCATION$"])
	}
	if subs["$OUTPUT_PMD_LOCATION$"] != "1" {
		t.Errorf("pmd location = %s, want 1", subs["$OUTPUT_PMD_LOCATION$"])
	}
	// Locations skip disabled outputs between pmd and depth-and-range.
	if subs["$OUTPUT_DEPTH_AND_RANGE_LOCATION$"] != "2" {
		t.Errorf("depth-and-range location = %s, want 2",
			subs["$OUTPUT_DEPTH_AND_RANGE_LOCATION$"])
	}
	if subs["$OUTPUT_INDICES_LOCATION$"] != "-1" {
		t.Errorf("disabled output location = %s, want -1", subs["$OUTPUT_INDICES_LOCATION$"])
	}
	if subs["$OUTPUT_INDICES_DECL$"] != "" {
		t.Errorf("disabled output has declaration %q", subs["$OUTPUT_INDICES_DECL$"])
	}
	if !strings.Contains(subs["$OUTPUT_DEPTH_AND_RANGE_DECL$"], "@location(2)") {
		t.Errorf("depth-and-range declaration %q lacks @location(2)",
			subs["$OUTPUT_DEPTH_AND_RANGE_DECL$"])
	}
}

func TestBackwardVisibilityFlag(t *testing.T) {
	key := VariantKey{TwoInputs: true, OutputBackwardFlow2D: true}
	if key.substitutions()["$OUTPUT_BACKWARDVISIBILITY$"] != "true" {
		t.Fatal("backward visibility should be on for backward flow with two inputs")
	}
	key = VariantKey{TwoInputs: true, OutputForwardFlow2D: true}
	if key.substitutions()["$OUTPUT_BACKWARDVISIBILITY$"] != "false" {
		t.Fatal("backward visibility should be off without backward flow")
	}
}

func TestIndirectLightGatherMarkers(t *testing.T) {
	key := VariantKey{OutputRGB: true, ReflectiveShadowMaps: true, SubFrames: 1}
	src := generateVariant(programLight, key)
	if !strings.Contains(src.fragment, "fn indirect_light") {
		t.Fatal("light fragment with reflective shadow maps lacks the gather function")
	}
	if !strings.Contains(src.fragment, "@binding(10) var rsm_radiances") {
		t.Fatal("light fragment lacks the virtual point light bindings")
	}

	key.ReflectiveShadowMaps = false
	src = generateVariant(programLight, key)
	if strings.Contains(src.fragment, "indirect_light") {
		t.Fatal("gather code present although reflective shadow maps are off")
	}
}

func TestSecondOutputMarkers(t *testing.T) {
	subs := VariantKey{TwoInputs: true}.substitutions()
	if !strings.Contains(subs["$SECOND_OUTPUT_DECL$"], "@location(1)") {
		t.Fatalf("second output declaration %q lacks @location(1)", subs["$SECOND_OUTPUT_DECL$"])
	}
	subs = VariantKey{}.substitutions()
	if subs["$SECOND_OUTPUT_DECL$"] != "" || subs["$SECOND_OUTPUT_ASSIGN$"] != "" {
		t.Fatal("second output markers must be empty for single-output reduction")
	}
}
