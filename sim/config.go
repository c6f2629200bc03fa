package sim

// ChipTiming defines how a sensor chip acquires frames over time. The
// exposure time determines how much energy a chip pixel receives.
//
// For simple RGB simulation physical quantities are irrelevant; set the
// exposure time to zero and the readout time to the duration of one frame.
type ChipTiming struct {
	// Exposure time for each subframe in seconds.
	ExposureTime float64
	// Readout time for each subframe in seconds.
	ReadoutTime float64
	// Pause time after all subframes, before the start of a new frame,
	// in seconds.
	PauseTime float64
}

// NewChipTiming returns chip timings for a 30 Hz camera with equal exposure
// and readout phases.
func NewChipTiming() ChipTiming {
	return ChipTiming{
		ExposureTime: 1.0 / 60.0,
		ReadoutTime:  1.0 / 60.0,
		PauseTime:    0,
	}
}

// ChipTimingFromSubFramesPerSecond generates chip timings from a
// subframes-per-second rate. This sets the exposure time to zero, so it is
// not suitable for physically-based simulations such as PMD simulation.
func ChipTimingFromSubFramesPerSecond(sfps float64) ChipTiming {
	return ChipTiming{ReadoutTime: 1.0 / sfps}
}

// SubFrameDuration returns the duration of one subframe in seconds.
func (c ChipTiming) SubFrameDuration() float64 {
	return c.ExposureTime + c.ReadoutTime
}

// SubFramesPerSecond returns the subframe rate resulting from these timings.
func (c ChipTiming) SubFramesPerSecond() float64 {
	return 1.0 / c.SubFrameDuration()
}

// PMD defines the physical parameters of a PMD chip.
type PMD struct {
	// Pixel area in square micrometers (pixel pitch squared).
	PixelSize float64
	// Achievable demodulation contrast in [0,1].
	PixelContrast float64
	// Modulation frequency in Hz.
	ModulationFrequency float64
	// Wavelength of the light pulse in nanometers.
	Wavelength float64
	// Quantum efficiency of the sensor in [0,1].
	QuantumEfficiency float64
	// Maximum number of electrons per pixel (full well capacity).
	MaxElectrons int
}

// NewPMD returns PMD chip parameters modeled after a PMD PhotonICs 19k-S3.
func NewPMD() PMD {
	return PMD{
		PixelSize:           12.0 * 12.0,
		PixelContrast:       0.75,
		ModulationFrequency: 10e6,
		Wavelength:          880,
		QuantumEfficiency:   0.8,
		MaxElectrons:        100000,
	}
}

// Pipeline defines the rendering pipeline configuration.
type Pipeline struct {
	NearClippingPlane float32
	FarClippingPlane  float32

	// Discard fragments with opacity below 0.5.
	Transparency bool
	// Perturb surface normals via bump or normal maps.
	NormalMapping bool
	// Use ambient light and colors. Should be off, but may be needed for
	// imported scenes.
	AmbientLight bool

	// Thin lens vignetting based on aperture diameter and focal length.
	ThinLensVignetting bool
	// Aperture diameter in millimeters. Only used with ThinLensVignetting.
	ThinLensApertureDiameter float32
	// Focal length in millimeters. Only used with ThinLensVignetting.
	ThinLensFocalLength float32

	// Shot noise (poisson noise) for PMD output.
	ShotNoise bool
	// Gaussian white noise for RGB output.
	GaussianWhiteNoise bool
	// Gaussian noise mean; should be zero in almost all cases.
	GaussianWhiteNoiseMean float32
	// Gaussian noise standard deviation, typically in [0.01, 0.1], applied
	// to color values in [0,1].
	GaussianWhiteNoiseStddev float32

	// Lens distortion computed in the vertex stage. Mutually exclusive
	// with PostprocLensDistortion.
	PreprocLensDistortion bool
	// Extra clip margin for PreprocLensDistortion. A greater margin keeps
	// more triangles outside the frustum, reducing dropped geometry at the
	// cost of more distortion artifacts.
	PreprocLensDistortionMargin float32
	// Lens distortion applied as a post-processing pass.
	PostprocLensDistortion bool

	ShadowMaps           bool
	ShadowMapFiltering   bool
	ReflectiveShadowMaps bool
	LightPowerFactorMaps bool

	// Simulate subframes at different points in time according to
	// ChipTiming. Should always be true; when disabled, all subframes are
	// simulated at the timestamp of the first subframe.
	SubFrameTemporalSampling bool
	// Samples per fragment for spatial oversampling; both dimensions must
	// be odd. 1x1 means no oversampling.
	SpatialSamplesX int
	SpatialSamplesY int
	// Weights for spatial oversampling. If empty, uniform weights are
	// used. Otherwise the length must match SpatialSamplesX*SpatialSamplesY.
	SpatialSampleWeights []float32
	// Number of temporal samples; 1 means no oversampling.
	TemporalSamples int
}

// NewPipeline returns the default pipeline configuration.
func NewPipeline() Pipeline {
	return Pipeline{
		NearClippingPlane:        0.1,
		FarClippingPlane:         100,
		NormalMapping:            true,
		ThinLensApertureDiameter: 8.89, // 0.889 cm aperture, F-number 1.8 at 16mm
		ThinLensFocalLength:      16,
		GaussianWhiteNoiseStddev: 0.05,
		ShadowMapFiltering:       true,
		SubFrameTemporalSampling: true,
		SpatialSamplesX:          1,
		SpatialSamplesY:          1,
		TemporalSamples:          1,
	}
}

// Output defines which simulation results are produced.
type Output struct {
	// Linear RGB colors.
	RGB bool
	// sRGB colors; only used when RGB is also enabled.
	SRGB bool
	// PMD phase images and final range/amplitude/intensity result.
	PMD bool
	// PMD cartesian coordinates; only used when PMD is also enabled.
	PMDCoordinates bool

	EyeSpacePositions    bool
	CustomSpacePositions bool
	EyeSpaceNormals      bool
	CustomSpaceNormals   bool
	DepthAndRange        bool
	Indices              bool

	// Offset from current to next 3D position.
	ForwardFlow3D bool
	// Offset from current to next 2D pixel position.
	ForwardFlow2D bool
	// Offset from current to previous 3D position.
	BackwardFlow3D bool
	// Offset from current to previous 2D pixel position.
	BackwardFlow2D bool
}

// NewOutput returns the default output configuration: linear RGB only.
func NewOutput() Output {
	return Output{RGB: true}
}

// anyGeometry reports whether any geometry-related output is enabled.
func (o Output) anyGeometry() bool {
	return o.EyeSpacePositions || o.CustomSpacePositions ||
		o.EyeSpaceNormals || o.CustomSpaceNormals ||
		o.DepthAndRange || o.Indices
}

// anyFlow reports whether any flow output is enabled.
func (o Output) anyFlow() bool {
	return o.ForwardFlow3D || o.ForwardFlow2D || o.BackwardFlow3D || o.BackwardFlow2D
}
