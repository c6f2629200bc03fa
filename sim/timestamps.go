package sim

// All simulator timestamps are in microseconds, matching the animation
// keyframe timebase.

// subFrameDurationUS returns the duration of one subframe in microseconds.
func subFrameDurationUS(timing ChipTiming) int64 {
	return int64(timing.SubFrameDuration() * 1e6)
}

// frameDurationUS returns the duration of one full frame in microseconds:
// all subframes plus the pause before the next frame.
func frameDurationUS(timing ChipTiming, subFrames int) int64 {
	return subFrameDurationUS(timing)*int64(subFrames) + int64(timing.PauseTime*1e6)
}

// framesPerSecond returns the frame rate resulting from the chip timing.
func framesPerSecond(timing ChipTiming, subFrames int) float64 {
	return 1e6 / float64(frameDurationUS(timing, subFrames))
}

// subFrameTimestamp returns the start of subframe i within a frame that
// starts at frameTimestamp. When subframe temporal sampling is disabled all
// subframes share the frame timestamp.
func subFrameTimestamp(frameTimestamp int64, timing ChipTiming, subFrame int, temporalSampling bool) int64 {
	if !temporalSampling {
		return frameTimestamp
	}
	return frameTimestamp + int64(subFrame)*subFrameDurationUS(timing)
}

// temporalSampleTimestamp distributes temporal samples over the exposure
// time of a subframe. With one sample or a zero exposure time the subframe
// timestamp is returned unchanged.
func temporalSampleTimestamp(subFrameStart int64, timing ChipTiming, sample, samples int) int64 {
	if samples <= 1 {
		return subFrameStart
	}
	exposureUS := int64(timing.ExposureTime * 1e6)
	return subFrameStart + exposureUS*int64(sample)/int64(samples)
}
