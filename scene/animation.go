package scene

// Keyframe binds a transformation to a point in time (microseconds).
type Keyframe struct {
	T              int64
	Transformation Transformation
}

// Animation is an ordered sequence of keyframes. Interpolation between
// keyframes is linear (slerp for rotations); outside the keyframe range the
// animation clamps to the first or last keyframe and never extrapolates.
type Animation struct {
	keyframes []Keyframe
}

// NewAnimation builds an animation from the given keyframes. The keyframes
// are inserted one by one, so they do not need to be pre-sorted.
func NewAnimation(kfs ...Keyframe) Animation {
	var a Animation
	for _, kf := range kfs {
		a.AddKeyframe(kf)
	}
	return a
}

// findKeyframeIndices does a binary search for the two keyframes nearest to t.
// On an exact match both returned indices are equal.
func findKeyframeIndices(keyframes []Keyframe, t int64) (lower, higher int) {
	a := 0
	b := len(keyframes) - 1
	for b >= a {
		c := (a + b) / 2
		if keyframes[c].T < t {
			a = c + 1
		} else if keyframes[c].T > t {
			b = c - 1
		} else {
			return c, c
		}
	}
	return b, a
}

// AddKeyframe inserts a keyframe, keeping the sequence sorted by time.
// A keyframe at an already present timestamp replaces the existing one.
func (a *Animation) AddKeyframe(keyframe Keyframe) {
	switch {
	case len(a.keyframes) == 0:
		a.keyframes = append(a.keyframes, keyframe)
	case keyframe.T > a.EndTime():
		// fast path for common case
		a.keyframes = append(a.keyframes, keyframe)
	case keyframe.T < a.StartTime():
		// fast path for common case
		a.keyframes = append([]Keyframe{keyframe}, a.keyframes...)
	default:
		lower, higher := findKeyframeIndices(a.keyframes, keyframe.T)
		if lower == higher {
			a.keyframes[lower] = keyframe
		} else {
			a.keyframes = append(a.keyframes, Keyframe{})
			copy(a.keyframes[higher+1:], a.keyframes[higher:])
			a.keyframes[higher] = keyframe
		}
	}
}

// KeyframeCount returns the number of keyframes.
func (a *Animation) KeyframeCount() int {
	return len(a.keyframes)
}

// StartTime returns the time of the first keyframe, or 0 when there are none.
func (a *Animation) StartTime() int64 {
	if len(a.keyframes) == 0 {
		return 0
	}
	return a.keyframes[0].T
}

// EndTime returns the time of the last keyframe, or 0 when there are none.
func (a *Animation) EndTime() int64 {
	if len(a.keyframes) == 0 {
		return 0
	}
	return a.keyframes[len(a.keyframes)-1].T
}

// Interpolate returns the transformation at time t. Before the first keyframe
// the first keyframe's transformation is returned, after the last keyframe the
// last one's; an empty animation yields the identity.
func (a *Animation) Interpolate(t int64) Transformation {
	// Catch corner cases
	if len(a.keyframes) == 0 {
		return NewTransformation()
	} else if t <= a.StartTime() {
		return a.keyframes[0].Transformation
	} else if t >= a.EndTime() {
		return a.keyframes[len(a.keyframes)-1].Transformation
	}

	lower, higher := findKeyframeIndices(a.keyframes, t)
	if lower == higher {
		return a.keyframes[lower].Transformation
	}

	alpha := 1 - float32(a.keyframes[higher].T-t)/float32(a.keyframes[higher].T-a.keyframes[lower].T)
	return InterpolateTransformation(
		a.keyframes[lower].Transformation,
		a.keyframes[higher].Transformation, alpha)
}
