package audio

// Resampler performs linear resampling of interleaved integer PCM frames
// from an arbitrary source rate to a fixed target rate, carrying enough
// state across calls to interpolate smoothly at call boundaries. The
// Orchestrator resets it at the start of every TTS turn to avoid click
// artifacts between utterances (§4.5, §9).
type Resampler struct {
	targetRate int

	pos       float64 // fractional frame position carried into the next call
	prevFrame []int32 // last input frame of the previous call, one value per channel
	channels  int     // channel count prevFrame was captured at; a change invalidates it
}

// NewResampler creates a Resampler targeting rate Hz.
func NewResampler(targetRate int) *Resampler {
	return &Resampler{targetRate: targetRate}
}

// Reset clears carried state. Call at turn boundaries.
func (r *Resampler) Reset() {
	r.pos = 0
	r.prevFrame = nil
	r.channels = 0
}

// Process resamples in (frames of `channels` interleaved int32 samples, at
// srcRate Hz) to the target rate, returning interleaved int32 samples. If
// srcRate already equals the target rate, it passes through unchanged and
// clears carried interpolation state (there is nothing to interpolate).
func (r *Resampler) Process(in []int32, channels, srcRate int) []int32 {
	if channels <= 0 || len(in) == 0 {
		return nil
	}
	if srcRate == r.targetRate {
		r.Reset()
		out := make([]int32, len(in))
		copy(out, in)
		return out
	}

	frames := len(in) / channels
	if frames == 0 {
		return nil
	}

	if r.channels != channels {
		r.prevFrame = nil
		r.pos = 0
		r.channels = channels
	}

	frameAt := func(i int) []int32 {
		if i < 0 {
			if r.prevFrame != nil {
				return r.prevFrame
			}
			return in[0:channels]
		}
		return in[i*channels : i*channels+channels]
	}

	ratio := float64(srcRate) / float64(r.targetRate)
	var out []int32

	t := r.pos
	for {
		i := int(t)
		if i >= frames {
			break
		}
		frac := t - float64(i)
		a := frameAt(i - 1)
		b := frameAt(i)
		for c := 0; c < channels; c++ {
			v := float64(a[c]) + (float64(b[c])-float64(a[c]))*frac
			out = append(out, int32(v))
		}
		t += ratio
	}

	r.pos = t - float64(frames)
	tail := make([]int32, channels)
	copy(tail, in[(frames-1)*channels:frames*channels])
	r.prevFrame = tail

	return out
}
