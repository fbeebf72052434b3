package audio

import "log/slog"

// decodeSamples unpacks little-endian interleaved samples of the given
// width into int32, sign-extending S16 and passing S32 through unchanged.
func decodeSamples(data []byte, width int) []int32 {
	n := len(data) / width
	out := make([]int32, n)
	switch width {
	case 2:
		for i := 0; i < n; i++ {
			v := int16(data[i*2]) | int16(data[i*2+1])<<8
			out[i] = int32(v)
		}
	case 4:
		for i := 0; i < n; i++ {
			v := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
			out[i] = int32(v)
		}
	}
	return out
}

// encodeSamples packs int32 samples back into little-endian bytes at the
// given width. Callers must have already narrowed values that don't fit
// S16 via narrowS32ToS16.
func encodeSamples(samples []int32, width int) []byte {
	out := make([]byte, len(samples)*width)
	switch width {
	case 2:
		for i, v := range samples {
			out[i*2] = byte(v)
			out[i*2+1] = byte(v >> 8)
		}
	case 4:
		for i, v := range samples {
			u := uint32(v)
			out[i*4] = byte(u)
			out[i*4+1] = byte(u >> 8)
			out[i*4+2] = byte(u >> 16)
			out[i*4+3] = byte(u >> 24)
		}
	}
	return out
}

// convertChannels applies the 1↔2 mixing rules from §4.5: 1→2 duplicates
// the mono sample to both channels, 2→1 averages L and R, identity passes
// through, and any other ratio logs a warning and passes through
// unconverted.
func convertChannels(logger *slog.Logger, samples []int32, srcChannels, dstChannels int) []int32 {
	if srcChannels == dstChannels {
		return samples
	}
	frames := len(samples) / srcChannels

	switch {
	case srcChannels == 1 && dstChannels == 2:
		out := make([]int32, frames*2)
		for i := 0; i < frames; i++ {
			out[i*2] = samples[i]
			out[i*2+1] = samples[i]
		}
		return out
	case srcChannels == 2 && dstChannels == 1:
		out := make([]int32, frames)
		for i := 0; i < frames; i++ {
			l, r := samples[i*2], samples[i*2+1]
			out[i] = (l + r) / 2
		}
		return out
	default:
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("reformatter: unsupported channel conversion, passing through", "src", srcChannels, "dst", dstChannels)
		return samples
	}
}

// widenS16ToS32 left-shifts each 16-bit sample by 16 bits, the integer
// widening rule from §4.5.
func widenS16ToS32(samples []int32) []int32 {
	out := make([]int32, len(samples))
	for i, v := range samples {
		out[i] = v << 16
	}
	return out
}

// narrowS32ToS16 arithmetic-right-shifts by 16 bits with saturation to
// [-32768, 32767], the integer narrowing rule from §4.5.
func narrowS32ToS16(samples []int32) []int32 {
	out := make([]int32, len(samples))
	for i, v := range samples {
		n := v >> 16
		if n > 32767 {
			n = 32767
		} else if n < -32768 {
			n = -32768
		}
		out[i] = n
	}
	return out
}

// Reformatter converts a PCM stream from an arbitrary source format to a
// fixed target format: channel mixing, linear resampling with carried
// state, then integer width conversion. It is held by the Orchestrator and
// reset at the start of every TTS turn.
type Reformatter struct {
	logger *slog.Logger
	target Format

	resampler *Resampler
}

// NewReformatter builds a Reformatter targeting the given fixed format.
func NewReformatter(logger *slog.Logger, target Format) *Reformatter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reformatter{
		logger:    logger,
		target:    target,
		resampler: NewResampler(target.SampleRate),
	}
}

// Reset clears the resampler's carried state.
func (rf *Reformatter) Reset() {
	rf.resampler.Reset()
}

// TargetFormat returns the fixed output format this Reformatter converts to.
func (rf *Reformatter) TargetFormat() Format {
	return rf.target
}

// Process runs data through the §4.5 pipeline: reshape at src format,
// channel conversion, resample, then width conversion to the target
// format.
func (rf *Reformatter) Process(data []byte, src Format) []byte {
	if len(data) == 0 {
		return nil
	}

	samples := decodeSamples(data, src.Width)
	samples = convertChannels(rf.logger, samples, src.Channels, rf.target.Channels)
	samples = rf.resampler.Process(samples, rf.target.Channels, src.SampleRate)

	switch {
	case src.Width == 2 && rf.target.Width == 4:
		samples = widenS16ToS32(samples)
	case src.Width == 4 && rf.target.Width == 2:
		samples = narrowS32ToS16(samples)
	}

	return encodeSamples(samples, rf.target.Width)
}
