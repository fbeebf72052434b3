// Package audio implements the PCM reformatting pipeline shared by
// Voice-Input's capture path and the Orchestrator's reformatter: sample
// width conversion, channel up/down-mixing, and a stateful linear
// resampler.
package audio

// Format describes a raw interleaved PCM stream's layout.
type Format struct {
	SampleRate int
	Channels   int
	Width      int // bytes per sample: 2 for S16, 4 for S32
}

// FrameCount returns the number of frames represented by n bytes at f's
// layout, or 0 if n is not an exact multiple.
func (f Format) FrameCount(n int) int {
	stride := f.Channels * f.Width
	if stride == 0 || n%stride != 0 {
		return 0
	}
	return n / stride
}
