package audio

import (
	"math"
	"testing"
)

func sineS16(freqHz, sampleRate int, seconds float64) []byte {
	n := int(float64(sampleRate) * seconds)
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*float64(freqHz)*float64(i)/float64(sampleRate)))
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// TestReformatterScenarioD exercises invariant 5 / scenario D: 1s mono
// 16kHz S16 in, 48kHz stereo S32 out.
func TestReformatterScenarioD(t *testing.T) {
	in := sineS16(440, 16000, 1.0)
	rf := NewReformatter(nil, Format{SampleRate: 48000, Channels: 2, Width: 4})

	out := rf.Process(in, Format{SampleRate: 16000, Channels: 1, Width: 2})

	want := 48000 * 2 * 4
	if out == nil || abs(len(out)-want) > 32 {
		gotLen := 0
		if out != nil {
			gotLen = len(out)
		}
		t.Fatalf("len(out) = %d, want %d ± 32", gotLen, want)
	}

	samples := decodeSamples(out, 4)
	for i := 0; i+1 < len(samples); i += 2 {
		if samples[i] != samples[i+1] {
			t.Fatalf("frame %d: left=%d right=%d, want identical", i/2, samples[i], samples[i+1])
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func TestConvertChannelsMonoToStereo(t *testing.T) {
	out := convertChannels(nil, []int32{10, 20, 30}, 1, 2)
	want := []int32{10, 10, 20, 20, 30, 30}
	if len(out) != len(want) {
		t.Fatalf("len = %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %d, want %d", i, out[i], want[i])
		}
	}
}

func TestConvertChannelsStereoToMono(t *testing.T) {
	out := convertChannels(nil, []int32{10, 20, 100, 200}, 2, 1)
	want := []int32{15, 150}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %d, want %d", i, out[i], want[i])
		}
	}
}

func TestNarrowS32ToS16Saturates(t *testing.T) {
	out := narrowS32ToS16([]int32{1 << 30, -(1 << 30), 100 << 16})
	if out[0] != 32767 {
		t.Errorf("overflow sample = %d, want 32767", out[0])
	}
	if out[1] != -32768 {
		t.Errorf("underflow sample = %d, want -32768", out[1])
	}
	if out[2] != 100 {
		t.Errorf("in-range sample = %d, want 100", out[2])
	}
}

func TestWidenS16ToS32(t *testing.T) {
	out := widenS16ToS32([]int32{1, -1, 0})
	if out[0] != 1<<16 || out[1] != -1<<16 || out[2] != 0 {
		t.Errorf("widen mismatch: %v", out)
	}
}

func TestResamplerCarriesStateAcrossCalls(t *testing.T) {
	r := NewResampler(48000)

	in1 := make([]int32, 1000*2)
	in2 := make([]int32, 1000*2)
	for i := range in1 {
		in1[i] = int32(i)
	}

	out1 := r.Process(in1, 2, 16000)
	out2 := r.Process(in2, 2, 16000)

	if len(out1) == 0 || len(out2) == 0 {
		t.Fatal("expected non-empty output from both calls")
	}
	// Roughly 3x upsampling; total frames should track total input frames
	// within a small tolerance.
	totalOutFrames := (len(out1) + len(out2)) / 2
	wantFrames := 2000 * 3
	if abs(totalOutFrames-wantFrames) > 8 {
		t.Errorf("total out frames = %d, want ~%d", totalOutFrames, wantFrames)
	}
}

func TestResamplerResetClearsState(t *testing.T) {
	r := NewResampler(48000)
	r.Process(make([]int32, 200), 2, 16000)
	r.Reset()
	if r.prevFrame != nil || r.pos != 0 {
		t.Error("Reset did not clear carried state")
	}
}

func TestResamplerPassthroughSameRate(t *testing.T) {
	r := NewResampler(16000)
	in := []int32{1, 2, 3, 4}
	out := r.Process(in, 2, 16000)
	if len(out) != len(in) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %d, want %d", i, out[i], in[i])
		}
	}
}
