// Package speechrec implements the Speech-Rec service: VadPacket ingress,
// status-driven utterance segmentation, a lock-protected float32 audio
// buffer, and a single-at-a-time cancellable transcription worker.
package speechrec

import "sync"

// Buffer is the lock-protected float32 accumulator described in §4.3 and
// §5: append, drain, and reset are its only operations, and Drain must be
// an atomic copy-and-clear.
type Buffer struct {
	mu      sync.Mutex
	samples []float32
}

// Append adds samples (already converted from int16 PCM by the caller).
func (b *Buffer) Append(samples []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = append(b.samples, samples...)
}

// Drain copies out and clears the buffer atomically, returning an
// immutable snapshot safe to hand to a transcription worker.
func (b *Buffer) Drain() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.samples) == 0 {
		return nil
	}
	snapshot := make([]float32, len(b.samples))
	copy(snapshot, b.samples)
	b.samples = b.samples[:0]
	return snapshot
}

// Reset discards any accumulated audio without returning it.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = b.samples[:0]
}

// Len reports the number of buffered samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// PCM16ToFloat32 converts little-endian int16 PCM to float32 by x/32768,
// per §4.3.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float32(v) / 32768.0
	}
	return out
}
