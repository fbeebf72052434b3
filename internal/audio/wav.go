package audio

import (
	"bytes"
	"encoding/binary"
)

// WavBytes wraps raw little-endian integer PCM (widthBytes per sample) in
// a minimal WAV container. Used by Voice-Output's mock sink to make
// captured output inspectable.
func WavBytes(pcm []byte, sampleRate, channels, widthBytes int) []byte {
	buf := new(bytes.Buffer)
	bitDepth := widthBytes * 8
	blockAlign := channels * widthBytes

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitDepth))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
