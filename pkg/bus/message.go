// Package bus implements a minimal topic-multiplexed PUB/SUB transport over
// TCP. Deliveries are multipart: [topic, payload]. Unlike the usual PUB/SUB
// convention, either role may bind or connect — the Orchestrator↔Voice-Output
// link has the subscriber bind and the publisher connect, while the
// Buttons↔Orchestrator link has the publisher bind and the subscriber
// connect (§6).
package bus

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Message is one delivered [topic, payload] pair.
type Message struct {
	Topic   string
	Payload []byte
}

// maxPartLen bounds a single frame part to guard against a corrupt peer
// claiming an enormous length and exhausting memory.
const maxPartLen = 16 << 20

func writeMessage(w io.Writer, m Message) error {
	if err := writePart(w, []byte(m.Topic)); err != nil {
		return fmt.Errorf("bus: write topic: %w", err)
	}
	if err := writePart(w, m.Payload); err != nil {
		return fmt.Errorf("bus: write payload: %w", err)
	}
	return nil
}

func readMessage(r io.Reader) (Message, error) {
	topic, err := readPart(r)
	if err != nil {
		return Message{}, err
	}
	payload, err := readPart(r)
	if err != nil {
		return Message{}, err
	}
	return Message{Topic: string(topic), Payload: payload}, nil
}

func writePart(w io.Writer, b []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(b)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	_, err := w.Write(b)
	return err
}

func readPart(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(hdr[:])
	if length > maxPartLen {
		return nil, fmt.Errorf("bus: part length %d exceeds ceiling", length)
	}
	if length == 0 {
		return nil, nil
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}
