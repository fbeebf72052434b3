package wire

import "errors"

var (
	// ErrMissingPayload is returned by Decode when neither audio nor status
	// was present in a packet's oneof.
	ErrMissingPayload = errors.New("wire: packet has neither audio nor status payload")

	// ErrFrameTooLarge is returned by the Framer when a declared payload
	// length exceeds the configured ceiling.
	ErrFrameTooLarge = errors.New("wire: declared frame length exceeds ceiling")
)
