package resocket

import "time"

// MessageType distinguishes text from binary frames.
type MessageType int

const (
	TextMessage   MessageType = 1
	BinaryMessage MessageType = 2
)

// Message is one discrete frame sent or received over the Socket. The payload
// is opaque to the Socket.
type Message struct {
	Type MessageType
	Data []byte

	// Attempt is the connection attempt the frame arrived on. Zero for outbound frames.
	Attempt Ref
	// Seq is the value of MessagesReceived after this frame was counted. Zero for outbound frames.
	Seq uint64
	// ReceivedAt is when the Socket processed the frame.
	ReceivedAt time.Time
}

// Text returns the payload as a string.
func (m Message) Text() string {
	return string(m.Data)
}

// Decode unmarshals the payload with codec.
func (m Message) Decode(codec Codec, v any) error {
	return codec.Decode(m.Data, v)
}
