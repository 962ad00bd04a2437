package resocket

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
)

// Codec turns values into frame payloads and back. The Socket never looks
// inside a payload; codecs only serve SendValue and Message.Decode.
type Codec interface {
	MessageType() MessageType
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// JSONCodec encodes values as JSON text frames.
type JSONCodec struct{}

// NewJSONCodec returns a codec for text frames.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

func (c *JSONCodec) MessageType() MessageType {
	return TextMessage
}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// CBORCodec encodes values as CBOR binary frames using the core
// deterministic encoding options.
type CBORCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBORCodec returns a codec for binary frames.
func NewCBORCodec() (*CBORCodec, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}
	return &CBORCodec{enc: enc, dec: dec}, nil
}

func (c *CBORCodec) MessageType() MessageType {
	return BinaryMessage
}

func (c *CBORCodec) Encode(v any) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c *CBORCodec) Decode(data []byte, v any) error {
	return c.dec.Unmarshal(data, v)
}

// Compile-time interface satisfaction checks.
var (
	_ Codec = (*JSONCodec)(nil)
	_ Codec = (*CBORCodec)(nil)
)
