package pubsub

import (
	"encoding/json"
	"fmt"
)

// Envelope is the broker wire format: the channel a payload was published
// on plus the payload itself. Carrying the channel inside the message keeps
// channel names transport-independent.
type Envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// EncodeEnvelope wraps payload JSON for broker transport.
func EncodeEnvelope(channel string, data []byte) ([]byte, error) {
	raw, err := json.Marshal(Envelope{Channel: channel, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode envelope for %q: %w", channel, err)
	}
	return raw, nil
}

// DecodeEnvelope unwraps a broker message into (channel, payload JSON). A
// missing channel or data field is an error.
func DecodeEnvelope(raw []byte) (string, []byte, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Channel == "" {
		return "", nil, fmt.Errorf("malformed envelope: missing channel")
	}
	if len(env.Data) == 0 {
		return "", nil, fmt.Errorf("malformed envelope: missing data")
	}
	return env.Channel, env.Data, nil
}
