package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownCase      = errors.New("wire: unknown oneof case")
	ErrNoCase           = errors.New("wire: no oneof case set")
	ErrMultipleCases    = errors.New("wire: more than one oneof case set")
	ErrMissingTimestamp = errors.New("wire: missing timestamp")
)

// marshalOneof renders a oneof the way the protobuf JSON mapping does: an
// object holding exactly one member named after the case
func marshalOneof(name string, payload []byte) ([]byte, error) {
	return json.Marshal(map[string]json.RawMessage{name: payload})
}

func unmarshalOneof(data []byte) (string, json.RawMessage, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return "", nil, err
	}

	switch len(members) {
	case 0:
		return "", nil, ErrNoCase
	case 1:
	default:
		return "", nil, fmt.Errorf("%w: %d members", ErrMultipleCases, len(members))
	}

	for name, payload := range members {
		return name, payload, nil
	}
	return "", nil, ErrNoCase
}
