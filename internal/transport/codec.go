package transport

import (
	"encoding/json"
	"fmt"

	"github.com/JamesPrial/custom-gateway-core/pkg/wire"
)

// Codec is the connect codec for the hand-written wire messages. It replaces
// connect's default "json" codec, which only accepts generated messages.
type Codec struct{}

// Name implements connect.Codec
func (Codec) Name() string {
	return "json"
}

// Marshal implements connect.Codec
func (Codec) Marshal(message any) ([]byte, error) {
	switch message.(type) {
	case *wire.PerformImportRequest, *wire.PerformImportResponse:
		return json.Marshal(message)
	default:
		return nil, fmt.Errorf("transport: cannot marshal %T", message)
	}
}

// Unmarshal implements connect.Codec
func (Codec) Unmarshal(data []byte, message any) error {
	switch message.(type) {
	case *wire.PerformImportRequest, *wire.PerformImportResponse:
		return json.Unmarshal(data, message)
	default:
		return fmt.Errorf("transport: cannot unmarshal into %T", message)
	}
}
