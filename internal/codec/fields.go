package codec

import (
	"google.golang.org/protobuf/types/known/structpb"
)

// DecodeFields converts request fields to plain JSON-compatible values
// (nil, bool, float64, string, []any, map[string]any). Every key is kept; a
// nil wire value decodes to nil.
func DecodeFields(fields map[string]*structpb.Value) map[string]any {
	decoded := make(map[string]any, len(fields))
	for key, value := range fields {
		decoded[key] = value.AsInterface()
	}
	return decoded
}
