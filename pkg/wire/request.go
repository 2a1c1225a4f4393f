package wire

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// PerformImportRequest carries the gateway configuration fields entered for
// the import, each a google.protobuf.Value
type PerformImportRequest struct {
	Fields map[string]*structpb.Value
}

type performImportRequestJSON struct {
	Fields map[string]json.RawMessage `json:"fields,omitempty"`
}

// NewPerformImportRequest builds a request from plain Go values. Accepted
// value types are those understood by structpb.NewValue.
func NewPerformImportRequest(fields map[string]any) (*PerformImportRequest, error) {
	req := &PerformImportRequest{Fields: make(map[string]*structpb.Value, len(fields))}
	for key, field := range fields {
		value, err := structpb.NewValue(field)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		req.Fields[key] = value
	}
	return req, nil
}

// MarshalJSON implements json.Marshaler
func (r *PerformImportRequest) MarshalJSON() ([]byte, error) {
	raw := performImportRequestJSON{}
	if len(r.Fields) > 0 {
		raw.Fields = make(map[string]json.RawMessage, len(r.Fields))
	}
	for key, value := range r.Fields {
		if value == nil {
			value = structpb.NewNullValue()
		}
		data, err := protojson.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		raw.Fields[key] = data
	}
	return json.Marshal(raw)
}

// UnmarshalJSON implements json.Unmarshaler
func (r *PerformImportRequest) UnmarshalJSON(data []byte) error {
	var raw performImportRequestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Fields = make(map[string]*structpb.Value, len(raw.Fields))
	for key, data := range raw.Fields {
		value := &structpb.Value{}
		if err := protojson.Unmarshal(data, value); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		r.Fields[key] = value
	}
	return nil
}
