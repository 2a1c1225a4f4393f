package wire

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Value cases as they appear on the wire
const (
	CaseBoolean  = "boolean"
	CaseDate     = "date"
	CaseDateTime = "dateTime"
	CaseNumber   = "number"
	CaseString   = "string"
	CaseTime     = "time"
)

// Value is the tagged wire representation of an attribute value
// (elimity.insights.common.v1alpha1.Value). Implemented by BooleanValue,
// DateValue, DateTimeValue, NumberValue, StringValue and TimeValue.
type Value interface {
	Case() string
	isValue()
}

type BooleanValue struct {
	Value bool
}

type NumberValue struct {
	Value float64
}

type StringValue struct {
	Value string
}

type DateValue struct {
	Value *timestamppb.Timestamp
}

type DateTimeValue struct {
	Value *timestamppb.Timestamp
}

type TimeValue struct {
	Value *timestamppb.Timestamp
}

func (*BooleanValue) Case() string  { return CaseBoolean }
func (*NumberValue) Case() string   { return CaseNumber }
func (*StringValue) Case() string   { return CaseString }
func (*DateValue) Case() string     { return CaseDate }
func (*DateTimeValue) Case() string { return CaseDateTime }
func (*TimeValue) Case() string     { return CaseTime }

func (*BooleanValue) isValue()  {}
func (*NumberValue) isValue()   {}
func (*StringValue) isValue()   {}
func (*DateValue) isValue()     {}
func (*DateTimeValue) isValue() {}
func (*TimeValue) isValue()     {}

// AttributeAssignment assigns a value to one attribute type of an entity or
// relationship
type AttributeAssignment struct {
	AttributeTypeID string
	Value           Value
}

type attributeAssignmentJSON struct {
	AttributeTypeID string          `json:"attributeTypeId"`
	Value           json.RawMessage `json:"value"`
}

// MarshalJSON implements json.Marshaler
func (a AttributeAssignment) MarshalJSON() ([]byte, error) {
	value, err := MarshalValue(a.Value)
	if err != nil {
		return nil, fmt.Errorf("assignment %q: %w", a.AttributeTypeID, err)
	}
	return json.Marshal(attributeAssignmentJSON{
		AttributeTypeID: a.AttributeTypeID,
		Value:           value,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (a *AttributeAssignment) UnmarshalJSON(data []byte) error {
	var raw attributeAssignmentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := UnmarshalValue(raw.Value)
	if err != nil {
		return fmt.Errorf("assignment %q: %w", raw.AttributeTypeID, err)
	}
	a.AttributeTypeID = raw.AttributeTypeID
	a.Value = value
	return nil
}

// MarshalValue encodes v as a single-member JSON object keyed by its case
func MarshalValue(v Value) ([]byte, error) {
	var (
		payload []byte
		err     error
	)
	switch v := v.(type) {
	case *BooleanValue:
		if v == nil {
			return nil, ErrNoCase
		}
		payload, err = json.Marshal(v.Value)
	case *NumberValue:
		if v == nil {
			return nil, ErrNoCase
		}
		payload, err = marshalDouble(v.Value)
	case *StringValue:
		if v == nil {
			return nil, ErrNoCase
		}
		payload, err = json.Marshal(v.Value)
	case *DateValue:
		if v == nil {
			return nil, ErrNoCase
		}
		payload, err = marshalTimestamp(v.Value)
	case *DateTimeValue:
		if v == nil {
			return nil, ErrNoCase
		}
		payload, err = marshalTimestamp(v.Value)
	case *TimeValue:
		if v == nil {
			return nil, ErrNoCase
		}
		payload, err = marshalTimestamp(v.Value)
	case nil:
		return nil, ErrNoCase
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCase, v)
	}
	if err != nil {
		return nil, err
	}
	return marshalOneof(v.Case(), payload)
}

// UnmarshalValue decodes a JSON object produced by MarshalValue
func UnmarshalValue(data []byte) (Value, error) {
	name, payload, err := unmarshalOneof(data)
	if err != nil {
		return nil, err
	}

	switch name {
	case CaseBoolean:
		var b bool
		if err := json.Unmarshal(payload, &b); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return &BooleanValue{Value: b}, nil
	case CaseNumber:
		n, err := unmarshalDouble(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return &NumberValue{Value: n}, nil
	case CaseString:
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return &StringValue{Value: s}, nil
	case CaseDate, CaseDateTime, CaseTime:
		ts, err := unmarshalTimestamp(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		switch name {
		case CaseDate:
			return &DateValue{Value: ts}, nil
		case CaseDateTime:
			return &DateTimeValue{Value: ts}, nil
		default:
			return &TimeValue{Value: ts}, nil
		}
	default:
		return nil, fmt.Errorf("%w: value case %q", ErrUnknownCase, name)
	}
}

// marshalDouble follows the protobuf JSON mapping, which spells non-finite
// doubles as strings
func marshalDouble(f float64) ([]byte, error) {
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Infinity"`), nil
	}
	return json.Marshal(f)
}

func unmarshalDouble(data []byte) (float64, error) {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		return f, nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, err
	}
	switch s {
	case "NaN":
		return math.NaN(), nil
	case "Infinity":
		return math.Inf(1), nil
	case "-Infinity":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(s, 64)
}

func marshalTimestamp(ts *timestamppb.Timestamp) ([]byte, error) {
	if ts == nil {
		return nil, ErrMissingTimestamp
	}
	return protojson.Marshal(ts)
}

func unmarshalTimestamp(data []byte) (*timestamppb.Timestamp, error) {
	ts := &timestamppb.Timestamp{}
	if err := protojson.Unmarshal(data, ts); err != nil {
		return nil, err
	}
	return ts, nil
}
