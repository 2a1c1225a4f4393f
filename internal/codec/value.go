// Package codec translates between the gateway's domain model and the wire
// protocol consumed by the import service.
package codec

import (
	"time"
	"unicode/utf8"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/JamesPrial/custom-gateway-core/pkg/errors"
	"github.com/JamesPrial/custom-gateway-core/pkg/insights"
	"github.com/JamesPrial/custom-gateway-core/pkg/wire"
)

// EncodeValue converts a domain value to its tagged wire representation.
// Date-like values are normalised to an absolute UTC instant; the wire case
// alone tells them apart.
func EncodeValue(v insights.Value) (wire.Value, error) {
	switch v := v.(type) {
	case insights.Boolean:
		return &wire.BooleanValue{Value: bool(v)}, nil
	case insights.Number:
		return &wire.NumberValue{Value: float64(v)}, nil
	case insights.String:
		if !utf8.ValidString(string(v)) {
			return nil, errors.New(errors.ErrCodeInvalidValue, "string value is not valid UTF-8")
		}
		return &wire.StringValue{Value: string(v)}, nil
	case insights.Date:
		ts, err := timestamp(wire.CaseDate, v.Instant())
		if err != nil {
			return nil, err
		}
		return &wire.DateValue{Value: ts}, nil
	case insights.DateTime:
		ts, err := timestamp(wire.CaseDateTime, v.Instant())
		if err != nil {
			return nil, err
		}
		return &wire.DateTimeValue{Value: ts}, nil
	case insights.Time:
		ts, err := timestamp(wire.CaseTime, v.Instant())
		if err != nil {
			return nil, err
		}
		return &wire.TimeValue{Value: ts}, nil
	case nil:
		return nil, errors.New(errors.ErrCodeInvalidValue, "value is nil")
	}

	// Pointer forms satisfy the interface through their method sets
	if deref, ok := derefValue(v); ok {
		return EncodeValue(deref)
	}
	return nil, errors.Newf(errors.ErrCodeInvalidValue, "unsupported value type %T", v)
}

// DecodeValue converts a wire value back to its domain form. Date values are
// read as UTC calendar dates and time values as UTC clock times.
func DecodeValue(v wire.Value) (insights.Value, error) {
	switch v := v.(type) {
	case *wire.BooleanValue:
		if v != nil {
			return insights.Boolean(v.Value), nil
		}
	case *wire.NumberValue:
		if v != nil {
			return insights.Number(v.Value), nil
		}
	case *wire.StringValue:
		if v != nil {
			return insights.String(v.Value), nil
		}
	case *wire.DateValue:
		if v != nil {
			t, err := instant(v.Case(), v.Value)
			if err != nil {
				return nil, err
			}
			return insights.DateOf(t), nil
		}
	case *wire.DateTimeValue:
		if v != nil {
			t, err := instant(v.Case(), v.Value)
			if err != nil {
				return nil, err
			}
			return insights.NewDateTime(t), nil
		}
	case *wire.TimeValue:
		if v != nil {
			t, err := instant(v.Case(), v.Value)
			if err != nil {
				return nil, err
			}
			return insights.TimeOf(t), nil
		}
	case nil:
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidValue, "unsupported wire value type %T", v)
	}
	return nil, errors.New(errors.ErrCodeInvalidValue, "wire value is nil")
}

func derefValue(v insights.Value) (insights.Value, bool) {
	var deref insights.Value
	switch p := v.(type) {
	case *insights.Boolean:
		if p != nil {
			deref = *p
		}
	case *insights.Number:
		if p != nil {
			deref = *p
		}
	case *insights.String:
		if p != nil {
			deref = *p
		}
	case *insights.Date:
		if p != nil {
			deref = *p
		}
	case *insights.DateTime:
		if p != nil {
			deref = *p
		}
	case *insights.Time:
		if p != nil {
			deref = *p
		}
	default:
		return nil, false
	}
	if deref == nil {
		return nil, false
	}
	return deref, true
}

// timestamp rejects instants outside 0001-01-01 to 9999-12-31 UTC, which the
// wire timestamp cannot carry
func timestamp(name string, t time.Time) (*timestamppb.Timestamp, error) {
	ts := timestamppb.New(t)
	if err := ts.CheckValid(); err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeInvalidValue,
			"%s value %s is outside the representable range", name, t.Format(time.RFC3339))
	}
	return ts, nil
}

func instant(name string, ts *timestamppb.Timestamp) (time.Time, error) {
	if ts == nil {
		return time.Time{}, errors.Newf(errors.ErrCodeInvalidValue, "%s value has no timestamp", name)
	}
	if err := ts.CheckValid(); err != nil {
		return time.Time{}, errors.Wrapf(err, errors.ErrCodeInvalidValue, "%s value has an invalid timestamp", name)
	}
	return ts.AsTime(), nil
}
