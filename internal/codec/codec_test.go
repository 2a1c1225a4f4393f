package codec

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/JamesPrial/custom-gateway-core/pkg/errors"
	"github.com/JamesPrial/custom-gateway-core/pkg/insights"
	"github.com/JamesPrial/custom-gateway-core/pkg/wire"
)

func TestEncodeValue(t *testing.T) {
	tests := []struct {
		name     string
		value    insights.Value
		wantCase string
		check    func(t *testing.T, v wire.Value)
	}{
		{
			name:     "boolean",
			value:    insights.Boolean(true),
			wantCase: wire.CaseBoolean,
			check: func(t *testing.T, v wire.Value) {
				assert.True(t, v.(*wire.BooleanValue).Value)
			},
		},
		{
			name:     "number",
			value:    insights.Number(42.5),
			wantCase: wire.CaseNumber,
			check: func(t *testing.T, v wire.Value) {
				assert.Equal(t, 42.5, v.(*wire.NumberValue).Value)
			},
		},
		{
			name:     "string",
			value:    insights.String("hello"),
			wantCase: wire.CaseString,
			check: func(t *testing.T, v wire.Value) {
				assert.Equal(t, "hello", v.(*wire.StringValue).Value)
			},
		},
		{
			name:     "date",
			value:    insights.NewDate(2020, time.January, 1),
			wantCase: wire.CaseDate,
			check: func(t *testing.T, v wire.Value) {
				want := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
				assert.True(t, want.Equal(v.(*wire.DateValue).Value.AsTime()))
			},
		},
		{
			name:     "date time",
			value:    insights.NewDateTime(time.Date(2021, time.March, 4, 5, 6, 7, 8, time.UTC)),
			wantCase: wire.CaseDateTime,
			check: func(t *testing.T, v wire.Value) {
				want := time.Date(2021, time.March, 4, 5, 6, 7, 8, time.UTC)
				assert.True(t, want.Equal(v.(*wire.DateTimeValue).Value.AsTime()))
			},
		},
		{
			name:     "time",
			value:    insights.NewTime(13, 14, 15, 0),
			wantCase: wire.CaseTime,
			check: func(t *testing.T, v wire.Value) {
				want := time.Date(1970, time.January, 1, 13, 14, 15, 0, time.UTC)
				assert.True(t, want.Equal(v.(*wire.TimeValue).Value.AsTime()))
			},
		},
		{
			name:     "pointer to value",
			value:    func() insights.Value { s := insights.String("p"); return &s }(),
			wantCase: wire.CaseString,
			check: func(t *testing.T, v wire.Value) {
				assert.Equal(t, "p", v.(*wire.StringValue).Value)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := EncodeValue(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCase, encoded.Case())
			tt.check(t, encoded)
		})
	}
}

func TestEncodeValue_Violations(t *testing.T) {
	tests := []struct {
		name  string
		value insights.Value
	}{
		{"nil", nil},
		{"nil date pointer", (*insights.Date)(nil)},
		{"nil string pointer", (*insights.String)(nil)},
		{"zero date", insights.Date{}},
		{"date after year 9999", insights.NewDate(10000, time.January, 1)},
		{"date time before year 1", insights.NewDateTime(time.Date(0, time.December, 31, 0, 0, 0, 0, time.UTC))},
		{"invalid utf-8 string", insights.String("caf\xe9")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := EncodeValue(tt.value)
			assert.Nil(t, encoded)
			assert.True(t, errors.Is(err, errors.ErrCodeInvalidValue), "got %v", err)
		})
	}
}

func TestEncodeValue_TimezoneIndependent(t *testing.T) {
	instant := time.Date(2022, time.June, 30, 22, 30, 0, 0, time.UTC)
	zones := []*time.Location{
		time.UTC,
		time.FixedZone("UTC+9", 9*60*60),
		time.FixedZone("UTC-7", -7*60*60),
	}

	var first *timestamppb.Timestamp
	for _, zone := range zones {
		encoded, err := EncodeValue(insights.NewDateTime(instant.In(zone)))
		require.NoError(t, err)

		ts := encoded.(*wire.DateTimeValue).Value
		if first == nil {
			first = ts
			continue
		}
		assert.Equal(t, first.GetSeconds(), ts.GetSeconds(), zone.String())
		assert.Equal(t, first.GetNanos(), ts.GetNanos(), zone.String())
	}

	// A calendar date encodes to the same instant whatever the process zone
	date := insights.NewDate(2022, time.June, 30)
	local := time.Local
	t.Cleanup(func() { time.Local = local })
	var seconds []int64
	for _, zone := range zones {
		time.Local = zone
		encoded, err := EncodeValue(date)
		require.NoError(t, err)
		seconds = append(seconds, encoded.(*wire.DateValue).Value.GetSeconds())
	}
	assert.Equal(t, []int64{seconds[0], seconds[0], seconds[0]}, seconds)
}

func TestValueRoundTrip(t *testing.T) {
	zone := time.FixedZone("CET", 60*60)
	values := []insights.Value{
		insights.Boolean(false),
		insights.Number(-3.25),
		insights.Number(math.MaxFloat64),
		insights.String(""),
		insights.String("héllo"),
		insights.NewDate(1999, time.December, 31),
		insights.NewDateTime(time.Date(2024, time.February, 29, 23, 59, 59, 123456789, zone)),
		insights.NewTime(0, 0, 0, 0),
		insights.NewTime(23, 59, 59, 999000000),
	}

	for _, value := range values {
		t.Run(value.Kind().String(), func(t *testing.T) {
			encoded, err := EncodeValue(value)
			require.NoError(t, err)

			decoded, err := DecodeValue(encoded)
			require.NoError(t, err)
			assert.Equal(t, value.Kind(), decoded.Kind())

			if dt, ok := value.(insights.DateTime); ok {
				assert.True(t, dt.Instant().Equal(decoded.(insights.DateTime).Instant()))
				return
			}
			assert.Equal(t, value, decoded)
		})
	}
}

func TestDecodeValue_Violations(t *testing.T) {
	tests := []struct {
		name  string
		value wire.Value
	}{
		{"nil", nil},
		{"nil boolean", (*wire.BooleanValue)(nil)},
		{"missing timestamp", &wire.DateValue{}},
		{"invalid timestamp", &wire.TimeValue{Value: &timestamppb.Timestamp{Nanos: -1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeValue(tt.value)
			assert.True(t, errors.Is(err, errors.ErrCodeInvalidValue), "got %v", err)
		})
	}
}

func TestEncodeItem_Entity(t *testing.T) {
	resp, err := EncodeItem(insights.Entity{
		ID:   "e1",
		Type: "person",
		Name: "Alice",
		Assignments: insights.Assignments{
			"email":  insights.String("alice@example.com"),
			"active": insights.Boolean(true),
		},
	})
	require.NoError(t, err)
	require.Equal(t, wire.CaseEntity, resp.Case())

	entity := resp.Value.(*wire.Entity)
	assert.Equal(t, "e1", entity.ID)
	assert.Equal(t, "person", entity.Type)
	assert.Equal(t, "Alice", entity.Name)
	require.Len(t, entity.Assignments, 2)
	assert.Equal(t, "active", entity.Assignments[0].AttributeTypeID)
	assert.Equal(t, "email", entity.Assignments[1].AttributeTypeID)
}

func TestEncodeItem_Relationship(t *testing.T) {
	resp, err := EncodeItem(&insights.Relationship{
		FromEntityID:   "e1",
		FromEntityType: "person",
		ToEntityID:     "e2",
		ToEntityType:   "person",
		Assignments:    insights.Assignments{"since": insights.NewDate(2020, time.January, 1)},
	})
	require.NoError(t, err)

	rel := resp.Value.(*wire.Relationship)
	assert.Equal(t, "e1", rel.FromEntityID)
	assert.Equal(t, "e2", rel.ToEntityID)
	require.Len(t, rel.Assignments, 1)

	since := rel.Assignments[0]
	assert.Equal(t, "since", since.AttributeTypeID)
	assert.Equal(t, wire.CaseDate, since.Value.Case())
	assert.True(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).Equal(since.Value.(*wire.DateValue).Value.AsTime()))
}

func TestEncodeItem_Log(t *testing.T) {
	tests := []struct {
		item      insights.Log
		wantLevel string
	}{
		{insights.Alert("disk almost full"), wire.CaseAlert},
		{insights.Info("import started"), wire.CaseInfo},
	}

	for _, tt := range tests {
		t.Run(tt.wantLevel, func(t *testing.T) {
			resp, err := EncodeItem(tt.item)
			require.NoError(t, err)

			log := resp.Value.(*wire.Log)
			assert.Equal(t, tt.wantLevel, log.Level.Case())
			assert.Equal(t, tt.item.Message, log.Message)
		})
	}
}

func TestEncodeItem_Violations(t *testing.T) {
	tests := []struct {
		name string
		item insights.Item
		code errors.ErrorCode
	}{
		{"nil item", nil, errors.ErrCodeInvalidItem},
		{"nil entity pointer", (*insights.Entity)(nil), errors.ErrCodeInvalidItem},
		{"unknown level", insights.Log{Level: insights.Level(7)}, errors.ErrCodeInvalidItem},
		{
			name: "invalid assignment",
			item: insights.Entity{ID: "e1", Assignments: insights.Assignments{"broken": nil}},
			code: errors.ErrCodeInvalidItem,
		},
		{
			name: "out of range date",
			item: insights.Entity{ID: "e1", Assignments: insights.Assignments{"born": insights.Date{}}},
			code: errors.ErrCodeInvalidItem,
		},
		{"invalid utf-8 name", insights.Entity{ID: "e1", Name: "\xff"}, errors.ErrCodeInvalidItem},
		{"invalid utf-8 attribute id", insights.Entity{ID: "e1", Assignments: insights.Assignments{"\xff": insights.Boolean(true)}}, errors.ErrCodeInvalidItem},
		{"invalid utf-8 endpoint", insights.Relationship{FromEntityID: "a", ToEntityID: "\xfe"}, errors.ErrCodeInvalidItem},
		{"invalid utf-8 log", insights.Info("bad \xc3"), errors.ErrCodeInvalidItem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := EncodeItem(tt.item)
			assert.Nil(t, resp)
			assert.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestEncodeItem_InvalidAssignmentMessage(t *testing.T) {
	_, err := EncodeItem(insights.Relationship{
		FromEntityID: "a",
		ToEntityID:   "b",
		Assignments:  insights.Assignments{"weight": nil},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"weight"`)
	assert.Contains(t, err.Error(), "value is nil")
}

func TestEncodeItem_OutOfRangeDateMessage(t *testing.T) {
	_, err := EncodeItem(insights.Entity{
		ID:          "e3",
		Assignments: insights.Assignments{"born": insights.NewDate(10000, time.January, 1)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `entity "e3"`)
	assert.Contains(t, err.Error(), "outside the representable range")
}

func TestItemRoundTrip(t *testing.T) {
	items := []insights.Item{
		insights.Entity{ID: "e1", Type: "person", Name: "Alice", Assignments: insights.Assignments{}},
		insights.Relationship{
			FromEntityID:   "e1",
			FromEntityType: "person",
			ToEntityID:     "e2",
			ToEntityType:   "team",
			Assignments: insights.Assignments{
				"since": insights.NewDate(2020, time.January, 1),
				"role":  insights.String("lead"),
			},
		},
		insights.Alert("missing manager"),
	}

	for _, item := range items {
		resp, err := EncodeItem(item)
		require.NoError(t, err)

		decoded, err := DecodeItem(resp)
		require.NoError(t, err)
		assert.Equal(t, item, decoded)
	}
}

func TestDecodeItem_Violations(t *testing.T) {
	tests := []struct {
		name string
		resp *wire.PerformImportResponse
	}{
		{"nil response", nil},
		{"empty response", &wire.PerformImportResponse{}},
		{"log without level", &wire.PerformImportResponse{Value: &wire.Log{Message: "x"}}},
		{
			name: "duplicate assignment",
			resp: &wire.PerformImportResponse{Value: &wire.Entity{
				ID: "e1",
				Assignments: []wire.AttributeAssignment{
					{AttributeTypeID: "a", Value: &wire.BooleanValue{Value: true}},
					{AttributeTypeID: "a", Value: &wire.BooleanValue{Value: false}},
				},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeItem(tt.resp)
			assert.True(t, errors.Is(err, errors.ErrCodeInvalidItem), "got %v", err)
		})
	}
}

func TestDecodeFields(t *testing.T) {
	nested, err := structpb.NewStruct(map[string]any{"region": "eu", "shards": []any{1, 2}})
	require.NoError(t, err)

	fields := map[string]*structpb.Value{
		"url":     structpb.NewStringValue("https://example.com"),
		"limit":   structpb.NewNumberValue(10),
		"verbose": structpb.NewBoolValue(true),
		"empty":   structpb.NewNullValue(),
		"missing": nil,
		"options": structpb.NewStructValue(nested),
		"tags":    structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{structpb.NewStringValue("a")}}),
	}

	decoded := DecodeFields(fields)

	assert.Len(t, decoded, len(fields))
	assert.Equal(t, "https://example.com", decoded["url"])
	assert.Equal(t, float64(10), decoded["limit"])
	assert.Equal(t, true, decoded["verbose"])
	assert.Nil(t, decoded["empty"])
	assert.Contains(t, decoded, "missing")
	assert.Nil(t, decoded["missing"])
	assert.Equal(t, map[string]any{"region": "eu", "shards": []any{float64(1), float64(2)}}, decoded["options"])
	assert.Equal(t, []any{"a"}, decoded["tags"])
}

func TestDecodeFields_Empty(t *testing.T) {
	decoded := DecodeFields(nil)
	assert.NotNil(t, decoded)
	assert.Empty(t, decoded)
}
