package insights

import (
	"fmt"
	"time"
)

// Kind identifies which variant a Value holds
type Kind int

const (
	KindBoolean Kind = iota + 1
	KindDate
	KindDateTime
	KindNumber
	KindString
	KindTime
)

// String returns the wire tag for the kind
func (k Kind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	case KindDateTime:
		return "dateTime"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is an attribute value. The set of implementations is closed: only the
// six types declared in this file satisfy it.
type Value interface {
	Kind() Kind
	isValue()
}

// Boolean holds a true/false attribute value
type Boolean bool

// Number holds a numeric attribute value
type Number float64

// String holds a textual attribute value
type String string

// Date holds a calendar date without time of day or zone
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateTime holds an absolute point in time
type DateTime struct {
	time.Time
}

// Time holds a time of day without date or zone
type Time struct {
	Hour       int
	Minute     int
	Second     int
	Nanosecond int
}

func (Boolean) Kind() Kind  { return KindBoolean }
func (Number) Kind() Kind   { return KindNumber }
func (String) Kind() Kind   { return KindString }
func (Date) Kind() Kind     { return KindDate }
func (DateTime) Kind() Kind { return KindDateTime }
func (Time) Kind() Kind     { return KindTime }

func (Boolean) isValue()  {}
func (Number) isValue()   {}
func (String) isValue()   {}
func (Date) isValue()     {}
func (DateTime) isValue() {}
func (Time) isValue()     {}

// NewDate creates a Date from its calendar components
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf returns the calendar date of t as observed in t's own location
func DateOf(t time.Time) Date {
	year, month, day := t.Date()
	return Date{Year: year, Month: month, Day: day}
}

// NewDateTime creates a DateTime from t
func NewDateTime(t time.Time) DateTime {
	return DateTime{Time: t}
}

// NewTime creates a Time from its clock components
func NewTime(hour, minute, second, nanosecond int) Time {
	return Time{Hour: hour, Minute: minute, Second: second, Nanosecond: nanosecond}
}

// TimeOf returns the clock time of t as observed in t's own location
func TimeOf(t time.Time) Time {
	hour, minute, second := t.Clock()
	return Time{Hour: hour, Minute: minute, Second: second, Nanosecond: t.Nanosecond()}
}

// Instant returns midnight UTC at the start of the date
func (d Date) Instant() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// String formats the date as YYYY-MM-DD
func (d Date) String() string {
	return d.Instant().Format(time.DateOnly)
}

// Instant returns the date-time in UTC
func (dt DateTime) Instant() time.Time {
	return dt.Time.UTC()
}

// Instant returns the time of day on 1970-01-01 UTC
func (t Time) Instant() time.Time {
	return time.Date(1970, time.January, 1, t.Hour, t.Minute, t.Second, t.Nanosecond, time.UTC)
}

// String formats the time as hh:mm:ss with fractional seconds when present
func (t Time) String() string {
	return t.Instant().Format("15:04:05.999999999")
}
