package wire

import (
	"encoding/json"
	"fmt"
)

// Response payload cases
const (
	CaseEntity       = "entity"
	CaseLog          = "log"
	CaseRelationship = "relationship"
)

// Level cases
const (
	CaseAlert = "alert"
	CaseInfo  = "info"
)

// Payload is one response unit of a PerformImport stream. Implemented by
// Entity, Log and Relationship.
type Payload interface {
	Case() string
	isPayload()
}

// Entity mirrors elimity.insights.common.v1alpha1.Entity
type Entity struct {
	Assignments []AttributeAssignment `json:"assignments,omitempty"`
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Type        string                `json:"type"`
}

// Relationship mirrors elimity.insights.common.v1alpha1.Relationship
type Relationship struct {
	Assignments    []AttributeAssignment `json:"assignments,omitempty"`
	FromEntityID   string                `json:"fromEntityId"`
	FromEntityType string                `json:"fromEntityType"`
	ToEntityID     string                `json:"toEntityId"`
	ToEntityType   string                `json:"toEntityType"`
}

// Log mirrors elimity.insights.customgateway.v1alpha1.Log
type Log struct {
	Level   Level
	Message string
}

func (*Entity) Case() string       { return CaseEntity }
func (*Log) Case() string          { return CaseLog }
func (*Relationship) Case() string { return CaseRelationship }

func (*Entity) isPayload()       {}
func (*Log) isPayload()          {}
func (*Relationship) isPayload() {}

// Level is the severity of a Log. Both cases carry an empty payload.
type Level interface {
	Case() string
	isLevel()
}

type AlertLevel struct{}

type InfoLevel struct{}

func (*AlertLevel) Case() string { return CaseAlert }
func (*InfoLevel) Case() string  { return CaseInfo }

func (*AlertLevel) isLevel() {}
func (*InfoLevel) isLevel()  {}

type logJSON struct {
	Level   json.RawMessage `json:"level"`
	Message string          `json:"message"`
}

// MarshalJSON implements json.Marshaler
func (l *Log) MarshalJSON() ([]byte, error) {
	var name string
	switch l.Level.(type) {
	case *AlertLevel:
		name = CaseAlert
	case *InfoLevel:
		name = CaseInfo
	case nil:
		return nil, fmt.Errorf("log level: %w", ErrNoCase)
	default:
		return nil, fmt.Errorf("log level: %w: %T", ErrUnknownCase, l.Level)
	}

	level, err := marshalOneof(name, []byte("{}"))
	if err != nil {
		return nil, err
	}
	return json.Marshal(logJSON{Level: level, Message: l.Message})
}

// UnmarshalJSON implements json.Unmarshaler
func (l *Log) UnmarshalJSON(data []byte) error {
	var raw logJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	name, _, err := unmarshalOneof(raw.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	switch name {
	case CaseAlert:
		l.Level = &AlertLevel{}
	case CaseInfo:
		l.Level = &InfoLevel{}
	default:
		return fmt.Errorf("log level: %w: %q", ErrUnknownCase, name)
	}
	l.Message = raw.Message
	return nil
}

// PerformImportResponse is one message of the PerformImport response stream
type PerformImportResponse struct {
	Value Payload
}

// Case returns the case of the carried payload, or "" when unset
func (r *PerformImportResponse) Case() string {
	if r == nil || r.Value == nil {
		return ""
	}
	return r.Value.Case()
}

// MarshalJSON implements json.Marshaler
func (r *PerformImportResponse) MarshalJSON() ([]byte, error) {
	var (
		payload []byte
		err     error
	)
	switch v := r.Value.(type) {
	case *Entity:
		payload, err = json.Marshal(v)
	case *Log:
		payload, err = json.Marshal(v)
	case *Relationship:
		payload, err = json.Marshal(v)
	case nil:
		return nil, ErrNoCase
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCase, v)
	}
	if err != nil {
		return nil, err
	}
	return marshalOneof(r.Value.Case(), payload)
}

// UnmarshalJSON implements json.Unmarshaler
func (r *PerformImportResponse) UnmarshalJSON(data []byte) error {
	name, payload, err := unmarshalOneof(data)
	if err != nil {
		return err
	}

	switch name {
	case CaseEntity:
		var entity Entity
		if err := json.Unmarshal(payload, &entity); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		r.Value = &entity
	case CaseLog:
		var log Log
		if err := json.Unmarshal(payload, &log); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		r.Value = &log
	case CaseRelationship:
		var relationship Relationship
		if err := json.Unmarshal(payload, &relationship); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		r.Value = &relationship
	default:
		return fmt.Errorf("%w: response case %q", ErrUnknownCase, name)
	}
	return nil
}
