package codec

import (
	"unicode/utf8"

	"github.com/JamesPrial/custom-gateway-core/pkg/errors"
	"github.com/JamesPrial/custom-gateway-core/pkg/insights"
	"github.com/JamesPrial/custom-gateway-core/pkg/wire"
)

// EncodeItem converts a domain item to one response message. An item with an
// invalid assignment fails as a whole.
func EncodeItem(item insights.Item) (*wire.PerformImportResponse, error) {
	var payload wire.Payload
	switch item := item.(type) {
	case insights.Entity:
		if err := checkUTF8("id", item.ID, "type", item.Type, "name", item.Name); err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeInvalidItem, "entity %q: %s", item.ID, errors.GetMessage(err))
		}
		assignments, err := EncodeAssignments(item.Assignments)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeInvalidItem, "entity %q: %s", item.ID, errors.GetMessage(err))
		}
		payload = &wire.Entity{
			Assignments: assignments,
			ID:          item.ID,
			Name:        item.Name,
			Type:        item.Type,
		}
	case insights.Relationship:
		if err := checkUTF8(
			"fromEntityId", item.FromEntityID, "fromEntityType", item.FromEntityType,
			"toEntityId", item.ToEntityID, "toEntityType", item.ToEntityType,
		); err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeInvalidItem, "relationship %q -> %q: %s",
				item.FromEntityID, item.ToEntityID, errors.GetMessage(err))
		}
		assignments, err := EncodeAssignments(item.Assignments)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeInvalidItem, "relationship %q -> %q: %s",
				item.FromEntityID, item.ToEntityID, errors.GetMessage(err))
		}
		payload = &wire.Relationship{
			Assignments:    assignments,
			FromEntityID:   item.FromEntityID,
			FromEntityType: item.FromEntityType,
			ToEntityID:     item.ToEntityID,
			ToEntityType:   item.ToEntityType,
		}
	case insights.Log:
		level, err := encodeLevel(item.Level)
		if err != nil {
			return nil, err
		}
		if err := checkUTF8("message", item.Message); err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeInvalidItem, "log: %s", errors.GetMessage(err))
		}
		payload = &wire.Log{Level: level, Message: item.Message}
	case *insights.Entity:
		if item != nil {
			return EncodeItem(*item)
		}
	case *insights.Relationship:
		if item != nil {
			return EncodeItem(*item)
		}
	case *insights.Log:
		if item != nil {
			return EncodeItem(*item)
		}
	case nil:
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidItem, "unsupported item type %T", item)
	}

	if payload == nil {
		return nil, errors.New(errors.ErrCodeInvalidItem, "item is nil")
	}
	return &wire.PerformImportResponse{Value: payload}, nil
}

// EncodeAssignments encodes assignments sorted by attribute type id
func EncodeAssignments(assignments insights.Assignments) ([]wire.AttributeAssignment, error) {
	if len(assignments) == 0 {
		return nil, nil
	}

	encoded := make([]wire.AttributeAssignment, 0, len(assignments))
	for _, key := range assignments.SortedKeys() {
		if !utf8.ValidString(key) {
			return nil, errors.Newf(errors.ErrCodeInvalidValue, "attribute type id %q is not valid UTF-8", key)
		}
		value, err := EncodeValue(assignments[key])
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeInvalidValue, "assignment %q: %s", key, errors.GetMessage(err))
		}
		encoded = append(encoded, wire.AttributeAssignment{AttributeTypeID: key, Value: value})
	}
	return encoded, nil
}

// DecodeItem converts a response message back to its domain item
func DecodeItem(resp *wire.PerformImportResponse) (insights.Item, error) {
	if resp == nil {
		return nil, errors.New(errors.ErrCodeInvalidItem, "response is nil")
	}

	switch payload := resp.Value.(type) {
	case *wire.Entity:
		if payload == nil {
			break
		}
		assignments, err := DecodeAssignments(payload.Assignments)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeInvalidItem, "entity %q: %s", payload.ID, errors.GetMessage(err))
		}
		return insights.Entity{
			ID:          payload.ID,
			Type:        payload.Type,
			Name:        payload.Name,
			Assignments: assignments,
		}, nil
	case *wire.Relationship:
		if payload == nil {
			break
		}
		assignments, err := DecodeAssignments(payload.Assignments)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeInvalidItem, "relationship %q -> %q: %s",
				payload.FromEntityID, payload.ToEntityID, errors.GetMessage(err))
		}
		return insights.Relationship{
			FromEntityID:   payload.FromEntityID,
			FromEntityType: payload.FromEntityType,
			ToEntityID:     payload.ToEntityID,
			ToEntityType:   payload.ToEntityType,
			Assignments:    assignments,
		}, nil
	case *wire.Log:
		if payload == nil {
			break
		}
		level, err := decodeLevel(payload.Level)
		if err != nil {
			return nil, err
		}
		return insights.Log{Level: level, Message: payload.Message}, nil
	case nil:
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidItem, "unsupported payload type %T", payload)
	}
	return nil, errors.New(errors.ErrCodeInvalidItem, "response carries no payload")
}

// DecodeAssignments rebuilds an assignment map, rejecting duplicate ids
func DecodeAssignments(assignments []wire.AttributeAssignment) (insights.Assignments, error) {
	decoded := make(insights.Assignments, len(assignments))
	for _, assignment := range assignments {
		if _, exists := decoded[assignment.AttributeTypeID]; exists {
			return nil, errors.Newf(errors.ErrCodeInvalidValue, "duplicate assignment %q", assignment.AttributeTypeID)
		}
		value, err := DecodeValue(assignment.Value)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeInvalidValue, "assignment %q: %s",
				assignment.AttributeTypeID, errors.GetMessage(err))
		}
		decoded[assignment.AttributeTypeID] = value
	}
	return decoded, nil
}

func encodeLevel(level insights.Level) (wire.Level, error) {
	switch level {
	case insights.LevelAlert:
		return &wire.AlertLevel{}, nil
	case insights.LevelInfo:
		return &wire.InfoLevel{}, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidItem, "unsupported log level %d", int(level))
	}
}

func decodeLevel(level wire.Level) (insights.Level, error) {
	switch level.(type) {
	case *wire.AlertLevel:
		return insights.LevelAlert, nil
	case *wire.InfoLevel:
		return insights.LevelInfo, nil
	case nil:
		return 0, errors.New(errors.ErrCodeInvalidItem, "log has no level")
	default:
		return 0, errors.Newf(errors.ErrCodeInvalidItem, "unsupported log level type %T", level)
	}
}

// checkUTF8 takes name, text pairs and rejects the first text that is not
// valid UTF-8, which the wire format cannot carry unaltered
func checkUTF8(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if !utf8.ValidString(pairs[i+1]) {
			return errors.Newf(errors.ErrCodeInvalidValue, "%s is not valid UTF-8", pairs[i])
		}
	}
	return nil
}
