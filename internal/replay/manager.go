// Package replay implements a gateway that streams items from a source
// backend
package replay

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JamesPrial/custom-gateway-core/internal/source"
	"github.com/JamesPrial/custom-gateway-core/pkg/errors"
	"github.com/JamesPrial/custom-gateway-core/pkg/insights"
	"github.com/JamesPrial/custom-gateway-core/pkg/logging"
)

// Request holds the import fields the replay gateway understands. Unknown
// fields are ignored.
type Request struct {
	EntityTypes          []string `mapstructure:"entityTypes" validate:"dive,required"`
	IncludeRelationships bool     `mapstructure:"includeRelationships"`
	Limit                int      `mapstructure:"limit" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseRequest binds and validates import fields
func ParseRequest(fields map[string]any) (Request, error) {
	var req Request
	if err := insights.BindFields(fields, &req); err != nil {
		return Request{}, errors.Wrap(err, errors.ErrCodeValidationType, err.Error())
	}
	for i, entityType := range req.EntityTypes {
		req.EntityTypes[i] = strings.TrimSpace(entityType)
	}
	if err := validate.Struct(req); err != nil {
		if fieldErrors, ok := err.(validator.ValidationErrors); ok && len(fieldErrors) > 0 {
			fe := fieldErrors[0]
			appErr := errors.ValidationInvalid(fe.Namespace(), "failed "+fe.Tag()+" validation").
				WithDetails(map[string]string{"field": fe.Namespace(), "rule": fe.Tag()})
			appErr.Internal = err
			return Request{}, appErr
		}
		return Request{}, errors.Wrap(err, errors.ErrCodeValidationInvalid, err.Error())
	}
	return req, nil
}

// Query converts the request into a backend query
func (r Request) Query() source.Query {
	return source.Query{
		EntityTypes:          r.EntityTypes,
		IncludeRelationships: r.IncludeRelationships,
		Limit:                r.Limit,
	}
}

// Manager replays stored items as import streams
type Manager struct {
	backend source.Backend
	logger  *slog.Logger
}

// NewManager creates a new Manager instance with the provided backend
func NewManager(backend source.Backend) *Manager {
	return &Manager{
		backend: backend,
		logger:  logging.GetGlobalLogger("replay"),
	}
}

// Handle is an insights.Handler. The stream opens and closes with an info
// log; a source failure ends it with that error.
func (m *Manager) Handle(ctx context.Context, fields map[string]any) iter.Seq2[insights.Item, error] {
	return func(yield func(insights.Item, error) bool) {
		req, err := ParseRequest(fields)
		if err != nil {
			m.logger.WarnContext(ctx, "Rejected replay request", slog.String("error", err.Error()))
			yield(nil, err)
			return
		}

		if !yield(insights.Info(describeRequest(req)), nil) {
			return
		}

		count := 0
		for item, err := range m.backend.Items(ctx, req.Query()) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(item, nil) {
				return
			}
			count++
		}

		m.logger.DebugContext(ctx, "Replay finished", slog.Int("items", count))
		if count == 0 {
			yield(insights.Alert("no stored items matched the request"), nil)
			return
		}
		yield(insights.Info(fmt.Sprintf("replayed %d items", count)), nil)
	}
}

// Statistics reports the backend's item counts
func (m *Manager) Statistics(ctx context.Context) (map[string]int, error) {
	return m.backend.Statistics(ctx)
}

func describeRequest(req Request) string {
	var b strings.Builder
	b.WriteString("replay started")
	if len(req.EntityTypes) > 0 {
		fmt.Fprintf(&b, " for types %s", strings.Join(req.EntityTypes, ", "))
	}
	if req.IncludeRelationships {
		b.WriteString(" with relationships")
	}
	if req.Limit > 0 {
		fmt.Fprintf(&b, " (limit %d)", req.Limit)
	}
	return b.String()
}
