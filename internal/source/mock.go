package source

import (
	"context"
	"iter"

	"github.com/stretchr/testify/mock"

	"github.com/JamesPrial/custom-gateway-core/pkg/insights"
)

// MockBackend is a testify mock of Backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) PutItems(ctx context.Context, items []insights.Item) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}

func (m *MockBackend) Items(ctx context.Context, q Query) iter.Seq2[insights.Item, error] {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return insights.Items()
	}
	return args.Get(0).(iter.Seq2[insights.Item, error])
}

func (m *MockBackend) Statistics(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockBackend) Close() error {
	args := m.Called()
	return args.Error(0)
}
