package services_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/locationhierarchy/internal/domain/entities"
	"github.com/zatekoja/locationhierarchy/internal/domain/repositories"
)

type mockSearchRepository struct {
	mock.Mock
}

func (m *mockSearchRepository) Index(ctx context.Context, location *entities.Location) error {
	return m.Called(ctx, location).Error(0)
}

func (m *mockSearchRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockSearchRepository) Search(ctx context.Context, params repositories.LocationSearchParams) ([]string, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockCurrentLocationProvider struct {
	mock.Mock
}

func (m *mockCurrentLocationProvider) Get(ctx context.Context, userID string) (*entities.Location, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Location), args.Error(1)
}

func (m *mockCurrentLocationProvider) Set(ctx context.Context, userID string, location *entities.Location) error {
	return m.Called(ctx, userID, location).Error(0)
}

func (m *mockCurrentLocationProvider) Clear(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) Publish(ctx context.Context, channel string, event *entities.LocationEvent) error {
	return m.Called(ctx, channel, event).Error(0)
}

func (m *mockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.LocationEvent, error) {
	args := m.Called(ctx, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan *entities.LocationEvent), args.Error(1)
}

func (m *mockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	return m.Called(ctx, channel).Error(0)
}

func (m *mockEventBus) Close() error {
	return m.Called().Error(0)
}
