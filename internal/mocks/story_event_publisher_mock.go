package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"storylens/internal/messaging"
)

// MockStoryEventPublisher is a mock type for the StoryEventPublisher type
type MockStoryEventPublisher struct {
	mock.Mock
}

// PublishStoryEvent provides a mock function with given fields: ctx, event
func (_m *MockStoryEventPublisher) PublishStoryEvent(ctx context.Context, event messaging.StoryEvent) error {
	ret := _m.Called(ctx, event)

	if rf, ok := ret.Get(0).(func(context.Context, messaging.StoryEvent) error); ok {
		return rf(ctx, event)
	}
	return ret.Error(0)
}

// Close provides a mock function with given fields:
func (_m *MockStoryEventPublisher) Close() error {
	return _m.Called().Error(0)
}

// NewMockStoryEventPublisher creates a new instance of MockStoryEventPublisher. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockStoryEventPublisher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStoryEventPublisher {
	m := &MockStoryEventPublisher{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ messaging.StoryEventPublisher = (*MockStoryEventPublisher)(nil)
