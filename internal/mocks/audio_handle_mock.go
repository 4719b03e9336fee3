package mocks

import (
	"github.com/stretchr/testify/mock"

	"storylens/internal/card"
)

// MockAudioHandle is a mock type for the AudioHandle type
type MockAudioHandle struct {
	mock.Mock
}

// Play provides a mock function with given fields:
func (_m *MockAudioHandle) Play() error {
	return _m.Called().Error(0)
}

// Pause provides a mock function with given fields:
func (_m *MockAudioHandle) Pause() error {
	return _m.Called().Error(0)
}

// Stop provides a mock function with given fields:
func (_m *MockAudioHandle) Stop() error {
	return _m.Called().Error(0)
}

// NewMockAudioHandle creates a new instance of MockAudioHandle. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockAudioHandle(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockAudioHandle {
	m := &MockAudioHandle{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ card.AudioHandle = (*MockAudioHandle)(nil)
