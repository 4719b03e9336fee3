package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"storylens/internal/client"
	"storylens/internal/models"
)

// MockStoryAPI is a mock type for the StoryAPI type
type MockStoryAPI struct {
	mock.Mock
}

// UploadAndGenerate provides a mock function with given fields: ctx, req
func (_m *MockStoryAPI) UploadAndGenerate(ctx context.Context, req models.UploadRequest) (*models.Story, error) {
	ret := _m.Called(ctx, req)

	var r0 *models.Story
	if rf, ok := ret.Get(0).(func(context.Context, models.UploadRequest) *models.Story); ok {
		r0 = rf(ctx, req)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Story)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, models.UploadRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ListStories provides a mock function with given fields: ctx, skip, limit
func (_m *MockStoryAPI) ListStories(ctx context.Context, skip int, limit int) ([]models.Story, error) {
	ret := _m.Called(ctx, skip, limit)

	var r0 []models.Story
	if rf, ok := ret.Get(0).(func(context.Context, int, int) []models.Story); ok {
		r0 = rf(ctx, skip, limit)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]models.Story)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, int, int) error); ok {
		r1 = rf(ctx, skip, limit)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetStory provides a mock function with given fields: ctx, id
func (_m *MockStoryAPI) GetStory(ctx context.Context, id string) (*models.Story, error) {
	ret := _m.Called(ctx, id)

	var r0 *models.Story
	if rf, ok := ret.Get(0).(func(context.Context, string) *models.Story); ok {
		r0 = rf(ctx, id)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Story)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, id)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// DeleteStory provides a mock function with given fields: ctx, id
func (_m *MockStoryAPI) DeleteStory(ctx context.Context, id string) error {
	ret := _m.Called(ctx, id)

	if rf, ok := ret.Get(0).(func(context.Context, string) error); ok {
		return rf(ctx, id)
	}
	return ret.Error(0)
}

// ImageURL builds the URL without recording a call, like the real client.
func (_m *MockStoryAPI) ImageURL(filename string) string {
	return _m.BaseURL() + "/api/images/" + filename
}

// AudioURL builds the URL without recording a call, like the real client.
func (_m *MockStoryAPI) AudioURL(filename string) string {
	return _m.BaseURL() + "/api/audio/" + filename
}

// BaseURL returns a fixed test address.
func (_m *MockStoryAPI) BaseURL() string {
	return "http://backend.test"
}

// NewMockStoryAPI creates a new instance of MockStoryAPI. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockStoryAPI(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStoryAPI {
	m := &MockStoryAPI{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ client.StoryAPI = (*MockStoryAPI)(nil)
