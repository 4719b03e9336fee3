package client_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storylens/internal/client"
	"storylens/internal/models"
)

const poemJSON = `{"id":"abc123","story_text":"...","story_type":"poem","image_filename":"abc123.jpg","audio_filename":null,"audio_url":null,"created_at":"2024-01-01T00:00:00Z","updated_at":null}`

func newTestClient(t *testing.T, srv *httptest.Server, retries int) *client.StoryAPIClient {
	t.Helper()
	c, err := client.NewStoryAPIClient(srv.URL, 5*time.Second, retries, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewStoryAPIClient_InvalidURL(t *testing.T) {
	_, err := client.NewStoryAPIClient("not a url", time.Second, 0, nil)
	assert.Error(t, err)
}

func TestURLBuilders(t *testing.T) {
	c, err := client.NewStoryAPIClient("http://localhost:8000/", time.Second, 0, nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/api/images/abc123.jpg", c.ImageURL("abc123.jpg"))
	assert.Equal(t, "http://localhost:8000/api/audio/abc123.wav", c.AudioURL("abc123.wav"))
	// Имя файла не экранируется
	assert.Equal(t, "http://localhost:8000/api/images/a b.png", c.ImageURL("a b.png"))
}

func TestUploadAndGenerate(t *testing.T) {
	t.Run("Sends multipart request and decodes story", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/upload", r.URL.Path)

			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "poem", r.FormValue("story_type"))

			file, header, err := r.FormFile("file")
			require.NoError(t, err)
			defer file.Close()
			assert.Equal(t, "photo.jpg", header.Filename)
			assert.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))
			data, _ := io.ReadAll(file)
			assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xE0}, data)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(poemJSON))
		}))
		defer srv.Close()

		story, err := newTestClient(t, srv, 1).UploadAndGenerate(t.Context(), models.UploadRequest{
			File:      models.ImageFile{Name: "photo.jpg", ContentType: "image/jpeg", Data: []byte{0xFF, 0xD8, 0xFF, 0xE0}},
			StoryType: models.StoryTypePoem,
		})
		require.NoError(t, err)
		assert.Equal(t, "abc123", story.ID)
		assert.Equal(t, models.StoryTypePoem, story.StoryType)
		assert.False(t, story.HasAudio())
	})

	t.Run("Backend detail is surfaced and upload is not retried", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail":"Error processing request: model offline"}`))
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv, 1).UploadAndGenerate(t.Context(), models.UploadRequest{
			File:      models.ImageFile{Name: "photo.png", ContentType: "image/png", Data: []byte("x")},
			StoryType: models.StoryTypeStory,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrRequestFailed))
		assert.Equal(t, "Error processing request: model offline", client.DetailOf(err))
		assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	})
}

func TestListStories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stories", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("skip"))
		assert.Equal(t, "-1", r.URL.Query().Get("limit")) // не валидируется клиентом
		_, _ = w.Write([]byte("[" + poemJSON + "]"))
	}))
	defer srv.Close()

	stories, err := newTestClient(t, srv, 0).ListStories(t.Context(), 5, -1)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, "abc123", stories[0].ID)
}

func TestListStories_EmptyBodyDecodesToEmptySlice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("null"))
	}))
	defer srv.Close()

	stories, err := newTestClient(t, srv, 0).ListStories(t.Context(), 0, client.DefaultListLimit)
	require.NoError(t, err)
	assert.NotNil(t, stories)
	assert.Empty(t, stories)
}

func TestGetStory_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stories/missing", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Story not found"})
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, 1).GetStory(t.Context(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.True(t, errors.Is(err, models.ErrRequestFailed))

	var reqErr *client.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusNotFound, reqErr.StatusCode)
	assert.Equal(t, "Story not found", reqErr.Detail)
}

func TestGetStory_RetriesOnceOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(poemJSON))
	}))
	defer srv.Close()

	story, err := newTestClient(t, srv, 1).GetStory(t.Context(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", story.ID)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestGetStory_RetryLimitIsRespected(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, 1).GetStory(t.Context(), "abc123")
	require.Error(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))

	atomic.StoreInt32(&calls, 0)
	_, err = newTestClient(t, srv, 0).GetStory(t.Context(), "abc123")
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestDeleteStory(t *testing.T) {
	t.Run("Success ignores body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "/api/stories/abc123", r.URL.Path)
			_, _ = w.Write([]byte(`{"message":"Story deleted successfully"}`))
		}))
		defer srv.Close()

		assert.NoError(t, newTestClient(t, srv, 1).DeleteStory(t.Context(), "abc123"))
	})

	t.Run("Non-success status is a request error and is not retried", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail":[{"loc":["path"],"msg":"bad"}]}`))
		}))
		defer srv.Close()

		err := newTestClient(t, srv, 1).DeleteStory(t.Context(), "abc123")
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrRequestFailed))
		assert.False(t, errors.Is(err, models.ErrNotFound))
		assert.Empty(t, client.DetailOf(err), "non-string detail is ignored")
		assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	})
}

func TestNetworkErrorIsRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(t, srv, 0)
	srv.Close()

	_, err := c.ListStories(t.Context(), 0, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrRequestFailed))

	var reqErr *client.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Zero(t, reqErr.StatusCode)
}
