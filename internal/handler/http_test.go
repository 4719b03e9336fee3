package handler_test

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storylens/internal/cache"
	"storylens/internal/client"
	"storylens/internal/handler"
	"storylens/internal/mocks"
	"storylens/internal/models"
	"storylens/internal/shell"
	"storylens/internal/web"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	api     *mocks.MockStoryAPI
	events  *mocks.MockStoryEventPublisher
	router  *gin.Engine
	cookies map[string]string
}

func newTestServer(t *testing.T, opts handler.Options, uploadLimit uint) *testServer {
	t.Helper()
	ts := &testServer{
		api:     mocks.NewMockStoryAPI(t),
		events:  mocks.NewMockStoryEventPublisher(t),
		cookies: map[string]string{},
	}
	if opts.FlashSecret == nil {
		opts.FlashSecret = []byte("test-secret")
	}
	if opts.SessionTTL == 0 {
		opts.SessionTTL = time.Hour
	}

	queryCache := cache.New(cache.NewMemoryStore(), time.Minute, nil)
	sh := shell.New(ts.api, queryCache, ts.events, nil)
	h := handler.NewStoryHandler(sh, shell.NewSessionStore(opts.SessionTTL, nil), nil, opts, nil)

	ts.router = gin.New()
	ts.router.Use(handler.CustomErrorMiddleware(zap.NewNop()))
	require.NoError(t, web.Install(ts.router, ""))
	h.RegisterRoutes(ts.router, h.SubmitRateLimiter(handler.NewRateLimitStore(nil, uploadLimit)))
	return ts
}

// do выполняет запрос с накопленными cookie, как браузер.
func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	for name, value := range ts.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(ts.cookies, c.Name)
			continue
		}
		ts.cookies[c.Name] = c.Value
	}
	return rec
}

func (ts *testServer) get(path string) *httptest.ResponseRecorder {
	return ts.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (ts *testServer) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return ts.do(req)
}

func (ts *testServer) postFile(t *testing.T, path, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return ts.do(req)
}

func jpegBytes(size int) []byte {
	data := make([]byte, size)
	copy(data, []byte{0xFF, 0xD8, 0xFF, 0xE0})
	return data
}

func sampleStory(id string, t models.StoryType) models.Story {
	return models.Story{
		ID:            id,
		StoryText:     "Once upon a time",
		StoryType:     t,
		ImageFilename: id + ".jpg",
		CreatedAt:     "2024-01-01T00:00:00Z",
	}
}

func assertRedirectHome(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestIndex_NewSessionShowsUploaderAndLoadingGallery(t *testing.T) {
	ts := newTestServer(t, handler.Options{}, 10)

	rec := ts.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.NotEmpty(t, ts.cookies["storylens_session"])
	assert.Contains(t, body, "Drag &amp; drop an image here, or click to select")
	assert.Contains(t, body, `data-state="loading"`)
	assert.Equal(t, web.SkeletonCount, strings.Count(body, "card skeleton"))
	// Пустая страница не ходит в бэкенд
	ts.api.AssertNotCalled(t, "ListStories", mock.Anything, mock.Anything, mock.Anything)
}

func TestGalleryPartial(t *testing.T) {
	t.Run("Populated", func(t *testing.T) {
		ts := newTestServer(t, handler.Options{}, 10)
		ts.api.On("ListStories", mock.Anything, 0, client.DefaultListLimit).
			Return([]models.Story{sampleStory("abc123", models.StoryTypePoem), sampleStory("def456", models.StoryTypeStory)}, nil).Once()

		rec := ts.get("/partials/gallery")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "populated", rec.Header().Get("X-Gallery-State"))
		body := rec.Body.String()
		assert.Contains(t, body, "2 stories")
		assert.Contains(t, body, "📝 Poem")
		assert.Contains(t, body, "Jan 1, 2024, 12:00 AM")
		assert.Contains(t, body, "http://backend.test/api/images/abc123.jpg")
		assert.Contains(t, body, `action="/stories/abc123/delete"`)

		// Второй запрос обслуживается из кэша, полная страница тоже
		assert.Equal(t, http.StatusOK, ts.get("/partials/gallery").Code)
		assert.Contains(t, ts.get("/").Body.String(), "Your Stories")
	})

	t.Run("Error", func(t *testing.T) {
		ts := newTestServer(t, handler.Options{}, 10)
		ts.api.On("ListStories", mock.Anything, 0, client.DefaultListLimit).
			Return(nil, &client.RequestError{Op: "list stories", StatusCode: 502}).Once()

		rec := ts.get("/partials/gallery")
		assert.Equal(t, "error", rec.Header().Get("X-Gallery-State"))
		assert.Contains(t, rec.Body.String(), "Failed to load stories. Please try again.")
	})

	t.Run("Read-only has no delete controls", func(t *testing.T) {
		ts := newTestServer(t, handler.Options{ReadOnly: true}, 10)
		ts.api.On("ListStories", mock.Anything, 0, client.DefaultListLimit).
			Return([]models.Story{sampleStory("abc123", models.StoryTypePoem)}, nil).Once()

		body := ts.get("/partials/gallery").Body.String()
		assert.Contains(t, body, "1 story")
		assert.NotContains(t, body, "/delete")
	})
}

func TestUploadFlow(t *testing.T) {
	ts := newTestServer(t, handler.Options{}, 10)
	created := sampleStory("abc123", models.StoryTypePoem)

	assertRedirectHome(t, ts.postFile(t, "/upload/select", "photo.jpg", jpegBytes(2<<20)))

	page := ts.get("/").Body.String()
	assert.Contains(t, page, "photo.jpg (2.0 MB)")
	assert.Contains(t, page, "data:image/jpeg;base64,")
	assert.Contains(t, page, "Generate Story")

	ts.api.On("UploadAndGenerate", mock.Anything, mock.MatchedBy(func(req models.UploadRequest) bool {
		return req.StoryType == models.StoryTypePoem && req.File.Name == "photo.jpg"
	})).Return(&created, nil).Once()
	ts.events.On("PublishStoryEvent", mock.Anything, mock.Anything).Return(nil).Once()

	assertRedirectHome(t, ts.postForm("/upload/submit", url.Values{"story_type": {"poem"}}))

	page = ts.get("/").Body.String()
	assert.Contains(t, page, shell.MsgUploadSucceeded)
	assert.NotContains(t, page, "Drag &amp; drop", "uploader is hidden after a successful upload")

	// Уведомление показывается один раз
	assert.NotContains(t, ts.get("/").Body.String(), shell.MsgUploadSucceeded)

	ts.api.On("ListStories", mock.Anything, 0, client.DefaultListLimit).
		Return([]models.Story{created}, nil).Once()
	gallery := ts.get("/partials/gallery").Body.String()
	assert.Contains(t, gallery, "📝 Poem")
	assert.Contains(t, gallery, "Create New Story")

	assertRedirectHome(t, ts.postForm("/stories/new", nil))
	assert.Contains(t, ts.get("/").Body.String(), "Drag &amp; drop")
}

func TestUpload_FailureShowsBackendDetail(t *testing.T) {
	ts := newTestServer(t, handler.Options{}, 10)
	assertRedirectHome(t, ts.postFile(t, "/upload/select", "photo.jpg", jpegBytes(1024)))

	ts.api.On("UploadAndGenerate", mock.Anything, mock.Anything).
		Return(nil, &client.RequestError{Op: "upload", StatusCode: 500, Detail: "Model is warming up"}).Once()

	assertRedirectHome(t, ts.postForm("/upload/submit", nil))
	page := ts.get("/").Body.String()
	assert.Contains(t, page, "Model is warming up")
	assert.Contains(t, page, "photo.jpg", "selection survives a failed upload")
}

func TestSelect_RejectedFile(t *testing.T) {
	ts := newTestServer(t, handler.Options{}, 10)

	assertRedirectHome(t, ts.postFile(t, "/upload/select", "notes.txt", []byte("hello")))
	page := ts.get("/").Body.String()
	// Апостроф в тексте экранируется шаблоном
	assert.Contains(t, page, "Supports JPEG, PNG, WebP (max 10MB)")
	assert.Contains(t, page, "Drag &amp; drop", "state is unchanged")
}

func TestReset(t *testing.T) {
	ts := newTestServer(t, handler.Options{}, 10)
	ts.postFile(t, "/upload/select", "photo.jpg", jpegBytes(1024))

	assertRedirectHome(t, ts.postForm("/upload/reset", nil))
	assert.Contains(t, ts.get("/").Body.String(), "Drag &amp; drop")
}

func TestSubmit_WithoutFile(t *testing.T) {
	ts := newTestServer(t, handler.Options{}, 10)

	assertRedirectHome(t, ts.postForm("/upload/submit", nil))
	assert.Contains(t, ts.get("/").Body.String(), shell.MsgNoFile)
}

func TestSubmit_InvalidStoryType(t *testing.T) {
	ts := newTestServer(t, handler.Options{}, 10)

	rec := ts.postForm("/upload/submit", url.Values{"story_type": {"limerick"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmit_RateLimited(t *testing.T) {
	ts := newTestServer(t, handler.Options{}, 1)
	// Ключ лимитера - сессия, поэтому сначала получаем cookie
	ts.get("/")

	assertRedirectHome(t, ts.postForm("/upload/submit", nil))
	ts.get("/")

	assertRedirectHome(t, ts.postForm("/upload/submit", nil))
	assert.Contains(t, ts.get("/").Body.String(), "Too many stories generated")
	ts.api.AssertNotCalled(t, "UploadAndGenerate", mock.Anything, mock.Anything)
}

func TestSubmit_RateLimitIgnoresUnknownSessionCookies(t *testing.T) {
	ts := newTestServer(t, handler.Options{}, 1)

	// Каждый запрос с новой выдуманной cookie сессии
	submit := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/upload/submit", nil)
		req.AddCookie(&http.Cookie{Name: "storylens_session", Value: uuid.NewString()})
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)
		return rec
	}
	flashOf := func(rec *httptest.ResponseRecorder) string {
		for _, c := range rec.Result().Cookies() {
			if c.Name == "storylens_flash" {
				return c.Value
			}
		}
		return ""
	}
	pageWithFlash := func(flash string) string {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "storylens_flash", Value: flash})
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)
		return rec.Body.String()
	}

	first := submit()
	assertRedirectHome(t, first)
	assert.Contains(t, pageWithFlash(flashOf(first)), shell.MsgNoFile)

	second := submit()
	assertRedirectHome(t, second)
	assert.Contains(t, pageWithFlash(flashOf(second)), "Too many stories generated")
}

func TestDeleteStory(t *testing.T) {
	t.Run("Not confirmed", func(t *testing.T) {
		ts := newTestServer(t, handler.Options{}, 10)

		assertRedirectHome(t, ts.postForm("/stories/abc123/delete", nil))
		ts.api.AssertNotCalled(t, "DeleteStory", mock.Anything, mock.Anything)
	})

	t.Run("Confirmed", func(t *testing.T) {
		ts := newTestServer(t, handler.Options{}, 10)
		ts.api.On("DeleteStory", mock.Anything, "abc123").Return(nil).Once()
		ts.events.On("PublishStoryEvent", mock.Anything, mock.Anything).Return(nil).Once()

		assertRedirectHome(t, ts.postForm("/stories/abc123/delete", url.Values{"confirm": {"yes"}}))
		assert.Contains(t, ts.get("/").Body.String(), shell.MsgDeleteSucceeded)
	})

	t.Run("Backend failure", func(t *testing.T) {
		ts := newTestServer(t, handler.Options{}, 10)
		ts.api.On("DeleteStory", mock.Anything, "abc123").
			Return(&client.RequestError{Op: "delete story", StatusCode: 500}).Once()

		assertRedirectHome(t, ts.postForm("/stories/abc123/delete", url.Values{"confirm": {"yes"}}))
		assert.Contains(t, ts.get("/").Body.String(), shell.MsgDeleteFailed)
	})

	t.Run("Read-only", func(t *testing.T) {
		ts := newTestServer(t, handler.Options{ReadOnly: true}, 10)

		rec := ts.postForm("/stories/abc123/delete", url.Values{"confirm": {"yes"}})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestStoryPage(t *testing.T) {
	ts := newTestServer(t, handler.Options{}, 10)
	s := sampleStory("abc123", models.StoryTypePoem)
	ts.api.On("GetStory", mock.Anything, "abc123").Return(&s, nil).Once()
	ts.api.On("GetStory", mock.Anything, "missing").
		Return(nil, fmt.Errorf("get: %w", &client.RequestError{Op: "get story", StatusCode: 404})).Once()
	ts.api.On("GetStory", mock.Anything, "broken").
		Return(nil, &client.RequestError{Op: "get story", StatusCode: 500}).Once()

	rec := ts.get("/stories/abc123")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Once upon a time")
	assert.NotContains(t, rec.Body.String(), "/delete")

	rec = ts.get("/stories/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Story not found")

	rec = ts.get("/stories/broken")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Something went wrong")
}

func TestUnknownRouteRendersNotFoundPage(t *testing.T) {
	ts := newTestServer(t, handler.Options{}, 10)

	rec := ts.get("/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page not found")
}

func TestConnectionManager_Broadcast(t *testing.T) {
	m := handler.NewConnectionManager(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Без клиентов рассылка не блокируется
	m.NotifyInvalidated(cache.KeyStories)
	go m.Run(ctx)
	assert.Eventually(t, func() bool { return m.Broadcast([]byte("x")) }, time.Second, 10*time.Millisecond)
}
