package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"storylens/internal/models"
)

// maxResponseBytes ограничивает чтение ответа бэкенда (список из сотни историй с запасом).
const maxResponseBytes = 16 << 20

// StoryAPIClient реализует StoryAPI поверх REST API бэкенда.
type StoryAPIClient struct {
	baseURL    string // без завершающего слэша, например http://localhost:8000
	apiURL     string // baseURL + "/api"
	httpClient *http.Client
	logger     *zap.Logger
}

var _ StoryAPI = (*StoryAPIClient)(nil)

// NewStoryAPIClient создает клиент с фиксированным базовым адресом и таймаутом.
// retries - число прозрачных повторов GET-запросов на уровне транспорта (0 - без повторов).
func NewStoryAPIClient(baseURL string, timeout time.Duration, retries int, logger *zap.Logger) (*StoryAPIClient, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL for story backend: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("StoryAPIClient")
	base := strings.TrimRight(baseURL, "/")

	return &StoryAPIClient{
		baseURL: base,
		apiURL:  base + "/api",
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: newRetryTransport(http.DefaultTransport, retries, log),
		},
		logger: log,
	}, nil
}

// BaseURL возвращает базовый адрес бэкенда.
func (c *StoryAPIClient) BaseURL() string { return c.baseURL }

// ImageURL строит ссылку на исходное изображение истории.
func (c *StoryAPIClient) ImageURL(filename string) string {
	return c.apiURL + "/images/" + filename
}

// AudioURL строит ссылку на файл озвучки.
func (c *StoryAPIClient) AudioURL(filename string) string {
	return c.apiURL + "/audio/" + filename
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// UploadAndGenerate отправляет multipart запрос POST /upload.
func (c *StoryAPIClient) UploadAndGenerate(ctx context.Context, req models.UploadRequest) (*models.Story, error) {
	const op = "upload"
	uploadURL := c.apiURL + "/upload"
	log := c.logger.With(
		zap.String("url", uploadURL),
		zap.String("filename", req.File.Name),
		zap.Int64("size", req.File.Size()),
		zap.String("storyType", string(req.StoryType)),
	)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	contentType := req.File.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(req.File.Name)))
	partHeader.Set("Content-Type", contentType)
	part, err := mw.CreatePart(partHeader)
	if err != nil {
		return nil, fmt.Errorf("internal error building multipart body: %w", err)
	}
	if _, err := part.Write(req.File.Data); err != nil {
		return nil, fmt.Errorf("internal error writing file part: %w", err)
	}
	if err := mw.WriteField("story_type", string(req.StoryType)); err != nil {
		return nil, fmt.Errorf("internal error writing story_type field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("internal error closing multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &body)
	if err != nil {
		log.Error("Failed to create upload HTTP request", zap.Error(err))
		return nil, fmt.Errorf("internal error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")

	log.Debug("Sending upload request to story backend")
	var story models.Story
	if err := c.do(httpReq, op, &story); err != nil {
		log.Warn("Upload and generate failed", zap.Error(err))
		return nil, err
	}
	log.Info("Story generated", zap.String("storyID", story.ID))
	return &story, nil
}

// ListStories выполняет GET /stories?skip=&limit=. Параметры передаются как есть.
func (c *StoryAPIClient) ListStories(ctx context.Context, skip, limit int) ([]models.Story, error) {
	const op = "list"
	u, err := url.Parse(c.apiURL + "/stories")
	if err != nil {
		return nil, fmt.Errorf("internal error parsing URL: %w", err)
	}
	q := u.Query()
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("internal error creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	var stories []models.Story
	if err := c.do(httpReq, op, &stories); err != nil {
		return nil, err
	}
	if stories == nil {
		stories = []models.Story{}
	}
	c.logger.Debug("Stories listed", zap.Int("count", len(stories)), zap.Int("skip", skip), zap.Int("limit", limit))
	return stories, nil
}

// GetStory выполняет GET /stories/{id}.
func (c *StoryAPIClient) GetStory(ctx context.Context, id string) (*models.Story, error) {
	const op = "get"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.storyURL(id), nil)
	if err != nil {
		return nil, fmt.Errorf("internal error creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	var story models.Story
	if err := c.do(httpReq, op, &story); err != nil {
		return nil, err
	}
	return &story, nil
}

// DeleteStory выполняет DELETE /stories/{id}. Тело успешного ответа игнорируется.
func (c *StoryAPIClient) DeleteStory(ctx context.Context, id string) error {
	const op = "delete"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.storyURL(id), nil)
	if err != nil {
		return fmt.Errorf("internal error creating request: %w", err)
	}
	if err := c.do(httpReq, op, nil); err != nil {
		c.logger.Warn("Delete story failed", zap.String("storyID", id), zap.Error(err))
		return err
	}
	c.logger.Info("Story deleted", zap.String("storyID", id))
	return nil
}

func (c *StoryAPIClient) storyURL(id string) string {
	return c.apiURL + "/stories/" + url.PathEscape(id)
}

// do выполняет запрос, проверяет статус и декодирует JSON в out (если out != nil).
// Любой исход, кроме 2xx, превращается в *RequestError.
func (c *StoryAPIClient) do(req *http.Request, op string, out any) (err error) {
	start := time.Now()
	defer func() { observeRequest(op, time.Since(start).Seconds(), err) }()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("Received non-2xx status from story backend",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Detail: decodeDetail(body)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("Failed to unmarshal story backend response", zap.String("op", op), zap.ByteString("body", body), zap.Error(err))
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid response format: %w", err)}
	}
	return nil
}
