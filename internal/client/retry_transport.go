package client

import (
	"io"
	"net/http"

	"go.uber.org/zap"
)

// retryTransport повторяет GET-запросы не более retries раз при сетевой ошибке или 5xx.
// Мутации не повторяются никогда. Задержки между попытками нет.
type retryTransport struct {
	next    http.RoundTripper
	retries int
	logger  *zap.Logger
}

func newRetryTransport(next http.RoundTripper, retries int, logger *zap.Logger) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if retries <= 0 {
		return next
	}
	return &retryTransport{next: next, retries: retries, logger: logger}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return t.next.RoundTrip(req)
	}

	for attempt := 0; ; attempt++ {
		resp, err := t.next.RoundTrip(req)
		if attempt >= t.retries || !shouldRetry(resp, err) || req.Context().Err() != nil {
			return resp, err
		}

		fields := []zap.Field{
			zap.String("url", req.URL.String()),
			zap.Int("attempt", attempt+1),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		} else {
			fields = append(fields, zap.Int("status", resp.StatusCode))
			// Тело первой попытки не нужно, освобождаем соединение
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		t.logger.Warn("Backend request failed, retrying", fields...)
	}
}

func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp.StatusCode >= http.StatusInternalServerError
}
