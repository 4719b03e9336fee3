package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"storylens/internal/models"
)

// RequestError - единая ошибка неуспешного обращения к бэкенду.
// Detail содержит сообщение бэкенда, если оно было в теле ответа.
type RequestError struct {
	Op         string
	StatusCode int // 0, если ответа не было (сетевая ошибка, таймаут)
	Detail     string
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.StatusCode == 0 && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Detail)
	default:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

// Is позволяет проверять ошибку через errors.Is(err, models.ErrRequestFailed)
// и errors.Is(err, models.ErrNotFound) для 404.
func (e *RequestError) Is(target error) bool {
	switch target {
	case models.ErrRequestFailed:
		return true
	case models.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// DetailOf достает сообщение бэкенда из цепочки ошибок. Пустая строка, если его нет.
func DetailOf(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Detail
	}
	return ""
}

// decodeDetail разбирает тело ошибки вида {"detail": "..."}.
// Нестроковый detail (список ошибок валидации) игнорируется.
func decodeDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err != nil {
		return ""
	}
	return detail
}
