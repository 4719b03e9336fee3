package models

import "errors"

var (
	// ErrValidationRejected - файл не прошел фильтр типа/размера.
	ErrValidationRejected = errors.New("file rejected by upload filter")
	// ErrRequestFailed - любой неуспешный ответ бэкенда или сетевая ошибка.
	ErrRequestFailed = errors.New("request failed")
	// ErrNotFound - история с таким id не найдена.
	ErrNotFound = errors.New("story not found")

	ErrInvalidStoryType = errors.New("invalid story type")
	ErrNoFile           = errors.New("no file selected")
	ErrBusy             = errors.New("upload already in progress")
)
