package client

import (
	"context"

	"storylens/internal/models"
)

// DefaultListLimit - размер страницы списка по умолчанию.
const DefaultListLimit = 100

// StoryAPI определяет интерфейс для взаимодействия с бэкендом генерации историй.
type StoryAPI interface {
	// UploadAndGenerate отправляет изображение и жанр, бэкенд генерирует текст и озвучку.
	UploadAndGenerate(ctx context.Context, req models.UploadRequest) (*models.Story, error)
	// ListStories возвращает истории в порядке, который определяет бэкенд.
	ListStories(ctx context.Context, skip, limit int) ([]models.Story, error)
	// GetStory возвращает одну историю или ошибку, совместимую с models.ErrNotFound.
	GetStory(ctx context.Context, id string) (*models.Story, error)
	// DeleteStory удаляет историю и ее файлы на стороне бэкенда.
	DeleteStory(ctx context.Context, id string) error

	// ImageURL и AudioURL строят абсолютные ссылки на файлы, без сетевых вызовов.
	ImageURL(filename string) string
	AudioURL(filename string) string
	// BaseURL нужен для относительных audio_url из ответа бэкенда.
	BaseURL() string
}
