package models

import (
	"fmt"
	"strings"
	"time"
)

// StoryType - жанр сгенерированного текста.
type StoryType string

const (
	StoryTypeStory StoryType = "story"
	StoryTypePoem  StoryType = "poem"
)

// DefaultStoryType используется, если пользователь не выбрал жанр.
const DefaultStoryType = StoryTypeStory

// ParseStoryType проверяет значение из формы или флага CLI.
// Пустая строка дает жанр по умолчанию.
func ParseStoryType(raw string) (StoryType, error) {
	switch StoryType(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return DefaultStoryType, nil
	case StoryTypeStory:
		return StoryTypeStory, nil
	case StoryTypePoem:
		return StoryTypePoem, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStoryType, raw)
}

// Label возвращает подпись жанра для селектора.
func (t StoryType) Label() string {
	if t == StoryTypePoem {
		return "Poem"
	}
	return "Short Story"
}

// Story - сгенерированный бэкендом артефакт. Клиент никогда его не изменяет.
type Story struct {
	ID            string    `json:"id"`
	StoryText     string    `json:"story_text"`
	StoryType     StoryType `json:"story_type"`
	ImageFilename string    `json:"image_filename"`
	AudioFilename *string   `json:"audio_filename,omitempty"`
	AudioURL      *string   `json:"audio_url,omitempty"`
	CreatedAt     string    `json:"created_at"`
	UpdatedAt     *string   `json:"updated_at,omitempty"`
}

// HasAudio сообщает, есть ли у истории озвучка.
func (s Story) HasAudio() bool {
	return (s.AudioFilename != nil && *s.AudioFilename != "") ||
		(s.AudioURL != nil && *s.AudioURL != "")
}

// timestampLayouts - форматы, которые отдает бэкенд (isoformat с зоной и без).
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

// CreatedTime разбирает created_at. Время без смещения считается UTC.
func (s Story) CreatedTime() (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s.CreatedAt); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized created_at %q", s.CreatedAt)
}

// ImageFile - выбранный пользователем файл, целиком в памяти.
type ImageFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size возвращает размер файла в байтах.
func (f ImageFile) Size() int64 { return int64(len(f.Data)) }

// UploadRequest - разовый запрос на загрузку: файл и жанр.
// Создается представлением загрузки и потребляется ровно одним вызовом UploadAndGenerate.
type UploadRequest struct {
	File      ImageFile
	StoryType StoryType
}
