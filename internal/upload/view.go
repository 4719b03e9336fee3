// Package upload - состояние формы загрузки: выбор файла, предпросмотр, жанр, отправка.
package upload

import (
	"fmt"
	"sync"

	"storylens/internal/models"
)

// State - состояние представления загрузки.
type State int

const (
	StateEmpty State = iota
	StatePreviewing
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePreviewing:
		return "previewing"
	case StateSubmitting:
		return "submitting"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// View хранит выбранный файл, предпросмотр и жанр.
// Флаг загрузки выставляет вызывающая сторона, сам View об исходе запроса ничего не знает.
type View struct {
	mu        sync.Mutex
	file      *models.ImageFile
	preview   string
	storyType models.StoryType
	loading   bool
}

// NewView создает пустое представление с жанром по умолчанию.
func NewView() *View {
	return &View{storyType: models.DefaultStoryType}
}

// Snapshot - согласованный снимок для отрисовки.
type Snapshot struct {
	State     State
	FileName  string
	FileSize  int64
	Preview   string
	StoryType models.StoryType
}

func (v *View) stateLocked() State {
	switch {
	case v.file == nil:
		return StateEmpty
	case v.loading:
		return StateSubmitting
	default:
		return StatePreviewing
	}
}

// State возвращает текущее состояние.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := Snapshot{State: v.stateLocked(), Preview: v.preview, StoryType: v.storyType}
	if v.file != nil {
		s.FileName = v.file.Name
		s.FileSize = v.file.Size()
	}
	return s
}

// Select принимает выбранные файлы. Отклоненный выбор не меняет состояние
// и возвращает ошибку, совместимую с models.ErrValidationRejected.
func (v *View) Select(files []models.ImageFile) error {
	accepted, err := Filter(files)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.stateLocked() == StateSubmitting {
		return models.ErrBusy
	}
	v.file = &accepted
	v.preview = PreviewDataURL(accepted)
	return nil
}

// Reset сбрасывает файл и предпросмотр. Во время отправки не действует.
func (v *View) Reset() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.stateLocked() == StateSubmitting {
		return models.ErrBusy
	}
	v.file = nil
	v.preview = ""
	return nil
}

// SetStoryType меняет жанр. Во время отправки не действует.
func (v *View) SetStoryType(t models.StoryType) error {
	if t != models.StoryTypeStory && t != models.StoryTypePoem {
		return fmt.Errorf("%w: %q", models.ErrInvalidStoryType, t)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.stateLocked() == StateSubmitting {
		return models.ErrBusy
	}
	v.storyType = t
	return nil
}

// SetLoading выставляет внешний флаг загрузки.
func (v *View) SetLoading(loading bool) {
	v.mu.Lock()
	v.loading = loading
	v.mu.Unlock()
}

// Submit выдает ровно один запрос на загрузку с текущим жанром.
// Без файла возвращает models.ErrNoFile, во время отправки models.ErrBusy.
func (v *View) Submit() (models.UploadRequest, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch v.stateLocked() {
	case StateEmpty:
		return models.UploadRequest{}, models.ErrNoFile
	case StateSubmitting:
		return models.UploadRequest{}, models.ErrBusy
	}
	return models.UploadRequest{File: *v.file, StoryType: v.storyType}, nil
}

// BeginSubmit - Submit и SetLoading(true) под одной блокировкой.
// Из параллельных вызовов запрос получает только один, остальные - models.ErrBusy.
// Вызывающий обязан снять флаг через SetLoading(false).
func (v *View) BeginSubmit() (models.UploadRequest, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch v.stateLocked() {
	case StateEmpty:
		return models.UploadRequest{}, models.ErrNoFile
	case StateSubmitting:
		return models.UploadRequest{}, models.ErrBusy
	}
	v.loading = true
	return models.UploadRequest{File: *v.file, StoryType: v.storyType}, nil
}
