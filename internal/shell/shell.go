// Package shell связывает клиент бэкенда, кэш списка историй и форму загрузки:
// список, загрузка, удаление и уведомления об их результате.
package shell

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"storylens/internal/cache"
	"storylens/internal/client"
	"storylens/internal/messaging"
	"storylens/internal/models"
)

// GalleryState - ровно одна из четырех веток галереи.
type GalleryState int

const (
	GalleryLoading GalleryState = iota
	GalleryError
	GalleryEmpty
	GalleryPopulated
)

func (s GalleryState) String() string {
	switch s {
	case GalleryLoading:
		return "loading"
	case GalleryError:
		return "error"
	case GalleryEmpty:
		return "empty"
	case GalleryPopulated:
		return "populated"
	}
	return fmt.Sprintf("GalleryState(%d)", int(s))
}

// GalleryView - модель галереи для отрисовки.
type GalleryView struct {
	State   GalleryState
	Stories []models.Story
}

// CountLabel - "1 story" / "N stories".
func (g GalleryView) CountLabel() string {
	if len(g.Stories) == 1 {
		return "1 story"
	}
	return fmt.Sprintf("%d stories", len(g.Stories))
}

func galleryOf(stories []models.Story) GalleryView {
	if len(stories) == 0 {
		return GalleryView{State: GalleryEmpty, Stories: []models.Story{}}
	}
	return GalleryView{State: GalleryPopulated, Stories: stories}
}

// Shell - общий для процесса оркестратор. Состояние браузера живет в Session.
type Shell struct {
	api    client.StoryAPI
	cache  *cache.QueryCache
	events messaging.StoryEventPublisher
	logger *zap.Logger
}

// New создает Shell. events может быть nil.
func New(api client.StoryAPI, queryCache *cache.QueryCache, events messaging.StoryEventPublisher, logger *zap.Logger) *Shell {
	if events == nil {
		events = messaging.NewNopPublisher()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shell{api: api, cache: queryCache, events: events, logger: logger.Named("Shell")}
}

// API возвращает клиент бэкенда (для построения ссылок в карточках).
func (s *Shell) API() client.StoryAPI { return s.api }

func (s *Shell) fetchStories(ctx context.Context) ([]models.Story, error) {
	return s.api.ListStories(ctx, 0, client.DefaultListLimit)
}

// Gallery читает список через кэш, при промахе ждет ответа бэкенда.
func (s *Shell) Gallery(ctx context.Context) GalleryView {
	stories, err := cache.Get(ctx, s.cache, cache.KeyStories, s.fetchStories)
	if err != nil {
		s.logger.Error("Failed to load stories", zap.Error(err))
		return GalleryView{State: GalleryError}
	}
	return galleryOf(stories)
}

// PeekGallery не обращается к бэкенду: без свежего значения в кэше возвращает Loading.
func (s *Shell) PeekGallery(ctx context.Context) GalleryView {
	stories, ok := cache.Peek[[]models.Story](ctx, s.cache, cache.KeyStories)
	if !ok {
		return GalleryView{State: GalleryLoading}
	}
	return galleryOf(stories)
}

func (s *Shell) invalidateStories(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, cache.KeyStories); err != nil {
		s.logger.Error("Failed to invalidate stories", zap.Error(err))
	}
}

func (s *Shell) publish(ctx context.Context, event messaging.StoryEvent) {
	if err := s.events.PublishStoryEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish story event",
			zap.String("type", string(event.Type)),
			zap.String("storyID", event.StoryID),
			zap.Error(err))
	}
}

// SelectFile передает выбор в форму. Уведомление возвращается только при отказе.
func (s *Shell) SelectFile(sess *Session, files []models.ImageFile) *Toast {
	err := sess.View.Select(files)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrValidationRejected):
		rejectedFilesTotal.Inc()
		s.logger.Info("File rejected by upload filter", zap.String("sessionID", sess.ID), zap.Error(err))
		t := errorToast(MsgFileRejected)
		return &t
	case errors.Is(err, models.ErrBusy):
		t := errorToast(MsgBusy)
		return &t
	default:
		s.logger.Error("Unexpected select error", zap.Error(err))
		t := errorToast(MsgFileRejected)
		return &t
	}
}

// Upload отправляет выбранный файл. Успех: список устаревает, форма скрывается и сбрасывается.
// Ошибка: сообщение бэкенда или общее, состояние не меняется.
func (s *Shell) Upload(ctx context.Context, sess *Session) Toast {
	req, err := sess.View.BeginSubmit()
	if err != nil {
		if errors.Is(err, models.ErrBusy) {
			return errorToast(MsgBusy)
		}
		return errorToast(MsgNoFile)
	}

	log := s.logger.With(
		zap.String("sessionID", sess.ID),
		zap.String("filename", req.File.Name),
		zap.String("storyType", string(req.StoryType)),
	)

	story, err := s.api.UploadAndGenerate(ctx, req)
	sess.View.SetLoading(false)
	uploadsTotal.WithLabelValues(string(req.StoryType), outcomeLabel(err)).Inc()

	if err != nil {
		log.Warn("Upload failed", zap.Error(err))
		if detail := client.DetailOf(err); detail != "" {
			return errorToast(detail)
		}
		return errorToast(MsgUploadFailed)
	}

	log.Info("Story generated", zap.String("storyID", story.ID))
	s.invalidateStories(ctx)
	sess.setShowUploader(false)
	_ = sess.View.Reset()

	event := messaging.NewStoryEvent(messaging.EventStoryGenerated, story.ID)
	event.StoryType = story.StoryType
	event.HasAudio = story.HasAudio()
	s.publish(ctx, event)

	return successToast(MsgUploadSucceeded)
}

// Delete удаляет историю. Список обновляется только после успеха.
func (s *Shell) Delete(ctx context.Context, id string) Toast {
	err := s.api.DeleteStory(ctx, id)
	deletesTotal.WithLabelValues(outcomeLabel(err)).Inc()
	if err != nil {
		s.logger.Warn("Delete failed", zap.String("storyID", id), zap.Error(err))
		return errorToast(MsgDeleteFailed)
	}

	s.invalidateStories(ctx)
	s.publish(ctx, messaging.NewStoryEvent(messaging.EventStoryDeleted, id))
	return successToast(MsgDeleteSucceeded)
}

// DeleteFunc адаптирует Delete к card.DeleteFunc и сохраняет уведомление в *Toast.
func (s *Shell) DeleteFunc(out *Toast) func(ctx context.Context, id string) error {
	return func(ctx context.Context, id string) error {
		t := s.Delete(ctx, id)
		if out != nil {
			*out = t
		}
		if t.Kind == ToastError {
			return fmt.Errorf("delete story %s: %w", id, models.ErrRequestFailed)
		}
		return nil
	}
}

// NewStory снова показывает форму загрузки. Список не трогается.
func (s *Shell) NewStory(sess *Session) {
	sess.setShowUploader(true)
}

// Story загружает одну историю. Неизвестный id дает ошибку, совместимую с models.ErrNotFound.
func (s *Shell) Story(ctx context.Context, id string) (*models.Story, error) {
	story, err := s.api.GetStory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get story %s: %w", id, err)
	}
	return story, nil
}
