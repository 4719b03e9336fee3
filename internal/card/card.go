// Package card - карточка одной истории: отображение, воспроизведение озвучки и удаление.
package card

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"storylens/internal/models"
)

// DeletePrompt - текст подтверждения удаления.
const DeletePrompt = "Are you sure you want to delete this story?"

// DateLayout - формат даты карточки (en-US, короткий месяц, 12 часов).
const DateLayout = "Jan 2, 2006, 03:04 PM"

var (
	ErrNoAudio  = errors.New("story has no audio")
	ErrReadOnly = errors.New("card is read-only")
	ErrClosed   = errors.New("card is closed")
)

// Variant - возможности карточки.
type Variant int

const (
	ReadOnly Variant = iota
	Deletable
)

func (v Variant) String() string {
	if v == Deletable {
		return "deletable"
	}
	return "read-only"
}

// DeleteFunc удаляет историю по id. Вызывается только после подтверждения.
type DeleteFunc func(ctx context.Context, id string) error

// Confirmer спрашивает пользователя да/нет.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// ConfirmFunc адаптирует функцию к Confirmer.
type ConfirmFunc func(prompt string) (bool, error)

func (f ConfirmFunc) Confirm(prompt string) (bool, error) { return f(prompt) }

// Assets строит ссылки на файлы истории.
type Assets interface {
	ImageURL(filename string) string
	AudioURL(filename string) string
	BaseURL() string
}

// Card - карточка истории. Плеер создается при первом воспроизведении
// и живет до Close.
type Card struct {
	story    models.Story
	variant  Variant
	onDelete DeleteFunc
	assets   Assets
	factory  HandleFactory
	logger   *zap.Logger
	loc      *time.Location

	mu      sync.Mutex
	handle  AudioHandle
	playing bool
	closed  bool
	errs    chan error
}

// Option настраивает карточку.
type Option func(*Card)

// WithDelete делает карточку удаляемой.
func WithDelete(fn DeleteFunc) Option {
	return func(c *Card) {
		if fn != nil {
			c.onDelete = fn
			c.variant = Deletable
		}
	}
}

// WithHandleFactory задает способ создания плеера.
func WithHandleFactory(f HandleFactory) Option {
	return func(c *Card) { c.factory = f }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Card) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLocation задает часовой пояс для даты.
func WithLocation(loc *time.Location) Option {
	return func(c *Card) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// New создает карточку. Без WithDelete карточка только для чтения.
func New(story models.Story, assets Assets, opts ...Option) *Card {
	c := &Card{
		story:   story,
		variant: ReadOnly,
		assets:  assets,
		logger:  zap.NewNop(),
		loc:     time.UTC,
		errs:    make(chan error, 4),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("Card").With(zap.String("storyID", story.ID))
	return c
}

func (c *Card) Story() models.Story { return c.story }
func (c *Card) ID() string          { return c.story.ID }
func (c *Card) Text() string        { return c.story.StoryText }
func (c *Card) Variant() Variant    { return c.variant }

// HasPlayControl - есть ли у истории озвучка.
func (c *Card) HasPlayControl() bool { return c.story.HasAudio() }

// HasDeleteControl - можно ли удалить историю из карточки.
func (c *Card) HasDeleteControl() bool { return c.variant == Deletable }

// Badge возвращает метку жанра.
func (c *Card) Badge() string {
	if c.story.StoryType == models.StoryTypePoem {
		return "📝 Poem"
	}
	return "📖 Story"
}

// FormattedDate - дата создания в часовом поясе карточки.
// Нераспознанная дата возвращается как есть.
func (c *Card) FormattedDate() string {
	t, err := c.story.CreatedTime()
	if err != nil {
		return c.story.CreatedAt
	}
	return t.In(c.loc).Format(DateLayout)
}

func (c *Card) ImageURL() string {
	return c.assets.ImageURL(c.story.ImageFilename)
}

// AudioURL: audio_filename, затем audio_url (абсолютный как есть, относительный от базового адреса).
func (c *Card) AudioURL() string {
	if f := c.story.AudioFilename; f != nil && *f != "" {
		return c.assets.AudioURL(*f)
	}
	if u := c.story.AudioURL; u != nil && *u != "" {
		if strings.HasPrefix(*u, "http://") || strings.HasPrefix(*u, "https://") {
			return *u
		}
		return strings.TrimRight(c.assets.BaseURL(), "/") + "/" + strings.TrimLeft(*u, "/")
	}
	return ""
}

// IsPlaying сообщает, идет ли воспроизведение.
func (c *Card) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Errors - ошибки воспроизведения. Если их никто не читает, лишние отбрасываются.
func (c *Card) Errors() <-chan error { return c.errs }

// TogglePlay запускает или ставит на паузу озвучку. Возвращает новое значение флага.
func (c *Card) TogglePlay() (bool, error) {
	if !c.HasPlayControl() {
		return false, ErrNoAudio
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrClosed
	}

	if c.handle == nil {
		if c.factory == nil {
			return false, errors.New("no audio handle factory configured")
		}
		h, err := c.factory(c.AudioURL(), Listeners{
			OnEnded: c.handleEnded,
			OnError: c.handleError,
		})
		if err != nil {
			c.reportLocked(fmt.Errorf("create audio handle: %w", err))
			return false, err
		}
		c.handle = h
	}

	if c.playing {
		if err := c.handle.Pause(); err != nil {
			c.playing = false
			c.reportLocked(fmt.Errorf("pause: %w", err))
			return false, err
		}
		c.playing = false
		return false, nil
	}

	if err := c.handle.Play(); err != nil {
		c.playing = false
		c.reportLocked(fmt.Errorf("play: %w", err))
		return false, err
	}
	c.playing = true
	return true, nil
}

func (c *Card) handleEnded() {
	c.mu.Lock()
	c.playing = false
	c.mu.Unlock()
	c.logger.Debug("Playback ended")
}

func (c *Card) handleError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = false
	c.reportLocked(err)
}

func (c *Card) reportLocked(err error) {
	c.logger.Error("Playback error", zap.Error(err))
	if c.closed {
		return
	}
	select {
	case c.errs <- err:
	default:
	}
}

// RequestDelete спрашивает подтверждение и вызывает обработчик удаления.
// Возвращает true, если удаление было запрошено и прошло без ошибки.
func (c *Card) RequestDelete(ctx context.Context, confirmer Confirmer) (bool, error) {
	if c.variant != Deletable {
		return false, ErrReadOnly
	}
	ok, err := confirmer.Confirm(DeletePrompt)
	if err != nil {
		return false, fmt.Errorf("confirm delete: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := c.onDelete(ctx, c.story.ID); err != nil {
		return false, err
	}
	return true, nil
}

// Close останавливает и освобождает плеер. Повторный вызов ничего не делает.
func (c *Card) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	h := c.handle
	c.handle = nil
	c.playing = false
	c.mu.Unlock()

	if h == nil {
		return nil
	}
	// Stop может дождаться слушателей, которые берут c.mu, поэтому вне блокировки
	if err := h.Stop(); err != nil {
		c.logger.Warn("Failed to stop audio handle", zap.Error(err))
		return err
	}
	return nil
}
