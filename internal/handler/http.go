// Package handler - HTTP-маршруты веб-клиента: страницы, формы загрузки, удаление и WebSocket.
package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storylens/internal/card"
	"storylens/internal/models"
	"storylens/internal/shell"
	"storylens/internal/upload"
	"storylens/internal/web"
)

const sessionCookieName = "storylens_session"

// maxUploadBody - предел тела запроса выбора файла. Больший файл отклоняет фильтр.
const maxUploadBody = upload.MaxFileSize + 1<<20

// Options - настройки обработчика.
type Options struct {
	ReadOnly      bool
	Location      *time.Location
	SecureCookies bool
	FlashSecret   []byte
	SessionTTL    time.Duration
}

// StoryHandler обслуживает страницы и формы веб-клиента.
type StoryHandler struct {
	shell    *shell.Shell
	sessions *shell.SessionStore
	hub      *ConnectionManager
	opts     Options
	logger   *zap.Logger
}

func NewStoryHandler(sh *shell.Shell, sessions *shell.SessionStore, hub *ConnectionManager, opts Options, logger *zap.Logger) *StoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &StoryHandler{
		shell:    sh,
		sessions: sessions,
		hub:      hub,
		opts:     opts,
		logger:   logger.Named("StoryHandler"),
	}
}

// RegisterRoutes регистрирует маршруты. submitLimiter ограничивает частоту генерации.
func (h *StoryHandler) RegisterRoutes(router *gin.Engine, submitLimiter gin.HandlerFunc) {
	router.GET("/", h.index)
	router.GET("/partials/gallery", h.galleryPartial)

	up := router.Group("/upload")
	{
		up.POST("/select", h.selectFile)
		up.POST("/reset", h.resetFile)
		if submitLimiter != nil {
			up.POST("/submit", submitLimiter, h.submit)
		} else {
			up.POST("/submit", h.submit)
		}
	}

	router.POST("/stories/new", h.newStory)
	router.POST("/stories/:id/delete", h.deleteStory)
	router.GET("/stories/:id", h.storyPage)

	if h.hub != nil {
		router.GET("/ws", h.serveWS)
	}
}

// --- Модели представления ---

type storyTypeOption struct {
	Value    models.StoryType
	Label    string
	Selected bool
}

type uploaderData struct {
	upload.Snapshot
	Accept     string
	Hint       string
	Types      []storyTypeOption
	Submitting bool
}

type galleryData struct {
	State          string
	Cards          []*card.Card
	CountLabel     string
	Skeletons      int
	ShowNewStory   bool
	ShowGetStarted bool
}

type pageData struct {
	Title        string
	Toast        *shell.Toast
	ShowUploader bool
	Upload       uploaderData
	Gallery      galleryData
}

type storyPageData struct {
	Title string
	Toast *shell.Toast
	Card  *card.Card
}

type errorPage struct {
	Title   string
	Toast   *shell.Toast
	Message string
}

func newUploaderData(snap upload.Snapshot) uploaderData {
	d := uploaderData{
		Snapshot:   snap,
		Accept:     upload.AcceptAttr,
		Hint:       upload.AcceptedFormatsHint,
		Submitting: snap.State == upload.StateSubmitting,
	}
	for _, t := range []models.StoryType{models.StoryTypeStory, models.StoryTypePoem} {
		d.Types = append(d.Types, storyTypeOption{Value: t, Label: t.Label(), Selected: t == snap.StoryType})
	}
	return d
}

// newCard создает карточку для отрисовки. В режиме только для чтения удаления нет.
func (h *StoryHandler) newCard(story models.Story, deleteFn card.DeleteFunc) *card.Card {
	opts := []card.Option{card.WithLocation(h.opts.Location), card.WithLogger(h.logger)}
	if !h.opts.ReadOnly {
		opts = append(opts, card.WithDelete(deleteFn))
	}
	return card.New(story, h.shell.API(), opts...)
}

func (h *StoryHandler) newGalleryData(g shell.GalleryView, showUploader bool) galleryData {
	d := galleryData{
		State:          g.State.String(),
		Skeletons:      web.SkeletonCount,
		ShowGetStarted: !showUploader,
	}
	if g.State == shell.GalleryPopulated {
		d.CountLabel = g.CountLabel()
		d.ShowNewStory = !showUploader
		d.Cards = make([]*card.Card, 0, len(g.Stories))
		for _, s := range g.Stories {
			d.Cards = append(d.Cards, h.newCard(s, h.shell.DeleteFunc(nil)))
		}
	}
	return d
}

// --- Сессии ---

func (h *StoryHandler) session(c *gin.Context) *shell.Session {
	id, _ := c.Cookie(sessionCookieName)
	sess, created := h.sessions.GetOrCreate(id)
	if created {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookieName, sess.ID, int(h.opts.SessionTTL.Seconds()), "/", "", h.opts.SecureCookies, true)
	}
	return sess
}

func (h *StoryHandler) redirectHome(c *gin.Context, toast *shell.Toast) {
	if toast != nil {
		h.setFlash(c, *toast)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// --- Страницы ---

func (h *StoryHandler) index(c *gin.Context) {
	sess := h.session(c)
	showUploader := sess.ShowUploader()
	gallery := h.shell.PeekGallery(c.Request.Context())

	c.HTML(http.StatusOK, "index.html", pageData{
		Toast:        h.popFlash(c),
		ShowUploader: showUploader,
		Upload:       newUploaderData(sess.View.Snapshot()),
		Gallery:      h.newGalleryData(gallery, showUploader),
	})
}

func (h *StoryHandler) galleryPartial(c *gin.Context) {
	sess := h.session(c)
	gallery := h.shell.Gallery(c.Request.Context())
	c.Header("X-Gallery-State", gallery.State.String())
	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, "gallery.html", h.newGalleryData(gallery, sess.ShowUploader()))
}

func (h *StoryHandler) storyPage(c *gin.Context) {
	id := c.Param("id")
	story, err := h.shell.Story(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.HTML(http.StatusNotFound, "404.html", errorPage{Title: "Not found", Message: "Story not found"})
			return
		}
		_ = c.Error(err).SetMeta("get story " + id)
		return
	}
	// На отдельной странице карточка только для чтения
	cd := card.New(*story, h.shell.API(), card.WithLocation(h.opts.Location), card.WithLogger(h.logger))
	c.HTML(http.StatusOK, "story.html", storyPageData{Title: cd.Badge(), Toast: h.popFlash(c), Card: cd})
}

// --- Формы ---

// readImageFiles читает все части "file" в память.
func readImageFiles(headers []*multipart.FileHeader) ([]models.ImageFile, error) {
	files := make([]models.ImageFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(io.LimitReader(f, upload.MaxFileSize+1))
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		files = append(files, models.ImageFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

func (h *StoryHandler) selectFile(c *gin.Context) {
	sess := h.session(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBody)

	var files []models.ImageFile
	form, err := c.MultipartForm()
	if err == nil {
		files, err = readImageFiles(form.File["file"])
	}
	if err != nil {
		// Слишком большое или битое тело - тот же отказ фильтра
		h.logger.Info("Failed to read selected file", zap.String("sessionID", sess.ID), zap.Error(err))
		files = nil
	}

	if raw := c.PostForm("story_type"); raw != "" {
		if t, err := models.ParseStoryType(raw); err == nil {
			_ = sess.View.SetStoryType(t)
		}
	}

	h.redirectHome(c, h.shell.SelectFile(sess, files))
}

func (h *StoryHandler) resetFile(c *gin.Context) {
	sess := h.session(c)
	if err := sess.View.Reset(); err != nil {
		t := shell.Toast{Kind: shell.ToastError, Message: shell.MsgBusy}
		h.redirectHome(c, &t)
		return
	}
	h.redirectHome(c, nil)
}

func (h *StoryHandler) submit(c *gin.Context) {
	sess := h.session(c)

	if raw := c.PostForm("story_type"); raw != "" {
		t, err := models.ParseStoryType(raw)
		if err != nil {
			c.String(http.StatusBadRequest, err.Error())
			return
		}
		if err := sess.View.SetStoryType(t); err != nil {
			toast := shell.Toast{Kind: shell.ToastError, Message: shell.MsgBusy}
			h.redirectHome(c, &toast)
			return
		}
	}

	toast := h.shell.Upload(c.Request.Context(), sess)
	h.redirectHome(c, &toast)
}

func (h *StoryHandler) newStory(c *gin.Context) {
	h.shell.NewStory(h.session(c))
	h.redirectHome(c, nil)
}

func (h *StoryHandler) deleteStory(c *gin.Context) {
	if h.opts.ReadOnly {
		c.String(http.StatusForbidden, "deletion is disabled")
		return
	}
	id := c.Param("id")

	var toast shell.Toast
	cd := h.newCard(models.Story{ID: id}, h.shell.DeleteFunc(&toast))
	confirmed := card.ConfirmFunc(func(string) (bool, error) {
		return c.PostForm("confirm") == "yes", nil
	})

	deleted, err := cd.RequestDelete(c.Request.Context(), confirmed)
	switch {
	case deleted, err != nil && toast.Message != "":
		h.redirectHome(c, &toast)
	case err != nil:
		_ = c.Error(err).SetMeta("delete story " + id)
	default:
		// Пользователь отказался
		h.redirectHome(c, nil)
	}
}
