package card

// AudioHandle - экземпляр плеера, привязанный к одному URL.
// Play после окончания воспроизведения начинает сначала.
type AudioHandle interface {
	Play() error
	Pause() error
	// Stop останавливает воспроизведение и освобождает ресурсы плеера.
	Stop() error
}

// Listeners вызываются плеером из своей горутины.
type Listeners struct {
	OnEnded func()
	OnError func(error)
}

// HandleFactory создает плеер для URL озвучки.
type HandleFactory func(url string, listeners Listeners) (AudioHandle, error)
