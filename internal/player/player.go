// Package player воспроизводит озвучку внешним процессом (по умолчанию ffplay).
package player

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"

	"storylens/internal/card"
)

// DefaultCommand - команда плеера по умолчанию, URL добавляется последним аргументом.
const DefaultCommand = "ffplay -nodisp -autoexit -loglevel error"

// ExecPlayer создает плееры-процессы для карточек.
type ExecPlayer struct {
	bin    string
	args   []string
	logger *zap.Logger
}

// New разбирает командную строку плеера. Пустая строка - DefaultCommand.
func New(command string, logger *zap.Logger) (*ExecPlayer, error) {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	fields := strings.Fields(command)
	bin, err := exec.LookPath(fields[0])
	if err != nil {
		return nil, fmt.Errorf("audio player %q not found: %w", fields[0], err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecPlayer{bin: bin, args: fields[1:], logger: logger.Named("ExecPlayer")}, nil
}

// Factory возвращает фабрику плееров для card.WithHandleFactory.
func (p *ExecPlayer) Factory() card.HandleFactory {
	return func(url string, listeners card.Listeners) (card.AudioHandle, error) {
		if url == "" {
			return nil, errors.New("empty audio url")
		}
		return &handle{
			player:    p,
			url:       url,
			listeners: listeners,
			logger:    p.logger.With(zap.String("url", url)),
		}, nil
	}
}

// handle - один процесс плеера. Пауза через SIGSTOP/SIGCONT, Play после окончания запускает процесс заново.
type handle struct {
	player    *ExecPlayer
	url       string
	listeners card.Listeners
	logger    *zap.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	done     chan struct{}
	paused   bool
	stopping bool
}

func (h *handle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cmd != nil {
		if !h.paused {
			return nil
		}
		if err := resumeProcess(h.cmd.Process); err != nil {
			return fmt.Errorf("resume player: %w", err)
		}
		h.paused = false
		return nil
	}

	args := append(append([]string(nil), h.player.args...), h.url)
	cmd := exec.Command(h.player.bin, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start player: %w", err)
	}
	h.cmd = cmd
	h.done = make(chan struct{})
	h.paused = false
	h.stopping = false
	h.logger.Debug("Player started", zap.Int("pid", cmd.Process.Pid))

	go h.wait(cmd, h.done)
	return nil
}

func (h *handle) wait(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()

	h.mu.Lock()
	stopped := h.stopping
	if h.cmd == cmd {
		h.cmd = nil
		h.paused = false
	}
	h.mu.Unlock()
	close(done)

	if stopped {
		return
	}
	if err != nil {
		h.logger.Warn("Player exited with error", zap.Error(err))
		if h.listeners.OnError != nil {
			h.listeners.OnError(fmt.Errorf("audio player: %w", err))
		}
		return
	}
	if h.listeners.OnEnded != nil {
		h.listeners.OnEnded()
	}
}

func (h *handle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cmd == nil || h.paused {
		return nil
	}
	if err := pauseProcess(h.cmd.Process); err != nil {
		return fmt.Errorf("pause player: %w", err)
	}
	h.paused = true
	return nil
}

// Stop завершает процесс и ждет его выхода. Слушатели при этом не вызываются.
func (h *handle) Stop() error {
	h.mu.Lock()
	cmd, done, paused := h.cmd, h.done, h.paused
	h.stopping = true
	h.mu.Unlock()

	if cmd == nil {
		return nil
	}
	if paused {
		// Остановленный процесс не обработает сигнал завершения до SIGCONT
		_ = resumeProcess(cmd.Process)
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, errProcessDone) {
		return fmt.Errorf("kill player: %w", err)
	}
	<-done
	h.logger.Debug("Player stopped")
	return nil
}
