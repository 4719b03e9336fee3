package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Время на запись одного сообщения.
	writeWait = 10 * time.Second
	// Время ожидания pong от клиента.
	pongWait = 60 * time.Second
	// Период пингов, меньше pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Клиент ничего не присылает, кроме служебных кадров.
	maxMessageSize = 512
)

// CheckOrigin не задан: gorilla пускает только тот же хост.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// serveWS переводит запрос в WebSocket и подписывает его на уведомления.
func (h *StoryHandler) serveWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrader уже ответил клиенту
		h.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := &wsClient{id: uuid.NewString(), conn: conn, send: make(chan []byte, 32)}
	log := h.logger.With(zap.String("clientID", client.id))

	select {
	case h.hub.register <- client:
	case <-c.Request.Context().Done():
		_ = conn.Close()
		return
	}

	go client.writePump(log)
	go client.readPump(h.hub, log)
}

// readPump читает служебные кадры и снимает клиента с учета при разрыве.
func (cl *wsClient) readPump(m *ConnectionManager, logger *zap.Logger) {
	defer func() {
		// Менеджер мог уже остановиться
		select {
		case m.unregister <- cl.id:
		case <-time.After(writeWait):
		}
		_ = cl.conn.Close()
	}()
	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump отправляет сообщения из очереди и пинги.
func (cl *wsClient) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case message, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := cl.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			// Накопившиеся сообщения уходят в том же кадре, через перевод строки
			n := len(cl.send)
			for i := 0; i < n; i++ {
				_, _ = w.Write([]byte("\n"))
				_, _ = w.Write(<-cl.send)
			}
			if err := w.Close(); err != nil {
				logger.Debug("Failed to flush message", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
