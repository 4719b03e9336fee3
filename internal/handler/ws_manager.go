package handler

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// InvalidationMessage - сообщение открытым страницам о том, что ключ кэша устарел.
type InvalidationMessage struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

// wsClient - одно WebSocket-соединение.
type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// ConnectionManager рассылает сообщения всем открытым страницам.
type ConnectionManager struct {
	clients    map[string]*wsClient
	register   chan *wsClient
	unregister chan string
	broadcast  chan []byte
	logger     *zap.Logger
}

// NewConnectionManager создает менеджер. Цикл обработки запускается через Run.
func NewConnectionManager(logger *zap.Logger) *ConnectionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectionManager{
		clients:    make(map[string]*wsClient),
		register:   make(chan *wsClient),
		unregister: make(chan string),
		broadcast:  make(chan []byte, 16),
		logger:     logger.Named("ConnectionManager"),
	}
}

// Run обрабатывает регистрацию и рассылку до отмены ctx, затем закрывает все соединения.
func (m *ConnectionManager) Run(ctx context.Context) {
	m.logger.Info("ConnectionManager started")
	defer func() {
		for id, client := range m.clients {
			close(client.send)
			delete(m.clients, id)
		}
		wsConnections.Set(0)
		m.logger.Info("ConnectionManager stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-m.register:
			m.clients[client.id] = client
			wsConnections.Set(float64(len(m.clients)))
			m.logger.Debug("Client registered", zap.String("clientID", client.id), zap.Int("clients", len(m.clients)))

		case id := <-m.unregister:
			if client, ok := m.clients[id]; ok {
				delete(m.clients, id)
				close(client.send)
				wsConnections.Set(float64(len(m.clients)))
				m.logger.Debug("Client unregistered", zap.String("clientID", id))
			}

		case message := <-m.broadcast:
			for id, client := range m.clients {
				select {
				case client.send <- message:
				default:
					// Клиент не успевает читать, отключаем
					m.logger.Warn("Send queue full, dropping client", zap.String("clientID", id))
					delete(m.clients, id)
					close(client.send)
				}
			}
			wsConnections.Set(float64(len(m.clients)))
		}
	}
}

// Broadcast ставит сообщение в очередь рассылки. При переполненной очереди сообщение теряется.
func (m *ConnectionManager) Broadcast(message []byte) bool {
	select {
	case m.broadcast <- message:
		return true
	default:
		m.logger.Warn("Broadcast queue full, message dropped")
		return false
	}
}

// NotifyInvalidated сообщает страницам, что ключ кэша устарел.
// Подходит как cache.InvalidateFunc.
func (m *ConnectionManager) NotifyInvalidated(key string) {
	payload, err := json.Marshal(InvalidationMessage{Type: "invalidate", Key: key})
	if err != nil {
		m.logger.Error("Failed to marshal invalidation message", zap.Error(err))
		return
	}
	m.Broadcast(payload)
}
