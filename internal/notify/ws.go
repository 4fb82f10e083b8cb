package notify

import (
	"sync"

	"github.com/gorilla/websocket"
)

// WSSession wraps a websocket connection as a hub Sender. gorilla
// connections allow one concurrent writer, so writes are serialized here.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewWSSession(conn *websocket.Conn) *WSSession {
	return &WSSession{conn: conn}
}

func (s *WSSession) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *WSSession) Close() error {
	return s.conn.Close()
}
