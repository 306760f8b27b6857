package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeDeadline = 10 * time.Second

// Session is one subscribed connection. Writes go through a buffered channel
// so Notify never blocks on a slow peer.
type Session struct {
	gameID string
	conn   *websocket.Conn
	send   chan []byte

	closeOnce sync.Once
}

func newSession(gameID string, conn *websocket.Conn) *Session {
	return &Session{
		gameID: gameID,
		conn:   conn,
		send:   make(chan []byte, sessionSendBuffer),
	}
}

// GameID reports which game this session is subscribed to.
func (s *Session) GameID() string {
	return s.gameID
}

// enqueue offers data to the writer. A false return means the buffer is full
// and the session should be dropped.
func (s *Session) enqueue(data []byte) bool {
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

func (s *Session) writeLoop() {
	for data := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.conn.Close()
			return
		}
	}
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.conn.Close()
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.send)
	})
}
