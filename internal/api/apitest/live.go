package apitest

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nissyi-gh/flowboard/internal/live"
)

// Time allowed to write a message to a subscriber
const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// hub fans change messages out to every connected subscriber.
type hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func newHub() *hub {
	return &hub{conns: make(map[*websocket.Conn]bool)}
}

func (h *hub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()

	// Drain reads so close frames are noticed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(conn)
				return
			}
		}
	}()
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[conn] {
		delete(h.conns, conn)
		conn.Close()
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *hub) publish(c live.Change) {
	msg, err := live.Encode(c)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			delete(h.conns, conn)
			conn.Close()
		}
	}
}

// Subscribers reports how many change feed connections are open.
func (b *Backend) Subscribers() int {
	return b.live.count()
}

// Publish sends a change to every subscriber, as if another client had
// edited the project.
func (b *Backend) Publish(c live.Change) {
	b.live.publish(c)
}
