// Package sync fans borrow lifecycle events out to TCP and websocket
// subscribers.
package sync

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 2 * time.Second

type subscriber struct {
	ws    bool
	write func(b []byte) error
	close func() error
}

// Hub holds the current subscribers. A subscriber whose write fails is
// dropped.
type Hub struct {
	mu   sync.Mutex
	subs map[any]subscriber
	sent uint64
}

type Stats struct {
	TCPClients int    `json:"tcp_clients"`
	WSClients  int    `json:"ws_clients"`
	Sent       uint64 `json:"events_sent"`
}

func NewHub() *Hub {
	return &Hub{subs: make(map[any]subscriber)}
}

func (h *Hub) Add(conn net.Conn) {
	h.add(conn, subscriber{
		write: func(b []byte) error {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_, err := conn.Write(b)
			return err
		},
		close: conn.Close,
	})
}

func (h *Hub) AddWS(ws *websocket.Conn) {
	h.add(ws, subscriber{
		ws: true,
		write: func(b []byte) error {
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			return ws.WriteMessage(websocket.TextMessage, b)
		},
		close: ws.Close,
	})
}

func (h *Hub) add(key any, s subscriber) {
	h.mu.Lock()
	h.subs[key] = s
	h.mu.Unlock()
}

func (h *Hub) Remove(conn net.Conn) { h.remove(conn) }

func (h *Hub) RemoveWS(ws *websocket.Conn) { h.remove(ws) }

func (h *Hub) remove(key any) {
	h.mu.Lock()
	s, ok := h.subs[key]
	delete(h.subs, key)
	h.mu.Unlock()
	if ok {
		_ = s.close()
	}
}

// BroadcastJSON sends v as one newline-terminated JSON line to every
// subscriber.
func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("[hub] marshal event: %v", err)
		return
	}
	b = append(b, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	h.sent++
	for key, s := range h.subs {
		if err := s.write(b); err != nil {
			_ = s.close()
			delete(h.subs, key)
		}
	}
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := Stats{Sent: h.sent}
	for _, s := range h.subs {
		if s.ws {
			st.WSClients++
		} else {
			st.TCPClients++
		}
	}
	return st
}

func (h *Hub) Welcome(conn net.Conn) {
	st := h.Stats()
	msg := fmt.Sprintf("{\"type\":\"welcome\",\"transport\":\"tcp\",\"clients\":%d}\n", st.TCPClients+st.WSClients)
	_, _ = conn.Write([]byte(msg))
}

// CloseAll disconnects every subscriber.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, s := range h.subs {
		_ = s.close()
		delete(h.subs, key)
	}
}
